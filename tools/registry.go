package tools

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/candralab/stanza/registry"
)

// ============================================================================
// TOOL REGISTRY
// ============================================================================

// Registry indexes parsed tool descriptors by name.
type Registry struct {
	*registry.BaseRegistry[*Descriptor]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[*Descriptor](),
	}
}

// LoadAll scans dir for tool scripts and registers every parseable one. A
// file that fails to parse is logged and skipped, never aborting the rest of
// the load. A missing directory degrades to an empty registry with a
// warning.
func (r *Registry) LoadAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("tool directory missing, no tools loaded", "dir", dir)
			return nil
		}
		return NewToolError("", ErrParse, "failed to read tool directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := interpretersByExt[filepath.Ext(entry.Name())]; !ok {
			continue
		}

		desc, err := ParseDescriptorFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping unparseable tool", "file", entry.Name(), "error", err)
			continue
		}
		if err := r.Replace(desc.Name, desc); err != nil {
			slog.Warn("failed to register tool", "tool", desc.Name, "error", err)
		}
	}
	return nil
}

// Reload drops the current registry contents and loads dir from scratch.
func (r *Registry) Reload(dir string) error {
	r.Clear()
	return r.LoadAll(dir)
}

// ============================================================================
// CALLING SCHEMA
// ============================================================================

type schemaParameter struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

type schemaEntry struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Parameters  map[string]schemaParameter `json:"parameters"`
}

// CallingSchema renders every registered tool as a JSON document shown to
// the model. Output is sorted by tool name and map keys are emitted in
// sorted order, so identical registry contents always produce byte-identical
// schema text.
func (r *Registry) CallingSchema() ([]byte, error) {
	names := r.Names()
	entries := make([]schemaEntry, 0, len(names))
	for _, name := range names {
		desc, ok := r.Get(name)
		if !ok {
			continue
		}

		params := make(map[string]schemaParameter, len(desc.Parameters))
		for _, p := range desc.Parameters {
			params[p.Name] = schemaParameter{
				Type:        "string",
				Description: p.Description,
				Required:    p.Required,
			}
		}
		entries = append(entries, schemaEntry{
			Name:        desc.Name,
			Description: desc.Description,
			Parameters:  params,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return json.MarshalIndent(entries, "", "  ")
}
