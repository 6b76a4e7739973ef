// Package tools discovers executable tool scripts, parses their descriptor
// markers and dispatches invocations as child processes.
package tools

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ============================================================================
// TOOL DESCRIPTORS
// ============================================================================

// InterpreterKind selects the interpreter a tool script runs under.
type InterpreterKind string

const (
	KindShell      InterpreterKind = "shell"
	KindPython     InterpreterKind = "python"
	KindJavaScript InterpreterKind = "javascript"
)

// Descriptor markers recognized in tool source comments.
const (
	markerDescribe = "@describe"
	markerOption   = "@option"

	// requiredMarker is the trailing character flagging a required parameter
	requiredMarker = "!"
)

// interpretersByExt is the allow-list of tool file extensions.
var interpretersByExt = map[string]InterpreterKind{
	".sh": KindShell,
	".py": KindPython,
	".js": KindJavaScript,
}

// interpreterBinaries maps kinds to the binary the dispatcher spawns.
var interpreterBinaries = map[InterpreterKind]string{
	KindShell:      "sh",
	KindPython:     "python3",
	KindJavaScript: "node",
}

// Parameter is a single declared tool option.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Descriptor is the parsed identity of one tool script. Immutable after
// parsing.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Path        string          `json:"path"`
	Kind        InterpreterKind `json:"kind"`

	// Parameters in declaration order
	Parameters []Parameter `json:"parameters"`
}

// Parameter returns the named parameter, if declared.
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// RequiredParameters returns the names of all required parameters in
// declaration order.
func (d *Descriptor) RequiredParameters() []string {
	var names []string
	for _, p := range d.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Interpreter returns the binary used to run this tool.
func (d *Descriptor) Interpreter() string {
	return interpreterBinaries[d.Kind]
}

// ============================================================================
// DESCRIPTOR PARSING
// ============================================================================

// ParseDescriptorFile reads a tool script and parses its markers. The file
// extension selects the interpreter and must be on the allow-list.
func ParseDescriptorFile(path string) (*Descriptor, error) {
	ext := filepath.Ext(path)
	kind, ok := interpretersByExt[ext]
	if !ok {
		return nil, NewToolError(filepath.Base(path), ErrParse,
			"unsupported tool file extension: "+ext, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, NewToolError(filepath.Base(path), ErrParse,
			"failed to open tool file", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), ext)
	desc := &Descriptor{
		Name: name,
		Path: path,
		Kind: kind,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parseMarkerLine(desc, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, NewToolError(name, ErrParse, "failed to read tool file", err)
	}
	return desc, nil
}

// parseMarkerLine applies a single source line to the descriptor. Lines
// without a recognized marker are ignored.
func parseMarkerLine(desc *Descriptor, line string) {
	if idx := strings.Index(line, markerDescribe); idx >= 0 {
		desc.Description = strings.TrimSpace(line[idx+len(markerDescribe):])
		return
	}

	idx := strings.Index(line, markerOption)
	if idx < 0 {
		return
	}
	rest := strings.TrimSpace(line[idx+len(markerOption):])
	if rest == "" {
		return
	}

	// Split at the first whitespace into token and description
	token := rest
	description := ""
	if cut := strings.IndexFunc(rest, unicode.IsSpace); cut >= 0 {
		token = rest[:cut]
		description = strings.TrimSpace(rest[cut:])
	}

	// Strip the two-character flag prefix (conventionally "--")
	if len(token) > 2 {
		token = token[2:]
	}

	required := strings.HasSuffix(token, requiredMarker)
	token = strings.TrimSuffix(token, requiredMarker)
	if token == "" {
		return
	}

	param := Parameter{Name: token, Description: description, Required: required}

	// A redeclared option updates in place, keeping first-seen order
	for i, existing := range desc.Parameters {
		if existing.Name == token {
			desc.Parameters[i] = param
			return
		}
	}
	desc.Parameters = append(desc.Parameters, param)
}
