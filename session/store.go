package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// FILE-BACKED SESSION STORE
// ============================================================================

// FileStore persists sessions as YAML files, one per session name.
type FileStore struct {
	dir     string
	countFn CountFunc

	// persist is false when the store directory could not be created;
	// sessions then live only in memory for the process lifetime
	persist bool
}

// NewFileStore creates a store rooted at dir. If the directory cannot be
// created the store degrades to memory-only operation with a warning rather
// than failing.
func NewFileStore(dir string, countFn CountFunc) *FileStore {
	persist := true
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("session directory unavailable, sessions will not persist",
			"dir", dir, "error", err)
		persist = false
	}
	return &FileStore{
		dir:     dir,
		countFn: countFn,
		persist: persist,
	}
}

// Load reads the named session from disk. A missing file yields a fresh
// empty session.
func (fs *FileStore) Load(name string) (*Session, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !fs.persist {
		return NewSession(name, fs.countFn), nil
	}

	data, err := os.ReadFile(fs.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSession(name, fs.countFn), nil
		}
		return nil, NewSessionError(name, "Load", "failed to read session file", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, NewSessionError(name, "Load", "failed to parse session file", err)
	}
	sess.Name = name
	sess.SetCountFunc(fs.countFn)
	return &sess, nil
}

// Save writes the session atomically: marshal to a temp file in the same
// directory, then rename over the target.
func (fs *FileStore) Save(sess *Session) error {
	if sess == nil {
		return NewSessionError("", "Save", "session cannot be nil", nil)
	}
	if err := validateName(sess.Name); err != nil {
		return err
	}
	if !fs.persist {
		return nil
	}

	sess.mu.RLock()
	data, err := yaml.Marshal(sess)
	sess.mu.RUnlock()
	if err != nil {
		return NewSessionError(sess.Name, "Save", "failed to marshal session", err)
	}

	tmp, err := os.CreateTemp(fs.dir, ".session-*.tmp")
	if err != nil {
		return NewSessionError(sess.Name, "Save", "failed to create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return NewSessionError(sess.Name, "Save", "failed to write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return NewSessionError(sess.Name, "Save", "failed to close temp file", err)
	}

	if err := os.Rename(tmpName, fs.path(sess.Name)); err != nil {
		os.Remove(tmpName)
		return NewSessionError(sess.Name, "Save", "failed to replace session file", err)
	}
	return nil
}

// Delete removes the named session file. Deleting a missing session is not
// an error.
func (fs *FileStore) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if !fs.persist {
		return nil
	}
	if err := os.Remove(fs.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewSessionError(name, "Delete", "failed to delete session file", err)
	}
	return nil
}

// List returns the names of all stored sessions, sorted.
func (fs *FileStore) List() ([]string, error) {
	if !fs.persist {
		return nil, nil
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, NewSessionError("", "List", "failed to read session directory", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.dir, name+".yaml")
}

// validateName rejects names that would escape the store directory.
func validateName(name string) error {
	if name == "" {
		return NewSessionError("", "validateName", "session name cannot be empty", nil)
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return NewSessionError(name, "validateName",
			fmt.Sprintf("invalid session name: %s", name), nil)
	}
	return nil
}
