package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// Project is the per-project configuration document.
type Project struct {
	AutoLoad []string `json:"autoLoad,omitempty"`
}

// ProjectStore provides persistence for the project configuration.
// Unknown top-level keys are preserved across Save so that other tools
// sharing the file keep their settings.
type ProjectStore struct {
	path     string
	data     Project
	extra    map[string]json.RawMessage
	mu       sync.RWMutex
	modified bool
}

// NewProjectStore creates a store for the document at path. Nothing is
// read until Load is called.
func NewProjectStore(path string) *ProjectStore {
	return &ProjectStore{
		path:  path,
		extra: make(map[string]json.RawMessage),
	}
}

// Load reads the configuration from disk. A missing file yields an empty
// configuration. A document that cannot be parsed also leaves the store
// empty, and the parse error is returned so the caller can report it.
// Comments and trailing commas are accepted.
func (s *ProjectStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = Project{}
	s.extra = make(map[string]json.RawMessage)
	s.modified = false

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(raw), &fields); err != nil {
		return fmt.Errorf("config: decode %s: %w", s.path, err)
	}

	var project Project
	if autoLoad, ok := fields["autoLoad"]; ok {
		if err := json.Unmarshal(autoLoad, &project.AutoLoad); err != nil {
			return fmt.Errorf("config: decode autoLoad in %s: %w", s.path, err)
		}
		delete(fields, "autoLoad")
	}

	s.data = Project{AutoLoad: normalize(project.AutoLoad)}
	s.extra = fields
	return nil
}

// Save writes the configuration to disk atomically.
func (s *ProjectStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(s.extra)+1)
	for k, v := range s.extra {
		out[k] = v
	}
	out["autoLoad"] = append([]string{}, s.data.AutoLoad...)

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("config: create temp config file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("config: encode config: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("config: close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("config: rename temp file: %w", err)
	}

	s.modified = false
	return nil
}

// Project returns a copy of the loaded configuration.
func (s *ProjectStore) Project() Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Project{AutoLoad: append([]string(nil), s.data.AutoLoad...)}
}

// AutoLoad re-reads the document and returns the configured auto-load
// archetypes. The engine never caches configuration across calls.
func (s *ProjectStore) AutoLoad() ([]string, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s.Project().AutoLoad, nil
}

// AddAutoLoad appends archetypes that are not configured yet and returns
// the ones actually added.
func (s *ProjectStore) AddAutoLoad(archetypes ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, a := range normalize(archetypes) {
		if contains(s.data.AutoLoad, a) {
			continue
		}
		s.data.AutoLoad = append(s.data.AutoLoad, a)
		added = append(added, a)
	}
	if len(added) > 0 {
		s.modified = true
	}
	return added
}

// RemoveAutoLoad drops archetypes from the configuration and returns the
// ones actually removed.
func (s *ProjectStore) RemoveAutoLoad(archetypes ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := normalize(archetypes)
	var kept, removed []string
	for _, a := range s.data.AutoLoad {
		if contains(drop, a) {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	if len(removed) > 0 {
		s.data.AutoLoad = kept
		s.modified = true
	}
	return removed
}

// IsModified returns true if the store has unsaved changes.
func (s *ProjectStore) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Path returns the file path of the store.
func (s *ProjectStore) Path() string {
	return s.path
}

// normalize trims entries and drops blanks and duplicates, keeping order.
func normalize(in []string) []string {
	var out []string
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
