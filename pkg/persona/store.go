package persona

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is the filesystem surface the document store needs. RemoveAll is
// only used by deletion.
type FS interface {
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	RemoveAll(path string) error
}

// OSFS is the local filesystem.
type OSFS struct{}

func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OSFS) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }
func (OSFS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFS) RemoveAll(path string) error                { return os.RemoveAll(path) }

// SkillsDir is where persona directories live below a scope root.
var SkillsDir = filepath.Join(".claude", "skills")

// Store gives read access to persona documents, hiding how scopes map to
// directories.
type Store struct {
	fsys  FS
	roots map[Scope]string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFS replaces the filesystem implementation.
func WithFS(fsys FS) StoreOption {
	return func(s *Store) { s.fsys = fsys }
}

// NewStore creates a document store. localRoot is the project root and
// userRoot the user's home directory.
func NewStore(localRoot, userRoot string, opts ...StoreOption) *Store {
	s := &Store{
		fsys: OSFS{},
		roots: map[Scope]string{
			ScopeLocal: localRoot,
			ScopeUser:  userRoot,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScopeDir returns the skills directory of a scope.
func (s *Store) ScopeDir(scope Scope) (string, error) {
	root, ok := s.roots[scope]
	if !ok {
		return "", fmt.Errorf("persona: unknown scope %q", scope)
	}
	if root == "" {
		return "", fmt.Errorf("persona: no root configured for scope %q", scope)
	}
	abs, err := filepath.Abs(filepath.Join(root, SkillsDir))
	if err != nil {
		return "", fmt.Errorf("persona: abs dir: %w", err)
	}
	return abs, nil
}

// Dir returns the persona directory for archetype under a rule.
func (s *Store) Dir(rule Rule, archetype string) (string, error) {
	if !ValidArchetype(archetype) {
		return "", fmt.Errorf("%w: %q", ErrInvalidArchetype, archetype)
	}
	base, err := s.ScopeDir(rule.Scope)
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(base, rule.Convention.DirName(archetype))
	if !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("persona: path traversal detected for archetype %q", archetype)
	}
	return resolved, nil
}

// Path returns the document path for archetype under a rule.
func (s *Store) Path(rule Rule, archetype string) (string, error) {
	dir, err := s.Dir(rule, archetype)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, rule.Convention.File), nil
}

// Exists reports whether path is a regular file.
func (s *Store) Exists(path string) bool {
	info, err := s.fsys.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Read returns the raw document at path.
func (s *Store) Read(path string) ([]byte, error) {
	b, err := s.fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	return b, nil
}

// Entries lists the directory names directly under a scope's skills
// directory. A missing directory has no entries.
func (s *Store) Entries(scope Scope) ([]string, error) {
	dir, err := s.ScopeDir(scope)
	if err != nil {
		return nil, err
	}
	entries, err := s.fsys.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persona: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
			continue
		}
		// Symlinked persona directories are common for shared collections.
		if e.Type()&fs.ModeSymlink != 0 {
			if info, err := s.fsys.Stat(filepath.Join(dir, e.Name())); err == nil && info.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	return names, nil
}

// Remove deletes a persona directory. The directory must sit directly in
// one of the scope skills directories.
func (s *Store) Remove(dir string) error {
	parent := filepath.Dir(dir)
	for _, scope := range Scopes {
		base, err := s.ScopeDir(scope)
		if err != nil {
			continue
		}
		if parent == base {
			if err := s.fsys.RemoveAll(dir); err != nil {
				return fmt.Errorf("persona: remove %s: %w", dir, err)
			}
			return nil
		}
	}
	return fmt.Errorf("persona: refusing to remove %s outside the skills directories", dir)
}
