package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/persona/pkg/logging"
)

// Store persists the state table. Implementations read and write the whole
// document; there is no partial update.
type Store interface {
	// Read returns the current table. A corrupt document reads as empty.
	Read(ctx context.Context) (*Table, error)

	// Write replaces the document. An empty table removes it.
	Write(ctx context.Context, t *Table) error

	// Update reads the table, applies fn and writes the result unless fn
	// fails or leaves the table unchanged.
	Update(ctx context.Context, fn func(*Table) error) error
}

// FileStore keeps the table in a JSON file.
//
// Update holds an advisory lock on a sibling ".lock" file so concurrent
// invocations do not lose each other's changes. With WithoutLock the store
// is last-writer-wins.
type FileStore struct {
	path string
	lock bool
	log  *logging.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithoutLock disables cross-process locking.
func WithoutLock() FileStoreOption {
	return func(s *FileStore) { s.lock = false }
}

// WithLogger sets the logger used for recovered errors.
func WithLogger(l *logging.Logger) FileStoreOption {
	return func(s *FileStore) { s.log = l }
}

// NewFileStore creates a store for the document at path.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{path: path, lock: true, log: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads the table from disk.
func (s *FileStore) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	return decode(raw, s.log), nil
}

// Write saves the table atomically, or removes the file when the table is
// empty.
func (s *FileStore) Write(ctx context.Context, t *Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Empty() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("session: remove %s: %w", s.path, err)
		}
		return nil
	}

	data, err := encode(t)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("session: create state directory: %w", err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("session: create temp state file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("session: write temp state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("session: close temp state file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("session: rename temp state file: %w", err)
	}
	return nil
}

// Update performs a locked read-modify-write.
func (s *FileStore) Update(ctx context.Context, fn func(*Table) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.lock {
		if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
			return fmt.Errorf("session: create state directory: %w", err)
		}
		unlock, err := lockFile(s.path + ".lock")
		if err != nil {
			s.log.Warnf("state lock unavailable, continuing unlocked: %v", err)
		} else {
			defer unlock()
		}
	}
	return update(ctx, s, fn)
}

// MemoryStore keeps the encoded document in memory. It behaves like
// FileStore, including the handling of corrupt documents.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
	log  *logging.Logger
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{log: logging.Discard()}
}

// Read decodes the stored document.
func (m *MemoryStore) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(), nil
}

func (m *MemoryStore) read() *Table {
	if m.data == nil {
		return NewTable()
	}
	return decode(m.data, m.log)
}

// Write encodes t, or drops the document when t is empty.
func (m *MemoryStore) Write(ctx context.Context, t *Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(t)
}

func (m *MemoryStore) write(t *Table) error {
	if t.Empty() {
		m.data = nil
		return nil
	}
	data, err := encode(t)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// Update applies fn under the store's mutex.
func (m *MemoryStore) Update(ctx context.Context, fn func(*Table) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.read()
	before, err := encode(t)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	after, err := encode(t)
	if err != nil {
		return err
	}
	if bytes.Equal(before, after) {
		return nil
	}
	return m.write(t)
}

// Raw returns the stored document, or nil when there is none.
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// SetRaw replaces the stored document verbatim.
func (m *MemoryStore) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

func update(ctx context.Context, s Store, fn func(*Table) error) error {
	t, err := s.Read(ctx)
	if err != nil {
		return err
	}
	before, err := encode(t)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	after, err := encode(t)
	if err != nil {
		return err
	}
	if bytes.Equal(before, after) {
		return nil
	}
	return s.Write(ctx, t)
}

func encode(t *Table) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("session: encode state: %w", err)
	}
	return data, nil
}

func decode(raw []byte, log *logging.Logger) *Table {
	if len(bytes.TrimSpace(raw)) == 0 {
		return NewTable()
	}
	t := NewTable()
	if err := json.Unmarshal(raw, t); err != nil {
		log.Warnf("state document is corrupt, starting fresh: %v", err)
		return NewTable()
	}
	if dropped := t.Dropped(); len(dropped) > 0 {
		log.Warnf("dropped %d unreadable state entries: %v", len(dropped), dropped)
	}
	return t
}
