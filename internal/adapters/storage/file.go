package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// DefaultPath is used when no storage path is configured.
const DefaultPath = "./data/quotekeeper.toml"

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// document is the on-disk layout of the durable store.
type document struct {
	Entries map[string]string `toml:"entries"`
}

// FileStore is a durable KeyValueStore backed by a single TOML file.
// The file is re-read on every access so that a CLI invocation and a
// running service observe each other's writes.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// Compile-time interface checks.
var (
	_ ports.KeyValueStore = (*FileStore)(nil)
	_ ports.HealthChecker = (*FileStore)(nil)
)

// NewFileStore creates a FileStore at path, creating parent directories.
// The file itself is created lazily on the first write.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving storage path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), dirPerm); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}

	return &FileStore{path: resolved}, nil
}

// Path returns the absolute file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key or domain.ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	value, ok := doc.Entries[key]
	if !ok {
		return nil, domain.NewNotFoundError("key", key)
	}

	return []byte(value), nil
}

// Set overwrites key and rewrites the document atomically.
// Values must be valid UTF-8, and an unreadable document is never overwritten.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !utf8.Valid(value) {
		return domain.NewValidationError("value", "must be valid UTF-8")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}

	doc.Entries[key] = string(value)

	return s.write(doc)
}

// Delete removes key. Missing keys are not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	if _, ok := doc.Entries[key]; !ok {
		return nil
	}

	delete(doc.Entries, key)

	return s.write(doc)
}

// Name implements ports.HealthChecker.
func (s *FileStore) Name() string {
	return "durable-store"
}

// Check verifies the document decodes and the storage directory accepts writes.
func (s *FileStore) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	_, err := s.read()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	probe, err := os.CreateTemp(filepath.Dir(s.path), tempFilePrefix+"probe-*")
	if err != nil {
		return fmt.Errorf("storage dir not writable: %w", err)
	}

	name := probe.Name()
	_ = probe.Close()

	return os.Remove(name)
}

func (s *FileStore) read() (document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document{}, nil
		}

		return document{}, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var doc document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("decoding %s: %w", s.path, err)
	}

	return doc, nil
}

func (s *FileStore) write(doc document) error {
	raw, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	return writeFileAtomic(s.path, raw, filePerm)
}
