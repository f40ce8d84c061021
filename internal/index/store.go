package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"nas-tidy/internal/failure"
)

// Store persists an Index.
type Store interface {
	// Load returns the persisted index, or ok=false when there is none or it
	// cannot be read. Callers continue with an empty index in that case.
	Load() (idx Index, ok bool)
	// Save overwrites the backing store with idx in full.
	Save(idx Index) error
	// Location describes where the index lives, for messages.
	Location() string
	Close() error
}

// OpenStore opens the store for backend "json" or "sqlite" at path.
func OpenStore(backend, path string, logger *log.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "json":
		return NewJSONStore(path, logger), nil
	case "sqlite":
		return NewSQLiteStore(path, logger)
	}
	return nil, failure.New(failure.Config, "open store", path, fmt.Errorf("unknown index backend %q", backend))
}

// JSONStore keeps the index as a flat JSON list of records in one file.
type JSONStore struct {
	path   string
	logger *log.Logger
}

func NewJSONStore(path string, logger *log.Logger) *JSONStore {
	if logger == nil {
		logger = log.Default()
	}
	return &JSONStore{path: path, logger: logger}
}

func (s *JSONStore) Location() string { return s.path }

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) Load() (Index, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Printf("index file does not exist: %s", s.path)
		} else {
			s.logger.Printf("%v", failure.New(failure.Persistence, "load", s.path, err))
		}
		return nil, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Index{}, true
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Printf("%v", failure.New(failure.Persistence, "parse", s.path, err))
		return nil, false
	}
	if idx == nil {
		idx = Index{}
	}
	return idx, true
}

// Save writes to a temporary file next to the index and renames it over the
// old one, so readers never see a half written list.
func (s *JSONStore) Save(idx Index) error {
	if idx == nil {
		idx = Index{}
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return failure.New(failure.Persistence, "save", s.path, err)
		}
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return failure.New(failure.Persistence, "encode", s.path, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return failure.New(failure.Persistence, "save", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return failure.New(failure.Persistence, "save", s.path, err)
	}
	return nil
}
