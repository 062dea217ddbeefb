package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// DefaultStorePath is the flat-file store location relative to the
// process working directory.
const DefaultStorePath = "tasks_results.json"

// Store persists job records in a single JSON file mapping job id to
// record. Every read-modify-write cycle holds the store mutex, so
// concurrent pollers and tool calls cannot interleave lost updates.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the file at path. The file does
// not need to exist; an absent file reads as an empty store.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultStorePath
	}
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns a snapshot of all records.
func (s *Store) Load() (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Get returns a single record and whether it exists.
func (s *Store) Get(jobID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[jobID]
	return rec, ok, nil
}

// Count returns the number of records, used to derive sequential
// request identifiers for new submissions.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Put writes a record under jobID, replacing any existing one.
func (s *Store) Put(jobID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	records[jobID] = rec
	return s.saveLocked(records)
}

// Update applies fn to the full record map under the store mutex and
// persists the outcome. fn returning an error aborts without writing.
func (s *Store) Update(fn func(records map[string]Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(records); err != nil {
		return err
	}
	return s.saveLocked(records)
}

func (s *Store) loadLocked() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task store: %w", err)
	}

	records := make(map[string]Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse task store: %w", err)
	}
	return records, nil
}

func (s *Store) saveLocked(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode task store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write task store: %w", err)
	}
	return nil
}
