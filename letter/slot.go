package letter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrEmptySlot = errors.New("no letter in progress")
	// ErrStale is returned when a caller holds an ID that is no longer in the slot.
	ErrStale = errors.New("letter was replaced by a newer recording")
)

// Slot holds the one in-flight letter. The orchestrator writes it; the review
// workflow mutates it by ID. With a path set, every change is written through
// to a JSON file so a later process can resume review.
type Slot struct {
	mu     sync.Mutex
	path   string
	record *Record
}

func NewSlot() *Slot {
	return &Slot{}
}

// OpenSlot returns a slot persisted at path, loading any record already there.
func OpenSlot(path string) (*Slot, error) {
	s := &Slot{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("reading letter slot %s: %w", path, err)
	}
	s.record = &r
	return s, nil
}

// Store replaces whatever is in the slot. If an unsent record is overwritten
// it is returned so the caller can warn about it.
func (s *Slot) Store(r Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.record
	if err := s.persist(&r); err != nil {
		return nil, err
	}
	s.record = &r
	if prev != nil && !prev.Sent && prev.ID != r.ID {
		return prev, nil
	}
	return nil, nil
}

// Load returns a copy of the current record.
func (s *Slot) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, ErrEmptySlot
	}
	return *s.record, nil
}

// Get returns the record only if it still carries id.
func (s *Slot) Get(id ID) (Record, error) {
	r, err := s.Load()
	if err != nil {
		return Record{}, err
	}
	if r.ID != id {
		return Record{}, ErrStale
	}
	return r, nil
}

// Update applies fn to the record with the given id. The change is discarded
// if fn returns an error or persisting fails.
func (s *Slot) Update(id ID, fn func(*Record) error) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, ErrEmptySlot
	}
	if s.record.ID != id {
		return Record{}, ErrStale
	}
	next := *s.record
	if err := fn(&next); err != nil {
		return Record{}, err
	}
	if err := s.persist(&next); err != nil {
		return Record{}, err
	}
	s.record = &next
	return next, nil
}

func (s *Slot) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Slot) persist(r *Record) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
