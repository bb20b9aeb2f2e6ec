package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spacemeshos/auditor/shared"
)

// Backend persists whole-store snapshots.
type Backend interface {
	Load() (map[string]*shared.HostRecord, error)
	Save(records map[string]*shared.HostRecord) error
	Close() error
}

// ErrPersist wraps failures to write the store after a mutation was applied in memory.
var ErrPersist = errors.New("persisting store")

// Store maps host identifiers to their records.
// A single mutex serializes every read, mutation and persist.
type Store struct {
	mu      sync.Mutex
	records map[string]*shared.HostRecord
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{
		records: make(map[string]*shared.HostRecord),
		backend: backend,
	}
}

// Get returns a copy of the record stored for hostID.
func (s *Store) Get(hostID string) (shared.HostRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hostID]
	if !ok {
		return shared.HostRecord{}, false
	}
	return rec.Clone(), true
}

// Put replaces the record stored for hostID.
func (s *Store) Put(hostID string, rec shared.HostRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := rec.Clone()
	s.records[hostID] = &clone
}

// UpdateFunc receives the current record, or nil if the host is unknown, and
// returns the record to store. Returning an error leaves the store untouched,
// so an UpdateFunc must not mutate rec before deciding to fail.
type UpdateFunc func(rec *shared.HostRecord) (*shared.HostRecord, error)

// Update applies fn to the record of hostID and persists the whole store,
// all under one lock.
func (s *Store) Update(hostID string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := fn(s.records[hostID])
	if err != nil {
		return err
	}
	s.records[hostID] = updated

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Len returns the number of known hosts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Persist writes the complete store to the backend.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	start := time.Now()
	err := s.backend.Save(s.records)
	persistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		persistFailures.Inc()
	}
	return err
}

// Restore replaces the in-memory store with the backend's contents.
// An empty backend restores an empty store.
func (s *Store) Restore() error {
	records, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("restoring store: %w", err)
	}
	if records == nil {
		records = make(map[string]*shared.HostRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	hostsRestored.Set(float64(len(records)))
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
