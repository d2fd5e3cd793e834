package overrides

import "sync"

// EditState tags one editable field of one bin.
type EditState string

const (
	StateIdle    EditState = "idle"
	StateEditing EditState = "editing"
	StateSaving  EditState = "saving"
	StateError   EditState = "error"
)

// Override is a locally held, unconfirmed value for one field of one bin.
// It exists only while an edit session is open or a write is in flight or
// has failed; the remote store stays authoritative for everything else.
type Override struct {
	Value string
	State EditState
	Err   string
}

// Key identifies at most one override: (bin, field).
type Key struct {
	BinID string
	Field string
}

// Store is the in-memory override map. The mutation pipeline is the only
// writer; the compositor reads copied snapshots. Nothing here is persisted.
type Store struct {
	mu sync.RWMutex
	m  map[Key]Override
}

func New() *Store {
	return &Store{m: make(map[Key]Override)}
}

// Set records the override for (binID, field), replacing any prior entry.
// Edits are never queued: one override per pair.
func (s *Store) Set(binID, field string, o Override) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[Key{BinID: binID, Field: field}] = o
}

func (s *Store) Get(binID, field string) (Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.m[Key{BinID: binID, Field: field}]
	return o, ok
}

func (s *Store) Clear(binID, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, Key{BinID: binID, Field: field})
}

// Snapshot returns a copy of the current override map for composition.
func (s *Store) Snapshot() map[Key]Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]Override, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
