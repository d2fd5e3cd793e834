package binstore

import (
	"context"
	"sync"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/model"
)

// Memory is an in-process Store with the same snapshot-on-every-change
// semantics as the Redis-backed one. Used by tests and local development
// without a Redis instance.
type Memory struct {
	mu     sync.Mutex
	bins   map[string]map[string]string
	subs   map[int]SnapshotFunc
	nextID int
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		bins: make(map[string]map[string]string),
		subs: make(map[int]SnapshotFunc),
	}
}

func (m *Memory) Subscribe(_ context.Context, fn SnapshotFunc) (*Subscription, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	snap := m.snapshotLocked()
	m.mu.Unlock()

	// Initial state delivery, same as the remote store does on attach.
	fn(snap)

	return newSubscription(func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}), nil
}

func (m *Memory) Update(_ context.Context, binID string, fields map[string]any) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	rec, ok := m.bins[binID]
	if !ok {
		rec = make(map[string]string)
		m.bins[binID] = rec
	}
	for k, v := range fields {
		rec[k] = fieldString(v)
	}
	snap := m.snapshotLocked()
	fns := make([]SnapshotFunc, 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return nil
}

// Close stops accepting writes and drops all subscribers.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[int]SnapshotFunc)
}

func (m *Memory) snapshotLocked() model.Snapshot {
	snap := make(model.Snapshot, len(m.bins))
	for id, fields := range m.bins {
		snap[id] = recordFromFields(id, fields)
	}
	return snap
}
