// Package binstore is the boundary to the remotely hosted bin collection.
// The store owns the authoritative record for every bin; this package only
// exposes the two primitives the dashboard needs: subscribe to the whole
// collection (full replacement snapshot on every change) and apply a partial
// field update to one bin.
package binstore

import (
	"context"
	"errors"
	"sync"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/model"
)

// ErrClosed is returned by Update after the store has been shut down.
var ErrClosed = errors.New("binstore: closed")

// SnapshotFunc receives the full bin collection. It is invoked once with the
// current state immediately after subscribing and again after every change,
// always with a complete replacement; callers must not assume deltas.
type SnapshotFunc func(model.Snapshot)

// Store is the remote bin collection.
type Store interface {
	// Subscribe opens a long-lived subscription for the life of the view.
	// The returned Subscription must be closed on teardown.
	Subscribe(ctx context.Context, fn SnapshotFunc) (*Subscription, error)

	// Update applies a partial write: only the named fields of the named
	// bin are touched, sibling fields and other bins are left alone.
	// Concurrent writers are last-write-wins at the store.
	Update(ctx context.Context, binID string, fields map[string]any) error
}

// Subscription is a handle to one open collection subscription.
type Subscription struct {
	once    sync.Once
	closeFn func()
}

func newSubscription(closeFn func()) *Subscription {
	return &Subscription{closeFn: closeFn}
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}
