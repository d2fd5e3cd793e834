// Package dashboard runs the state-reconciliation and mutation pipeline:
// one store subscription feeding snapshots in, an override map holding
// unconfirmed edits, and the operations the rendering layer calls to mutate
// a bin. Remote snapshots stay authoritative; an override only shadows a
// field while its write is pending or failed.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/binstore"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/model"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/observability"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/overrides"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/view"
)

var (
	// ErrBusy rejects an edit while a write for the same field is still in
	// flight. In-flight writes cannot be aborted, so accepting a second
	// value would risk a lost update.
	ErrBusy = errors.New("a save for this field is already in flight")

	ErrUnknownBin    = errors.New("unknown bin")
	ErrNotEditing    = errors.New("no height edit in progress")
	ErrInvalidHeight = errors.New("bin height must be a non-negative number")
)

// ViewListener receives the freshly composed view map after every snapshot
// or override change.
type ViewListener func(map[string]view.Record)

// Controller owns the subscription lifecycle, the override store, and all
// mutations. Mutations for different bins or fields never block one
// another; the per-field edit states are the only coordination.
type Controller struct {
	store binstore.Store
	ov    *overrides.Store

	mu        sync.Mutex
	snap      model.Snapshot
	snapAt    time.Time
	sub       *binstore.Subscription
	listeners []ViewListener
}

func New(store binstore.Store) *Controller {
	return &Controller{
		store: store,
		ov:    overrides.New(),
		snap:  model.Snapshot{},
	}
}

// OnViewChange registers a listener. Register before Start so the initial
// snapshot is not missed.
func (c *Controller) OnViewChange(fn ViewListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start opens the store subscription. The subscription lives until Stop.
func (c *Controller) Start(ctx context.Context) error {
	sub, err := c.store.Subscribe(ctx, c.onSnapshot)
	if err != nil {
		return fmt.Errorf("open bin subscription: %w", err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return nil
}

func (c *Controller) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (c *Controller) onSnapshot(snap model.Snapshot) {
	observability.SnapshotsReceived.Inc()

	c.mu.Lock()
	c.snap = snap.Clone()
	c.snapAt = time.Now().UTC()
	c.mu.Unlock()

	c.reconcileOverrides(snap)
	c.notify()
}

// reconcileOverrides clears any pending or failed override whose remote
// value now equals the pending one: the write (ours or another viewer's)
// landed, so the store is authoritative again. Open edit sessions are left
// alone so a coincidental match never closes the user's editor.
func (c *Controller) reconcileOverrides(snap model.Snapshot) {
	for key, o := range c.ov.Snapshot() {
		if o.State == overrides.StateEditing {
			continue
		}
		rec, ok := snap[key.BinID]
		if !ok {
			c.ov.Clear(key.BinID, key.Field)
			continue
		}
		if remoteFieldValue(rec, key.Field) == o.Value {
			c.ov.Clear(key.BinID, key.Field)
		}
	}
}

func remoteFieldValue(rec model.BinRecord, field string) string {
	switch field {
	case model.FieldStatus:
		return strconv.FormatBool(rec.Status)
	case model.FieldBinHeight:
		return rec.BinHeight
	default:
		return ""
	}
}

// Views returns the current composed view map.
func (c *Controller) Views() map[string]view.Record {
	snap, ov := c.state()
	return view.Compose(snap, ov)
}

// View returns the composed record for one bin.
func (c *Controller) View(binID string) (view.Record, bool) {
	snap, ov := c.state()
	rec, ok := snap[binID]
	if !ok {
		return view.Record{}, false
	}
	single := model.Snapshot{binID: rec}
	return view.Compose(single, ov)[binID], true
}

// LastSnapshotAt reports when the subscription last delivered. The rendering
// layer uses it to flag stale data; the core does not detect or retry a
// silently dropped feed.
func (c *Controller) LastSnapshotAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapAt
}

func (c *Controller) state() (model.Snapshot, map[overrides.Key]overrides.Override) {
	c.mu.Lock()
	snap := c.snap.Clone()
	c.mu.Unlock()
	return snap, c.ov.Snapshot()
}

func (c *Controller) notify() {
	views := c.Views()
	c.mu.Lock()
	listeners := make([]ViewListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(views)
	}
}

// ToggleStatus flips a bin's power state. The flipped value is shown
// optimistically while the partial write is in flight; on failure the view
// reverts to the confirmed value and the error is surfaced once, both on
// the field and to the caller.
func (c *Controller) ToggleStatus(ctx context.Context, binID string) error {
	c.mu.Lock()
	rec, ok := c.snap[binID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("toggle status for %q: %w", binID, ErrUnknownBin)
	}
	if o, found := c.ov.Get(binID, model.FieldStatus); found && o.State == overrides.StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("toggle status for %q: %w", binID, ErrBusy)
	}
	prior := rec.Status
	next := !prior
	c.ov.Set(binID, model.FieldStatus, overrides.Override{
		Value: strconv.FormatBool(next),
		State: overrides.StateSaving,
	})
	c.mu.Unlock()
	c.notify()

	err := c.store.Update(ctx, binID, map[string]any{model.FieldStatus: next})
	if err != nil {
		// Revert: show the confirmed value again, keep an error tag on the
		// field so the rejection is visible. The next snapshot clears it.
		c.ov.Set(binID, model.FieldStatus, overrides.Override{
			Value: strconv.FormatBool(prior),
			State: overrides.StateError,
			Err:   err.Error(),
		})
		c.notify()
		observability.StoreWrites.WithLabelValues(model.FieldStatus, "error").Inc()
		slog.Warn("status write rejected", "bin_id", binID, "error", err)
		return fmt.Errorf("toggle status for %q: %w", binID, err)
	}

	c.ov.Clear(binID, model.FieldStatus)
	c.notify()
	observability.StoreWrites.WithLabelValues(model.FieldStatus, "ok").Inc()
	slog.Info("status toggled", "bin_id", binID, "status", next)
	return nil
}

// BeginEditHeight opens a height edit session seeded with the last known
// remote value, or with the preserved pending value when retrying after a
// failed save.
func (c *Controller) BeginEditHeight(binID string) error {
	c.mu.Lock()
	rec, ok := c.snap[binID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("edit height for %q: %w", binID, ErrUnknownBin)
	}
	candidate := rec.BinHeight
	if o, found := c.ov.Get(binID, model.FieldBinHeight); found {
		if o.State == overrides.StateSaving {
			c.mu.Unlock()
			return fmt.Errorf("edit height for %q: %w", binID, ErrBusy)
		}
		candidate = o.Value
	}
	c.ov.Set(binID, model.FieldBinHeight, overrides.Override{
		Value: candidate,
		State: overrides.StateEditing,
	})
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetHeightCandidate updates the uncommitted candidate value of an open
// edit session. No remote write happens until SubmitHeight.
func (c *Controller) SetHeightCandidate(binID, value string) error {
	c.mu.Lock()
	o, found := c.ov.Get(binID, model.FieldBinHeight)
	if !found || o.State == overrides.StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("set height for %q: %w", binID, ErrNotEditing)
	}
	if o.State == overrides.StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("set height for %q: %w", binID, ErrBusy)
	}
	c.ov.Set(binID, model.FieldBinHeight, overrides.Override{
		Value: value,
		State: overrides.StateEditing,
	})
	c.mu.Unlock()
	c.notify()
	return nil
}

// SubmitHeight commits the candidate: the override freezes in Saving and a
// partial write goes out. Success clears the override; failure drops back
// to Editing with the pending value intact so the user can retry or cancel.
func (c *Controller) SubmitHeight(ctx context.Context, binID string) error {
	c.mu.Lock()
	o, found := c.ov.Get(binID, model.FieldBinHeight)
	if !found {
		c.mu.Unlock()
		return fmt.Errorf("save height for %q: %w", binID, ErrNotEditing)
	}
	if o.State == overrides.StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("save height for %q: %w", binID, ErrBusy)
	}
	if h, err := strconv.ParseFloat(o.Value, 64); err != nil || h < 0 {
		c.ov.Set(binID, model.FieldBinHeight, overrides.Override{
			Value: o.Value,
			State: overrides.StateEditing,
			Err:   ErrInvalidHeight.Error(),
		})
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("save height for %q: %w", binID, ErrInvalidHeight)
	}
	pending := o.Value
	c.ov.Set(binID, model.FieldBinHeight, overrides.Override{
		Value: pending,
		State: overrides.StateSaving,
	})
	c.mu.Unlock()
	c.notify()

	err := c.store.Update(ctx, binID, map[string]any{model.FieldBinHeight: pending})
	if err != nil {
		c.ov.Set(binID, model.FieldBinHeight, overrides.Override{
			Value: pending,
			State: overrides.StateEditing,
			Err:   err.Error(),
		})
		c.notify()
		observability.StoreWrites.WithLabelValues(model.FieldBinHeight, "error").Inc()
		slog.Warn("height write rejected", "bin_id", binID, "error", err)
		return fmt.Errorf("save height for %q: %w", binID, err)
	}

	c.ov.Clear(binID, model.FieldBinHeight)
	c.notify()
	observability.StoreWrites.WithLabelValues(model.FieldBinHeight, "ok").Inc()
	slog.Info("height saved", "bin_id", binID, "height", pending)
	return nil
}

// CancelEditHeight discards the edit session; the view falls back to the
// last known remote value, not the typed candidate. A save already in
// flight cannot be cancelled.
func (c *Controller) CancelEditHeight(binID string) error {
	c.mu.Lock()
	o, found := c.ov.Get(binID, model.FieldBinHeight)
	if found && o.State == overrides.StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("cancel height edit for %q: %w", binID, ErrBusy)
	}
	if found {
		c.ov.Clear(binID, model.FieldBinHeight)
	}
	c.mu.Unlock()
	if found {
		c.notify()
	}
	return nil
}
