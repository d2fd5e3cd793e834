// Package view derives the render-ready representation of every bin from
// the latest remote snapshot merged with any in-flight local overrides.
// Composition is pure: identical inputs always produce identical output,
// and nothing here mutates the snapshot or the override map.
package view

import (
	"strconv"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/model"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/overrides"
)

// FieldState describes the edit lifecycle of one editable field.
type FieldState struct {
	State   overrides.EditState `json:"state"`
	Pending string              `json:"pending,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func idleField() FieldState {
	return FieldState{State: overrides.StateIdle}
}

// Record is the composed, immutable view of one bin. Handed by value to the
// rendering layer; never persisted.
type Record struct {
	ID                  string         `json:"id"`
	Status              bool           `json:"status"`
	StatusEdit          FieldState     `json:"statusEdit"`
	BinFilled           string         `json:"binFilled"`
	BinFilledPercentage int            `json:"binFilledPercentage"`
	FillTier            model.FillTier `json:"fillTier"`
	IsFull              bool           `json:"isFull"`
	BinLidSensor        string         `json:"binLidSensor"`
	BinStoreSensor      string         `json:"binStoreSensor"`
	Lid                 string         `json:"lid"`
	LidDistance         string         `json:"lidDistance"`
	Servo               string         `json:"servo"`
	BinHeight           string         `json:"binHeight,omitempty"`
	HeightEdit          FieldState     `json:"heightEdit"`
	DataQualityIssue    bool           `json:"dataQualityIssue,omitempty"`
}

// Compose merges a snapshot with the active overrides and produces one
// Record per bin present in the snapshot. A malformed record degrades that
// bin only; composition of the others is never affected.
func Compose(snap model.Snapshot, ov map[overrides.Key]overrides.Override) map[string]Record {
	out := make(map[string]Record, len(snap))
	for id, rec := range snap {
		out[id] = composeOne(id, rec, ov)
	}
	return out
}

func composeOne(id string, rec model.BinRecord, ov map[overrides.Key]overrides.Override) Record {
	pct, ok := model.ParseFillPercent(rec.BinFilled)

	v := Record{
		ID:                  id,
		Status:              rec.Status,
		StatusEdit:          idleField(),
		BinFilled:           rec.BinFilled,
		BinFilledPercentage: pct,
		FillTier:            model.TierFor(pct),
		IsFull:              model.IsFull(pct),
		BinLidSensor:        rec.BinLidSensor,
		BinStoreSensor:      rec.BinStoreSensor,
		Lid:                 rec.Lid,
		LidDistance:         rec.LidDistance,
		Servo:               rec.Servo,
		BinHeight:           rec.BinHeight,
		HeightEdit:          idleField(),
		DataQualityIssue:    !ok,
	}

	if o, found := ov[overrides.Key{BinID: id, Field: model.FieldStatus}]; found {
		if pending, err := strconv.ParseBool(o.Value); err == nil {
			v.Status = pending
		}
		v.StatusEdit = FieldState{State: o.State, Pending: o.Value, Error: o.Err}
	}

	if o, found := ov[overrides.Key{BinID: id, Field: model.FieldBinHeight}]; found {
		v.BinHeight = o.Value
		v.HeightEdit = FieldState{State: o.State, Pending: o.Value, Error: o.Err}
	}

	return v
}
