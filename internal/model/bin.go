package model

import (
	"strconv"
	"strings"
)

// Editable field names as they appear on the wire. Writes to the bin store
// are keyed by these.
const (
	FieldStatus    = "status"
	FieldBinHeight = "binHeight"
)

// FillTier is the color classification of a bin's fill level.
type FillTier string

const (
	TierNormal   FillTier = "normal"   // < 50%
	TierWarning  FillTier = "warning"  // 50-79%
	TierCritical FillTier = "critical" // >= 80%
)

// FullThreshold is the fill percentage at and above which the full-bin
// banner is raised. Independent of the color tier.
const FullThreshold = 95

// BinRecord is one device's record in the remote bin store. The store is
// authoritative for every field; the devices report the sensor fields,
// viewers configure status and binHeight.
type BinRecord struct {
	ID             string `json:"id"`
	Status         bool   `json:"status"`
	BinFilled      string `json:"binFilled"`
	BinLidSensor   string `json:"binLidSensor"`
	BinStoreSensor string `json:"binStoreSensor"`
	Lid            string `json:"lid"`
	LidDistance    string `json:"lidDistance"`
	Servo          string `json:"servo"`
	BinHeight      string `json:"binHeight,omitempty"`
}

// Snapshot is a full point-in-time view of the bin collection, keyed by bin
// ID. Every delivery replaces all prior knowledge; there are no deltas.
type Snapshot map[string]BinRecord

// Clone returns a deep copy so callbacks can hold on to a snapshot without
// racing later store writes.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, rec := range s {
		out[id] = rec
	}
	return out
}

// ParseFillPercent parses a reported binFilled value into a percentage
// clamped to [0,100]. Devices report plain integers but the store does not
// validate, so a trailing percent sign is tolerated and anything unparseable
// degrades to 0 with ok=false rather than failing the whole snapshot.
func ParseFillPercent(raw string) (pct int, ok bool) {
	v := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	if n < 0 {
		return 0, true
	}
	if n > 100 {
		return 100, true
	}
	return n, true
}

// TierFor classifies a clamped fill percentage into its color tier.
func TierFor(pct int) FillTier {
	switch {
	case pct < 50:
		return TierNormal
	case pct < 80:
		return TierWarning
	default:
		return TierCritical
	}
}

// IsFull reports whether the full-bin banner should be shown. This is a
// separate signal from the color tier: a bin can be critical (>= 80) without
// being full (>= 95).
func IsFull(pct int) bool {
	return pct >= FullThreshold
}
