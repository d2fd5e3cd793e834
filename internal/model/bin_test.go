package model

import "testing"

func TestParseFillPercent(t *testing.T) {
	cases := []struct {
		raw string
		pct int
		ok  bool
	}{
		{"0", 0, true},
		{"97", 97, true},
		{"100", 100, true},
		{" 42 ", 42, true},
		{"73%", 73, true},
		{"120", 100, true},
		{"-5", 0, true},
		{"", 0, false},
		{"full", 0, false},
		{"12.5", 0, false},
	}
	for _, c := range cases {
		pct, ok := ParseFillPercent(c.raw)
		if pct != c.pct || ok != c.ok {
			t.Errorf("ParseFillPercent(%q) = (%d, %v), want (%d, %v)", c.raw, pct, ok, c.pct, c.ok)
		}
	}
}

func TestTierBoundaries(t *testing.T) {
	if got := TierFor(49); got != TierNormal {
		t.Errorf("TierFor(49) = %q, want normal", got)
	}
	if got := TierFor(50); got != TierWarning {
		t.Errorf("TierFor(50) = %q, want warning", got)
	}
	if got := TierFor(79); got != TierWarning {
		t.Errorf("TierFor(79) = %q, want warning", got)
	}
	if got := TierFor(80); got != TierCritical {
		t.Errorf("TierFor(80) = %q, want critical", got)
	}
}

func TestIsFullBoundary(t *testing.T) {
	for pct, want := range map[int]bool{0: false, 94: false, 95: true, 100: true} {
		if got := IsFull(pct); got != want {
			t.Errorf("IsFull(%d) = %v, want %v", pct, got, want)
		}
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := Snapshot{"bin-1": {ID: "bin-1", BinFilled: "10"}}
	c := s.Clone()
	c["bin-2"] = BinRecord{ID: "bin-2"}
	if _, ok := s["bin-2"]; ok {
		t.Fatal("clone mutation leaked into original")
	}
}
