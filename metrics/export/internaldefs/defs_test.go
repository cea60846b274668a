package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{}
	ids := map[uint16]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "sphereauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		if ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
	}
}

func TestBoundsMatchSuffixes(t *testing.T) {
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatalf("expected 8 bounds, got %d and %d", len(HistogramBounds), len(HistogramBoundSuffix))
	}
	if HistogramBounds[len(HistogramBounds)-1] != "+Inf" {
		t.Fatal("last bound must be +Inf")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
