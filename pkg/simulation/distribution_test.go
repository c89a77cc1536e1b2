package simulation

import (
	"math"
	"testing"
)

func TestOpinionDistribution_Update(t *testing.T) {
	d := NewOpinionDistribution([]uint64{3, 2, 0})

	if got := d.Update(0, 2); got != 1 {
		t.Errorf("expected new count 1, got %d", got)
	}
	if got := d.Update(1, 0); got != 3 {
		t.Errorf("expected new count 3, got %d", got)
	}
	if d.Count(0) != 3 || d.Count(1) != 1 || d.Count(2) != 1 {
		t.Errorf("unexpected counts %v", d.Snapshot().Counts)
	}
	if d.Total() != d.N() {
		t.Errorf("expected total %d, got %d", d.N(), d.Total())
	}
}

func TestOpinionDistribution_HasConsensus(t *testing.T) {
	tests := []struct {
		name   string
		counts []uint64
		want   bool
	}{
		{"split", []uint64{2, 2}, false},
		{"all on one", []uint64{0, 4, 0}, true},
		{"single opinion", []uint64{9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewOpinionDistribution(tt.counts).HasConsensus(); got != tt.want {
				t.Errorf("HasConsensus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpinionDistribution_Entropy(t *testing.T) {
	tests := []struct {
		name   string
		counts []uint64
		want   float64
	}{
		{"consensus", []uint64{0, 10, 0}, 0},
		{"single opinion phase", []uint64{10}, 0},
		{"even two", []uint64{5, 5}, 1},
		{"even four", []uint64{3, 3, 3, 3}, 1},
		{"skewed", []uint64{3, 1}, -(0.75*math.Log2(0.75) + 0.25*math.Log2(0.25))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewOpinionDistribution(tt.counts).Entropy()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Entropy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpinionDistribution_SnapshotIsOwned(t *testing.T) {
	d := NewOpinionDistribution([]uint64{1, 1})
	snap := d.Snapshot()
	d.Update(0, 1)

	if snap.Counts[0] != 1 || snap.Counts[1] != 1 {
		t.Errorf("snapshot changed with the distribution: %v", snap.Counts)
	}
}

// -----------------------------------------------------------------------------
// EntropyTracker Tests
// -----------------------------------------------------------------------------

func TestEntropyTracker_AveragesOverPhases(t *testing.T) {
	tracker := NewEntropyTracker()

	// Phase one reaches checkpoints 0 and 4.
	tracker.BeginPhase()
	d := NewOpinionDistribution([]uint64{2, 2})
	tracker.Observe(d, 4)
	for i := 0; i < 4; i++ {
		d.RecordInteraction()
		if i < 3 && tracker.Observe(d, 4) {
			t.Fatalf("unexpected checkpoint at %d", d.InteractionCount())
		}
	}
	d.Update(1, 0)
	d.Update(1, 0)
	if !tracker.Observe(d, 4) {
		t.Fatal("expected checkpoint at 4")
	}

	// Phase two only reaches checkpoint 0.
	tracker.BeginPhase()
	tracker.Observe(NewOpinionDistribution([]uint64{2, 2}), 4)

	curve := tracker.Curve()
	if curve.Phases != 2 {
		t.Fatalf("expected 2 phases, got %d", curve.Phases)
	}
	if len(curve.Points) != 2 {
		t.Fatalf("expected 2 checkpoints, got %v", curve.Points)
	}
	if at0, _ := curve.Value(0); math.Abs(at0-1) > 1e-9 {
		t.Errorf("expected averaged entropy 1 at 0, got %v", at0)
	}
	if at4, ok := curve.Value(4); !ok || at4 != 0 {
		t.Errorf("expected entropy 0 at 4, got %v (%v)", at4, ok)
	}
	if curve.Points[0].Hits != 2 || curve.Points[1].Hits != 1 {
		t.Errorf("unexpected hits %+v", curve.Points)
	}
	if _, ok := curve.Value(2); ok {
		t.Error("expected no checkpoint at 2")
	}
}

func TestEntropyCurve_CoveredMean(t *testing.T) {
	curve := EntropyCurve{
		Phases: 4,
		Points: []EntropyPoint{
			{Interactions: 0, Entropy: 1, Hits: 4},
			{Interactions: 10, Entropy: 0.25, Hits: 2},
		},
	}
	covered := curve.CoveredMean()
	if covered[0].Entropy != 1 {
		t.Errorf("expected fully covered point unchanged, got %v", covered[0].Entropy)
	}
	if covered[1].Entropy != 0.5 {
		t.Errorf("expected 0.25*4/2 = 0.5, got %v", covered[1].Entropy)
	}
	if curve.Points[1].Entropy != 0.25 {
		t.Error("CoveredMean must not modify the curve")
	}
}

func TestPlot(t *testing.T) {
	var p Plot
	p.Append(2, 10)
	p.Append(3, 25)
	clone := p.Clone()
	p.Append(4, 40)

	if clone.Len() != 2 || p.Len() != 3 {
		t.Errorf("expected clone to be independent, got %d and %d", clone.Len(), p.Len())
	}
	if got, ok := p.Interactions(3); !ok || got != 25 {
		t.Errorf("Interactions(3) = %d, %v", got, ok)
	}
}
