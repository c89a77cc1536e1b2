package simulation

import (
	"testing"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

// sequenceSource returns the queued values modulo n, then zeros.
type sequenceSource struct {
	values []int
}

func (s *sequenceSource) IntN(n int) int {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v % n
}

func agentsOf(opinions ...Opinion) []Agent {
	agents := make([]Agent, len(opinions))
	for i, o := range opinions {
		agents[i] = Agent{Opinion: o}
	}
	return agents
}

// -----------------------------------------------------------------------------
// Majority Tests
// -----------------------------------------------------------------------------

func TestAgentUpdate_StrictMajorityWins(t *testing.T) {
	tests := []struct {
		name   string
		start  Opinion
		sample []Agent
		want   Opinion
	}{
		{"two of three", 0, agentsOf(1, 2, 1), 1},
		{"unanimous", 3, agentsOf(2, 2, 2, 2), 2},
		{"plurality", 0, agentsOf(4, 4, 4, 1, 1, 2, 3), 4},
		{"keeps own opinion", 5, agentsOf(5, 5, 1), 5},
		{"single peer", 0, agentsOf(7), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Agent{Opinion: tt.start}
			old, err := a.Update(tt.sample, &sequenceSource{values: []int{1, 2, 3}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if old != tt.start {
				t.Errorf("expected old opinion %d, got %d", tt.start, old)
			}
			if a.Opinion != tt.want {
				t.Errorf("expected opinion %d, got %d", tt.want, a.Opinion)
			}
		})
	}
}

func TestAgentUpdate_TieResolvesIntoTiedSet(t *testing.T) {
	sample := agentsOf(3, 1, 1, 3, 2)
	seen := map[Opinion]bool{}

	for seed := uint64(1); seed <= 200; seed++ {
		a := Agent{Opinion: 9}
		if _, err := a.Update(sample, NewSource(seed)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Opinion != 1 && a.Opinion != 3 {
			t.Fatalf("seed %d: opinion %d is not in the tied set {1, 3}", seed, a.Opinion)
		}
		seen[a.Opinion] = true
	}
	if !seen[1] || !seen[3] {
		t.Errorf("expected both tied opinions to be chosen over 200 seeds, got %v", seen)
	}
}

func TestAgentUpdate_TieUsesRandomSource(t *testing.T) {
	sample := agentsOf(3, 1, 1, 3)

	first := Agent{}
	first.Update(sample, &sequenceSource{values: []int{0}})
	second := Agent{}
	second.Update(sample, &sequenceSource{values: []int{1}})

	// Tied entries keep first-appearance order: [3, 1].
	if first.Opinion != 3 || second.Opinion != 1 {
		t.Errorf("expected choices 3 and 1, got %d and %d", first.Opinion, second.Opinion)
	}
}

func TestAgentUpdate_EmptySample(t *testing.T) {
	a := Agent{Opinion: 4}
	old, err := a.Update(nil, NewSource(1))

	if !cerrors.IsCode(err, cerrors.ErrEmptySample) {
		t.Fatalf("expected %s, got %v", cerrors.ErrEmptySample, err)
	}
	if old != 4 || a.Opinion != 4 {
		t.Errorf("expected opinion to stay 4, got old=%d now=%d", old, a.Opinion)
	}
}
