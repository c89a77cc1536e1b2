package simulation

import "sort"

// EntropyTracker accumulates entropy checkpoints across the K-phases of a run.
type EntropyTracker struct {
	sums   map[uint64]float64
	hits   map[uint64]int
	phases int
}

// NewEntropyTracker returns an empty tracker.
func NewEntropyTracker() *EntropyTracker {
	return &EntropyTracker{
		sums: make(map[uint64]float64),
		hits: make(map[uint64]int),
	}
}

// BeginPhase counts one more phase towards the final divisor.
func (t *EntropyTracker) BeginPhase() {
	t.phases++
}

// Observe records the distribution's entropy if its interaction count is a
// multiple of epoch. It reports whether a checkpoint was taken.
func (t *EntropyTracker) Observe(d *OpinionDistribution, epoch uint64) bool {
	if epoch == 0 {
		epoch = 1
	}
	at := d.InteractionCount()
	if at%epoch != 0 {
		return false
	}
	t.sums[at] += d.Entropy()
	t.hits[at]++
	return true
}

// Phases returns the number of phases begun.
func (t *EntropyTracker) Phases() int {
	return t.phases
}

// Curve finalizes the accumulated values: every checkpoint's sum is divided
// by the number of phases, whether or not each phase reached it.
func (t *EntropyTracker) Curve() EntropyCurve {
	curve := EntropyCurve{
		Phases: t.phases,
		Points: make([]EntropyPoint, 0, len(t.sums)),
	}
	for at, sum := range t.sums {
		value := sum
		if t.phases > 0 {
			value = sum / float64(t.phases)
		}
		curve.Points = append(curve.Points, EntropyPoint{
			Interactions: at,
			Entropy:      value,
			Hits:         t.hits[at],
		})
	}
	sort.Slice(curve.Points, func(i, j int) bool {
		return curve.Points[i].Interactions < curve.Points[j].Interactions
	})
	return curve
}

// EntropyPoint is one checkpoint of an EntropyCurve.
type EntropyPoint struct {
	Interactions uint64  `json:"interactions"`
	Entropy      float64 `json:"entropy"`
	// Hits is the number of phases that reached this checkpoint.
	Hits int `json:"hits"`
}

// EntropyCurve is the phase-averaged entropy trajectory of one run.
type EntropyCurve struct {
	Phases int            `json:"phases"`
	Points []EntropyPoint `json:"points"`
}

// CoveredMean re-weights every point by the phases that actually reached
// it instead of all phases.
func (c EntropyCurve) CoveredMean() []EntropyPoint {
	out := make([]EntropyPoint, len(c.Points))
	for i, p := range c.Points {
		out[i] = p
		if p.Hits > 0 {
			out[i].Entropy = p.Entropy * float64(c.Phases) / float64(p.Hits)
		}
	}
	return out
}

// Value returns the entropy at an exact checkpoint.
func (c EntropyCurve) Value(interactions uint64) (float64, bool) {
	i := sort.Search(len(c.Points), func(i int) bool {
		return c.Points[i].Interactions >= interactions
	})
	if i < len(c.Points) && c.Points[i].Interactions == interactions {
		return c.Points[i].Entropy, true
	}
	return 0, false
}
