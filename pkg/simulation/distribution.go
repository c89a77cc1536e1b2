package simulation

import "math"

// OpinionDistribution counts agents per opinion for one K-phase and is the
// single source of truth for consensus detection. The counts always sum to N.
type OpinionDistribution struct {
	counts       []uint64
	n            uint64
	k            uint16
	interactions uint64
}

// NewOpinionDistribution builds a distribution from per-opinion counts.
func NewOpinionDistribution(counts []uint64) *OpinionDistribution {
	d := &OpinionDistribution{
		counts: make([]uint64, len(counts)),
		k:      uint16(len(counts)),
	}
	copy(d.counts, counts)
	for _, c := range counts {
		d.n += c
	}
	return d
}

// Update moves one agent from one opinion to another and returns the
// count of the opinion it moved to.
func (d *OpinionDistribution) Update(from, to Opinion) uint64 {
	if d.counts[from] > 0 {
		d.counts[from]--
	}
	d.counts[to]++
	return d.counts[to]
}

// HasConsensus reports whether a single opinion holds all N agents.
func (d *OpinionDistribution) HasConsensus() bool {
	for _, c := range d.counts {
		if c == d.n {
			return true
		}
	}
	return false
}

// RecordInteraction advances the interaction counter by one.
func (d *OpinionDistribution) RecordInteraction() {
	d.interactions++
}

// InteractionCount returns the interactions performed in this phase.
func (d *OpinionDistribution) InteractionCount() uint64 { return d.interactions }

// Count returns the number of agents holding opinion.
func (d *OpinionDistribution) Count(opinion Opinion) uint64 {
	if int(opinion) >= len(d.counts) {
		return 0
	}
	return d.counts[opinion]
}

// N returns the population size.
func (d *OpinionDistribution) N() uint64 { return d.n }

// K returns the number of opinions.
func (d *OpinionDistribution) K() uint16 { return d.k }

// Total sums the counts; equal to N unless the bookkeeping is broken.
func (d *OpinionDistribution) Total() uint64 {
	var total uint64
	for _, c := range d.counts {
		total += c
	}
	return total
}

// Entropy returns -Σ p·log_K(p) over the opinions with a non-zero share.
// It is 0 at consensus and 1 for an even spread.
func (d *OpinionDistribution) Entropy() float64 {
	if d.k < 2 || d.n == 0 {
		return 0
	}
	logK := math.Log(float64(d.k))
	n := float64(d.n)
	var h float64
	for _, c := range d.counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log(p) / logK
	}
	return h
}

// Snapshot is an owned copy of a distribution, safe to hand to observers.
type Snapshot struct {
	K            uint16   `json:"k"`
	Counts       []uint64 `json:"counts"`
	Interactions uint64   `json:"interactions"`
	Entropy      float64  `json:"entropy"`
}

// Snapshot copies the current state.
func (d *OpinionDistribution) Snapshot() Snapshot {
	counts := make([]uint64, len(d.counts))
	copy(counts, d.counts)
	return Snapshot{
		K:            d.k,
		Counts:       counts,
		Interactions: d.interactions,
		Entropy:      d.Entropy(),
	}
}
