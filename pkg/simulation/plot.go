package simulation

// PlotPoint is the number of interactions one K-phase needed to reach consensus.
type PlotPoint struct {
	K            uint16 `json:"k"`
	Interactions uint64 `json:"interactions"`
}

// Plot is the append-only sequence of phase results of one run.
type Plot struct {
	Points []PlotPoint `json:"points"`
}

// Append adds a phase result.
func (p *Plot) Append(k uint16, interactions uint64) {
	p.Points = append(p.Points, PlotPoint{K: k, Interactions: interactions})
}

// Len returns the number of recorded phases.
func (p Plot) Len() int {
	return len(p.Points)
}

// Clone returns a copy that shares no memory with p.
func (p Plot) Clone() Plot {
	points := make([]PlotPoint, len(p.Points))
	copy(points, p.Points)
	return Plot{Points: points}
}

// Interactions returns the recorded count for k.
func (p Plot) Interactions(k uint16) (uint64, bool) {
	for _, pt := range p.Points {
		if pt.K == k {
			return pt.Interactions, true
		}
	}
	return 0, false
}
