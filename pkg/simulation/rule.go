package simulation

// Change records one agent's opinion moving from Old to New.
type Change struct {
	Old Opinion
	New Opinion
}

// InteractionRule performs one interaction (population model) or one round
// (gossip model) on a population. It returns the opinion changes it made so
// the distribution can be updated incrementally. The returned slice is owned
// by the rule and reused on the next call.
type InteractionRule interface {
	Interact(p *Population, rng RandomSource) ([]Change, error)
	// Epoch is the number of interactions between entropy checkpoints.
	Epoch(n uint64) uint64
}

// NewRule returns the rule for model with sample size j.
func NewRule(model Model, j int) InteractionRule {
	if model == ModelGossip {
		return &GossipRule{SampleSize: j, tally: newTally()}
	}
	return &PopulationRule{SampleSize: j, tally: newTally()}
}

// PopulationRule lets one random agent adopt the majority of j distinct others.
type PopulationRule struct {
	SampleSize int

	tally   *tally
	changes []Change
}

func (r *PopulationRule) Interact(p *Population, rng RandomSource) ([]Change, error) {
	if r.tally == nil {
		r.tally = newTally()
	}
	active, err := p.SelectActive(rng)
	if err != nil {
		return nil, err
	}
	sample, err := p.Sample(r.SampleSize, rng)
	if err != nil {
		return nil, err
	}
	old, err := active.update(sample, r.tally, rng)
	if err != nil {
		return nil, err
	}

	r.changes = r.changes[:0]
	if old != active.Opinion {
		r.changes = append(r.changes, Change{Old: old, New: active.Opinion})
	}
	return r.changes, nil
}

// Epoch is N: one checkpoint per N single-agent interactions.
func (r *PopulationRule) Epoch(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	return n
}

// GossipRule updates every agent from a snapshot taken before the round.
type GossipRule struct {
	SampleSize int

	tally   *tally
	changes []Change
}

func (r *GossipRule) Interact(p *Population, rng RandomSource) ([]Change, error) {
	if r.tally == nil {
		r.tally = newTally()
	}
	if p.Len() == 0 {
		return nil, errEmptyAgents()
	}
	snapshot := p.Snapshot()

	r.changes = r.changes[:0]
	agents := p.Agents()
	for i := range agents {
		sample := partialShuffle(snapshot, r.SampleSize, rng)
		old, err := agents[i].update(sample, r.tally, rng)
		if err != nil {
			return nil, err
		}
		if old != agents[i].Opinion {
			r.changes = append(r.changes, Change{Old: old, New: agents[i].Opinion})
		}
	}
	return r.changes, nil
}

// Epoch is one round, since a round already updates all N agents.
func (r *GossipRule) Epoch(uint64) uint64 {
	return 1
}
