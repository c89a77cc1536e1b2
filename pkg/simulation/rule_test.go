package simulation

import "testing"

// applyChanges mirrors the controller's bookkeeping for a single step.
func applyChanges(d *OpinionDistribution, changes []Change) {
	d.RecordInteraction()
	for _, c := range changes {
		d.Update(c.Old, c.New)
	}
}

func TestPopulationRule_TwoAgentsNeedOneInteraction(t *testing.T) {
	// With N=2 the only other agent is the whole sample, whether j is 1 or 2.
	for _, j := range []int{1, 2} {
		for seed := uint64(1); seed <= 20; seed++ {
			counts := []uint64{1, 1}
			p := NewPopulation(counts)
			d := NewOpinionDistribution(counts)
			rule := NewRule(ModelPopulation, j)

			changes, err := rule.Interact(p, NewSource(seed))
			if err != nil {
				t.Fatalf("j=%d seed=%d: unexpected error: %v", j, seed, err)
			}
			applyChanges(d, changes)

			if !d.HasConsensus() {
				t.Fatalf("j=%d seed=%d: expected consensus after one interaction, counts %v",
					j, seed, d.Snapshot().Counts)
			}
			if d.InteractionCount() != 1 {
				t.Errorf("expected 1 interaction, got %d", d.InteractionCount())
			}
		}
	}
}

func TestPopulationRule_ReportsOnlyRealChanges(t *testing.T) {
	counts := []uint64{5}
	p := NewPopulation(counts)

	changes, err := NewRule(ModelPopulation, 3).Interact(p, NewSource(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes at consensus, got %v", changes)
	}
}

func TestRules_PreserveTotal(t *testing.T) {
	for _, model := range []Model{ModelPopulation, ModelGossip} {
		t.Run(string(model), func(t *testing.T) {
			counts := EvenCounts(60, 4)
			p := NewPopulation(counts)
			d := NewOpinionDistribution(counts)
			rule := NewRule(model, 3)
			rng := NewSource(11)

			for i := 0; i < 200; i++ {
				changes, err := rule.Interact(p, rng)
				if err != nil {
					t.Fatalf("interaction %d: %v", i, err)
				}
				applyChanges(d, changes)
				if d.Total() != 60 {
					t.Fatalf("interaction %d: counts sum to %d, want 60", i, d.Total())
				}
				if d.HasConsensus() {
					break
				}
			}

			// The distribution must agree with a full rescan of the population.
			rescan := make([]uint64, 4)
			for _, a := range p.Agents() {
				rescan[a.Opinion]++
			}
			for o, c := range rescan {
				if d.Count(Opinion(o)) != c {
					t.Errorf("opinion %d: distribution has %d, population has %d", o, d.Count(Opinion(o)), c)
				}
			}
		})
	}
}

func TestGossipRule_UsesSnapshot(t *testing.T) {
	// Every agent samples all others plus itself from the pre-round state;
	// with a 3:1 split and j=N every agent adopts the majority in one round.
	counts := []uint64{3, 1}
	p := NewPopulation(counts)
	d := NewOpinionDistribution(counts)

	rule := &GossipRule{SampleSize: 4}
	changes, err := rule.Interact(p, NewSource(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	applyChanges(d, changes)

	if d.Count(0) != 4 {
		t.Errorf("expected all agents on opinion 0, got counts %v", d.Snapshot().Counts)
	}
	if d.InteractionCount() != 1 {
		t.Errorf("expected one round to count once, got %d", d.InteractionCount())
	}
}

func TestRule_Epoch(t *testing.T) {
	if got := NewRule(ModelPopulation, 3).Epoch(500); got != 500 {
		t.Errorf("population epoch = %d, want 500", got)
	}
	if got := NewRule(ModelGossip, 3).Epoch(500); got != 1 {
		t.Errorf("gossip epoch = %d, want 1", got)
	}
}
