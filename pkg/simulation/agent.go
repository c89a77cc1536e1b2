package simulation

import (
	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

// Opinion is one of K discrete labels, in [0, K).
type Opinion uint16

// Agent holds a single opinion.
type Agent struct {
	Opinion Opinion
}

// Update makes the agent adopt the majority opinion of sample. Ties are
// broken uniformly at random using rng. It returns the previous opinion.
// An empty sample leaves the agent untouched and returns ErrEmptySample.
func (a *Agent) Update(sample []Agent, rng RandomSource) (Opinion, error) {
	return a.update(sample, newTally(), rng)
}

func (a *Agent) update(sample []Agent, t *tally, rng RandomSource) (Opinion, error) {
	old := a.Opinion
	major, ok := t.majority(sample, rng)
	if !ok {
		return old, errEmptySample()
	}
	a.Opinion = major
	return old, nil
}

func errEmptySample() error {
	return cerrors.Simulation(cerrors.ErrEmptySample, "cannot sample from zero candidates")
}

func errEmptyAgents() error {
	return cerrors.Simulation(cerrors.ErrEmptyAgents, "population has no agents")
}

// tally counts opinions in a sample. Entries keep first-appearance order so
// tie-breaking only depends on the sample order and the random source.
type tally struct {
	index   map[Opinion]int
	entries []tallyEntry
	tied    []Opinion
}

type tallyEntry struct {
	opinion Opinion
	count   int
}

func newTally() *tally {
	return &tally{index: make(map[Opinion]int)}
}

func (t *tally) majority(sample []Agent, rng RandomSource) (Opinion, bool) {
	if len(sample) == 0 {
		return 0, false
	}
	clear(t.index)
	t.entries = t.entries[:0]

	best := 0
	for _, agent := range sample {
		i, ok := t.index[agent.Opinion]
		if !ok {
			i = len(t.entries)
			t.index[agent.Opinion] = i
			t.entries = append(t.entries, tallyEntry{opinion: agent.Opinion})
		}
		t.entries[i].count++
		if t.entries[i].count > best {
			best = t.entries[i].count
		}
	}

	t.tied = t.tied[:0]
	for _, e := range t.entries {
		if e.count == best {
			t.tied = append(t.tied, e.opinion)
		}
	}
	if len(t.tied) == 1 {
		return t.tied[0], true
	}
	return t.tied[rng.IntN(len(t.tied))], true
}
