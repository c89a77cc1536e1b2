package simulation

import "sort"

// Population is the ordered agent collection of one K-phase.
type Population struct {
	agents []Agent
}

// NewPopulation builds a population holding counts[i] agents of opinion i.
func NewPopulation(counts []uint64) *Population {
	var n uint64
	for _, c := range counts {
		n += c
	}
	agents := make([]Agent, 0, n)
	for opinion, c := range counts {
		for range c {
			agents = append(agents, Agent{Opinion: Opinion(opinion)})
		}
	}
	return &Population{agents: agents}
}

// EvenCounts spreads n agents over k opinions: n/k each, with the remainder
// going one each to the lowest opinions.
func EvenCounts(n uint64, k uint16) []uint64 {
	if k == 0 {
		return nil
	}
	counts := make([]uint64, k)
	base, rem := n/uint64(k), n%uint64(k)
	for i := range counts {
		counts[i] = base
		if uint64(i) < rem {
			counts[i]++
		}
	}
	return counts
}

// WeightedCounts splits n agents over len(weights) opinions in proportion
// to the weights. Shares are floored and the agents left over go one each
// to the largest fractional remainders, lowest opinion first on ties.
func WeightedCounts(n uint64, weights []float64) []uint64 {
	if len(weights) == 0 {
		return nil
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	counts := make([]uint64, len(weights))
	if total <= 0 {
		return EvenCounts(n, uint16(len(weights)))
	}

	fractions := make([]float64, len(weights))
	var assigned uint64
	for i, w := range weights {
		share := float64(n) * w / total
		counts[i] = min(uint64(share), n-assigned)
		fractions[i] = share - float64(counts[i])
		assigned += counts[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fractions[order[a]] > fractions[order[b]] })
	for i := 0; assigned < n; i = (i + 1) % len(order) {
		counts[order[i]]++
		assigned++
	}
	return counts
}

// UniformCounts draws an opinion for each of n agents uniformly from k.
func UniformCounts(n uint64, k uint16, rng RandomSource) []uint64 {
	if k == 0 {
		return nil
	}
	counts := make([]uint64, k)
	for range n {
		counts[rng.IntN(int(k))]++
	}
	return counts
}

// Len returns the number of agents.
func (p *Population) Len() int {
	return len(p.agents)
}

// Agents exposes the agent slice. Callers must not retain it across interactions.
func (p *Population) Agents() []Agent {
	return p.agents
}

// SelectActive picks an agent uniformly at random and swaps it to index 0,
// leaving the rest of the population as the contiguous pool agents[1:].
func (p *Population) SelectActive(rng RandomSource) (*Agent, error) {
	if len(p.agents) == 0 {
		return nil, errEmptyAgents()
	}
	i := rng.IntN(len(p.agents))
	p.agents[0], p.agents[i] = p.agents[i], p.agents[0]
	return &p.agents[0], nil
}

// Sample draws j distinct agents uniformly from the pool left by
// SelectActive. The returned slice aliases the population and is valid until
// the next call. If fewer than j candidates exist, all of them are returned.
func (p *Population) Sample(j int, rng RandomSource) ([]Agent, error) {
	if len(p.agents) == 0 {
		return nil, errEmptyAgents()
	}
	sample := partialShuffle(p.agents[1:], j, rng)
	if len(sample) == 0 {
		return nil, errEmptySample()
	}
	return sample, nil
}

// Snapshot returns a copy of the agents for the gossip model.
func (p *Population) Snapshot() []Agent {
	snap := make([]Agent, len(p.agents))
	copy(snap, p.agents)
	return snap
}

// partialShuffle runs j steps of Fisher–Yates over pool and returns the
// shuffled prefix: a uniform j-subset in O(j).
func partialShuffle(pool []Agent, j int, rng RandomSource) []Agent {
	if j > len(pool) {
		j = len(pool)
	}
	for i := 0; i < j; i++ {
		r := i + rng.IntN(len(pool)-i)
		pool[i], pool[r] = pool[r], pool[i]
	}
	return pool[:j]
}
