package simulation

import (
	"math"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

// Model selects the interaction scheme.
type Model string

const (
	// ModelPopulation updates one random agent per interaction.
	ModelPopulation Model = "population"
	// ModelGossip updates every agent once per round.
	ModelGossip Model = "gossip"
)

// InitialDistribution selects how opinions are assigned when a phase starts.
type InitialDistribution string

const (
	// DistributionEven gives every opinion N/K agents; the remainder goes
	// one each to the lowest opinions.
	DistributionEven InitialDistribution = "even"
	// DistributionUniform draws each agent's opinion uniformly at random.
	DistributionUniform InitialDistribution = "uniform"
	// DistributionWeighted splits agents in proportion to the first K
	// entries of Config.Weights.
	DistributionWeighted InitialDistribution = "weighted"
)

// Config describes one batch of simulation instances.
type Config struct {
	// AgentCount is the population size N.
	AgentCount uint64 `yaml:"agent_count" json:"agent_count"`

	// SampleSize is the number of peers j an agent looks at.
	SampleSize uint8 `yaml:"sample_size" json:"sample_size"`

	// UpperBoundK is the last opinion count of the sweep.
	UpperBoundK uint16 `yaml:"upper_bound_k" json:"upper_bound_k"`

	// SimulationCount is the number of instances run concurrently.
	SimulationCount uint `yaml:"simulation_count" json:"simulation_count"`

	Model               Model               `yaml:"model" json:"model"`
	InitialDistribution InitialDistribution `yaml:"initial_distribution" json:"initial_distribution"`

	// Weights holds one relative share per opinion for the weighted
	// distribution. Phase K uses the first K entries, so there must be at
	// least UpperBoundK of them.
	Weights []float64 `yaml:"weights,omitempty" json:"weights,omitempty"`

	// Seed makes runs reproducible. Instance i uses Seed+i. Zero picks a
	// random seed per instance.
	Seed uint64 `yaml:"seed" json:"seed"`

	// UpdateInterval is the number of interactions between Update events.
	// Zero is treated as one.
	UpdateInterval uint64 `yaml:"update_interval" json:"update_interval"`
}

// DefaultConfig returns the defaults of the original suite.
func DefaultConfig() Config {
	return Config{
		AgentCount:          100000,
		SampleSize:          3,
		UpperBoundK:         5,
		SimulationCount:     5,
		Model:               ModelPopulation,
		InitialDistribution: DistributionEven,
		UpdateInterval:      1,
	}
}

// Validate reports the first out-of-range field as an ErrConfigInvalid error.
func (c Config) Validate() error {
	if c.AgentCount == 0 {
		return cerrors.InvalidField("agent_count", "agent_count must be positive")
	}
	if c.SampleSize == 0 {
		return cerrors.InvalidField("sample_size", "sample_size must be positive")
	}
	if uint64(c.SampleSize) >= c.AgentCount {
		return cerrors.InvalidField("sample_size",
			"sample_size %d must be smaller than agent_count %d", c.SampleSize, c.AgentCount)
	}
	if c.UpperBoundK < 2 {
		return cerrors.InvalidField("upper_bound_k", "upper_bound_k %d must be at least 2", c.UpperBoundK)
	}
	if c.SimulationCount == 0 {
		return cerrors.InvalidField("simulation_count", "simulation_count must be at least 1")
	}
	switch c.Model {
	case ModelPopulation, ModelGossip:
	default:
		return cerrors.InvalidField("model", "unknown model %q", c.Model)
	}
	switch c.InitialDistribution {
	case DistributionEven, DistributionUniform:
	case DistributionWeighted:
		if len(c.Weights) < int(c.UpperBoundK) {
			return cerrors.InvalidField("weights",
				"weighted distribution needs %d weights, got %d", c.UpperBoundK, len(c.Weights))
		}
		for i, w := range c.Weights {
			if !(w > 0) || math.IsInf(w, 0) {
				return cerrors.InvalidField("weights", "weight %d must be a positive finite number, got %v", i, w)
			}
		}
	default:
		return cerrors.InvalidField("initial_distribution", "unknown initial distribution %q", c.InitialDistribution)
	}
	return nil
}

// ParseModel converts a CLI or API string into a Model.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case ModelPopulation, ModelGossip:
		return Model(s), nil
	}
	return "", cerrors.InvalidField("model", "unknown model %q", s)
}

func (c Config) updateInterval() uint64 {
	if c.UpdateInterval == 0 {
		return 1
	}
	return c.UpdateInterval
}

// PhaseCount is the number of K-phases a complete run executes.
func (c Config) PhaseCount() int {
	if c.UpperBoundK < 2 {
		return 0
	}
	return int(c.UpperBoundK) - 1
}
