package simulation

import (
	"math/rand/v2"
)

// RandomSource is the uniform choice dependency of the engine.
// IntN returns a value in [0, n) and panics if n <= 0.
// *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// NewSource returns a PCG-backed source for seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomSeed returns a fresh non-zero seed.
func RandomSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}
