package ports

import (
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for reproducible simulations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(name string, seed int64) *rand.Rand

	// Substream returns the index-th independent stream derived from baseSeed.
	// Repetition i of a Monte Carlo run always draws from Substream(seed, i),
	// so results do not depend on how repetitions are scheduled.
	Substream(baseSeed int64, index int) *rand.Rand
}
