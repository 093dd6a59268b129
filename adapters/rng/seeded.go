package rng

import (
	"hash/fnv"
	"math/rand/v2"

	"melpower/ports"
)

// SeededAdapter implements ports.RNGPort with PCG generators. Streams are
// keyed by (seed, stream id) so distinct ids never share state.
type SeededAdapter struct{}

// NewSeededAdapter creates a new seeded RNG adapter
func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

var _ ports.RNGPort = (*SeededAdapter)(nil)

// SeededStream derives the stream id from the operation name.
func (a *SeededAdapter) SeededStream(name string, seed int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewPCG(uint64(seed), h.Sum64()))
}

// Substream uses the index as the PCG stream id. Names hash to values with the
// high bit set in practice, while repetition indices stay small.
func (a *SeededAdapter) Substream(baseSeed int64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(baseSeed), uint64(index)))
}
