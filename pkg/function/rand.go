package function

import (
	mathrand "math/rand/v2"
)

// rngIntN returns a random int in [0, n) using the provided RNG if non-nil,
// otherwise falls back to the global math/rand/v2 source.
func rngIntN(rng *mathrand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	if rng != nil {
		return rng.IntN(n)
	}
	return mathrand.IntN(n)
}

// NewRand returns a PCG-backed source for seed. A zero seed returns nil,
// which selects the global generator.
func NewRand(seed uint64) *mathrand.Rand {
	if seed == 0 {
		return nil
	}
	return mathrand.New(mathrand.NewPCG(seed, 0))
}
