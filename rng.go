package htm

import "math/rand"

// Random is a seeded deterministic generator. Every SP and SDR operation
// that consumes randomness (potential-pool sampling, permanence
// initialization, randomize/addNoise) takes one of these explicitly so
// that a given seed reproduces results bit-for-bit (spec.md §5), instead
// of reaching for the global math/rand state the way the teacher's
// encoders/coordinateEncoder.go does with its per-call rand.Seed.
type Random struct {
	seed uint32
	src  *rand.Rand
}

// NewRandom builds a generator from a uint32 seed, matching the SP's
// `seed` hyperparameter domain (spec.md §4.6).
func NewRandom(seed uint32) *Random {
	return &Random{seed: seed, src: rand.New(rand.NewSource(int64(seed)))}
}

// Seed returns the seed this generator was constructed with.
func (r *Random) Seed() uint32 { return r.seed }

// NextInt returns a uniform value in [0, n).
func (r *Random) NextInt(n int) int {
	if n <= 0 {
		return 0
	}
	return r.src.Intn(n)
}

// NextReal64 returns a uniform value in [0, 1).
func (r *Random) NextReal64() float64 {
	return r.src.Float64()
}

// UniformFloat64 returns a uniform value in [lo, hi).
func (r *Random) UniformFloat64(lo, hi float64) float64 {
	return lo + r.src.Float64()*(hi-lo)
}

// Sample draws k distinct elements from population without replacement,
// preserving neither the population's nor a sorted order but a fixed
// consumption order for a given seed: a partial Fisher-Yates shuffle
// consumes exactly k random draws regardless of len(population).
func (r *Random) Sample(population []int, k int) []int {
	if k <= 0 {
		return nil
	}
	if k > len(population) {
		k = len(population)
	}
	pool := make([]int, len(population))
	copy(pool, population)
	for i := 0; i < k; i++ {
		j := i + r.src.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Shuffle permutes s in place with a full Fisher-Yates shuffle run from
// the last element down, consuming len(s)-1 random draws.
func (r *Random) Shuffle(s []int) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.src.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
