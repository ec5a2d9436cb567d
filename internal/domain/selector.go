package domain

// RandomSource yields a uniform integer in [0, n).
// *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// PickRandom selects one quote uniformly from c.
// The boolean is false when c is empty; callers render the empty state.
func PickRandom(c Collection, rnd RandomSource) (Quote, bool) {
	if len(c) == 0 {
		return Quote{}, false
	}

	return c[rnd.IntN(len(c))], true
}
