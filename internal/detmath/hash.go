// Package detmath implements the single deterministic "coin flip" shared by
// every gating decision in the pipeline (slide gating, lane-flip tie-breaks,
// rest-gate decisions, cross-gate checks). It is pure over an integer
// derived from (time, lane, index, seed) so identical inputs always
// yield identical charts; nothing here touches time.Now, math/rand, or any
// other source of non-determinism.
package detmath

// Seed derives the integer input to Hash from a note's time, lane, and a
// pass-specific index, via a "round(time*1000) + lane*k + i*k'" recipe.
func Seed(time float64, lane int, index int) int64 {
	t := int64(time*1000 + 0.5)
	return t + int64(lane)*1_000_003 + int64(index)*2_000_003
}

// Hash mixes seed with a run-level salt using a splitmix64-style avalanche,
// returning a value uniform over the full uint64 range.
func Hash(seed int64, salt int64) uint64 {
	x := uint64(seed) ^ uint64(salt)*0x9E3779B97F4A7C15
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x = x ^ (x >> 31)
	return x
}

// Unit returns a deterministic float64 in [0,1) from the same inputs Hash
// takes, for gates expressed as probabilities/thresholds.
func Unit(seed int64, salt int64) float64 {
	return float64(Hash(seed, salt)%1_000_000) / 1_000_000.0
}

// Mod returns a deterministic value in [0,n) — used for the "modulo
// {2,3,4}" and "1-in-{3,4,5}" gates elsewhere in the pipeline.
func Mod(seed int64, salt int64, n int) int {
	if n <= 0 {
		return 0
	}
	return int(Hash(seed, salt) % uint64(n))
}

// Bool returns true with probability p (p in [0,1]), deterministically.
func Bool(seed int64, salt int64, p float64) bool {
	return Unit(seed, salt) < p
}
