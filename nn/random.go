package nn

import (
	"math"
	"math/rand"
)

// standardNormal draws an N(0, 1) sample with the Box–Muller transform.
// Both uniforms lie in (0, 1] so the logarithm stays finite.
func standardNormal(rng *rand.Rand) float64 {
	u1 := 1.0 - rng.Float64()
	u2 := 1.0 - rng.Float64()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
}
