package noise

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/trajgen/internal/engine"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestVonMises_ConcentratesAroundMean(t *testing.T) {
	rng := testRand(1)
	mu := math.Pi / 4
	kappa := 100.0

	var sumSin, sumCos float64
	for i := 0; i < 2000; i++ {
		theta := vonMises(rng, mu, kappa)
		sumSin += math.Sin(theta)
		sumCos += math.Cos(theta)
	}
	circularMean := math.Atan2(sumSin, sumCos)
	assert.InDelta(t, mu, circularMean, 0.05)
}

func TestVonMises_LowConcentrationSpreads(t *testing.T) {
	rng := testRand(2)
	var far int
	for i := 0; i < 1000; i++ {
		theta := vonMises(rng, 0, 0.1)
		if math.Abs(theta) > math.Pi/2 {
			far++
		}
	}
	// With kappa that small the distribution is nearly uniform on the
	// circle.
	assert.Greater(t, far, 200)
}

func TestVonMisesFisher_UnitNorm(t *testing.T) {
	rng := testRand(3)
	mu := engine.Vec3{X: 0, Y: -1, Z: 0}
	for i := 0; i < 500; i++ {
		v := vonMisesFisher(rng, mu, 5.0)
		require.InDelta(t, 1.0, v.Norm(), 1e-9)
	}
}

func TestVonMisesFisher_ConcentratesAroundMean(t *testing.T) {
	rng := testRand(4)
	mu := engine.Vec3{X: 1 / math.Sqrt2, Y: 0, Z: 1 / math.Sqrt2}

	var dotSum float64
	n := 2000
	for i := 0; i < n; i++ {
		v := vonMisesFisher(rng, mu, 50.0)
		dotSum += v.Dot(mu)
	}
	// E[mu.v] = coth(kappa) - 1/kappa, about 0.98 at kappa=50.
	assert.InDelta(t, 0.98, dotSum/float64(n), 0.01)
}

func TestVonMisesFisher_MeanAlongZ(t *testing.T) {
	// The reflection step degenerates when mu is the +z pole; make sure
	// both poles still produce unit samples near the mean.
	rng := testRand(5)
	for _, mu := range []engine.Vec3{{Z: 1}, {Z: -1}} {
		v := vonMisesFisher(rng, mu, 200.0)
		require.InDelta(t, 1.0, v.Norm(), 1e-9)
		assert.Greater(t, v.Dot(mu), 0.9)
	}
}
