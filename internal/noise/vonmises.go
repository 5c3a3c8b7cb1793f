package noise

import (
	"math"
	"math/rand/v2"

	"github.com/simdata/trajgen/internal/engine"
)

// vonMises draws an angle from the von Mises distribution centred at mu
// (radians) with concentration kappa, via the Best-Fisher (1979) rejection
// sampler. The result lies in [mu-pi, mu+pi].
func vonMises(rng *rand.Rand, mu, kappa float64) float64 {
	if kappa < 1e-8 {
		// Concentration this small is indistinguishable from uniform.
		return mu + (2*rng.Float64()-1)*math.Pi
	}

	tau := 1 + math.Sqrt(1+4*kappa*kappa)
	rho := (tau - math.Sqrt(2*tau)) / (2 * kappa)
	r := (1 + rho*rho) / (2 * rho)

	for {
		u1 := rng.Float64()
		z := math.Cos(math.Pi * u1)
		f := (1 + r*z) / (r + z)
		c := kappa * (r - f)

		u2 := rng.Float64()
		if c*(2-c)-u2 > 0 || math.Log(c/u2)+1-c >= 0 {
			u3 := rng.Float64()
			if u3 > 0.5 {
				return mu + math.Acos(f)
			}
			return mu - math.Acos(f)
		}
	}
}

// vonMisesFisher draws a unit vector from the von Mises-Fisher distribution
// on the unit sphere, centred at the unit vector mu with concentration
// kappa. For S^2 the marginal along mu has a closed-form inverse CDF, so no
// rejection loop is needed; the sample is built around +z and reflected onto
// mu with a Householder transform.
func vonMisesFisher(rng *rand.Rand, mu engine.Vec3, kappa float64) engine.Vec3 {
	if kappa < 1e-8 {
		return uniformSphere(rng)
	}

	u := rng.Float64()
	w := 1 + math.Log(u+(1-u)*math.Exp(-2*kappa))/kappa
	theta := 2 * math.Pi * rng.Float64()
	s := math.Sqrt(math.Max(0, 1-w*w))
	sample := engine.Vec3{X: s * math.Cos(theta), Y: s * math.Sin(theta), Z: w}

	return reflectFromZ(sample, mu)
}

// uniformSphere draws a direction uniformly on the unit sphere.
func uniformSphere(rng *rand.Rand) engine.Vec3 {
	z := 2*rng.Float64() - 1
	theta := 2 * math.Pi * rng.Float64()
	s := math.Sqrt(math.Max(0, 1-z*z))
	return engine.Vec3{X: s * math.Cos(theta), Y: s * math.Sin(theta), Z: z}
}

// reflectFromZ maps a vector sampled around +z so that +z lands on mu, using
// the Householder reflection through their bisector.
func reflectFromZ(v, mu engine.Vec3) engine.Vec3 {
	h := engine.Vec3{X: -mu.X, Y: -mu.Y, Z: 1 - mu.Z}
	n := h.Norm()
	if n < 1e-12 {
		// mu is +z itself.
		return v
	}
	h = h.Scale(1 / n)
	return v.Sub(h.Scale(2 * v.Dot(h)))
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func rad2deg(r float64) float64 { return r * 180 / math.Pi }
