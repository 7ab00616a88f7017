/*Package cosmo provides the small set of cosmological calculations needed
when tracking haloes through merger trees: lookback times in a LCDM
universe and virial properties derived from halo masses.

All masses are in units of 10^10 Msun/h, lengths in Mpc/h, and velocities
in km/s unless stated otherwise.
*/
package cosmo

import (
	"math"
)

const (
	// Gravity is the gravitational constant in cgs units.
	Gravity = 6.672e-8
	// HubbleCGS is 100 km/s/Mpc expressed in 1/s.
	HubbleCGS = 3.2407789e-18
	// SecPerMegayear converts seconds to Megayears.
	SecPerMegayear = 3.155e13

	// InitialRedshift is the redshift used as the zero point of the
	// lookback-time table. Roughly the recombination era.
	InitialRedshift = 1000.0
)

// Cosmology bundles the background parameters and the internal unit system
// shared by all lookback-time and virial-property calculations.
type Cosmology struct {
	OmegaM, OmegaL float64
	// Hubble is the Hubble constant in internal units, i.e. HubbleCGS
	// times the internal time unit.
	Hubble float64
	// G is the gravitational constant in internal units.
	G float64
}

// hubbleSq returns H(z)^2 in internal units at redshift z.
func (c *Cosmology) hubbleSq(z float64) float64 {
	zp1 := 1 + z
	return c.Hubble * c.Hubble *
		(c.OmegaM*zp1*zp1*zp1 + (1-c.OmegaM-c.OmegaL)*zp1*zp1 + c.OmegaL)
}

// RhoCritical returns the critical density of the universe at redshift z
// in internal units.
func (c *Cosmology) RhoCritical(z float64) float64 {
	return 3 * c.hubbleSq(z) / (8 * math.Pi * c.G)
}

// integrand is the differential time element of the Friedmann equation,
// 1 / (a^2 sqrt(OmegaM/a + (1 - OmegaM - OmegaL) + OmegaL a^2)) without
// the leading 1/a^2 factor folded in (the substitution below keeps the
// integrand smooth near a = 0).
func (c *Cosmology) integrand(a float64) float64 {
	return 1 / math.Sqrt(c.OmegaM/a+(1-c.OmegaM-c.OmegaL)+c.OmegaL*a*a)
}

// TimeToPresent returns the lookback time from the present to redshift z
// in internal time units. The integral over the scale factor is evaluated
// with Romberg's rule to a relative tolerance of 1e-8, matching the
// adaptive quadrature tolerance used historically.
func (c *Cosmology) TimeToPresent(z float64) float64 {
	a0 := 1 / (1 + z)
	res := romberg(c.integrand, a0, 1, 1e-8)
	return res / c.Hubble
}

// Ages computes the lookback-time table for a snapshot list. zz[i] is the
// redshift of snapshot i. The returned table is indexed through Ages.At,
// which accepts snapshot -1 for the pre-first-snapshot epoch (redshift
// InitialRedshift).
func (c *Cosmology) Ages(zz []float64) Ages {
	t := make([]float64, len(zz)+1)
	t[0] = c.TimeToPresent(InitialRedshift)
	for i, z := range zz {
		t[i+1] = c.TimeToPresent(z)
	}
	return Ages{t}
}

// Ages is a lookback-time table over snapshots. Times decrease with
// snapshot number since later snapshots are closer to the present.
type Ages struct {
	t []float64
}

// At returns the lookback time of snapshot snap. snap may be -1.
func (a Ages) At(snap int) float64 { return a.t[snap+1] }

// Len returns the number of snapshots in the table, excluding the -1 entry.
func (a Ages) Len() int { return len(a.t) - 1 }

// romberg integrates f over [a, b] by Romberg extrapolation of the
// trapezoid rule, stopping once successive estimates agree to relTol.
func romberg(f func(float64) float64, a, b, relTol float64) float64 {
	const maxLevels = 24

	var r [maxLevels][maxLevels]float64
	h := b - a
	r[0][0] = h * (f(a) + f(b)) / 2

	for i := 1; i < maxLevels; i++ {
		h /= 2
		sum := 0.0
		for k := 1; k <= 1<<uint(i-1); k++ {
			sum += f(a + float64(2*k-1)*h)
		}
		r[i][0] = r[i-1][0]/2 + h*sum

		fac := 1.0
		for j := 1; j <= i; j++ {
			fac *= 4
			r[i][j] = r[i][j-1] + (r[i][j-1]-r[i-1][j-1])/(fac-1)
		}

		if i > 2 && math.Abs(r[i][i]-r[i-1][i-1]) <=
			relTol*math.Abs(r[i][i]) {
			return r[i][i]
		}
	}

	return r[maxLevels-1][maxLevels-1]
}
