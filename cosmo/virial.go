package cosmo

import (
	"math"
)

// VirialRadius returns the radius within which the mean density of a halo
// of mass mvir at redshift z is 200 times the critical density.
func (c *Cosmology) VirialRadius(mvir, z float64) float64 {
	rhoCrit := c.RhoCritical(z)
	fac := 1 / (200 * 4 * math.Pi / 3.0 * rhoCrit)
	return math.Cbrt(mvir * fac)
}

// VirialVelocity returns the circular velocity at the virial radius,
// sqrt(G Mvir / Rvir). Returns 0 for haloes with a non-positive virial
// radius.
func (c *Cosmology) VirialVelocity(mvir, z float64) float64 {
	rvir := c.VirialRadius(mvir, z)
	if rvir <= 0 {
		return 0
	}
	return math.Sqrt(c.G * mvir / rvir)
}
