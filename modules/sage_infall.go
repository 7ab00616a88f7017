package modules

import (
	"fmt"
	"log"
	"math"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// SageInfall implements the gas infall and stripping recipe of the
// SAGE model (Croton et al. 2016). Each group's central accretes gas
// from the cosmic web up to the universal baryon fraction of its halo
// mass, with accretion onto low mass halos suppressed after
// reionization following Gnedin (2000) with the Kravtsov et al. (2004)
// fitting formulas. Satellites slowly lose their hot gas to the
// central's halo.
type SageInfall struct {
	baryonFrac     float64
	reionizationOn bool
	z0, zr         float64
	strippingSteps int

	// Scale factors at which the UV background turns on and at which
	// reionization completes.
	a0, ar float64
}

func (m *SageInfall) Name() string { return "sage_infall" }

func (m *SageInfall) Init(cfg *config.MimicConfig) error {
	var err error
	if m.baryonFrac, err = ParamFloat(cfg, "SageInfall", "BaryonFrac", 0.17); err != nil {
		return err
	}
	if m.reionizationOn, err = ParamBool(cfg, "SageInfall", "ReionizationOn", true); err != nil {
		return err
	}
	if m.z0, err = ParamFloat(cfg, "SageInfall", "ReionizationZ0", 8.0); err != nil {
		return err
	}
	if m.zr, err = ParamFloat(cfg, "SageInfall", "ReionizationZr", 7.0); err != nil {
		return err
	}
	if m.strippingSteps, err = ParamInt(cfg, "SageInfall", "StrippingSteps", 10); err != nil {
		return err
	}

	if m.baryonFrac < 0 || m.baryonFrac > 1 {
		return fmt.Errorf("SageInfall_BaryonFrac = %g is outside [0, 1]",
			m.baryonFrac)
	}
	if m.z0 < 0 || m.zr < 0 {
		return fmt.Errorf("reionization redshifts must be positive")
	}
	if m.strippingSteps < 1 {
		return fmt.Errorf("SageInfall_StrippingSteps must be >= 1")
	}

	m.a0 = 1 / (1 + m.z0)
	m.ar = 1 / (1 + m.zr)

	log.Printf("SAGE infall module: BaryonFrac = %.4f, reionization on = %v",
		m.baryonFrac, m.reionizationOn)
	return nil
}

func (m *SageInfall) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	central := -1
	for i := range halos {
		if halos[i].Type == halo.Central {
			central = i
			break
		}
	}
	if central == -1 {
		// Groups headed by an emptied subhalo have no central. Not an
		// error.
		return nil
	}
	if halos[central].Galaxy == nil {
		return fmt.Errorf("central halo %d has no galaxy data", central)
	}

	infalling := m.infallRecipe(ctx, halos, central)
	m.addInfallToHot(halos[central].Galaxy, infalling)

	for i := range halos {
		if i == central || halos[i].Type != halo.Satellite ||
			halos[i].Galaxy == nil {
			continue
		}
		m.stripFromSatellite(ctx, halos, central, i)
	}
	return nil
}

func (m *SageInfall) Cleanup() error { return nil }

// reionizationModifier returns the Gnedin (2000) suppression factor
// for gas accretion onto a halo of mass mvir at the given redshift.
func (m *SageInfall) reionizationModifier(ctx *Context, mvir float64) float64 {
	if !m.reionizationOn {
		return 1.0
	}

	const (
		alpha   = 6.0  // best fit to the Gnedin data
		tvir    = 1e4  // K
		epsilon = 1e-10
	)
	cfg := ctx.Cfg
	z := ctx.Redshift
	a := 1 / (1 + z)
	aOnA0 := a / m.a0
	aOnAr := a / m.ar

	// Kravtsov et al. (2004) Appendix B fitting formula for the
	// filtering scale, split at the two reionization epochs.
	var fOfA float64
	switch {
	case a <= m.a0:
		fOfA = 3 * a / ((2 + alpha) * (5 + 2*alpha)) * math.Pow(aOnA0, alpha)
	case a < m.ar:
		fOfA = (3/a)*m.a0*m.a0*
			(1/(2+alpha)-2*math.Pow(aOnA0, -0.5)/(5+2*alpha)) +
			a*a/10 - (m.a0*m.a0/10)*(5-4*math.Pow(aOnA0, -0.5))
	default:
		fOfA = (3 / a) *
			(m.a0*m.a0*(1/(2+alpha)-2*math.Pow(aOnA0, -0.5)/(5+2*alpha)) +
				(m.ar*m.ar/10)*(5-4*math.Pow(aOnAr, -0.5)) -
				(m.a0*m.a0/10)*(5-4*math.Pow(aOnA0, -0.5)) +
				a*m.ar/3 - (m.ar*m.ar/3)*(3-2*math.Pow(aOnAr, -0.5)))
	}

	// Filtering mass in 1e10 Msun/h. mu = 0.59 for ionized gas, and
	// mu^-1.5 = 2.21.
	mJeans := 25 * math.Pow(cfg.Omega, -0.5) * 2.21
	mFiltering := mJeans * math.Pow(fOfA, 1.5)

	// Characteristic mass from the 1e4 K virial temperature.
	vChar := math.Sqrt(tvir / 36.0)
	omegaZ := cfg.Omega * math.Pow(1+z, 3) /
		(cfg.Omega*math.Pow(1+z, 3) + cfg.OmegaLambda + epsilon)
	xZ := omegaZ - 1
	deltaCritZ := 18*math.Pi*math.Pi + 82*xZ - 39*xZ*xZ

	hubbleZ := 100 * cfg.HubbleH *
		math.Sqrt(cfg.Omega*math.Pow(1+z, 3)+cfg.OmegaLambda)

	// G in (Mpc/h) (km/s)^2 / (1e10 Msun/h).
	gCode := gravityCGS * 1e-6 * cmPerMpc * cfg.HubbleH /
		(solarMassG * 1e10 * cfg.HubbleH)
	mChar := vChar * vChar * vChar /
		(gCode*hubbleZ*math.Sqrt(0.5*deltaCritZ) + epsilon)

	massToUse := math.Max(mFiltering, mChar)
	return 1 / math.Pow(1+0.26*massToUse/(mvir+epsilon), 3)
}

const (
	gravityCGS = 6.672e-8
	cmPerMpc   = 3.085678e24
	solarMassG = 1.989e33
)

// infallRecipe sums the group's baryons, consolidates satellite
// ejected gas and intracluster stars onto the central, and returns the
// mass of gas infalling onto the central. Negative infall means the
// group holds more baryons than its halo can keep.
func (m *SageInfall) infallRecipe(ctx *Context, halos []halo.Halo, central int) float64 {
	var totStellar, totCold, totHot, totEjected float64
	var totEjectedMetals, totICS, totICSMetals, totSatBaryons float64

	for i := range halos {
		g := halos[i].Galaxy
		if g == nil {
			continue
		}
		totStellar += float64(g.StellarMass)
		totCold += float64(g.ColdGas)
		totHot += float64(g.HotGas)
		totEjected += float64(g.EjectedMass)
		totEjectedMetals += float64(g.MetalsEjectedMass)
		totICS += float64(g.ICS)
		totICSMetals += float64(g.MetalsICS)

		if i != central {
			totSatBaryons += float64(g.StellarMass + g.ColdGas + g.HotGas)
			g.EjectedMass = 0
			g.MetalsEjectedMass = 0
			g.ICS = 0
			g.MetalsICS = 0
		}
	}

	modifier := m.reionizationModifier(ctx, halos[central].Mvir)
	infalling := modifier*m.baryonFrac*halos[central].Mvir -
		(totStellar + totCold + totHot + totEjected + totICS)

	cg := halos[central].Galaxy
	cg.EjectedMass = float32(totEjected)
	cg.MetalsEjectedMass = float32(totEjectedMetals)
	if cg.MetalsEjectedMass > cg.EjectedMass {
		cg.MetalsEjectedMass = cg.EjectedMass
	}
	if cg.EjectedMass < 0 {
		cg.EjectedMass = 0
		cg.MetalsEjectedMass = 0
	}
	if cg.MetalsEjectedMass < 0 {
		cg.MetalsEjectedMass = 0
	}

	cg.ICS = float32(totICS)
	cg.MetalsICS = float32(totICSMetals)
	if cg.MetalsICS > cg.ICS {
		cg.MetalsICS = cg.ICS
	}
	if cg.ICS < 0 {
		cg.ICS = 0
		cg.MetalsICS = 0
	}
	if cg.MetalsICS < 0 {
		cg.MetalsICS = 0
	}

	cg.TotalSatelliteBaryons = float32(totSatBaryons)
	return infalling
}

// stripFromSatellite moves a step's worth of a satellite's hot gas
// into the central's hot halo. Stripping is spread over strippingSteps
// snapshots to approximate a continuous process.
func (m *SageInfall) stripFromSatellite(ctx *Context, halos []halo.Halo, central, sat int) {
	g := halos[sat].Galaxy
	modifier := m.reionizationModifier(ctx, halos[sat].Mvir)

	stripped := -(modifier*m.baryonFrac*halos[sat].Mvir -
		float64(g.StellarMass+g.ColdGas+g.HotGas+g.EjectedMass+g.ICS)) /
		float64(m.strippingSteps)
	if stripped <= 0 {
		return
	}

	z := metallicity(g.HotGas, g.MetalsHotGas)
	strippedMetals := stripped * float64(z)
	if stripped > float64(g.HotGas) {
		stripped = float64(g.HotGas)
	}
	if strippedMetals > float64(g.MetalsHotGas) {
		strippedMetals = float64(g.MetalsHotGas)
	}

	g.HotGas -= float32(stripped)
	g.MetalsHotGas -= float32(strippedMetals)

	cg := halos[central].Galaxy
	cg.HotGas += float32(stripped)
	cg.MetalsHotGas += float32(stripped * float64(z))
}

// addInfallToHot adds infalling gas to the hot reservoir. Mass loss is
// taken from the ejected reservoir first, then from hot gas, keeping
// metals consistent with the gas they ride on.
func (m *SageInfall) addInfallToHot(g *halo.GalaxyData, infalling float64) {
	if infalling < 0 && g.EjectedMass > 0 {
		z := metallicity(g.EjectedMass, g.MetalsEjectedMass)
		g.MetalsEjectedMass += float32(infalling * float64(z))
		if g.MetalsEjectedMass < 0 {
			g.MetalsEjectedMass = 0
		}
		g.EjectedMass += float32(infalling)
		if g.EjectedMass < 0 {
			infalling = float64(g.EjectedMass)
			g.EjectedMass = 0
			g.MetalsEjectedMass = 0
		} else {
			infalling = 0
		}
	}

	if infalling < 0 && g.MetalsHotGas > 0 {
		z := metallicity(g.HotGas, g.MetalsHotGas)
		g.MetalsHotGas += float32(infalling * float64(z))
		if g.MetalsHotGas < 0 {
			g.MetalsHotGas = 0
		}
	}

	g.HotGas += float32(infalling)
	if g.HotGas < 0 {
		g.HotGas = 0
		g.MetalsHotGas = 0
	}
}
