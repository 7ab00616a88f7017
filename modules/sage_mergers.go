package modules

import (
	"fmt"
	"log"
	"math"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// Merge status codes recorded on a lineage's final appearance.
const (
	MergeMinor = 1
	MergeMajor = 2
)

// SageMergers drives the merger machinery of the SAGE model (Croton
// et al. 2016). When a subhalo is lost from the catalog its halo
// becomes an orphan with a zeroed merger clock; this module replaces
// the zero with a Binney & Tremaine (1987) dynamical friction
// timescale, counts the clock down each snapshot, and on expiry merges
// the orphan's galaxy into its group central: reservoirs combine, the
// black hole grows and may blow a quasar wind (Kauffmann & Haehnelt
// 2000), a collisional starburst fires (Somerville et al. 2001), and a
// major merger turns the remnant into a spheroid.
type SageMergers struct {
	bhGrowthRate float64
	quasarEff    float64
	threshMajor  float64
	recycle      float64
	yield        float64
	fracZleave   float64
	reheatEps    float64
	ejectEff     float64
	agnOn        bool
	snOn         bool
}

// Supernova energetics in code units: ejecta mass per SN and the
// canonical 1e51 erg, folded into the ejection efficiency calibration.
const (
	mergerEtaSN    = 8.0e-3
	mergerEnergySN = 1.0
)

// gDyn is G in (Mpc/h) (km/s)^2 / (1e10 Msun/h), used by the
// dynamical friction timescale.
const gDyn = 43.0071

func (m *SageMergers) Name() string { return "sage_mergers" }

func (m *SageMergers) Init(cfg *config.MimicConfig) error {
	var err error
	if m.bhGrowthRate, err = ParamFloat(cfg, "SageMergers", "BlackHoleGrowthRate", 0.01); err != nil {
		return err
	}
	if m.quasarEff, err = ParamFloat(cfg, "SageMergers", "QuasarModeEfficiency", 0.001); err != nil {
		return err
	}
	if m.threshMajor, err = ParamFloat(cfg, "SageMergers", "ThreshMajorMerger", 0.3); err != nil {
		return err
	}
	if m.recycle, err = ParamFloat(cfg, "SageMergers", "RecycleFraction", 0.43); err != nil {
		return err
	}
	if m.yield, err = ParamFloat(cfg, "SageMergers", "Yield", 0.03); err != nil {
		return err
	}
	if m.fracZleave, err = ParamFloat(cfg, "SageMergers", "FracZleaveDisk", 0.3); err != nil {
		return err
	}
	if m.reheatEps, err = ParamFloat(cfg, "SageMergers", "FeedbackReheatingEpsilon", 3.0); err != nil {
		return err
	}
	if m.ejectEff, err = ParamFloat(cfg, "SageMergers", "FeedbackEjectionEfficiency", 0.3); err != nil {
		return err
	}
	if m.agnOn, err = ParamBool(cfg, "SageMergers", "AGNrecipeOn", true); err != nil {
		return err
	}
	if m.snOn, err = ParamBool(cfg, "SageMergers", "SupernovaRecipeOn", true); err != nil {
		return err
	}

	if m.threshMajor < 0 || m.threshMajor > 1 {
		return fmt.Errorf("SageMergers_ThreshMajorMerger = %g "+
			"is outside [0, 1]", m.threshMajor)
	}
	if m.recycle < 0 || m.recycle > 1 {
		return fmt.Errorf("SageMergers_RecycleFraction = %g "+
			"is outside [0, 1]", m.recycle)
	}

	log.Printf("SAGE mergers module: major merger threshold = %.2f, "+
		"AGN on = %v", m.threshMajor, m.agnOn)
	return nil
}

func (m *SageMergers) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	central := -1
	for i := range halos {
		if halos[i].Type == halo.Central {
			central = i
			break
		}
	}
	if central == -1 || halos[central].Galaxy == nil {
		return nil
	}

	for i := range halos {
		if halos[i].Type != halo.Orphan || halos[i].Galaxy == nil {
			continue
		}
		if halos[i].MergTime > halo.MergTimeThreshold {
			continue
		}
		// A zeroed clock marks an orphan this module has not seen
		// yet; a failed estimate merges it within the step.
		if halos[i].MergTime == 0 {
			halos[i].MergTime = m.mergingTimescale(&halos[i], &halos[central])
		}
		halos[i].MergTime -= ctx.Dt
		if halos[i].MergTime > 0 {
			continue
		}
		m.merge(ctx, &halos[i], &halos[central], central)
	}
	return nil
}

func (m *SageMergers) Cleanup() error { return nil }

// mergingTimescale returns the Binney & Tremaine (1987) dynamical
// friction timescale for an orphan decaying onto its host, or -1 when
// the orbit cannot be estimated.
func (m *SageMergers) mergingTimescale(sat, host *halo.Halo) float64 {
	lenRatio := 1.0
	if sat.Len > 0 {
		lenRatio = float64(host.Len) / float64(sat.Len)
	}
	coulomb := math.Log(lenRatio + 1)

	satMass := sat.Mvir
	if g := sat.Galaxy; g != nil {
		satMass += float64(g.StellarMass + g.ColdGas)
	}

	if coulomb*satMass <= 0 {
		return -1
	}
	return 2 * 1.17 * host.Rvir * host.Rvir * host.Vvir /
		(coulomb * gDyn * satMass)
}

// merge folds the orphan's galaxy into the central's and stamps the
// orphan's record as this lineage's final appearance.
func (m *SageMergers) merge(ctx *Context, sat, cen *halo.Halo, cenIdx int) {
	sg, cg := sat.Galaxy, cen.Galaxy

	// Baryonic mass ratio, minor over major; gas-free pairs count as
	// equal mass.
	satBaryons := float64(sg.StellarMass + sg.ColdGas)
	cenBaryons := float64(cg.StellarMass + cg.ColdGas)
	mi, ma := satBaryons, cenBaryons
	if mi > ma {
		mi, ma = ma, mi
	}
	ratio := 1.0
	if ma > 0 {
		ratio = mi / ma
	}

	addGalaxiesTogether(cg, sg)

	if m.agnOn {
		before := cg.BlackHoleMass
		m.growBlackHole(cg, ratio, cen.Vvir)
		m.quasarWind(cg, float64(cg.BlackHoleMass-before), cen.Vvir)
	}

	m.starburst(ratio, cg, cg, cen.Vvir, cen.Mvir)

	if ratio > 0.1 {
		cg.TimeOfLastMinorMerger = float32(ctx.Time)
	}
	if ratio > m.threshMajor {
		// Violent relaxation leaves a pure spheroid behind.
		cg.BulgeMass = cg.StellarMass
		cg.MetalsBulgeMass = cg.MetalsStellarMass
		cg.TimeOfLastMajorMerger = float32(ctx.Time)
		sat.MergeStatus = MergeMajor
	} else {
		sat.MergeStatus = MergeMinor
	}
	sat.MergeIntoID = int32(ctx.GroupStart + cenIdx)
	sat.MergeIntoSnapNum = int32(ctx.Snap)
}

// addGalaxiesTogether moves every reservoir of the satellite onto the
// central. The satellite's stars land in the central's bulge.
func addGalaxiesTogether(cg, sg *halo.GalaxyData) {
	cg.ColdGas += sg.ColdGas
	cg.MetalsColdGas += sg.MetalsColdGas

	cg.HotGas += sg.HotGas
	cg.MetalsHotGas += sg.MetalsHotGas

	cg.EjectedMass += sg.EjectedMass
	cg.MetalsEjectedMass += sg.MetalsEjectedMass

	cg.StellarMass += sg.StellarMass
	cg.MetalsStellarMass += sg.MetalsStellarMass

	cg.ICS += sg.ICS
	cg.MetalsICS += sg.MetalsICS

	cg.BlackHoleMass += sg.BlackHoleMass

	cg.BulgeMass += sg.StellarMass
	cg.MetalsBulgeMass += sg.MetalsStellarMass
}

// growBlackHole accretes cold gas onto the central black hole
// following Kauffmann & Haehnelt (2000): more equal mergers in deeper
// potentials feed the hole more efficiently.
func (m *SageMergers) growBlackHole(cg *halo.GalaxyData, ratio, vvir float64) {
	if cg.ColdGas <= 0 {
		return
	}
	suppression := 1e10
	if vvir > 0 {
		suppression = 280 / vvir
	}
	accrete := m.bhGrowthRate * ratio / (1 + suppression*suppression) *
		float64(cg.ColdGas)
	if accrete > float64(cg.ColdGas) {
		accrete = float64(cg.ColdGas)
	}

	met := metallicity(cg.ColdGas, cg.MetalsColdGas)
	cg.BlackHoleMass += float32(accrete)
	cg.ColdGas -= float32(accrete)
	cg.MetalsColdGas -= met * float32(accrete)
	cg.QuasarModeBHaccretionMass += float32(accrete)
}

// quasarWind ejects gas whose binding energy the quasar outburst can
// overcome: first the cold disk, then the hot halo as well.
func (m *SageMergers) quasarWind(cg *halo.GalaxyData, accreted, vvir float64) {
	// c in units of 100 km/s; the wind carries 10% of the accreted
	// rest mass energy.
	const cCode = 2.99792458e5 / 100.0
	quasarEnergy := m.quasarEff * 0.1 * accreted * cCode * cCode

	coldEnergy := 0.5 * float64(cg.ColdGas) * vvir * vvir
	hotEnergy := 0.5 * float64(cg.HotGas) * vvir * vvir

	if quasarEnergy > coldEnergy {
		cg.EjectedMass += cg.ColdGas
		cg.MetalsEjectedMass += cg.MetalsColdGas
		cg.ColdGas = 0
		cg.MetalsColdGas = 0
	}
	if quasarEnergy > coldEnergy+hotEnergy {
		cg.EjectedMass += cg.HotGas
		cg.MetalsEjectedMass += cg.MetalsHotGas
		cg.HotGas = 0
		cg.MetalsHotGas = 0
	}
}

// starburst fires the merger-induced starburst with the Somerville et
// al. (2001) efficiency using the Cox thesis coefficients. Burst stars
// form in the bulge of the remnant.
func (m *SageMergers) starburst(ratio float64, g, cg *halo.GalaxyData,
	vvir, mvir float64) {

	eburst := 0.56 * math.Pow(ratio, 0.7)
	stars := eburst * float64(g.ColdGas)
	if stars < 0 {
		stars = 0
	}

	var reheated float64
	if m.snOn {
		reheated = m.reheatEps * stars
	}
	if stars+reheated > float64(g.ColdGas) && stars+reheated > 0 {
		fac := float64(g.ColdGas) / (stars + reheated)
		stars *= fac
		reheated *= fac
	}

	var ejected float64
	if m.snOn && vvir > 0 {
		ejected = (m.ejectEff*mergerEtaSN*mergerEnergySN/(vvir*vvir) -
			m.reheatEps) * stars
		if ejected < 0 {
			ejected = 0
		}
	}

	met := metallicity(g.ColdGas, g.MetalsColdGas)
	starFormationUpdate(g, float32(stars), met, float32(m.recycle))
	g.BulgeMass += float32((1 - m.recycle) * stars)
	g.MetalsBulgeMass += met * float32((1-m.recycle)*stars)

	met = metallicity(g.ColdGas, g.MetalsColdGas)
	if m.snOn {
		feedbackUpdate(g, cg, float32(reheated), float32(ejected), met)
	}

	if g.ColdGas > 1e-8 && ratio < m.threshMajor {
		fzl := m.fracZleave * math.Exp(-mvir/30.0)
		g.MetalsColdGas += float32(m.yield * (1 - fzl) * stars)
		cg.MetalsHotGas += float32(m.yield * fzl * stars)
	} else {
		cg.MetalsHotGas += float32(m.yield * stars)
	}
}
