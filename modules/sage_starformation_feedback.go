package modules

import (
	"fmt"
	"log"
	"math"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// SageStarFormation implements the star formation and supernova
// feedback recipe of the SAGE model (Croton et al. 2016). Stars form
// from cold gas above the Kauffmann (1996) critical surface density on
// the disk dynamical time, supernovae reheat cold gas into the
// central's hot halo, and sufficiently energetic feedback ejects hot
// gas from the halo entirely. Newly produced metals are split between
// the cold disk and the hot halo following Krumholz & Dekel (2011).
type SageStarFormation struct {
	prescription int
	efficiency   float64
	snOn         bool
	reheatEps    float64
	ejectEff     float64
	energySN     float64
	etaSN        float64
	recycle      float64
	yield        float64
	fracZleave   float64
}

func (m *SageStarFormation) Name() string { return "sage_starformation_feedback" }

func (m *SageStarFormation) Init(cfg *config.MimicConfig) error {
	var err error
	if m.prescription, err = ParamInt(cfg, "SageStarformationFeedback", "SFprescription", 0); err != nil {
		return err
	}
	if m.efficiency, err = ParamFloat(cfg, "SageStarformationFeedback", "SfrEfficiency", 0.02); err != nil {
		return err
	}
	if m.snOn, err = ParamBool(cfg, "SageStarformationFeedback", "SupernovaRecipeOn", true); err != nil {
		return err
	}
	if m.reheatEps, err = ParamFloat(cfg, "SageStarformationFeedback", "FeedbackReheatingEpsilon", 3.0); err != nil {
		return err
	}
	if m.ejectEff, err = ParamFloat(cfg, "SageStarformationFeedback", "FeedbackEjectionEfficiency", 0.3); err != nil {
		return err
	}
	if m.energySN, err = ParamFloat(cfg, "SageStarformationFeedback", "EnergySNcode", 1.0); err != nil {
		return err
	}
	if m.etaSN, err = ParamFloat(cfg, "SageStarformationFeedback", "EtaSNcode", 0.5); err != nil {
		return err
	}
	if m.recycle, err = ParamFloat(cfg, "SageStarformationFeedback", "RecycleFraction", 0.43); err != nil {
		return err
	}
	if m.yield, err = ParamFloat(cfg, "SageStarformationFeedback", "Yield", 0.03); err != nil {
		return err
	}
	if m.fracZleave, err = ParamFloat(cfg, "SageStarformationFeedback", "FracZleaveDisk", 0.3); err != nil {
		return err
	}

	if m.prescription != 0 {
		return fmt.Errorf("SageStarformationFeedback_SFprescription = %d: "+
			"only prescription 0 (Kennicutt-Schmidt with threshold) exists",
			m.prescription)
	}
	if m.efficiency < 0 || m.efficiency > 1 {
		return fmt.Errorf("SageStarformationFeedback_SfrEfficiency = %g "+
			"is outside [0, 1]", m.efficiency)
	}
	if m.reheatEps < 0 {
		return fmt.Errorf("SageStarformationFeedback_FeedbackReheatingEpsilon "+
			"= %g must be non-negative", m.reheatEps)
	}
	if m.ejectEff < 0 {
		return fmt.Errorf("SageStarformationFeedback_FeedbackEjectionEfficiency "+
			"= %g must be non-negative", m.ejectEff)
	}
	if m.energySN < 0 || m.etaSN < 0 {
		return fmt.Errorf("supernova energetics must be non-negative")
	}
	if m.recycle < 0 || m.recycle > 1 {
		return fmt.Errorf("SageStarformationFeedback_RecycleFraction = %g "+
			"is outside [0, 1]", m.recycle)
	}
	if m.yield < 0 || m.yield > 1 {
		return fmt.Errorf("SageStarformationFeedback_Yield = %g "+
			"is outside [0, 1]", m.yield)
	}
	if m.fracZleave < 0 || m.fracZleave > 1 {
		return fmt.Errorf("SageStarformationFeedback_FracZleaveDisk = %g "+
			"is outside [0, 1]", m.fracZleave)
	}

	log.Printf("SAGE star formation module: efficiency = %.4f, "+
		"supernova feedback on = %v", m.efficiency, m.snOn)
	return nil
}

func (m *SageStarFormation) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	central := -1
	for i := range halos {
		if halos[i].Type == halo.Central {
			central = i
			break
		}
	}
	if central == -1 {
		return nil
	}
	cg := halos[central].Galaxy
	if cg == nil {
		return fmt.Errorf("central halo %d has no galaxy data", central)
	}

	for i := range halos {
		g := halos[i].Galaxy
		if g == nil {
			continue
		}
		g.DiskScaleRadius = float32(diskRadius(
			halos[i].Spin, halos[i].Vvir, halos[i].Rvir))

		if ctx.Dt <= 0 {
			continue
		}

		// Kennicutt-Schmidt law with the Kauffmann (1996) critical
		// mass, evaluated over three disk scale lengths.
		reff := 3.0 * float64(g.DiskScaleRadius)
		var strdot float64
		coldCrit := 0.19 * halos[i].Vvir * reff
		if tdyn := reff / halos[i].Vvir; halos[i].Vvir > 0 && tdyn > 0 &&
			float64(g.ColdGas) > coldCrit {
			strdot = m.efficiency * (float64(g.ColdGas) - coldCrit) / tdyn
		}

		stars := strdot * ctx.Dt
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
		if m.snOn {
			vvirSq := halos[central].Vvir * halos[central].Vvir
			if vvirSq > 0 {
				ejected = (m.ejectEff*m.etaSN*m.energySN/vvirSq -
					m.reheatEps) * stars
			}
			if ejected < 0 {
				ejected = 0
			}
		}

		met := metallicity(g.ColdGas, g.MetalsColdGas)
		starFormationUpdate(g, float32(stars), met, float32(m.recycle))
		g.Sfr = float32(stars / ctx.Dt)

		met = metallicity(g.ColdGas, g.MetalsColdGas)
		if m.snOn {
			feedbackUpdate(g, cg, float32(reheated), float32(ejected), met)
		}

		// Metal enrichment under instantaneous recycling. Low mass
		// halos leak a larger share of new metals into the hot phase.
		if g.ColdGas > 1e-8 {
			fzl := m.fracZleave * math.Exp(-halos[central].Mvir/30.0)
			g.MetalsColdGas += float32(m.yield * (1 - fzl) * stars)
			cg.MetalsHotGas += float32(m.yield * fzl * stars)
		} else {
			cg.MetalsHotGas += float32(m.yield * stars)
		}
	}
	return nil
}

func (m *SageStarFormation) Cleanup() error { return nil }

// diskRadius returns the Mo, Mao & White (1998) disk scale radius,
// Rd = (lambda/sqrt(2)) Rvir with the Bullock et al. (2001) spin
// parameter lambda = |J| / (sqrt(2) Vvir Rvir). Halos without virial
// properties get a tenth of the virial radius as a fallback.
func diskRadius(spin [3]float32, vvir, rvir float64) float64 {
	if vvir <= 0 || rvir <= 0 {
		return 0.1 * rvir
	}
	j := math.Sqrt(float64(spin[0])*float64(spin[0]) +
		float64(spin[1])*float64(spin[1]) +
		float64(spin[2])*float64(spin[2]))
	lambda := j / (math.Sqrt2 * vvir * rvir)
	return lambda / math.Sqrt2 * rvir
}

// starFormationUpdate moves a burst of stars out of the cold gas under
// the instantaneous recycling approximation: a fraction recycle of the
// formed mass returns to the ISM immediately.
func starFormationUpdate(g *halo.GalaxyData, stars, met, recycle float32) {
	g.ColdGas -= (1 - recycle) * stars
	g.MetalsColdGas -= met * (1 - recycle) * stars
	g.StellarMass += (1 - recycle) * stars
	g.MetalsStellarMass += met * (1 - recycle) * stars
}

// feedbackUpdate reheats cold gas from g into the central's hot halo
// and ejects from the hot halo whatever mass the supernova energy can
// unbind. Metals ride along with the gas they are mixed into.
func feedbackUpdate(g, cg *halo.GalaxyData, reheated, ejected, met float32) {
	g.ColdGas -= reheated
	g.MetalsColdGas -= met * reheated
	cg.HotGas += reheated
	cg.MetalsHotGas += met * reheated

	if ejected > cg.HotGas {
		ejected = cg.HotGas
	}
	metHot := metallicity(cg.HotGas, cg.MetalsHotGas)
	cg.HotGas -= ejected
	cg.MetalsHotGas -= metHot * ejected
	cg.EjectedMass += ejected
	cg.MetalsEjectedMass += metHot * ejected

	g.OutflowRate += reheated
}
