package modules

import (
	"fmt"
	"log"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// SimpleSFR forms stars from cold gas with a Kennicutt-Schmidt-like
// law, dStellarMass = Efficiency * ColdGas * (Vvir/Rvir) * dt. It
// depends on a cooling module having filled ColdGas and must run after
// one in the pipeline.
type SimpleSFR struct {
	efficiency float64
}

func (m *SimpleSFR) Name() string { return "simple_sfr" }

func (m *SimpleSFR) Init(cfg *config.MimicConfig) error {
	var err error
	m.efficiency, err = ParamFloat(cfg, "SimpleSFR", "Efficiency", 0.02)
	if err != nil {
		return err
	}
	if m.efficiency <= 0 {
		return fmt.Errorf("SimpleSFR_Efficiency = %g must be positive",
			m.efficiency)
	}
	log.Printf("Simple SFR module: dStars = %.3f * ColdGas * (Vvir/Rvir) * dt",
		m.efficiency)
	return nil
}

func (m *SimpleSFR) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	if ctx.Dt <= 0 {
		return nil
	}
	for i := range halos {
		if halos[i].Type != halo.Central {
			continue
		}
		g := halos[i].Galaxy
		if g == nil {
			return fmt.Errorf("central halo %d has no galaxy data", i)
		}
		if g.ColdGas <= 0 || halos[i].Rvir <= 0 {
			continue
		}

		invTdyn := halos[i].Vvir / halos[i].Rvir
		dStars := float32(m.efficiency * float64(g.ColdGas) * invTdyn * ctx.Dt)
		if dStars > g.ColdGas {
			dStars = g.ColdGas
		}

		g.ColdGas -= dStars
		g.StellarMass += dStars
		g.Sfr = float32(float64(dStars) / ctx.Dt)
	}
	return nil
}

func (m *SimpleSFR) Cleanup() error { return nil }
