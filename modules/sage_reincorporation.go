package modules

import (
	"fmt"
	"log"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// vcritBase is the virial velocity above which a halo can recapture
// its ejected gas: the SAGE supernova wind speed of 630 km/s divided
// by sqrt(2).
const vcritBase = 445.48

// SageReincorporation returns ejected gas to the hot halo of centrals
// massive enough to recapture their supernova-driven winds (Croton et
// al. 2016). The return rate scales with how far the virial velocity
// exceeds the critical one, over the halo dynamical time.
type SageReincorporation struct {
	factor float64
}

func (m *SageReincorporation) Name() string { return "sage_reincorporation" }

func (m *SageReincorporation) Init(cfg *config.MimicConfig) error {
	var err error
	if m.factor, err = ParamFloat(cfg, "SageReincorporation", "ReIncorporationFactor", 1.0); err != nil {
		return err
	}
	if m.factor < 0 || m.factor > 10 {
		return fmt.Errorf("SageReincorporation_ReIncorporationFactor = %g "+
			"is outside [0, 10]", m.factor)
	}

	log.Printf("SAGE reincorporation module: Vcrit = %.2f km/s",
		vcritBase*m.factor)
	return nil
}

func (m *SageReincorporation) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	if ctx.Dt <= 0 {
		return nil
	}
	vcrit := vcritBase * m.factor

	for i := range halos {
		if halos[i].Type != halo.Central {
			continue
		}
		g := halos[i].Galaxy
		if g == nil {
			return fmt.Errorf("central halo %d has no galaxy data", i)
		}
		if g.EjectedMass <= 0 || halos[i].Vvir <= vcrit || halos[i].Rvir <= 0 {
			continue
		}

		back := (halos[i].Vvir/vcrit - 1) * float64(g.EjectedMass) *
			halos[i].Vvir / halos[i].Rvir * ctx.Dt
		if back > float64(g.EjectedMass) {
			back = float64(g.EjectedMass)
		}

		met := metallicity(g.EjectedMass, g.MetalsEjectedMass)
		g.EjectedMass -= float32(back)
		g.MetalsEjectedMass -= met * float32(back)
		g.HotGas += float32(back)
		g.MetalsHotGas += met * float32(back)
	}
	return nil
}

func (m *SageReincorporation) Cleanup() error { return nil }
