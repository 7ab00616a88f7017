package modules

import (
	"fmt"
	"log"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// SimpleCooling converts a fixed fraction of each growing central's
// newly accreted mass into cold gas, ColdGas += BaryonFraction *
// DeltaMvir. Halos losing mass gain nothing.
type SimpleCooling struct {
	baryonFraction float64
}

func (m *SimpleCooling) Name() string { return "simple_cooling" }

func (m *SimpleCooling) Init(cfg *config.MimicConfig) error {
	var err error
	m.baryonFraction, err = ParamFloat(cfg, "SimpleCooling", "BaryonFraction", 0.15)
	if err != nil {
		return err
	}
	if m.baryonFraction <= 0 || m.baryonFraction > 1 {
		return fmt.Errorf("SimpleCooling_BaryonFraction = %g is outside (0, 1]",
			m.baryonFraction)
	}
	log.Printf("Simple cooling module: ColdGas += %.3f * deltaMvir",
		m.baryonFraction)
	return nil
}

func (m *SimpleCooling) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	for i := range halos {
		if halos[i].Type != halo.Central {
			continue
		}
		if halos[i].Galaxy == nil {
			return fmt.Errorf("central halo %d has no galaxy data", i)
		}
		if halos[i].DeltaMvir > 0 {
			halos[i].Galaxy.ColdGas +=
				float32(m.baryonFraction * halos[i].DeltaMvir)
		}
	}
	return nil
}

func (m *SimpleCooling) Cleanup() error { return nil }
