package modules

import (
	"fmt"
	"log"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// StellarMass is a placeholder stellar mass module that sets each
// central's stellar mass to a fixed fraction of its virial mass,
// StellarMass = Efficiency * Mvir. It exists to exercise the module
// system rather than to model star formation.
type StellarMass struct {
	efficiency float64
}

func (m *StellarMass) Name() string { return "stellar_mass" }

func (m *StellarMass) Init(cfg *config.MimicConfig) error {
	var err error
	m.efficiency, err = ParamFloat(cfg, "StellarMass", "Efficiency", 0.1)
	if err != nil {
		return err
	}
	if m.efficiency <= 0 || m.efficiency > 1 {
		return fmt.Errorf("StellarMass_Efficiency = %g is outside (0, 1]",
			m.efficiency)
	}
	log.Printf("Stellar mass module: StellarMass = %.2f * Mvir", m.efficiency)
	return nil
}

func (m *StellarMass) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	for i := range halos {
		if halos[i].Type != halo.Central {
			continue
		}
		if halos[i].Galaxy == nil {
			return fmt.Errorf("central halo %d has no galaxy data", i)
		}
		halos[i].Galaxy.StellarMass = float32(m.efficiency * halos[i].Mvir)
	}
	return nil
}

func (m *StellarMass) Cleanup() error { return nil }
