package modules

import (
	"fmt"
	"log"
	"math"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// SageCooling implements the hot halo cooling and radio-mode AGN
// heating recipe of the SAGE model (Croton et al. 2006). Hot gas cools
// onto each group central from within the radius where the cooling
// time equals the dynamical time, in the cold accretion regime when
// that radius exceeds the virial radius. The central black hole
// accretes from the hot phase and the released energy suppresses
// cooling, with the suppression remembered through a growing heating
// radius.
type SageCooling struct {
	radioModeEff float64
	agnRecipe    int
	coolDir      string

	tables *coolingTables

	// Unit conversion factors derived from the run's unit system.
	unitTimeInS      float64
	unitDensityInCGS float64
	unitEnergyInCGS  float64
	massRateToPhys   float64
	hubbleH          float64
	g                float64
}

const (
	protonMassCGS = 1.6726e-24
	boltzmannCGS  = 1.3806e-16
	secPerYear    = 3.155e7
)

func (m *SageCooling) Name() string { return "sage_cooling" }

func (m *SageCooling) Init(cfg *config.MimicConfig) error {
	var err error
	if m.radioModeEff, err = ParamFloat(cfg, "SageCooling", "RadioModeEfficiency", 0.01); err != nil {
		return err
	}
	if m.agnRecipe, err = ParamInt(cfg, "SageCooling", "AGNrecipeOn", 1); err != nil {
		return err
	}
	m.coolDir = cfg.Param("SageCooling", "CoolFunctionsDir", "")

	if m.radioModeEff < 0 {
		return fmt.Errorf("SageCooling_RadioModeEfficiency = %g "+
			"must be non-negative", m.radioModeEff)
	}
	if m.agnRecipe < 0 || m.agnRecipe > 3 {
		return fmt.Errorf("SageCooling_AGNrecipeOn = %d must be 0 (off), "+
			"1 (empirical), 2 (Bondi-Hoyle), or 3 (cold cloud)", m.agnRecipe)
	}
	if m.coolDir == "" {
		return fmt.Errorf("SageCooling_CoolFunctionsDir must point at the " +
			"Sutherland & Dopita cooling table directory")
	}

	if m.tables, err = loadCoolingTables(m.coolDir); err != nil {
		return err
	}

	m.unitTimeInS = cfg.UnitTimeInS
	m.unitDensityInCGS = cfg.UnitMassInG /
		(cfg.UnitLengthInCm * cfg.UnitLengthInCm * cfg.UnitLengthInCm)
	m.unitEnergyInCGS = cfg.UnitMassInG *
		cfg.UnitLengthInCm * cfg.UnitLengthInCm /
		(cfg.UnitTimeInS * cfg.UnitTimeInS)
	m.massRateToPhys = cfg.UnitMassInG / cfg.UnitTimeInS *
		secPerYear / solarMassG
	m.hubbleH = cfg.HubbleH
	m.g = cfg.Cosmo.G

	log.Printf("SAGE cooling module: RadioModeEfficiency = %.4f, "+
		"AGN recipe = %d, tables from %s",
		m.radioModeEff, m.agnRecipe, m.coolDir)
	return nil
}

func (m *SageCooling) ProcessHalos(ctx *Context, halos []halo.Halo) error {
	if ctx.Dt <= 0 {
		return nil
	}
	for i := range halos {
		// Satellites do not accrete fresh gas; their hot halos only
		// drain through stripping.
		if halos[i].Type != halo.Central {
			continue
		}
		g := halos[i].Galaxy
		if g == nil {
			return fmt.Errorf("central halo %d has no galaxy data", i)
		}

		coolingGas, x, rcool := m.coolingRecipe(&halos[i], ctx.Dt)
		if m.agnRecipe > 0 && coolingGas > 0 {
			coolingGas = m.agnHeating(&halos[i], coolingGas, ctx.Dt, x, rcool)
		}
		if coolingGas > 0 {
			m.coolOntoGalaxy(g, coolingGas, halos[i].Vvir)
		}
	}
	return nil
}

func (m *SageCooling) Cleanup() error { return nil }

// coolingRecipe returns the hot gas mass that cools within dt, along
// with the cooling density coefficient x (internal units) and the
// cooling radius, both reused by the AGN heating step. The hot halo is
// taken to be isothermal, T = 35.9 Vvir^2.
func (m *SageCooling) coolingRecipe(h *halo.Halo, dt float64) (coolingGas, x, rcool float64) {
	g := h.Galaxy
	hot := float64(g.HotGas)
	if hot <= 0 || h.Vvir <= 0 || h.Rvir <= 0 {
		return 0, 0, 0
	}

	tcool := h.Rvir / h.Vvir
	temp := 35.9 * h.Vvir * h.Vvir

	logZ := -10.0
	if g.MetalsHotGas > 0 {
		logZ = math.Log10(float64(g.MetalsHotGas) / hot)
	}

	lambda := m.tables.Lambda(math.Log10(temp), logZ)

	// x is the gas density at which the cooling time equals tcool,
	// converted from cgs to internal units.
	x = protonMassCGS * boltzmannCGS * temp / lambda
	x /= m.unitDensityInCGS * m.unitTimeInS

	// 0.885 = 3/2 mu with mu = 0.59 for a fully ionized gas.
	rhoRcool := x / tcool * 0.885
	rho0 := hot / (4 * math.Pi * h.Rvir)
	rcool = math.Sqrt(rho0 / rhoRcool)

	if rcool > h.Rvir {
		// Cold accretion: the whole halo cools on a dynamical time.
		coolingGas = hot / tcool * dt
	} else {
		coolingGas = hot / h.Rvir * rcool / (2 * tcool) * dt
	}
	if coolingGas > hot {
		coolingGas = hot
	} else if coolingGas < 0 {
		coolingGas = 0
	}
	return coolingGas, x, rcool
}

// agnHeating suppresses coolingGas by black hole feedback and grows
// the black hole by the accretion that powers it. Past outbursts keep
// suppressing cooling through the heating radius.
func (m *SageCooling) agnHeating(h *halo.Halo, coolingGas, dt, x, rcool float64) float64 {
	g := h.Galaxy
	hot := float64(g.HotGas)
	bh := float64(g.BlackHoleMass)
	rHeat := float64(g.HeatingRadius)

	if rHeat < rcool && rcool > 0 {
		coolingGas *= 1 - rHeat/rcool
	} else {
		coolingGas = 0
	}
	if hot <= 0 {
		return coolingGas
	}

	var agnRate float64
	switch m.agnRecipe {
	case 2:
		// Bondi-Hoyle accretion from the hot atmosphere.
		agnRate = 2.5 * math.Pi * m.g * 0.375 * 0.6 * x * bh * m.radioModeEff
	case 3:
		// Cold cloud accretion once the black hole outweighs the
		// cloud mass inside the cooling radius.
		if rcool > 0 && bh > 0.0001*h.Mvir*math.Pow(rcool/h.Rvir, 3) {
			agnRate = 0.0001 * coolingGas / dt
		}
	default:
		// Empirical recipe scaling with black hole mass, virial
		// velocity, and hot gas fraction.
		rate := m.radioModeEff / m.massRateToPhys * (bh / 0.01) *
			math.Pow(h.Vvir/200.0, 3)
		if h.Mvir > 0 {
			rate *= hot / h.Mvir / 0.1
		}
		agnRate = rate
	}

	// Eddington limit on the accretion rate, with a 10% radiative
	// efficiency converting luminosity to accreted mass.
	eddRate := (1.3e38 * bh * 1e10 / m.hubbleH) /
		(m.unitEnergyInCGS / m.unitTimeInS) / (0.1 * 9e10)
	if agnRate > eddRate {
		agnRate = eddRate
	}

	accreted := agnRate * dt
	if accreted > hot {
		accreted = hot
	}

	// 1.34e5 km/s is sqrt(2 eta c^2) for eta = 0.1: heated mass per
	// unit accreted mass at the halo's virial velocity.
	coeff := 1.0
	if h.Vvir > 0 {
		coeff = math.Pow(1.34e5/h.Vvir, 2)
	}
	heating := coeff * accreted
	if heating > coolingGas {
		if coeff > 0 {
			accreted = coolingGas / coeff
		}
		heating = coolingGas
	}

	met := metallicity(g.HotGas, g.MetalsHotGas)
	g.BlackHoleMass += float32(accreted)
	g.HotGas -= float32(accreted)
	g.MetalsHotGas -= met * float32(accreted)

	if rHeat < rcool && coolingGas > 0 {
		if rNew := heating / coolingGas * rcool; rNew > rHeat {
			g.HeatingRadius = float32(rNew)
		}
	}
	if heating > 0 {
		g.Heating += float32(0.5 * heating * h.Vvir * h.Vvir)
	}

	return coolingGas
}

// coolOntoGalaxy moves coolingGas and its metals from the hot halo to
// the cold disk and charges the energy budget.
func (m *SageCooling) coolOntoGalaxy(g *halo.GalaxyData, coolingGas, vvir float64) {
	if coolingGas > float64(g.HotGas) {
		coolingGas = float64(g.HotGas)
	}
	met := metallicity(g.HotGas, g.MetalsHotGas)

	g.HotGas -= float32(coolingGas)
	g.ColdGas += float32(coolingGas)
	g.MetalsHotGas -= met * float32(coolingGas)
	g.MetalsColdGas += met * float32(coolingGas)

	g.Cooling += float32(0.5 * coolingGas * vvir * vvir)
}
