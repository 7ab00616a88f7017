package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

func newSageStarFormation(t *testing.T, cfg *config.MimicConfig) *SageStarFormation {
	m := &SageStarFormation{}
	if err := m.Init(cfg); err != nil {
		t.Fatal(err.Error())
	}
	return m
}

func TestSageStarFormationValidation(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageStarformationFeedback": {"SFprescription": "1"},
	})
	assert.NotNil(t, (&SageStarFormation{}).Init(cfg),
		"unknown star formation prescription rejected")

	cfg = testConfig(t, nil, map[string]map[string]string{
		"SageStarformationFeedback": {"RecycleFraction": "2"},
	})
	assert.NotNil(t, (&SageStarFormation{}).Init(cfg),
		"recycled fraction above 1 rejected")
}

func TestDiskRadius(t *testing.T) {
	// Rd = lambda / sqrt(2) Rvir reduces to |J| / (2 Vvir).
	assert.InDelta(t, 2.0/400.0, diskRadius([3]float32{0, 0, 2}, 200, 0.2),
		1e-9, "Mo, Mao & White scale radius")
	assert.InDelta(t, 0.02, diskRadius([3]float32{1, 0, 0}, 0, 0.2),
		1e-9, "fallback for halos without virial properties")
}

func TestStarFormationConsumesColdGas(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageStarformationFeedback": {"Yield": "0"},
	})
	m := newSageStarFormation(t, cfg)
	ctx := testContext(cfg, 2)

	// The gas-rich disk saturates the feedback loop, so conservation
	// rescaling pins the step at stars = cold / (1 + epsilon).
	halos := []halo.Halo{{
		Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
		Spin:   [3]float32{0, 0, 2},
		Galaxy: &halo.GalaxyData{ColdGas: 1},
	}}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	g := halos[0].Galaxy
	stars, reheated := 0.25, 0.75
	assert.InDelta(t, 0.005, float64(g.DiskScaleRadius), 1e-8,
		"disk scale radius refreshed from the spin")
	assert.InEpsilon(t, (1-0.43)*stars, float64(g.StellarMass), 1e-5,
		"stars formed net of recycling")
	assert.InEpsilon(t, 1-(1-0.43)*stars-reheated, float64(g.ColdGas), 1e-5,
		"cold gas consumed and reheated")
	assert.InEpsilon(t, reheated, float64(g.HotGas), 1e-5,
		"a central reheats into its own hot halo")
	assert.InEpsilon(t, reheated, float64(g.OutflowRate), 1e-5,
		"outflow tallied")
	assert.InEpsilon(t, stars/ctx.Dt, float64(g.Sfr), 1e-5,
		"star formation rate recorded")
}

func TestStarFormationBelowThreshold(t *testing.T) {
	cfg := testConfig(t, nil, nil)
	m := newSageStarFormation(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{{
		Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
		Spin:   [3]float32{0, 0, 2},
		Galaxy: &halo.GalaxyData{ColdGas: 0.1},
	}}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, float32(0), halos[0].Galaxy.StellarMass,
		"no stars below the critical surface density")
	assert.Equal(t, float32(0.1), halos[0].Galaxy.ColdGas,
		"cold gas untouched")

	ctx.Dt = 0
	halos[0].Galaxy.ColdGas = 1
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, float32(0), halos[0].Galaxy.StellarMass,
		"no stars without an elapsed interval")
	assert.True(t, halos[0].Galaxy.DiskScaleRadius > 0,
		"disk radius still refreshed on the first snapshot")
}

func TestSatelliteFeedbackHeatsCentral(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageStarformationFeedback": {"Yield": "0"},
	})
	m := newSageStarFormation(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
			Galaxy: &halo.GalaxyData{}},
		{Type: halo.Satellite, Mvir: 1, Rvir: 0.1, Vvir: 200,
			Spin:   [3]float32{0, 0, 2},
			Galaxy: &halo.GalaxyData{ColdGas: 1}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	cg, sg := halos[0].Galaxy, halos[1].Galaxy
	assert.InEpsilon(t, 0.75, float64(cg.HotGas), 1e-5,
		"satellite supernovae reheat into the central's hot halo")
	assert.Equal(t, float32(0), sg.HotGas,
		"the satellite keeps no hot phase of its own")
	assert.True(t, sg.StellarMass > 0, "satellite forms stars")
}

func TestFeedbackEjectsHotGas(t *testing.T) {
	// Energetic supernovae unbind gas from a shallow central potential.
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageStarformationFeedback": {"Yield": "0", "EnergySNcode": "100"},
	})
	m := newSageStarFormation(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 1,
			Galaxy: &halo.GalaxyData{HotGas: 0.5}},
		{Type: halo.Satellite, Mvir: 1, Rvir: 0.1, Vvir: 200,
			Spin:   [3]float32{0, 0, 2},
			Galaxy: &halo.GalaxyData{ColdGas: 1}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	cg := halos[0].Galaxy
	assert.Equal(t, float32(0), cg.HotGas,
		"ejection is capped at the available hot gas")
	assert.InEpsilon(t, 0.5+0.75, float64(cg.EjectedMass), 1e-5,
		"reheated and pre-existing hot gas ejected together")
}

func TestStarFormationEnrichment(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageStarformationFeedback": {
			"SupernovaRecipeOn": "false", "FracZleaveDisk": "0",
		},
	})
	m := newSageStarFormation(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{{
		Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
		Spin:   [3]float32{0, 0, 2},
		Galaxy: &halo.GalaxyData{ColdGas: 1},
	}}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	g := halos[0].Galaxy
	assert.True(t, g.MetalsColdGas > 0,
		"new metals enrich the cold disk")
	assert.InEpsilon(t, 0.03, float64(g.MetalsColdGas)/
		(float64(g.StellarMass)/(1-0.43)), 1e-4,
		"enrichment follows the yield")
}
