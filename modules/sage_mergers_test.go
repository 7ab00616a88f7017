package modules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

func newSageMergers(t *testing.T, cfg *config.MimicConfig) *SageMergers {
	m := &SageMergers{}
	if err := m.Init(cfg); err != nil {
		t.Fatal(err.Error())
	}
	return m
}

func TestSageMergersValidation(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageMergers": {"ThreshMajorMerger": "1.5"},
	})
	assert.NotNil(t, (&SageMergers{}).Init(cfg),
		"major merger threshold above 1 rejected")
}

func TestMergingTimescale(t *testing.T) {
	cfg := testConfig(t, nil, nil)
	m := newSageMergers(t, cfg)

	host := &halo.Halo{Rvir: 0.2, Vvir: 200, Len: 200}
	sat := &halo.Halo{
		Len: 20, Mvir: 1,
		Galaxy: &halo.GalaxyData{StellarMass: 0.1, ColdGas: 0.1},
	}

	want := 2 * 1.17 * 0.2 * 0.2 * 200 /
		(math.Log(11) * 43.0071 * (1 + 0.1 + 0.1))
	assert.InEpsilon(t, want, m.mergingTimescale(sat, host), 1e-6,
		"dynamical friction timescale")

	empty := &halo.Halo{Galaxy: &halo.GalaxyData{}}
	assert.Equal(t, -1.0, m.mergingTimescale(empty, host),
		"massless orphan cannot be tracked")
}

func TestOrphanClockAssignedOnFirstSight(t *testing.T) {
	cfg := testConfig(t, nil, nil)
	m := newSageMergers(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200, Len: 200,
			MergTime: halo.MergTimeUnset, Galaxy: &halo.GalaxyData{}},
		{Type: halo.Orphan, Mvir: 1, Len: 20,
			Galaxy: &halo.GalaxyData{StellarMass: 0.1, ColdGas: 0.1}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	want := m.mergingTimescale(&halos[1], &halos[0])
	assert.InEpsilon(t, want-ctx.Dt, halos[1].MergTime, 1e-6,
		"zeroed clock replaced and decremented")
	assert.Equal(t, int32(0), halos[1].MergeStatus,
		"lineage survives while the clock runs")
	assert.Equal(t, halo.MergTimeUnset, halos[0].MergTime,
		"central clock untouched")
}

func TestOrphanMergesWhenClockExpires(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageMergers": {
			"AGNrecipeOn": "false", "SupernovaRecipeOn": "false",
			"Yield": "0",
		},
	})
	m := newSageMergers(t, cfg)
	ctx := testContext(cfg, 2)
	ctx.GroupStart = 5

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
			Galaxy: &halo.GalaxyData{
				StellarMass:           1,
				TimeOfLastMajorMerger: -1, TimeOfLastMinorMerger: -1,
			}},
		{Type: halo.Orphan, MergTime: 1e-6,
			Galaxy: &halo.GalaxyData{
				StellarMass: 0.05, MetalsStellarMass: 0.01, HotGas: 0.2,
			}},
		// An orphan whose orbit cannot be estimated merges in the
		// same step it appears.
		{Type: halo.Orphan, Galaxy: &halo.GalaxyData{}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	cg := halos[0].Galaxy
	assert.Equal(t, int32(MergeMinor), halos[1].MergeStatus,
		"low mass ratio is a minor merger")
	assert.Equal(t, int32(5), halos[1].MergeIntoID,
		"merge target is the central's arena index")
	assert.Equal(t, int32(2), halos[1].MergeIntoSnapNum,
		"merge snapshot recorded")
	assert.InDelta(t, 1.05, float64(cg.StellarMass), 1e-6,
		"satellite stars land on the central")
	assert.InDelta(t, 0.05, float64(cg.BulgeMass), 1e-6,
		"satellite stars land in the bulge")
	assert.InDelta(t, 0.01, float64(cg.MetalsBulgeMass), 1e-6,
		"bulge metals follow the stars")
	assert.InDelta(t, 0.2, float64(cg.HotGas), 1e-6,
		"satellite hot gas lands on the central")
	assert.Equal(t, float32(-1), cg.TimeOfLastMinorMerger,
		"a 1:20 merger is below the minor merger record threshold")

	assert.NotEqual(t, int32(0), halos[2].MergeStatus,
		"untrackable orphan merges immediately")
}

func TestMajorMergerBuildsBulge(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageMergers": {
			"AGNrecipeOn": "false", "SupernovaRecipeOn": "false",
			"Yield": "0",
		},
	})
	m := newSageMergers(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
			Galaxy: &halo.GalaxyData{
				StellarMass:           1,
				TimeOfLastMajorMerger: -1, TimeOfLastMinorMerger: -1,
			}},
		{Type: halo.Orphan, MergTime: 1e-6,
			Galaxy: &halo.GalaxyData{StellarMass: 0.5}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	cg := halos[0].Galaxy
	assert.Equal(t, int32(MergeMajor), halos[1].MergeStatus,
		"baryon ratio above the threshold is a major merger")
	assert.Equal(t, cg.StellarMass, cg.BulgeMass,
		"violent relaxation leaves a pure spheroid")
	assert.Equal(t, float32(ctx.Time), cg.TimeOfLastMajorMerger,
		"major merger epoch recorded")
	assert.Equal(t, float32(ctx.Time), cg.TimeOfLastMinorMerger,
		"a major merger is also the last minor merger")
}

func TestMinorMergerKeepsDisk(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageMergers": {
			"AGNrecipeOn": "false", "SupernovaRecipeOn": "false",
			"Yield": "0",
		},
	})
	m := newSageMergers(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
			Galaxy: &halo.GalaxyData{
				StellarMass:           1,
				TimeOfLastMajorMerger: -1, TimeOfLastMinorMerger: -1,
			}},
		{Type: halo.Orphan, MergTime: 1e-6,
			Galaxy: &halo.GalaxyData{StellarMass: 0.2}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	cg := halos[0].Galaxy
	assert.Equal(t, int32(MergeMinor), halos[1].MergeStatus, "minor merger")
	assert.InDelta(t, 0.2, float64(cg.BulgeMass), 1e-6,
		"only the accreted stars join the bulge")
	assert.Equal(t, float32(-1), cg.TimeOfLastMajorMerger,
		"no major merger recorded")
	assert.Equal(t, float32(ctx.Time), cg.TimeOfLastMinorMerger,
		"minor merger epoch recorded")
}

func TestQuasarWindEjectsColdGas(t *testing.T) {
	cfg := testConfig(t, nil, map[string]map[string]string{
		"SageMergers": {
			"QuasarModeEfficiency": "10",
			"SupernovaRecipeOn":    "false", "Yield": "0",
		},
	})
	m := newSageMergers(t, cfg)
	ctx := testContext(cfg, 2)

	halos := []halo.Halo{
		{Type: halo.Central, Mvir: 10, Rvir: 0.2, Vvir: 200,
			Galaxy: &halo.GalaxyData{ColdGas: 1}},
		{Type: halo.Orphan, MergTime: 1e-6,
			Galaxy: &halo.GalaxyData{ColdGas: 1}},
	}
	if err := m.ProcessHalos(ctx, halos); err != nil {
		t.Fatal(err.Error())
	}

	cg := halos[0].Galaxy
	assert.True(t, cg.BlackHoleMass > 0, "the merger feeds the black hole")
	assert.Equal(t, cg.BlackHoleMass, cg.QuasarModeBHaccretionMass,
		"quasar mode accretion tallied")
	assert.Equal(t, float32(0), cg.ColdGas,
		"the quasar wind empties the cold disk")
	assert.InDelta(t, 2, float64(cg.EjectedMass+cg.BlackHoleMass), 1e-6,
		"ejected gas and black hole account for the merged disks")
}
