package halo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/tree"
)

// testConfig returns a run configuration with SAGE-like internal units
// (Mpc/h, 1e10 Msun/h, km/s) and the given snapshot scale factors.
func testConfig(t *testing.T, aa []float64) *config.MimicConfig {
	cfg := &config.MimicConfig{
		Omega:       0.25,
		OmegaLambda: 0.75,
		HubbleH:     0.73,
		PartMass:    0.1,

		UnitLengthInCm:       3.085678e24,
		UnitMassInG:          1.989e43,
		UnitVelocityInCmPerS: 1e5,
	}
	cfg.SetUnits()
	if err := cfg.SetSnapshots(aa); err != nil {
		t.Fatal(err.Error())
	}
	return cfg
}

func twoSnapConfig(t *testing.T) *config.MimicConfig {
	return testConfig(t, []float64{0.5, 1.0})
}

// raw returns a RawHalo with the given links, particle count, and
// catalog mass.
func raw(snap, desc, firstProg, nextProg, fofFirst, fofNext int,
	n int32, mvir float32) tree.RawHalo {

	return tree.RawHalo{
		Descendant:          int32(desc),
		FirstProgenitor:     int32(firstProg),
		NextProgenitor:      int32(nextProg),
		FirstHaloInFOFgroup: int32(fofFirst),
		NextHaloInFOFgroup:  int32(fofNext),
		SnapNum:             int32(snap),
		Len:                 n,
		Mvir:                mvir,
	}
}

// procFunc adapts a function to the GroupProcessor interface.
type procFunc func(ctx *GroupContext) error

func (f procFunc) ProcessGroup(ctx *GroupContext) error { return f(ctx) }

// The canonical small tree: halo 0 at snapshot 0 is the progenitor of
// halo 1 at snapshot 1, and halo 2 forms at snapshot 1 inside halo 1's
// group with no progenitor.
func threeHaloTree() []tree.RawHalo {
	return []tree.RawHalo{
		raw(0, 1, -1, -1, 0, -1, 100, 10.0),
		raw(1, -1, 0, -1, 1, 2, 120, 12.0),
		raw(1, -1, -1, -1, 1, -1, 10, 1.0),
	}
}

func TestThreeHaloScenario(t *testing.T) {
	cfg := twoSnapConfig(t)
	w := NewWalker(cfg, threeHaloTree(), nil, 0, 0)
	arena, err := w.Run()
	if err != nil {
		t.Fatal(err.Error())
	}

	assert.Equal(t, 3, arena.Len(), "record count")

	h0, h1, h2 := arena.At(0), arena.At(1), arena.At(2)

	assert.Equal(t, Central, h0.Type, "halo 0 type")
	assert.Equal(t, int32(0), h0.HaloNr, "halo 0 subhalo")
	assert.Equal(t, int32(0), h0.SnapNum, "halo 0 snapshot")
	assert.Equal(t, 10.0, h0.Mvir, "halo 0 mass")

	assert.Equal(t, Central, h1.Type, "halo 1 type")
	assert.Equal(t, int32(1), h1.HaloNr, "halo 1 subhalo")
	assert.Equal(t, int32(1), h1.SnapNum, "halo 1 snapshot")
	assert.Equal(t, 12.0, h1.Mvir, "halo 1 mass")
	assert.Equal(t, 2.0, h1.DeltaMvir, "halo 1 mass growth")

	assert.Equal(t, Satellite, h2.Type, "halo 2 type")
	assert.Equal(t, int32(2), h2.HaloNr, "halo 2 subhalo")

	// Halo 1 continues halo 0's lineage, halo 2 starts its own.
	assert.Equal(t, h0.UniqueHaloID, h1.UniqueHaloID, "inherited lineage")
	assert.NotEqual(t, h0.UniqueHaloID, h2.UniqueHaloID, "fresh lineage")

	// The forward time step sits on the earlier record; final
	// appearances keep the sentinel.
	dt := cfg.Ages.At(0) - cfg.Ages.At(1)
	assert.True(t, dt > 0, "age table ordering")
	assert.Equal(t, dt, h0.DT, "halo 0 time step")
	assert.Equal(t, -1.0, h1.DT, "halo 1 final appearance")
	assert.Equal(t, -1.0, h2.DT, "halo 2 final appearance")
}

func TestGalaxyOwnership(t *testing.T) {
	cfg := twoSnapConfig(t)
	w := NewWalker(cfg, threeHaloTree(), nil, 0, 0)
	arena, err := w.Run()
	if err != nil {
		t.Fatal(err.Error())
	}

	h0, h1, h2 := arena.At(0), arena.At(1), arena.At(2)
	assert.NotNil(t, h0.Galaxy, "halo 0 galaxy")
	assert.NotNil(t, h2.Galaxy, "halo 2 galaxy")

	// Each record owns its galaxy block: mutating the descendant's
	// must not reach back into the progenitor's.
	assert.True(t, h0.Galaxy != h1.Galaxy, "blocks not shared")
	h1.Galaxy.StellarMass = 7
	assert.Equal(t, float32(0), h0.Galaxy.StellarMass, "progenitor untouched")

	assert.Equal(t, float32(-1), h2.Galaxy.TimeOfLastMajorMerger,
		"fresh galaxies start with no merger on record")
	assert.Equal(t, float32(-1), h2.Galaxy.TimeOfLastMinorMerger,
		"fresh galaxies start with no merger on record")
}

func TestEmissionOrder(t *testing.T) {
	// Two independent groups per snapshot, listed out of snapshot
	// order in the raw catalog.
	rawHalos := []tree.RawHalo{
		raw(1, -1, 2, -1, 0, -1, 120, 12.0), // descendant of halo 2
		raw(1, -1, 3, -1, 1, -1, 60, 6.0),   // descendant of halo 3
		raw(0, 0, -1, -1, 2, -1, 100, 10.0),
		raw(0, 1, -1, -1, 3, -1, 50, 5.0),
	}
	cfg := twoSnapConfig(t)
	w := NewWalker(cfg, rawHalos, nil, 0, 0)
	arena, err := w.Run()
	if err != nil {
		t.Fatal(err.Error())
	}

	assert.Equal(t, 4, arena.Len(), "record count")

	// All snapshot 0 records precede all snapshot 1 records, and
	// within a snapshot groups follow raw catalog order.
	snaps := []int32{}
	halonrs := []int32{}
	for i := 0; i < arena.Len(); i++ {
		snaps = append(snaps, arena.At(i).SnapNum)
		halonrs = append(halonrs, arena.At(i).HaloNr)
	}
	assert.Equal(t, []int32{0, 0, 1, 1}, snaps, "snapshot ordering")
	assert.Equal(t, []int32{2, 3, 0, 1}, halonrs, "group ordering")
}

// orphanTree builds a group whose second subhalo vanishes from the
// catalog at snapshot 1, turning its halo into an orphan.
func orphanTree() []tree.RawHalo {
	h0 := raw(0, 2, -1, -1, 0, 1, 100, 10.0)
	h0.Pos = [3]float32{1, 2, 3}
	h1 := raw(0, 2, -1, -1, 0, -1, 50, 5.0)
	h1.Pos = [3]float32{4, 5, 6}
	h1.Vel = [3]float32{7, 8, 9}
	h1.Spin = [3]float32{10, 11, 12}
	// Halo 2 absorbs both: halo 0 is its first progenitor, halo 1 the
	// next.
	h0.NextProgenitor = 1
	h2 := raw(1, -1, 0, -1, 2, -1, 160, 16.0)
	h2.Pos = [3]float32{1.5, 2.5, 3.5}
	return []tree.RawHalo{h0, h1, h2}
}

func TestOrphanTracking(t *testing.T) {
	cfg := twoSnapConfig(t)
	w := NewWalker(cfg, orphanTree(), nil, 0, 0)
	arena, err := w.Run()
	if err != nil {
		t.Fatal(err.Error())
	}

	assert.Equal(t, 4, arena.Len(), "record count")

	// Snapshot 0: central of subhalo 0, satellite of subhalo 1.
	// Snapshot 1: central of subhalo 2, then the orphan it absorbed.
	orphan := arena.At(3)
	assert.Equal(t, Orphan, orphan.Type, "orphan type")
	assert.Equal(t, int32(2), orphan.HaloNr, "orphan host subhalo")

	// The orphan carries its last known phase-space coordinates, not
	// its host's.
	assert.Equal(t, [3]float32{4, 5, 6}, orphan.Pos, "stale position")
	assert.Equal(t, [3]float32{7, 8, 9}, orphan.Vel, "stale velocity")
	assert.Equal(t, [3]float32{10, 11, 12}, orphan.Spin, "stale spin")

	assert.Equal(t, 0.0, orphan.Mvir, "orphan stripped mass")
	assert.Equal(t, -5.0, orphan.DeltaMvir, "orphan mass delta")
	assert.Equal(t, 0.0, orphan.MergTime, "orphan merger clock started")
	assert.Equal(t, 5.0, orphan.InfallMvir, "infall mass frozen")

	// The orphan points at its group central.
	central := arena.At(2)
	assert.Equal(t, Central, central.Type, "group central")
	assert.Equal(t, int32(2), orphan.CentralHalo, "orphan central link")
}

func TestMergedLineageNotCarried(t *testing.T) {
	// Both subhalos of the snapshot 0 group survive to snapshot 1,
	// but a processor merges the satellite's lineage at snapshot 0.
	h0 := raw(0, 2, -1, -1, 0, 1, 100, 10.0)
	h1 := raw(0, 3, -1, -1, 0, -1, 50, 5.0)
	h2 := raw(1, -1, 0, -1, 2, 3, 120, 12.0)
	h3 := raw(1, -1, 1, -1, 2, -1, 40, 4.0)
	rawHalos := []tree.RawHalo{h0, h1, h2, h3}

	cfg := twoSnapConfig(t)
	proc := procFunc(func(ctx *GroupContext) error {
		if ctx.Snap != 0 {
			return nil
		}
		// Merge the satellite (second record) into the central.
		ctx.Halos[1].MergeStatus = 1
		ctx.Halos[1].MergeIntoID = int32(ctx.GroupStart)
		ctx.Halos[1].MergeIntoSnapNum = int32(ctx.Snap)
		return nil
	})

	w := NewWalker(cfg, rawHalos, proc, 0, 0)
	arena, err := w.Run()
	if err != nil {
		t.Fatal(err.Error())
	}

	assert.Equal(t, 4, arena.Len(), "record count")

	merged := arena.At(1)
	assert.Equal(t, int32(1), merged.MergeStatus, "merge recorded")
	assert.Equal(t, int32(0), merged.MergeIntoID, "merge target")
	assert.Equal(t, -1.0, merged.DT, "merged lineage final appearance")

	// Subhalo 3 still exists in the catalog, so a fresh lineage
	// starts there instead of continuing the merged one.
	reborn := arena.At(3)
	assert.Equal(t, int32(3), reborn.HaloNr, "fresh record host")
	assert.NotEqual(t, merged.UniqueHaloID, reborn.UniqueHaloID,
		"fresh lineage id")
	assert.Equal(t, float32(0), reborn.Galaxy.StellarMass, "fresh galaxy")

	// The surviving central still got its time step patched.
	assert.Equal(t, cfg.Ages.At(0)-cfg.Ages.At(1), arena.At(0).DT,
		"central time step")
}

func TestPipelineFailureIsFatal(t *testing.T) {
	cfg := twoSnapConfig(t)
	proc := procFunc(func(ctx *GroupContext) error {
		return assert.AnError
	})
	w := NewWalker(cfg, threeHaloTree(), proc, 3, 7)
	_, err := w.Run()
	if err == nil {
		t.Fatal("expected pipeline failure to abort the walk")
	}
	assert.Contains(t, err.Error(), "file 3, tree 7", "error context")
}

func TestMalformedTrees(t *testing.T) {
	cfg := twoSnapConfig(t)

	tests := []struct {
		name string
		raw  []tree.RawHalo
	}{
		{"progenitor out of range",
			[]tree.RawHalo{raw(0, -1, 5, -1, 0, -1, 100, 10.0)}},
		{"group link out of range",
			[]tree.RawHalo{raw(0, -1, -1, -1, 9, -1, 100, 10.0)}},
		{"no group membership",
			[]tree.RawHalo{raw(0, -1, -1, -1, -1, -1, 100, 10.0)}},
		{"snapshot out of range",
			[]tree.RawHalo{raw(5, -1, -1, -1, 0, -1, 100, 10.0)}},
		{"cyclic group chain", []tree.RawHalo{
			raw(0, -1, -1, -1, 0, 1, 100, 10.0),
			raw(0, -1, -1, -1, 0, 0, 50, 5.0),
		}},
	}

	for _, test := range tests {
		w := NewWalker(cfg, test.raw, nil, 0, 0)
		_, err := w.Run()
		if err == nil {
			t.Errorf("%s: walk succeeded on a malformed tree", test.name)
		}
	}
}

func TestSatelliteInfallCapture(t *testing.T) {
	// An independent central at snapshot 0 falls into another group
	// at snapshot 1, keeping its own subhalo.
	h0 := raw(0, 2, -1, -1, 0, -1, 100, 10.0) // future group head
	h1 := raw(0, 3, -1, -1, 1, -1, 50, 5.0)   // future satellite
	h2 := raw(1, -1, 0, -1, 2, 3, 120, 12.0)
	h3 := raw(1, -1, 1, -1, 2, -1, 48, 4.8)
	rawHalos := []tree.RawHalo{h0, h1, h2, h3}

	cfg := twoSnapConfig(t)
	w := NewWalker(cfg, rawHalos, nil, 0, 0)
	arena, err := w.Run()
	if err != nil {
		t.Fatal(err.Error())
	}

	sat := arena.At(3)
	assert.Equal(t, Satellite, sat.Type, "infall type")
	assert.Equal(t, 5.0, sat.InfallMvir, "infall mass is pre-infall mass")
	assert.Equal(t, MergTimeUnset, sat.MergTime, "no merger clock yet")

	// Satellites use particle count for mass, not the group-head
	// catalog mass.
	assert.Equal(t, float64(48)*cfg.PartMass, sat.Mvir, "satellite mass")
}
