/*Package output writes tracked halo catalogues. Both the binary and
the HDF5 writers share the per-tree preparation step: computing each
record's position in its snapshot's output stream, rewriting merger
targets from arena indices to output indices, and converting records
to the on-disk layout.
*/
package output

import (
	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
	"github.com/phil-mansfield/mimic/tree"
)

// Halo index encoding. A catalogue-wide halo index packs the file
// number, tree number, and in-tree halo number into one int64 so that
// halos can be cross-referenced between files. With 10000 or more
// input files the file multiplier is reduced tenfold to keep the
// product inside an int64.
const (
	TreeMulFac   = int64(1000000000)
	FileNrMulFac = int64(1000000000000000)
)

// A Writer serializes the tracked halos of one input file, one tree at
// a time. Finalize must be called after the last tree so headers can
// be completed; a file whose Finalize never ran is unreadable by
// design, marking runs that died partway.
type Writer interface {
	SaveTree(treeNr int, raw []tree.RawHalo, arena *halo.Arena) error
	Finalize() error
}

// HaloOutput is the on-disk halo record. All fields are fixed-size so
// the struct can be serialized directly.
type HaloOutput struct {
	Type    int32
	SnapNum int32

	HaloIndex        int64
	CentralHaloIndex int64

	MimicHaloIndex      int32
	MimicTreeIndex      int32
	SimulationHaloIndex int64

	MergeStatus      int32
	MergeIntoID      int32
	MergeIntoSnapNum int32

	Len int32
	Pos [3]float32
	Vel [3]float32

	Mvir      float32
	DeltaMvir float32
	Rvir      float32
	Vvir      float32
	Vmax      float32

	InfallMvir float32
	InfallVvir float32
	InfallVmax float32
	MergTime   float32

	// DT is the forward time step in Myr, or -1 on a lineage's final
	// appearance.
	DT float32

	ColdGas       float32
	HotGas        float32
	EjectedMass   float32
	StellarMass   float32
	BulgeMass     float32
	ICS           float32
	BlackHoleMass float32

	MetalsColdGas     float32
	MetalsHotGas      float32
	MetalsEjectedMass float32
	MetalsStellarMass float32
	MetalsBulgeMass   float32
	MetalsICS         float32

	Sfr             float32
	DiskScaleRadius float32
	OutflowRate     float32

	Cooling float32
	Heating float32

	QuasarModeBHaccretionMass float32

	TimeOfLastMajorMerger float32
	TimeOfLastMinorMerger float32

	TotalSatelliteBaryons float32
}

// treeLayout maps arena indices to per-snapshot output positions for
// one tree. Records at snapshots that are not written out get -1.
type treeLayout struct {
	order []int32
	// count[n] is the number of records this tree contributes to
	// output snapshot n, indexed like cfg.OutputSnaps.
	count []int32
}

// layoutTree assigns output positions in emission order, one
// independent counter per output snapshot.
func layoutTree(cfg *config.MimicConfig, arena *halo.Arena) *treeLayout {
	l := &treeLayout{
		order: make([]int32, arena.Len()),
		count: make([]int32, len(cfg.OutputSnaps)),
	}
	for i := range l.order {
		l.order[i] = -1
	}
	for n, snap := range cfg.OutputSnaps {
		for i := 0; i < arena.Len(); i++ {
			if int(arena.At(i).SnapNum) == snap {
				l.order[i] = l.count[n]
				l.count[n]++
			}
		}
	}
	return l
}

// remapMergeTargets rewrites every record's MergeIntoID from the arena
// index set by the physics pipeline to the target's position in its
// snapshot's output stream. The arena is about to be released, so the
// rewrite is done in place.
func remapMergeTargets(arena *halo.Arena, l *treeLayout) {
	for i := 0; i < arena.Len(); i++ {
		h := arena.At(i)
		if h.MergeIntoID > -1 {
			h.MergeIntoID = l.order[h.MergeIntoID]
		}
	}
}

// fileMulFac returns the file-number multiplier for the run.
func fileMulFac(cfg *config.MimicConfig) int64 {
	if cfg.LastFile >= 10000 {
		return FileNrMulFac / 10
	}
	return FileNrMulFac
}

// prepareHalo converts one tracked halo to its on-disk form.
func prepareHalo(cfg *config.MimicConfig, fileNr, treeNr int,
	raw []tree.RawHalo, h *halo.Halo) HaloOutput {

	fileMul := fileMulFac(cfg) * int64(fileNr)
	treeMul := TreeMulFac * int64(treeNr)
	centralNr := int64(raw[h.HaloNr].FirstHaloInFOFgroup)

	o := HaloOutput{
		Type:    int32(h.Type),
		SnapNum: h.SnapNum,

		HaloIndex:        int64(h.HaloNr) + treeMul + fileMul,
		CentralHaloIndex: centralNr + treeMul + fileMul,

		MimicHaloIndex:      h.HaloNr,
		MimicTreeIndex:      int32(treeNr),
		SimulationHaloIndex: h.MostBoundID,

		MergeStatus:      h.MergeStatus,
		MergeIntoID:      h.MergeIntoID,
		MergeIntoSnapNum: h.MergeIntoSnapNum,

		Len: h.Len,
		Pos: h.Pos,
		Vel: h.Vel,

		Mvir:      float32(h.Mvir),
		DeltaMvir: float32(h.DeltaMvir),
		Rvir:      float32(h.Rvir),
		Vvir:      float32(h.Vvir),
		Vmax:      float32(h.Vmax),

		InfallMvir: float32(h.InfallMvir),
		InfallVvir: float32(h.InfallVvir),
		InfallVmax: float32(h.InfallVmax),
		MergTime:   float32(h.MergTime),

		DT: dtMyr(cfg, h.DT),
	}

	if g := h.Galaxy; g != nil {
		o.ColdGas = g.ColdGas
		o.HotGas = g.HotGas
		o.EjectedMass = g.EjectedMass
		o.StellarMass = g.StellarMass
		o.BulgeMass = g.BulgeMass
		o.ICS = g.ICS
		o.BlackHoleMass = g.BlackHoleMass
		o.MetalsColdGas = g.MetalsColdGas
		o.MetalsHotGas = g.MetalsHotGas
		o.MetalsEjectedMass = g.MetalsEjectedMass
		o.MetalsStellarMass = g.MetalsStellarMass
		o.MetalsBulgeMass = g.MetalsBulgeMass
		o.MetalsICS = g.MetalsICS
		o.Sfr = g.Sfr
		o.DiskScaleRadius = g.DiskScaleRadius
		o.OutflowRate = g.OutflowRate
		o.Cooling = g.Cooling
		o.Heating = g.Heating
		o.QuasarModeBHaccretionMass = g.QuasarModeBHaccretionMass
		o.TimeOfLastMajorMerger = g.TimeOfLastMajorMerger
		o.TimeOfLastMinorMerger = g.TimeOfLastMinorMerger
		o.TotalSatelliteBaryons = g.TotalSatelliteBaryons
	}
	return o
}

// dtMyr converts an internal-unit time step to megayears, passing
// the final-appearance sentinel through unconverted.
func dtMyr(cfg *config.MimicConfig, dt float64) float32 {
	if dt == -1.0 {
		return -1.0
	}
	return float32(dt * cfg.UnitTimeInMegayears)
}
