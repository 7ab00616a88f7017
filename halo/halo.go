/*Package halo tracks dark matter halos across the snapshots of a merger
tree. The tracker walks a tree's friends-of-friends groups in snapshot
order, joins each subhalo's progenitors into a per-group workspace, and
persists the surviving records into a growable arena whose indices stay
valid for the rest of the tree.

Halos are classified by how they relate to their group and to the raw
catalog. A Central sits at the head of its group's subhalo chain, a
Satellite is any other subhalo still present in the catalog, and an
Orphan is a halo whose subhalo can no longer be found but whose history
is carried forward until a physics module merges it away.
*/
package halo

import (
	"fmt"
)

// Halo types. The zero value is Central so that freshly initialized
// records start out as group centrals.
type Type int32

const (
	Central Type = iota
	Satellite
	Orphan
)

func (t Type) String() string {
	switch t {
	case Central:
		return "central"
	case Satellite:
		return "satellite"
	case Orphan:
		return "orphan"
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// MergTimeUnset marks a halo which has not yet been assigned a merger
// clock. Comparisons use > MergTimeThreshold so that float rounding
// cannot unset the sentinel.
const (
	MergTimeUnset     = 999.9
	MergTimeThreshold = 999.0
)

// GalaxyData holds the baryonic reservoirs attached to a tracked halo.
// The tracker itself never reads or writes these fields beyond copying
// the struct when a halo is inherited from its progenitor: they belong
// to the physics modules. Masses are in 1e10 Msun/h.
type GalaxyData struct {
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

	// Energy budgets of gas moved between the hot and cold phases, and
	// the radius out to which past AGN outbursts have shut off cooling.
	Cooling       float32
	Heating       float32
	HeatingRadius float32

	QuasarModeBHaccretionMass float32

	// Merger epochs in lookback time, -1 until a merger happens.
	TimeOfLastMajorMerger float32
	TimeOfLastMinorMerger float32

	TotalSatelliteBaryons float32
}

// Halo is a single tracked halo record. A record lives in the tree's
// arena and is identified by its arena index. Successive snapshots of
// the same physical halo are separate records connected through the
// ownership transfer done in the progenitor join step.
type Halo struct {
	Type    Type
	SnapNum int32
	// HaloNr is the raw catalog index of the subhalo this record is
	// attached to at SnapNum. Orphans keep the index of their host
	// group's central.
	HaloNr int32
	// UniqueHaloID numbers lineages within a tree. It is assigned once
	// when a lineage starts and inherited unchanged afterwards.
	UniqueHaloID int64
	// CentralHalo is the arena index of this halo's group central at
	// SnapNum.
	CentralHalo int32

	MostBoundID int64
	Len         int32
	Pos         [3]float32
	Vel         [3]float32
	Spin        [3]float32

	Mvir      float64
	DeltaMvir float64
	Rvir      float64
	Vvir      float64
	Vmax      float64

	// Infall properties are frozen at the last snapshot at which the
	// halo was a group central.
	InfallMvir float64
	InfallVvir float64
	InfallVmax float64

	// MergTime counts down the remaining lifetime of a subsumed halo.
	// It is MergTimeUnset while the halo is an independent central and
	// is zeroed at the orphan transition; a merger module replaces the
	// zero with a dynamical friction timescale and runs the clock.
	MergTime float64

	// MergeStatus is zero while the halo is alive. A physics module
	// sets it nonzero to end the lineage; the record is then written
	// with MergeIntoID pointing at the merger target and is not
	// carried into later snapshots.
	MergeStatus      int32
	MergeIntoID      int32
	MergeIntoSnapNum int32

	// DT is the time to this lineage's next record, in internal time
	// units. -1 on a lineage's final appearance.
	DT float64

	Galaxy *GalaxyData
}

// AuxData is the per-raw-halo bookkeeping the tracker keeps alongside
// the input catalog.
type AuxData struct {
	// Done is set once the raw halo's progenitors have been joined.
	Done bool
	// GroupDone is meaningful on group heads only and marks groups
	// already handled by the walk.
	GroupDone bool
	// FirstHalo and NHalos locate the tracked records emitted for this
	// raw halo in the arena.
	FirstHalo int32
	NHalos    int32
}

// A GroupContext describes one friends-of-friends group after its
// records have been persisted to the arena. Halos is a live view into
// the arena, so mutations made by a GroupProcessor stick.
type GroupContext struct {
	Snap     int
	Redshift float64
	// Time is the lookback time to Snap in internal units.
	Time float64
	// GroupStart is the arena index of Halos[0]. Arena indices of
	// group members are GroupStart+i.
	GroupStart int
	Halos      []Halo
}

// A GroupProcessor is invoked once per friends-of-friends group, after
// the group's records are persisted and before the walk moves on. The
// physics pipeline implements this.
type GroupProcessor interface {
	ProcessGroup(ctx *GroupContext) error
}
