package halo

import (
	"fmt"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/tree"
)

// A Walker tracks the halos of a single merger tree. It owns the
// tree's arena and the per-raw-halo bookkeeping and is discarded once
// the tree's records have been written out.
type Walker struct {
	cfg   *config.MimicConfig
	raw   []tree.RawHalo
	aux   []AuxData
	arena *Arena
	work  *Arena
	proc  GroupProcessor

	fileNr, treeNr int
	haloCounter    int64
}

// NewWalker returns a walker over the raw halos of one tree. proc may
// be nil, in which case the walk runs physics-free and only tracks
// halo properties. fileNr and treeNr are used in error reports.
func NewWalker(cfg *config.MimicConfig, raw []tree.RawHalo,
	proc GroupProcessor, fileNr, treeNr int) *Walker {

	arena := NewArena(len(raw))
	return &Walker{
		cfg:    cfg,
		raw:    raw,
		aux:    make([]AuxData, len(raw)),
		arena:  arena,
		work:   NewWorkspace(arena.Cap()),
		proc:   proc,
		fileNr: fileNr,
		treeNr: treeNr,
	}
}

// errf wraps a malformed-tree report with enough context to find the
// offending halo in the input files.
func (w *Walker) errf(halonr int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("file %d, tree %d, halo %d: %s",
		w.fileNr, w.treeNr, halonr, msg)
}

// checkLinks validates every link field of the raw catalog before the
// walk starts, so the walk itself can index without bounds surprises.
func (w *Walker) checkLinks() error {
	n := int32(len(w.raw))
	maxSnap := int32(w.cfg.MaxSnap())
	for i := range w.raw {
		h := &w.raw[i]
		links := [...]struct {
			name string
			val  int32
		}{
			{"Descendant", h.Descendant},
			{"FirstProgenitor", h.FirstProgenitor},
			{"NextProgenitor", h.NextProgenitor},
			{"FirstHaloInFOFgroup", h.FirstHaloInFOFgroup},
			{"NextHaloInFOFgroup", h.NextHaloInFOFgroup},
		}
		for _, l := range links {
			if l.val < -1 || l.val >= n {
				return w.errf(i, "%s = %d out of range [-1, %d)",
					l.name, l.val, n)
			}
		}
		if h.FirstHaloInFOFgroup < 0 {
			return w.errf(i, "FirstHaloInFOFgroup = %d: every halo "+
				"must belong to a group", h.FirstHaloInFOFgroup)
		}
		if h.SnapNum < 0 || h.SnapNum > maxSnap {
			return w.errf(i, "SnapNum = %d out of range [0, %d]",
				h.SnapNum, maxSnap)
		}
	}
	return nil
}

// Run walks the tree and returns the arena of tracked halos. Groups
// are processed in ascending snapshot order, and within a snapshot in
// the order their heads appear in the raw catalog, so arena order is
// also emission order.
func (w *Walker) Run() (*Arena, error) {
	if err := w.checkLinks(); err != nil {
		return nil, err
	}

	for snap := 0; snap <= w.cfg.MaxSnap(); snap++ {
		for i := range w.raw {
			if int(w.raw[i].SnapNum) != snap {
				continue
			}
			if int(w.raw[i].FirstHaloInFOFgroup) != i {
				continue
			}
			if w.aux[i].GroupDone {
				continue
			}
			if err := w.processGroup(i, 0); err != nil {
				return nil, err
			}
		}
	}

	// Every halo reachable through the group chains has been visited.
	// Anything left over means the chains don't cover the catalog.
	for i := range w.aux {
		if !w.aux[i].Done {
			return nil, w.errf(i, "halo is not reachable through any "+
				"group's subhalo chain")
		}
	}
	return w.arena, nil
}

// Free releases the tree's tracking memory. The walker must not be
// used afterwards.
func (w *Walker) Free() {
	w.arena.Release()
	w.work.Release()
	w.aux = nil
	w.raw = nil
}

// processGroup handles one friends-of-friends group: it first makes
// sure the groups of every member's progenitors are done, then joins
// the progenitors of each member into the workspace, and finally
// persists the group and hands it to the processor.
//
// With a well-formed tree the snapshot-ordered outer walk has already
// processed all progenitor groups, so the recursion never goes deep.
// The depth guard turns descendant cycles into errors instead of
// stack overflows.
func (w *Walker) processGroup(rootNr, depth int) error {
	if depth > len(w.raw) {
		return w.errf(rootNr, "progenitor recursion deeper than the "+
			"tree has halos, the descendant links must contain a cycle")
	}
	w.aux[rootNr].GroupDone = true

	steps := 0
	for fof := rootNr; fof >= 0; fof = int(w.raw[fof].NextHaloInFOFgroup) {
		if steps++; steps > len(w.raw) {
			return w.errf(rootNr, "NextHaloInFOFgroup chain is cyclic")
		}

		progSteps := 0
		for prog := int(w.raw[fof].FirstProgenitor); prog >= 0; prog = int(w.raw[prog].NextProgenitor) {
			if progSteps++; progSteps > len(w.raw) {
				return w.errf(fof, "NextProgenitor chain is cyclic")
			}
			if w.aux[prog].Done {
				continue
			}
			proot := int(w.raw[prog].FirstHaloInFOFgroup)
			if !w.aux[proot].GroupDone {
				if err := w.processGroup(proot, depth+1); err != nil {
					return err
				}
			}
			if !w.aux[prog].Done {
				return w.errf(prog, "halo is not on its own group's "+
					"subhalo chain (group head %d)", proot)
			}
		}
	}

	w.work.Reset()
	ngal := 0
	steps = 0
	for fof := rootNr; fof >= 0; fof = int(w.raw[fof].NextHaloInFOFgroup) {
		if steps++; steps > len(w.raw) {
			return w.errf(rootNr, "NextHaloInFOFgroup chain is cyclic")
		}
		var err error
		if ngal, err = w.joinProgenitorHalos(fof, ngal); err != nil {
			return err
		}
		w.aux[fof].Done = true
	}

	return w.evolveGroup(rootNr, ngal)
}

// joinProgenitorHalos brings the tracked halos of halonr's progenitors
// forward to halonr's snapshot, appending them to the workspace.
func (w *Walker) joinProgenitorHalos(halonr, ngalstart int) (int, error) {
	firstOccupied := w.findMostMassiveProgenitor(halonr)
	ngal, err := w.copyProgenitorHalos(halonr, ngalstart, firstOccupied)
	if err != nil {
		return ngal, err
	}
	if err := w.setCentrals(ngalstart, ngal); err != nil {
		return ngal, err
	}
	return ngal, nil
}

// findMostMassiveProgenitor returns the most massive progenitor of
// halonr that carries tracked halos. Progenitors that never headed a
// group carry none, so the first progenitor is not necessarily it.
func (w *Walker) findMostMassiveProgenitor(halonr int) int {
	firstOccupied := int(w.raw[halonr].FirstProgenitor)
	lenOccMax := int32(0)
	if firstOccupied >= 0 && w.aux[firstOccupied].NHalos > 0 {
		lenOccMax = -1
	}

	for prog := firstOccupied; prog >= 0; prog = int(w.raw[prog].NextProgenitor) {
		if lenOccMax != -1 && w.raw[prog].Len > lenOccMax &&
			w.aux[prog].NHalos > 0 {
			lenOccMax = w.raw[prog].Len
			firstOccupied = prog
		}
	}
	return firstOccupied
}

// virialMass returns the mass of a raw halo, preferring the catalog's
// spherical overdensity estimate for group heads and falling back to
// particle count times particle mass.
func (w *Walker) virialMass(halonr int) float64 {
	h := &w.raw[halonr]
	if int(h.FirstHaloInFOFgroup) == halonr && h.Mvir >= 0 {
		return float64(h.Mvir)
	}
	return float64(h.Len) * w.cfg.PartMass
}

func (w *Walker) redshiftOf(halonr int) float64 {
	return w.cfg.ZZ[w.raw[halonr].SnapNum]
}

// copyProgenitorHalos copies every live tracked halo of halonr's
// progenitors into the workspace and updates each copy for its new
// host. Lineages ended by a merger are not carried forward. The
// progenitor's arena record is back-patched with the time step to this
// snapshot now that a descendant exists for it.
func (w *Walker) copyProgenitorHalos(halonr, ngalstart, firstOccupied int) (int, error) {
	ngal := ngalstart
	curSnap := int(w.raw[halonr].SnapNum)

	progSteps := 0
	for prog := int(w.raw[halonr].FirstProgenitor); prog >= 0; prog = int(w.raw[prog].NextProgenitor) {
		if progSteps++; progSteps > len(w.raw) {
			return ngal, w.errf(halonr, "NextProgenitor chain is cyclic")
		}
		for i := int32(0); i < w.aux[prog].NHalos; i++ {
			src := w.arena.At(int(w.aux[prog].FirstHalo + i))
			if src.MergeStatus != 0 {
				// The lineage ended in a merger last snapshot; its
				// final record keeps DT = -1.
				continue
			}
			src.DT = w.cfg.Ages.At(int(src.SnapNum)) - w.cfg.Ages.At(curSnap)

			h := *src
			if src.Galaxy != nil {
				g := *src.Galaxy
				h.Galaxy = &g
			}
			h.HaloNr = int32(halonr)
			h.DT = -1.0

			if h.Type == Central || h.Type == Satellite {
				prevMvir, prevVvir, prevVmax := h.Mvir, h.Vvir, h.Vmax

				if prog == firstOccupied {
					h.MostBoundID = w.raw[halonr].MostBoundID
					h.Pos = w.raw[halonr].Pos
					h.Vel = w.raw[halonr].Vel
					h.Spin = w.raw[halonr].Spin
					h.Len = w.raw[halonr].Len
					h.Vmax = float64(w.raw[halonr].Vmax)

					mvir := w.virialMass(halonr)
					h.DeltaMvir = mvir - h.Mvir
					if mvir > h.Mvir {
						// Rvir and Vvir track their historical maxima.
						z := w.redshiftOf(halonr)
						h.Rvir = w.cfg.Cosmo.VirialRadius(mvir, z)
						h.Vvir = w.cfg.Cosmo.VirialVelocity(mvir, z)
					}
					h.Mvir = mvir

					if int(w.raw[halonr].FirstHaloInFOFgroup) == halonr {
						h.MergeStatus = 0
						h.MergeIntoID = -1
						h.MergTime = MergTimeUnset
						h.Type = Central
					} else {
						h.MergeStatus = 0
						h.MergeIntoID = -1
						if h.Type == Central {
							// Freeze infall properties on the way in.
							h.InfallMvir = prevMvir
							h.InfallVvir = prevVvir
							h.InfallVmax = prevVmax
						}
						if h.Type == Central || h.MergTime > MergTimeThreshold {
							h.MergTime = MergTimeUnset
						}
						h.Type = Satellite
					}
				} else {
					// Subhalo lost from the catalog: the halo becomes
					// an orphan carrying its last known position and
					// velocity until a module merges it away.
					h.DeltaMvir = -h.Mvir
					h.Mvir = 0
					if h.MergTime > MergTimeThreshold || h.Type == Central {
						h.MergTime = 0
						h.InfallMvir = prevMvir
						h.InfallVvir = prevVvir
						h.InfallVmax = prevVmax
					}
					h.Type = Orphan
				}
			}

			w.work.Append(h)
			ngal++
		}
	}

	if ngal == ngalstart {
		// No progenitor carried a tracked halo, so a new lineage
		// starts here: a central at the group head, a satellite
		// otherwise.
		w.work.Append(w.initHalo(halonr))
		ngal++
	}
	return ngal, nil
}

// initHalo starts a new lineage at a subhalo with no tracked
// progenitors.
func (w *Walker) initHalo(halonr int) Halo {
	raw := &w.raw[halonr]
	z := w.redshiftOf(halonr)
	mvir := w.virialMass(halonr)

	typ := Satellite
	if int(raw.FirstHaloInFOFgroup) == halonr {
		typ = Central
	}

	h := Halo{
		Type:         typ,
		HaloNr:       int32(halonr),
		SnapNum:      raw.SnapNum - 1,
		UniqueHaloID: w.haloCounter,
		MostBoundID:  raw.MostBoundID,
		Len:          raw.Len,
		Pos:          raw.Pos,
		Vel:          raw.Vel,
		Spin:         raw.Spin,

		Mvir:      mvir,
		DeltaMvir: mvir,
		Rvir:      w.cfg.Cosmo.VirialRadius(mvir, z),
		Vvir:      w.cfg.Cosmo.VirialVelocity(mvir, z),
		Vmax:      float64(raw.Vmax),

		MergTime:         MergTimeUnset,
		MergeIntoID:      -1,
		MergeIntoSnapNum: -1,
		DT:               -1.0,

		Galaxy: &GalaxyData{
			TimeOfLastMajorMerger: -1,
			TimeOfLastMinorMerger: -1,
		},
	}
	w.haloCounter++
	return h
}

// setCentrals finds the surviving subhalo record in the batch just
// copied for one raw subhalo and points every record of the batch at
// it. A batch can hold at most one Central or Satellite.
func (w *Walker) setCentrals(ngalstart, ngal int) error {
	central := -1
	for i := ngalstart; i < ngal; i++ {
		h := w.work.At(i)
		if h.Type == Central || h.Type == Satellite {
			if central != -1 {
				return w.errf(int(h.HaloNr),
					"two non-orphan halos (%s and %s) attached to one subhalo",
					w.work.At(central).Type, h.Type)
			}
			central = i
		}
	}
	for i := ngalstart; i < ngal; i++ {
		w.work.At(i).CentralHalo = int32(central)
	}
	return nil
}

// evolveGroup persists the joined group into the arena and runs the
// group processor on the persisted slice.
func (w *Walker) evolveGroup(rootNr, ngal int) error {
	if ngal == 0 {
		return nil
	}

	if c := w.work.At(0).CentralHalo; c < 0 ||
		w.work.At(int(c)).Type != Central ||
		int(w.work.At(int(c)).HaloNr) != rootNr {
		return w.errf(rootNr, "group head carries no central halo")
	}

	groupStart := w.arena.Len()
	w.persistGroup(ngal, groupStart)

	if w.proc == nil {
		return nil
	}
	snap := int(w.raw[rootNr].SnapNum)
	ctx := &GroupContext{
		Snap:       snap,
		Redshift:   w.cfg.ZZ[snap],
		Time:       w.cfg.Ages.At(snap),
		GroupStart: groupStart,
		Halos:      w.arena.Slice(groupStart, groupStart+ngal),
	}
	if err := w.proc.ProcessGroup(ctx); err != nil {
		return w.errf(rootNr, "physics pipeline failed: %v", err)
	}
	return nil
}

// persistGroup copies the workspace into the arena, stamps the current
// snapshot on each record, rebases CentralHalo from workspace to arena
// indices, and records where each raw subhalo's batch landed.
func (w *Walker) persistGroup(ngal, groupStart int) {
	currenthalo := int32(-1)
	for p := 0; p < ngal; p++ {
		h := w.work.At(p)
		if h.HaloNr != currenthalo {
			currenthalo = h.HaloNr
			w.aux[currenthalo].FirstHalo = int32(w.arena.Len())
			w.aux[currenthalo].NHalos = 0
		}
		h.SnapNum = w.raw[currenthalo].SnapNum
		if h.CentralHalo >= 0 {
			h.CentralHalo += int32(groupStart)
		}
		w.arena.Append(*h)
		w.aux[currenthalo].NHalos++
	}
}
