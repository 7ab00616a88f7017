// +build hdf5

package output

import (
	"fmt"

	"gonum.org/v1/hdf5"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
	"github.com/phil-mansfield/mimic/tree"
)

// An HDF5Writer writes one HDF5 file per input file, with one
// "SnapNNN" group per output snapshot holding a compound "Galaxies"
// dataset. Records are buffered in memory and flushed at Finalize,
// when the per-snapshot tree bookkeeping is complete.
type HDF5Writer struct {
	cfg    *config.MimicConfig
	fileNr int
	nTrees int

	recs    [][]HaloOutput
	perTree [][]int32
}

// NewHDF5Writer returns a writer for the HDF5 catalogue of input file
// fileNr, which holds nTrees trees.
func NewHDF5Writer(cfg *config.MimicConfig, fileNr, nTrees int) (*HDF5Writer, error) {
	nOut := len(cfg.OutputSnaps)
	w := &HDF5Writer{
		cfg:     cfg,
		fileNr:  fileNr,
		nTrees:  nTrees,
		recs:    make([][]HaloOutput, nOut),
		perTree: make([][]int32, nOut),
	}
	for n := range w.perTree {
		w.perTree[n] = make([]int32, nTrees)
	}
	return w, nil
}

// SaveTree buffers the tree's records at every output snapshot, in
// emission order. Merger targets are rewritten to output indices, so
// the arena must not be reused afterwards.
func (w *HDF5Writer) SaveTree(treeNr int, raw []tree.RawHalo,
	arena *halo.Arena) error {

	l := layoutTree(w.cfg, arena)
	remapMergeTargets(arena, l)

	for n, snap := range w.cfg.OutputSnaps {
		for i := 0; i < arena.Len(); i++ {
			h := arena.At(i)
			if int(h.SnapNum) != snap {
				continue
			}
			w.recs[n] = append(w.recs[n], prepareHalo(
				w.cfg, w.fileNr, treeNr, raw, h))
			w.perTree[n][treeNr]++
		}
	}
	return nil
}

// Finalize writes the buffered catalogue.
func (w *HDF5Writer) Finalize() error {
	path := w.cfg.HDF5FilePath(w.fileNr)
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("creating %s: %v", path, err)
	}
	defer f.Close()

	for n, snap := range w.cfg.OutputSnaps {
		if err := w.writeSnap(f, n, snap); err != nil {
			return fmt.Errorf("%s, snapshot %d: %v", path, snap, err)
		}
	}
	return nil
}

func (w *HDF5Writer) writeSnap(f *hdf5.File, n, snap int) error {
	g, err := f.CreateGroup(fmt.Sprintf("Snap%03d", snap))
	if err != nil {
		return err
	}
	defer g.Close()

	dtype, err := hdf5.NewDatatypeFromValue(HaloOutput{})
	if err != nil {
		return err
	}
	defer dtype.Close()

	dims := []uint{uint(len(w.recs[n]))}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := g.CreateDataset("Galaxies", dtype, space)
	if err != nil {
		return err
	}
	defer dset.Close()
	if len(w.recs[n]) > 0 {
		if err := dset.Write(&w.recs[n]); err != nil {
			return err
		}
	}

	if err := w.writeIntAttr(dset, "Ntrees", int32(w.nTrees)); err != nil {
		return err
	}
	if err := w.writeIntAttr(dset, "TotNHalos", int32(len(w.recs[n]))); err != nil {
		return err
	}

	// Per-tree halo counts, the HDF5 analogue of the binary header.
	tdims := []uint{uint(w.nTrees)}
	tspace, err := hdf5.CreateSimpleDataspace(tdims, nil)
	if err != nil {
		return err
	}
	defer tspace.Close()
	tset, err := g.CreateDataset("TreeNHalos", hdf5.T_NATIVE_INT32, tspace)
	if err != nil {
		return err
	}
	defer tset.Close()
	return tset.Write(&w.perTree[n])
}

func (w *HDF5Writer) writeIntAttr(dset *hdf5.Dataset, name string, val int32) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return err
	}
	defer space.Close()
	attr, err := dset.CreateAttribute(name, hdf5.T_NATIVE_INT32, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	return attr.Write(&val, hdf5.T_NATIVE_INT32)
}
