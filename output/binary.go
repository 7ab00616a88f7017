package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
	"github.com/phil-mansfield/mimic/tree"
)

// A BinaryWriter writes one catalogue file per output snapshot, in
// the byte order of the machine doing the writing. Each file starts
// with a placeholder header of nTrees+2 int32s which is rewritten by
// Finalize: the tree count, the total halo count, and the per-tree
// halo counts, followed by the packed HaloOutput records in emission
// order.
type BinaryWriter struct {
	cfg    *config.MimicConfig
	fileNr int
	nTrees int
	order  binary.ByteOrder

	files   []*os.File
	bufs    []*bufio.Writer
	totals  []int32
	perTree [][]int32
}

// NewBinaryWriter returns a writer for the catalogue files of input
// file fileNr, which holds nTrees trees. Output files are created
// lazily on the first tree save.
func NewBinaryWriter(cfg *config.MimicConfig, fileNr, nTrees int) *BinaryWriter {
	nOut := len(cfg.OutputSnaps)
	w := &BinaryWriter{
		cfg:     cfg,
		fileNr:  fileNr,
		nTrees:  nTrees,
		order:   tree.HostOrder,
		files:   make([]*os.File, nOut),
		bufs:    make([]*bufio.Writer, nOut),
		totals:  make([]int32, nOut),
		perTree: make([][]int32, nOut),
	}
	for n := range w.perTree {
		w.perTree[n] = make([]int32, nTrees)
	}
	return w
}

func (w *BinaryWriter) open(n int) error {
	path := w.cfg.OutputFilePath(w.cfg.OutputSnaps[n], w.fileNr)
	if !w.cfg.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("output file %s already exists "+
				"and Overwrite is off", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w.files[n] = f
	w.bufs[n] = bufio.NewWriterSize(f, 1<<16)

	// Placeholder header, rewritten by Finalize.
	zeros := make([]int32, w.nTrees+2)
	return binary.Write(w.bufs[n], w.order, zeros)
}

// SaveTree writes the tree's records at every output snapshot, in
// emission order. Merger targets are rewritten to output indices, so
// the arena must not be reused afterwards.
func (w *BinaryWriter) SaveTree(treeNr int, raw []tree.RawHalo,
	arena *halo.Arena) error {

	l := layoutTree(w.cfg, arena)
	remapMergeTargets(arena, l)

	for n, snap := range w.cfg.OutputSnaps {
		if w.files[n] == nil {
			if err := w.open(n); err != nil {
				return err
			}
		}
		for i := 0; i < arena.Len(); i++ {
			h := arena.At(i)
			if int(h.SnapNum) != snap {
				continue
			}
			rec := prepareHalo(w.cfg, w.fileNr, treeNr, raw, h)
			if err := binary.Write(w.bufs[n], w.order, &rec); err != nil {
				return fmt.Errorf("writing tree %d, snapshot %d: %v",
					treeNr, snap, err)
			}
			w.totals[n]++
			w.perTree[n][treeNr]++
		}
	}
	return nil
}

// Finalize rewrites each file's header with the real counts and closes
// it. Files for snapshots no tree contributed to are still created so
// every configured output snapshot has a catalogue.
func (w *BinaryWriter) Finalize() error {
	for n := range w.files {
		if w.files[n] == nil {
			if err := w.open(n); err != nil {
				return err
			}
		}
		if err := w.bufs[n].Flush(); err != nil {
			return err
		}

		f := w.files[n]
		if _, err := f.Seek(0, 0); err != nil {
			return err
		}
		if err := binary.Write(f, w.order, int32(w.nTrees)); err != nil {
			return err
		}
		if err := binary.Write(f, w.order, w.totals[n]); err != nil {
			return err
		}
		if err := binary.Write(f, w.order, w.perTree[n]); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		w.files[n] = nil
	}
	return nil
}
