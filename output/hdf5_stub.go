// +build !hdf5

package output

import (
	"fmt"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
	"github.com/phil-mansfield/mimic/tree"
)

// HDF5Writer is only functional when built with the hdf5 tag, which
// requires the HDF5 C library. This stub keeps the default build free
// of that dependency.
type HDF5Writer struct{}

func NewHDF5Writer(cfg *config.MimicConfig, fileNr, nTrees int) (*HDF5Writer, error) {
	return nil, fmt.Errorf("HDF5 output requires a binary built " +
		"with the hdf5 build tag")
}

func (w *HDF5Writer) SaveTree(treeNr int, raw []tree.RawHalo,
	arena *halo.Arena) error {
	return fmt.Errorf("HDF5 output is not compiled in")
}

func (w *HDF5Writer) Finalize() error {
	return fmt.Errorf("HDF5 output is not compiled in")
}
