// +build !hdf5

package tree

import (
	"fmt"
)

// HDF5Reader is only functional when built with the hdf5 tag, which
// requires the HDF5 C library. This stub keeps the default build free
// of that dependency.
type HDF5Reader struct{}

func NewHDF5Reader(path string) (*HDF5Reader, error) {
	return nil, fmt.Errorf("HDF5 tree input requires a binary built " +
		"with the hdf5 build tag")
}

func (r *HDF5Reader) LoadTreeTable() (int, []int32, error) {
	return 0, nil, fmt.Errorf("HDF5 tree input is not compiled in")
}

func (r *HDF5Reader) LoadTree(treeNr int) ([]RawHalo, error) {
	return nil, fmt.Errorf("HDF5 tree input is not compiled in")
}

func (r *HDF5Reader) Close() error { return nil }
