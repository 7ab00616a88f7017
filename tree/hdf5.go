// +build hdf5

package tree

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// An HDF5Reader reads Genesis LHaloTree HDF5 files. The file carries
// NTrees and TotNHalos as root attributes, a TreeNHalos dataset with
// the per-tree halo counts, and one "tree_NNN" group per tree holding
// a dataset per halo field.
type HDF5Reader struct {
	f       *hdf5.File
	path    string
	nTrees  int
	perTree []int32
}

func NewHDF5Reader(path string) (*HDF5Reader, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("opening tree file %s: %v", path, err)
	}
	return &HDF5Reader{f: f, path: path}, nil
}

func (r *HDF5Reader) readIntAttr(name string) (int32, error) {
	attr, err := r.f.OpenAttribute(name)
	if err != nil {
		return 0, fmt.Errorf("%s: missing attribute %s: %v", r.path, name, err)
	}
	defer attr.Close()
	var val int32
	if err := attr.Read(&val, hdf5.T_NATIVE_INT32); err != nil {
		return 0, fmt.Errorf("%s: reading attribute %s: %v", r.path, name, err)
	}
	return val, nil
}

func (r *HDF5Reader) LoadTreeTable() (int, []int32, error) {
	nTrees, err := r.readIntAttr("NTrees")
	if err != nil {
		return 0, nil, err
	}
	totHalos, err := r.readIntAttr("TotNHalos")
	if err != nil {
		return 0, nil, err
	}

	dset, err := r.f.OpenDataset("TreeNHalos")
	if err != nil {
		return 0, nil, fmt.Errorf("%s: missing TreeNHalos: %v", r.path, err)
	}
	defer dset.Close()

	perTree := make([]int32, nTrees)
	if err := dset.Read(&perTree); err != nil {
		return 0, nil, fmt.Errorf("%s: reading TreeNHalos: %v", r.path, err)
	}

	sum := int32(0)
	for _, n := range perTree {
		if n < 0 {
			return 0, nil, fmt.Errorf("%s: negative tree size %d", r.path, n)
		}
		sum += n
	}
	if sum != totHalos {
		return 0, nil, fmt.Errorf("%s: TreeNHalos sums to %d, "+
			"TotNHalos says %d", r.path, sum, totHalos)
	}

	r.nTrees = int(nTrees)
	r.perTree = perTree
	return r.nTrees, perTree, nil
}

func (r *HDF5Reader) LoadTree(treeNr int) ([]RawHalo, error) {
	if r.perTree == nil {
		return nil, fmt.Errorf("%s: LoadTree before LoadTreeTable", r.path)
	}
	if treeNr < 0 || treeNr >= r.nTrees {
		return nil, fmt.Errorf("%s: tree %d out of range [0, %d)",
			r.path, treeNr, r.nTrees)
	}

	g, err := r.f.OpenGroup(fmt.Sprintf("tree_%03d", treeNr))
	if err != nil {
		return nil, fmt.Errorf("%s: opening tree %d: %v", r.path, treeNr, err)
	}
	defer g.Close()

	n := int(r.perTree[treeNr])
	halos := make([]RawHalo, n)

	i32 := make([]int32, n)
	i64 := make([]int64, n)
	f32 := make([]float32, n)
	v3 := make([][3]float32, n)

	readInt := func(name string, set func(i int, v int32)) error {
		if err := readDataset(g, name, &i32); err != nil {
			return err
		}
		for i, v := range i32 {
			set(i, v)
		}
		return nil
	}
	readFloat := func(name string, set func(i int, v float32)) error {
		if err := readDataset(g, name, &f32); err != nil {
			return err
		}
		for i, v := range f32 {
			set(i, v)
		}
		return nil
	}
	readVec := func(name string, set func(i int, v [3]float32)) error {
		if err := readDataset(g, name, &v3); err != nil {
			return err
		}
		for i, v := range v3 {
			set(i, v)
		}
		return nil
	}

	steps := []func() error{
		func() error {
			return readInt("Descendant", func(i int, v int32) { halos[i].Descendant = v })
		},
		func() error {
			return readInt("FirstProgenitor", func(i int, v int32) { halos[i].FirstProgenitor = v })
		},
		func() error {
			return readInt("NextProgenitor", func(i int, v int32) { halos[i].NextProgenitor = v })
		},
		func() error {
			return readInt("FirstHaloInFOFgroup", func(i int, v int32) { halos[i].FirstHaloInFOFgroup = v })
		},
		func() error {
			return readInt("NextHaloInFOFgroup", func(i int, v int32) { halos[i].NextHaloInFOFgroup = v })
		},
		func() error {
			return readInt("Len", func(i int, v int32) { halos[i].Len = v })
		},
		func() error {
			return readFloat("M_Mean200", func(i int, v float32) { halos[i].MMean200 = v })
		},
		func() error {
			return readFloat("Mvir", func(i int, v float32) { halos[i].Mvir = v })
		},
		func() error {
			return readFloat("M_TopHat", func(i int, v float32) { halos[i].MTopHat = v })
		},
		func() error {
			return readVec("Pos", func(i int, v [3]float32) { halos[i].Pos = v })
		},
		func() error {
			return readVec("Vel", func(i int, v [3]float32) { halos[i].Vel = v })
		},
		func() error {
			return readFloat("VelDisp", func(i int, v float32) { halos[i].VelDisp = v })
		},
		func() error {
			return readFloat("Vmax", func(i int, v float32) { halos[i].Vmax = v })
		},
		func() error {
			return readVec("Spin", func(i int, v [3]float32) { halos[i].Spin = v })
		},
		func() error {
			if err := readDataset(g, "MostBoundID", &i64); err != nil {
				return err
			}
			for i, v := range i64 {
				halos[i].MostBoundID = v
			}
			return nil
		},
		func() error {
			return readInt("SnapNum", func(i int, v int32) { halos[i].SnapNum = v })
		},
		func() error {
			return readInt("FileNr", func(i int, v int32) { halos[i].FileNr = v })
		},
		func() error {
			return readInt("SubhaloIndex", func(i int, v int32) { halos[i].SubhaloIndex = v })
		},
		func() error {
			return readFloat("SubHalfMass", func(i int, v float32) { halos[i].SubHalfMass = v })
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("%s: tree %d: %v", r.path, treeNr, err)
		}
	}
	return halos, nil
}

func readDataset(g *hdf5.Group, name string, out interface{}) error {
	dset, err := g.OpenDataset(name)
	if err != nil {
		return fmt.Errorf("missing dataset %s: %v", name, err)
	}
	defer dset.Close()
	if err := dset.Read(out); err != nil {
		return fmt.Errorf("reading dataset %s: %v", name, err)
	}
	return nil
}

func (r *HDF5Reader) Close() error { return r.f.Close() }
