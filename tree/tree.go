/*Package tree reads dark-matter halo merger trees. A tree file contains a
table of independent merger trees, each an array of raw halo records linked
by index-valued progenitor, descendant, and FOF-group pointers.

The package exposes a format-independent Reader contract. The LHaloTree
binary format is implemented here; readers for other formats only need to
populate the same RawHalo records.
*/
package tree

// RawHalo is one halo at one snapshot exactly as stored in an input tree
// file. All link fields are indices into the same tree's halo array, with
// -1 meaning "none". RawHalo arrays are read-only after loading.
//
// The field order matches the on-disk record layout and must not change.
type RawHalo struct {
	// Merger-tree pointers.
	Descendant          int32
	FirstProgenitor     int32
	NextProgenitor      int32
	FirstHaloInFOFgroup int32
	NextHaloInFOFgroup  int32

	// Halo properties.
	Len                     int32
	MMean200, Mvir, MTopHat float32
	Pos                     [3]float32
	Vel                     [3]float32
	VelDisp                 float32
	Vmax                    float32
	Spin                    [3]float32
	MostBoundID             int64

	// Position in the simulation's tree files.
	SnapNum      int32
	FileNr       int32
	SubhaloIndex int32
	SubHalfMass  float32
}

// Reader loads merger trees from a single input file. LoadTreeTable must
// be called before LoadTree. Implementations keep the underlying file open
// between calls; Close releases it.
type Reader interface {
	// LoadTreeTable reads the file header and returns the number of
	// trees and the raw-halo count of each tree.
	LoadTreeTable() (nTrees int, nHalosPerTree []int32, err error)
	// LoadTree reads the raw halo records of one tree. Trees may be
	// requested in any order.
	LoadTree(treeNr int) ([]RawHalo, error)
	Close() error
}
