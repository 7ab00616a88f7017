package tree

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testHalo(i int) RawHalo {
	return RawHalo{
		Descendant:          int32(i + 1),
		FirstProgenitor:     int32(i - 1),
		NextProgenitor:      -1,
		FirstHaloInFOFgroup: 0,
		NextHaloInFOFgroup:  -1,
		Len:                 int32(100 * (i + 1)),
		Mvir:                float32(i) * 1.5,
		Pos:                 [3]float32{float32(i), float32(2 * i), float32(3 * i)},
		Vel:                 [3]float32{-1, 0, 1},
		Vmax:                220.5,
		Spin:                [3]float32{0.01, 0.02, 0.03},
		MostBoundID:         int64(1000 + i),
		SnapNum:             int32(i),
		FileNr:              0,
		SubhaloIndex:        int32(i),
		SubHalfMass:         0.5,
	}
}

// writeTreeFile writes an LHaloTree binary file with the given byte
// order and returns its path.
func writeTreeFile(t *testing.T, dir string, order binary.ByteOrder,
	trees [][]RawHalo) string {

	fname := path.Join(dir, "trees.dat")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer f.Close()

	perTree := make([]int32, len(trees))
	tot := int32(0)
	for i, tr := range trees {
		perTree[i] = int32(len(tr))
		tot += perTree[i]
	}

	for _, v := range []interface{}{int32(len(trees)), tot, perTree} {
		if err := binary.Write(f, order, v); err != nil {
			t.Fatal(err.Error())
		}
	}
	for _, tr := range trees {
		if err := binary.Write(f, order, tr); err != nil {
			t.Fatal(err.Error())
		}
	}
	return fname
}

func testTrees() [][]RawHalo {
	return [][]RawHalo{
		{testHalo(0), testHalo(1), testHalo(2)},
		{testHalo(3)},
		{testHalo(4), testHalo(5)},
	}
}

func roundTrip(t *testing.T, order binary.ByteOrder) {
	dir, err := ioutil.TempDir("", "mimic_tree_test")
	if err != nil {
		t.Fatal(err.Error())
	}
	defer os.RemoveAll(dir)

	trees := testTrees()
	fname := writeTreeFile(t, dir, order, trees)

	r, err := NewBinaryReader(fname)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer r.Close()

	nTrees, perTree, err := r.LoadTreeTable()
	if err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, 3, nTrees, "tree count")
	assert.Equal(t, []int32{3, 1, 2}, perTree, "per-tree counts")

	// Read out of order to exercise seeking.
	for _, treeNr := range []int{2, 0, 1} {
		halos, err := r.LoadTree(treeNr)
		if err != nil {
			t.Fatal(err.Error())
		}
		assert.Equal(t, trees[treeNr], halos, "tree contents")
	}
}

func TestBinaryReaderLittleEndian(t *testing.T) {
	roundTrip(t, binary.LittleEndian)
}

func TestBinaryReaderBigEndian(t *testing.T) {
	roundTrip(t, binary.BigEndian)
}

func TestBinaryReaderRejectsGarbage(t *testing.T) {
	dir, err := ioutil.TempDir("", "mimic_tree_test")
	if err != nil {
		t.Fatal(err.Error())
	}
	defer os.RemoveAll(dir)

	fname := path.Join(dir, "garbage.dat")
	if err := ioutil.WriteFile(fname,
		[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 0666); err != nil {
		t.Fatal(err.Error())
	}

	r, err := NewBinaryReader(fname)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer r.Close()
	if _, _, err := r.LoadTreeTable(); err == nil {
		t.Error("expected error for a header invalid in both byte orders")
	}
}

func TestBinaryReaderCountMismatch(t *testing.T) {
	dir, err := ioutil.TempDir("", "mimic_tree_test")
	if err != nil {
		t.Fatal(err.Error())
	}
	defer os.RemoveAll(dir)

	fname := path.Join(dir, "trees.dat")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err.Error())
	}
	// Header claims 5 halos, per-tree counts say 4.
	for _, v := range []interface{}{
		int32(2), int32(5), []int32{3, 1},
	} {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatal(err.Error())
		}
	}
	f.Close()

	r, err := NewBinaryReader(fname)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer r.Close()
	if _, _, err := r.LoadTreeTable(); err == nil {
		t.Error("expected error for mismatched halo counts")
	}
}

func TestLoadTreeRange(t *testing.T) {
	dir, err := ioutil.TempDir("", "mimic_tree_test")
	if err != nil {
		t.Fatal(err.Error())
	}
	defer os.RemoveAll(dir)

	fname := writeTreeFile(t, dir, binary.LittleEndian, testTrees())
	r, err := NewBinaryReader(fname)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer r.Close()

	if _, err := r.LoadTree(0); err == nil {
		t.Error("expected error for LoadTree before LoadTreeTable")
	}
	if _, _, err := r.LoadTreeTable(); err != nil {
		t.Fatal(err.Error())
	}
	if _, err := r.LoadTree(3); err == nil {
		t.Error("expected error for out-of-range tree number")
	}
	if _, err := r.LoadTree(-1); err == nil {
		t.Error("expected error for negative tree number")
	}
}
