package tree

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"
)

// rawHaloSize is the on-disk size of one RawHalo record.
const rawHaloSize = 104

// HostOrder is the byte order of the machine we are running on. Input tree
// files of either endianness can be read, with records byte-swapped on read
// when the file order differs; output catalogues are written in host order.
var HostOrder binary.ByteOrder = func() binary.ByteOrder {
	x := uint16(1)
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// BinaryReader reads LHaloTree binary files. The file layout is
//     int32 nTrees
//     int32 totNHalos
//     int32 nHalosPerTree[nTrees]
//     RawHalo halos[totNHalos]
// with no padding between records.
type BinaryReader struct {
	f     *os.File
	path  string
	order binary.ByteOrder

	nTrees    int
	totHalos  int
	perTree   []int32
	treeStart []int64 // byte offset of each tree's first record
}

// NewBinaryReader opens the tree file at path. The file's endianness is
// detected from the header when LoadTreeTable is called.
func NewBinaryReader(path string) (*BinaryReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &BinaryReader{f: f, path: path}, nil
}

// detectOrder sniffs the byte order of the file from the first two header
// fields. A header read with the wrong order produces counts that are
// negative, zero, or implausibly large.
func detectOrder(nTrees, totHalos int32) bool {
	const maxPlausible = 1 << 30
	return nTrees > 0 && nTrees < maxPlausible &&
		totHalos >= nTrees && totHalos < maxPlausible
}

func (r *BinaryReader) LoadTreeTable() (int, []int32, error) {
	var head [2]int32
	if err := binary.Read(r.f, HostOrder, &head); err != nil {
		return 0, nil, fmt.Errorf(
			"%s: cannot read tree table header: %v", r.path, err,
		)
	}

	r.order = HostOrder
	if !detectOrder(head[0], head[1]) {
		// Retry with the opposite byte order.
		if HostOrder == binary.ByteOrder(binary.LittleEndian) {
			r.order = binary.BigEndian
		} else {
			r.order = binary.LittleEndian
		}
		swap32(&head[0])
		swap32(&head[1])
		if !detectOrder(head[0], head[1]) {
			return 0, nil, fmt.Errorf(
				"%s: tree table header is invalid in both byte "+
					"orders (nTrees = %d, totNHalos = %d)",
				r.path, head[0], head[1],
			)
		}
	}

	r.nTrees, r.totHalos = int(head[0]), int(head[1])
	r.perTree = make([]int32, r.nTrees)
	if err := binary.Read(r.f, r.order, r.perTree); err != nil {
		return 0, nil, fmt.Errorf(
			"%s: cannot read per-tree halo counts: %v", r.path, err,
		)
	}

	sum := 0
	headerSize := int64(4 * (2 + r.nTrees))
	r.treeStart = make([]int64, r.nTrees)
	for i, n := range r.perTree {
		if n < 0 {
			return 0, nil, fmt.Errorf(
				"%s: tree %d has negative halo count %d", r.path, i, n,
			)
		}
		r.treeStart[i] = headerSize + int64(sum)*rawHaloSize
		sum += int(n)
	}
	if sum != r.totHalos {
		return 0, nil, fmt.Errorf(
			"%s: per-tree counts sum to %d but header claims %d halos",
			r.path, sum, r.totHalos,
		)
	}

	return r.nTrees, r.perTree, nil
}

func (r *BinaryReader) LoadTree(treeNr int) ([]RawHalo, error) {
	if r.perTree == nil {
		return nil, fmt.Errorf("%s: LoadTree before LoadTreeTable", r.path)
	}
	if treeNr < 0 || treeNr >= r.nTrees {
		return nil, fmt.Errorf(
			"%s: tree %d out of range [0, %d)", r.path, treeNr, r.nTrees,
		)
	}

	if _, err := r.f.Seek(r.treeStart[treeNr], 0); err != nil {
		return nil, fmt.Errorf(
			"%s: cannot seek to tree %d: %v", r.path, treeNr, err,
		)
	}

	halos := make([]RawHalo, r.perTree[treeNr])
	if err := binary.Read(r.f, r.order, halos); err != nil {
		return nil, fmt.Errorf(
			"%s: cannot read %d halos of tree %d: %v",
			r.path, len(halos), treeNr, err,
		)
	}
	return halos, nil
}

func (r *BinaryReader) Close() error { return r.f.Close() }

func swap32(x *int32) {
	u := uint32(*x)
	*x = int32(u<<24 | (u&0xff00)<<8 | (u>>8)&0xff00 | u>>24)
}
