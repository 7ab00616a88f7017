package halo

// Arena growth policy. Initial capacities scale with the raw catalog
// size so a typical tree never reallocates, with floors that keep tiny
// trees from thrashing. Growth at least doubles so appends stay
// amortized O(1).
const (
	trackedHalosPerRaw = 2.0
	minTrackedCap      = 1000

	workspaceFraction = 0.1
	minWorkspaceCap   = 256

	minGrowth = 256
)

// An Arena is an append-only store of tracked halo records. Records
// are addressed by the index returned from Append; indices remain
// valid until Release. Pointers returned by At are invalidated by the
// next Append.
type Arena struct {
	halos []Halo
}

// NewArena returns an arena pre-sized for a tree with nRaw halos in
// its raw catalog.
func NewArena(nRaw int) *Arena {
	c := int(trackedHalosPerRaw * float64(nRaw))
	if c < minTrackedCap {
		c = minTrackedCap
	}
	return &Arena{halos: make([]Halo, 0, c)}
}

// NewWorkspace returns the scratch arena used while joining a single
// group. Its capacity is a fraction of the tracked capacity since a
// group is much smaller than its tree.
func NewWorkspace(trackedCap int) *Arena {
	c := int(workspaceFraction * float64(trackedCap))
	if c < minWorkspaceCap {
		c = minWorkspaceCap
	}
	return &Arena{halos: make([]Halo, 0, c)}
}

func (a *Arena) Len() int { return len(a.halos) }
func (a *Arena) Cap() int { return cap(a.halos) }

// Append stores h and returns its index.
func (a *Arena) Append(h Halo) int {
	if len(a.halos) == cap(a.halos) {
		a.grow()
	}
	a.halos = append(a.halos, h)
	return len(a.halos) - 1
}

func (a *Arena) grow() {
	newCap := 2 * cap(a.halos)
	if newCap < cap(a.halos)+minGrowth {
		newCap = cap(a.halos) + minGrowth
	}
	buf := make([]Halo, len(a.halos), newCap)
	copy(buf, a.halos)
	a.halos = buf
}

// At returns a pointer to record i. Records already stored may be
// edited in place through it.
func (a *Arena) At(i int) *Halo { return &a.halos[i] }

// Slice returns a live view of records [lo, hi).
func (a *Arena) Slice(lo, hi int) []Halo { return a.halos[lo:hi] }

// Reset empties the arena, keeping its capacity.
func (a *Arena) Reset() { a.halos = a.halos[:0] }

// Release drops the backing store. The arena must not be used again.
func (a *Arena) Release() { a.halos = nil }
