package halo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArenaPresizing(t *testing.T) {
	assert.Equal(t, minTrackedCap, NewArena(10).Cap(), "small tree floor")
	assert.Equal(t, 100000, NewArena(50000).Cap(), "proportional sizing")

	assert.Equal(t, minWorkspaceCap, NewWorkspace(1000).Cap(),
		"small workspace floor")
	assert.Equal(t, 10000, NewWorkspace(100000).Cap(),
		"proportional workspace")
}

func TestArenaGrowth(t *testing.T) {
	a := NewArena(0)
	n := 2*a.Cap() + 7

	for i := 0; i < n; i++ {
		idx := a.Append(Halo{UniqueHaloID: int64(i)})
		assert.Equal(t, i, idx, "append index")
	}
	assert.Equal(t, n, a.Len(), "length after growth")
	assert.True(t, a.Cap() >= n, "capacity after growth")

	// Growth must not disturb stored records.
	for i := 0; i < n; i++ {
		if a.At(i).UniqueHaloID != int64(i) {
			t.Fatalf("record %d corrupted after growth", i)
		}
	}
}

func TestArenaIndicesSurviveGrowth(t *testing.T) {
	a := NewArena(0)
	first := a.Append(Halo{Mvir: 3.5})
	for a.Cap() > a.Len() {
		a.Append(Halo{})
	}
	a.Append(Halo{}) // forces a reallocation
	assert.Equal(t, 3.5, a.At(first).Mvir, "index stable across growth")
}

func TestArenaReset(t *testing.T) {
	a := NewWorkspace(0)
	for i := 0; i < 10; i++ {
		a.Append(Halo{})
	}
	c := a.Cap()
	a.Reset()
	assert.Equal(t, 0, a.Len(), "reset length")
	assert.Equal(t, c, a.Cap(), "reset keeps capacity")
}
