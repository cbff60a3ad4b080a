/*package grid contains cfdem's view of the block-structured grid hierarchy:
cell-aligned boxes, their assignment to ranks, multi-component arrays defined
over them, and the Provider interface which allocates and synchronises those
arrays.
*/
package grid

import (
	"fmt"
)

// Box is a rectangular region of cells. It contains the cells with indices
// Origin[d] <= i < Origin[d] + Width[d].
type Box struct {
	Origin, Width [3]int
}

// NewBox creates the box containing cells lo <= i < hi.
func NewBox(lo, hi [3]int) Box {
	b := Box{Origin: lo}
	for d := 0; d < 3; d++ {
		b.Width[d] = hi[d] - lo[d]
		if b.Width[d] < 0 {
			b.Width[d] = 0
		}
	}
	return b
}

// Hi returns the exclusive upper corner of the box.
func (b Box) Hi() [3]int {
	return [3]int{b.Origin[0] + b.Width[0], b.Origin[1] + b.Width[1],
		b.Origin[2] + b.Width[2]}
}

// Volume returns the number of cells in the box.
func (b Box) Volume() int { return b.Width[0] * b.Width[1] * b.Width[2] }

// Empty returns true if the box contains no cells.
func (b Box) Empty() bool {
	return b.Width[0] <= 0 || b.Width[1] <= 0 || b.Width[2] <= 0
}

// Contains returns true if the cell (i, j, k) is inside the box.
func (b Box) Contains(i, j, k int) bool {
	return i >= b.Origin[0] && i < b.Origin[0]+b.Width[0] &&
		j >= b.Origin[1] && j < b.Origin[1]+b.Width[1] &&
		k >= b.Origin[2] && k < b.Origin[2]+b.Width[2]
}

// ContainsBox returns true if every cell of o is inside b.
func (b Box) ContainsBox(o Box) bool {
	if o.Empty() {
		return true
	}
	hb, ho := b.Hi(), o.Hi()
	for d := 0; d < 3; d++ {
		if o.Origin[d] < b.Origin[d] || ho[d] > hb[d] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of two boxes and whether it's non-empty.
func (b Box) Intersect(o Box) (Box, bool) {
	hb, ho := b.Hi(), o.Hi()
	var lo, hi [3]int
	for d := 0; d < 3; d++ {
		lo[d] = maxInt(b.Origin[d], o.Origin[d])
		hi[d] = minInt(hb[d], ho[d])
		if hi[d] <= lo[d] {
			return Box{}, false
		}
	}
	return NewBox(lo, hi), true
}

// Grow returns the box expanded by n cells on every side.
func (b Box) Grow(n int) Box {
	for d := 0; d < 3; d++ {
		b.Origin[d] -= n
		b.Width[d] += 2 * n
	}
	return b
}

// Shift returns the box translated by s cells.
func (b Box) Shift(s [3]int) Box {
	for d := 0; d < 3; d++ {
		b.Origin[d] += s[d]
	}
	return b
}

// Refine returns the box covering the same region on a grid r times finer.
func (b Box) Refine(r int) Box {
	for d := 0; d < 3; d++ {
		b.Origin[d] *= r
		b.Width[d] *= r
	}
	return b
}

// Coarsen returns the smallest box on a grid r times coarser which covers b.
func (b Box) Coarsen(r int) Box {
	hi := b.Hi()
	var lo [3]int
	for d := 0; d < 3; d++ {
		lo[d] = floorDiv(b.Origin[d], r)
		hi[d] = -floorDiv(-hi[d], r)
	}
	return NewBox(lo, hi)
}

// Idx returns the flat index of cell (i, j, k) in an array spanning the
// box, with x varying fastest.
func (b Box) Idx(i, j, k int) int {
	return (i - b.Origin[0]) +
		b.Width[0]*((j-b.Origin[1])+b.Width[1]*(k-b.Origin[2]))
}

// IdxCheck is identical to Idx, but returns false if the cell is outside
// the box.
func (b Box) IdxCheck(i, j, k int) (int, bool) {
	if !b.Contains(i, j, k) {
		return -1, false
	}
	return b.Idx(i, j, k), true
}

// Coords returns the cell with the given flat index.
func (b Box) Coords(idx int) (i, j, k int) {
	i = idx%b.Width[0] + b.Origin[0]
	j = (idx/b.Width[0])%b.Width[1] + b.Origin[1]
	k = idx/(b.Width[0]*b.Width[1]) + b.Origin[2]
	return i, j, k
}

// ForEach calls f on every cell in the box, with x varying fastest.
func (b Box) ForEach(f func(i, j, k int)) {
	hi := b.Hi()
	for k := b.Origin[2]; k < hi[2]; k++ {
		for j := b.Origin[1]; j < hi[1]; j++ {
			for i := b.Origin[0]; i < hi[0]; i++ {
				f(i, j, k)
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("%v-%v", b.Origin, b.Hi())
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
