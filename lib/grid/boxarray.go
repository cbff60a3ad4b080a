package grid

import (
	"sort"
)

// BoxArray is a list of disjoint boxes on a single level.
type BoxArray []Box

// Chop splits a region into boxes no wider than maxSize along any
// dimension. Cuts are placed on multiples of blocking cells whenever the
// region is aligned to them. Boxes are listed with x varying fastest.
func Chop(region Box, maxSize, blocking int) BoxArray {
	var cuts [3][]int
	for d := 0; d < 3; d++ {
		bf := blocking
		if bf <= 0 || region.Width[d]%bf != 0 || maxSize < bf {
			bf = 1
		}
		nBlocks, maxBlocks := region.Width[d]/bf, maxSize/bf
		nChunks := (nBlocks + maxBlocks - 1) / maxBlocks

		lo, hi := region.Origin[d], region.Origin[d]+region.Width[d]
		cuts[d] = append(cuts[d], lo)
		for c := 1; c < nChunks; c++ {
			// Spread blocks evenly instead of leaving a runt at the end.
			cuts[d] = append(cuts[d], lo+bf*(c*nBlocks/nChunks))
		}
		cuts[d] = append(cuts[d], hi)
	}

	ba := BoxArray{}
	for k := 0; k+1 < len(cuts[2]); k++ {
		for j := 0; j+1 < len(cuts[1]); j++ {
			for i := 0; i+1 < len(cuts[0]); i++ {
				lo := [3]int{cuts[0][i], cuts[1][j], cuts[2][k]}
				hi := [3]int{cuts[0][i+1], cuts[1][j+1], cuts[2][k+1]}
				ba = append(ba, NewBox(lo, hi))
			}
		}
	}
	return ba
}

// NumCells returns the total number of cells in the array.
func (ba BoxArray) NumCells() int {
	n := 0
	for _, b := range ba {
		n += b.Volume()
	}
	return n
}

// Locate returns the index of the box containing cell (i, j, k), or -1.
func (ba BoxArray) Locate(i, j, k int) int {
	for n := range ba {
		if ba[n].Contains(i, j, k) {
			return n
		}
	}
	return -1
}

// Covers returns true if every cell of b is inside some box of ba.
func (ba BoxArray) Covers(b Box) bool {
	remaining := b.Volume()
	for _, o := range ba {
		if isect, ok := b.Intersect(o); ok {
			remaining -= isect.Volume()
		}
	}
	return remaining == 0
}

// Coarsen coarsens every box in the array.
func (ba BoxArray) Coarsen(r int) BoxArray {
	out := make(BoxArray, len(ba))
	for i := range ba {
		out[i] = ba[i].Coarsen(r)
	}
	return out
}

// Refine refines every box in the array.
func (ba BoxArray) Refine(r int) BoxArray {
	out := make(BoxArray, len(ba))
	for i := range ba {
		out[i] = ba[i].Refine(r)
	}
	return out
}

// Equal returns true if two arrays contain the same boxes in the same order.
func (ba BoxArray) Equal(o BoxArray) bool {
	if len(ba) != len(o) {
		return false
	}
	for i := range ba {
		if ba[i] != o[i] {
			return false
		}
	}
	return true
}

// DistributionMap gives the rank which owns each box of a BoxArray.
type DistributionMap []int

// RoundRobin assigns boxes to ranks cyclically.
func RoundRobin(nBoxes, ranks int) DistributionMap {
	dm := make(DistributionMap, nBoxes)
	for i := range dm {
		dm[i] = i % ranks
	}
	return dm
}

// KnapSack assigns boxes to ranks so that the summed weights are balanced.
// Boxes are placed heaviest-first onto the lightest rank. Ties are broken
// by index, so the result is deterministic.
func KnapSack(weights []float64, ranks int) DistributionMap {
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]] > weights[order[b]]
	})

	load := make([]float64, ranks)
	dm := make(DistributionMap, len(weights))
	for _, box := range order {
		best := 0
		for r := 1; r < ranks; r++ {
			if load[r] < load[best] {
				best = r
			}
		}
		dm[box] = best
		load[best] += weights[box]
	}
	return dm
}

// Owned returns the indices of the boxes owned by a rank.
func (dm DistributionMap) Owned(rank int) []int {
	out := []int{}
	for i, r := range dm {
		if r == rank {
			out = append(out, i)
		}
	}
	return out
}
