package grid

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/cfdem/lib/errs"
)

// FAB is the data of a MultiFab on a single box: NComp arrays spanning the
// box grown by the MultiFab's ghost width.
type FAB struct {
	Valid Box
	Box   Box
	NComp int
	Data  []float64
}

// NewFAB allocates a zeroed FAB.
func NewFAB(valid Box, ncomp, nghost int) *FAB {
	box := valid.Grow(nghost)
	return &FAB{valid, box, ncomp, make([]float64, ncomp*box.Volume())}
}

// Idx returns the index of cell (i, j, k) of component c in f.Data.
func (f *FAB) Idx(i, j, k, c int) int {
	return c*f.Box.Volume() + f.Box.Idx(i, j, k)
}

func (f *FAB) Get(i, j, k, c int) float64    { return f.Data[f.Idx(i, j, k, c)] }
func (f *FAB) Set(i, j, k, c int, x float64) { f.Data[f.Idx(i, j, k, c)] = x }
func (f *FAB) Add(i, j, k, c int, x float64) { f.Data[f.Idx(i, j, k, c)] += x }

// Comp returns the array of a single component, ghost cells included.
func (f *FAB) Comp(c int) []float64 {
	n := f.Box.Volume()
	return f.Data[c*n : (c+1)*n]
}

// copyRegion copies src's cell x - shift to f's cell x for every x in
// region. If add is true the values are added instead.
func (f *FAB) copyRegion(
	src *FAB, region Box, shift [3]int, srcComp, dstComp, ncomp int, add bool,
) {
	for c := 0; c < ncomp; c++ {
		region.ForEach(func(i, j, k int) {
			x := src.Get(i-shift[0], j-shift[1], k-shift[2], srcComp+c)
			if add {
				f.Add(i, j, k, dstComp+c, x)
			} else {
				f.Set(i, j, k, dstComp+c, x)
			}
		})
	}
}

// MultiFab is a multi-component cell-centred array distributed over the
// boxes of a BoxArray.
type MultiFab struct {
	BA     BoxArray
	DM     DistributionMap
	NComp  int
	NGhost int
	FABs   []*FAB
}

// NewMultiFab allocates a zeroed MultiFab.
func NewMultiFab(ba BoxArray, dm DistributionMap, ncomp, nghost int) *MultiFab {
	if len(ba) != len(dm) {
		panic(fmt.Sprintf("Internal error: BoxArray has %d boxes, but "+
			"DistributionMap has %d.", len(ba), len(dm)))
	}
	mf := &MultiFab{ba, dm, ncomp, nghost, make([]*FAB, len(ba))}
	for i := range ba {
		mf.FABs[i] = NewFAB(ba[i], ncomp, nghost)
	}
	return mf
}

// SameLayout returns true if two MultiFabs have the same boxes, component
// count and ghost width.
func (mf *MultiFab) SameLayout(o *MultiFab) bool {
	return mf.NComp == o.NComp && mf.NGhost == o.NGhost && mf.BA.Equal(o.BA)
}

// SetVal sets every component of every cell, ghost cells included.
func (mf *MultiFab) SetVal(x float64) {
	for _, f := range mf.FABs {
		for i := range f.Data {
			f.Data[i] = x
		}
	}
}

// SetComp sets a single component of every cell, ghost cells included.
func (mf *MultiFab) SetComp(c int, x float64) {
	for _, f := range mf.FABs {
		comp := f.Comp(c)
		for i := range comp {
			comp[i] = x
		}
	}
}

// Clone returns a deep copy.
func (mf *MultiFab) Clone() *MultiFab {
	out := &MultiFab{
		append(BoxArray(nil), mf.BA...),
		append(DistributionMap(nil), mf.DM...),
		mf.NComp, mf.NGhost, make([]*FAB, len(mf.FABs)),
	}
	for i, f := range mf.FABs {
		out.FABs[i] = &FAB{f.Valid, f.Box, f.NComp,
			append([]float64(nil), f.Data...)}
	}
	return out
}

// CopyFrom copies all the data of a MultiFab with the same layout.
func (mf *MultiFab) CopyFrom(src *MultiFab) {
	if !mf.SameLayout(src) {
		panic("Internal error: CopyFrom given MultiFabs with different " +
			"layouts.")
	}
	for i := range mf.FABs {
		copy(mf.FABs[i].Data, src.FABs[i].Data)
	}
}

// ParallelCopy copies the valid cells of src into the overlapping valid
// cells of mf. The two MultiFabs may have different BoxArrays.
func (mf *MultiFab) ParallelCopy(src *MultiFab, srcComp, dstComp, ncomp int) {
	for _, dst := range mf.FABs {
		for _, s := range src.FABs {
			if region, ok := dst.Valid.Intersect(s.Valid); ok {
				dst.copyRegion(s, region, [3]int{}, srcComp, dstComp,
					ncomp, false)
			}
		}
	}
}

// FillBoundary fills ghost cells which overlap the valid cells of another
// box (or a periodic image of one) with that box's values.
func (mf *MultiFab) FillBoundary(geom *Geometry) {
	if mf.NGhost == 0 {
		return
	}
	shifts := geom.PeriodicShifts()
	for d, dst := range mf.FABs {
		for n, src := range mf.FABs {
			for _, sh := range shifts {
				if n == d && sh == [3]int{} {
					continue
				}
				region, ok := dst.Box.Intersect(src.Valid.Shift(sh))
				if !ok {
					continue
				}
				dst.copyRegion(src, region, sh, 0, 0, mf.NComp, false)
			}
		}
	}
}

// SumBoundary adds the values stored in ghost cells onto the valid cells
// they overlap (including periodic images) and then zeroes every ghost cell.
// Ghost values outside the domain are discarded.
func (mf *MultiFab) SumBoundary(geom *Geometry) {
	if mf.NGhost == 0 {
		return
	}
	shifts := geom.PeriodicShifts()
	for n, src := range mf.FABs {
		for d, dst := range mf.FABs {
			for _, sh := range shifts {
				if n == d && sh == [3]int{} {
					continue
				}
				// Cells x of src land on dst cell x - sh.
				region, ok := src.Box.Intersect(dst.Valid.Shift(sh))
				if !ok {
					continue
				}
				neg := [3]int{-sh[0], -sh[1], -sh[2]}
				dst.copyRegion(src, region.Shift(neg), neg, 0, 0,
					mf.NComp, true)
			}
		}
	}
	mf.ZeroGhosts()
}

// ZeroGhosts sets every ghost cell to zero.
func (mf *MultiFab) ZeroGhosts() {
	for _, f := range mf.FABs {
		for c := 0; c < f.NComp; c++ {
			f.Box.ForEach(func(i, j, k int) {
				if !f.Valid.Contains(i, j, k) {
					f.Set(i, j, k, c, 0)
				}
			})
		}
	}
}

// Gather copies component c of every valid cell inside domain into a flat
// array spanning domain.
func (mf *MultiFab) Gather(domain Box, c int, out []float64) {
	for _, f := range mf.FABs {
		region, ok := f.Valid.Intersect(domain)
		if !ok {
			continue
		}
		region.ForEach(func(i, j, k int) {
			out[domain.Idx(i, j, k)] = f.Get(i, j, k, c)
		})
	}
}

// Scatter is the inverse of Gather.
func (mf *MultiFab) Scatter(domain Box, c int, in []float64) {
	for _, f := range mf.FABs {
		region, ok := f.Valid.Intersect(domain)
		if !ok {
			continue
		}
		region.ForEach(func(i, j, k int) {
			f.Set(i, j, k, c, in[domain.Idx(i, j, k)])
		})
	}
}

// ValidSum returns the sum of component c over the valid cells of a single
// box.
func (f *FAB) ValidSum(c int) float64 {
	sum := 0.0
	f.Valid.ForEach(func(i, j, k int) { sum += f.Get(i, j, k, c) })
	return sum
}

// ValidMaxAbs returns the maximum absolute value of component c over the
// valid cells of a single box. NaNs are returned as soon as they're seen.
func (f *FAB) ValidMaxAbs(c int) float64 {
	max := 0.0
	nan := false
	f.Valid.ForEach(func(i, j, k int) {
		x := f.Get(i, j, k, c)
		if x != x {
			nan = true
		}
		if math.Abs(x) > max {
			max = math.Abs(x)
		}
	})
	if nan {
		return math.NaN()
	}
	return max
}

// CheckFinite returns an errs.NumericalError describing the first
// non-finite valid cell.
func (mf *MultiFab) CheckFinite(name string, level int) error {
	for b, f := range mf.FABs {
		for c := 0; c < mf.NComp; c++ {
			var bad *errs.NumericalError
			f.Valid.ForEach(func(i, j, k int) {
				x := f.Get(i, j, k, c)
				if bad == nil && (math.IsNaN(x) || math.IsInf(x, 0)) {
					q := name
					if mf.NComp > 1 {
						q = fmt.Sprintf("%s[%d]", name, c)
					}
					bad = &errs.NumericalError{Quantity: q, Level: level,
						Box: b, Cell: [3]int{i, j, k}, Value: x}
				}
			})
			if bad != nil {
				return bad
			}
		}
	}
	return nil
}

// Equal returns true if the valid cells of two MultiFabs with the same
// layout are bitwise identical.
func (mf *MultiFab) Equal(o *MultiFab) bool {
	if mf.NComp != o.NComp || !mf.BA.Equal(o.BA) {
		return false
	}
	for b := range mf.FABs {
		f, g := mf.FABs[b], o.FABs[b]
		same := true
		for c := 0; c < mf.NComp; c++ {
			f.Valid.ForEach(func(i, j, k int) {
				if math.Float64bits(f.Get(i, j, k, c)) !=
					math.Float64bits(g.Get(i, j, k, c)) {
					same = false
				}
			})
		}
		if !same {
			return false
		}
	}
	return true
}
