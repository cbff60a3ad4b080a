package grid

import (
	"math"
	"testing"
)

func TestBoxIdxCoords(t *testing.T) {
	b := NewBox([3]int{-2, 3, 1}, [3]int{4, 5, 8})
	seen := make([]bool, b.Volume())
	b.ForEach(func(i, j, k int) {
		idx := b.Idx(i, j, k)
		if seen[idx] {
			t.Errorf("Index %d of cell (%d %d %d) seen twice.", idx, i, j, k)
		}
		seen[idx] = true
		ii, jj, kk := b.Coords(idx)
		if ii != i || jj != j || kk != k {
			t.Errorf("Expected Coords(%d) = (%d %d %d), got (%d %d %d).",
				idx, i, j, k, ii, jj, kk)
		}
	})
	if _, ok := b.IdxCheck(4, 3, 1); ok {
		t.Errorf("Expected (4, 3, 1) to be outside %v.", b)
	}
}

func TestBoxOps(t *testing.T) {
	a := NewBox([3]int{0, 0, 0}, [3]int{8, 8, 8})
	b := NewBox([3]int{4, -2, 6}, [3]int{12, 4, 10})

	isect, ok := a.Intersect(b)
	want := NewBox([3]int{4, 0, 6}, [3]int{8, 4, 8})
	if !ok || isect != want {
		t.Errorf("Expected intersection %v, got %v (%v).", want, isect, ok)
	}
	if _, ok := a.Intersect(a.Shift([3]int{8, 0, 0})); ok {
		t.Errorf("Expected adjacent boxes to not intersect.")
	}

	if g := a.Grow(2); g.Origin != [3]int{-2, -2, -2} || g.Volume() != 12*12*12 {
		t.Errorf("Grow gave %v.", g)
	}

	c := NewBox([3]int{-3, 1, 5}, [3]int{3, 2, 8})
	cc := c.Coarsen(2)
	wantC := NewBox([3]int{-2, 0, 2}, [3]int{2, 1, 4})
	if cc != wantC {
		t.Errorf("Expected %v.Coarsen(2) = %v, got %v.", c, wantC, cc)
	}
	if !cc.Refine(2).ContainsBox(c) {
		t.Errorf("Expected refined coarsened box to contain the original.")
	}
}

func TestChop(t *testing.T) {
	domain := NewBox([3]int{}, [3]int{32, 16, 24})
	ba := Chop(domain, 16, 8)

	if ba.NumCells() != domain.Volume() {
		t.Errorf("Expected %d cells, got %d.", domain.Volume(), ba.NumCells())
	}
	for _, b := range ba {
		for d := 0; d < 3; d++ {
			if b.Width[d] > 16 {
				t.Errorf("Box %v is wider than 16 cells.", b)
			}
			if b.Origin[d]%8 != 0 || b.Width[d]%8 != 0 {
				t.Errorf("Box %v isn't aligned to 8 cells.", b)
			}
		}
	}
	if len(ba) != 2*1*2 {
		t.Errorf("Expected 4 boxes, got %d.", len(ba))
	}
}

func TestKnapSack(t *testing.T) {
	weights := []float64{10, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	dm := KnapSack(weights, 2)

	load := [2]float64{}
	for i, r := range dm {
		load[r] += weights[i]
	}
	if load[0] != 10 || load[1] != 10 {
		t.Errorf("Expected loads [10 10], got %v.", load)
	}

	dm2 := KnapSack(weights, 2)
	for i := range dm {
		if dm[i] != dm2[i] {
			t.Errorf("KnapSack is not deterministic.")
			break
		}
	}

	rr := RoundRobin(5, 2)
	if len(rr.Owned(0)) != 3 || len(rr.Owned(1)) != 2 {
		t.Errorf("Expected RoundRobin owners [3 2], got %v.", rr)
	}
}

func periodicGeometry(n int) Geometry {
	faces := [3][2]BC{{Periodic, Periodic}, {Periodic, Periodic},
		{Wall, Wall}}
	return NewGeometry([3]int{n, n, n}, [3]float64{}, [3]float64{1, 1, 1},
		faces)
}

func TestFillBoundary(t *testing.T) {
	geom := periodicGeometry(8)
	ba := Chop(geom.Domain, 4, 4)
	mf := NewMultiFab(ba, RoundRobin(len(ba), 3), 2, 2)

	value := func(i, j, k, c int) float64 {
		return float64(1000*c + 100*i + 10*j + k)
	}
	for _, f := range mf.FABs {
		f.Valid.ForEach(func(i, j, k int) {
			for c := 0; c < 2; c++ {
				f.Set(i, j, k, c, value(i, j, k, c))
			}
		})
	}

	mf.FillBoundary(&geom)

	for _, f := range mf.FABs {
		f.Box.ForEach(func(i, j, k int) {
			if k < 0 || k >= 8 {
				return
			}
			wi, wj := (i+8)%8, (j+8)%8
			for c := 0; c < 2; c++ {
				if got := f.Get(i, j, k, c); got != value(wi, wj, k, c) {
					t.Errorf("Box %v cell (%d %d %d) comp %d: expected %g, "+
						"got %g.", f.Valid, i, j, k, c,
						value(wi, wj, k, c), got)
					return
				}
			}
		})
	}

	Extrapolate(mf, &geom)
	f := mf.FABs[0]
	if got, want := f.Get(0, 0, -2, 1), value(0, 0, 0, 1); got != want {
		t.Errorf("Expected extrapolated ghost = %g, got %g.", want, got)
	}
}

func TestSumBoundary(t *testing.T) {
	geom := periodicGeometry(8)
	ba := Chop(geom.Domain, 4, 4)
	mf := NewMultiFab(ba, RoundRobin(len(ba), 2), 1, 1)

	// Put one unit in every cell of every grown box which is inside the
	// domain along z. Each domain cell then receives one unit from every
	// box whose grown region (or periodic image) covers it.
	total := 0.0
	for _, f := range mf.FABs {
		f.Box.ForEach(func(i, j, k int) {
			if k >= 0 && k < 8 {
				f.Set(i, j, k, 0, 1)
				total++
			}
		})
	}

	mf.SumBoundary(&geom)

	sum := 0.0
	for _, f := range mf.FABs {
		sum += f.ValidSum(0)
		f.Box.ForEach(func(i, j, k int) {
			if !f.Valid.Contains(i, j, k) && f.Get(i, j, k, 0) != 0 {
				t.Errorf("Ghost cell (%d %d %d) wasn't zeroed.", i, j, k)
			}
		})
	}
	if sum != total {
		t.Errorf("Expected SumBoundary to conserve %g, got %g.", total, sum)
	}
}

func TestGatherScatterParallelCopy(t *testing.T) {
	geom := periodicGeometry(8)
	a := NewMultiFab(Chop(geom.Domain, 4, 4), RoundRobin(8, 2), 1, 1)
	b := NewMultiFab(Chop(geom.Domain, 8, 8), RoundRobin(1, 2), 1, 0)

	in := make([]float64, geom.Domain.Volume())
	for i := range in {
		in[i] = math.Sqrt(float64(i))
	}
	a.Scatter(geom.Domain, 0, in)
	b.ParallelCopy(a, 0, 0, 1)

	out := make([]float64, len(in))
	b.Gather(geom.Domain, 0, out)
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("Expected out[%d] = %g, got %g.", i, in[i], out[i])
		}
	}

	p := NewLocal(2, KnapSackBalance)
	if s := p.ReduceSum(a, 0); math.Abs(s-sumOf(in)) > 1e-9 {
		t.Errorf("Expected ReduceSum = %g, got %g.", sumOf(in), s)
	}
	if m := p.ReduceMaxAbs(a, 0); m != math.Sqrt(float64(len(in)-1)) {
		t.Errorf("Expected ReduceMaxAbs = %g, got %g.",
			math.Sqrt(float64(len(in)-1)), m)
	}

	a.FABs[3].Set(a.FABs[3].Valid.Origin[0], a.FABs[3].Valid.Origin[1],
		a.FABs[3].Valid.Origin[2], 0, math.NaN())
	if err := a.CheckFinite("p_g", 0); err == nil {
		t.Errorf("Expected CheckFinite to find a NaN.")
	}
}

func sumOf(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}

func TestHierarchyValidate(t *testing.T) {
	geom := periodicGeometry(16)
	p := NewLocal(2, RoundRobinBalance)
	h := NewHierarchy(p, geom, 8, 8, 2, 1)
	if err := h.Validate(); err != nil {
		t.Fatalf("Expected valid hierarchy, got %s.", err.Error())
	}

	fine := NewBox([3]int{8, 8, 8}, [3]int{24, 24, 24})
	h.Levels = append(h.Levels, &Level{geom.Refine(2), BoxArray{fine},
		DistributionMap{0}})
	if err := h.Validate(); err != nil {
		t.Errorf("Expected nested level to be valid, got %s.", err.Error())
	}

	h.Levels[1].BA = BoxArray{NewBox([3]int{30, 0, 0}, [3]int{34, 4, 4})}
	if err := h.Validate(); err == nil {
		t.Errorf("Expected a box leaving the domain to be invalid.")
	}
}

func TestPeriodicShifts(t *testing.T) {
	geom := periodicGeometry(8)
	shifts := geom.PeriodicShifts()
	if len(shifts) != 9 {
		t.Errorf("Expected 9 shifts for two periodic dimensions, got %d.",
			len(shifts))
	}
	x := geom.Wrap([3]float64{-0.25, 1.5, 0.5})
	if x[0] != 0.75 || x[1] != 0.5 || x[2] != 0.5 {
		t.Errorf("Expected wrapped point [0.75 0.5 0.5], got %v.", x)
	}
}
