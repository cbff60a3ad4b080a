package regrid

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/eb"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

type testState struct {
	p     *grid.Local
	m     *Manager
	s     *fields.State
	store *eb.Store
	ps    *particles.Container
}

func newTestState(t *testing.T, ranks int, shape eb.Shape) *testState {
	faces := [3][2]grid.BC{
		{grid.Periodic, grid.Periodic}, {grid.Wall, grid.Wall},
		{grid.Wall, grid.Wall},
	}
	geom := grid.NewGeometry([3]int{16, 16, 16}, [3]float64{},
		[3]float64{1, 1, 1}, faces)
	p := grid.NewLocal(ranks, grid.KnapSackBalance)
	h := grid.NewHierarchy(p, geom, 16, 4, 2, 1)

	builder := eb.NewLevelSetBuilder(p, 1, 2)
	m := &Manager{P: p, Builder: builder, Interval: 5, MaxGridSize: 8,
		Blocking: 4, RefRatio: 2, MaxLevel: 1, TagSolidsFraction: 0.1}

	s := fields.New(p, h)
	rng := rand.New(rand.NewPCG(7, 8))
	for _, f := range s.Get(0, fields.EpG).FABs {
		f.Valid.ForEach(func(i, j, k int) {
			ep := 1.0
			if i < 4 && k < 4 {
				ep = 0.5
			}
			f.Set(i, j, k, 0, ep)
		})
	}
	s.Get(0, fields.RoG).SetVal(1.2)
	for _, v := range []fields.Var{fields.VelG, fields.Trac} {
		for _, f := range s.Get(0, v).FABs {
			f.Valid.ForEach(func(i, j, k int) {
				for c := 0; c < f.NComp; c++ {
					f.Set(i, j, k, c, rng.Float64()-0.5)
				}
			})
		}
	}
	s.FillAll()

	ps := particles.NewContainer(p.Comm(), true)
	for i := 0; i < 200; i++ {
		x := [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
		ps.Add(0, particles.New(x, [3]float64{}, 0.005, 2000, 0))
	}
	lev := h.Levels[0]
	_, err := ps.Redistribute(particles.NewBoxLocator(lev), &lev.Geom)
	require.NoError(t, err)

	store := eb.Build(builder, h, shape, shape)
	return &testState{p, m, s, store, ps}
}

func (ts *testState) regrid(t *testing.T) *Result {
	res, err := ts.m.Regrid(Input{ts.s, ts.store, ts.ps})
	require.NoError(t, err)
	return res
}

func TestDue(t *testing.T) {
	m := &Manager{Interval: 5}
	assert.False(t, m.Due(0))
	assert.False(t, m.Due(4))
	assert.True(t, m.Due(5))
	assert.True(t, m.Due(10))
	m.Interval = -1
	assert.False(t, m.Due(5))
}

func TestRegridConservation(t *testing.T) {
	for _, ranks := range []int{1, 3} {
		ts := newTestState(t, ranks, eb.NoWalls{})
		res := ts.regrid(t)

		st := res.Stats
		assert.Equal(t, [2]int{1, 2}, st.Levels)
		assert.Equal(t, int64(200), st.Before.Particles)
		assert.Equal(t, st.Before.Particles, st.After.Particles)
		assert.Equal(t, 0, st.Removed)
		assert.LessOrEqual(t, st.Before.MaxRelDiff(st.After), 1e-12)
		assert.InDelta(t, 1.2*(4096-0.5*4*16*4)/4096, st.After.GasMass, 1e-12)

		// Every cell with solids is refined.
		h := res.Hierarchy
		require.NoError(t, h.Validate())
		fine := h.Levels[1]
		for k := 0; k < 4; k++ {
			for j := 0; j < 16; j++ {
				for i := 0; i < 4; i++ {
					assert.GreaterOrEqual(t, fine.BA.Locate(2*i, 2*j, 2*k), 0,
						"cell (%d, %d, %d)", i, j, k)
				}
			}
		}
		assert.Less(t, fine.BA.NumCells(), 8*4096/2)

		// The fine level starts out as a copy of level 0.
		ep := res.Fields.Get(1, fields.EpG)
		f := ep.FABs[fine.BA.Locate(0, 0, 0)]
		assert.Equal(t, 0.5, f.Get(0, 0, 0, 0))

		assert.False(t, ts.store.Valid())
		assert.True(t, res.EB.Valid())
		assert.Len(t, res.EB.Fluid, 2)
		assert.Equal(t, Stable, ts.m.Phase())

		lev0 := h.Levels[0]
		assert.NoError(t, ts.ps.Check(particles.NewBoxLocator(lev0), &lev0.Geom))
	}
}

func TestRegridDeterministic(t *testing.T) {
	a := newTestState(t, 1, eb.NoWalls{}).regrid(t)
	b := newTestState(t, 4, eb.NoWalls{}).regrid(t)
	for l := range a.Hierarchy.Levels {
		assert.True(t, a.Hierarchy.Levels[l].BA.Equal(b.Hierarchy.Levels[l].BA))
	}
	assert.True(t, a.Fields.Equal(b.Fields))
}

func TestWallTagging(t *testing.T) {
	sphere := &eb.Sphere{Center: [3]float64{0.5, 0.5, 0.5}, Radius: 0.2,
		Invert: true}
	ts := newTestState(t, 2, sphere)
	ts.m.TagSolidsFraction = -1
	ts.m.TagWallDistance = 1

	res := ts.regrid(t)
	require.Equal(t, 2, res.Hierarchy.NumLevels())
	fine := res.Hierarchy.Levels[1]

	// The cell touching the top of the sphere is refined and the corners
	// of the domain are not.
	assert.GreaterOrEqual(t, fine.BA.Locate(16, 16, 22), 0)
	assert.Equal(t, -1, fine.BA.Locate(0, 0, 0))
	assert.Equal(t, -1, fine.BA.Locate(31, 31, 31))
}

func TestNoTags(t *testing.T) {
	ts := newTestState(t, 1, eb.NoWalls{})
	ts.m.TagSolidsFraction = 0.9
	res := ts.regrid(t)
	assert.Equal(t, 1, res.Hierarchy.NumLevels())
	assert.Len(t, res.Hierarchy.Levels[0].BA, 8)
}

func TestMergeX(t *testing.T) {
	ba := grid.BoxArray{
		grid.NewBox([3]int{4, 0, 0}, [3]int{8, 4, 4}),
		grid.NewBox([3]int{0, 0, 0}, [3]int{4, 4, 4}),
		grid.NewBox([3]int{8, 0, 0}, [3]int{12, 4, 4}),
		grid.NewBox([3]int{0, 4, 0}, [3]int{4, 8, 4}),
	}
	out := mergeX(ba, 8)
	require.Len(t, out, 3)
	assert.Equal(t, grid.NewBox([3]int{0, 0, 0}, [3]int{8, 4, 4}), out[0])
	assert.Equal(t, grid.NewBox([3]int{8, 0, 0}, [3]int{12, 4, 4}), out[1])
	assert.Equal(t, grid.NewBox([3]int{0, 4, 0}, [3]int{4, 8, 4}), out[2])
}
