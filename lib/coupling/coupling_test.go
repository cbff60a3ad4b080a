package coupling

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/drag"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

type testSetup struct {
	p  *grid.Local
	s  *fields.State
	ps *particles.Container
	h  *grid.Hierarchy
}

func newSetup(t *testing.T, ranks, nPart int) *testSetup {
	faces := [3][2]grid.BC{
		{grid.Periodic, grid.Periodic}, {grid.Wall, grid.Wall},
		{grid.Inflow, grid.Outflow},
	}
	geom := grid.NewGeometry([3]int{8, 8, 8}, [3]float64{},
		[3]float64{1, 1, 1}, faces)
	p := grid.NewLocal(ranks, grid.RoundRobinBalance)
	h := grid.NewHierarchy(p, geom, 4, 4, 2, 0)
	s := fields.New(p, h)

	rng := rand.New(rand.NewPCG(3, 4))
	for _, f := range s.Get(0, fields.VelG).FABs {
		f.Valid.ForEach(func(i, j, k int) {
			for d := 0; d < 3; d++ {
				f.Set(i, j, k, d, rng.Float64()-0.5)
			}
		})
	}
	s.Get(0, fields.EpG).SetVal(1)
	s.Get(0, fields.RoG).SetVal(1.2)
	s.Get(0, fields.MuG).SetVal(1.8e-5)

	ps := particles.NewContainer(p.Comm(), true)
	for i := 0; i < nPart; i++ {
		var x, v [3]float64
		for d := 0; d < 3; d++ {
			x[d] = rng.Float64()
			v[d] = rng.Float64() - 0.5
		}
		ps.Add(0, particles.New(x, v, 0.01, 1000, 0))
	}
	lev := h.Levels[0]
	_, err := ps.Redistribute(particles.NewBoxLocator(lev), &lev.Geom)
	require.NoError(t, err)

	return &testSetup{p, s, ps, h}
}

func TestStencilWeights(t *testing.T) {
	faces := [3][2]grid.BC{
		{grid.Periodic, grid.Periodic}, {grid.Wall, grid.Wall},
		{grid.Wall, grid.Wall},
	}
	geom := grid.NewGeometry([3]int{4, 4, 4}, [3]float64{},
		[3]float64{1, 1, 1}, faces)
	ba := grid.Chop(geom.Domain, 4, 4)

	st, ok := NewStencil(&geom, ba, [3]float64{0.01, 0.01, 0.5}, nil)
	require.True(t, ok)
	sum := 0.0
	for n := range st.Cells {
		sum += st.Weight[n]
		c := st.Cells[n]
		assert.True(t, c[0] == -1 || c[0] == 0, "x index %d", c[0])
		assert.Equal(t, 0, c[1])
		assert.True(t, c[2] == 1 || c[2] == 2)
	}
	assert.InDelta(t, 1.0, sum, 1e-14)

	_, ok = NewStencil(&geom, ba, [3]float64{0.5, 0.5, 1.5}, nil)
	assert.False(t, ok)

	// Covered cells lose their weight.
	frac := func(i, j, k int) float64 {
		if k >= 2 {
			return 0
		}
		return 1
	}
	st, _ = NewStencil(&geom, ba, [3]float64{0.5, 0.5, 0.5}, frac)
	sum = 0
	for n := range st.Cells {
		if st.Cells[n][2] >= 2 {
			assert.Equal(t, 0.0, st.Weight[n])
		}
		sum += st.Weight[n]
	}
	assert.InDelta(t, 1.0, sum, 1e-14)
}

func TestMomentumConservation(t *testing.T) {
	for _, ranks := range []int{1, 3} {
		su := newSetup(t, ranks, 300)
		op := &Operator{Law: drag.WenYu{}, Mode: Explicit, MinEpg: 0.1}
		require.NoError(t, op.DepositVolume(su.p, su.s, su.ps))

		bal, err := op.Compute(su.p, su.s, su.ps, 1e-3)
		require.NoError(t, err)
		assert.Greater(t, bal.Scale(), 0.0)
		assert.LessOrEqual(t, bal.Residual(), 1e-12*bal.Scale(),
			"ranks = %d, balance = %+v", ranks, bal)
	}
}

func TestParticleForces(t *testing.T) {
	su := newSetup(t, 1, 0)
	su.s.Get(0, fields.VelG).SetVal(0)
	su.s.Get(0, fields.VelG).SetComp(0, 2)
	su.s.Get(0, fields.GradP).SetComp(2, 5)
	su.ps.Add(0, particles.New([3]float64{0.5, 0.5, 0.5}, [3]float64{},
		0.01, 1000, 0))

	op := &Operator{Law: drag.WenYu{}, Mode: Explicit, MinEpg: 0.1,
		GP0: [3]float64{0, 0, 1}}
	_, err := op.Compute(su.p, su.s, su.ps, 1e-3)
	require.NoError(t, err)

	part := su.ps.All()[0]
	beta := drag.Beta(drag.WenYu{}, 1.8e-5, 1.2, 1, 0.02, [3]float64{2, 0, 0})
	assert.InDelta(t, 2*beta, part.Drag[0], 1e-12*beta)
	assert.Equal(t, 0.0, part.Drag[1])
	assert.InDelta(t, -6*part.Volume, part.PressureForce[2], 1e-15)
}

func TestImplicitApply(t *testing.T) {
	su := newSetup(t, 1, 0)
	su.s.Get(0, fields.VelG).SetVal(0)
	su.ps.Add(0, particles.New([3]float64{0.5, 0.5, 0.5},
		[3]float64{1, 0, 0}, 0.05, 1000, 0))

	op := &Operator{Law: drag.WenYu{}, Mode: Implicit, MinEpg: 0.1}
	dt := 1.0
	_, err := op.Compute(su.p, su.s, su.ps, dt)
	require.NoError(t, err)

	drag0 := su.s.Levels[0].Drag
	f := drag0.FABs[drag0.BA.Locate(3, 3, 3)]
	beta := f.Get(3, 3, 3, fields.DragBeta)
	betaV := f.Get(3, 3, 3, fields.DragBetaVX)
	require.Greater(t, beta, 0.0)
	assert.InDelta(t, beta, betaV, 1e-12*beta)

	op.Apply(su.s, dt)
	u := su.s.Get(0, fields.VelG).FABs[drag0.BA.Locate(3, 3, 3)]
	want := dt * betaV / (1.2 + dt*beta)
	assert.InDelta(t, want, u.Get(3, 3, 3, 0), 1e-12)
	assert.Less(t, u.Get(3, 3, 3, 0), 1.0)
}

func TestDepositVolume(t *testing.T) {
	su := newSetup(t, 2, 100)
	op := &Operator{Law: drag.WenYu{}, MinEpg: 0}
	require.NoError(t, op.DepositVolume(su.p, su.s, su.ps))

	geom := su.h.Levels[0].Geom
	ep := su.s.Get(0, fields.EpG)
	solid := 0.0
	for _, f := range ep.FABs {
		f.Valid.ForEach(func(i, j, k int) {
			solid += (1 - f.Get(i, j, k, 0)) * geom.CellVolume()
		})
	}
	total := 0.0
	su.ps.ForEach(func(_ int, p *particles.Particle) { total += p.Volume })
	assert.InDelta(t, total, solid, 1e-12)

	// Overfill one cell so the floor is applied.
	su.ps.Clear()
	big := particles.New([3]float64{0.0625, 0.0625, 0.0625}, [3]float64{},
		0.1, 1000, 0)
	su.ps.Add(0, big)
	op.MinEpg = 0.25
	require.NoError(t, op.DepositVolume(su.p, su.s, su.ps))
	for _, f := range ep.FABs {
		f.Valid.ForEach(func(i, j, k int) {
			assert.GreaterOrEqual(t, f.Get(i, j, k, 0), 0.25)
		})
	}
	assert.Equal(t, 0.25, ep.FABs[ep.BA.Locate(0, 0, 0)].Get(0, 0, 0, 0))
}

func TestNew(t *testing.T) {
	c := config.Default()
	op, err := New(&c.Drag, c.GP0())
	require.NoError(t, err)
	assert.Equal(t, "WenYu", op.Law.Name())
	assert.Equal(t, Explicit, op.Mode)

	c.Drag.Type, c.Drag.Coupling = "gidaspow", "implicit"
	op, err = New(&c.Drag, c.GP0())
	require.NoError(t, err)
	assert.Equal(t, Implicit, op.Mode)

	c.Drag.Type = "nope"
	_, err = New(&c.Drag, c.GP0())
	assert.Error(t, err)

	assert.False(t, math.IsNaN(Balance{}.Residual()))
}
