package particles

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/comm"
	"github.com/phil-mansfield/cfdem/lib/grid"
)

func TestWallModel(t *testing.T) {
	w := WallModel{Kn: 1e3, En: 1, TcollRatio: 50}
	m := 2.0
	assert.Equal(t, 0.0, w.Damping(m))
	assert.InDelta(t, math.Pi*math.Sqrt(m/w.Kn), w.CollisionTime(m), 1e-12)

	w.En = 0.5
	assert.Greater(t, w.Damping(m), 0.0)
	assert.Greater(t, w.CollisionTime(m), math.Pi*math.Sqrt(m/w.Kn))

	n := [3]float64{0, 0, 1}
	assert.Equal(t, [3]float64{}, w.Force(m, -1e-3, [3]float64{}, n))
	f := w.Force(m, 1e-3, [3]float64{}, n)
	assert.InDelta(t, 1.0, f[2], 1e-12)
	// Separating fast enough that damping would pull the particle back.
	f = w.Force(m, 1e-6, [3]float64{0, 0, 100}, n)
	assert.Equal(t, 0.0, f[2])
}

func TestFreeFall(t *testing.T) {
	lev := testLevel(1, grid.Periodic)
	c := NewContainer(comm.New(1), true)
	c.Add(0, New([3]float64{0.5, 0.5, 0.5}, [3]float64{}, 0.01, 1000, 0))

	in := &Integrator{
		Wall:    WallModel{Kn: 1e3, En: 0.9, TcollRatio: 50},
		Gravity: [3]float64{0, 0, -9.81},
		Geom:    lev.Geom,
	}
	dt := 1e-3
	stats, err := in.Advance(c, dt)
	require.NoError(t, err)
	assert.Greater(t, stats.Substeps, 1)
	assert.Equal(t, 0, stats.Contacts)

	p := c.All()[0]
	assert.InDelta(t, -9.81*dt, p.Vel[2], 1e-12)
	S := float64(stats.Substeps)
	assert.InDelta(t, 0.5-9.81*dt*dt*(S+1)/(2*S), p.Pos[2], 1e-12)
}

func TestDragAndPressureForces(t *testing.T) {
	lev := testLevel(1, grid.Periodic)
	c := NewContainer(comm.New(1), true)
	p := New([3]float64{0.5, 0.5, 0.5}, [3]float64{}, 0.01, 1000, 0)
	p.Drag = [3]float64{p.Mass, 0, 0}
	p.PressureForce = [3]float64{0, -2 * p.Mass, 0}
	c.Add(0, p)
	frozen := New([3]float64{0.2, 0.2, 0.2}, [3]float64{1, 1, 1}, 0.01, 1000, 0)
	frozen.State = Frozen
	c.Add(0, frozen)

	in := &Integrator{Wall: WallModel{1e3, 0.9, 50}, Geom: lev.Geom}
	_, err := in.Advance(c, 0.1)
	require.NoError(t, err)

	all := c.All()
	assert.InDelta(t, 0.1, all[0].Vel[0], 1e-12)
	assert.InDelta(t, -0.2, all[0].Vel[1], 1e-12)
	assert.Equal(t, frozen.Pos, all[1].Pos)
}

func TestWallBounce(t *testing.T) {
	lev := testLevel(1, grid.Wall)
	c := NewContainer(comm.New(1), true)
	r := 0.01
	c.Add(0, New([3]float64{0.5, 0.5, r}, [3]float64{0, 0, -1}, r, 1000, 0))

	in := &Integrator{Wall: WallModel{1e3, 0.9, 50}, Geom: lev.Geom}
	contacts := 0
	for step := 0; step < 20; step++ {
		stats, err := in.Advance(c, 1e-3)
		require.NoError(t, err)
		contacts += stats.Contacts
	}

	p := c.All()[0]
	assert.Greater(t, contacts, 0)
	assert.Greater(t, p.Pos[2], r)
	assert.InDelta(t, 0.9, p.Vel[2], 0.08)
	assert.Equal(t, Active, p.State)
}

func TestExiting(t *testing.T) {
	f := [3][2]grid.BC{
		{grid.Wall, grid.Wall}, {grid.Wall, grid.Wall},
		{grid.Inflow, grid.Outflow},
	}
	geom := grid.NewGeometry([3]int{8, 8, 8}, [3]float64{},
		[3]float64{1, 1, 1}, f)
	ba := grid.Chop(geom.Domain, 8, 8)
	lev := &grid.Level{Geom: geom, BA: ba, DM: grid.RoundRobin(len(ba), 1)}

	c := NewContainer(comm.New(1), true)
	c.Add(0, New([3]float64{0.5, 0.5, 0.995}, [3]float64{0, 0, 1}, 0.01, 1000, 0))
	c.Add(0, New([3]float64{0.5, 0.5, 0.5}, [3]float64{0, 0, 1}, 0.01, 1000, 0))

	in := &Integrator{Wall: WallModel{1e3, 0.9, 50}, Geom: geom}
	stats, err := in.Advance(c, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Exiting)

	removed, err := c.Redistribute(NewBoxLocator(lev), &geom)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestNonFiniteParticle(t *testing.T) {
	lev := testLevel(1, grid.Periodic)
	c := NewContainer(comm.New(1), true)
	p := New([3]float64{0.5, 0.5, 0.5}, [3]float64{}, 0.01, 1000, 0)
	p.Drag[0] = math.Inf(+1)
	c.Add(0, p)

	in := &Integrator{Wall: WallModel{1e3, 0.9, 50}, Geom: lev.Geom}
	_, err := in.Advance(c, 1e-3)
	assert.Error(t, err)
}
