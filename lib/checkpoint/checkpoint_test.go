package checkpoint

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

var testFaces = [3][2]grid.BC{
	{grid.Periodic, grid.Periodic}, {grid.Inflow, grid.Outflow},
	{grid.Wall, grid.Wall},
}

type testSim struct {
	p    *grid.Local
	geom grid.Geometry
	s    *fields.State
	ps   *particles.Container
}

func newTestSim(t *testing.T, ranks int, fine bool) *testSim {
	geom := grid.NewGeometry([3]int{8, 8, 8}, [3]float64{},
		[3]float64{1, 1, 1}, testFaces)
	geom.InflowVelocity = 0.3
	p := grid.NewLocal(ranks, grid.KnapSackBalance)
	h := grid.NewHierarchy(p, geom, 4, 4, 2, 1)
	if fine {
		ba := grid.BoxArray{grid.NewBox([3]int{0, 0, 0}, [3]int{8, 8, 8})}
		h.Levels = append(h.Levels, &grid.Level{
			Geom: geom.Refine(2), BA: ba, DM: p.Partition(ba, nil),
		})
	}
	require.NoError(t, h.Validate())

	rng := rand.New(rand.NewPCG(11, uint64(ranks)))
	s := fields.New(p, h)
	for l := range h.Levels {
		for v := fields.Var(0); v < fields.NumVars; v++ {
			for _, f := range s.Get(l, v).FABs {
				f.Valid.ForEach(func(i, j, k int) {
					for c := 0; c < f.NComp; c++ {
						f.Set(i, j, k, c, rng.NormFloat64())
					}
				})
			}
		}
	}
	s.FillAll()
	s.Commit()

	ps := particles.NewContainer(p.Comm(), true)
	for i := 0; i < 50; i++ {
		x := [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
		v := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		part := particles.New(x, v, 0.01, 1500, int32(i%2))
		part.Drag = [3]float64{rng.Float64(), 0, -rng.Float64()}
		ps.Add(0, part)
	}
	lev := h.Levels[0]
	_, err := ps.Redistribute(particles.NewBoxLocator(lev), &lev.Geom)
	require.NoError(t, err)

	return &testSim{p, geom, s, ps}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts := newTestSim(t, 2, true)

	w := NewWriter(filepath.Join(dir, "chk"), nil)
	path, err := w.Write(ts.s, ts.ps, Scalars{40, 1.25, 0.01})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chk00040"), path)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	snap, err := Restart(path, ts.p, Options{Expect: &ts.geom,
		RemoveOutOfRange: true})
	require.NoError(t, err)

	assert.Equal(t, Scalars{40, 1.25, 0.01}, snap.Scalars)
	assert.False(t, snap.Replicated)
	assert.True(t, snap.LayoutKept)
	require.Equal(t, 2, snap.Hierarchy.NumLevels())
	for l, lev := range ts.s.Hierarchy().Levels {
		got := snap.Hierarchy.Levels[l]
		assert.True(t, lev.BA.Equal(got.BA))
		assert.Equal(t, lev.DM, got.DM)
		assert.Equal(t, lev.Geom, got.Geom)
	}
	assert.True(t, ts.s.Equal(snap.Fields))
	for l := range ts.s.Levels {
		for v := fields.Var(0); v < fields.NumVars; v++ {
			assert.True(t, ts.s.Old(l, v).Equal(snap.Fields.Old(l, v)))
		}
	}
	assert.Equal(t, ts.ps.All(), snap.Particles.All())
	assert.Equal(t, ts.ps.NextID(), snap.Particles.NextID())
	assert.Equal(t, ts.ps.Counts(), snap.Particles.Counts())

	// Checkpointing the restarted state reproduces the bundle.
	w2 := NewWriter(filepath.Join(dir, "again"), nil)
	path2, err := w2.Write(snap.Fields, snap.Particles, snap.Scalars)
	require.NoError(t, err)
	for _, name := range []string{HeaderFile, LevelFile(0), LevelFile(1),
		ParticleFile} {
		a, err := os.ReadFile(filepath.Join(path, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(path2, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestOverwrite(t *testing.T) {
	dir := t.TempDir()
	ts := newTestSim(t, 1, false)
	w := NewWriter(filepath.Join(dir, "chk{%03d,step}"), nil)

	path, err := w.Write(ts.s, ts.ps, Scalars{7, 0.5, 0.1})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chk007"), path)

	ts.ps.Clear()
	_, err = w.Write(ts.s, ts.ps, Scalars{7, 0.5, 0.1})
	require.NoError(t, err)

	snap, err := Restart(path, ts.p, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Particles.Len())
}

func TestRestartNewRankCount(t *testing.T) {
	dir := t.TempDir()
	ts := newTestSim(t, 2, true)
	path, err := NewWriter(filepath.Join(dir, "chk"), nil).Write(
		ts.s, ts.ps, Scalars{3, 0.3, 0.1})
	require.NoError(t, err)

	p3 := grid.NewLocal(3, grid.KnapSackBalance)
	snap, err := Restart(path, p3, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Particles.NumRanks())
	assert.False(t, snap.LayoutKept)
	assert.True(t, ts.s.Equal(snap.Fields))
	assert.Equal(t, ts.ps.All(), snap.Particles.All())
}

func TestReplication(t *testing.T) {
	dir := t.TempDir()
	ts := newTestSim(t, 2, true)
	path, err := NewWriter(filepath.Join(dir, "chk"), nil).Write(
		ts.s, ts.ps, Scalars{10, 1, 0.1})
	require.NoError(t, err)

	tests := []struct {
		factor [3]int
		policy ReplicationPolicy
		faces  [3][2]grid.BC
	}{
		{[3]int{2, 1, 1}, Preserve, testFaces},
		{[3]int{1, 2, 1}, Preserve, testFaces},
		{[3]int{1, 2, 3}, WallPolicy, [3][2]grid.BC{
			{grid.Periodic, grid.Periodic}, {grid.Wall, grid.Wall},
			{grid.Wall, grid.Wall},
		}},
		{[3]int{2, 1, 1}, WallPolicy, testFaces},
	}

	old := ts.s.Hierarchy().Levels[0].Geom
	oldVel := make([]float64, old.Domain.Volume())
	ts.s.Get(0, fields.VelG).Gather(old.Domain, 1, oldVel)

	for i, test := range tests {
		snap, err := Restart(path, ts.p, Options{
			Expect: &ts.geom, Replication: test.factor, Policy: test.policy,
		})
		require.NoError(t, err, "%d", i)
		assert.True(t, snap.Replicated)
		assert.False(t, snap.LayoutKept)
		require.Equal(t, 1, snap.Hierarchy.NumLevels())
		require.NoError(t, snap.Hierarchy.Validate())

		geom := snap.Hierarchy.Levels[0].Geom
		f := test.factor
		assert.Equal(t, [3]int{8 * f[0], 8 * f[1], 8 * f[2]}, geom.Domain.Width)
		assert.Equal(t, [3]float64{float64(f[0]), float64(f[1]),
			float64(f[2])}, geom.ProbHi)
		assert.Equal(t, test.faces, geom.Faces, "%d", i)

		vel := make([]float64, geom.Domain.Volume())
		snap.Fields.Get(0, fields.VelG).Gather(geom.Domain, 1, vel)
		geom.Domain.ForEach(func(x, y, z int) {
			want := oldVel[old.Domain.Idx(x%8, y%8, z%8)]
			if vel[geom.Domain.Idx(x, y, z)] != want {
				t.Errorf("%d) vel_g[1] at (%d, %d, %d) is %g, not %g",
					i, x, y, z, vel[geom.Domain.Idx(x, y, z)], want)
			}
		})

		n := f[0] * f[1] * f[2]
		assert.Equal(t, n*ts.ps.Len(), snap.Particles.Len())
	}
}

func TestRestartMismatch(t *testing.T) {
	dir := t.TempDir()
	ts := newTestSim(t, 1, false)
	path, err := NewWriter(filepath.Join(dir, "chk"), nil).Write(
		ts.s, ts.ps, Scalars{1, 0.1, 0.1})
	require.NoError(t, err)

	bigger := grid.NewGeometry([3]int{16, 8, 8}, [3]float64{},
		[3]float64{1, 1, 1}, testFaces)
	aperiodic := ts.geom
	aperiodic.Faces[0] = [2]grid.BC{grid.Wall, grid.Wall}
	stretched := ts.geom
	stretched.ProbHi[2] = 2

	tests := []struct {
		dir string
		opt Options
	}{
		{path, Options{Expect: &bigger}},
		{path, Options{Expect: &aperiodic}},
		{path, Options{Expect: &stretched}},
		{path, Options{Replication: [3]int{0, 1, 1}}},
		{filepath.Join(dir, "missing"), Options{}},
	}

	for i := range tests {
		_, err := Restart(tests[i].dir, ts.p, tests[i].opt)
		require.Error(t, err, "%d", i)
		var rm *errs.RestartMismatchError
		assert.True(t, errors.As(err, &rm), "%d", i)
		assert.Equal(t, errs.RestartMismatch, errs.KindOf(err))
	}

	// A damaged level file.
	require.NoError(t, os.WriteFile(filepath.Join(path, LevelFile(0)),
		[]byte("garbage"), 0644))
	_, err = Restart(path, ts.p, Options{})
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Preserve")
	require.NoError(t, err)
	assert.Equal(t, Preserve, p)
	p, err = ParsePolicy(" wall ")
	require.NoError(t, err)
	assert.Equal(t, WallPolicy, p)
	_, err = ParsePolicy("mirror")
	assert.Equal(t, errs.Config, errs.KindOf(err))
}
