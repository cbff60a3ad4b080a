package output

import (
	"encoding/csv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/catio"
	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

func testFrame(t *testing.T, nPart int) Frame {
	faces := [3][2]grid.BC{
		{grid.Periodic, grid.Periodic}, {grid.Wall, grid.Wall},
		{grid.Inflow, grid.Outflow},
	}
	geom := grid.NewGeometry([3]int{8, 8, 8}, [3]float64{},
		[3]float64{1, 1, 1}, faces)
	p := grid.NewLocal(2, grid.KnapSackBalance)
	h := grid.NewHierarchy(p, geom, 4, 4, 2, 0)

	rng := rand.New(rand.NewPCG(3, 4))
	s := fields.New(p, h)
	for v := fields.Var(0); v < fields.NumVars; v++ {
		for _, f := range s.Get(0, v).FABs {
			f.Valid.ForEach(func(i, j, k int) {
				for c := 0; c < f.NComp; c++ {
					f.Set(i, j, k, c, 1+rng.Float64())
				}
			})
		}
	}
	s.FillAll()

	ps := particles.NewContainer(p.Comm(), true)
	for i := 0; i < nPart; i++ {
		x := [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
		v := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		ps.Add(0, particles.New(x, v, 0.01+0.01*rng.Float64(), 2000, int32(i%3)))
	}
	lev := h.Levels[0]
	_, err := ps.Redistribute(particles.NewBoxLocator(lev), &lev.Geom)
	require.NoError(t, err)

	return Frame{Step: 12, Time: 0.5, Dt: 0.01, Fields: s, Particles: ps}
}

func testWriter(t *testing.T) *Writer {
	dir := t.TempDir()
	c := config.Default()
	c.Output.PlotFile = filepath.Join(dir, "plt")
	c.Output.ParAsciiFile = filepath.Join(dir, "par")
	c.Output.AvgFile = filepath.Join(dir, "avg")
	c.Output.PltVort, c.Output.PltGradP = true, true
	c.AverageRegion["all"] = &config.AverageRegionConfig{HiX: 1, HiY: 1, HiZ: 1}
	c.AverageRegion["low"] = &config.AverageRegionConfig{HiX: 1, HiY: 1, HiZ: 0.5}
	w := New(c)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestSchedule(t *testing.T) {
	s, err := NewSchedule(5, "")
	require.NoError(t, err)
	assert.True(t, s.Enabled())
	assert.True(t, s.Due(10))
	assert.False(t, s.Due(11))

	s, err = NewSchedule(-1, "3 + 7")
	require.NoError(t, err)
	assert.True(t, s.Enabled())
	assert.True(t, s.Due(7))
	assert.False(t, s.Due(5))

	s, err = NewSchedule(-1, "")
	require.NoError(t, err)
	assert.False(t, s.Enabled())
	assert.False(t, s.Due(0))

	_, err = NewSchedule(1, "3..")
	assert.Error(t, err)
}

func TestWritePlot(t *testing.T) {
	w := testWriter(t)
	f := testFrame(t, 20)

	dir, err := w.WritePlot(f)
	require.NoError(t, err)
	assert.Equal(t, w.PlotFile+"00012", dir)

	plt, err := ReadPlot(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(12), plt.Header.Step)
	assert.Equal(t, [3]int64{8, 8, 8}, plt.Header.Cells)
	assert.Equal(t, int64(20), plt.Header.Particles)

	names := []string{"vel_g_x", "vel_g_y", "vel_g_z", "ep_g", "p_g",
		"gp_x", "gp_y", "gp_z", "vort"}
	assert.Len(t, plt.Fields, len(names))
	for _, name := range names {
		assert.Contains(t, plt.Fields, name)
	}

	geom := f.Fields.Hierarchy().Levels[0].Geom
	want := make([]float64, geom.Domain.Volume())
	f.Fields.Get(0, fields.VelG).Gather(geom.Domain, 1, want)
	got := plt.Fields["vel_g_y"]
	require.Len(t, got, len(want))
	for i := range want {
		if math.Abs(got[i]-want[i]) > w.PlotAccuracy {
			t.Fatalf("vel_g_y[%d] = %g, not %g", i, got[i], want[i])
		}
	}

	// The vorticity diagnostic is also left on the level.
	vort := make([]float64, geom.Domain.Volume())
	f.Fields.Levels[0].Vort.Gather(geom.Domain, 0, vort)
	for i := range vort {
		assert.InDelta(t, vort[i], plt.Fields["vort"][i], w.PlotAccuracy)
	}

	all := f.Particles.All()
	assert.Equal(t, all[7].ID, plt.Particles["id"].([]int64)[7])
	assert.Equal(t, all[7].Phase, plt.Particles["phase"].([]int32)[7])
	assert.InDelta(t, all[7].Pos[2], plt.Particles["pos[2]"].([]float64)[7],
		w.PlotAccuracy)
}

func TestWritePlotEmpty(t *testing.T) {
	w := testWriter(t)
	w.Vars = PlotVars{Diveu: true}
	f := testFrame(t, 0)

	dir, err := w.WritePlot(f)
	require.NoError(t, err)
	plt, err := ReadPlot(dir)
	require.NoError(t, err)
	assert.Len(t, plt.Fields, 1)
	assert.Contains(t, plt.Fields, "diveu")
	assert.Len(t, plt.Particles, 0)

	// Rewriting a step replaces the bundle.
	f.Step = 12
	_, err = w.WritePlot(f)
	require.NoError(t, err)
	_, err = os.Stat(dir + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestParticleAscii(t *testing.T) {
	w := testWriter(t)
	f := testFrame(t, 15)

	fname, err := w.WriteParticleAscii(f)
	require.NoError(t, err)
	assert.Equal(t, w.ParAsciiFile+"00012", fname)

	// Dumps are valid particle input decks.
	ps, err := catio.ReadParticleFile(fname)
	require.NoError(t, err)
	all := f.Particles.All()
	require.Len(t, ps, len(all))
	for i := range all {
		assert.Equal(t, all[i].Pos, ps[i].Pos)
		assert.Equal(t, all[i].Vel, ps[i].Vel)
		assert.Equal(t, all[i].Radius, ps[i].Radius)
		assert.Equal(t, all[i].Phase, ps[i].Phase)
	}

	config := catio.DefaultConfig
	config.SkipLines = 1
	rd, err := catio.TextFile(fname, config)
	require.NoError(t, err)
	ids, err := rd.ReadInts([]int{9})
	require.NoError(t, err)
	for i := range all {
		assert.Equal(t, int(all[i].ID), ids[0][i])
	}
}

func TestAverage(t *testing.T) {
	f := testFrame(t, 30)
	ls := f.Fields.Levels[0]
	ls.New[fields.EpG].SetVal(0.5)
	ls.New[fields.PG].SetVal(2)
	ls.New[fields.VelG].SetComp(2, -3)

	avg := Average(f, Region{Lo: [3]float64{0, 0, 0}, Hi: [3]float64{1, 1, 0.5}})
	assert.Equal(t, 8*8*4, avg.Cells)
	assert.InDelta(t, 0.5, avg.EpG, 1e-12)
	assert.InDelta(t, 2, avg.PG, 1e-12)
	assert.InDelta(t, -3, avg.VelG[2], 1e-12)

	n := 0
	for _, p := range f.Particles.All() {
		if p.Pos[2] <= 0.5 {
			n++
		}
	}
	assert.Equal(t, n, avg.Particles)

	empty := Average(f, Region{Lo: [3]float64{2, 2, 2}, Hi: [3]float64{3, 3, 3}})
	assert.Equal(t, Averages{}, empty)
}

func TestWriteAverages(t *testing.T) {
	w := testWriter(t)
	f := testFrame(t, 10)
	require.NoError(t, w.WriteAverages(f))
	f.Step, f.Time = 13, 0.6
	require.NoError(t, w.WriteAverages(f))
	require.NoError(t, w.Close())

	// Reopening appends rather than truncating.
	f.Step = 14
	require.NoError(t, w.WriteAverages(f))
	require.NoError(t, w.Close())

	for _, r := range w.Regions {
		fp, err := os.Open(w.RegionFile(r.Name))
		require.NoError(t, err)
		recs, err := csv.NewReader(fp).ReadAll()
		fp.Close()
		require.NoError(t, err)

		require.Len(t, recs, 4, r.Name)
		assert.Equal(t, averageColumns, recs[0])
		assert.Equal(t, []string{"12", "13", "14"},
			[]string{recs[1][0], recs[2][0], recs[3][0]})
		assert.Equal(t, "0.6", recs[2][1])
	}
}
