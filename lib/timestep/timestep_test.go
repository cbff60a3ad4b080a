package timestep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/errs"
)

func baseInput() Input {
	return Input{
		Vmax: 2, MaxNu: 1e-5, MinRo: 1.2,
		Gravity: [3]float64{0, 0, -9.81},
		Dx:      [3]float64{0.01, 0.01, 0.02},
		StopTime: -1,
	}
}

func TestCFLBound(t *testing.T) {
	c := New(&config.Default().TimeStep)
	for _, vmax := range []float64{0.1, 1, 10, 100} {
		in := baseInput()
		in.Vmax = vmax
		dt, err := c.Compute(in)
		require.NoError(t, err)
		assert.True(t, dt*vmax <= c.Cfl*0.01*(1+1e-12),
			"dt = %g violates the CFL bound at V = %g", dt, vmax)
	}
}

func TestAdvectionOnly(t *testing.T) {
	c := &Controller{Cfl: 0.5, FixedDt: -1, DtMax: 1e14}
	dt, err := c.Compute(Input{Vmax: 4, Dx: [3]float64{0.1, 0.2, 0.3},
		StopTime: -1})
	require.NoError(t, err)
	// With only advection, dt = CFL dx / V exactly.
	assert.InDelta(t, 0.5*0.1/4, dt, 1e-15)
}

func TestPure(t *testing.T) {
	c := New(&config.Default().TimeStep)
	dt1, err1 := c.Compute(baseInput())
	dt2, err2 := c.Compute(baseInput())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, dt1, dt2)
}

func TestLimits(t *testing.T) {
	c := &Controller{Cfl: 0.5, FixedDt: 1e-3, DtMax: 1e14}
	dt, err := c.Compute(baseInput())
	require.NoError(t, err)
	assert.Equal(t, 1e-3, dt)

	c = &Controller{Cfl: 0.5, FixedDt: -1, DtMax: 1e-6}
	dt, err = c.Compute(baseInput())
	require.NoError(t, err)
	assert.Equal(t, 1e-6, dt)

	// Land exactly on the stop time.
	c = &Controller{Cfl: 0.5, FixedDt: 1e-3, DtMax: 1e14}
	in := baseInput()
	in.Time, in.StopTime = 0.0995, 0.1
	dt, err = c.Compute(in)
	require.NoError(t, err)
	assert.InDelta(t, 0.0005, dt, 1e-15)
}

func TestFailures(t *testing.T) {
	c := &Controller{Cfl: 0.5, FixedDt: -1, DtMin: 1e-2, DtMax: 1e14}
	_, err := c.Compute(baseInput())
	require.Error(t, err)
	assert.Equal(t, errs.Numerical, errs.KindOf(err))
	assert.True(t, errs.IsFatal(err))

	c = &Controller{Cfl: 0.5, FixedDt: -1, DtMax: 1e14}
	in := baseInput()
	in.Vmax = math.NaN()
	_, err = c.Compute(in)
	assert.Equal(t, errs.Numerical, errs.KindOf(err))

	// Nothing moving and nothing to limit the step.
	c = &Controller{Cfl: 0.5, FixedDt: -1, DtMax: -1}
	_, err = c.Compute(Input{Dx: [3]float64{1, 1, 1}, StopTime: -1})
	assert.Error(t, err)
}
