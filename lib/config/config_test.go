package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/errs"
)

func TestExampleFileParses(t *testing.T) {
	c, err := ReadString(ExampleFile)
	require.NoError(t, err)
	assert.Equal(t, Default().Amr, c.Amr)
	assert.Equal(t, 200, c.MacProjection.MaxIter)
	assert.Equal(t, 100, c.NodalProjection.MaxIter)
	assert.Equal(t, 1e-11, c.Diffusion.RTol)
}

func TestReadFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "run.cfg")
	text := `[Amr]
NCellX = 32
RegridInt = 10

[Run]
MaxStep = 50
GravityZ = -9.81

[AverageRegion "bed"]
HiX = 1
HiY = 1
HiZ = 0.25
`
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))

	c, err := Read(fname, "TimeStep.Cfl=0.25", "Run.MaxStep = 60")
	require.NoError(t, err)

	assert.Equal(t, [3]int{32, 16, 16}, c.NCell())
	assert.Equal(t, 10, c.Amr.RegridInt)
	assert.Equal(t, 60, c.Run.MaxStep)
	assert.Equal(t, [3]float64{0, 0, -9.81}, c.Gravity())
	assert.Equal(t, 0.25, c.TimeStep.Cfl)
	assert.Equal(t, []string{"bed"}, c.RegionNames())
	assert.Equal(t, 0.25, c.AverageRegion["bed"].HiZ)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		overrides []string
		section   string
	}{
		{[]string{"Amr.RegridInt=0"}, "Amr"},
		{[]string{"Amr.NCellX=12"}, "Amr"},
		{[]string{"Amr.ProbHiX=0"}, "Amr"},
		{[]string{"Domain.XLo=sticky"}, "Domain"},
		{[]string{"TimeStep.Cfl=0"}, "TimeStep"},
		{[]string{"TimeStep.DtMin=1", "TimeStep.DtMax=0.5"}, "TimeStep"},
		{[]string{"NodalProjection.BottomSolver=magic"}, "NodalProjection"},
		{[]string{"Diffusion.RTol=0", "Diffusion.ATol=0"}, "Diffusion"},
		{[]string{"Drag.Coupling=both"}, "Drag"},
		{[]string{"Geometry.Shape=cylinder"}, "Geometry"},
		{[]string{"Run.ReplX=2"}, "Run"},
		{[]string{"Run.ReplY=0", "Run.Restart=chk00010"}, "Run"},
		{[]string{"Output.PlotSteps=10..a"}, "Output"},
	}

	for i := range tests {
		c := Default()
		require.NoError(t, c.Override(tests[i].overrides...), "%d", i)
		err := c.Validate()
		if !assert.Error(t, err, "%d) %v", i, tests[i].overrides) {
			continue
		}
		ce, ok := err.(*errs.ConfigError)
		if assert.True(t, ok, "%d) expected a ConfigError, got %T", i, err) {
			assert.Equal(t, tests[i].section, ce.Section, "%d", i)
		}
	}

	assert.NoError(t, Default().Validate())

	// Periodic dimensions ignore their face types.
	c := Default()
	require.NoError(t, c.Override("Domain.PeriodicX=true", "Domain.XLo=junk"))
	assert.NoError(t, c.Validate())
}

func TestOverrideSyntax(t *testing.T) {
	c := Default()
	assert.Error(t, c.Override("Cfl=0.3"))
	assert.Error(t, c.Override("TimeStep.Cfl"))
	assert.Error(t, c.Override("TimeStep.NotAVariable=1"))
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 0, Index("knapsack", LoadBalanceTypes))
	assert.Equal(t, 1, Index(" RoundRobin ", LoadBalanceTypes))
	assert.Equal(t, -1, Index("sfc", LoadBalanceTypes))
}
