package drag

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStokesLimit(t *testing.T) {
	// A lone sphere at vanishing Re feels Stokes drag: beta = 3 pi mu d.
	for _, law := range []Law{WenYu{}, Gidaspow{}} {
		F := law.Coefficient(1e-12, 1)
		assert.InDelta(t, 1.0, F, 1e-6, law.Name())
	}
	assert.InDelta(t, 1.0, BVK2{}.Coefficient(0, 1), 1e-12)

	beta := Beta(WenYu{}, 2e-5, 1, 1, 1e-3, [3]float64{1e-9, 0, 0})
	assert.InDelta(t, 3*math.Pi*2e-5*1e-3, beta, 1e-12)
}

func TestWenYu(t *testing.T) {
	re, epg := 10.0, 0.6
	cd := 24 / re * (1 + 0.15*math.Pow(re, 0.687))
	assert.InDelta(t, cd*re/24*math.Pow(epg, -3.65),
		WenYu{}.Coefficient(re, epg), 1e-12)

	// Newton regime.
	assert.InDelta(t, 0.44*2000/24, WenYu{}.Coefficient(2000, 1), 1e-12)
}

func TestGidaspowBranches(t *testing.T) {
	epg, re := 0.5, 3.0
	ergun := 150*0.5/(18*0.25) + 1.75*re/(18*0.25)
	assert.InDelta(t, ergun, Gidaspow{}.Coefficient(re, epg), 1e-12)
	assert.Equal(t, WenYu{}.Coefficient(re, 0.9),
		Gidaspow{}.Coefficient(re, 0.9))
}

func TestMonotoneInRe(t *testing.T) {
	for _, law := range []Law{WenYu{}, Gidaspow{}, BVK2{}} {
		prev := 0.0
		for _, re := range []float64{0.1, 1, 10, 100, 500} {
			F := law.Coefficient(re, 0.7)
			assert.True(t, F > prev, "%s not increasing at Re = %g",
				law.Name(), re)
			prev = F
		}
	}
}

func TestRegistry(t *testing.T) {
	law, err := Lookup("gidaspow")
	require.NoError(t, err)
	assert.Equal(t, "Gidaspow", law.Name())

	_, err = Lookup("Stokes")
	assert.Error(t, err)

	assert.Error(t, Register(User{"wenyu", func(re, epg float64) float64 {
		return 1
	}}))

	stokes := User{"Stokes", func(re, epg float64) float64 { return 1 }}
	require.NoError(t, Register(stokes))
	law, err = Lookup("STOKES")
	require.NoError(t, err)
	assert.Equal(t, 1.0, law.Coefficient(50, 0.5))
	assert.Contains(t, Names(), "Stokes")
}
