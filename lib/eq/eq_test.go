package eq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	nan := math.NaN()
	assert.True(t, Bits([]float64{1, nan, -2}, []float64{1, nan, -2}))
	assert.False(t, Slices([]float64{nan}, []float64{nan}))
	assert.False(t, Bits([]float64{0}, []float64{math.Copysign(0, -1)}))
	assert.False(t, Bits([]float64{1, 2}, []float64{1}))
	assert.False(t, Bits([]float64{1}, []float64{math.Nextafter(1, 2)}))
}

func TestGeneric(t *testing.T) {
	assert.True(t, Generic([]int{1, 2}, []int{1, 2}))
	assert.False(t, Generic([]int{1, 2}, []int64{1, 2}))
	assert.True(t, Generic([][3]float64{{1, 2, 3}}, [][3]float64{{1, 2, 3}}))
	assert.False(t, Generic([]bool{true}, []bool{true}))
}
