/*package eq is a simple package for telling whether two arrays are equal to
one another.*/
package eq

import (
	"math"
)

// Generic returns true if two arrays are the same type and have the same values
// and false otherwise. Only []byte, []string, []int, []int32, []int64,
// []float64 and [][3]float64 are supported.
func Generic(x, y interface{}) bool {
	switch xx := x.(type) {
	case []byte:
		yy, ok := y.([]byte)
		return ok && Slices(xx, yy)
	case []string:
		yy, ok := y.([]string)
		return ok && Slices(xx, yy)
	case []int:
		yy, ok := y.([]int)
		return ok && Slices(xx, yy)
	case []int32:
		yy, ok := y.([]int32)
		return ok && Slices(xx, yy)
	case []int64:
		yy, ok := y.([]int64)
		return ok && Slices(xx, yy)
	case []float64:
		yy, ok := y.([]float64)
		return ok && Slices(xx, yy)
	case [][3]float64:
		yy, ok := y.([][3]float64)
		return ok && Slices(xx, yy)
	}
	return false
}

// Slices returns true if two arrays are the same and false otherwise.
func Slices[T comparable](x, y []T) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Bits returns true if two []float64 arrays have identical bit patterns. Unlike
// Slices, NaNs compare equal to themselves and 0 and -0 are different.
func Bits(x, y []float64) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if math.Float64bits(x[i]) != math.Float64bits(y[i]) {
			return false
		}
	}
	return true
}
