package compress

import (
	"fmt"
)

// splitArray splits x into len(lengths) consecutive sub-slices and writes
// them to splits.
func splitArray(x []int64, lengths []int, splits [][]int64) {
	sum := 0
	for _, n := range lengths {
		sum += n
	}

	if sum != len(x) {
		panic(fmt.Sprintf("Internal error: sum of length = %d, but length "+
			"of array is %d.", sum, len(x)))
	} else if len(lengths) != len(splits) {
		panic(fmt.Sprintf("Internal error: len(lengths) = %d, len(splits) "+
			"= %d.", len(lengths), len(splits)))
	}

	start := 0
	for i := range lengths {
		end := start + lengths[i]
		splits[i] = x[start:end]
		start = end
	}
}

// DeltaEncode delta encodes x into out. The element before x[0] is taken to
// be offset. x and out may be the same array.
func DeltaEncode(offset int64, x, out []int64) {
	if len(x) != len(out) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(out) = "+
			"%d in DeltaEncode", len(x), len(out)))
	}
	if len(x) == 0 {
		return
	}

	prev := x[0]
	out[0] = prev - offset
	for i := 1; i < len(x); i++ {
		next := x[i]
		out[i] = next - prev
		prev = next
	}
}

// DeltaDecode decodes an array encoded with DeltaEncode.
func DeltaDecode(offset int64, x, out []int64) {
	if len(x) != len(out) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(out) = "+
			"%d in DeltaDecode", len(x), len(out)))
	}
	if len(x) == 0 {
		return
	}

	out[0] = offset + x[0]
	for i := 1; i < len(out); i++ {
		out[i] = out[i-1] + x[i]
	}
}

// BlockToSlices converts an x-major block into slices which each follow a
// one-dimensional skewer through the block: one skewer along firstDim, then
// a face of skewers along the next dimension, then the skewers that fill out
// the body. Only the first element of the first skewer has no neighbour to
// be differenced against. buf must have the same length as x.
func BlockToSlices(span [3]int, firstDim int, x, buf []int64) [][]int64 {
	if len(buf) != len(x) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(buf) = %d",
			len(x), len(buf)))
	}

	out := MakeDeltaSlices(span, firstDim, buf)
	dx := [3]int{1, span[0], span[0] * span[1]}
	d1, d2, d3 := firstDim, (firstDim+1)%3, (firstDim+2)%3

	// i* index the start of a skewer, j indexes along it and k indexes the
	// output slices.

	for j := 0; j < span[d1]; j++ {
		out[0][j] = x[dx[d1]*j]
	}

	for i1 := 0; i1 < span[d1]; i1++ {
		k := i1 + 1
		start := i1 * dx[d1]
		for i2 := 1; i2 < span[d2]; i2++ {
			out[k][i2-1] = x[start+dx[d2]*i2]
		}
	}

	for i2 := 0; i2 < span[d2]; i2++ {
		for i1 := 0; i1 < span[d1]; i1++ {
			start := i1*dx[d1] + i2*dx[d2] + dx[d3]
			k := 1 + span[d1] + i1 + i2*span[d1]
			for j := 0; j < span[d3]-1; j++ {
				out[k][j] = x[start+dx[d3]*j]
			}
		}
	}

	return out
}

// SlicesToBlock is the inverse of BlockToSlices.
func SlicesToBlock(span [3]int, firstDim int, x [][]int64, out []int64) {
	sum := 0
	for i := range x {
		sum += len(x[i])
	}
	if len(out) != sum {
		panic(fmt.Sprintf("Internal error: sum(len(x)) = %d, but len(out) = %d",
			sum, len(out)))
	}

	dx := [3]int{1, span[0], span[0] * span[1]}
	d1, d2, d3 := firstDim, (firstDim+1)%3, (firstDim+2)%3

	for j := 0; j < span[d1]; j++ {
		out[dx[d1]*j] = x[0][j]
	}

	for i1 := 0; i1 < span[d1]; i1++ {
		k := i1 + 1
		start := i1 * dx[d1]
		for i2 := 1; i2 < span[d2]; i2++ {
			out[start+dx[d2]*i2] = x[k][i2-1]
		}
	}

	for i2 := 0; i2 < span[d2]; i2++ {
		for i1 := 0; i1 < span[d1]; i1++ {
			start := i1*dx[d1] + i2*dx[d2] + dx[d3]
			k := 1 + span[d1] + i1 + i2*span[d1]
			for j := 0; j < span[d3]-1; j++ {
				out[start+dx[d3]*j] = x[k][j]
			}
		}
	}
}

// MakeDeltaSlices splits buf the way BlockToSlices does: one slice of length
// span[firstDim], span[firstDim] slices of length span[secondDim] - 1 and
// span[firstDim]*span[secondDim] slices of length span[thirdDim] - 1.
func MakeDeltaSlices(span [3]int, firstDim int, buf []int64) [][]int64 {
	lens := sliceLengths(span, firstDim)
	out := make([][]int64, len(lens))
	splitArray(buf, lens, out)
	return out
}

// SliceOffsets returns the value each slice should be differenced against.
// It must be called before the slices are encoded.
func SliceOffsets(x [][]int64) []int64 {
	offsets := make([]int64, len(x))
	n := len(x[0])

	offsets[0] = x[0][0]
	for i := range x[0] {
		offsets[i+1] = x[0][i]
		offsets[i+n+1] = x[0][i]
	}

	for j := range x[1] {
		for i := range x[0] {
			offsets[1+i+(j+2)*n] = x[1+i][j]
		}
	}

	return offsets
}

// DeltaDecodeFromSlices decodes every slice in place, in an order where each
// slice's offset has already been decoded.
func DeltaDecodeFromSlices(firstOffset int64, x [][]int64) {
	DeltaDecode(firstOffset, x[0], x[0])

	n := len(x[0])
	for i := range x[0] {
		DeltaDecode(x[0][i], x[i+1], x[i+1])
		DeltaDecode(x[0][i], x[i+n+1], x[i+n+1])
	}

	for j := range x[1] {
		for i := range x[0] {
			slice := x[1+i+(j+2)*n]
			DeltaDecode(x[1+i][j], slice, slice)
		}
	}
}

func nSlices(span [3]int, firstDim int) int {
	secondDim := (firstDim + 1) % 3
	return 1 + span[firstDim] + span[secondDim]*span[firstDim]
}

func sliceLengths(span [3]int, firstDim int) []int {
	secondDim, thirdDim := (firstDim+1)%3, (firstDim+2)%3
	nTot := nSlices(span, firstDim)
	lens := make([]int, nTot)

	lens[0] = span[firstDim]
	for i := 1; i < 1+span[firstDim]; i++ {
		lens[i] = span[secondDim] - 1
	}
	for i := 1 + span[firstDim]; i < nTot; i++ {
		lens[i] = span[thirdDim] - 1
	}

	return lens
}
