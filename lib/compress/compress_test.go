package compress

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	tests := []int{0, 10, 0, 10, 20, 30, 30, 30, 10, 10000, 0}
	buf := NewBuffer(0)
	prevLen, prevCap := 0, 0

	for i, n := range tests {
		buf.Resize(n)
		assert.Len(t, buf.b, n, "%d", i)
		assert.Len(t, buf.i64, n, "%d", i)
		assert.Len(t, buf.q, n, "%d", i)
		assert.Len(t, buf.f64, n, "%d", i)
		if n <= prevLen {
			assert.Equal(t, prevCap, cap(buf.i64), "%d", i)
		}
		prevLen, prevCap = n, cap(buf.i64)
	}
}

func TestQuantize(t *testing.T) {
	x := []float64{0, 0.05, 0.1, -0.05, 1.26, -3.3}
	q := make([]int64, len(x))
	Quantize(x, 0.1, q)
	assert.Equal(t, []int64{0, 0, 1, -1, 12, -33}, q)

	out := make([]float64, len(x))
	Dequantize(q, 0.1, NewRNG(3), out)
	for i := range x {
		assert.InDelta(t, x[i], out[i], 0.1, "%d", i)
		assert.GreaterOrEqual(t, out[i], 0.1*float64(q[i]))
	}
}

func TestZigZag(t *testing.T) {
	x := []int64{0, -1, 1, -2, 2, math.MaxInt64, math.MinInt64}
	z := append([]int64(nil), x...)
	ZigZagEncode(z)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, z[:5])
	ZigZagDecode(z)
	assert.Equal(t, x, z)
}

func TestSplitArray(t *testing.T) {
	x := []int64{0, 1, 2, 3, 4, 5}
	splits := make([][]int64, 4)
	splitArray(x, []int{2, 0, 3, 1}, splits)
	assert.Equal(t, [][]int64{{0, 1}, {}, {2, 3, 4}, {5}}, splits)

	assert.Panics(t, func() { splitArray(x, []int{2, 2}, splits[:2]) })
}

func TestDeltaEncode(t *testing.T) {
	tests := []struct {
		offset int64
		x, out []int64
	}{
		{0, []int64{}, []int64{}},
		{0, []int64{10}, []int64{10}},
		{10, []int64{10}, []int64{0}},
		{0, []int64{1, 5, 5, 10, 16, 20}, []int64{1, 4, 0, 5, 6, 4}},
		{10, []int64{5, 12, 10, 0}, []int64{-5, 7, -2, -10}},
	}

	for i := range tests {
		x := append([]int64{}, tests[i].x...)
		DeltaEncode(tests[i].offset, x, x)
		assert.Equal(t, tests[i].out, x, "%d", i)

		DeltaDecode(tests[i].offset, x, x)
		assert.Equal(t, tests[i].x, x, "%d", i)
	}
}

func TestBlockToSlices(t *testing.T) {
	block := []int64{
		0, 0, 0, 0, 0,
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,

		6, 7, 8, 9, 10,
		11, 12, 13, 14, 15,
		16, 17, 18, 19, 20,
		21, 22, 23, 24, 25,

		6, 7, 8, 9, 10,
		11, 12, 13, 14, 15,
		16, 17, 18, 19, 20,
		21, 22, 23, 24, 25,
	}
	buf := make([]int64, len(block))
	slices := BlockToSlices([3]int{5, 4, 3}, 0, block, buf)
	require.Len(t, slices, 26)

	for i := range slices {
		switch {
		case i == 0:
			assert.Len(t, slices[i], 5)
		case i < 6:
			assert.Len(t, slices[i], 3, "slice %d", i)
		default:
			assert.Len(t, slices[i], 2, "slice %d", i)
		}
		for j := range slices[i] {
			assert.Equal(t, int64(i), slices[i][j], "slice %d", i)
		}
	}
}

func TestSlicesToBlock(t *testing.T) {
	for _, span := range [][3]int{{5, 4, 3}, {1, 1, 1}, {4, 1, 2}, {1, 3, 1}} {
		n := span[0] * span[1] * span[2]
		block := make([]int64, n)
		for i := range block {
			block[i] = int64(i)
		}

		for firstDim := 0; firstDim < 3; firstDim++ {
			buf := make([]int64, n)
			result := make([]int64, n)
			slices := BlockToSlices(span, firstDim, block, buf)
			SlicesToBlock(span, firstDim, slices, result)
			assert.Equal(t, block, result, "span %v, firstDim %d", span, firstDim)
		}
	}
}

func TestSliceOffsets(t *testing.T) {
	block := []int64{
		30, 31, 32, 33, 34,
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,

		6, 7, 8, 9, 10,
		11, 12, 13, 14, 15,
		16, 17, 18, 19, 20,
		21, 22, 23, 24, 25,

		6, 7, 8, 9, 10,
		11, 12, 13, 14, 15,
		16, 17, 18, 19, 20,
		21, 22, 23, 24, 25,
	}
	buf := make([]int64, len(block))
	slices := BlockToSlices([3]int{5, 4, 3}, 0, block, buf)

	offsets := []int64{
		30,
		30, 31, 32, 33, 34,
		30, 31, 32, 33, 34,
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,
	}
	assert.Equal(t, offsets, SliceOffsets(slices))
}

func TestDeltaDecodeFromSlices(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	span := [3]int{6, 5, 4}
	n := span[0] * span[1] * span[2]
	block := make([]int64, n)
	for i := range block {
		block[i] = rng.Int64N(1000) - 500
	}

	for firstDim := 0; firstDim < 3; firstDim++ {
		buf := make([]int64, n)
		slices := BlockToSlices(span, firstDim, block, buf)
		offsets := SliceOffsets(slices)
		for i := range slices {
			DeltaEncode(offsets[i], slices[i], slices[i])
		}
		assert.Equal(t, int64(0), slices[0][0])

		DeltaDecodeFromSlices(block[0], slices)
		out := make([]int64, n)
		SlicesToBlock(span, firstDim, slices, out)
		assert.Equal(t, block, out, "firstDim %d", firstDim)
	}
}

func TestCompressedIntsZStd(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	q := make([]int64, 1000)
	for i := range q {
		q[i] = rng.Int64()
	}

	wr := &bytes.Buffer{}
	b := make([]byte, len(q))
	_, err := WriteCompressedIntsZStd(q, b, nil, wr)
	require.NoError(t, err)

	out := make([]int64, len(q))
	_, _, err = ReadCompressedIntsZStd(wr, nil, nil, out)
	require.NoError(t, err)
	assert.Equal(t, q, out)
}

func TestLossless(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	f64 := make([]float64, 257)
	i64 := make([]int64, 100)
	i32 := make([]int32, 33)
	for i := range f64 {
		f64[i] = rng.NormFloat64() * 1e3
	}
	f64[3], f64[4] = math.Inf(-1), math.SmallestNonzeroFloat64
	for i := range i64 {
		i64[i] = rng.Int64() - math.MaxInt64/2
	}
	for i := range i32 {
		i32[i] = int32(rng.Int32()) - math.MaxInt32/2
	}

	buf := NewBuffer(0)
	for _, x := range []interface{}{f64, i64, i32, []float64{}} {
		wr := &bytes.Buffer{}
		m := &Lossless{}
		require.NoError(t, m.WriteInfo(binary.LittleEndian, wr, Len(x)))
		require.NoError(t, m.Compress(binary.LittleEndian, x, buf, wr))

		n, err := m.ReadInfo(binary.LittleEndian, wr)
		require.NoError(t, err)
		out, err := m.Decompress(binary.LittleEndian, n, buf, wr)
		require.NoError(t, err)
		assert.Equal(t, x, out)
	}

	err := (&Lossless{}).Compress(binary.LittleEndian, []string{"a"}, buf,
		&bytes.Buffer{})
	assert.Error(t, err)
}

func TestBlockDelta(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	span := [3]int{8, 4, 6}
	x := make([]float64, span[0]*span[1]*span[2])
	for i := range x {
		x[i] = 1.5 + math.Sin(float64(i)/10) + 1e-3*rng.Float64()
	}

	buf := NewBuffer(11)
	delta := 1e-4
	wr := &bytes.Buffer{}
	m := NewBlockDelta(span, delta)
	require.NoError(t, m.WriteInfo(binary.BigEndian, wr, len(x)))
	require.NoError(t, m.Compress(binary.BigEndian, x, buf, wr))
	assert.Less(t, wr.Len(), 8*len(x))

	m2 := &BlockDelta{}
	n, err := m2.ReadInfo(binary.BigEndian, wr)
	require.NoError(t, err)
	assert.Equal(t, len(x), n)
	assert.Equal(t, *m, *m2)

	out, err := m2.Decompress(binary.BigEndian, n, buf, wr)
	require.NoError(t, err)
	for i := range x {
		assert.InDelta(t, x[i], out.([]float64)[i], delta, "%d", i)
	}

	assert.Error(t, m.Compress(binary.BigEndian, x[1:], buf, &bytes.Buffer{}))
	assert.Error(t, m.Compress(binary.BigEndian, []int64{1}, buf,
		&bytes.Buffer{}))
}

func TestMethodFlagMismatch(t *testing.T) {
	wr := &bytes.Buffer{}
	require.NoError(t, (&Lossless{}).WriteInfo(binary.LittleEndian, wr, 3))
	_, err := (&BlockDelta{}).ReadInfo(binary.LittleEndian, wr)
	assert.Error(t, err)
}
