/*package compress stores numeric arrays in compact binary files.

Arrays are split into their eight byte "columns" (all the lowest bytes, then
all the second-lowest bytes, and so on) and every column is compressed with
its own zstd frame, which lets the nearly-constant high bytes compress down to
almost nothing. Two methods feed this column coder: Lossless stores raw bit
patterns and is used for checkpoints, BlockDelta quantises a 3D block of
floats to a fixed accuracy and delta-encodes it along skewers through the
block, which is used for plot files.
*/
package compress

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/DataDog/zstd"
)

// TypeFlag is a flag representing an array type.
type TypeFlag int64

const (
	Int32Flag TypeFlag = iota
	Int64Flag
	Float64Flag
	numFlags
)

var typeNames = [numFlags]string{"i32", "i64", "f64"}

func (f TypeFlag) String() string {
	if f < 0 || f >= numFlags {
		return fmt.Sprintf("TypeFlag(%d)", int64(f))
	}
	return typeNames[f]
}

// GetTypeFlag returns the type flag associated with an array. Only []int32,
// []int64 and []float64 are supported.
func GetTypeFlag(x interface{}) (TypeFlag, error) {
	switch x.(type) {
	case []int32:
		return Int32Flag, nil
	case []int64:
		return Int64Flag, nil
	case []float64:
		return Float64Flag, nil
	}
	return 0, fmt.Errorf("arrays of type %T can't be compressed", x)
}

// Len returns the length of a supported array.
func Len(x interface{}) int {
	switch x := x.(type) {
	case []int32:
		return len(x)
	case []int64:
		return len(x)
	case []float64:
		return len(x)
	}
	return 0
}

// MethodFlag is a flag representing the method used to compress the data.
type MethodFlag uint32

const (
	LosslessFlag MethodFlag = iota
	BlockDeltaFlag
)

// Buffer holds the scratch arrays used by the compression methods so that
// repeated calls don't allocate.
type Buffer struct {
	b, bZStd []byte
	i64, q   []int64
	f64      []float64
	rng      *RNG
}

// NewBuffer creates a new, resizable Buffer. seed seeds the dithering used
// when dequantizing.
func NewBuffer(seed uint64) *Buffer {
	return &Buffer{rng: NewRNG(seed)}
}

func resize[T any](x []T, n int) []T {
	if cap(x) >= n {
		return x[:n]
	}
	x = x[:cap(x)]
	return append(x, make([]T, n-len(x))...)
}

// Resize resizes every array in the buffer to length n.
func (buf *Buffer) Resize(n int) {
	buf.b = resize(buf.b, n)
	buf.i64 = resize(buf.i64, n)
	buf.q = resize(buf.q, n)
	buf.f64 = resize(buf.f64, n)
}

// Method is an interface representing a compression method.
type Method interface {
	// MethodFlag returns the method used to compress the data.
	MethodFlag() MethodFlag

	// WriteInfo writes the information needed to decompress an array of
	// length n.
	WriteInfo(order binary.ByteOrder, wr io.Writer, n int) error
	// ReadInfo reads what WriteInfo wrote and returns the array length.
	ReadInfo(order binary.ByteOrder, rd io.Reader) (n int, err error)

	// Compress compresses x and writes it to wr.
	Compress(order binary.ByteOrder, x interface{}, buf *Buffer,
		wr io.Writer) error
	// Decompress reads an array of length n from rd. The returned array is
	// newly allocated.
	Decompress(order binary.ByteOrder, n int, buf *Buffer,
		rd io.Reader) (interface{}, error)
}

var (
	_ Method = &Lossless{}
	_ Method = &BlockDelta{}
)

// Lossless stores the exact bit pattern of every element.
type Lossless struct{}

func (m *Lossless) MethodFlag() MethodFlag { return LosslessFlag }

func (m *Lossless) WriteInfo(order binary.ByteOrder, wr io.Writer, n int) error {
	if err := binary.Write(wr, order, LosslessFlag); err != nil {
		return err
	}
	return binary.Write(wr, order, int64(n))
}

func (m *Lossless) ReadInfo(order binary.ByteOrder, rd io.Reader) (int, error) {
	if err := checkFlag(order, rd, LosslessFlag); err != nil {
		return 0, err
	}
	n := int64(0)
	err := binary.Read(rd, order, &n)
	return int(n), err
}

func (m *Lossless) Compress(
	order binary.ByteOrder, x interface{}, buf *Buffer, wr io.Writer,
) error {
	flag, err := GetTypeFlag(x)
	if err != nil {
		return err
	}
	n := Len(x)
	buf.Resize(n)
	toBits(x, buf.i64)

	if err := binary.Write(wr, order, flag); err != nil {
		return err
	}
	buf.bZStd, err = WriteCompressedIntsZStd(buf.i64, buf.b, buf.bZStd, wr)
	return err
}

func (m *Lossless) Decompress(
	order binary.ByteOrder, n int, buf *Buffer, rd io.Reader,
) (interface{}, error) {
	var flag TypeFlag
	if err := binary.Read(rd, order, &flag); err != nil {
		return nil, err
	}
	if flag < 0 || flag >= numFlags {
		return nil, fmt.Errorf("unknown array type flag %d", flag)
	}

	buf.Resize(n)
	for i := range buf.i64 {
		buf.i64[i] = 0
	}
	var err error
	buf.b, buf.bZStd, err = ReadCompressedIntsZStd(rd, buf.b, buf.bZStd, buf.i64)
	if err != nil {
		return nil, err
	}
	return fromBits(flag, buf.i64), nil
}

// toBits writes the bit pattern of every element of x into out.
func toBits(x interface{}, out []int64) {
	switch x := x.(type) {
	case []int32:
		for i := range x {
			out[i] = int64(x[i])
		}
	case []int64:
		copy(out, x)
	case []float64:
		for i := range x {
			out[i] = int64(math.Float64bits(x[i]))
		}
	}
}

// fromBits is the inverse of toBits and returns a new array.
func fromBits(flag TypeFlag, q []int64) interface{} {
	switch flag {
	case Int32Flag:
		out := make([]int32, len(q))
		for i := range q {
			out[i] = int32(q[i])
		}
		return out
	case Int64Flag:
		return append([]int64(nil), q...)
	default:
		out := make([]float64, len(q))
		for i := range q {
			out[i] = math.Float64frombits(uint64(q[i]))
		}
		return out
	}
}

func checkFlag(order binary.ByteOrder, rd io.Reader, want MethodFlag) error {
	var flag MethodFlag
	if err := binary.Read(rd, order, &flag); err != nil {
		return err
	}
	if flag != want {
		return fmt.Errorf("block was written with method flag %d, but is "+
			"being read with method flag %d", flag, want)
	}
	return nil
}

// BlockDelta is a lossy method for a 3D block of floats stored with x
// varying fastest. Values are quantised to multiples of Delta and the
// differences between neighbouring cells along lines through the block are
// stored. Decompressed values are dithered uniformly within their bin.
type BlockDelta struct {
	Span  [3]int
	Delta float64
}

// NewBlockDelta creates a BlockDelta for a block with the given span and an
// absolute accuracy of delta.
func NewBlockDelta(span [3]int, delta float64) *BlockDelta {
	return &BlockDelta{span, delta}
}

func (m *BlockDelta) MethodFlag() MethodFlag { return BlockDeltaFlag }

func (m *BlockDelta) WriteInfo(order binary.ByteOrder, wr io.Writer, n int) error {
	span64 := [3]int64{int64(m.Span[0]), int64(m.Span[1]), int64(m.Span[2])}
	if err := binary.Write(wr, order, BlockDeltaFlag); err != nil {
		return err
	}
	if err := binary.Write(wr, order, span64); err != nil {
		return err
	}
	return binary.Write(wr, order, m.Delta)
}

func (m *BlockDelta) ReadInfo(order binary.ByteOrder, rd io.Reader) (int, error) {
	if err := checkFlag(order, rd, BlockDeltaFlag); err != nil {
		return 0, err
	}
	span64 := [3]int64{}
	if err := binary.Read(rd, order, &span64); err != nil {
		return 0, err
	}
	if err := binary.Read(rd, order, &m.Delta); err != nil {
		return 0, err
	}
	m.Span = [3]int{int(span64[0]), int(span64[1]), int(span64[2])}
	return m.Span[0] * m.Span[1] * m.Span[2], nil
}

// blockHeader is written before the data of every BlockDelta block.
type blockHeader struct {
	FirstOffset int64
}

func (m *BlockDelta) Compress(
	order binary.ByteOrder, x interface{}, buf *Buffer, wr io.Writer,
) error {
	f, ok := x.([]float64)
	if !ok {
		return fmt.Errorf("BlockDelta can only compress []float64, not %T", x)
	}
	n := m.Span[0] * m.Span[1] * m.Span[2]
	if len(f) != n || n == 0 {
		return fmt.Errorf("block of span %v given %d values", m.Span, len(f))
	}
	if m.Delta <= 0 {
		return fmt.Errorf("BlockDelta accuracy is %g", m.Delta)
	}

	buf.Resize(n)
	Quantize(f, m.Delta, buf.q)

	slices := BlockToSlices(m.Span, 0, buf.q, buf.i64)
	offsets := SliceOffsets(slices)
	for i := range slices {
		DeltaEncode(offsets[i], slices[i], slices[i])
	}
	ZigZagEncode(buf.i64)

	if err := binary.Write(wr, order, &blockHeader{buf.q[0]}); err != nil {
		return err
	}
	var err error
	buf.bZStd, err = WriteCompressedIntsZStd(buf.i64, buf.b, buf.bZStd, wr)
	return err
}

func (m *BlockDelta) Decompress(
	order binary.ByteOrder, n int, buf *Buffer, rd io.Reader,
) (interface{}, error) {
	hd := &blockHeader{}
	if err := binary.Read(rd, order, hd); err != nil {
		return nil, err
	}

	buf.Resize(n)
	for i := range buf.i64 {
		buf.i64[i] = 0
	}
	var err error
	buf.b, buf.bZStd, err = ReadCompressedIntsZStd(rd, buf.b, buf.bZStd, buf.i64)
	if err != nil {
		return nil, err
	}

	ZigZagDecode(buf.i64)
	slices := MakeDeltaSlices(m.Span, 0, buf.i64)
	DeltaDecodeFromSlices(hd.FirstOffset, slices)
	SlicesToBlock(m.Span, 0, slices, buf.q)

	out := make([]float64, n)
	Dequantize(buf.q, m.Delta, buf.rng, out)
	return out, nil
}

// Quantize writes floor(x / delta) to out.
func Quantize(x []float64, delta float64, out []int64) {
	for i := range x {
		out[i] = int64(math.Floor(x[i] / delta))
	}
}

// Dequantize writes delta*(q + u) to out, where u is a uniform random
// number in [0, 1).
func Dequantize(q []int64, delta float64, rng *RNG, out []float64) {
	rng.UniformSequence(out)
	for i := range out {
		out[i] = delta * (float64(q[i]) + out[i])
	}
}

// ZigZagEncode maps signed integers onto unsigned ones so that small
// magnitudes only use the low bytes.
func ZigZagEncode(x []int64) {
	for i := range x {
		x[i] = (x[i] << 1) ^ (x[i] >> 63)
	}
}

// ZigZagDecode is the inverse of ZigZagEncode.
func ZigZagDecode(x []int64) {
	for i := range x {
		u := uint64(x[i])
		x[i] = int64(u>>1) ^ -int64(u&1)
	}
}

// intToByte transfers a one-byte "column" from i64 to b. The bytes are
// indexed from least to most significant.
func intToByte(i64 []int64, b []byte, col int) {
	for i := range i64 {
		b[i] = byte((uint64(i64[i]) >> (8 * col)) & 0xff)
	}
}

// byteToInt adds a one-byte column to i64.
func byteToInt(b []byte, i64 []int64, col int) {
	for i := range i64 {
		i64[i] += int64(uint64(b[i]) << (8 * col))
	}
}

// WriteCompressedIntsZStd writes q to wr as eight column-ordered zstd
// frames, each preceded by its length. b must be the same length as q and
// is used as scratch space. buf is resized as needed and returned so it
// can be passed to the next call.
func WriteCompressedIntsZStd(
	q []int64, b, buf []byte, wr io.Writer,
) ([]byte, error) {
	if len(q) != len(b) {
		panic(fmt.Sprintf("Internal error: output byte buffer has length %d,"+
			" but quantized int array had length %d.", len(b), len(q)))
	}

	for i := 0; i < 8; i++ {
		// Each column gets its own frame so the high-significance bytes
		// compress to almost nothing.
		intToByte(q, b, i)

		var err error
		buf, err = zstd.CompressLevel(buf, b, 1)
		if err != nil {
			return nil, err
		}

		err = binary.Write(wr, binary.LittleEndian, int64(len(buf)))
		if err != nil {
			return nil, err
		}
		if _, err = wr.Write(buf); err != nil {
			return nil, err
		}
	}

	return buf[:0], nil
}

// ReadCompressedIntsZStd reads an array written by WriteCompressedIntsZStd
// and adds it to q, which must be zeroed and have the right length. b and
// buf are scratch space and are returned resized.
func ReadCompressedIntsZStd(
	rd io.Reader, b, buf []byte, q []int64,
) (bOut, bufOut []byte, err error) {
	b = resize(b, len(q))

	for i := 0; i < 8; i++ {
		nBuf := int64(0)
		if err := binary.Read(rd, binary.LittleEndian, &nBuf); err != nil {
			return nil, nil, err
		}

		buf = resize(buf, int(nBuf))
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, nil, err
		}

		b, err = zstd.Decompress(b, buf)
		if err != nil {
			return nil, nil, err
		}
		if len(b) != len(q) {
			return nil, nil, fmt.Errorf("column %d decompressed to %d "+
				"bytes, expected %d", i, len(b), len(q))
		}

		byteToInt(b, q, i)
	}

	return b[:0], buf[:0], nil
}
