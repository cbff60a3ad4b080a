package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	// MagicNumber is an arbitrary number at the start of every file written
	// by this package, used to catch files of the wrong kind.
	MagicNumber = 0xbadf00d0
	// ReverseMagicNumber is the magic number read on a machine with flipped
	// endianness.
	ReverseMagicNumber = 0xd000dfba
	Version            = 1
)

// Header is the self-describing part of a file.
type Header struct {
	// Meta is a fixed-width block owned by the caller. See NewWriter and
	// Reader.ReadMeta.
	Meta []byte
	// Names gives the names of all the arrays stored in the file and Types
	// their types ("i32", "i64" or "f64").
	Names, Types []string
}

// Writer handles writing a file. Create one with NewWriter, add arrays with
// AddField and call Flush to write everything to disk.
type Writer struct {
	Header
	fname                  string
	buf                    *Buffer
	order                  binary.ByteOrder
	methodFlags            []uint32
	headerEdges, dataEdges []int64
	header, data           *bytes.Buffer
}

// NewWriter creates a Writer targeting fname. meta is a fixed-width value,
// typically a struct of sized numbers, which is stored verbatim in the file
// header. It may be nil.
func NewWriter(
	fname string, meta interface{}, buf *Buffer, order binary.ByteOrder,
) (*Writer, error) {
	hd := Header{Names: []string{}, Types: []string{}}
	if meta != nil {
		b := &bytes.Buffer{}
		if err := binary.Write(b, order, meta); err != nil {
			return nil, fmt.Errorf("could not encode header of %s: %w",
				fname, err)
		}
		hd.Meta = b.Bytes()
	}

	return &Writer{
		hd, fname, buf, order, []uint32{},
		[]int64{0}, []int64{0},
		&bytes.Buffer{}, &bytes.Buffer{},
	}, nil
}

// AddField adds an array to the file, compressed with the given method.
func (wr *Writer) AddField(name string, x interface{}, method Method) error {
	flag, err := GetTypeFlag(x)
	if err != nil {
		return fmt.Errorf("field '%s': %w", name, err)
	}
	if findString(wr.Names, name) != -1 {
		return fmt.Errorf("field '%s' added to %s twice", name, wr.fname)
	}

	if err := method.WriteInfo(wr.order, wr.header, Len(x)); err != nil {
		return err
	}
	if err := method.Compress(wr.order, x, wr.buf, wr.data); err != nil {
		return fmt.Errorf("could not compress field '%s': %w", name, err)
	}

	wr.headerEdges = append(wr.headerEdges, int64(wr.header.Len()))
	wr.dataEdges = append(wr.dataEdges, int64(wr.data.Len()))
	wr.methodFlags = append(wr.methodFlags, uint32(method.MethodFlag()))
	wr.Names = append(wr.Names, name)
	wr.Types = append(wr.Types, flag.String())

	return nil
}

// Flush writes the file to disk.
func (wr *Writer) Flush() error {
	front := &bytes.Buffer{}

	if err := binary.Write(front, wr.order, uint32(MagicNumber)); err != nil {
		return err
	}
	if err := binary.Write(front, wr.order, uint32(Version)); err != nil {
		return err
	}
	if err := wr.Header.write(front, wr.order); err != nil {
		return err
	}

	// Navigation information: method flags, then the header and data edges
	// as absolute offsets.
	nHd := front.Len() + 4*len(wr.methodFlags) +
		8*len(wr.headerEdges) + 8*len(wr.dataEdges)

	headerOffset := int64(nHd)
	dataOffset := headerOffset + wr.headerEdges[len(wr.headerEdges)-1]
	headerEdges := make([]int64, len(wr.headerEdges))
	dataEdges := make([]int64, len(wr.dataEdges))
	for i := range wr.headerEdges {
		headerEdges[i] = wr.headerEdges[i] + headerOffset
		dataEdges[i] = wr.dataEdges[i] + dataOffset
	}

	for _, x := range []interface{}{wr.methodFlags, headerEdges, dataEdges} {
		if err := binary.Write(front, wr.order, x); err != nil {
			return err
		}
	}

	fp, err := os.Create(wr.fname)
	if err != nil {
		return err
	}
	for _, b := range [][]byte{front.Bytes(), wr.header.Bytes(),
		wr.data.Bytes()} {
		if _, err := fp.Write(b); err != nil {
			fp.Close()
			return err
		}
	}
	return fp.Close()
}

func (hd *Header) write(f io.Writer, order binary.ByteOrder) error {
	if err := binary.Write(f, order, uint32(len(hd.Meta))); err != nil {
		return err
	}
	if _, err := f.Write(hd.Meta); err != nil {
		return err
	}

	nFields := uint32(len(hd.Names))
	if err := binary.Write(f, order, nFields); err != nil {
		return err
	}
	nNames := make([]uint32, nFields)
	for i := range nNames {
		nNames[i] = uint32(len(hd.Names[i]))
	}
	if err := binary.Write(f, order, nNames); err != nil {
		return err
	}

	for i := range hd.Names {
		if _, err := io.WriteString(f, hd.Names[i]); err != nil {
			return err
		}
	}
	for i := range hd.Types {
		if _, err := io.WriteString(f, hd.Types[i]); err != nil {
			return err
		}
	}
	return nil
}

func (hd *Header) read(f io.Reader, order binary.ByteOrder) error {
	var nMeta uint32
	if err := binary.Read(f, order, &nMeta); err != nil {
		return err
	}
	hd.Meta = make([]byte, nMeta)
	if _, err := io.ReadFull(f, hd.Meta); err != nil {
		return err
	}

	var nFields uint32
	if err := binary.Read(f, order, &nFields); err != nil {
		return err
	}
	nNames := make([]uint32, nFields)
	if err := binary.Read(f, order, nNames); err != nil {
		return err
	}

	hd.Names, hd.Types = make([]string, nFields), make([]string, nFields)
	for i := range nNames {
		b := make([]byte, nNames[i])
		if _, err := io.ReadFull(f, b); err != nil {
			return err
		}
		hd.Names[i] = string(b)
	}
	for i := range nNames {
		b := make([]byte, 3)
		if _, err := io.ReadFull(f, b); err != nil {
			return err
		}
		hd.Types[i] = string(b)
	}
	return nil
}

// Reader handles the navigation of a file written by Writer. It must be
// closed after use.
type Reader struct {
	Header
	fname                  string
	f                      *os.File
	order                  binary.ByteOrder
	headerEdges, dataEdges []int64
	methodFlags            []MethodFlag
	buf                    *Buffer
	midBuf                 []byte
}

// NewReader opens fname and reads its header.
func NewReader(fname string, buf *Buffer) (*Reader, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}

	rd, err := newReader(fname, f, buf)
	if err != nil {
		f.Close()
		return nil, err
	}
	return rd, nil
}

func newReader(fname string, f *os.File, buf *Buffer) (*Reader, error) {
	order, err := checkFile(fname, f)
	if err != nil {
		return nil, err
	}

	hd := &Header{}
	if err := hd.read(f, order); err != nil {
		return nil, fmt.Errorf("could not read header of %s: %w", fname, err)
	}
	nFields := len(hd.Names)

	rd := &Reader{
		Header: *hd, fname: fname, f: f, order: order,
		headerEdges: make([]int64, nFields+1),
		dataEdges:   make([]int64, nFields+1),
		methodFlags: make([]MethodFlag, nFields),
		buf:         buf,
	}

	for _, x := range []interface{}{rd.methodFlags, rd.headerEdges,
		rd.dataEdges} {
		if err := binary.Read(f, order, x); err != nil {
			return nil, fmt.Errorf("could not read offsets of %s: %w",
				fname, err)
		}
	}
	return rd, nil
}

// ReadMeta decodes the fixed-width block written by NewWriter into out,
// which must be a pointer to a value of the same type.
func (rd *Reader) ReadMeta(out interface{}) error {
	if size := binary.Size(out); size != len(rd.Meta) {
		return fmt.Errorf("the header of %s has %d bytes, but a %T needs %d",
			rd.fname, len(rd.Meta), out, size)
	}
	return binary.Read(bytes.NewReader(rd.Meta), rd.order, out)
}

// ReadField reads the array called name. The returned array is newly
// allocated.
func (rd *Reader) ReadField(name string) (interface{}, error) {
	i := findString(rd.Names, name)
	if i == -1 {
		return nil, fmt.Errorf("the field '%s' is not in %s. It only "+
			"contains the fields %s", name, rd.fname, rd.Names)
	}

	method, err := selectMethod(rd.methodFlags[i])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rd.fname, err)
	}

	if _, err := rd.f.Seek(rd.headerEdges[i], io.SeekStart); err != nil {
		return nil, err
	}
	n, err := method.ReadInfo(rd.order, rd.f)
	if err != nil {
		return nil, err
	}

	if _, err := rd.f.Seek(rd.dataEdges[i], io.SeekStart); err != nil {
		return nil, err
	}
	rd.midBuf = resize(rd.midBuf, int(rd.dataEdges[i+1]-rd.dataEdges[i]))
	if _, err := io.ReadFull(rd.f, rd.midBuf); err != nil {
		return nil, err
	}

	x, err := method.Decompress(rd.order, n, rd.buf, bytes.NewReader(rd.midBuf))
	if err != nil {
		return nil, fmt.Errorf("could not read field '%s' of %s: %w",
			name, rd.fname, err)
	}
	return x, nil
}

// Close closes the file associated with the Reader.
func (rd *Reader) Close() error {
	return rd.f.Close()
}

func selectMethod(flag MethodFlag) (Method, error) {
	switch flag {
	case LosslessFlag:
		return &Lossless{}, nil
	case BlockDeltaFlag:
		return &BlockDelta{}, nil
	}
	return nil, fmt.Errorf("unrecognized method flag %d", flag)
}

// findString returns the index of the first instance of target in x and -1
// if target isn't in x.
func findString(x []string, target string) int {
	for i := range x {
		if x[i] == target {
			return i
		}
	}
	return -1
}

// checkFile reads the magic number and version and returns the byte order
// the file was written with.
func checkFile(fname string, f io.Reader) (binary.ByteOrder, error) {
	var magicNumber, version uint32

	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Read(f, order, &magicNumber); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", fname, err)
	}

	switch magicNumber {
	case MagicNumber:
	case ReverseMagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%s was not written by cfdem. Its files begin "+
			"with either the 32-bit integer %x or %x, but this file begins "+
			"with %x", fname, MagicNumber, ReverseMagicNumber, magicNumber)
	}

	if err := binary.Read(f, order, &version); err != nil {
		return nil, err
	}
	if version > Version {
		return nil, fmt.Errorf("%s was written with file version %d, but "+
			"this build only reads versions up to %d", fname, version, Version)
	}

	return order, nil
}
