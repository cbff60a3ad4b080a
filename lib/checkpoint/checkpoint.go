/*package checkpoint writes and reads restart bundles.

A bundle is a directory named after its step which holds a Header file with
the hierarchy and the scalar state, one Level_<n> file per level with every
field in enumerated order, and a particles file. All three are
compress-package files and every array is stored losslessly, so a restart
followed by a checkpoint reproduces the bundle exactly. Bundles are written
to a temporary directory which is renamed once every file is on disk.
*/
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phil-mansfield/cfdem/lib/compress"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/format"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

const (
	HeaderFile   = "Header"
	ParticleFile = "particles"
)

// LevelFile returns the name of the field file of level l.
func LevelFile(l int) string { return fmt.Sprintf("Level_%d", l) }

// Scalars is the scalar state of a simulation.
type Scalars struct {
	Step     int
	Time, Dt float64
}

// FixedWidthHeader is the fixed-width part of the Header file.
type FixedWidthHeader struct {
	Step      int64
	Time, Dt  float64
	Levels    int64
	Particles int64
	NextID    int64
	// Ranks is the number of ranks the box owners refer to.
	Ranks    int64
	RefRatio int64
	MaxLevel int64

	DomainLo, DomainWidth [3]int64
	ProbLo, ProbHi        [3]float64
	Faces                 [3][2]int64
	InflowVelocity        float64
}

type particleHeader struct {
	N, NextID int64
}

// Writer writes checkpoint bundles.
type Writer struct {
	// Prefix is the bundle name format (see format.StepName).
	Prefix string
	// Catalog records every bundle written. It may be nil.
	Catalog *Catalog

	buf   *compress.Buffer
	order binary.ByteOrder
}

// NewWriter creates a Writer whose bundles are named by prefix.
func NewWriter(prefix string, cat *Catalog) *Writer {
	return &Writer{prefix, cat, compress.NewBuffer(0), binary.LittleEndian}
}

// Write writes the state as the bundle for sc.Step and returns its path.
func (w *Writer) Write(
	s *fields.State, ps *particles.Container, sc Scalars,
) (string, error) {
	dir, err := format.StepName(w.Prefix, sc.Step)
	if err != nil {
		return "", err
	}
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return "", err
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return "", err
	}

	h := s.Hierarchy()
	if err := w.writeHeader(filepath.Join(tmp, HeaderFile), h, ps, sc); err != nil {
		return "", fmt.Errorf("could not write checkpoint header: %w", err)
	}
	for l := range h.Levels {
		if err := w.writeLevel(filepath.Join(tmp, LevelFile(l)), s, l); err != nil {
			return "", fmt.Errorf("could not write level %d of checkpoint: %w",
				l, err)
		}
	}
	if err := w.writeParticles(filepath.Join(tmp, ParticleFile), ps); err != nil {
		return "", fmt.Errorf("could not write checkpoint particles: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dir); err != nil {
		return "", err
	}

	if w.Catalog != nil {
		err := w.Catalog.Record(Entry{
			Step: sc.Step, Time: sc.Time, Dt: sc.Dt, Path: dir,
			Particles: int64(ps.Len()), Levels: h.NumLevels(),
			WrittenAt: time.Now(),
		})
		if err != nil {
			return dir, fmt.Errorf("checkpoint %s written, but could not be "+
				"catalogued: %w", dir, err)
		}
	}
	return dir, nil
}

func (w *Writer) writeHeader(
	fname string, h *grid.Hierarchy, ps *particles.Container, sc Scalars,
) error {
	geom := h.Levels[0].Geom
	hd := &FixedWidthHeader{
		Step: int64(sc.Step), Time: sc.Time, Dt: sc.Dt,
		Levels: int64(h.NumLevels()), Particles: int64(ps.Len()),
		NextID: ps.NextID(), Ranks: int64(ps.NumRanks()),
		RefRatio: int64(h.RefRatio), MaxLevel: int64(h.MaxLevel),
		ProbLo: geom.ProbLo, ProbHi: geom.ProbHi,
		InflowVelocity: geom.InflowVelocity,
	}
	for d := 0; d < 3; d++ {
		hd.DomainLo[d] = int64(geom.Domain.Origin[d])
		hd.DomainWidth[d] = int64(geom.Domain.Width[d])
		hd.Faces[d] = [2]int64{int64(geom.Faces[d][0]), int64(geom.Faces[d][1])}
	}

	wr, err := compress.NewWriter(fname, hd, w.buf, w.order)
	if err != nil {
		return err
	}

	comps := make([]int32, fields.NumVars)
	for v := fields.Var(0); v < fields.NumVars; v++ {
		comps[v] = int32(v.NComp())
	}
	if err := wr.AddField("var_comps", comps, &compress.Lossless{}); err != nil {
		return err
	}

	for l, lev := range h.Levels {
		boxes := make([]int64, 0, 6*len(lev.BA))
		for _, b := range lev.BA {
			for d := 0; d < 3; d++ {
				boxes = append(boxes, int64(b.Origin[d]))
			}
			for d := 0; d < 3; d++ {
				boxes = append(boxes, int64(b.Width[d]))
			}
		}
		owners := make([]int64, len(lev.DM))
		for i := range owners {
			owners[i] = int64(lev.DM[i])
		}

		err := wr.AddField(boxesName(l), boxes, &compress.Lossless{})
		if err != nil {
			return err
		}
		err = wr.AddField(ownersName(l), owners, &compress.Lossless{})
		if err != nil {
			return err
		}
	}
	return wr.Flush()
}

func boxesName(l int) string  { return fmt.Sprintf("level_%d/boxes", l) }
func ownersName(l int) string { return fmt.Sprintf("level_%d/owners", l) }

// fieldName is the name of the array holding variable v on box b.
func fieldName(v fields.Var, b int) string { return fmt.Sprintf("%s/%d", v, b) }

// writeLevel writes the valid cells of every field on level l, variable by
// variable in enumerated order and box by box within each variable.
func (w *Writer) writeLevel(fname string, s *fields.State, l int) error {
	wr, err := compress.NewWriter(fname, nil, w.buf, w.order)
	if err != nil {
		return err
	}
	for v := fields.Var(0); v < fields.NumVars; v++ {
		for b, f := range s.Get(l, v).FABs {
			x := packFAB(f)
			if err := wr.AddField(fieldName(v, b), x, &compress.Lossless{}); err != nil {
				return err
			}
		}
	}
	return wr.Flush()
}

// packFAB copies the valid cells of f into a new array, component by
// component.
func packFAB(f *grid.FAB) []float64 {
	vol := f.Valid.Volume()
	out := make([]float64, f.NComp*vol)
	for c := 0; c < f.NComp; c++ {
		f.Valid.ForEach(func(i, j, k int) {
			out[c*vol+f.Valid.Idx(i, j, k)] = f.Get(i, j, k, c)
		})
	}
	return out
}

// unpackFAB is the inverse of packFAB.
func unpackFAB(x []float64, f *grid.FAB) {
	vol := f.Valid.Volume()
	for c := 0; c < f.NComp; c++ {
		f.Valid.ForEach(func(i, j, k int) {
			f.Set(i, j, k, c, x[c*vol+f.Valid.Idx(i, j, k)])
		})
	}
}

func (w *Writer) writeParticles(fname string, ps *particles.Container) error {
	cols, err := particles.Columns(ps)
	if err != nil {
		return err
	}

	hd := &particleHeader{int64(ps.Len()), ps.NextID()}
	wr, err := compress.NewWriter(fname, hd, w.buf, w.order)
	if err != nil {
		return err
	}
	for _, name := range particles.ColumnNames() {
		col, ok := cols[name]
		if !ok {
			return fmt.Errorf("particle column '%s' is missing", name)
		}
		if err := wr.AddField(name, col.Data(), &compress.Lossless{}); err != nil {
			return err
		}
	}
	return wr.Flush()
}
