package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phil-mansfield/cfdem/lib/compress"
	"github.com/phil-mansfield/cfdem/lib/fluid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

const (
	PlotFieldFile    = "fields"
	PlotParticleFile = "particles"
)

// PlotHeader is the fixed-width header of a plot bundle's field file.
type PlotHeader struct {
	Step      int64
	Time, Dt  float64
	Cells     [3]int64
	ProbLo    [3]float64
	ProbHi    [3]float64
	Accuracy  float64
	Particles int64
}

var axisNames = [3]string{"x", "y", "z"}

// WritePlot writes a plot bundle for f and returns its path. Gas fields are
// quantised to an absolute accuracy of w.PlotAccuracy. Particle columns are
// quantised the same way, except for integer columns, which are exact.
func (w *Writer) WritePlot(f Frame) (string, error) {
	dir, err := stepName(w.PlotFile, f.Step)
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

	if err := w.writePlotFields(filepath.Join(tmp, PlotFieldFile), f); err != nil {
		return "", fmt.Errorf("could not write plot fields: %w", err)
	}
	err = w.writePlotParticles(filepath.Join(tmp, PlotParticleFile), f.Particles)
	if err != nil {
		return "", fmt.Errorf("could not write plot particles: %w", err)
	}

	if err := replaceDir(tmp, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// plotArrays returns the selected quantities in the order they're written.
func (w *Writer) plotArrays(f Frame) (names []string, arrays [][]float64) {
	a := fluid.Gather(f.Fields, f.VolFrac)
	add := func(name string, x []float64) {
		names, arrays = append(names, name), append(arrays, x)
	}
	vec := func(name string, x [3][]float64) {
		for d := 0; d < 3; d++ {
			add(name+"_"+axisNames[d], x[d])
		}
	}

	v := w.Vars
	if v.VelG {
		vec("vel_g", a.Vel)
	}
	if v.EpG {
		add("ep_g", a.Ep)
	}
	if v.PG {
		add("p_g", a.P)
	}
	if v.RoG {
		add("ro_g", a.Ro)
	}
	if v.Trac {
		add("trac", a.Trac)
	}
	if v.MuG {
		add("mu_g", a.Mu)
	}
	if v.GradP {
		vec("gp", a.Gp)
	}

	ls := f.Fields.Levels[0]
	if v.Vort {
		vort := fluid.Vorticity(a)
		ls.Vort.Scatter(a.Box, 0, vort)
		add("vort", vort)
	}
	if v.Diveu {
		div := fluid.Divergence(a)
		ls.Diveu.Scatter(a.Box, 0, div)
		add("diveu", div)
	}
	if a.VolFrac != nil {
		add("vfrac", a.VolFrac)
	}
	return names, arrays
}

func (w *Writer) writePlotFields(fname string, f Frame) error {
	geom := f.Fields.Hierarchy().Levels[0].Geom
	n := geom.Domain.Width
	hd := &PlotHeader{
		Step: int64(f.Step), Time: f.Time, Dt: f.Dt,
		Cells:  [3]int64{int64(n[0]), int64(n[1]), int64(n[2])},
		ProbLo: geom.ProbLo, ProbHi: geom.ProbHi,
		Accuracy: w.PlotAccuracy, Particles: int64(f.Particles.Len()),
	}

	wr, err := compress.NewWriter(fname, hd, w.buf, w.order)
	if err != nil {
		return err
	}
	names, arrays := w.plotArrays(f)
	for i := range names {
		method := compress.NewBlockDelta(n, w.PlotAccuracy)
		if err := wr.AddField(names[i], arrays[i], method); err != nil {
			return err
		}
	}
	return wr.Flush()
}

func (w *Writer) writePlotParticles(fname string, ps *particles.Container) error {
	wr, err := compress.NewWriter(fname, nil, w.buf, w.order)
	if err != nil {
		return err
	}
	if ps.Len() == 0 {
		return wr.Flush()
	}

	cols, err := particles.Columns(ps)
	if err != nil {
		return err
	}
	for _, name := range particles.ColumnNames() {
		x := cols[name].Data()
		var method compress.Method = &compress.Lossless{}
		if f64, ok := x.([]float64); ok {
			method = compress.NewBlockDelta([3]int{len(f64), 1, 1},
				w.PlotAccuracy)
		}
		if err := wr.AddField(name, x, method); err != nil {
			return err
		}
	}
	return wr.Flush()
}

// Plot is a plot bundle read back from disk.
type Plot struct {
	Header PlotHeader
	// Fields maps names to flat arrays with x varying fastest.
	Fields map[string][]float64
	// Particles maps column names to []float64, []int64 or []int32 arrays.
	Particles map[string]interface{}
}

// ReadPlot reads the plot bundle in dir.
func ReadPlot(dir string) (*Plot, error) {
	buf := compress.NewBuffer(0)
	p := &Plot{Fields: map[string][]float64{},
		Particles: map[string]interface{}{}}

	rd, err := compress.NewReader(filepath.Join(dir, PlotFieldFile), buf)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	if err := rd.ReadMeta(&p.Header); err != nil {
		return nil, err
	}
	for _, name := range rd.Names {
		x, err := rd.ReadField(name)
		if err != nil {
			return nil, err
		}
		f64, ok := x.([]float64)
		if !ok {
			return nil, fmt.Errorf("plot field '%s' has type %T", name, x)
		}
		p.Fields[name] = f64
	}

	prd, err := compress.NewReader(filepath.Join(dir, PlotParticleFile), buf)
	if err != nil {
		return nil, err
	}
	defer prd.Close()
	for _, name := range prd.Names {
		x, err := prd.ReadField(name)
		if err != nil {
			return nil, err
		}
		p.Particles[name] = x
	}
	return p, nil
}
