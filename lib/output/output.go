/*package output writes the diagnostic output of a run: plot bundles of the
level 0 gas fields and the particles, ASCII particle dumps and time series of
averages over configured regions. The orchestrator decides when output is
due; this package only decides what it looks like.
*/
package output

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/phil-mansfield/cfdem/lib/compress"
	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/format"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

// Frame is the state handed to the writers.
type Frame struct {
	Step      int
	Time, Dt  float64
	Fields    *fields.State
	Particles *particles.Container
	// VolFrac is the level 0 fluid volume fraction. It's nil when there
	// are no embedded walls.
	VolFrac *grid.MultiFab
}

// Schedule decides which steps an output happens on: every Int steps if
// Int > 0, and on every step of Steps.
type Schedule struct {
	Int   int
	Steps format.StepSet
}

// NewSchedule creates a Schedule. steps is a sequence format string (see
// format.ExpandSequenceFormat) and may be empty.
func NewSchedule(interval int, steps string) (Schedule, error) {
	s := Schedule{Int: interval}
	if steps == "" {
		return s, nil
	}
	set, err := format.NewStepSet(steps)
	if err != nil {
		return s, err
	}
	s.Steps = set
	return s, nil
}

// Enabled returns true if the schedule can ever be due.
func (s Schedule) Enabled() bool { return s.Int > 0 || len(s.Steps) > 0 }

// Due returns true if output is due at step.
func (s Schedule) Due(step int) bool {
	if s.Int > 0 && step%s.Int == 0 {
		return true
	}
	return s.Steps.Contains(step)
}

// PlotVars selects the level 0 quantities written to plot bundles.
type PlotVars struct {
	VelG, EpG, PG, RoG, Trac, MuG, GradP bool
	Vort, Diveu                          bool
}

// PlotVarsOf reads the Plt* flags of the [Output] section.
func PlotVarsOf(c *config.OutputConfig) PlotVars {
	return PlotVars{
		VelG: c.PltVelG, EpG: c.PltEpG, PG: c.PltPG, RoG: c.PltRoG,
		Trac: c.PltTrac, MuG: c.PltMuG, GradP: c.PltGradP,
		Vort: c.PltVort, Diveu: c.PltDiveu,
	}
}

// Writer writes every kind of diagnostic output.
type Writer struct {
	PlotFile     string
	PlotAccuracy float64
	Vars         PlotVars

	ParAsciiFile string

	AvgFile string
	Regions []Region

	buf   *compress.Buffer
	order binary.ByteOrder
	// series holds the open average-region files, by region.
	series []*series
}

// New creates a Writer from the [Output] and [AverageRegion] sections.
func New(c *config.Config) *Writer {
	out := &c.Output
	w := &Writer{
		PlotFile: out.PlotFile, PlotAccuracy: out.PlotAccuracy,
		Vars:         PlotVarsOf(out),
		ParAsciiFile: out.ParAsciiFile,
		AvgFile:      out.AvgFile,
		buf:          compress.NewBuffer(0),
		order:        binary.LittleEndian,
	}
	for _, name := range c.RegionNames() {
		r := c.AverageRegion[name]
		w.Regions = append(w.Regions, Region{
			Name: name,
			Lo:   [3]float64{r.LoX, r.LoY, r.LoZ},
			Hi:   [3]float64{r.HiX, r.HiY, r.HiZ},
		})
	}
	return w
}

// Close closes any open time series files.
func (w *Writer) Close() error {
	var first error
	for _, s := range w.series {
		if s == nil {
			continue
		}
		if err := s.close(); err != nil && first == nil {
			first = err
		}
	}
	w.series = nil
	return first
}

// replaceDir renames the finished directory tmp to dir, removing anything
// already at dir.
func replaceDir(tmp, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.Rename(tmp, dir)
}

// stepName is format.StepName with a descriptive error.
func stepName(prefix string, step int) (string, error) {
	name, err := format.StepName(prefix, step)
	if err != nil {
		return "", fmt.Errorf("bad output name '%s': %w", prefix, err)
	}
	return name, nil
}
