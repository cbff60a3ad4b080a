package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

// Region is a rectangular region whose averages are reported over time.
type Region struct {
	Name   string
	Lo, Hi [3]float64
}

// Contains returns true if x is inside r. Regions include their faces.
func (r *Region) Contains(x [3]float64) bool {
	for d := 0; d < 3; d++ {
		if x[d] < r.Lo[d] || x[d] > r.Hi[d] {
			return false
		}
	}
	return true
}

// Averages are the averages over a region at one instant. Gas averages
// are over level 0 cells whose centres lie in the region.
type Averages struct {
	Cells int
	// EpG, PG and RoG are cell averages. VelG is weighted by ep_g.
	EpG, PG, RoG float64
	VelG         [3]float64

	// Particles is the number of particles in the region and VelP their
	// mass-weighted mean velocity.
	Particles int
	VelP      [3]float64
}

var averageColumns = []string{
	"step", "time", "cells", "ep_g", "p_g", "ro_g",
	"vel_g_x", "vel_g_y", "vel_g_z",
	"np", "vel_p_x", "vel_p_y", "vel_p_z",
}

// Average computes the averages of f over r.
func Average(f Frame, r Region) Averages {
	lev := f.Fields.Hierarchy().Levels[0]
	ls := f.Fields.Levels[0]
	ep, pg, ro := ls.New[fields.EpG], ls.New[fields.PG], ls.New[fields.RoG]
	vel := ls.New[fields.VelG]

	out := Averages{}
	var epSum, epVel [3]float64
	sumEp, sumP, sumRo := 0.0, 0.0, 0.0
	for b, fe := range ep.FABs {
		fp, fr, fv := pg.FABs[b], ro.FABs[b], vel.FABs[b]
		fe.Valid.ForEach(func(i, j, k int) {
			if !r.Contains(lev.Geom.CellCenter(i, j, k)) {
				return
			}
			out.Cells++
			e := fe.Get(i, j, k, 0)
			sumEp += e
			sumP += fp.Get(i, j, k, 0)
			sumRo += fr.Get(i, j, k, 0)
			for d := 0; d < 3; d++ {
				epSum[d] += e
				epVel[d] += e * fv.Get(i, j, k, d)
			}
		})
	}
	if out.Cells > 0 {
		n := float64(out.Cells)
		out.EpG, out.PG, out.RoG = sumEp/n, sumP/n, sumRo/n
		for d := 0; d < 3; d++ {
			if epSum[d] > 0 {
				out.VelG[d] = epVel[d] / epSum[d]
			}
		}
	}

	mass := 0.0
	var mom [3]float64
	f.Particles.ForEach(func(rank int, p *particles.Particle) {
		if p.State == particles.Exiting || !r.Contains(p.Pos) {
			return
		}
		out.Particles++
		mass += p.Mass
		for d := 0; d < 3; d++ {
			mom[d] += p.Mass * p.Vel[d]
		}
	})
	if mass > 0 {
		for d := 0; d < 3; d++ {
			out.VelP[d] = mom[d] / mass
		}
	}
	return out
}

func (a *Averages) record(step int, time float64) []string {
	x := []float64{a.EpG, a.PG, a.RoG, a.VelG[0], a.VelG[1], a.VelG[2]}
	rec := []string{strconv.Itoa(step), formatFloat(time),
		strconv.Itoa(a.Cells)}
	for i := range x {
		rec = append(rec, formatFloat(x[i]))
	}
	rec = append(rec, strconv.Itoa(a.Particles))
	for d := 0; d < 3; d++ {
		rec = append(rec, formatFloat(a.VelP[d]))
	}
	return rec
}

// series is an open average-region time series.
type series struct {
	f *os.File
	w *csv.Writer
}

// RegionFile returns the name of the time series file of a region.
func (w *Writer) RegionFile(name string) string {
	return fmt.Sprintf("%s_%s.csv", w.AvgFile, name)
}

func openSeries(fname string) (*series, error) {
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	s := &series{f, csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.w.Write(averageColumns); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *series) close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// WriteAverages appends one line per region to each region's time series.
// Files are created on first use and appended to afterwards, so restarted
// runs continue the series.
func (w *Writer) WriteAverages(f Frame) error {
	if w.series == nil {
		w.series = make([]*series, len(w.Regions))
	}
	for i, r := range w.Regions {
		if w.series[i] == nil {
			s, err := openSeries(w.RegionFile(r.Name))
			if err != nil {
				return fmt.Errorf("could not open average region '%s': %w",
					r.Name, err)
			}
			w.series[i] = s
		}
		avg := Average(f, r)
		s := w.series[i]
		if err := s.w.Write(avg.record(f.Step, f.Time)); err != nil {
			return err
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			return err
		}
	}
	return nil
}
