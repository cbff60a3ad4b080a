package regrid

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

// Totals are the domain integrals of the conserved quantities, taken over
// level 0.
type Totals struct {
	GasMass   float64
	GasVolume float64
	Momentum  [3]float64
	Tracer    float64

	Particles    int64
	ParticleMass float64
}

// Measure computes the Totals of a state. It's a collective.
func Measure(p grid.Provider, s *fields.State, ps *particles.Container) Totals {
	comm := p.Comm()
	ranks := p.Ranks()
	lev := s.Hierarchy().Levels[0]
	vcell := lev.Geom.CellVolume()

	mass, vol := make([]float64, ranks), make([]float64, ranks)
	trac := make([]float64, ranks)
	var mom [3][]float64
	for d := range mom {
		mom[d] = make([]float64, ranks)
	}

	ls := s.Levels[0]
	for b, f := range ls.New[fields.EpG].FABs {
		r := lev.DM[b]
		ro, u := ls.New[fields.RoG].FABs[b], ls.New[fields.VelG].FABs[b]
		tr := ls.New[fields.Trac].FABs[b]
		f.Valid.ForEach(func(i, j, k int) {
			ep := f.Get(i, j, k, 0)
			m := ep * ro.Get(i, j, k, 0)
			vol[r] += ep * vcell
			mass[r] += m * vcell
			trac[r] += tr.Get(i, j, k, 0) * vcell
			for d := 0; d < 3; d++ {
				mom[d][r] += m * u.Get(i, j, k, d) * vcell
			}
		})
	}

	t := Totals{
		GasMass:   comm.Allreduce_sum(mass),
		GasVolume: comm.Allreduce_sum(vol),
		Tracer:    comm.Allreduce_sum(trac),
	}
	for d := 0; d < 3; d++ {
		t.Momentum[d] = comm.Allreduce_sum(mom[d])
	}

	if ps != nil {
		counts := ps.Counts()
		n := make([]int64, len(counts))
		pm := make([]float64, len(counts))
		for r := range counts {
			n[r] = int64(counts[r])
		}
		ps.ForEach(func(r int, part *particles.Particle) { pm[r] += part.Mass })
		t.Particles = comm.Allreduce_sum_int64(n)
		t.ParticleMass = comm.Allreduce_sum(pm)
	}
	return t
}

// MaxRelDiff returns the largest relative difference between the
// continuous totals of t and o.
func (t Totals) MaxRelDiff(o Totals) float64 {
	pairs := [][2]float64{
		{t.GasMass, o.GasMass}, {t.GasVolume, o.GasVolume},
		{t.Tracer, o.Tracer}, {t.ParticleMass, o.ParticleMass},
	}
	momScale := 0.0
	for d := 0; d < 3; d++ {
		momScale = math.Max(momScale, math.Abs(t.Momentum[d]))
	}

	max := 0.0
	for _, p := range pairs {
		max = math.Max(max, relDiff(p[0], p[1], math.Abs(p[0])))
	}
	for d := 0; d < 3; d++ {
		max = math.Max(max, relDiff(t.Momentum[d], o.Momentum[d], momScale))
	}
	return max
}

func relDiff(a, b, scale float64) float64 {
	if a == b {
		return 0
	}
	if scale == 0 {
		return math.Inf(+1)
	}
	return math.Abs(a-b) / scale
}
