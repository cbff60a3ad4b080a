package particles

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/eb"
	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/grid"
)

// WallModel is a linear spring-dashpot model of particle-wall contacts.
type WallModel struct {
	// Kn is the normal spring stiffness.
	Kn float64
	// En is the normal coefficient of restitution.
	En float64
	// TcollRatio is the number of DEM substeps per collision time.
	TcollRatio float64
}

// NewWallModel reads the wall parameters from c.
func NewWallModel(c *config.ParticlesConfig) WallModel {
	return WallModel{c.WallStiffness, c.WallRestitution, c.TcollRatio}
}

// Damping returns the normal damping coefficient for a particle of mass m.
func (w WallModel) Damping(m float64) float64 {
	if w.En >= 1 {
		return 0
	}
	lnE := math.Log(w.En)
	return 2 * math.Sqrt(m*w.Kn) * math.Abs(lnE) / math.Sqrt(math.Pi*math.Pi+lnE*lnE)
}

// CollisionTime returns the duration of a wall contact for a particle of
// mass m.
func (w WallModel) CollisionTime(m float64) float64 {
	eta := w.Damping(m)
	omega2 := w.Kn/m - (eta/(2*m))*(eta/(2*m))
	if omega2 <= 0 {
		return math.Pi * math.Sqrt(m/w.Kn)
	}
	return math.Pi / math.Sqrt(omega2)
}

// Force returns the contact force on a particle of mass m which overlaps a
// wall by overlap, moving with velocity v relative to a wall whose unit
// normal n points away from the wall.
func (w WallModel) Force(m, overlap float64, v, n [3]float64) [3]float64 {
	if overlap <= 0 {
		return [3]float64{}
	}
	vn := v[0]*n[0] + v[1]*n[1] + v[2]*n[2]
	f := w.Kn*overlap - w.Damping(m)*vn
	if f < 0 {
		// Contact forces are never attractive.
		f = 0
	}
	return [3]float64{f * n[0], f * n[1], f * n[2]}
}

// Integrator advances particles over one fluid time step.
type Integrator struct {
	Wall    WallModel
	Gravity [3]float64
	// Geom is the level 0 geometry.
	Geom grid.Geometry
	// Walls is the particle view of the level 0 embedded boundary. It may
	// be nil.
	Walls *eb.Level
}

// AdvanceStats summarises one call to Advance.
type AdvanceStats struct {
	Substeps int
	// Contacts is the number of particle-substep pairs in wall contact.
	Contacts int
	Exiting  int
}

// Substeps returns the number of DEM substeps needed to resolve wall
// contacts of every particle in c over dt. The smallest collision time is a
// global reduction over every rank.
func (in *Integrator) Substeps(c *Container, dt float64) int {
	minTc := make([]float64, c.NumRanks())
	for r := range minTc {
		minTc[r] = math.Inf(+1)
		for i := range c.ranks[r] {
			if tc := in.Wall.CollisionTime(c.ranks[r][i].Mass); tc < minTc[r] {
				minTc[r] = tc
			}
		}
	}
	tc := c.Comm().Allreduce_min(minTc)
	if math.IsInf(tc, 0) || in.Wall.TcollRatio <= 0 || tc <= 0 {
		return 1
	}
	sub := dt / (tc / in.Wall.TcollRatio)
	if sub <= 1 {
		return 1
	}
	return int(math.Ceil(sub))
}

// Advance moves every active particle in c over dt under gravity, the
// frozen drag and pressure forces of the last coupling step and wall
// contacts. Particles which leave through a non-periodic face are flagged
// Exiting. Positions aren't wrapped and particles aren't redistributed.
func (in *Integrator) Advance(c *Container, dt float64) (AdvanceStats, error) {
	stats := AdvanceStats{Substeps: in.Substeps(c, dt)}
	h := dt / float64(stats.Substeps)

	var err error
	c.ForEach(func(rank int, p *Particle) {
		if err != nil || p.State != Active {
			return
		}
		for s := 0; s < stats.Substeps; s++ {
			var f [3]float64
			for d := 0; d < 3; d++ {
				f[d] = p.Mass*in.Gravity[d] + p.Drag[d] + p.PressureForce[d]
			}
			contact := false
			for _, w := range in.contacts(p) {
				fw := in.Wall.Force(p.Mass, w.overlap, p.Vel, w.normal)
				for d := 0; d < 3; d++ {
					f[d] += fw[d]
				}
				contact = true
			}
			if contact {
				stats.Contacts++
			}

			for d := 0; d < 3; d++ {
				p.Vel[d] += h * f[d] / p.Mass
				p.Pos[d] += h * p.Vel[d]
			}
		}

		for d := 0; d < 3; d++ {
			if math.IsNaN(p.Vel[d]) || math.IsInf(p.Vel[d], 0) ||
				math.IsNaN(p.Pos[d]) || math.IsInf(p.Pos[d], 0) {
				err = &errs.NumericalError{
					Quantity: "particle state", Level: -1, Box: -1,
					Value: p.Vel[d],
				}
				return
			}
		}

		if in.leaving(p) {
			p.State = Exiting
			stats.Exiting++
		}
	})
	return stats, err
}

type contact struct {
	overlap float64
	normal  [3]float64
}

// contacts returns the walls p currently overlaps: embedded walls and
// domain faces of type Wall.
func (in *Integrator) contacts(p *Particle) []contact {
	var out []contact
	if in.Walls != nil {
		if phi, n := in.Walls.Distance(p.Pos); phi < p.Radius {
			out = append(out, contact{p.Radius - phi, n})
		}
	}
	for d := 0; d < 3; d++ {
		if in.Geom.Faces[d][0] == grid.Wall {
			if gap := p.Pos[d] - in.Geom.ProbLo[d]; gap < p.Radius {
				var n [3]float64
				n[d] = +1
				out = append(out, contact{p.Radius - gap, n})
			}
		}
		if in.Geom.Faces[d][1] == grid.Wall {
			if gap := in.Geom.ProbHi[d] - p.Pos[d]; gap < p.Radius {
				var n [3]float64
				n[d] = -1
				out = append(out, contact{p.Radius - gap, n})
			}
		}
	}
	return out
}

func (in *Integrator) leaving(p *Particle) bool {
	for d := 0; d < 3; d++ {
		if in.Geom.IsPeriodic(d) {
			continue
		}
		if p.Pos[d] < in.Geom.ProbLo[d] || p.Pos[d] >= in.Geom.ProbHi[d] {
			return true
		}
	}
	return false
}
