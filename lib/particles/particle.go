/*package particles contains the Lagrangian particle container: particle
records, their ownership by rank, redistribution between ranks, columnar views
of the particle fields and the DEM integrator which moves them.*/
package particles

import (
	"fmt"
	"math"
)

// State is the life-cycle flag of a particle.
type State int32

const (
	// Active particles are moved and coupled to the gas.
	Active State = iota
	// Exiting particles have left the domain through an open face and will
	// be removed at the next redistribution.
	Exiting
	// Frozen particles keep their position and velocity but still deposit
	// volume onto the grid.
	Frozen
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Exiting:
		return "exiting"
	case Frozen:
		return "frozen"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Particle is a single spherical particle.
type Particle struct {
	ID    int64
	Pos   [3]float64
	Vel   [3]float64
	Omega [3]float64
	// Drag is the gas drag force on the particle from the most recent
	// coupling step.
	Drag [3]float64
	// PressureForce is the force from the gas pressure gradient from the
	// most recent coupling step.
	PressureForce [3]float64

	Radius, Volume, Mass, Density float64
	// OneOverI is the inverse moment of inertia.
	OneOverI float64

	Phase int32
	State State
}

// New creates an active particle with all derived quantities computed from
// its radius and density. The ID is assigned when the particle is added to
// a Container.
func New(pos, vel [3]float64, radius, density float64, phase int32) Particle {
	p := Particle{Pos: pos, Vel: vel, Phase: phase}
	p.SetSize(radius, density)
	return p
}

// SetSize sets the radius and density of p and recomputes its volume, mass
// and inverse moment of inertia.
func (p *Particle) SetSize(radius, density float64) {
	p.Radius, p.Density = radius, density
	p.Volume = 4 * math.Pi * radius * radius * radius / 3
	p.Mass = p.Volume * density
	p.OneOverI = 5 / (2 * p.Mass * radius * radius)
}

// Diameter returns twice the radius.
func (p *Particle) Diameter() float64 { return 2 * p.Radius }

// Momentum returns the particle's linear momentum.
func (p *Particle) Momentum() [3]float64 {
	return [3]float64{p.Mass * p.Vel[0], p.Mass * p.Vel[1], p.Mass * p.Vel[2]}
}

// RecordLen is the number of float64 words a packed particle occupies.
const RecordLen = 1 + 5*3 + 5 + 2

// pack writes p into buf[:RecordLen]. Integer fields are stored by bit
// pattern, so unpack(pack(p)) == p exactly.
func (p *Particle) pack(buf []float64) {
	buf[0] = math.Float64frombits(uint64(p.ID))
	i := 1
	for _, v := range [][3]float64{
		p.Pos, p.Vel, p.Omega, p.Drag, p.PressureForce,
	} {
		copy(buf[i:i+3], v[:])
		i += 3
	}
	buf[i+0] = p.Radius
	buf[i+1] = p.Volume
	buf[i+2] = p.Mass
	buf[i+3] = p.Density
	buf[i+4] = p.OneOverI
	buf[i+5] = math.Float64frombits(uint64(uint32(p.Phase)))
	buf[i+6] = math.Float64frombits(uint64(uint32(p.State)))
}

func unpack(buf []float64) Particle {
	p := Particle{}
	p.ID = int64(math.Float64bits(buf[0]))
	i := 1
	for _, v := range []*[3]float64{
		&p.Pos, &p.Vel, &p.Omega, &p.Drag, &p.PressureForce,
	} {
		copy(v[:], buf[i:i+3])
		i += 3
	}
	p.Radius = buf[i+0]
	p.Volume = buf[i+1]
	p.Mass = buf[i+2]
	p.Density = buf[i+3]
	p.OneOverI = buf[i+4]
	p.Phase = int32(uint32(math.Float64bits(buf[i+5])))
	p.State = State(int32(uint32(math.Float64bits(buf[i+6]))))
	return p
}

// Pack packs ps into a flat buffer of len(ps)*RecordLen words.
func Pack(ps []Particle) []float64 {
	buf := make([]float64, len(ps)*RecordLen)
	for i := range ps {
		ps[i].pack(buf[i*RecordLen:])
	}
	return buf
}

// Unpack is the inverse of Pack.
func Unpack(buf []float64) ([]Particle, error) {
	if len(buf)%RecordLen != 0 {
		return nil, fmt.Errorf("particle buffer has %d words, which isn't "+
			"a multiple of the record length %d", len(buf), RecordLen)
	}
	ps := make([]Particle, len(buf)/RecordLen)
	for i := range ps {
		ps[i] = unpack(buf[i*RecordLen:])
	}
	return ps, nil
}
