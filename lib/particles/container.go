package particles

import (
	"fmt"
	"math"
	"sort"

	"github.com/phil-mansfield/cfdem/lib/comm"
	"github.com/phil-mansfield/cfdem/lib/grid"
)

// Locator finds the rank which owns a point.
type Locator interface {
	// Owner returns the owning rank of x and false if no box contains it.
	Owner(x [3]float64) (rank int, ok bool)
}

// BoxLocator locates points using the boxes of one grid level.
type BoxLocator struct {
	Geom grid.Geometry
	BA   grid.BoxArray
	DM   grid.DistributionMap
}

var _ Locator = &BoxLocator{}

// NewBoxLocator returns a locator for the boxes of lev.
func NewBoxLocator(lev *grid.Level) *BoxLocator {
	return &BoxLocator{lev.Geom, lev.BA, lev.DM}
}

func (l *BoxLocator) Owner(x [3]float64) (int, bool) {
	c := l.Geom.CellIndex(x)
	b := l.BA.Locate(c[0], c[1], c[2])
	if b < 0 {
		return -1, false
	}
	return l.DM[b], true
}

// Container holds the particles owned by every rank.
type Container struct {
	comm   *comm.Comm
	ranks  [][]Particle
	nextID int64
	// RemoveOutOfRange removes particles which leave the domain. Otherwise
	// they're moved back to the nearest point inside it.
	RemoveOutOfRange bool
}

// NewContainer creates an empty container with one particle list per rank
// of c.
func NewContainer(c *comm.Comm, removeOutOfRange bool) *Container {
	return &Container{
		comm: c, ranks: make([][]Particle, c.Size()), nextID: 1,
		RemoveOutOfRange: removeOutOfRange,
	}
}

// Comm returns the communicator the container exchanges particles over.
func (c *Container) Comm() *comm.Comm { return c.comm }

// NumRanks returns the number of ranks.
func (c *Container) NumRanks() int { return len(c.ranks) }

// Rank returns the particles owned by rank r. The slice may be modified in
// place, but particles must only be added through Add.
func (c *Container) Rank(r int) []Particle { return c.ranks[r] }

// NextID returns the ID which will be given to the next new particle.
func (c *Container) NextID() int64 { return c.nextID }

// SetNextID raises the ID given to the next new particle to at least id.
func (c *Container) SetNextID(id int64) {
	if id > c.nextID {
		c.nextID = id
	}
}

// Add adds p to rank r. Particles with a non-positive ID are given a new
// one. The particle's ID is returned.
func (c *Container) Add(r int, p Particle) int64 {
	if p.ID <= 0 {
		p.ID = c.nextID
	}
	if p.ID >= c.nextID {
		c.nextID = p.ID + 1
	}
	c.ranks[r] = append(c.ranks[r], p)
	return p.ID
}

// Clear removes every particle. IDs aren't reused.
func (c *Container) Clear() {
	for r := range c.ranks {
		c.ranks[r] = c.ranks[r][:0]
	}
}

// Len returns the total number of particles.
func (c *Container) Len() int {
	n := 0
	for r := range c.ranks {
		n += len(c.ranks[r])
	}
	return n
}

// ForEach calls f on every particle, rank by rank.
func (c *Container) ForEach(f func(rank int, p *Particle)) {
	for r := range c.ranks {
		for i := range c.ranks[r] {
			f(r, &c.ranks[r][i])
		}
	}
}

// All returns a copy of every particle sorted by ID.
func (c *Container) All() []Particle {
	out := make([]Particle, 0, c.Len())
	for r := range c.ranks {
		out = append(out, c.ranks[r]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts returns the number of particles on each rank.
func (c *Container) Counts() []int {
	n := make([]int, len(c.ranks))
	for r := range c.ranks {
		n[r] = len(c.ranks[r])
	}
	return n
}

// Redistribute wraps particles through periodic faces, removes or clamps
// particles which have left the domain, and sends every remaining particle
// to the rank which owns its position. It returns the number of particles
// removed.
func (c *Container) Redistribute(loc Locator, geom *grid.Geometry) (int, error) {
	removed := make([]int64, len(c.ranks))
	for r := range c.ranks {
		kept := c.ranks[r][:0]
		for _, p := range c.ranks[r] {
			p.Pos = geom.Wrap(p.Pos)
			if p.State == Exiting || !geom.InDomain(p.Pos) {
				if c.RemoveOutOfRange {
					removed[r]++
					continue
				}
				clampInside(&p, geom)
				p.State = Active
			}
			kept = append(kept, p)
		}
		c.ranks[r] = kept
	}

	scheme := &RankSplit{loc, len(c.ranks)}
	send := make([][]float64, len(c.ranks))
	sendCounts := make([][]int, len(c.ranks))
	sendDisp := make([][]int, len(c.ranks))
	var from, to [][]int
	var err error

	for r := range c.ranks {
		from, to, err = scheme.Indices(c.ranks[r], from, to)
		if err != nil {
			return 0, err
		}
		sendCounts[r] = make([]int, len(c.ranks))
		send[r] = make([]float64, len(c.ranks[r])*RecordLen)
		n := 0
		for q := range from {
			sendCounts[r][q] = len(from[q]) * RecordLen
			for _, i := range from[q] {
				c.ranks[r][i].pack(send[r][n*RecordLen:])
				n++
			}
		}
		sendDisp[r] = comm.Displacements(sendCounts[r])
	}

	recv, _, _ := c.comm.Alltoallv_float64(send, sendCounts, sendDisp)
	for q := range recv {
		ps, err := Unpack(recv[q])
		if err != nil {
			return 0, err
		}
		sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
		c.ranks[q] = ps
	}

	return int(c.comm.Allreduce_sum_int64(removed)), nil
}

// clampInside moves p to the nearest point inside the domain which is at
// least one radius from every face it crossed and stops its motion through
// those faces.
func clampInside(p *Particle, geom *grid.Geometry) {
	for d := 0; d < 3; d++ {
		lo, hi := geom.ProbLo[d], geom.ProbHi[d]
		r := math.Min(p.Radius, (hi-lo)/2)
		if p.Pos[d] < lo {
			p.Pos[d] = lo + r
			p.Vel[d] = 0
		} else if p.Pos[d] >= hi {
			p.Pos[d] = hi - r
			p.Vel[d] = 0
		}
	}
}

// Check verifies that every particle is inside the domain, is owned by the
// rank whose boxes contain it, and has a unique ID.
func (c *Container) Check(loc Locator, geom *grid.Geometry) error {
	seen := make(map[int64]int, c.Len())
	for r := range c.ranks {
		for _, p := range c.ranks[r] {
			if !geom.InDomain(p.Pos) {
				return fmt.Errorf("particle %d at %v is outside the domain",
					p.ID, p.Pos)
			}
			owner, ok := loc.Owner(p.Pos)
			if !ok || owner != r {
				return fmt.Errorf("particle %d at %v is on rank %d, but "+
					"is owned by rank %d", p.ID, p.Pos, r, owner)
			}
			if prev, ok := seen[p.ID]; ok {
				return fmt.Errorf("particle ID %d is on both rank %d and "+
					"rank %d", p.ID, prev, r)
			}
			seen[p.ID] = r
		}
	}
	return nil
}

// Replicate tiles the particles factor[d] times along each dimension, where
// length is the extent of the original domain. The original particles keep
// their IDs and every copy gets a new one. Copies stay on the rank of their
// original until the next Redistribute.
func (c *Container) Replicate(factor [3]int, length [3]float64) {
	for r := range c.ranks {
		orig := append([]Particle(nil), c.ranks[r]...)
		sort.Slice(orig, func(i, j int) bool { return orig[i].ID < orig[j].ID })
		for tz := 0; tz < factor[2]; tz++ {
			for ty := 0; ty < factor[1]; ty++ {
				for tx := 0; tx < factor[0]; tx++ {
					if tx == 0 && ty == 0 && tz == 0 {
						continue
					}
					shift := [3]float64{
						float64(tx) * length[0], float64(ty) * length[1],
						float64(tz) * length[2],
					}
					for _, p := range orig {
						for d := 0; d < 3; d++ {
							p.Pos[d] += shift[d]
						}
						p.ID = 0
						c.Add(r, p)
					}
				}
			}
		}
	}
}

// SetAll replaces the contents of the container with ps, placed on rank 0.
// Call Redistribute afterwards to move them to their owners.
func (c *Container) SetAll(ps []Particle) {
	c.Clear()
	for _, p := range ps {
		c.Add(0, p)
	}
}
