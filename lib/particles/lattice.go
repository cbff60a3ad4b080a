package particles

import (
	"math"
	"math/rand/v2"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/eb"
	"github.com/phil-mansfield/cfdem/lib/grid"
)

// Lattice is an interface for mapping lattice site numbers to their 3D index
// on a regular lattice of candidate particle positions.
type Lattice interface {
	// SiteToIndex converts a site number to its 3-index.
	SiteToIndex(site uint64) [3]int
	// IndexToSite converts a 3-index to its site number.
	IndexToSite(i [3]int) uint64
	// Span returns the number of sites along each dimension.
	Span() [3]int
}

// Type assertions
var (
	_ Lattice = &ZMajorLattice{}
)

// ZMajorLattice is a lattice whose sites are numbered with z varying
// slowest, so that filling sites in order fills the domain from the bottom
// up. See the Lattice interface for documentation of the methods.
type ZMajorLattice struct {
	n [3]int
}

// NewZMajorLattice returns a lattice with n[d] sites along dimension d.
func NewZMajorLattice(n [3]int) *ZMajorLattice { return &ZMajorLattice{n} }

func (g *ZMajorLattice) SiteToIndex(site uint64) [3]int {
	nx, ny := uint64(g.n[0]), uint64(g.n[1])
	return [3]int{
		int(site % nx),
		int((site / nx) % ny),
		int(site / (nx * ny)),
	}
}

func (g *ZMajorLattice) IndexToSite(i [3]int) uint64 {
	return uint64(i[0] + i[1]*g.n[0] + i[2]*g.n[0]*g.n[1])
}

func (g *ZMajorLattice) Span() [3]int { return g.n }

// Generator places particles of a single size on a lattice inside the
// fluid region of the domain. Each particle is jittered by a deterministic
// random offset which keeps it inside its lattice cell.
type Generator struct {
	Count    int
	Diameter float64
	Density  float64
	Seed     uint64
}

// NewGenerator reads the automatic initialisation parameters from c.
func NewGenerator(c *config.ParticlesConfig) *Generator {
	return &Generator{c.AutoCount, c.AutoDiameter, c.AutoDensity, uint64(c.Seed)}
}

// Generate returns up to g.Count particles. Lattice sites whose particles
// would touch a wall of walls (which may be nil) or a non-periodic domain
// face are skipped.
func (g *Generator) Generate(geom *grid.Geometry, walls *eb.Level) []Particle {
	if g.Count <= 0 {
		return nil
	}
	L := geom.Length()
	r := g.Diameter / 2

	// Spacing of 1.1 diameters leaves room for the jitter.
	spacing := 1.1 * g.Diameter
	var n [3]int
	for d := 0; d < 3; d++ {
		n[d] = int(math.Floor(L[d] / spacing))
		if n[d] < 1 {
			n[d] = 1
		}
	}
	lattice := NewZMajorLattice(n)
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))

	out := []Particle{}
	sites := uint64(n[0] * n[1] * n[2])
	for site := uint64(0); site < sites && len(out) < g.Count; site++ {
		idx := lattice.SiteToIndex(site)
		var x [3]float64
		for d := 0; d < 3; d++ {
			cell := L[d] / float64(n[d])
			slack := math.Max(cell-g.Diameter, 0)
			x[d] = geom.ProbLo[d] + float64(idx[d])*cell + cell/2 +
				(rng.Float64()-0.5)*slack
		}
		if !fits(x, r, geom, walls) {
			continue
		}
		out = append(out, New(x, [3]float64{}, r, g.Density, 0))
	}
	return out
}

func fits(x [3]float64, r float64, geom *grid.Geometry, walls *eb.Level) bool {
	for d := 0; d < 3; d++ {
		if geom.IsPeriodic(d) {
			continue
		}
		if x[d]-r < geom.ProbLo[d] || x[d]+r > geom.ProbHi[d] {
			return false
		}
	}
	if walls != nil {
		if phi, _ := walls.Distance(x); phi < r {
			return false
		}
	}
	return true
}
