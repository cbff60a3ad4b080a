/*package eb describes the embedded boundary (the walls of the vessel the gas
and particles live in) through signed distance functions. Distances are
positive in the fluid and negative inside walls.
*/
package eb

import (
	"fmt"
	"math"
	"strings"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/grid"
)

// Shape is a signed distance function. The set of shapes is closed: only
// the types in this file implement it.
type Shape interface {
	// SignedDistance returns the distance from x to the nearest wall,
	// positive if x is in the fluid.
	SignedDistance(x [3]float64) float64
	String() string
	isShape()
}

// NoWalls is a shape with no embedded boundary at all.
type NoWalls struct{}

// BoxShape is a rectangular vessel. The fluid is inside it unless Invert
// is set.
type BoxShape struct {
	Lo, Hi [3]float64
	Invert bool
}

// Cylinder is a cylindrical vessel aligned with Axis. The fluid is inside
// it unless Invert is set.
type Cylinder struct {
	Center [3]float64
	Radius float64
	Axis   int
	Invert bool
}

// Sphere is a spherical vessel. With Invert set it's a spherical obstacle.
type Sphere struct {
	Center [3]float64
	Radius float64
	Invert bool
}

// Plane is a flat wall through Point. The fluid is on the side Normal
// points towards.
type Plane struct {
	Point, Normal [3]float64
}

// Intersection is the region which is in the fluid of every member shape.
type Intersection []Shape

var (
	_ Shape = NoWalls{}
	_ Shape = &BoxShape{}
	_ Shape = &Cylinder{}
	_ Shape = &Sphere{}
	_ Shape = &Plane{}
	_ Shape = Intersection{}
)

// farAway is returned by shapes without walls.
const farAway = 1e30

func (NoWalls) SignedDistance(x [3]float64) float64 { return farAway }
func (NoWalls) String() string                      { return "none" }
func (NoWalls) isShape()                            {}

func (b *BoxShape) SignedDistance(x [3]float64) float64 {
	// Distance to the nearest face when inside, Euclidean distance to the
	// box when outside.
	inside := math.Inf(+1)
	outside2 := 0.0
	in := true
	for d := 0; d < 3; d++ {
		lo, hi := x[d]-b.Lo[d], b.Hi[d]-x[d]
		inside = math.Min(inside, math.Min(lo, hi))
		if lo < 0 {
			outside2 += lo * lo
			in = false
		} else if hi < 0 {
			outside2 += hi * hi
			in = false
		}
	}
	dist := inside
	if !in {
		dist = -math.Sqrt(outside2)
	}
	if b.Invert {
		return -dist
	}
	return dist
}
func (b *BoxShape) String() string {
	return fmt.Sprintf("box(%v, %v, invert=%v)", b.Lo, b.Hi, b.Invert)
}
func (*BoxShape) isShape() {}

func (c *Cylinder) SignedDistance(x [3]float64) float64 {
	r2 := 0.0
	for d := 0; d < 3; d++ {
		if d == c.Axis {
			continue
		}
		dx := x[d] - c.Center[d]
		r2 += dx * dx
	}
	dist := c.Radius - math.Sqrt(r2)
	if c.Invert {
		return -dist
	}
	return dist
}
func (c *Cylinder) String() string {
	return fmt.Sprintf("cylinder(%v, r=%g, axis=%d, invert=%v)",
		c.Center, c.Radius, c.Axis, c.Invert)
}
func (*Cylinder) isShape() {}

func (s *Sphere) SignedDistance(x [3]float64) float64 {
	r2 := 0.0
	for d := 0; d < 3; d++ {
		dx := x[d] - s.Center[d]
		r2 += dx * dx
	}
	dist := s.Radius - math.Sqrt(r2)
	if s.Invert {
		return -dist
	}
	return dist
}
func (s *Sphere) String() string {
	return fmt.Sprintf("sphere(%v, r=%g, invert=%v)", s.Center, s.Radius,
		s.Invert)
}
func (*Sphere) isShape() {}

func (p *Plane) SignedDistance(x [3]float64) float64 {
	norm := math.Sqrt(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] +
		p.Normal[2]*p.Normal[2])
	dist := 0.0
	for d := 0; d < 3; d++ {
		dist += (x[d] - p.Point[d]) * p.Normal[d]
	}
	return dist / norm
}
func (p *Plane) String() string {
	return fmt.Sprintf("plane(%v, n=%v)", p.Point, p.Normal)
}
func (*Plane) isShape() {}

func (in Intersection) SignedDistance(x [3]float64) float64 {
	dist := farAway
	for _, s := range in {
		dist = math.Min(dist, s.SignedDistance(x))
	}
	return dist
}
func (in Intersection) String() string {
	names := make([]string, len(in))
	for i := range in {
		names[i] = in[i].String()
	}
	return "intersection(" + strings.Join(names, ", ") + ")"
}
func (Intersection) isShape() {}

// FromConfig creates the fluid shape described by the [Geometry] section.
func FromConfig(c *config.GeometryConfig) Shape {
	axis := config.Index(c.Axis, config.Axes)
	center := [3]float64{c.CenterX, c.CenterY, c.CenterZ}
	switch strings.ToLower(c.Shape) {
	case "box":
		return &BoxShape{[3]float64{c.LoX, c.LoY, c.LoZ},
			[3]float64{c.HiX, c.HiY, c.HiZ}, c.Invert}
	case "cylinder":
		return &Cylinder{center, c.Radius, axis, c.Invert}
	case "sphere":
		return &Sphere{center, c.Radius, c.Invert}
	}
	return NoWalls{}
}

// ParticleShape returns the shape seen by particles: the fluid shape plus,
// if inflowWalls is set, a virtual wall over every inflow face of the
// domain so particles can't leave through them.
func ParticleShape(fluid Shape, geom *grid.Geometry, inflowWalls bool) Shape {
	if !inflowWalls {
		return fluid
	}
	walls := Intersection{}
	if _, ok := fluid.(NoWalls); !ok {
		walls = append(walls, fluid)
	}
	for d := 0; d < 3; d++ {
		for side := 0; side < 2; side++ {
			if geom.Faces[d][side] != grid.Inflow {
				continue
			}
			p := &Plane{}
			if side == 0 {
				p.Point[d], p.Normal[d] = geom.ProbLo[d], +1
			} else {
				p.Point[d], p.Normal[d] = geom.ProbHi[d], -1
			}
			walls = append(walls, p)
		}
	}
	if len(walls) == 0 {
		return NoWalls{}
	}
	if len(walls) == 1 {
		return walls[0]
	}
	return walls
}
