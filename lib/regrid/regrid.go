/*package regrid rebuilds the grid hierarchy and everything defined on it.

A regrid tags level 0 cells which need refinement, builds finer levels out of
blocks around the tags, partitions the new boxes over ranks, and then moves
the fields, the embedded boundary and the particles onto the new layout. The
caller must not touch the old state once Regrid has returned successfully.
*/
package regrid

import (
	"fmt"
	"sort"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/eb"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

// Phase is the state of a Manager.
type Phase int

const (
	Stable Phase = iota
	Rebuilding
)

func (p Phase) String() string {
	if p == Rebuilding {
		return "rebuilding"
	}
	return "stable"
}

// Manager decides when to regrid and performs regrids.
type Manager struct {
	P       grid.Provider
	Builder eb.Builder

	// Interval is the number of steps between regrids. Regrids only happen
	// on request if it's negative.
	Interval    int
	MaxGridSize int
	Blocking    int
	RefRatio    int
	MaxLevel    int

	// TagSolidsFraction tags cells where 1 - ep_g exceeds it.
	TagSolidsFraction float64
	// TagWallDistance tags cells within this many cell widths of an
	// embedded wall. Zero disables wall tagging.
	TagWallDistance float64

	phase Phase
}

// New creates a Manager from the [Amr] and [Regrid] sections.
func New(
	p grid.Provider, b eb.Builder, amr *config.AmrConfig, rc *config.RegridConfig,
) *Manager {
	return &Manager{
		P: p, Builder: b,
		Interval: amr.RegridInt, MaxGridSize: amr.MaxGridSize,
		Blocking: amr.BlockingFactor, RefRatio: amr.RefRatio,
		MaxLevel:          amr.MaxLevel,
		TagSolidsFraction: rc.TagSolidsFraction,
		TagWallDistance:   rc.TagWallDistance,
	}
}

// Phase returns the current phase of the manager.
func (m *Manager) Phase() Phase { return m.phase }

// Due returns true if a regrid should happen before step.
func (m *Manager) Due(step int) bool {
	return m.Interval > 0 && step > 0 && step%m.Interval == 0
}

// Input is the live state being regridded.
type Input struct {
	Fields    *fields.State
	EB        *eb.Store
	Particles *particles.Container
}

// Result is the state on the new hierarchy.
type Result struct {
	Hierarchy *grid.Hierarchy
	Fields    *fields.State
	EB        *eb.Store
	Stats     Stats
}

// Stats describes a regrid.
type Stats struct {
	Before, After Totals
	Levels        [2]int
	Boxes         [2]int
	// Removed is the number of particles dropped because they were outside
	// the domain.
	Removed int
}

// Regrid builds a new hierarchy for the current state and moves every field,
// the embedded boundary and the particles onto it. The old EB store is
// invalidated. Particles are redistributed in place.
func (m *Manager) Regrid(in Input) (*Result, error) {
	if m.phase == Rebuilding {
		return nil, fmt.Errorf("regrid started while another is in progress")
	}
	m.phase = Rebuilding
	defer func() { m.phase = Stable }()

	old := in.Fields.Hierarchy()
	res := &Result{}
	res.Stats.Before = Measure(m.P, in.Fields, in.Particles)
	res.Stats.Levels[0], res.Stats.Boxes[0] = old.NumLevels(), countBoxes(old)

	h, err := m.Build(in.Fields, in.EB, in.Particles)
	if err != nil {
		return nil, err
	}

	res.Hierarchy = h
	res.Fields = in.Fields.Remap(h)
	res.EB = eb.Build(m.Builder, h, in.EB.FluidShape, in.EB.ParticleShape)
	in.EB.Invalidate()

	lev0 := h.Levels[0]
	removed, err := in.Particles.Redistribute(
		particles.NewBoxLocator(lev0), &lev0.Geom)
	if err != nil {
		return nil, fmt.Errorf("could not redistribute particles: %w", err)
	}
	res.Stats.Removed = removed
	if err := in.Particles.Check(particles.NewBoxLocator(lev0),
		&lev0.Geom); err != nil {
		return nil, err
	}

	res.Stats.After = Measure(m.P, res.Fields, in.Particles)
	res.Stats.Levels[1], res.Stats.Boxes[1] = h.NumLevels(), countBoxes(h)
	return res, nil
}

// Build returns the hierarchy the current state should live on. Level 0
// keeps its domain; finer levels are made of blocks around tagged cells.
func (m *Manager) Build(
	s *fields.State, store *eb.Store, ps *particles.Container,
) (*grid.Hierarchy, error) {
	old := s.Hierarchy()
	geom := old.Levels[0].Geom

	ba := grid.Chop(geom.Domain, m.MaxGridSize, m.Blocking)
	lev0 := &grid.Level{Geom: geom, BA: ba}
	lev0.DM = m.P.Partition(ba, particleWeights(ps, lev0))
	h := &grid.Hierarchy{Levels: []*grid.Level{lev0}, RefRatio: m.RefRatio,
		MaxLevel: m.MaxLevel}

	tg := newTagger(m, s, store)
	ratio := 1
	for l := 0; l < m.MaxLevel; l++ {
		coarse := h.Levels[l]
		blocks := tg.blocks(coarse, ratio, m.blockSize())
		if len(blocks) == 0 {
			break
		}
		ratio *= m.RefRatio

		fine := &grid.Level{Geom: coarse.Geom.Refine(m.RefRatio)}
		fine.BA = m.fineBoxes(blocks, coarse.BA)
		fine.DM = m.P.Partition(fine.BA, particleWeights(ps, fine))
		h.Levels = append(h.Levels, fine)
	}

	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("regrid built an invalid hierarchy: %w", err)
	}
	return h, nil
}

// blockSize is the width of tagging blocks in coarse cells, chosen so that
// refined blocks are multiples of the blocking factor.
func (m *Manager) blockSize() int {
	b := m.Blocking / m.RefRatio
	if b < 1 {
		b = 1
	}
	return b
}

// fineBoxes intersects every tagged block with the coarse boxes, refines
// the pieces and merges runs along x.
func (m *Manager) fineBoxes(blocks []grid.Box, coarse grid.BoxArray) grid.BoxArray {
	var pieces grid.BoxArray
	for _, b := range blocks {
		for _, cb := range coarse {
			if p, ok := b.Intersect(cb); ok {
				pieces = append(pieces, p.Refine(m.RefRatio))
			}
		}
	}
	return mergeX(pieces, m.MaxGridSize)
}

// mergeX joins boxes which are adjacent along x and share their y-z
// footprint, as long as the result is no wider than maxSize.
func mergeX(ba grid.BoxArray, maxSize int) grid.BoxArray {
	sort.Slice(ba, func(a, b int) bool {
		oa, ob := ba[a].Origin, ba[b].Origin
		if oa[2] != ob[2] {
			return oa[2] < ob[2]
		} else if oa[1] != ob[1] {
			return oa[1] < ob[1]
		}
		return oa[0] < ob[0]
	})

	out := grid.BoxArray{}
	for _, b := range ba {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Origin[1] == b.Origin[1] && last.Origin[2] == b.Origin[2] &&
				last.Width[1] == b.Width[1] && last.Width[2] == b.Width[2] &&
				last.Hi()[0] == b.Origin[0] &&
				last.Width[0]+b.Width[0] <= maxSize {
				last.Width[0] += b.Width[0]
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// particleWeights counts the particles whose cell on lev falls in each box.
func particleWeights(ps *particles.Container, lev *grid.Level) []float64 {
	w := make([]float64, len(lev.BA))
	if ps == nil {
		return w
	}
	ps.ForEach(func(_ int, p *particles.Particle) {
		c := lev.Geom.CellIndex(p.Pos)
		if b := lev.BA.Locate(c[0], c[1], c[2]); b >= 0 {
			w[b]++
		}
	})
	return w
}

func countBoxes(h *grid.Hierarchy) int {
	n := 0
	for _, lev := range h.Levels {
		n += len(lev.BA)
	}
	return n
}
