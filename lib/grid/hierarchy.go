package grid

import (
	"fmt"
)

// Level is a single refinement level of the hierarchy.
type Level struct {
	Geom Geometry
	BA   BoxArray
	DM   DistributionMap
}

// Hierarchy is the ordered list of levels. Level l+1 is RefRatio times finer
// than level l and is properly nested inside it. Level 0 covers the domain.
type Hierarchy struct {
	Levels   []*Level
	RefRatio int
	MaxLevel int
}

// NewHierarchy creates a hierarchy whose only level covers the domain with
// boxes of at most maxGridSize cells.
func NewHierarchy(
	p Provider, geom Geometry, maxGridSize, blocking, refRatio, maxLevel int,
) *Hierarchy {
	ba := Chop(geom.Domain, maxGridSize, blocking)
	dm := p.Partition(ba, nil)
	return &Hierarchy{[]*Level{{geom, ba, dm}}, refRatio, maxLevel}
}

// NumLevels returns the number of levels currently defined.
func (h *Hierarchy) NumLevels() int { return len(h.Levels) }

// Finest returns the index of the finest level.
func (h *Hierarchy) Finest() int { return len(h.Levels) - 1 }

// Validate checks the hierarchy's invariants: level 0 covers the domain,
// each finer level is inside the domain and covered by the level below it,
// and no two boxes on a level overlap.
func (h *Hierarchy) Validate() error {
	if len(h.Levels) == 0 {
		return fmt.Errorf("hierarchy has no levels")
	}

	for l, lev := range h.Levels {
		if len(lev.BA) != len(lev.DM) {
			return fmt.Errorf("level %d has %d boxes and %d owners",
				l, len(lev.BA), len(lev.DM))
		}
		for i := range lev.BA {
			if !lev.Geom.Domain.ContainsBox(lev.BA[i]) {
				return fmt.Errorf("level %d box %v leaves the domain %v",
					l, lev.BA[i], lev.Geom.Domain)
			}
			for j := i + 1; j < len(lev.BA); j++ {
				if _, ok := lev.BA[i].Intersect(lev.BA[j]); ok {
					return fmt.Errorf("level %d boxes %v and %v overlap",
						l, lev.BA[i], lev.BA[j])
				}
			}
		}

		if l == 0 {
			if lev.BA.NumCells() != lev.Geom.Domain.Volume() {
				return fmt.Errorf("level 0 covers %d of the domain's %d "+
					"cells", lev.BA.NumCells(), lev.Geom.Domain.Volume())
			}
			continue
		}

		coarse := h.Levels[l-1]
		for _, b := range lev.BA {
			if !coarse.BA.Covers(b.Coarsen(h.RefRatio)) {
				return fmt.Errorf("level %d box %v is not nested inside "+
					"level %d", l, b, l-1)
			}
		}
	}
	return nil
}
