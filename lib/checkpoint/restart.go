package checkpoint

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/phil-mansfield/cfdem/lib/compress"
	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

// ReplicationPolicy decides the boundary types of the outer faces of a
// replicated domain.
type ReplicationPolicy int

const (
	// Preserve keeps the boundary type of every face.
	Preserve ReplicationPolicy = iota
	// WallPolicy turns both faces of every replicated, non-periodic
	// dimension into walls.
	WallPolicy
)

// ParsePolicy converts a configuration name into a ReplicationPolicy.
func ParsePolicy(name string) (ReplicationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "preserve":
		return Preserve, nil
	case "wall":
		return WallPolicy, nil
	}
	return 0, errs.Configf("Domain", "ReplicationBCPolicy",
		"'%s' is not preserve or wall", name)
}

// Options controls how a bundle is loaded.
type Options struct {
	// Expect is the configured level 0 geometry. The checkpoint's domain
	// must match it. Nil skips the check.
	Expect *grid.Geometry
	// Replication tiles the domain Replication[d] times along d. The zero
	// value means no replication.
	Replication      [3]int
	Policy           ReplicationPolicy
	RemoveOutOfRange bool
}

func (opt *Options) factor() [3]int {
	if opt.Replication == [3]int{} {
		return [3]int{1, 1, 1}
	}
	return opt.Replication
}

// Replicated returns true if the options tile the domain.
func (opt *Options) Replicated() bool {
	return opt.factor() != [3]int{1, 1, 1}
}

// Snapshot is the state read from a bundle.
type Snapshot struct {
	Hierarchy *grid.Hierarchy
	Fields    *fields.State
	Particles *particles.Container
	Scalars   Scalars
	// LayoutKept is true if the hierarchy and its box owners are exactly
	// those of the bundle.
	LayoutKept bool
	// Replicated is true if the domain was tiled, in which case only level
	// 0 is defined and every geometry-dependent cache must be rebuilt.
	Replicated bool
}

// Restart reads the bundle in dir: the header first, then the hierarchy and
// its ownership, then the fields, the particles and the scalar state.
// Problems with the bundle's content are returned as
// errs.RestartMismatchError.
func Restart(dir string, p grid.Provider, opt Options) (*Snapshot, error) {
	factor := opt.factor()
	for d := 0; d < 3; d++ {
		if factor[d] < 1 {
			return nil, mismatch(dir, "replication factor %v is not "+
				"positive", factor)
		}
	}

	buf := compress.NewBuffer(0)
	hd, h, err := readHeader(dir, p, buf)
	if err != nil {
		return nil, err
	}
	if opt.Expect != nil {
		if err := checkGeometry(dir, &h.Levels[0].Geom, opt.Expect); err != nil {
			return nil, err
		}
	}

	s := fields.New(p, h)
	for l := range h.Levels {
		if err := readLevel(dir, s, l, buf); err != nil {
			return nil, err
		}
	}
	s.FillAll()
	s.Commit()

	ps, err := readParticles(dir, p, hd, opt.RemoveOutOfRange, buf)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Hierarchy: h, Fields: s, Particles: ps,
		Scalars:    Scalars{int(hd.Step), hd.Time, hd.Dt},
		LayoutKept: int(hd.Ranks) == p.Ranks() && !opt.Replicated(),
	}
	if opt.Replicated() {
		snap.replicate(p, factor, opt.Policy)
	}

	lev0 := snap.Hierarchy.Levels[0]
	loc := particles.NewBoxLocator(lev0)
	if _, err := snap.Particles.Redistribute(loc, &lev0.Geom); err != nil {
		return nil, fmt.Errorf("could not redistribute restarted "+
			"particles: %w", err)
	}
	if err := snap.Particles.Check(loc, &lev0.Geom); err != nil {
		return nil, mismatch(dir, "%s", err.Error())
	}
	return snap, nil
}

func mismatch(dir, format string, a ...interface{}) error {
	return &errs.RestartMismatchError{File: dir, Msg: fmt.Sprintf(format, a...)}
}

func openFile(dir, name string, buf *compress.Buffer) (*compress.Reader, error) {
	rd, err := compress.NewReader(filepath.Join(dir, name), buf)
	if err != nil {
		return nil, mismatch(dir, "%s", err.Error())
	}
	return rd, nil
}

func readHeader(
	dir string, p grid.Provider, buf *compress.Buffer,
) (*FixedWidthHeader, *grid.Hierarchy, error) {
	rd, err := openFile(dir, HeaderFile, buf)
	if err != nil {
		return nil, nil, err
	}
	defer rd.Close()

	hd := &FixedWidthHeader{}
	if err := rd.ReadMeta(hd); err != nil {
		return nil, nil, mismatch(dir, "%s", err.Error())
	}
	if hd.Levels < 1 {
		return nil, nil, mismatch(dir, "header lists %d levels", hd.Levels)
	}

	x, err := rd.ReadField("var_comps")
	if err != nil {
		return nil, nil, mismatch(dir, "%s", err.Error())
	}
	comps, _ := x.([]int32)
	if len(comps) != int(fields.NumVars) {
		return nil, nil, mismatch(dir, "checkpoint has %d field variables, "+
			"expected %d", len(comps), fields.NumVars)
	}
	for v := fields.Var(0); v < fields.NumVars; v++ {
		if int(comps[v]) != v.NComp() {
			return nil, nil, mismatch(dir, "field %s has %d components, "+
				"expected %d", v, comps[v], v.NComp())
		}
	}

	geom := grid.Geometry{
		ProbLo: hd.ProbLo, ProbHi: hd.ProbHi,
		InflowVelocity: hd.InflowVelocity,
	}
	for d := 0; d < 3; d++ {
		geom.Domain.Origin[d] = int(hd.DomainLo[d])
		geom.Domain.Width[d] = int(hd.DomainWidth[d])
		geom.Faces[d] = [2]grid.BC{grid.BC(hd.Faces[d][0]),
			grid.BC(hd.Faces[d][1])}
	}

	h := &grid.Hierarchy{RefRatio: int(hd.RefRatio), MaxLevel: int(hd.MaxLevel)}
	for l := 0; l < int(hd.Levels); l++ {
		if l > 0 {
			geom = geom.Refine(h.RefRatio)
		}
		lev, err := readLevelLayout(rd, l, geom, hd, p)
		if err != nil {
			return nil, nil, mismatch(dir, "%s", err.Error())
		}
		h.Levels = append(h.Levels, lev)
	}

	if err := h.Validate(); err != nil {
		return nil, nil, mismatch(dir, "%s", err.Error())
	}
	return hd, h, nil
}

// readLevelLayout reads the boxes of level l. Box owners are kept when the
// checkpoint was written with the current number of ranks; otherwise the
// boxes are repartitioned.
func readLevelLayout(
	rd *compress.Reader, l int, geom grid.Geometry,
	hd *FixedWidthHeader, p grid.Provider,
) (*grid.Level, error) {
	x, err := rd.ReadField(boxesName(l))
	if err != nil {
		return nil, err
	}
	boxes, _ := x.([]int64)
	if len(boxes)%6 != 0 {
		return nil, fmt.Errorf("level %d box list has %d entries", l, len(boxes))
	}

	lev := &grid.Level{Geom: geom, BA: make(grid.BoxArray, len(boxes)/6)}
	for i := range lev.BA {
		b := boxes[6*i : 6*i+6]
		lev.BA[i] = grid.Box{
			Origin: [3]int{int(b[0]), int(b[1]), int(b[2])},
			Width:  [3]int{int(b[3]), int(b[4]), int(b[5])},
		}
	}

	if int(hd.Ranks) != p.Ranks() {
		lev.DM = p.Partition(lev.BA, nil)
		return lev, nil
	}

	x, err = rd.ReadField(ownersName(l))
	if err != nil {
		return nil, err
	}
	owners, _ := x.([]int64)
	if len(owners) != len(lev.BA) {
		return nil, fmt.Errorf("level %d has %d boxes and %d owners",
			l, len(lev.BA), len(owners))
	}
	lev.DM = make(grid.DistributionMap, len(owners))
	for i := range owners {
		if owners[i] < 0 || int(owners[i]) >= p.Ranks() {
			return nil, fmt.Errorf("level %d box %d is owned by rank %d",
				l, i, owners[i])
		}
		lev.DM[i] = int(owners[i])
	}
	return lev, nil
}

func checkGeometry(dir string, got, want *grid.Geometry) error {
	if got.Domain != want.Domain {
		return mismatch(dir, "checkpoint domain is %v, but the "+
			"configuration has %v", got.Domain, want.Domain)
	}
	for d := 0; d < 3; d++ {
		if !closeTo(got.ProbLo[d], want.ProbLo[d]) ||
			!closeTo(got.ProbHi[d], want.ProbHi[d]) {
			return mismatch(dir, "checkpoint covers %v to %v, but the "+
				"configuration covers %v to %v", got.ProbLo, got.ProbHi,
				want.ProbLo, want.ProbHi)
		}
		if got.IsPeriodic(d) != want.IsPeriodic(d) {
			return mismatch(dir, "checkpoint and configuration disagree on "+
				"the periodicity of dimension %d", d)
		}
	}
	return nil
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func readLevel(dir string, s *fields.State, l int, buf *compress.Buffer) error {
	rd, err := openFile(dir, LevelFile(l), buf)
	if err != nil {
		return err
	}
	defer rd.Close()

	for v := fields.Var(0); v < fields.NumVars; v++ {
		for b, f := range s.Get(l, v).FABs {
			name := fieldName(v, b)
			x, err := rd.ReadField(name)
			if err != nil {
				return mismatch(dir, "%s", err.Error())
			}
			arr, ok := x.([]float64)
			if !ok || len(arr) != f.NComp*f.Valid.Volume() {
				return mismatch(dir, "field %s on level %d has the wrong "+
					"size for box %v", name, l, f.Valid)
			}
			unpackFAB(arr, f)
		}
	}
	return nil
}

func readParticles(
	dir string, p grid.Provider, hd *FixedWidthHeader,
	removeOutOfRange bool, buf *compress.Buffer,
) (*particles.Container, error) {
	rd, err := openFile(dir, ParticleFile, buf)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	phd := &particleHeader{}
	if err := rd.ReadMeta(phd); err != nil {
		return nil, mismatch(dir, "%s", err.Error())
	}

	cols := particles.Fields{}
	for _, name := range particles.ColumnNames() {
		x, err := rd.ReadField(name)
		if err != nil {
			return nil, mismatch(dir, "%s", err.Error())
		}
		switch x := x.(type) {
		case []float64:
			cols[name] = particles.NewFloat64(name, x)
		case []int64:
			cols[name] = particles.NewInt64(name, x)
		case []int32:
			cols[name] = particles.NewInt32(name, x)
		}
	}

	all, err := particles.FromColumns(cols)
	if err != nil {
		return nil, mismatch(dir, "%s", err.Error())
	}
	if int64(len(all)) != phd.N || phd.N != hd.Particles {
		return nil, mismatch(dir, "header lists %d particles, but the "+
			"particle file has %d", hd.Particles, len(all))
	}

	ps := particles.NewContainer(p.Comm(), removeOutOfRange)
	ps.SetAll(all)
	ps.SetNextID(phd.NextID)
	return ps, nil
}

// replicate tiles level 0 of the snapshot. Finer levels are dropped and are
// rebuilt by the next regrid.
func (snap *Snapshot) replicate(
	p grid.Provider, factor [3]int, policy ReplicationPolicy,
) {
	old := snap.Hierarchy.Levels[0]
	geom := old.Geom
	length := geom.Length()
	n := geom.Domain.Width

	for d := 0; d < 3; d++ {
		geom.Domain.Width[d] *= factor[d]
		geom.ProbHi[d] = geom.ProbLo[d] + length[d]*float64(factor[d])
		if policy == WallPolicy && factor[d] > 1 && !geom.IsPeriodic(d) {
			geom.Faces[d] = [2]grid.BC{grid.Wall, grid.Wall}
		}
	}

	var ba grid.BoxArray
	var shifts [][3]int
	var src []int
	for tz := 0; tz < factor[2]; tz++ {
		for ty := 0; ty < factor[1]; ty++ {
			for tx := 0; tx < factor[0]; tx++ {
				s := [3]int{tx * n[0], ty * n[1], tz * n[2]}
				for b := range old.BA {
					ba = append(ba, old.BA[b].Shift(s))
					shifts = append(shifts, s)
					src = append(src, b)
				}
			}
		}
	}

	lev := &grid.Level{Geom: geom, BA: ba, DM: p.Partition(ba, nil)}
	h := &grid.Hierarchy{Levels: []*grid.Level{lev},
		RefRatio: snap.Hierarchy.RefRatio, MaxLevel: snap.Hierarchy.MaxLevel}

	s := fields.New(p, h)
	for v := fields.Var(0); v < fields.NumVars; v++ {
		from, to := snap.Fields.Get(0, v), s.Get(0, v)
		for b, f := range to.FABs {
			g, sh := from.FABs[src[b]], shifts[b]
			for c := 0; c < f.NComp; c++ {
				g.Valid.ForEach(func(i, j, k int) {
					f.Set(i+sh[0], j+sh[1], k+sh[2], c, g.Get(i, j, k, c))
				})
			}
		}
	}
	s.FillAll()
	s.Commit()

	snap.Particles.Replicate(factor, length)
	snap.Hierarchy, snap.Fields, snap.Replicated = h, s, true
}
