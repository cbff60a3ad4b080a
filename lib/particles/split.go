package particles

import (
	"fmt"
	"sort"
)

// SplitScheme is a strategy for splitting a set of particles between a
// fixed number of destinations (ranks, files, output columns).
type SplitScheme interface {
	// Destinations returns the number of destinations.
	Destinations() int
	// Indices writes the transfer indices of ps. from[i][j] is the index
	// into ps of a particle that should be sent to destination i and
	// to[i][j] is that particle's index in destination i. The input
	// buffers are reused if they're large enough.
	Indices(ps []Particle, from, to [][]int) (fromOut, toOut [][]int, err error)
}

// resizeInts resizes an int buffer to have the specified length.
func resizeInts(x []int, n int) []int {
	if n := n - cap(x); n > 0 {
		x = append(x[:cap(x)], make([]int, n)...)
	}
	return x[:n]
}

// resetIndices returns from and to with one empty list per destination.
func resetIndices(n int, from, to [][]int) ([][]int, [][]int) {
	if len(from) != n {
		from = make([][]int, n)
	}
	if len(to) != n {
		to = make([][]int, n)
	}
	for i := range from {
		from[i] = from[i][:0]
		to[i] = to[i][:0]
	}
	return from, to
}

// RankSplit sends every particle to the rank which owns its position.
// Particles in destination blocks keep their relative order.
type RankSplit struct {
	Loc   Locator
	Ranks int
}

var (
	_ SplitScheme = &RankSplit{}
	_ SplitScheme = &IDSplit{}
)

func (s *RankSplit) Destinations() int { return s.Ranks }

func (s *RankSplit) Indices(
	ps []Particle, from, to [][]int,
) (fromOut, toOut [][]int, err error) {
	from, to = resetIndices(s.Ranks, from, to)
	for i := range ps {
		r, ok := s.Loc.Owner(ps[i].Pos)
		if !ok {
			return nil, nil, fmt.Errorf("particle %d at %v isn't covered "+
				"by any box", ps[i].ID, ps[i].Pos)
		} else if r < 0 || r >= s.Ranks {
			return nil, nil, fmt.Errorf("particle %d is owned by rank %d, "+
				"but there are %d ranks", ps[i].ID, r, s.Ranks)
		}
		to[r] = append(to[r], len(from[r]))
		from[r] = append(from[r], i)
	}
	return from, to, nil
}

// IDSplit sends every particle to a single destination in which particles
// are sorted by ID. It's used to build columns which don't depend on how
// particles are spread across ranks.
type IDSplit struct {
	// Order maps a particle ID onto its final index.
	Order map[int64]int
}

// NewIDSplit creates an IDSplit covering every particle in ranks.
func NewIDSplit(ranks [][]Particle) *IDSplit {
	ids := []int64{}
	for r := range ranks {
		for i := range ranks[r] {
			ids = append(ids, ranks[r][i].ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	order := make(map[int64]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	return &IDSplit{order}
}

func (s *IDSplit) Destinations() int { return 1 }

func (s *IDSplit) Indices(
	ps []Particle, from, to [][]int,
) (fromOut, toOut [][]int, err error) {
	from, to = resetIndices(1, from, to)
	from[0] = resizeInts(from[0], len(ps))
	to[0] = resizeInts(to[0], len(ps))
	for i := range ps {
		j, ok := s.Order[ps[i].ID]
		if !ok {
			return nil, nil, fmt.Errorf("particle ID %d wasn't part of "+
				"the ID ordering", ps[i].ID)
		}
		from[0][i], to[0][i] = i, j
	}
	return from, to, nil
}
