package grid

import (
	"strings"

	"github.com/phil-mansfield/cfdem/lib/comm"
)

// Provider is the narrow interface through which the rest of cfdem uses the
// distributed grid substrate. Every method is a collective over all ranks.
type Provider interface {
	// Ranks returns the number of ranks which own data.
	Ranks() int
	// Comm returns the communicator used for particle exchange.
	Comm() *comm.Comm
	// Partition assigns boxes to ranks. weights may be nil.
	Partition(ba BoxArray, weights []float64) DistributionMap
	// Alloc allocates a zeroed MultiFab.
	Alloc(ba BoxArray, dm DistributionMap, ncomp, nghost int) *MultiFab
	// FillBoundary fills ghost cells from neighbouring boxes and periodic
	// images.
	FillBoundary(mf *MultiFab, geom *Geometry)
	// SumBoundary adds ghost-cell contributions onto their owners.
	SumBoundary(mf *MultiFab, geom *Geometry)
	// ReduceMaxAbs returns the largest |x| of component c over valid cells.
	ReduceMaxAbs(mf *MultiFab, c int) float64
	// ReduceSum returns the sum of component c over valid cells.
	ReduceSum(mf *MultiFab, c int) float64
}

// LoadBalance selects the partitioning strategy of a Local provider.
type LoadBalance int

const (
	KnapSackBalance LoadBalance = iota
	RoundRobinBalance
)

// ParseLoadBalance converts a configuration name to a LoadBalance.
func ParseLoadBalance(name string) LoadBalance {
	if strings.EqualFold(strings.TrimSpace(name), "RoundRobin") {
		return RoundRobinBalance
	}
	return KnapSackBalance
}

// Local is a Provider whose ranks all live in the current process.
type Local struct {
	comm    *comm.Comm
	balance LoadBalance
}

var _ Provider = &Local{}

// NewLocal creates a provider with the given number of ranks.
func NewLocal(ranks int, balance LoadBalance) *Local {
	return &Local{comm.New(ranks), balance}
}

func (p *Local) Ranks() int       { return p.comm.Size() }
func (p *Local) Comm() *comm.Comm { return p.comm }

func (p *Local) Partition(ba BoxArray, weights []float64) DistributionMap {
	if p.balance == RoundRobinBalance {
		return RoundRobin(len(ba), p.Ranks())
	}
	if weights == nil {
		weights = make([]float64, len(ba))
	}
	// Every cell costs something, even without particles.
	w := make([]float64, len(ba))
	for i := range ba {
		w[i] = weights[i] + float64(ba[i].Volume())
	}
	return KnapSack(w, p.Ranks())
}

func (p *Local) Alloc(
	ba BoxArray, dm DistributionMap, ncomp, nghost int,
) *MultiFab {
	return NewMultiFab(ba, dm, ncomp, nghost)
}

func (p *Local) FillBoundary(mf *MultiFab, geom *Geometry) {
	mf.FillBoundary(geom)
}

func (p *Local) SumBoundary(mf *MultiFab, geom *Geometry) {
	mf.SumBoundary(geom)
}

func (p *Local) ReduceMaxAbs(mf *MultiFab, c int) float64 {
	partial := make([]float64, p.Ranks())
	for b, f := range mf.FABs {
		r := mf.DM[b]
		m := f.ValidMaxAbs(c)
		if m != m || m > partial[r] {
			partial[r] = m
		}
	}
	return p.comm.Allreduce_max(partial)
}

func (p *Local) ReduceSum(mf *MultiFab, c int) float64 {
	partial := make([]float64, p.Ranks())
	for b, f := range mf.FABs {
		partial[mf.DM[b]] += f.ValidSum(c)
	}
	return p.comm.Allreduce_sum(partial)
}
