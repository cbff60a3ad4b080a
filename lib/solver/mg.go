/*package solver contains cfdem's linear solvers: a matrix-free geometric
multigrid method and the projection and diffusion solves built on top of it.

Every operator is symmetric positive (semi-)definite and acts on a flat
array spanning the whole domain. Unknowns the operator doesn't solve for
(Dirichlet nodes, cells covered by walls) are identity rows whose right
hand side is zero.
*/
package solver

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/errs"
)

// Operator is a linear operator on a single multigrid level.
type Operator interface {
	Size() int
	// Apply sets out = A x.
	Apply(x, out []float64)
	// Diagonal writes the diagonal of A to out.
	Diagonal(out []float64)
	// JacobiWeight is the damping factor used when smoothing.
	JacobiWeight() float64
	// Singular returns true if constants are in the null space of A.
	Singular() bool
	// Active returns false for identity rows.
	Active(i int) bool
	// Coarsen returns the operator on the next coarser grid, or nil if
	// the grid can't be coarsened.
	Coarsen() Operator
	// Restrict transfers a residual to the coarse grid.
	Restrict(fine, coarse []float64)
	// Prolong adds an interpolated coarse correction to fine.
	Prolong(coarse, fine []float64)
}

// Config holds the parameters of one solver.
type Config struct {
	Verbose, CGVerbose int
	MaxIter, CGMaxIter int
	RTol, ATol         float64
	// BottomSolver is cg, smoother, or dense.
	BottomSolver       string
	MaxCoarseningLevel int
	PreSmooth          int
	PostSmooth         int
}

// NewConfig converts a configuration file section into a Config.
func NewConfig(c *config.SolverConfig) Config {
	return Config{
		Verbose: c.Verbose, CGVerbose: c.CGVerbose,
		MaxIter: c.MaxIter, CGMaxIter: c.CGMaxIter,
		RTol: c.RTol, ATol: c.ATol, BottomSolver: c.BottomSolver,
		MaxCoarseningLevel: c.MaxCoarseningLevel,
		PreSmooth:          c.PreSmooth, PostSmooth: c.PostSmooth,
	}
}

// Stats describes a finished solve.
type Stats struct {
	Iterations int
	// Residual is the final max-norm residual and Target is the residual
	// the solve needed to reach.
	Residual, Target float64
	Levels           int
}

// bottomRelTol is how much the bottom solver reduces its residual.
const bottomRelTol = 1e-4

// maxDense is the largest bottom grid solved with a dense factorisation.
const maxDense = 4096

// MG is a geometric multigrid solver.
type MG struct {
	Name string
	// Krylov uses V-cycles as a preconditioner for conjugate gradients
	// instead of iterating them directly.
	Krylov bool
	Logger *slog.Logger

	cfg   Config
	ops   []Operator
	diag  [][]float64
	dense *denseSolver
}

// NewMG builds the multigrid hierarchy of op.
func NewMG(name string, op Operator, cfg Config) *MG {
	mg := &MG{Name: name, Logger: slog.Default(), cfg: cfg}
	mg.ops = []Operator{op}
	for len(mg.ops)-1 < cfg.MaxCoarseningLevel {
		c := mg.ops[len(mg.ops)-1].Coarsen()
		if c == nil {
			break
		}
		mg.ops = append(mg.ops, c)
	}

	mg.diag = make([][]float64, len(mg.ops))
	for l, op := range mg.ops {
		mg.diag[l] = make([]float64, op.Size())
		op.Diagonal(mg.diag[l])
	}
	return mg
}

// Levels returns the number of grids in the hierarchy.
func (mg *MG) Levels() int { return len(mg.ops) }

// Solve solves A x = b, using the contents of x as the initial guess. b is
// not modified. A solve which doesn't reach its tolerance within MaxIter
// iterations returns an errs.ConvergenceError.
func (mg *MG) Solve(x, b []float64) (Stats, error) {
	op := mg.ops[0]
	if len(x) != op.Size() || len(b) != op.Size() {
		panic(fmt.Sprintf("Internal error: %s solver has %d unknowns, but "+
			"was given arrays of length %d and %d.", mg.Name, op.Size(),
			len(x), len(b)))
	}

	rhs := append([]float64(nil), b...)
	clearInactive(op, rhs)
	clearInactive(op, x)
	if op.Singular() {
		removeMean(op, rhs)
	}

	target := math.Max(mg.cfg.RTol*normInf(rhs), mg.cfg.ATol)
	stats := Stats{Target: target, Levels: len(mg.ops)}

	r := make([]float64, len(x))
	residual(op, x, rhs, r)
	stats.Residual = normInf(r)
	if stats.Residual <= target {
		return stats, nil
	}

	var err error
	if mg.Krylov {
		err = mg.pcg(x, rhs, r, &stats)
	} else {
		err = mg.iterate(x, rhs, r, &stats)
	}
	if op.Singular() {
		removeMean(op, x)
	}

	if mg.cfg.Verbose > 0 {
		mg.Logger.Info("multigrid solve", "solver", mg.Name,
			"iterations", stats.Iterations, "residual", stats.Residual,
			"target", stats.Target, "levels", stats.Levels)
	}
	return stats, err
}

func (mg *MG) converged(stats *Stats, res float64, it int) bool {
	stats.Residual, stats.Iterations = res, it
	if mg.cfg.Verbose > 1 {
		mg.Logger.Info("multigrid iteration", "solver", mg.Name,
			"iteration", it, "residual", res)
	}
	return res <= stats.Target
}

func (mg *MG) failure(stats *Stats) error {
	return &errs.ConvergenceError{Solver: mg.Name, Residual: stats.Residual,
		Target: stats.Target, Iterations: stats.Iterations}
}

// iterate applies V-cycles until convergence.
func (mg *MG) iterate(x, b, r []float64, stats *Stats) error {
	op := mg.ops[0]
	for it := 1; it <= mg.cfg.MaxIter; it++ {
		mg.vcycle(0, x, b)
		residual(op, x, b, r)
		if op.Singular() {
			removeMean(op, r)
		}
		res := normInf(r)
		if math.IsNaN(res) {
			stats.Residual, stats.Iterations = res, it
			return mg.failure(stats)
		}
		if mg.converged(stats, res, it) {
			return nil
		}
	}
	return mg.failure(stats)
}

// pcg is conjugate gradients preconditioned by a single V-cycle. r must
// hold the initial residual.
func (mg *MG) pcg(x, b, r []float64, stats *Stats) error {
	op := mg.ops[0]
	n := len(x)
	z, p, q := make([]float64, n), make([]float64, n), make([]float64, n)

	mg.precondition(r, z)
	copy(p, z)
	rz := floats.Dot(r, z)

	for it := 1; it <= mg.cfg.MaxIter; it++ {
		op.Apply(p, q)
		pq := floats.Dot(p, q)
		if pq <= 0 || math.IsNaN(pq) {
			stats.Iterations = it
			return mg.failure(stats)
		}
		alpha := rz / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		if op.Singular() {
			removeMean(op, r)
		}

		if mg.converged(stats, normInf(r), it) {
			return nil
		}

		mg.precondition(r, z)
		rzNext := floats.Dot(r, z)
		beta := rzNext / rz
		rz = rzNext
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	return mg.failure(stats)
}

func (mg *MG) precondition(r, z []float64) {
	for i := range z {
		z[i] = 0
	}
	mg.vcycle(0, z, r)
	if mg.ops[0].Singular() {
		removeMean(mg.ops[0], z)
	}
}

func (mg *MG) vcycle(l int, x, b []float64) {
	op := mg.ops[l]
	if l == len(mg.ops)-1 {
		mg.bottom(x, b)
		return
	}

	for s := 0; s < mg.cfg.PreSmooth; s++ {
		mg.jacobi(l, x, b)
	}

	r := make([]float64, len(x))
	residual(op, x, b, r)
	cop := mg.ops[l+1]
	bc, xc := make([]float64, cop.Size()), make([]float64, cop.Size())
	op.Restrict(r, bc)
	clearInactive(cop, bc)
	if cop.Singular() {
		removeMean(cop, bc)
	}

	mg.vcycle(l+1, xc, bc)
	op.Prolong(xc, x)
	clearInactive(op, x)

	for s := 0; s < mg.cfg.PostSmooth; s++ {
		mg.jacobi(l, x, b)
	}
}

func (mg *MG) jacobi(l int, x, b []float64) {
	op, diag := mg.ops[l], mg.diag[l]
	r := make([]float64, len(x))
	residual(op, x, b, r)
	w := op.JacobiWeight()
	for i := range x {
		if op.Active(i) {
			x[i] += w * r[i] / diag[i]
		}
	}
}

func (mg *MG) bottom(x, b []float64) {
	op := mg.ops[len(mg.ops)-1]
	switch mg.cfg.BottomSolver {
	case "dense":
		if op.Size() <= maxDense {
			if mg.dense == nil {
				mg.dense = newDenseSolver(op)
			}
			mg.dense.solve(x, b)
			return
		}
		mg.cg(op, x, b)
	case "smoother":
		for s := 0; s < 8; s++ {
			mg.jacobi(len(mg.ops)-1, x, b)
		}
	default:
		mg.cg(op, x, b)
	}
}

// cg is Jacobi-preconditioned conjugate gradients. The bottom solve only
// needs to reduce the residual, so running out of iterations isn't an
// error.
func (mg *MG) cg(op Operator, x, b []float64) {
	n := len(x)
	diag := mg.diag[len(mg.ops)-1]
	r, z, p, q := make([]float64, n), make([]float64, n),
		make([]float64, n), make([]float64, n)

	residual(op, x, b, r)
	if op.Singular() {
		removeMean(op, r)
	}
	r0 := normInf(r)
	if r0 == 0 {
		return
	}
	floats.DivTo(z, r, diag)
	copy(p, z)
	rz := floats.Dot(r, z)

	it := 0
	for it = 1; it <= mg.cfg.CGMaxIter; it++ {
		op.Apply(p, q)
		pq := floats.Dot(p, q)
		if pq <= 0 {
			break
		}
		alpha := rz / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		if normInf(r) <= bottomRelTol*r0 {
			break
		}
		floats.DivTo(z, r, diag)
		rzNext := floats.Dot(r, z)
		for i := range p {
			p[i] = z[i] + rzNext/rz*p[i]
		}
		rz = rzNext
	}

	if mg.cfg.CGVerbose > 0 {
		mg.Logger.Info("bottom cg", "solver", mg.Name, "iterations", it,
			"residual", normInf(r), "initial", r0)
	}
}

// denseSolver solves the bottom grid through an eigendecomposition of the
// assembled matrix. Null-space components are dropped, so singular
// operators get the minimum-norm solution.
type denseSolver struct {
	vals []float64
	vecs *mat.Dense
	tol  float64
}

func newDenseSolver(op Operator) *denseSolver {
	n := op.Size()
	a := mat.NewSymDense(n, nil)
	e, col := make([]float64, n), make([]float64, n)
	full := make([]float64, n*n)
	for j := 0; j < n; j++ {
		e[j] = 1
		op.Apply(e, col)
		e[j] = 0
		for i := 0; i < n; i++ {
			full[i*n+j] = col[i]
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, 0.5*(full[i*n+j]+full[j*n+i]))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		panic("Internal error: eigendecomposition of bottom operator failed.")
	}
	ds := &denseSolver{vals: eig.Values(nil), vecs: &mat.Dense{}}
	eig.VectorsTo(ds.vecs)

	max := 0.0
	for _, v := range ds.vals {
		max = math.Max(max, math.Abs(v))
	}
	ds.tol = 1e-10 * max
	return ds
}

func (ds *denseSolver) solve(x, b []float64) {
	n := len(x)
	for i := range x {
		x[i] = 0
	}
	for k, lambda := range ds.vals {
		if math.Abs(lambda) <= ds.tol {
			continue
		}
		proj := 0.0
		for i := 0; i < n; i++ {
			proj += ds.vecs.At(i, k) * b[i]
		}
		proj /= lambda
		for i := 0; i < n; i++ {
			x[i] += proj * ds.vecs.At(i, k)
		}
	}
}

func residual(op Operator, x, b, r []float64) {
	op.Apply(x, r)
	for i := range r {
		r[i] = b[i] - r[i]
	}
}

func normInf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, math.Inf(+1))
}

func clearInactive(op Operator, x []float64) {
	for i := range x {
		if !op.Active(i) {
			x[i] = 0
		}
	}
}

// removeMean subtracts the mean of the active unknowns.
func removeMean(op Operator, x []float64) {
	sum, n := 0.0, 0
	for i := range x {
		if op.Active(i) {
			sum += x[i]
			n++
		}
	}
	if n == 0 {
		return
	}
	mean := sum / float64(n)
	for i := range x {
		if op.Active(i) {
			x[i] -= mean
		}
	}
}
