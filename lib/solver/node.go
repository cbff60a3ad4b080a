package solver

import "math"

// NodeOperator is -div(sigma grad) on node-centred unknowns, discretised
// with trilinear finite elements and divided by the cell volume: a 27 point
// stencil. sigma is constant on each cell. Divergence is the matching weak
// divergence of a cell-centred field. -D sigma G agrees with the operator on
// smooth fields, but the averaged cell gradient G can't see checkerboard
// modes and the stiffness matrix can.
type NodeOperator struct {
	N     [3]int
	Dx    [3]float64
	BC    [3][2]FaceBC
	Sigma []float64

	m      [3]int
	elem   [8][8]float64
	weight float64
	diag   []float64
	active []bool
	fixed  []bool
}

var _ Operator = &NodeOperator{}

// NewNodeOperator creates an operator on the nodes of n cells. Nodes on
// Dirichlet faces are fixed at zero.
func NewNodeOperator(
	n [3]int, dx [3]float64, bc [3][2]FaceBC, sigma []float64,
) *NodeOperator {
	op := &NodeOperator{N: n, Dx: dx, BC: bc, Sigma: sigma}
	op.m = NodeCount(n, bc)
	size := op.Size()
	op.diag, op.active = make([]float64, size), make([]bool, size)
	op.fixed = make([]bool, size)

	for k := 0; k < op.m[2]; k++ {
		for j := 0; j < op.m[1]; j++ {
			for i := 0; i < op.m[0]; i++ {
				op.fixed[op.nodeIdx(i, j, k)] = op.onDirichlet(i, j, k)
			}
		}
	}

	op.elem, op.weight = elementStiffness(dx)
	op.forEachCell(func(c int, nodes *[8]int) {
		for a, n := range nodes {
			op.diag[n] += sigma[c] * op.elem[a][a]
		}
	})
	for n := range op.diag {
		op.active[n] = op.diag[n] != 0 && !op.fixed[n]
		if !op.active[n] {
			op.diag[n] = 1
		}
	}
	return op
}

// elementStiffness returns the stiffness matrix of one cell with unit sigma,
// divided by the cell volume, along with a Jacobi weight which is stable for
// it. Along each dimension the 1D stiffness is [1 -1; -1 1] / dx^2 and the
// 1D mass is [1/3 1/6; 1/6 1/3].
func elementStiffness(dx [3]float64) (k [8][8]float64, weight float64) {
	for a := 0; a < 8; a++ {
		for b := 0; b < 8; b++ {
			for d := 0; d < 3; d++ {
				term := 1 / (dx[d] * dx[d])
				if (a>>d)&1 != (b>>d)&1 {
					term = -term
				}
				for e := 0; e < 3; e++ {
					if e == d {
						continue
					}
					if (a>>e)&1 == (b>>e)&1 {
						term /= 3
					} else {
						term /= 6
					}
				}
				k[a][b] += term
			}
		}
	}

	// The element matrix is a sum of tensor products, so its eigenvectors
	// are the products of the 1D vectors (1, 1) and (1, -1). The largest
	// eigenvalue over the diagonal bounds the spectrum of the Jacobi
	// iteration matrix for any non-negative sigma.
	maxEig := 0.0
	for p := 0; p < 8; p++ {
		eig := 0.0
		for d := 0; d < 3; d++ {
			if (p>>d)&1 == 0 {
				continue
			}
			term := 2 / (dx[d] * dx[d])
			for e := 0; e < 3; e++ {
				if e == d {
					continue
				}
				if (p>>e)&1 == 0 {
					term /= 2
				} else {
					term /= 6
				}
			}
			eig += term
		}
		maxEig = math.Max(maxEig, eig)
	}
	return k, 1.2 * k[0][0] / maxEig
}

// NodeCount returns the number of nodes along each dimension. Periodic
// dimensions don't store the node that duplicates node zero.
func NodeCount(n [3]int, bc [3][2]FaceBC) [3]int {
	m := n
	for d := 0; d < 3; d++ {
		if bc[d][0] != PeriodicFace {
			m[d]++
		}
	}
	return m
}

func (op *NodeOperator) nodeIdx(i, j, k int) int {
	return i + op.m[0]*(j+op.m[1]*k)
}

// NodeIdx returns the index of node (i, j, k), wrapping periodic
// dimensions.
func (op *NodeOperator) NodeIdx(i, j, k int) int {
	c := [3]int{i, j, k}
	for d := 0; d < 3; d++ {
		if op.BC[d][0] == PeriodicFace {
			c[d] = ((c[d] % op.N[d]) + op.N[d]) % op.N[d]
		}
	}
	return op.nodeIdx(c[0], c[1], c[2])
}

// Nodes returns the number of nodes along each dimension.
func (op *NodeOperator) Nodes() [3]int { return op.m }

func (op *NodeOperator) onDirichlet(i, j, k int) bool {
	c := [3]int{i, j, k}
	for d := 0; d < 3; d++ {
		if c[d] == 0 && op.BC[d][0] == Dirichlet {
			return true
		}
		if c[d] == op.N[d] && op.BC[d][1] == Dirichlet {
			return true
		}
	}
	return false
}

// corner sign of node a of a cell along dimension d.
func cornerSign(a, d int) float64 {
	if (a>>d)&1 == 1 {
		return 1
	}
	return -1
}

// forEachCell calls f with the index of every cell and its eight corner
// nodes. Corner a has offset (a&1, (a>>1)&1, (a>>2)&1).
func (op *NodeOperator) forEachCell(f func(c int, nodes *[8]int)) {
	var nodes [8]int
	for k := 0; k < op.N[2]; k++ {
		for j := 0; j < op.N[1]; j++ {
			for i := 0; i < op.N[0]; i++ {
				for a := 0; a < 8; a++ {
					nodes[a] = op.NodeIdx(i+(a&1), j+((a>>1)&1), k+((a>>2)&1))
				}
				f(CellIdx(op.N, i, j, k), &nodes)
			}
		}
	}
}

// CellAverage writes the average of the eight corner values of every cell
// to out.
func (op *NodeOperator) CellAverage(x, out []float64) {
	op.forEachCell(func(c int, nodes *[8]int) {
		sum := 0.0
		for _, n := range nodes {
			sum += x[n]
		}
		out[c] = sum / 8
	})
}

// Gradient writes the cell-centred gradient of the node field x to g.
// Fixed nodes are treated as zero.
func (op *NodeOperator) Gradient(x []float64, g [3][]float64) {
	op.forEachCell(func(c int, nodes *[8]int) {
		grad := op.cellGradient(x, nodes)
		for d := 0; d < 3; d++ {
			g[d][c] = grad[d]
		}
	})
}

func (op *NodeOperator) cellGradient(x []float64, nodes *[8]int) [3]float64 {
	var grad [3]float64
	for a, n := range nodes {
		if op.fixed[n] {
			continue
		}
		for d := 0; d < 3; d++ {
			grad[d] += cornerSign(a, d) * x[n]
		}
	}
	for d := 0; d < 3; d++ {
		grad[d] /= 4 * op.Dx[d]
	}
	return grad
}

// Divergence writes D v = -G^T v for a cell-centred vector field v. This is
// the weak divergence of v against the trilinear basis functions, divided by
// the cell volume.
func (op *NodeOperator) Divergence(v [3][]float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	op.forEachCell(func(c int, nodes *[8]int) {
		for a, n := range nodes {
			for d := 0; d < 3; d++ {
				out[n] -= v[d][c] * cornerSign(a, d) / (4 * op.Dx[d])
			}
		}
	})
}

func (op *NodeOperator) Size() int             { return op.m[0] * op.m[1] * op.m[2] }
func (op *NodeOperator) JacobiWeight() float64 { return op.weight }
func (op *NodeOperator) Active(i int) bool     { return op.active[i] }
func (op *NodeOperator) Diagonal(out []float64) { copy(out, op.diag) }

// Fixed returns true for nodes held at zero by a Dirichlet face.
func (op *NodeOperator) Fixed(i int) bool { return op.fixed[i] }

func (op *NodeOperator) Singular() bool {
	for d := 0; d < 3; d++ {
		if op.BC[d][0] == Dirichlet || op.BC[d][1] == Dirichlet {
			return false
		}
	}
	return true
}

func (op *NodeOperator) Apply(x, out []float64) {
	for i := range out {
		out[i] = 0
	}
	op.forEachCell(func(c int, nodes *[8]int) {
		sigma := op.Sigma[c]
		if sigma == 0 {
			return
		}
		var xe [8]float64
		for b, n := range nodes {
			if !op.fixed[n] {
				xe[b] = x[n]
			}
		}
		for a, n := range nodes {
			sum := 0.0
			for b := range xe {
				sum += op.elem[a][b] * xe[b]
			}
			out[n] += sigma * sum
		}
	})
	for i := range out {
		if !op.active[i] {
			out[i] = x[i]
		}
	}
}

// Coarsen averages sigma over 2x2x2 blocks of cells. Grids with fewer than
// two coarse cells along any dimension aren't coarsened.
func (op *NodeOperator) Coarsen() Operator {
	var cn [3]int
	var cdx [3]float64
	for d := 0; d < 3; d++ {
		if op.N[d]%2 != 0 || op.N[d] < 4 {
			return nil
		}
		cn[d], cdx[d] = op.N[d]/2, 2*op.Dx[d]
	}
	sigma := make([]float64, cn[0]*cn[1]*cn[2])
	for k := 0; k < op.N[2]; k++ {
		for j := 0; j < op.N[1]; j++ {
			for i := 0; i < op.N[0]; i++ {
				sigma[CellIdx(cn, i/2, j/2, k/2)] +=
					op.Sigma[CellIdx(op.N, i, j, k)] / 8
			}
		}
	}
	return NewNodeOperator(cn, cdx, op.BC, sigma)
}

// stencil1D returns the coarse nodes and weights which interpolate fine
// node i along a dimension with nc coarse cells.
func stencil1D(i, nc int, periodic bool) (idx [2]int, w [2]float64, n int) {
	if i%2 == 0 {
		return [2]int{i / 2}, [2]float64{1}, 1
	}
	hi := (i + 1) / 2
	if periodic && hi == nc {
		hi = 0
	}
	return [2]int{(i - 1) / 2, hi}, [2]float64{0.5, 0.5}, 2
}

// forEachTransfer calls f for every (fine node, coarse node, weight)
// triple of trilinear interpolation.
func (op *NodeOperator) forEachTransfer(f func(fine, coarse int, w float64)) {
	cn := [3]int{op.N[0] / 2, op.N[1] / 2, op.N[2] / 2}
	cm := NodeCount(cn, op.BC)
	for k := 0; k < op.m[2]; k++ {
		ki, kw, kn := stencil1D(k, cn[2], op.BC[2][0] == PeriodicFace)
		for j := 0; j < op.m[1]; j++ {
			ji, jw, jn := stencil1D(j, cn[1], op.BC[1][0] == PeriodicFace)
			for i := 0; i < op.m[0]; i++ {
				ii, iw, in := stencil1D(i, cn[0], op.BC[0][0] == PeriodicFace)
				fine := op.nodeIdx(i, j, k)
				for c := 0; c < kn; c++ {
					for b := 0; b < jn; b++ {
						for a := 0; a < in; a++ {
							coarse := ii[a] + cm[0]*(ji[b]+cm[1]*ki[c])
							f(fine, coarse, iw[a]*jw[b]*kw[c])
						}
					}
				}
			}
		}
	}
}

// Restrict is full weighting: one eighth of the transpose of Prolong.
func (op *NodeOperator) Restrict(fine, coarse []float64) {
	for i := range coarse {
		coarse[i] = 0
	}
	op.forEachTransfer(func(f, c int, w float64) {
		if op.active[f] {
			coarse[c] += w * fine[f] / 8
		}
	})
}

// Prolong is trilinear interpolation.
func (op *NodeOperator) Prolong(coarse, fine []float64) {
	op.forEachTransfer(func(f, c int, w float64) {
		if op.active[f] {
			fine[f] += w * coarse[c]
		}
	})
}
