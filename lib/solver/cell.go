package solver

// FaceBC is the condition an operator applies on one face of the domain.
type FaceBC int

const (
	PeriodicFace FaceBC = iota
	// Neumann faces have zero normal gradient.
	Neumann
	// Dirichlet faces have a zero value on the face itself.
	Dirichlet
)

// CellOperator is A x = alpha x - div(b grad x) on cell-centred unknowns,
// with b stored on faces. Cells with alpha = 0 and no open faces are
// identity rows.
type CellOperator struct {
	N  [3]int
	Dx [3]float64
	BC [3][2]FaceBC
	// Alpha may be nil.
	Alpha []float64
	// B[d] holds the coefficients of the faces normal to d, indexed with
	// FaceIdx.
	B [3][]float64

	diag   []float64
	active []bool
}

var _ Operator = &CellOperator{}

// NewCellOperator creates an operator over n cells. alpha may be nil.
func NewCellOperator(
	n [3]int, dx [3]float64, bc [3][2]FaceBC, alpha []float64,
	b [3][]float64,
) *CellOperator {
	op := &CellOperator{N: n, Dx: dx, BC: bc, Alpha: alpha, B: b}
	op.diag = make([]float64, op.Size())
	op.active = make([]bool, op.Size())
	op.computeDiag()
	return op
}

// CellIdx returns the flat index of a cell, with x varying fastest.
func CellIdx(n [3]int, i, j, k int) int { return i + n[0]*(j+n[1]*k) }

// FaceCount returns the number of faces normal to d.
func FaceCount(n [3]int, d int) int {
	n[d]++
	return n[0] * n[1] * n[2]
}

// FaceIdx returns the index of the face normal to d on the low side of
// cell (i, j, k). Cell n[d] - 1's high face has index FaceIdx(.., n[d], ..).
func FaceIdx(n [3]int, d, i, j, k int) int {
	n[d]++
	return i + n[0]*(j+n[1]*k)
}

func (op *CellOperator) Size() int             { return op.N[0] * op.N[1] * op.N[2] }
func (op *CellOperator) JacobiWeight() float64 { return 2.0 / 3 }
func (op *CellOperator) Active(i int) bool     { return op.active[i] }

func (op *CellOperator) Singular() bool {
	for d := 0; d < 3; d++ {
		if op.BC[d][0] == Dirichlet || op.BC[d][1] == Dirichlet {
			return false
		}
	}
	for _, a := range op.Alpha {
		if a != 0 {
			return false
		}
	}
	return true
}

// neighbor returns the cell across the face of c on the given side of
// dimension d, the index of that face and whether a neighbor exists. If
// it doesn't, the face is on the boundary.
func (op *CellOperator) neighbor(c [3]int, d, side int) (nb [3]int, face int, ok bool) {
	nb = c
	if side == 0 {
		face = FaceIdx(op.N, d, c[0], c[1], c[2])
		nb[d]--
		if nb[d] < 0 {
			if op.BC[d][0] != PeriodicFace {
				return nb, face, false
			}
			nb[d] += op.N[d]
		}
	} else {
		fc := c
		fc[d]++
		nb[d]++
		if nb[d] >= op.N[d] {
			if op.BC[d][1] != PeriodicFace {
				return nb, FaceIdx(op.N, d, fc[0], fc[1], fc[2]), false
			}
			nb[d] -= op.N[d]
			fc[d] = 0
		}
		face = FaceIdx(op.N, d, fc[0], fc[1], fc[2])
	}
	return nb, face, true
}

func (op *CellOperator) computeDiag() {
	for k := 0; k < op.N[2]; k++ {
		for j := 0; j < op.N[1]; j++ {
			for i := 0; i < op.N[0]; i++ {
				c := [3]int{i, j, k}
				idx := CellIdx(op.N, i, j, k)
				diag := 0.0
				if op.Alpha != nil {
					diag = op.Alpha[idx]
				}
				for d := 0; d < 3; d++ {
					inv := 1 / (op.Dx[d] * op.Dx[d])
					for side := 0; side < 2; side++ {
						_, face, ok := op.neighbor(c, d, side)
						b := op.B[d][face]
						if ok && op.N[d] > 1 {
							diag += inv * b
						} else if !ok && op.BC[d][side] == Dirichlet {
							diag += 2 * inv * b
						}
					}
				}
				op.active[idx] = diag != 0
				if diag == 0 {
					diag = 1
				}
				op.diag[idx] = diag
			}
		}
	}
}

func (op *CellOperator) Diagonal(out []float64) { copy(out, op.diag) }

func (op *CellOperator) Apply(x, out []float64) {
	for k := 0; k < op.N[2]; k++ {
		for j := 0; j < op.N[1]; j++ {
			for i := 0; i < op.N[0]; i++ {
				idx := CellIdx(op.N, i, j, k)
				if !op.active[idx] {
					out[idx] = x[idx]
					continue
				}
				c := [3]int{i, j, k}
				v := 0.0
				if op.Alpha != nil {
					v = op.Alpha[idx] * x[idx]
				}
				for d := 0; d < 3; d++ {
					inv := 1 / (op.Dx[d] * op.Dx[d])
					for side := 0; side < 2; side++ {
						nb, face, ok := op.neighbor(c, d, side)
						b := op.B[d][face]
						if ok {
							nidx := CellIdx(op.N, nb[0], nb[1], nb[2])
							v += inv * b * (x[idx] - x[nidx])
						} else if op.BC[d][side] == Dirichlet {
							v += 2 * inv * b * x[idx]
						}
					}
				}
				out[idx] = v
			}
		}
	}
}

// Coarsen averages alpha over 2x2x2 blocks of cells and b over 2x2 blocks
// of faces.
func (op *CellOperator) Coarsen() Operator {
	var cn [3]int
	var cdx [3]float64
	for d := 0; d < 3; d++ {
		if op.N[d]%2 != 0 {
			return nil
		}
		cn[d], cdx[d] = op.N[d]/2, 2*op.Dx[d]
	}

	var alpha []float64
	if op.Alpha != nil {
		alpha = make([]float64, cn[0]*cn[1]*cn[2])
		op.Restrict(op.Alpha, alpha)
	}

	var b [3][]float64
	for d := 0; d < 3; d++ {
		b[d] = make([]float64, FaceCount(cn, d))
		fn := cn
		fn[d]++
		for k := 0; k < fn[2]; k++ {
			for j := 0; j < fn[1]; j++ {
				for i := 0; i < fn[0]; i++ {
					C := [3]int{i, j, k}
					sum := 0.0
					for a := 0; a < 2; a++ {
						for e := 0; e < 2; e++ {
							f := [3]int{2 * i, 2 * j, 2 * k}
							o1, o2 := (d+1)%3, (d+2)%3
							f[o1] += a
							f[o2] += e
							sum += op.B[d][FaceIdx(op.N, d, f[0], f[1], f[2])]
						}
					}
					b[d][FaceIdx(cn, d, C[0], C[1], C[2])] = sum / 4
				}
			}
		}
	}

	return NewCellOperator(cn, cdx, op.BC, alpha, b)
}

func (op *CellOperator) Restrict(fine, coarse []float64) {
	cn := [3]int{op.N[0] / 2, op.N[1] / 2, op.N[2] / 2}
	for i := range coarse {
		coarse[i] = 0
	}
	for k := 0; k < op.N[2]; k++ {
		for j := 0; j < op.N[1]; j++ {
			for i := 0; i < op.N[0]; i++ {
				coarse[CellIdx(cn, i/2, j/2, k/2)] +=
					fine[CellIdx(op.N, i, j, k)] / 8
			}
		}
	}
}

func (op *CellOperator) Prolong(coarse, fine []float64) {
	cn := [3]int{op.N[0] / 2, op.N[1] / 2, op.N[2] / 2}
	for k := 0; k < op.N[2]; k++ {
		for j := 0; j < op.N[1]; j++ {
			for i := 0; i < op.N[0]; i++ {
				fine[CellIdx(op.N, i, j, k)] +=
					coarse[CellIdx(cn, i/2, j/2, k/2)]
			}
		}
	}
}
