package Poisson

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/utils"
)

type ProblemType string

const (
	P_1DPoisson    ProblemType = "poisson1d"
	P_2DPoisson    ProblemType = "poisson2d"
	P_1DConvection ProblemType = "convection1d"
)

// Poisson1D is the n point finite difference Laplacian tridiag(-1, 2, -1).
func Poisson1D(n int) utils.CSR {
	return ConvectionDiffusion1D(n, 0)
}

// ConvectionDiffusion1D is tridiag(-1-c, 2, -1+c), non-symmetric for c != 0.
func ConvectionDiffusion1D(n int, c float64) utils.CSR {
	A := utils.NewDOK(n, n)
	for i := 0; i < n; i++ {
		A.Set(i, i, 2)
		if i > 0 {
			A.Set(i, i-1, -1-c)
		}
		if i < n-1 {
			A.Set(i, i+1, -1+c)
		}
	}
	return A.ToCSR()
}

// Poisson2D is the 5 point Laplacian on an nx x ny grid, lexicographic
// ordering with x fastest, assembled as the sum of the 1D second differences
// in each direction.
func Poisson2D(nx, ny int) utils.CSR {
	var (
		n = nx * ny
		A = utils.NewDOK(n, n)
	)
	secondDifference := func(k, pos, m, stride int) {
		A.Add(k, k, 2)
		if pos > 0 {
			A.Add(k, k-stride, -1)
		}
		if pos < m-1 {
			A.Add(k, k+stride, -1)
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := i + j*nx
			secondDifference(k, i, nx, 1)
			secondDifference(k, j, ny, nx)
		}
	}
	return A.ToCSR()
}

// BlockOperator couples nPDE copies of the node operator A, kron(A, I), stored
// with nPDE x nPDE blocks.
func BlockOperator(A utils.CSR, nPDE int) *utils.BlockSparse {
	var (
		nr, nc = A.Dims()
		raw    = A.RawMatrix()
		indptr = make([]int, nr+1)
		ind    = make([]int, len(raw.Ind))
		data   = make([]float64, len(raw.Ind)*nPDE*nPDE)
	)
	copy(indptr, raw.Indptr)
	copy(ind, raw.Ind)
	for k, val := range raw.Data {
		for r := 0; r < nPDE; r++ {
			data[k*nPDE*nPDE+r*nPDE+r] = val
		}
	}
	return utils.NewBlockSparse(nr, nc, nPDE, nPDE, indptr, ind, data)
}

// AggregateTentative groups consecutive nodes into aggregates of aggSize
// (the last may be smaller) and interpolates each PDE component from its
// aggregate with an identity block.
func AggregateTentative(nNodes, aggSize, nPDE int) *utils.BlockSparse {
	if aggSize < 1 {
		panic(fmt.Errorf("aggregate size must be positive, got %d", aggSize))
	}
	var (
		nAgg   = (nNodes + aggSize - 1) / aggSize
		indptr = make([]int, nNodes+1)
		ind    = make([]int, nNodes)
		data   = make([]float64, nNodes*nPDE*nPDE)
	)
	for i := 0; i < nNodes; i++ {
		indptr[i+1] = i + 1
		ind[i] = i / aggSize
		for r := 0; r < nPDE; r++ {
			data[i*nPDE*nPDE+r*nPDE+r] = 1
		}
	}
	return utils.NewBlockSparse(nNodes, nAgg, nPDE, nPDE, indptr, ind, data)
}

// ConstantNullspace returns the coarse candidates for nPDE decoupled
// components, column r is one on every coarse unknown of component r.
func ConstantNullspace(nCoarseNodes, nPDE int) (B utils.Matrix) {
	B = utils.NewMatrix(nCoarseNodes*nPDE, nPDE)
	for i := 0; i < nCoarseNodes; i++ {
		for r := 0; r < nPDE; r++ {
			B.Set(i*nPDE+r, r, 1)
		}
	}
	return
}

// Strength treats every stored connection of the node operator as strong.
func Strength(A utils.CSR) utils.CSR {
	return A.Abs().Fill(1)
}

// BlockStrength is Strength on the block structure of A.
func BlockStrength(A *utils.BlockSparse) utils.CSR {
	var (
		indptr = make([]int, len(A.Indptr))
		ind    = make([]int, len(A.Ind))
	)
	copy(indptr, A.Indptr)
	copy(ind, A.Ind)
	return utils.NewCSR(A.NrBlocks, A.NcBlocks, indptr, ind, utils.ConstArray(len(ind), 1))
}

// Problem bundles a model problem's level data.
type Problem struct {
	A      mat.Matrix // utils.CSR or *utils.BlockSparse
	T      *utils.BlockSparse
	Atilde utils.CSR
	B      utils.Matrix
}

// NewProblem builds the operator, the aggregation prolongator, the strength
// matrix and the constant near-nullspace for n nodes per direction. Problems
// with nPDE > 1 use block storage.
func NewProblem(pt ProblemType, n, aggSize, nPDE int) (p *Problem, err error) {
	var (
		A      utils.CSR
		nNodes int
	)
	if n < 1 {
		err = fmt.Errorf("problem size must be positive, got %d", n)
		return
	}
	switch pt {
	case P_1DPoisson:
		A, nNodes = Poisson1D(n), n
	case P_2DPoisson:
		A, nNodes = Poisson2D(n, n), n*n
	case P_1DConvection:
		A, nNodes = ConvectionDiffusion1D(n, 0.5), n
	default:
		err = fmt.Errorf("unknown problem type %q, must be one of %s, %s, %s", pt, P_1DPoisson, P_2DPoisson, P_1DConvection)
		return
	}
	switch {
	case nPDE < 1:
		err = fmt.Errorf("number of PDEs must be positive, got %d", nPDE)
		return
	case aggSize < 1:
		err = fmt.Errorf("aggregate size must be positive, got %d", aggSize)
		return
	}
	A.SetReadOnly(string(pt))
	p = &Problem{
		T:      AggregateTentative(nNodes, aggSize, nPDE),
		Atilde: Strength(A),
	}
	p.Atilde.SetReadOnly("Atilde")
	p.B = ConstantNullspace(p.T.NcBlocks, nPDE)
	if nPDE == 1 {
		p.A = A
	} else {
		p.A = BlockOperator(A, nPDE)
	}
	return
}
