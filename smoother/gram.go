package smoother

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/utils"
)

const (
	// DefaultPinvAbsTol zeroes a local Gram matrix whose largest singular
	// value is below it.
	DefaultPinvAbsTol = 1.e-10
	// DefaultPinvRelTol drops singular values with sigma/sigma_max at or
	// below it.
	DefaultPinvRelTol = 1.e-8
)

// GramInverseTable holds pinv(Bi^T Bi) for every node i, where Bi is B
// restricted to the node's column support. Entries live in one arena of
// nodes*k*k values, node i at offset i*k*k.
type GramInverseTable struct {
	k    int
	data []float64
}

// NewGramInverseTable builds the table for every node of support in parallel
// over np goroutines (0 means one per CPU). Nodes with empty support keep a
// zero inverse.
func NewGramInverseTable(support *NodeSupport, B utils.Matrix, absTol, relTol float64, np int) (gt *GramInverseTable, err error) {
	var (
		nodes = support.Nodes()
		_, k  = B.Dims()
	)
	gt = &GramInverseTable{
		k:    k,
		data: make([]float64, nodes*k*k),
	}
	err = utils.ParallelFor(np, nodes, func(kMin, kMax int) (err error) {
		var (
			G    mat.Dense
			pinv utils.Matrix
		)
		for i := kMin; i < kMax; i++ {
			cols := support.Columns(i)
			if len(cols) == 0 {
				continue
			}
			Bi := B.SliceRows(cols)
			G.Reset()
			G.Mul(Bi.M.T(), Bi.M)
			if pinv, err = utils.NewMatrixFromDense(&G).PseudoInverse(absTol, relTol); err != nil {
				return fmt.Errorf("local Gram matrix of node %d: %w", i, err)
			}
			copy(gt.data[i*k*k:(i+1)*k*k], pinv.Data())
		}
		return
	})
	return
}

// At returns a read-only k x k view of node i's inverse.
func (gt *GramInverseTable) At(i int) (R utils.Matrix) {
	R = utils.NewMatrix(gt.k, gt.k, gt.data[i*gt.k*gt.k:(i+1)*gt.k*gt.k])
	R.SetReadOnly("GramInverse")
	return
}

func (gt *GramInverseTable) Nodes() int {
	if gt.k == 0 {
		return 0
	}
	return len(gt.data) / (gt.k * gt.k)
}
