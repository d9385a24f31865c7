package smoother

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/utils"
)

// ConstraintProjector maps an operator with the pattern's shape onto the set
// of operators U with U*B = 0 whose nonzeros lie inside the pattern. The
// projection is orthogonal in the 2-norm, node by node.
type ConstraintProjector[M utils.SparseOperator[M]] struct {
	pattern M
	scratch M // same structure as pattern, overwritten on every Apply
	support *NodeSupport
	gram    *GramInverseTable
	B       utils.Matrix
	np      int
}

// NewConstraintProjector builds the node supports and the local Gram inverses
// for pattern and B. The pattern is not modified.
func NewConstraintProjector[M utils.SparseOperator[M]](pattern M, B utils.Matrix, absTol, relTol float64, np int) (cp *ConstraintProjector[M], err error) {
	cp = &ConstraintProjector[M]{
		pattern: pattern,
		scratch: pattern.Copy().Fill(0),
		support: NewNodeSupport(pattern),
		B:       B,
		np:      np,
	}
	if cp.gram, err = NewGramInverseTable(cp.support, B, absTol, relTol, np); err != nil {
		cp = nil
	}
	return
}

func (cp *ConstraintProjector[M]) Pattern() M              { return cp.pattern }
func (cp *ConstraintProjector[M]) Support() *NodeSupport   { return cp.support }
func (cp *ConstraintProjector[M]) Gram() *GramInverseTable { return cp.gram }

// Constrain masks U to the pattern and then projects out span(B).
func (cp *ConstraintProjector[M]) Constrain(U M) (M, error) {
	return cp.Apply(U.ElMul(cp.pattern))
}

// Apply returns U - Q(U), where row block i of Q(U) is
// Bi * Ginv_i * (U*B)_i^T laid out over node i's support. U's nonzeros must
// lie inside the pattern.
//
// The update is formed in the scratch operator and subtracted rather than
// written into U, because U's structure may be a strict subset of the
// pattern.
func (cp *ConstraintProjector[M]) Apply(U M) (Up M, err error) {
	var (
		UB  = U.MulDense(cp.B)
		rpn = cp.pattern.RowsPerNode()
	)
	// Each bucket writes only its own nodes' slots of the scratch values
	err = utils.ParallelFor(cp.np, cp.support.Nodes(), func(kMin, kMax int) (err error) {
		var tmp, update mat.Dense
		for i := kMin; i < kMax; i++ {
			cols := cp.support.Columns(i)
			if len(cols) == 0 {
				continue
			}
			var (
				Bi  = cp.B.SliceRows(cols)
				UBi = UB.RowView(i*rpn, (i+1)*rpn)
			)
			tmp.Reset()
			tmp.Mul(cp.gram.At(i).M, UBi.M.T())
			update.Reset()
			update.Mul(Bi.M, &tmp)
			if err = cp.scratch.SetNodeValues(i, utils.NewMatrixFromDense(&update)); err != nil {
				return fmt.Errorf("constraint update of node %d: %w", i, err)
			}
		}
		return
	})
	if err == nil {
		Up = U.AddScaled(-1, cp.scratch)
	}
	cp.scratch.Fill(0)
	return
}
