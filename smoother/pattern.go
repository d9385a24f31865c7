package smoother

import (
	"github.com/notargets/goamg/utils"
)

// ScalarSparsityPattern returns the nonzero structure of |Atilde|*|T| with
// every stored value set to 1.
func ScalarSparsityPattern(Atilde, T utils.CSR) utils.CSR {
	return Atilde.Abs().Mul(T.Abs()).Fill(1)
}

// BlockSparsityPattern expands the node strength matrix Atilde to blocks of
// numPDEs x numPDEs before forming |UnAmal(Atilde)|*|T|, so the pattern
// inherits T's block size and has fully dense blocks.
func BlockSparsityPattern(Atilde utils.CSR, T *utils.BlockSparse, numPDEs int) *utils.BlockSparse {
	return utils.Unamalgamate(Atilde, numPDEs, numPDEs).Mul(T.Abs()).Fill(1)
}

// NodeSupport holds, for every node of a sparsity pattern, the scalar column
// indices it touches. Storage is a single arena addressed by colPtr.
type NodeSupport struct {
	colPtr []int
	cols   []int
}

func NewNodeSupport[M utils.SparseOperator[M]](pattern M) (ns *NodeSupport) {
	var (
		nodes = pattern.Nodes()
	)
	ns = &NodeSupport{
		colPtr: make([]int, nodes+1),
		cols:   make([]int, 0, pattern.NNZ()/pattern.RowsPerNode()),
	}
	for i := 0; i < nodes; i++ {
		ns.cols = append(ns.cols, pattern.NodeColumns(i)...)
		ns.colPtr[i+1] = len(ns.cols)
	}
	return
}

func (ns *NodeSupport) Nodes() int { return len(ns.colPtr) - 1 }

func (ns *NodeSupport) Columns(i int) utils.Index {
	return utils.Index(ns.cols[ns.colPtr[i]:ns.colPtr[i+1]])
}
