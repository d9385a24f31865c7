package utils

import "gonum.org/v1/gonum/mat"

// SparseOperator is the contract shared by the scalar (CSR) and block
// (BlockSparse) storage formats. Binary operations take an operand of the same
// format as the receiver and return canonical results: column indices sorted
// and exact zeros (CSR) or all zero blocks (BSR) dropped.
//
// A "node" is a row for CSR and a block row for BSR.
type SparseOperator[M any] interface {
	mat.Matrix
	NNZ() int
	Nodes() int
	RowsPerNode() int
	// NodeColumns returns the scalar column indices stored in node i, in
	// storage order.
	NodeColumns(i int) Index
	// SetNodeValues overwrites the stored values of node i. vals has one row
	// per entry of NodeColumns(i) and one column per scalar row of the node,
	// any other shape is an ErrNodeShape.
	SetNodeValues(i int, vals Matrix) error
	Copy() M
	Abs() M
	Fill(val float64) M
	Scale(alpha float64) M
	ScaleRows(d []float64) M
	Mul(b M) M
	ElMul(b M) M
	AddScaled(alpha float64, b M) M
	FrobInner(b M) float64
	MaxAbs() float64
	MulDense(B Matrix) Matrix
	MulVec(x []float64) []float64
	Diagonal() []float64
	RowIsEmpty(i int) bool
	ToDense() Matrix
}
