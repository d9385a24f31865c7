package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCSR(t *testing.T) {
	var (
		Ad = mat.NewDense(3, 4, []float64{
			1, 0, 2, 0,
			0, 0, 0, 0,
			-3, 4, 0, 5,
		})
		Bd = mat.NewDense(4, 2, []float64{
			1, 0,
			0, 2,
			-1, 0,
			0, 1,
		})
		A = NewCSRFromDense(Ad)
		B = NewCSRFromDense(Bd)
	)
	{ // Construction sorts columns within each row
		C := NewCSR(2, 3, []int{0, 2, 3}, []int{2, 0, 1}, []float64{5, 6, 7})
		assert.Equal(t, Index{0, 2}, C.NodeColumns(0))
		assert.Equal(t, []float64{6, 5, 7}, C.Data())
		assert.Equal(t, 5., C.At(0, 2))
	}
	{ // DOK assembly accumulates and converts to sorted CSR
		D := NewDOK(2, 2)
		D.Set(1, 1, 2).Add(1, 1, 3).Set(1, 0, -1).Set(0, 1, 1)
		C := D.ToCSR()
		assert.Equal(t, 3, C.NNZ())
		assert.Equal(t, Index{0, 1}, C.NodeColumns(1))
		assert.Equal(t, 5., C.At(1, 1))
	}
	{ // Products against dense
		var want mat.Dense
		want.Mul(Ad, Bd)
		assert.True(t, mat.EqualApprox(&want, A.Mul(B), 1.e-14))
		assert.True(t, mat.EqualApprox(&want, A.MulDense(NewMatrixFromDense(Bd)), 1.e-14))
		assert.Equal(t, []float64{3, 0, 1}, A.MulVec([]float64{1, 1, 1, 0}))
	}
	{ // Products and sums come back with sorted columns
		var (
			L = NewCSR(1, 2, []int{0, 2}, []int{0, 1}, []float64{1, 1})
			R = NewCSR(2, 3, []int{0, 1, 2}, []int{2, 0}, []float64{3, 4})
			C = L.Mul(R)
		)
		assert.Equal(t, Index{0, 2}, C.NodeColumns(0))
		assert.Equal(t, []float64{4, 3}, C.Data())
		S := R.AddScaled(2, NewCSR(2, 3, []int{0, 1, 1}, []int{1}, []float64{1}))
		assert.Equal(t, Index{1, 2}, S.NodeColumns(0))
		assert.Equal(t, []float64{2, 3}, S.Data())
		assert.Equal(t, []float64{0, 4}, NewCSR(2, 3, nil, nil, nil).AddScaled(0.5, R).MulVec([]float64{2, 0, 0}))
	}
	{ // Cancellation is dropped from the result
		Cd := mat.NewDense(1, 2, []float64{1, 1})
		Dd := mat.NewDense(2, 1, []float64{1, -1})
		C := NewCSRFromDense(Cd).Mul(NewCSRFromDense(Dd))
		assert.Equal(t, 0, C.NNZ())
		S := A.AddScaled(-1, A)
		assert.Equal(t, 0, S.NNZ())
		r, c := S.Dims()
		assert.Equal(t, [2]int{3, 4}, [2]int{r, c})
	}
	{ // Element-wise operations
		Pd := mat.NewDense(3, 4, []float64{
			1, 1, 0, 0,
			1, 1, 1, 1,
			0, 1, 1, 1,
		})
		P := NewCSRFromDense(Pd)
		E := A.ElMul(P)
		assert.Equal(t, 3, E.NNZ())
		assert.Equal(t, 1., E.At(0, 0))
		assert.Equal(t, 0., E.At(0, 2))
		assert.Equal(t, 0., E.At(2, 0))
		assert.Equal(t, 10., A.FrobInner(P)) // 1 + 4 + 5
		assert.Equal(t, 55., A.FrobInner(A))
		var want, scaled mat.Dense
		want.Add(Ad, Pd)
		assert.True(t, mat.EqualApprox(&want, A.AddScaled(1, P), 1.e-14))
		scaled.Scale(-3, Pd)
		want.Add(Ad, &scaled)
		assert.True(t, mat.EqualApprox(&want, A.AddScaled(-3, P), 1.e-14))
		assert.True(t, mat.EqualApprox(A.AddScaled(-1, P), A.AddScaled(-3, P).AddScaled(2, P), 1.e-14))
	}
	{ // Value operations leave the structure alone
		assert.Equal(t, 5., A.MaxAbs())
		Ab := A.Abs()
		assert.Equal(t, 3., Ab.At(2, 0))
		assert.Equal(t, -3., A.At(2, 0))
		F := A.Copy().Fill(1)
		assert.Equal(t, A.NNZ(), F.NNZ())
		assert.Equal(t, 1., F.At(2, 3))
		S := A.ScaleRows([]float64{2, 0, -1})
		assert.Equal(t, 4., S.At(0, 2))
		assert.Equal(t, -5., S.At(2, 3))
		assert.Equal(t, 5., A.At(2, 3))
		assert.Equal(t, -10., A.Copy().Scale(-2).At(2, 3))
	}
	{ // Diagonal and empty rows
		Sd := mat.NewDense(3, 3, []float64{
			2, -1, 0,
			0, 0, 0,
			0, -1, 0,
		})
		S := NewCSRFromDense(Sd)
		assert.Equal(t, []float64{2, 0, 0}, S.Diagonal())
		assert.False(t, S.RowIsEmpty(0))
		assert.True(t, S.RowIsEmpty(1))
		assert.False(t, S.RowIsEmpty(2))
	}
	{ // Node access
		C := A.Copy()
		assert.Equal(t, Index{0, 1, 3}, C.NodeColumns(2))
		require.NoError(t, C.SetNodeValues(2, NewMatrix(3, 1, []float64{7, 8, 9})))
		assert.Equal(t, 9., C.At(2, 3))
		assert.Equal(t, 5., A.At(2, 3))
		assert.ErrorIs(t, C.SetNodeValues(2, NewMatrix(2, 1)), ErrNodeShape)
		assert.ErrorIs(t, C.SetNodeValues(2, NewMatrix(3, 2)), ErrNodeShape)
		assert.Equal(t, 9., C.At(2, 3))
	}
	{ // Read only matrices refuse writes
		C := A.Copy()
		C.SetReadOnly("C")
		assert.Panics(t, func() { C.Fill(0) })
	}
	{ // Shape mismatches panic
		assert.Panics(t, func() { A.Mul(A) })
		assert.Panics(t, func() { A.AddScaled(1, B) })
	}
	{ // Dense round trip
		assert.True(t, mat.Equal(Ad, A.ToDense()))
	}
}

func TestCSRToBSR(t *testing.T) {
	Ad := mat.NewDense(4, 6, []float64{
		1, 0, 0, 0, 0, 2,
		0, 3, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0,
		4, 0, 0, 5, 0, 0,
	})
	A := NewCSRFromDense(Ad)
	Ab := A.ToBSR(2, 3)
	br, bc := Ab.BlockSize()
	assert.Equal(t, [2]int{2, 3}, [2]int{br, bc})
	assert.Equal(t, 4, Ab.NumBlocks())
	assert.Equal(t, []int{0, 2, 4}, Ab.Indptr)
	assert.Equal(t, []int{0, 1, 0, 1}, Ab.Ind)
	assert.Equal(t, 24, Ab.NNZ())
	assert.True(t, mat.Equal(Ad, Ab))
	// Explicit zeros inside stored blocks are not carried back
	assert.Equal(t, A.NNZ(), Ab.ToCSR().NNZ())
	assert.True(t, mat.Equal(Ad, Ab.ToCSR()))
	assert.Panics(t, func() { A.ToBSR(3, 3) })
}
