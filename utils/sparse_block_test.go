package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBlockSparse(t *testing.T) {
	var (
		Ad = mat.NewDense(4, 6, []float64{
			1, 2, 0, 0, 0, 0,
			0, 3, 0, 0, 0, 4,
			0, 0, 0, -1, 0, 0,
			5, 0, 6, 0, 0, 0,
		})
		Bd = mat.NewDense(6, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 2, 0,
			0, 0, 0, 1,
			1, 1, 0, 0,
			0, 0, 1, 1,
		})
		A = NewCSRFromDense(Ad).ToBSR(2, 3)
		B = NewCSRFromDense(Bd).ToBSR(3, 2)
	)
	{ // Construction
		nr, nc := A.Dims()
		assert.Equal(t, [2]int{4, 6}, [2]int{nr, nc})
		assert.Equal(t, 2, A.Nodes())
		assert.Equal(t, 2, A.RowsPerNode())
		assert.True(t, mat.Equal(Ad, A))
		assert.True(t, mat.Equal(Ad, A.ToDense()))
		assert.True(t, mat.Equal(Ad.T(), A.T()))
		C := NewBlockSparse(1, 3, 1, 1, []int{0, 2}, []int{2, 0}, []float64{7, 8})
		assert.Equal(t, []int{0, 2}, C.Ind)
		assert.Equal(t, []float64{8, 7}, C.Data())
		assert.Panics(t, func() { NewBlockSparse(1, 3, 1, 1, []int{0, 2}, []int{2, 0}, []float64{7}) })
	}
	{ // Block access
		blk := A.GetBlockView(1, 0)
		assert.Equal(t, []float64{0, 0, 0, 5, 0, 6}, blk.Data())
		assert.Panics(t, func() { NewCSRFromDense(Ad).ToBSR(1, 3).GetBlockView(2, 0) })
	}
	{ // Products against dense
		var want mat.Dense
		want.Mul(Ad, Bd)
		AB := A.Mul(B)
		br, bc := AB.BlockSize()
		assert.Equal(t, [2]int{2, 2}, [2]int{br, bc})
		assert.True(t, mat.EqualApprox(&want, AB, 1.e-14))
		assert.True(t, mat.EqualApprox(&want, A.MulDense(NewMatrixFromDense(Bd)), 1.e-14))
		x := []float64{1, -1, 2, 0, 1, 1}
		var y mat.VecDense
		y.MulVec(Ad, mat.NewVecDense(6, x))
		assert.InDeltaSlice(t, y.RawVector().Data, A.MulVec(x), 1.e-14)
		assert.Panics(t, func() { A.Mul(A) })
	}
	{ // Element-wise operations and zero block dropping
		var (
			P    = Unamalgamate(NewCSR(2, 2, []int{0, 1, 1}, []int{0}, []float64{1}), 2, 3)
			E    = A.ElMul(P)
			want = mat.NewDense(4, 6, []float64{
				1, 2, 0, 0, 0, 0,
				0, 3, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0,
			})
		)
		assert.Equal(t, 1, P.NumBlocks())
		assert.Equal(t, 1, E.NumBlocks())
		assert.True(t, mat.Equal(want, E))
		assert.Equal(t, 6., A.FrobInner(P))
		assert.InDelta(t, 92., A.FrobInner(A), 1.e-14)
		assert.InDelta(t, 9.591663046625438, A.FrobNorm(), 1.e-12)
		assert.Equal(t, 0, A.AddScaled(-1, A).NumBlocks())
		var sum mat.Dense
		sum.Add(Ad, Ad)
		assert.True(t, mat.Equal(&sum, A.AddScaled(1, A)))
	}
	{ // Value operations
		assert.Equal(t, 6., A.MaxAbs())
		assert.Equal(t, 1., A.Abs().At(2, 3))
		assert.Equal(t, -1., A.At(2, 3))
		S := A.ScaleRows([]float64{1, 2, 3, 0})
		assert.Equal(t, 8., S.At(1, 5))
		assert.Equal(t, -3., S.At(2, 3))
		assert.Equal(t, 0., S.At(3, 0))
		assert.Equal(t, 5., A.At(3, 0))
		F := A.Copy().Fill(1)
		assert.Equal(t, A.NNZ(), F.NNZ())
		assert.Equal(t, 1., F.At(0, 4))
		assert.Equal(t, 12., A.Copy().Scale(2).At(3, 2))
	}
	{ // Diagonal and empty rows
		Sd := mat.NewDense(4, 4, []float64{
			2, 0, 0, 0,
			0, 0, 1, 0,
			0, 0, 3, 0,
			0, 0, 0, 0,
		})
		S := NewCSRFromDense(Sd).ToBSR(2, 2)
		assert.Equal(t, []float64{2, 0, 3, 0}, S.Diagonal())
		assert.False(t, S.RowIsEmpty(1))
		assert.True(t, S.RowIsEmpty(3))
	}
	{ // Node access, values are laid out transposed: one row per column
		assert.Equal(t, Index{0, 1, 2, 3, 4, 5}, A.NodeColumns(0))
		C := A.Copy()
		vals := NewMatrix(6, 2)
		for j := 0; j < 6; j++ {
			vals.Set(j, 0, float64(j))
			vals.Set(j, 1, float64(10+j))
		}
		require.NoError(t, C.SetNodeValues(0, vals))
		assert.Equal(t, 5., C.At(0, 5))
		assert.Equal(t, 13., C.At(1, 3))
		assert.Equal(t, 2., A.At(0, 1))
		assert.ErrorIs(t, C.SetNodeValues(0, NewMatrix(2, 6)), ErrNodeShape)
	}
	{ // Unamalgamate
		U := Unamalgamate(NewCSR(2, 3, []int{0, 2, 3}, []int{0, 2, 1}, []float64{5, -1, 2}), 2, 1)
		nr, nc := U.Dims()
		assert.Equal(t, [2]int{4, 3}, [2]int{nr, nc})
		assert.Equal(t, 1., U.At(1, 2))
		assert.Equal(t, 1., U.At(3, 1))
		assert.Equal(t, 0., U.At(3, 0))
	}
}
