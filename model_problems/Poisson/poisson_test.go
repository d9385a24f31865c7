package Poisson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/utils"
)

func TestOperators(t *testing.T) {
	{
		A := Poisson1D(5)
		assert.Equal(t, 13, A.NNZ())
		assert.Equal(t, []float64{2, 2, 2, 2, 2}, A.Diagonal())
		assert.Equal(t, -1., A.At(3, 2))
		assert.True(t, mat.Equal(A, A.T()))
	}
	{
		A := ConvectionDiffusion1D(5, 0.5)
		assert.Equal(t, -1.5, A.At(1, 0))
		assert.Equal(t, -0.5, A.At(0, 1))
		assert.False(t, mat.Equal(A, A.T()))
	}
	{
		A := Poisson2D(3, 4)
		nr, nc := A.Dims()
		assert.Equal(t, [2]int{12, 12}, [2]int{nr, nc})
		// Interior node (1,1) has all four neighbors
		assert.Equal(t, utils.Index{1, 3, 4, 5, 7}, A.NodeColumns(4))
		assert.Equal(t, 0., A.MulVec([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})[4])
		assert.Equal(t, utils.ConstArray(12, 4), A.Diagonal())
		// Corner node (0,0) has two neighbors
		assert.Equal(t, utils.Index{0, 1, 3}, A.NodeColumns(0))
		assert.Equal(t, 46, A.NNZ())
		assert.True(t, mat.Equal(A, A.T()))
	}
	{
		var (
			A  = Poisson1D(4)
			Ab = BlockOperator(A, 3)
		)
		br, bc := Ab.BlockSize()
		assert.Equal(t, [2]int{3, 3}, [2]int{br, bc})
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				for r := 0; r < 3; r++ {
					for c := 0; c < 3; c++ {
						want := 0.
						if r == c {
							want = A.At(i, j)
						}
						assert.Equal(t, want, Ab.At(3*i+r, 3*j+c))
					}
				}
			}
		}
		S := BlockStrength(Ab)
		assert.True(t, mat.Equal(Strength(A), S))
	}
}

func TestAggregation(t *testing.T) {
	T := AggregateTentative(7, 3, 2)
	nr, nc := T.Dims()
	assert.Equal(t, [2]int{14, 6}, [2]int{nr, nc})
	assert.Equal(t, 1., T.At(13, 5))
	assert.Equal(t, 0., T.At(13, 4))
	assert.Equal(t, 1., T.At(8, 2))
	B := ConstantNullspace(3, 2)
	TB := T.MulDense(B)
	for i := 0; i < 7; i++ {
		assert.Equal(t, []float64{1, 0}, TB.M.RawRowView(2*i))
		assert.Equal(t, []float64{0, 1}, TB.M.RawRowView(2*i+1))
	}
	assert.Panics(t, func() { AggregateTentative(7, 0, 1) })
}

func TestNewProblem(t *testing.T) {
	{
		pb, err := NewProblem(P_2DPoisson, 4, 4, 1)
		require.NoError(t, err)
		nr, nc := pb.T.Dims()
		assert.Equal(t, [2]int{16, 4}, [2]int{nr, nc})
		nr, _ = pb.B.Dims()
		assert.Equal(t, 4, nr)
		assert.Equal(t, 16, pb.Atilde.Nodes())
		// Level operators are shared with the smoother and never written
		A := pb.A.(utils.CSR)
		assert.Panics(t, func() { A.Fill(0) })
		assert.Panics(t, func() { pb.Atilde.Scale(2) })
		assert.Equal(t, 4., A.At(5, 5))
		assert.Equal(t, 2., A.Copy().Scale(0.5).At(5, 5))
	}
	{
		pb, err := NewProblem(P_1DConvection, 9, 3, 2)
		require.NoError(t, err)
		nr, nc := pb.A.Dims()
		assert.Equal(t, [2]int{18, 18}, [2]int{nr, nc})
		nr, nc = pb.B.Dims()
		assert.Equal(t, [2]int{6, 2}, [2]int{nr, nc})
	}
	for _, args := range [][3]int{{0, 3, 1}, {9, 0, 1}, {9, 3, 0}} {
		_, err := NewProblem(P_1DPoisson, args[0], args[1], args[2])
		assert.Error(t, err)
	}
	_, err := NewProblem("poisson3d", 9, 3, 1)
	assert.Error(t, err)
}
