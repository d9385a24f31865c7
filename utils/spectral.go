package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LinearOperator is the minimal contract needed to estimate a spectral radius.
type LinearOperator interface {
	Dims() (r, c int)
	MulVec(x []float64) []float64
}

// ApproximateSpectralRadius estimates rho(A) by power iteration from a fixed
// start vector, so repeated calls on the same operator agree. maxIterO
// defaults to 20 sweeps.
func ApproximateSpectralRadius(A LinearOperator, maxIterO ...int) (rho float64) {
	var (
		nr, nc  = A.Dims()
		maxIter = 20
	)
	if nr != nc {
		panic("ApproximateSpectralRadius requires a square operator")
	}
	if len(maxIterO) != 0 {
		maxIter = maxIterO[0]
	}
	if nr == 0 {
		return
	}
	x := make([]float64, nr)
	for i := range x {
		// Deterministic, not aligned with smooth or oscillatory modes
		x[i] = 1 + math.Sin(float64(7*i+3))/2
	}
	floats.Scale(1/floats.Norm(x, 2), x)
	for it := 0; it < maxIter; it++ {
		y := A.MulVec(x)
		norm := floats.Norm(y, 2)
		if norm == 0 {
			return 0
		}
		rho = norm
		floats.ScaleTo(x, 1/norm, y)
	}
	return
}
