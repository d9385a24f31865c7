package utils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SingularValues returns the smallest and largest singular values.
func (m Matrix) SingularValues() (min, max float64) {
	var svd mat.SVD
	if !svd.Factorize(m.M, mat.SVDThin) {
		return 0, 1e16
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0, 1e16
	}
	return values[len(values)-1], values[0]
}

// PseudoInverse returns the SVD based pseudo-inverse of a square matrix.
// If the largest singular value is below absTol the result is the zero matrix,
// otherwise singular values with sigma/sigma_max <= relTol are discarded.
func (m Matrix) PseudoInverse(absTol, relTol float64) (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
		svd    mat.SVD
		u, v   mat.Dense
	)
	R = NewMatrix(nc, nr)
	if !svd.Factorize(m.M, mat.SVDFull) {
		err = ErrSVDFailed
		return
	}
	sigma := svd.Values(nil)
	if len(sigma) == 0 || math.Abs(sigma[0]) < absTol {
		return
	}
	svd.UTo(&u)
	svd.VTo(&v)
	// pinv = sum_j v_j * u_j^T / sigma_j over the retained values
	dataR := R.Data()
	for s, val := range sigma {
		if math.Abs(val/sigma[0]) <= relTol {
			continue
		}
		inv := 1. / val
		for i := 0; i < nc; i++ {
			vis := v.At(i, s) * inv
			if vis == 0 {
				continue
			}
			for j := 0; j < nr; j++ {
				dataR[i*nr+j] += vis * u.At(j, s)
			}
		}
	}
	return
}
