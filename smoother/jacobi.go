package smoother

import (
	"github.com/notargets/goamg/utils"
)

// JacobiProlongationSmoother applies one damped Jacobi sweep to the columns
// of the tentative prolongator:
//
//	P = (I - omega/rho * D^-1 S) T
//
// where D is the diagonal of S and rho approximates the spectral radius of
// D^-1 S. Rows of S with a zero diagonal are not scaled. rho is estimated by
// power iteration when rhoO is not supplied.
func JacobiProlongationSmoother[M utils.SparseOperator[M]](S, T M, omega float64, rhoO ...float64) (P M) {
	var (
		D    = S.Diagonal()
		Dinv = make([]float64, len(D))
		rho  float64
	)
	for i, d := range D {
		if d != 0 {
			Dinv[i] = 1. / d
		}
	}
	DinvS := S.ScaleRows(Dinv)
	if len(rhoO) != 0 {
		rho = rhoO[0]
	} else {
		rho = utils.ApproximateSpectralRadius(DinvS)
	}
	if rho == 0 {
		return T.Copy()
	}
	P = T.AddScaled(-omega/rho, DinvS.Mul(T))
	return
}
