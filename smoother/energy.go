package smoother

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/InputParameters"
	"github.com/notargets/goamg/utils"
)

// EnergyStats reports what EnergyProlongationSmoother did on one level.
type EnergyStats struct {
	Iterations int
	// Residuals holds max|R_ij| before the first step and after each step.
	Residuals []float64
	// Degenerate is set when A, T or Atilde had no stored nonzeros and T was
	// returned unchanged.
	Degenerate bool
	// Fallback is set when the constrained residual vanished and the Jacobi
	// smoother was used instead.
	Fallback bool
}

func (es *EnergyStats) Residual() float64 {
	if len(es.Residuals) == 0 {
		return 0
	}
	return es.Residuals[len(es.Residuals)-1]
}

// EnergyProlongationSmoother minimizes the energy of the columns of the
// tentative prolongator T in the norm induced by A, keeping the nonzeros
// inside the pattern of |Atilde|*|T| and keeping T*B fixed.
//
// A is a square utils.CSR (one unknown per node) or *utils.BlockSparse whose
// row block size is the number of PDEs per node. Atilde is the node strength
// matrix. B holds the coarse near-nullspace candidates, one per column, with
// as many rows as T has columns. A nil ip selects the defaults of
// InputParameters.NewSmootherParameters.
//
// Symmetric positive definite operators (ip.SPD) use diagonally
// preconditioned CG, others a minimal residual iteration, both run in the
// constrained subspace for at most ip.NumIters steps or until the residual
// falls to ip.MinTol.
func EnergyProlongationSmoother(A mat.Matrix, T *utils.BlockSparse, Atilde utils.CSR, B utils.Matrix,
	ip *InputParameters.SmootherParameters) (P *utils.BlockSparse, stats *EnergyStats, err error) {
	if ip == nil {
		ip = InputParameters.NewSmootherParameters()
	}
	if err = ip.Validate(); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		return
	}
	if T == nil {
		err = fmt.Errorf("%w: tentative prolongator is nil", ErrInvalidArgument)
		return
	}
	if Ap, ok := A.(*utils.CSR); ok && Ap != nil {
		A = *Ap
	}
	switch Am := A.(type) {
	case utils.CSR:
		if err = checkShapes(Am, T, Atilde, B, 1); err != nil {
			return
		}
		if isDegenerate(Am.NNZ(), T, Atilde) {
			return T, &EnergyStats{Degenerate: true}, nil
		}
		return energyScalar(Am, T, Atilde, B, ip)
	case *utils.BlockSparse:
		if Am == nil {
			err = fmt.Errorf("%w: operator is nil", ErrInvalidArgument)
			return
		}
		numPDEs, bc := Am.BlockSize()
		if numPDEs != bc {
			err = fmt.Errorf("%w: operator blocks must be square, got (%d,%d)", ErrInvalidArgument, numPDEs, bc)
			return
		}
		if err = checkShapes(Am, T, Atilde, B, numPDEs); err != nil {
			return
		}
		if isDegenerate(Am.NNZ(), T, Atilde) {
			return T, &EnergyStats{Degenerate: true}, nil
		}
		return energyBlock(Am, T, Atilde, B, ip)
	default:
		err = fmt.Errorf("%w: operator must be CSR or BSR, got %T", ErrInvalidArgument, A)
		return
	}
}

func checkShapes(A mat.Matrix, T *utils.BlockSparse, Atilde utils.CSR, B utils.Matrix, numPDEs int) error {
	var (
		nrA, ncA = A.Dims()
		nrT, ncT = T.Dims()
		nrS, ncS = Atilde.Dims()
	)
	switch {
	case nrA != ncA:
		return fmt.Errorf("%w: operator must be square, got (%d,%d)", ErrInvalidArgument, nrA, ncA)
	case nrT != nrA:
		return fmt.Errorf("%w: prolongator has %d rows, operator has %d", ErrInvalidArgument, nrT, nrA)
	case nrS != ncS || nrS*numPDEs != nrA:
		return fmt.Errorf("%w: strength matrix is (%d,%d), expected %d nodes", ErrInvalidArgument, nrS, ncS, nrA/numPDEs)
	case B.IsEmpty():
		return fmt.Errorf("%w: near-nullspace is empty", ErrInvalidArgument)
	}
	if nrB, _ := B.Dims(); nrB != ncT {
		return fmt.Errorf("%w: near-nullspace has %d rows, prolongator has %d columns", ErrInvalidArgument, nrB, ncT)
	}
	return nil
}

func isDegenerate(nnzA int, T *utils.BlockSparse, Atilde utils.CSR) bool {
	if nnzA == 0 || T.NNZ() == 0 || Atilde.NNZ() == 0 {
		slog.Warn("energy smoother: A, T or Atilde has no nonzeros on this level, returning T",
			"nnzA", nnzA, "nnzT", T.NNZ(), "nnzAtilde", Atilde.NNZ())
		return true
	}
	return false
}

// energyScalar runs the minimization on CSR copies and converts the result
// back to T's block size.
func energyScalar(A utils.CSR, T *utils.BlockSparse, Atilde utils.CSR, B utils.Matrix,
	ip *InputParameters.SmootherParameters) (P *utils.BlockSparse, stats *EnergyStats, err error) {
	var (
		br, bc  = T.BlockSize()
		Tc      = T.ToCSR()
		pattern = ScalarSparsityPattern(Atilde, Tc)
		Pc      utils.CSR
	)
	if Pc, stats, err = minimizeEnergy(A, Tc, pattern, B, ip); err != nil {
		return
	}
	P = Pc.ToBSR(br, bc)
	if len(ip.FileOutput) != 0 {
		dumpDiagnostics(ip, 1, map[string]mat.Matrix{
			"Sparsity_Pattern": pattern.ToDense(), "Amat": A.ToDense(), "Atilde": Atilde.ToDense(),
			"P": T.ToDense(), "Bone": B, "Psmooth": P.ToDense(),
		})
	}
	return
}

func energyBlock(A *utils.BlockSparse, T *utils.BlockSparse, Atilde utils.CSR, B utils.Matrix,
	ip *InputParameters.SmootherParameters) (P *utils.BlockSparse, stats *EnergyStats, err error) {
	var (
		numPDEs, _ = A.BlockSize()
		br, bc     = T.BlockSize()
		Tw         = T
	)
	if br != numPDEs {
		slog.Warn("energy smoother: T's row block size should match A's block size, re-blocking T",
			"Tblock", br, "Ablock", numPDEs)
		Tw = T.ToCSR().ToBSR(numPDEs, bc)
	}
	pattern := BlockSparsityPattern(Atilde, Tw, numPDEs)
	if P, stats, err = minimizeEnergy(A, Tw, pattern, B, ip); err != nil {
		return
	}
	if br != numPDEs {
		P = P.ToCSR().ToBSR(br, bc)
	}
	if len(ip.FileOutput) != 0 {
		dumpDiagnostics(ip, numPDEs, map[string]mat.Matrix{
			"Sparsity_Pattern": pattern.ToDense(), "Amat": A.ToDense(), "Atilde": Atilde.ToDense(),
			"P": T.ToDense(), "Bone": B, "Psmooth": P.ToDense(),
		})
	}
	return
}

// InverseDiagonal returns 1/diag(A). Rows of A with no nonzero values get
// 1, a zero diagonal on any other row is an error.
func InverseDiagonal[M utils.SparseOperator[M]](A M) (Dinv []float64, err error) {
	D := A.Diagonal()
	Dinv = make([]float64, len(D))
	for i, d := range D {
		if d == 0 {
			if !A.RowIsEmpty(i) {
				err = fmt.Errorf("%w: zero on diag(A) for nonzero row %d of A", ErrNumericalInconsistency, i)
				return
			}
			d = 1
		}
		Dinv[i] = 1. / d
	}
	return
}

// iterState is the state carried from one minimization step to the next.
type iterState[M any] struct {
	T, R  M       // prolongator and constrained residual
	P     M       // search direction, not the prolongator
	rz    float64 // <R,Z> of the previous CG step
	iter  int
	stall bool
}

func minimizeEnergy[M utils.SparseOperator[M]](A, T, pattern M, B utils.Matrix,
	ip *InputParameters.SmootherParameters) (P M, stats *EnergyStats, err error) {
	var (
		Dinv []float64
		cp   *ConstraintProjector[M]
	)
	stats = &EnergyStats{}
	if Dinv, err = InverseDiagonal(A); err != nil {
		return
	}
	if cp, err = NewConstraintProjector(pattern, B, ip.PinvAbsTol, ip.PinvRelTol, ip.Parallel); err != nil {
		return
	}
	// Sparsity pattern first, then the nullspace constraint
	R, err := cp.Constrain(A.Mul(T).Scale(-1))
	if err != nil {
		return
	}
	if R.NNZ() == 0 {
		slog.Warn("energy smoother: initial residual has no nonzeros, using the Jacobi prolongation smoother")
		stats.Fallback = true
		P = JacobiProlongationSmoother(A, T, ip.Omega)
		return
	}
	s := iterState[M]{T: T, R: R}
	resid := R.MaxAbs()
	if utils.IsNan(resid) {
		err = fmt.Errorf("%w: initial residual is NaN", ErrNumericalInconsistency)
		return
	}
	stats.Residuals = append(stats.Residuals, resid)
	slog.Debug("energy minimization", "iteration", 0, "residual", resid)
	for s.iter < ip.NumIters && resid > ip.MinTol {
		if ip.SPD {
			s, err = cgStep(A, Dinv, cp, s)
		} else {
			s, err = minResStep(A, cp, s)
		}
		if err != nil {
			return
		}
		if s.stall {
			slog.Warn("energy smoother: search direction has no energy, stopping", "iteration", s.iter)
			break
		}
		resid = s.R.MaxAbs()
		if utils.IsNan(resid) {
			err = fmt.Errorf("%w: residual is NaN at iteration %d", ErrNumericalInconsistency, s.iter)
			return
		}
		stats.Residuals = append(stats.Residuals, resid)
		slog.Debug("energy minimization", "iteration", s.iter, "residual", resid)
	}
	stats.Iterations = s.iter
	P = s.T
	return
}

// cgStep is one diagonally preconditioned CG step in the constrained
// subspace. Row scaling by D^-1 keeps both the pattern and R*B = 0, so Z needs
// no projection.
func cgStep[M utils.SparseOperator[M]](A M, Dinv []float64, cp *ConstraintProjector[M], s iterState[M]) (iterState[M], error) {
	var (
		Z      = s.R.ScaleRows(Dinv)
		newsum = s.R.FrobInner(Z)
	)
	if s.iter == 0 {
		s.P = Z
	} else {
		s.P = Z.AddScaled(newsum/s.rz, s.P)
	}
	s.rz = newsum
	AP, err := cp.Constrain(A.Mul(s.P))
	if err != nil {
		return s, err
	}
	denom := s.P.FrobInner(AP)
	if denom == 0 {
		s.stall = true
		return s, nil
	}
	alpha := newsum / denom
	s.T = s.T.AddScaled(alpha, s.P)
	s.R = s.R.AddScaled(-alpha, AP)
	s.iter++
	return s, nil
}

// minResStep minimizes the Frobenius norm of the constrained residual along
// the direction R, for operators that are not SPD.
func minResStep[M utils.SparseOperator[M]](A M, cp *ConstraintProjector[M], s iterState[M]) (iterState[M], error) {
	var err error
	if s.P, err = cp.Constrain(A.Mul(s.R)); err != nil {
		return s, err
	}
	var (
		numer = s.P.FrobInner(s.R)
		denom = s.P.FrobInner(s.P)
	)
	if denom == 0 {
		s.stall = true
		return s, nil
	}
	alpha := numer / denom
	s.T = s.T.AddScaled(alpha, s.R)
	s.R = s.R.AddScaled(-alpha, s.P)
	s.iter++
	return s, nil
}

// Energy returns tr(P^T A P), the sum of the A-energies of P's columns.
func Energy[M utils.SparseOperator[M]](A, P M) float64 {
	return P.FrobInner(A.Mul(P))
}

// NullspaceError returns max|P*B - T*B|.
func NullspaceError[M utils.SparseOperator[M]](P, T M, B utils.Matrix) float64 {
	return P.MulDense(B).Subtract(T.MulDense(B)).MaxAbs()
}
