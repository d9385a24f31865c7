package utils

import "errors"

var (
	ErrSVDFailed = errors.New("SVD factorization did not converge")
	ErrNodeShape = errors.New("node values do not match the stored structure")
)
