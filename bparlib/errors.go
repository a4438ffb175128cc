package bparlib

import "errors"

// Errors surfaced by the per-series inference routines.  None of these are
// recoverable locally; the caller aborts the affected series' update for
// the current sweep.
var (
	// ErrDimensionMismatch indicates that the shape of an observation,
	// design vector, or parameter matrix disagrees with the model sizes.
	ErrDimensionMismatch = errors.New("bparlib: dimension mismatch")

	// ErrNotPositiveDefinite indicates that a Cholesky factorization of a
	// scale or covariance matrix failed.
	ErrNotPositiveDefinite = errors.New("bparlib: matrix is not positive definite")

	// ErrSingularCovariance indicates that a behavior's noise covariance
	// could not be factorized when evaluating emission likelihoods.
	ErrSingularCovariance = errors.New("bparlib: singular covariance")

	// ErrInvalidDistribution indicates an all-zero weight vector in a
	// categorical draw, typically caused by numeric underflow.
	ErrInvalidDistribution = errors.New("bparlib: invalid distribution")
)
