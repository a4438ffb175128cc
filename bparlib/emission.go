package bparlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogLik is the Kz x Ks x T emission log-likelihood tensor for one
// series.  Entry (k, s, t) is the Gaussian log-density of the AR residual
// at step t under behavior variant (k, s).  It is computed once per sweep
// and discarded after the forward pass.
type LogLik struct {
	Kz, Ks, T int
	data      []float64
}

// NewLogLik returns a zero-valued tensor with the given shape.
func NewLogLik(kz, ks, T int) *LogLik {
	if kz < 1 || ks < 1 || T < 1 {
		panic("bparlib: loglik shape parameters must be positive")
	}
	return &LogLik{
		Kz:   kz,
		Ks:   ks,
		T:    T,
		data: make([]float64, kz*ks*T),
	}
}

// At returns the log-likelihood for state k, switch s, step t.
func (l *LogLik) At(k, s, t int) float64 {
	return l.data[(t*l.Kz+k)*l.Ks+s]
}

// Set stores the log-likelihood for state k, switch s, step t.
func (l *LogLik) Set(k, s, t int, v float64) {
	l.data[(t*l.Kz+k)*l.Ks+s] = v
}

// EvalLogLik computes the emission log-likelihood tensor for series p
// under the current behavior library.  The residual at step t for
// behavior (k, s) is y_t - A*ybar_t - mu, evaluated under Sigma.
func (m *Model) EvalLogLik(p int) (*LogLik, error) {

	nt := m.NTime(p)
	ll := NewLogLik(m.Kz, m.Ks, nt)

	obs := m.Obs[p]
	design := m.Design[p]
	nd := m.NLag * m.Dim

	e := mat.NewVecDense(m.Dim, nil)
	u := mat.NewVecDense(m.Dim, nil)

	for k := 0; k < m.Kz; k++ {
		for s := 0; s < m.Ks; s++ {

			th := &m.Theta[k][s]
			if err := m.checkBehavior(th); err != nil {
				return nil, fmt.Errorf("series %d behavior (%d,%d): %w", p, k, s, err)
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(th.Sigma); !ok {
				return nil, fmt.Errorf("%w: behavior (%d,%d)", ErrSingularCovariance, k, s)
			}
			cnst := float64(m.Dim)*math.Log(2*math.Pi) + chol.LogDet()

			for t := 0; t < nt; t++ {

				y := mat.NewVecDense(m.Dim, obs[t*m.Dim:(t+1)*m.Dim])
				yb := mat.NewVecDense(nd, design[t*nd:(t+1)*nd])

				e.MulVec(th.A, yb)
				e.SubVec(y, e)
				if th.Mu != nil {
					e.SubVec(e, th.Mu)
				}

				if err := chol.SolveVecTo(u, e); err != nil {
					return nil, fmt.Errorf("%w: behavior (%d,%d)", ErrSingularCovariance, k, s)
				}
				quad := mat.Dot(e, u)

				ll.Set(k, s, t, -0.5*(cnst+quad))
			}
		}
	}

	return ll, nil
}

// CollapseBlocks reduces a per-step tensor to a per-block tensor by
// summing log-likelihoods within each block.  blockEnd holds the
// end-exclusive boundary of each block in increasing order; the last
// boundary must equal the tensor's T.  The switch component is held fixed
// within a block.
func CollapseBlocks(ll *LogLik, blockEnd []int) (*LogLik, error) {

	nb := len(blockEnd)
	if nb == 0 {
		return nil, fmt.Errorf("%w: empty block list", ErrDimensionMismatch)
	}
	if blockEnd[nb-1] != ll.T {
		return nil, fmt.Errorf("%w: block boundaries end at %d, tensor has T=%d",
			ErrDimensionMismatch, blockEnd[nb-1], ll.T)
	}

	bl := NewLogLik(ll.Kz, ll.Ks, nb)
	start := 0
	for b, end := range blockEnd {
		if end <= start {
			return nil, fmt.Errorf("%w: block boundaries not increasing", ErrDimensionMismatch)
		}
		for k := 0; k < ll.Kz; k++ {
			for s := 0; s < ll.Ks; s++ {
				var v float64
				for t := start; t < end; t++ {
					v += ll.At(k, s, t)
				}
				bl.Set(k, s, b, v)
			}
		}
		start = end
	}

	return bl, nil
}

// blockLengths returns the length of each block, or nil when every step
// is its own block.
func blockLengths(blockEnd []int) []int {
	if blockEnd == nil {
		return nil
	}
	bl := make([]int, len(blockEnd))
	start := 0
	for b, end := range blockEnd {
		bl[b] = end - start
		start = end
	}
	return bl
}
