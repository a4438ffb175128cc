package bparlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Messages holds the backward messages for one series, together with the
// rescaling constants needed to recover implied log-likelihoods.  All
// matrices are Kz x T, stored time-major so that column t occupies
// [t*Kz, (t+1)*Kz).
type Messages struct {
	Kz, T int

	// Bwd[t*Kz+k] is the backward message for state k at step t,
	// rescaled to unit maximum per column.
	Bwd []float64

	// MargLike[t*Kz+k] is the switch-marginalized emission likelihood,
	// max-shifted per column into linear space.
	MargLike []float64

	// LogShift[t] is the log shift removed from column t of MargLike.
	LogShift []float64

	// PartialMarg[t] is the log of the rescaling constant removed from
	// column t of Bwd.
	PartialMarg []float64
}

// BackwardPass computes backward messages for one series from the
// emission tensor ll, the transition matrix trans (Kz x Kz row-major),
// and the switch distributions switchPr (Kz x Ks row-major).  blockLen
// gives the run length of each step; nil means unit steps.  A block of
// length L in state k carries a within-block self-transition factor
// trans[k,k]^(L-1), folded into the marginal likelihood.
//
// The recursion runs strictly in decreasing time order:
//
//	bwd[k,t] ∝ Σ_k' trans[k,k'] · marglike[k',t+1] · bwd[k',t+1]
//
// with bwd[:,T-1] equal to ones.  Each column is rescaled to unit maximum
// and the log constants are recorded in PartialMarg.
func BackwardPass(ll *LogLik, trans, switchPr []float64, blockLen []int) (*Messages, error) {

	kz, ks, T := ll.Kz, ll.Ks, ll.T

	if len(trans) != kz*kz {
		return nil, fmt.Errorf("%w: trans has length %d, need %d",
			ErrDimensionMismatch, len(trans), kz*kz)
	}
	if len(switchPr) != kz*ks {
		return nil, fmt.Errorf("%w: switch distribution has length %d, need %d",
			ErrDimensionMismatch, len(switchPr), kz*ks)
	}
	if blockLen != nil && len(blockLen) != T {
		return nil, fmt.Errorf("%w: have %d block lengths, tensor has T=%d",
			ErrDimensionMismatch, len(blockLen), T)
	}

	msg := &Messages{
		Kz:          kz,
		T:           T,
		Bwd:         make([]float64, kz*T),
		MargLike:    make([]float64, kz*T),
		LogShift:    make([]float64, T),
		PartialMarg: make([]float64, T),
	}

	msg.fillMargLike(ll, trans, switchPr, blockLen)

	// Uniform improper message at the horizon
	j1 := (T - 1) * kz
	for k := 0; k < kz; k++ {
		msg.Bwd[j1+k] = 1
	}

	// Backward sweep
	for t := T - 2; t >= 0; t-- {

		j0 := t * kz
		j1 := j0 + kz

		for k := 0; k < kz; k++ {
			var v float64
			for k2 := 0; k2 < kz; k2++ {
				v += trans[k*kz+k2] * msg.MargLike[j1+k2] * msg.Bwd[j1+k2]
			}
			msg.Bwd[j0+k] = v
		}

		col := msg.Bwd[j0:j1]
		mx := floats.Max(col)
		if mx < msgMin {
			return nil, fmt.Errorf("%w: backward message underflow at step %d",
				ErrInvalidDistribution, t)
		}
		floats.Scale(1/mx, col)
		msg.PartialMarg[t] = math.Log(mx)
	}

	return msg, nil
}

// fillMargLike marginalizes the switch axis of the emission tensor and
// folds in within-block self-transitions, storing each column max-shifted
// into linear space.
func (msg *Messages) fillMargLike(ll *LogLik, trans, switchPr []float64, blockLen []int) {

	kz, ks := ll.Kz, ll.Ks
	logm := make([]float64, kz)

	for t := 0; t < ll.T; t++ {

		selfSteps := 0.0
		if blockLen != nil && blockLen[t] > 1 {
			selfSteps = float64(blockLen[t] - 1)
		}

		if kz == 1 && ks == 1 {
			// Degenerate single-state case: the message is trivially 1
			// and the likelihood passes through as the shift.
			logm[0] = ll.At(0, 0, t) + selfSteps*math.Log(trans[0])
		} else {
			for k := 0; k < kz; k++ {
				logm[k] = logSumExpSwitch(ll, switchPr, k, t)
				if selfSteps > 0 {
					logm[k] += selfSteps * math.Log(trans[k*kz+k])
				}
			}
		}

		mx := floats.Max(logm)
		msg.LogShift[t] = mx
		j := t * kz
		for k := 0; k < kz; k++ {
			msg.MargLike[j+k] = math.Exp(logm[k] - mx)
		}
	}
}

// logSumExpSwitch returns log Σ_s switchPr[k,s]·exp(ll[k,s,t]) without
// leaving log space.
func logSumExpSwitch(ll *LogLik, switchPr []float64, k, t int) float64 {

	if ll.Ks == 1 {
		return ll.At(k, 0, t)
	}

	mx := math.Inf(-1)
	for s := 0; s < ll.Ks; s++ {
		if w := ll.At(k, s, t); w > mx {
			mx = w
		}
	}
	if math.IsInf(mx, -1) {
		return mx
	}

	var v float64
	for s := 0; s < ll.Ks; s++ {
		v += switchPr[k*ll.Ks+s] * math.Exp(ll.At(k, s, t)-mx)
	}
	return mx + math.Log(v)
}

// LogLike returns the log-likelihood of the series implied by the
// backward messages, log Σ_k init[k]·marglike[k,0]·bwd[k,0] plus the
// stored rescaling constants.
func (msg *Messages) LogLike(init []float64) (float64, error) {

	if len(init) != msg.Kz {
		return 0, fmt.Errorf("%w: init has length %d, need %d",
			ErrDimensionMismatch, len(init), msg.Kz)
	}

	var v float64
	for k := 0; k < msg.Kz; k++ {
		v += init[k] * msg.MargLike[k] * msg.Bwd[k]
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: zero marginal at the first step", ErrInvalidDistribution)
	}

	return math.Log(v) + floats.Sum(msg.LogShift) + floats.Sum(msg.PartialMarg), nil
}
