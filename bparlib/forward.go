package bparlib

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// categorical draws an index with probability proportional to the
// non-negative weights w, by comparing u*sum(w) against the cumulative
// sum.  A draw exactly equal to a cumulative boundary resolves to the
// lower index.  Zero-weight entries are never returned.
func categorical(w []float64, u float64) (int, error) {

	total := floats.Sum(w)
	if total <= 0 || math.IsNaN(total) {
		return 0, ErrInvalidDistribution
	}

	r := u * total
	var c float64
	last := -1
	for i, v := range w {
		if v <= 0 {
			continue
		}
		c += v
		last = i
		if r <= c {
			return i, nil
		}
	}

	// u was rounded up to the total; the last positive weight wins.
	return last, nil
}

// ForwardSample draws a state trajectory for one series conditioned on
// the backward messages.  The first state is drawn from
// init · marglike[:,0] · bwd[:,0]; each later state from
// trans[z,:] · marglike[:,t] · bwd[:,t].  When the tensor has Ks>1, a
// switch index is additionally drawn for each step from
// switchPr[z,:] · lik[z,:,t]; otherwise the switch sequence is all zeros.
func ForwardSample(msg *Messages, ll *LogLik, trans, init, switchPr []float64, src rand.Source) (z, s []int, err error) {

	kz, T := msg.Kz, msg.T

	if ll.Kz != kz || ll.T != T {
		return nil, nil, fmt.Errorf("%w: tensor is %dx%dx%d, messages are %dx%d",
			ErrDimensionMismatch, ll.Kz, ll.Ks, ll.T, kz, T)
	}
	if len(init) != kz {
		return nil, nil, fmt.Errorf("%w: init has length %d, need %d",
			ErrDimensionMismatch, len(init), kz)
	}
	if len(trans) != kz*kz {
		return nil, nil, fmt.Errorf("%w: trans has length %d, need %d",
			ErrDimensionMismatch, len(trans), kz*kz)
	}
	if len(switchPr) != kz*ll.Ks {
		return nil, nil, fmt.Errorf("%w: switch distribution has length %d, need %d",
			ErrDimensionMismatch, len(switchPr), kz*ll.Ks)
	}

	rng := rand.New(src)
	z = make([]int, T)
	s = make([]int, T)
	w := make([]float64, kz)

	for t := 0; t < T; t++ {

		j := t * kz
		if t == 0 {
			for k := 0; k < kz; k++ {
				w[k] = init[k] * msg.MargLike[j+k] * msg.Bwd[j+k]
			}
		} else {
			zp := z[t-1]
			for k := 0; k < kz; k++ {
				w[k] = trans[zp*kz+k] * msg.MargLike[j+k] * msg.Bwd[j+k]
			}
		}

		z[t], err = categorical(w, rng.Float64())
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", t, err)
		}

		if ll.Ks > 1 {
			s[t], err = sampleSwitch(ll, switchPr, z[t], t, rng.Float64())
			if err != nil {
				return nil, nil, fmt.Errorf("step %d: %w", t, err)
			}
		}
	}

	return z, s, nil
}

// sampleSwitch draws the auxiliary switch index for state k at step t.
func sampleSwitch(ll *LogLik, switchPr []float64, k, t int, u float64) (int, error) {

	ks := ll.Ks

	mx := math.Inf(-1)
	for s := 0; s < ks; s++ {
		if v := ll.At(k, s, t); v > mx {
			mx = v
		}
	}

	w := make([]float64, ks)
	for s := 0; s < ks; s++ {
		w[s] = switchPr[k*ks+s] * math.Exp(ll.At(k, s, t)-mx)
	}

	return categorical(w, u)
}
