package bparlib

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// GenStates simulates a state and switch sequence of length nt for every
// series, writing them into TruthState, State, and SwitchState.
func (m *Model) GenStates(nt int, src rand.Source) error {

	rng := rand.New(src)
	m.TruthState = make([][]int, m.NSeries)
	if m.State == nil {
		m.State = make([][]int, m.NSeries)
		m.SwitchState = make([][]int, m.NSeries)
	}

	for p := 0; p < m.NSeries; p++ {

		z := make([]int, nt)
		sw := make([]int, nt)

		for t := 0; t < nt; t++ {
			var w []float64
			if t == 0 {
				w = m.Init
			} else {
				w = m.Trans[z[t-1]*m.Kz : (z[t-1]+1)*m.Kz]
			}
			k, err := categorical(w, rng.Float64())
			if err != nil {
				return err
			}
			z[t] = k

			if m.Ks > 1 {
				s, err := categorical(m.Switch[k*m.Ks:(k+1)*m.Ks], rng.Float64())
				if err != nil {
					return err
				}
				sw[t] = s
			}
		}

		m.TruthState[p] = z
		m.State[p] = append([]int(nil), z...)
		m.SwitchState[p] = sw
	}

	return nil
}

// GenObs simulates observations from the current behavior library and
// state sequences, filling Obs and the lag design vectors in Design.
// The first NLag steps of each series have zero design vectors, so their
// observations are pure noise around the behavior's residual mean.
func (m *Model) GenObs(src rand.Source) error {

	d := m.Dim
	nd := m.NLag * d

	m.Obs = make([][]float64, m.NSeries)
	m.Design = make([][]float64, m.NSeries)

	for p := 0; p < m.NSeries; p++ {

		nt := len(m.TruthState[p])
		obs := make([]float64, nt*d)
		design := make([]float64, nt*nd)

		for t := 0; t < nt; t++ {

			// Stack the previous NLag observations, most recent first
			for l := 0; l < m.NLag; l++ {
				if t-1-l < 0 {
					break
				}
				copy(design[t*nd+l*d:t*nd+(l+1)*d], obs[(t-1-l)*d:(t-l)*d])
			}

			k := m.TruthState[p][t]
			s := m.SwitchState[p][t]
			th := &m.Theta[k][s]

			mu := th.Mu
			if mu == nil {
				mu = mat.NewVecDense(d, nil)
			}
			e, err := MVNormal(mu, th.Sigma, src)
			if err != nil {
				return err
			}

			yb := mat.NewVecDense(nd, design[t*nd:(t+1)*nd])
			y := mat.NewVecDense(d, obs[t*d:(t+1)*d])
			y.MulVec(th.A, yb)
			y.AddVec(y, e)
		}

		m.Obs[p] = obs
		m.Design[p] = design
	}

	return nil
}
