package bparlib

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/schollz/progressbar"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// SampleSeries runs the full per-series inference for series p:
// emission evaluation, backward message passing, and forward sampling.
// The sampled state and switch sequences are written into the model and
// the implied log-likelihood is returned.
func (m *Model) SampleSeries(p int, src rand.Source) (float64, error) {

	ll, err := m.EvalLogLik(p)
	if err != nil {
		return 0, fmt.Errorf("series %d: %w", p, err)
	}

	var blockLen []int
	if m.BlockEnd != nil && m.BlockEnd[p] != nil {
		ll, err = CollapseBlocks(ll, m.BlockEnd[p])
		if err != nil {
			return 0, fmt.Errorf("series %d: %w", p, err)
		}
		blockLen = blockLengths(m.BlockEnd[p])
	}

	msg, err := BackwardPass(ll, m.Trans, m.Switch, blockLen)
	if err != nil {
		return 0, fmt.Errorf("series %d: %w", p, err)
	}

	llf, err := msg.LogLike(m.Init)
	if err != nil {
		return 0, fmt.Errorf("series %d: %w", p, err)
	}

	z, s, err := ForwardSample(msg, ll, m.Trans, m.Init, m.Switch, src)
	if err != nil {
		return 0, fmt.Errorf("series %d: %w", p, err)
	}

	copy(m.State[p], z)
	copy(m.SwitchState[p], s)

	return llf, nil
}

// SampleStates redraws the state sequences of all series.  The series are
// independent given the shared parameters, so each runs in its own
// goroutine with its own random stream.  The first error encountered is
// returned.
func (m *Model) SampleStates() error {

	var wg sync.WaitGroup
	var mut sync.Mutex
	var firstErr error

	for p := 0; p < m.NSeries; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			llf, err := m.SampleSeries(p, m.seriesSource(p))
			mut.Lock()
			defer mut.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
				return
			}
			m.llf[p] = llf
		}(p)
	}

	wg.Wait()
	m.sweep++

	return firstErr
}

// Loglike returns the total log-likelihood from the most recent sweep.
func (m *Model) Loglike() float64 {
	return floats.Sum(m.llf)
}

// UpdateTrans redraws the transition matrix rows from their Dirichlet
// conditionals.  Row k gets concentration Alpha/Kz per entry plus Kappa
// on the diagonal plus the transition counts from the sampled state
// sequences, including within-block self-transitions.
func (m *Model) UpdateTrans(src rand.Source) {

	counts := makeFloatArray(m.Kz, m.Kz)

	for p := 0; p < m.NSeries; p++ {
		z := m.State[p]
		bl := blockLengths(m.blockEndFor(p))
		for b, k := range z {
			if bl != nil && bl[b] > 1 {
				counts[k][k] += float64(bl[b] - 1)
			}
			if b > 0 {
				counts[z[b-1]][k]++
			}
		}
	}

	alpha := make([]float64, m.Kz)
	for k := 0; k < m.Kz; k++ {
		for j := 0; j < m.Kz; j++ {
			alpha[j] = m.Alpha/float64(m.Kz) + counts[k][j]
			if j == k {
				alpha[j] += m.Kappa
			}
		}
		dir := distmv.NewDirichlet(alpha, src)
		dir.Rand(m.Trans[k*m.Kz : (k+1)*m.Kz])
	}
}

// UpdateInit redraws the initial state distribution from its Dirichlet
// conditional given the first state of every series.
func (m *Model) UpdateInit(src rand.Source) {

	alpha := make([]float64, m.Kz)
	for k := range alpha {
		alpha[k] = m.Alpha / float64(m.Kz)
	}
	for p := 0; p < m.NSeries; p++ {
		alpha[m.State[p][0]]++
	}

	dir := distmv.NewDirichlet(alpha, src)
	dir.Rand(m.Init)
}

// UpdateSwitch redraws the per-state switch distributions from their
// Dirichlet conditionals.  A no-op when Ks is 1.
func (m *Model) UpdateSwitch(src rand.Source) {

	if m.Ks == 1 {
		for k := 0; k < m.Kz; k++ {
			m.Switch[k] = 1
		}
		return
	}

	counts := makeFloatArray(m.Kz, m.Ks)
	for p := 0; p < m.NSeries; p++ {
		for b, k := range m.State[p] {
			counts[k][m.SwitchState[p][b]]++
		}
	}

	alpha := make([]float64, m.Ks)
	for k := 0; k < m.Kz; k++ {
		for s := 0; s < m.Ks; s++ {
			alpha[s] = m.Alpha/float64(m.Ks) + counts[k][s]
		}
		dir := distmv.NewDirichlet(alpha, src)
		dir.Rand(m.Switch[k*m.Ks : (k+1)*m.Ks])
	}
}

// UpdateTheta redraws each behavior's residual mean and covariance from
// the Normal-Inverse-Wishart conditional of the residuals currently
// assigned to it.  Behaviors with no assigned data are redrawn from the
// prior.  The lag coefficient blocks are held fixed.
func (m *Model) UpdateTheta(src rand.Source) error {

	d := m.Dim
	nd := m.NLag * m.Dim

	// Residual accumulators per behavior variant
	n := make([][]int, m.Kz)
	sum := make([][]*mat.VecDense, m.Kz)
	res := make([][][]float64, m.Kz)
	for k := 0; k < m.Kz; k++ {
		n[k] = make([]int, m.Ks)
		sum[k] = make([]*mat.VecDense, m.Ks)
		res[k] = make([][]float64, m.Ks)
		for s := 0; s < m.Ks; s++ {
			sum[k][s] = mat.NewVecDense(d, nil)
		}
	}

	e := mat.NewVecDense(d, nil)

	for p := 0; p < m.NSeries; p++ {

		obs := m.Obs[p]
		design := m.Design[p]
		be := m.blockEndFor(p)

		start := 0
		for b, k := range m.State[p] {
			s := m.SwitchState[p][b]
			th := &m.Theta[k][s]
			end := start + 1
			if be != nil {
				end = be[b]
			}
			for t := start; t < end; t++ {
				y := mat.NewVecDense(d, obs[t*d:(t+1)*d])
				yb := mat.NewVecDense(nd, design[t*nd:(t+1)*nd])
				e.MulVec(th.A, yb)
				e.SubVec(y, e)

				n[k][s]++
				sum[k][s].AddVec(sum[k][s], e)
				res[k][s] = append(res[k][s], e.RawVector().Data...)
			}
			start = end
		}
	}

	ybar := mat.NewVecDense(d, nil)
	dev := mat.NewVecDense(d, nil)

	for k := 0; k < m.Kz; k++ {
		for s := 0; s < m.Ks; s++ {

			post := m.Prior
			if n[k][s] > 0 {
				nn := n[k][s]
				ybar.ScaleVec(1/float64(nn), sum[k][s])

				scatter := mat.NewSymDense(d, nil)
				for i := 0; i < nn; i++ {
					ri := mat.NewVecDense(d, res[k][s][i*d:(i+1)*d])
					dev.SubVec(ri, ybar)
					scatter.SymRankOne(scatter, 1, dev)
				}

				post = m.Prior.Posterior(nn, ybar, scatter)
			}

			mu, sigma, err := post.Sample(src)
			if err != nil {
				return fmt.Errorf("behavior (%d,%d): %w", k, s, err)
			}
			m.Theta[k][s].Mu = mu
			m.Theta[k][s].Sigma = sigma
		}
	}

	return nil
}

func (m *Model) blockEndFor(p int) []int {
	if m.BlockEnd == nil {
		return nil
	}
	return m.BlockEnd[p]
}

// Fit runs nsweep Gibbs sweeps, each alternating state sampling, the
// transition and switch distribution updates, and the behavior parameter
// update.  The feature set and lag coefficients are held fixed
// throughout.  The per-sweep total log-likelihood is appended to LLF.
func (m *Model) Fit(nsweep int) error {

	if err := m.Validate(); err != nil {
		return err
	}

	m.LLF = make([]float64, 0, nsweep)
	m.msglogger.Printf("Running %d Gibbs sweeps...\n", nsweep)

	bar := progressbar.New(nsweep)

	for i := 0; i < nsweep; i++ {

		if err := m.SampleStates(); err != nil {
			return fmt.Errorf("sweep %d: %w", i, err)
		}

		src := rand.NewPCG(m.Seed, uint64(m.sweep)<<32|0xffffffff)
		m.UpdateTrans(src)
		m.UpdateInit(src)
		m.UpdateSwitch(src)
		if err := m.UpdateTheta(src); err != nil {
			return fmt.Errorf("sweep %d: %w", i, err)
		}

		llf := m.Loglike()
		m.LLF = append(m.LLF, llf)
		m.msglogger.Printf("sweep %d: llf=%f\n", i, llf)
		_ = bar.Add(1)
	}

	return nil
}
