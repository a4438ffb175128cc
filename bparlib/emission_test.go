package bparlib

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// testModel builds a model with one series holding the given
// observations and a single-variant behavior library.
func testModel(dim, nlag int, obs []float64, theta []Behavior) *Model {

	nt := len(obs) / dim
	nd := nlag * dim

	design := make([]float64, nt*nd)
	for t := 1; t < nt; t++ {
		for l := 0; l < nlag && t-1-l >= 0; l++ {
			copy(design[t*nd+l*dim:t*nd+(l+1)*dim], obs[(t-1-l)*dim:(t-l)*dim])
		}
	}

	m := New(1, len(theta), 1, dim, nlag)
	m.Theta = make([][]Behavior, len(theta))
	for k := range theta {
		m.Theta[k] = []Behavior{theta[k]}
	}
	m.Obs = [][]float64{obs}
	m.Design = [][]float64{design}

	return m
}

func TestEvalLogLikUnivariate(t *testing.T) {

	// y_t = 0.5*y_{t-1} + e, e ~ N(0, 2)
	a := mat.NewDense(1, 1, []float64{0.5})
	sigma := mat.NewSymDense(1, []float64{2})
	obs := []float64{1, 2, 0}

	m := testModel(1, 1, obs, []Behavior{{A: a, Sigma: sigma}})

	ll, err := m.EvalLogLik(0)
	if err != nil {
		t.Fatal(err)
	}

	dens := func(e float64) float64 {
		return -0.5*(math.Log(2*math.Pi)+math.Log(2)) - e*e/4
	}

	// Residuals: t=0 has a zero design vector
	for tt, want := range []float64{dens(1), dens(2 - 0.5), dens(0 - 1)} {
		if got := ll.At(0, 0, tt); math.Abs(got-want) > 1e-12 {
			t.Errorf("t=%d: loglik=%v, want %v", tt, got, want)
		}
	}
}

func TestEvalLogLikResidualMean(t *testing.T) {

	a := mat.NewDense(1, 1, []float64{0})
	sigma := mat.NewSymDense(1, []float64{1})
	mu := mat.NewVecDense(1, []float64{3})
	obs := []float64{3}

	m := testModel(1, 1, obs, []Behavior{{A: a, Mu: mu, Sigma: sigma}})

	ll, err := m.EvalLogLik(0)
	if err != nil {
		t.Fatal(err)
	}

	want := -0.5 * math.Log(2*math.Pi)
	if got := ll.At(0, 0, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("loglik=%v, want %v", got, want)
	}
}

func TestEvalLogLikDimensionMismatch(t *testing.T) {

	// A behavior whose lag map disagrees with the model sizes
	a := mat.NewDense(2, 2, nil)
	sigma := mat.NewSymDense(2, nil)
	sigma.SetSym(0, 0, 1)
	sigma.SetSym(1, 1, 1)

	m := testModel(1, 1, []float64{0, 1}, []Behavior{{A: a, Sigma: sigma}})

	if _, err := m.EvalLogLik(0); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestEvalLogLikSingularCovariance(t *testing.T) {

	a := mat.NewDense(2, 2, nil)
	sigma := mat.NewSymDense(2, []float64{1, 1, 1, 1}) // rank 1

	m := testModel(2, 1, []float64{0, 0}, []Behavior{{A: a, Sigma: sigma}})

	if _, err := m.EvalLogLik(0); !errors.Is(err, ErrSingularCovariance) {
		t.Errorf("got %v, want ErrSingularCovariance", err)
	}
}
