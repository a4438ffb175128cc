package bparlib

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// wishartMean averages n draws entrywise.
func wishartMean(t *testing.T, scale *mat.SymDense, dof float64, n int, src rand.Source) *mat.Dense {
	t.Helper()

	d := scale.SymmetricDim()
	mean := mat.NewDense(d, d, nil)

	for i := 0; i < n; i++ {
		w, err := Wishart(scale, dof, src)
		require.NoError(t, err)
		for r := 0; r < d; r++ {
			for c := 0; c < d; c++ {
				mean.Set(r, c, mean.At(r, c)+w.At(r, c)/float64(n))
			}
		}
	}

	return mean
}

// The Wishart mean is dof times the scale matrix; both dof code paths
// must agree with it over many draws.
func TestWishartMomentsDirect(t *testing.T) {

	scale := mat.NewSymDense(2, []float64{1.5, 0.3, 0.3, 1})
	dof := 5.0 // integral and small: direct path
	src := rand.NewPCG(20, 21)

	mean := wishartMean(t, scale, dof, 10000, src)

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			assert.InDelta(t, dof*scale.At(r, c), mean.At(r, c), 0.25)
		}
	}
}

func TestWishartMomentsBartlett(t *testing.T) {

	scale := mat.NewSymDense(2, []float64{1, 0.2, 0.2, 0.8})
	dof := 100.5 // fractional: Bartlett path
	src := rand.NewPCG(22, 23)

	mean := wishartMean(t, scale, dof, 10000, src)

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			want := dof * scale.At(r, c)
			assert.InDelta(t, want, mean.At(r, c), 1+0.01*math.Abs(want))
		}
	}
}

// The Inverse-Wishart mean is scale/(dof-d-1).
func TestInvWishartMoments(t *testing.T) {

	d := 2
	dof := 10.0
	scale := mat.NewSymDense(d, []float64{7, 1.4, 1.4, 7})
	src := rand.NewPCG(24, 25)

	mean := mat.NewDense(d, d, nil)
	n := 10000
	for i := 0; i < n; i++ {
		w, err := InvWishart(scale, dof, src)
		require.NoError(t, err)
		for r := 0; r < d; r++ {
			for c := 0; c < d; c++ {
				mean.Set(r, c, mean.At(r, c)+w.At(r, c)/float64(n))
			}
		}
	}

	den := dof - float64(d) - 1
	for r := 0; r < d; r++ {
		for c := 0; c < d; c++ {
			assert.InDelta(t, scale.At(r, c)/den, mean.At(r, c), 0.06)
		}
	}
}

func TestWishartNotPositiveDefinite(t *testing.T) {

	bad := mat.NewSymDense(2, []float64{1, 2, 2, 1}) // indefinite

	_, err := Wishart(bad, 5, rand.NewPCG(26, 27))
	require.ErrorIs(t, err, ErrNotPositiveDefinite)

	_, err = InvWishart(bad, 5, rand.NewPCG(26, 27))
	require.ErrorIs(t, err, ErrNotPositiveDefinite)

	_, err = MVNormal(mat.NewVecDense(2, nil), bad, rand.NewPCG(26, 27))
	require.ErrorIs(t, err, ErrNotPositiveDefinite)
}

func TestNIWSample(t *testing.T) {

	d := 2
	lam := mat.NewSymDense(d, []float64{2, 0.1, 0.1, 2})
	pr := NIWPrior{
		Mu0:     mat.NewVecDense(d, []float64{1, -1}),
		Kappa0:  2,
		Nu0:     8,
		Lambda0: lam,
	}

	mu, sigma, err := pr.Sample(rand.NewPCG(28, 29))
	require.NoError(t, err)
	require.Equal(t, d, mu.Len())
	require.Equal(t, d, sigma.SymmetricDim())

	// The draw must itself be positive definite.
	var chol mat.Cholesky
	require.True(t, chol.Factorize(sigma))

	// Same seed, same draw.
	mu2, sigma2, err := pr.Sample(rand.NewPCG(28, 29))
	require.NoError(t, err)
	require.True(t, mat.Equal(mu, mu2))
	require.True(t, mat.Equal(sigma, sigma2))
}

func TestNIWPosterior(t *testing.T) {

	d := 1
	pr := NIWPrior{
		Mu0:     mat.NewVecDense(d, []float64{0}),
		Kappa0:  1,
		Nu0:     3,
		Lambda0: mat.NewSymDense(d, []float64{1}),
	}

	// Two observations at 2 and 4: ybar=3, scatter=2
	ybar := mat.NewVecDense(d, []float64{3})
	scatter := mat.NewSymDense(d, []float64{2})

	post := pr.Posterior(2, ybar, scatter)

	assert.Equal(t, 3.0, post.Kappa0)
	assert.Equal(t, 5.0, post.Nu0)
	assert.InDelta(t, 2.0, post.Mu0.AtVec(0), 1e-12) // (1*0 + 2*3)/3
	// lambda = 1 + 2 + (1*2/3)*(3-0)^2 = 9
	assert.InDelta(t, 9.0, post.Lambda0.At(0, 0), 1e-12)
}
