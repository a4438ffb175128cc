package bparlib

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Above this many degrees of freedom (plus the dimension), integral dofs
// are sampled by the Bartlett decomposition rather than by summing outer
// products of normal vectors.
const directDofMax = 81

// Wishart draws a precision matrix from the Wishart distribution with the
// given positive-definite scale matrix and degrees of freedom.  Integral
// dof up to directDofMax+dim use exact finite sampling: the sum of dof
// outer products of standard-normal vectors mapped through the Cholesky
// factor of the scale.  Larger or fractional dof use the Bartlett
// decomposition, a lower-triangular matrix with chi-squared diagonal
// entries (dof-i degrees of freedom for diagonal i) and standard-normal
// strictly-lower entries.
func Wishart(scale *mat.SymDense, dof float64, src rand.Source) (*mat.SymDense, error) {

	d := scale.SymmetricDim()
	if dof < float64(d) {
		return nil, fmt.Errorf("%w: dof %v below dimension %d", ErrInvalidDistribution, dof, d)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(scale); !ok {
		return nil, fmt.Errorf("%w: Wishart scale matrix", ErrNotPositiveDefinite)
	}
	l := mat.NewTriDense(d, mat.Lower, nil)
	chol.LTo(l)

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	if dof == math.Trunc(dof) && dof <= float64(directDofMax+d) {
		return wishartDirect(l, int(dof), norm), nil
	}
	return wishartBartlett(l, dof, norm, src), nil
}

// wishartDirect sums n outer products of L·x with x standard normal.
func wishartDirect(l *mat.TriDense, n int, norm distuv.Normal) *mat.SymDense {

	d, _ := l.Dims()
	w := mat.NewSymDense(d, nil)
	x := mat.NewVecDense(d, nil)
	v := mat.NewVecDense(d, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.SetVec(j, norm.Rand())
		}
		v.MulVec(l, x)
		w.SymRankOne(w, 1, v)
	}

	return w
}

// wishartBartlett applies the Bartlett decomposition: W = (L·T)(L·T)'.
func wishartBartlett(l *mat.TriDense, dof float64, norm distuv.Normal, src rand.Source) *mat.SymDense {

	d, _ := l.Dims()
	bt := mat.NewTriDense(d, mat.Lower, nil)

	for i := 0; i < d; i++ {
		chi2 := distuv.ChiSquared{K: dof - float64(i), Src: src}
		bt.SetTri(i, i, math.Sqrt(chi2.Rand()))
		for j := 0; j < i; j++ {
			bt.SetTri(i, j, norm.Rand())
		}
	}

	lt := mat.NewDense(d, d, nil)
	lt.Mul(l, bt)

	w := mat.NewSymDense(d, nil)
	w.SymOuterK(1, lt)

	return w
}

// InvWishart draws a covariance matrix from the Inverse-Wishart
// distribution with the given scale matrix and degrees of freedom, by
// drawing a Wishart matrix on the inverted scale and inverting the draw.
func InvWishart(scale *mat.SymDense, dof float64, src rand.Source) (*mat.SymDense, error) {

	d := scale.SymmetricDim()

	var chol mat.Cholesky
	if ok := chol.Factorize(scale); !ok {
		return nil, fmt.Errorf("%w: Inverse-Wishart scale matrix", ErrNotPositiveDefinite)
	}

	inv := mat.NewSymDense(d, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("%w: Inverse-Wishart scale matrix", ErrNotPositiveDefinite)
	}

	w, err := Wishart(inv, dof, src)
	if err != nil {
		return nil, err
	}

	var wchol mat.Cholesky
	if ok := wchol.Factorize(w); !ok {
		return nil, fmt.Errorf("%w: Wishart draw", ErrNotPositiveDefinite)
	}
	sigma := mat.NewSymDense(d, nil)
	if err := wchol.InverseTo(sigma); err != nil {
		return nil, fmt.Errorf("%w: Wishart draw", ErrNotPositiveDefinite)
	}

	return sigma, nil
}

// MVNormal draws from the multivariate normal distribution with the given
// mean and covariance, via the Cholesky factor of the covariance.
func MVNormal(mu *mat.VecDense, sigma *mat.SymDense, src rand.Source) (*mat.VecDense, error) {

	d := sigma.SymmetricDim()
	if mu.Len() != d {
		return nil, fmt.Errorf("%w: mean has length %d, covariance has order %d",
			ErrDimensionMismatch, mu.Len(), d)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return nil, fmt.Errorf("%w: normal covariance", ErrNotPositiveDefinite)
	}
	l := mat.NewTriDense(d, mat.Lower, nil)
	chol.LTo(l)

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	x := mat.NewVecDense(d, nil)
	for j := 0; j < d; j++ {
		x.SetVec(j, norm.Rand())
	}

	y := mat.NewVecDense(d, nil)
	y.MulVec(l, x)
	y.AddVec(y, mu)

	return y, nil
}

// NIWPrior holds the hyperparameters of a Normal-Inverse-Wishart prior on
// a (mean, covariance) pair.
type NIWPrior struct {
	// Mu0 is the prior mean.
	Mu0 *mat.VecDense

	// Kappa0 is the pseudo-count controlling belief in Mu0.
	Kappa0 float64

	// Nu0 is the Inverse-Wishart degrees of freedom.
	Nu0 float64

	// Lambda0 is the Inverse-Wishart scale matrix.
	Lambda0 *mat.SymDense
}

// Sample draws (mean, covariance) from the prior: the covariance from
// InvWishart(Lambda0, Nu0), then the mean from N(Mu0, covariance/Kappa0).
func (pr *NIWPrior) Sample(src rand.Source) (*mat.VecDense, *mat.SymDense, error) {

	if pr.Kappa0 <= 0 {
		return nil, nil, fmt.Errorf("%w: Kappa0 must be positive", ErrInvalidDistribution)
	}

	sigma, err := InvWishart(pr.Lambda0, pr.Nu0, src)
	if err != nil {
		return nil, nil, err
	}

	d := sigma.SymmetricDim()
	sc := mat.NewSymDense(d, nil)
	sc.ScaleSym(1/pr.Kappa0, sigma)

	mu, err := MVNormal(pr.Mu0, sc, src)
	if err != nil {
		return nil, nil, err
	}

	return mu, sigma, nil
}

// Posterior returns the NIW posterior given n observed vectors with mean
// ybar and centered scatter matrix scatter (sum of (y-ybar)(y-ybar)').
func (pr *NIWPrior) Posterior(n int, ybar *mat.VecDense, scatter *mat.SymDense) NIWPrior {

	fn := float64(n)
	kn := pr.Kappa0 + fn
	nun := pr.Nu0 + fn

	d := pr.Mu0.Len()
	mun := mat.NewVecDense(d, nil)
	mun.AddScaledVec(mun, pr.Kappa0, pr.Mu0)
	mun.AddScaledVec(mun, fn, ybar)
	mun.ScaleVec(1/kn, mun)

	dev := mat.NewVecDense(d, nil)
	dev.SubVec(ybar, pr.Mu0)

	lam := mat.NewSymDense(d, nil)
	lam.CopySym(pr.Lambda0)
	lam.AddSym(lam, scatter)
	lam.SymRankOne(lam, pr.Kappa0*fn/kn, dev)

	return NIWPrior{
		Mu0:     mun,
		Kappa0:  kn,
		Nu0:     nun,
		Lambda0: lam,
	}
}
