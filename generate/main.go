// Command generate simulates observations from an AR-HMM with a known
// behavior library and writes them, together with the generating
// parameters and state sequences, to a gzip-compressed gob file.
package main

import (
	"flag"
	"math/rand/v2"

	"github.com/satpreetsingh/bparhmm/bparlib"
	"gonum.org/v1/gonum/mat"
)

func main() {

	var outname string
	flag.StringVar(&outname, "outname", "", "Output file name")

	var nSeries, kz, ks, nTime, dim, nLag int
	flag.IntVar(&nSeries, "nseries", 10, "Number of series")
	flag.IntVar(&kz, "kz", 3, "Number of behaviors")
	flag.IntVar(&ks, "ks", 1, "Number of switch components per behavior")
	flag.IntVar(&nTime, "ntime", 200, "Number of time points per series")
	flag.IntVar(&dim, "dim", 2, "Observation dimension")
	flag.IntVar(&nLag, "nlag", 1, "Number of autoregressive lags")

	var snr float64
	flag.Float64Var(&snr, "snr", 4, "Separation between behavior residual means")

	var seed uint64
	flag.Uint64Var(&seed, "seed", 42, "Random seed")
	flag.Parse()

	if outname == "" {
		panic("'outname' is required")
	}

	m := bparlib.New(nSeries, kz, ks, dim, nLag)
	m.Seed = seed

	// Sticky transition matrix
	m.Trans = make([]float64, kz*kz)
	if kz == 1 {
		m.Trans = []float64{1}
	} else {
		for i := 0; i < kz; i++ {
			p := 0.8 + 0.1*float64(i)/float64(kz-1)
			for j := 0; j < kz; j++ {
				if i == j {
					m.Trans[i*kz+j] = p
				} else {
					m.Trans[i*kz+j] = (1 - p) / float64(kz-1)
				}
			}
		}
	}

	m.Init = make([]float64, kz)
	for i := 0; i < kz; i++ {
		m.Init[i] = 1 / float64(kz)
	}

	m.Switch = make([]float64, kz*ks)
	for i := 0; i < kz; i++ {
		for j := 0; j < ks; j++ {
			m.Switch[i*ks+j] = 1 / float64(ks)
		}
	}

	// Behavior library: each behavior is a damped lag map with a distinct
	// residual mean; switch variants perturb the mean.
	m.Theta = make([][]bparlib.Behavior, kz)
	for k := 0; k < kz; k++ {
		m.Theta[k] = make([]bparlib.Behavior, ks)
		for s := 0; s < ks; s++ {

			a := mat.NewDense(dim, nLag*dim, nil)
			damp := 0.3 + 0.4*float64(k)/float64(kz)
			for j := 0; j < dim; j++ {
				for l := 0; l < nLag; l++ {
					a.Set(j, l*dim+j, damp/float64(nLag))
				}
			}

			mu := mat.NewVecDense(dim, nil)
			mu.SetVec(k%dim, snr*(1+0.2*float64(s)))

			sigma := mat.NewSymDense(dim, nil)
			for j := 0; j < dim; j++ {
				sigma.SetSym(j, j, 1)
			}

			m.Theta[k][s] = bparlib.Behavior{A: a, Mu: mu, Sigma: sigma}
		}
	}

	src := rand.NewPCG(seed, 1)
	if err := m.GenStates(nTime, src); err != nil {
		panic(err)
	}
	if err := m.GenObs(src); err != nil {
		panic(err)
	}

	if err := bparlib.WriteModel(m, outname); err != nil {
		panic(err)
	}
}
