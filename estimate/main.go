// Command estimate loads a gob data file written by generate (or by an
// external driver), runs Gibbs sweeps over the state sequences and
// behavior parameters, and writes parameter summaries to the log files.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/satpreetsingh/bparhmm/bparlib"
	"gonum.org/v1/gonum/mat"
)

var (
	logger *log.Logger
)

func report(logger *log.Logger, m *bparlib.Model) {

	if m.TruthState == nil {
		return
	}

	var t, tn int
	logger.Printf("Per-series state errors (label permutation not resolved):")
	for p := 0; p < m.NSeries; p++ {
		if len(m.State[p]) != len(m.TruthState[p]) {
			continue
		}
		q, n := bparlib.CompareStates(m.State[p], m.TruthState[p])
		logger.Printf("%d %d/%d\n", p, q, n)
		t += q
		tn += n
	}
	logger.Printf("%d/%d total errors\n", t, tn)
}

func main() {

	gobname := flag.String("gobfile", "", "The data file")
	logname := flag.String("logname", "bparhmm", "Prefix of log file")
	nsweep := flag.Int("nsweep", 100, "Number of Gibbs sweeps")
	alpha := flag.Float64("alpha", 1, "Dirichlet concentration for transition rows")
	kappa := flag.Float64("kappa", 10, "Sticky self-transition bias")
	kappa0 := flag.Float64("kappa0", 1, "NIW pseudo-count")
	seed := flag.Uint64("seed", 0, "Override the random seed in the data file")
	flag.Parse()

	if *gobname == "" {
		_, _ = io.WriteString(os.Stderr, "'gobfile' is a required argument")
		os.Exit(1)
	}

	m, err := bparlib.ReadModel(*gobname)
	if err != nil {
		panic(err)
	}
	logger = m.SetLogger(*logname)

	m.Alpha = *alpha
	m.Kappa = *kappa
	if *seed != 0 {
		m.Seed = *seed
	}

	if m.Prior.Mu0 == nil {
		// Weakly informative default prior centered at zero
		lam := mat.NewSymDense(m.Dim, nil)
		for j := 0; j < m.Dim; j++ {
			lam.SetSym(j, j, 1)
		}
		m.Prior = bparlib.NIWPrior{
			Mu0:     mat.NewVecDense(m.Dim, nil),
			Kappa0:  *kappa0,
			Nu0:     float64(m.Dim) + 2,
			Lambda0: lam,
		}
	}

	m.Initialize()

	if err := m.Fit(*nsweep); err != nil {
		panic(err)
	}

	m.WriteSummary(nil, fmt.Sprintf("Parameters after %d sweeps:", *nsweep))
	report(logger, m)

	if len(m.LLF) > 0 {
		logger.Printf("final llf=%f\n", m.LLF[len(m.LLF)-1])
	}
}
