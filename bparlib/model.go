// Package bparlib implements per-series Gibbs inference for an
// autoregressive hidden Markov model with a shared library of dynamic
// behaviors.  For a fixed behavior set, state posteriors are computed by
// backward message passing and state sequences are drawn by forward
// sampling; behavior parameters are then redrawn from their
// Normal-Inverse-Wishart conditionals.
package bparlib

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// Rows of a transition matrix must sum to 1 within this tolerance.
	rowSumTol = 1e-8

	// Minimum column maximum before a backward message column is
	// considered numerically dead.
	msgMin = 1e-300
)

// Behavior is one reusable autoregressive dynamical parameter set: a lag
// coefficient block, an optional residual mean, and a noise covariance.
type Behavior struct {
	// A maps the stacked past NLag observations (length NLag*Dim) to a
	// predicted current observation (length Dim).
	A *mat.Dense

	// Mu is the residual mean.  A nil Mu is treated as zero.
	Mu *mat.VecDense

	// Sigma is the noise covariance of the AR residual.
	Sigma *mat.SymDense
}

// Model holds the observations, current parameter values, and sampled
// state sequences for a collection of series that share one behavior
// library.
type Model struct {

	// Number of series (e.g. subjects)
	NSeries int

	// Number of behaviors (HMM states)
	Kz int

	// Number of auxiliary switch components per behavior; 1 when unused
	Ks int

	// Number of components of the observation vector
	Dim int

	// Number of autoregressive lags
	NLag int

	// The behavior library, Kz x Ks
	Theta [][]Behavior

	// The behavior transition probability matrix, Kz x Kz row-major
	Trans []float64

	// The initial behavior distribution
	Init []float64

	// The switch distributions, Kz x Ks row-major
	Switch []float64

	// The observations; series p holds NTime[p]*Dim values, time-major
	Obs [][]float64

	// The pre-aggregated lag design vectors; series p holds
	// NTime[p]*NLag*Dim values, time-major
	Design [][]float64

	// Optional run-length segmentation per series: end-exclusive block
	// boundaries in increasing order, the last equal to NTime[p].  A nil
	// entry means every time step is its own block.
	BlockEnd [][]int

	// The sampled state sequence per series, one entry per block
	State [][]int

	// The sampled switch sequence per series, one entry per block
	SwitchState [][]int

	// The true states (if known), for simulation studies
	TruthState [][]int

	// Dirichlet concentration for the transition rows
	Alpha float64

	// Sticky self-transition bias added to the diagonal Dirichlet weight
	Kappa float64

	// Normal-Inverse-Wishart prior shared by all behaviors
	Prior NIWPrior

	// Per-sweep total log-likelihood, appended by Fit
	LLF []float64

	// The log-likelihood for one series, refreshed each sweep
	llf []float64

	// Seed for the per-series random streams
	Seed uint64

	sweep int

	// Write log messages here
	msglogger *log.Logger
	parlogger *log.Logger
}

// New returns a Model with the given size parameters.
func New(nseries, kz, ks, dim, nlag int) *Model {

	if nseries < 1 || kz < 1 || ks < 1 || dim < 1 || nlag < 1 {
		panic("bparlib: all size parameters must be positive")
	}

	return &Model{
		NSeries: nseries,
		Kz:      kz,
		Ks:      ks,
		Dim:     dim,
		NLag:    nlag,
	}
}

// SetLogger provides loggers that will be used to write messages and
// parameter summaries.
func (m *Model) SetLogger(logname string) *log.Logger {

	fid, err := os.Create(logname + "_msg.log")
	if err != nil {
		panic(err)
	}
	m.msglogger = log.New(fid, "", log.Ltime)

	fid, err = os.Create(logname + "_par.log")
	if err != nil {
		panic(err)
	}
	m.parlogger = log.New(fid, "", 0)

	// The calling program can also use this logger
	return m.msglogger
}

// Message writes a message to the message log.
func (m *Model) Message(msg string) {
	m.msglogger.Print(msg)
}

// NTime returns the number of time steps in series p.
func (m *Model) NTime(p int) int {
	return len(m.Obs[p]) / m.Dim
}

// NBlock returns the number of state blocks in series p.
func (m *Model) NBlock(p int) int {
	if m.BlockEnd != nil && m.BlockEnd[p] != nil {
		return len(m.BlockEnd[p])
	}
	return m.NTime(p)
}

// Initialize allocates workspaces for inference.  Call this prior to
// calling Fit or SampleStates.
func (m *Model) Initialize() {

	m.State = make([][]int, m.NSeries)
	m.SwitchState = make([][]int, m.NSeries)
	for p := 0; p < m.NSeries; p++ {
		nb := m.NBlock(p)
		m.State[p] = make([]int, nb)
		m.SwitchState[p] = make([]int, nb)
	}
	m.llf = make([]float64, m.NSeries)

	if m.msglogger == nil {
		m.msglogger = log.New(os.Stderr, "", log.Ltime)
	}
	if m.parlogger == nil {
		m.parlogger = log.New(os.Stderr, "", 0)
	}

	m.msglogger.Printf("%d series\n", m.NSeries)
	m.msglogger.Printf("%d behaviors, %d switch components\n", m.Kz, m.Ks)
	m.msglogger.Printf("%d components per observation, %d lags\n", m.Dim, m.NLag)
}

// Validate checks the model invariants: sizes agree, probability rows sum
// to one, and block boundaries are well formed.
func (m *Model) Validate() error {

	if len(m.Theta) != m.Kz {
		return fmt.Errorf("%w: have %d behavior rows, need Kz=%d",
			ErrDimensionMismatch, len(m.Theta), m.Kz)
	}
	for k, row := range m.Theta {
		if len(row) != m.Ks {
			return fmt.Errorf("%w: behavior row %d has %d variants, need Ks=%d",
				ErrDimensionMismatch, k, len(row), m.Ks)
		}
		for s := range row {
			if err := m.checkBehavior(&row[s]); err != nil {
				return fmt.Errorf("behavior (%d,%d): %w", k, s, err)
			}
		}
	}

	if len(m.Trans) != m.Kz*m.Kz {
		return fmt.Errorf("%w: Trans has length %d, need %d",
			ErrDimensionMismatch, len(m.Trans), m.Kz*m.Kz)
	}
	if len(m.Init) != m.Kz {
		return fmt.Errorf("%w: Init has length %d, need %d",
			ErrDimensionMismatch, len(m.Init), m.Kz)
	}
	if len(m.Switch) != m.Kz*m.Ks {
		return fmt.Errorf("%w: Switch has length %d, need %d",
			ErrDimensionMismatch, len(m.Switch), m.Kz*m.Ks)
	}

	if err := checkRows(m.Trans, m.Kz, m.Kz, "Trans"); err != nil {
		return err
	}
	if err := checkRows(m.Init, 1, m.Kz, "Init"); err != nil {
		return err
	}
	if err := checkRows(m.Switch, m.Kz, m.Ks, "Switch"); err != nil {
		return err
	}

	for p := 0; p < m.NSeries; p++ {
		nt := m.NTime(p)
		if len(m.Obs[p]) != nt*m.Dim {
			return fmt.Errorf("%w: series %d observations are not a multiple of Dim",
				ErrDimensionMismatch, p)
		}
		if len(m.Design[p]) != nt*m.NLag*m.Dim {
			return fmt.Errorf("%w: series %d design has length %d, need %d",
				ErrDimensionMismatch, p, len(m.Design[p]), nt*m.NLag*m.Dim)
		}
		if m.BlockEnd != nil && m.BlockEnd[p] != nil {
			be := m.BlockEnd[p]
			last := 0
			for _, e := range be {
				if e <= last {
					return fmt.Errorf("%w: series %d block boundaries not increasing",
						ErrDimensionMismatch, p)
				}
				last = e
			}
			if last != nt {
				return fmt.Errorf("%w: series %d block boundaries end at %d, need %d",
					ErrDimensionMismatch, p, last, nt)
			}
		}
	}

	return nil
}

func (m *Model) checkBehavior(b *Behavior) error {

	r, c := b.A.Dims()
	if r != m.Dim || c != m.NLag*m.Dim {
		return fmt.Errorf("%w: A is %dx%d, need %dx%d",
			ErrDimensionMismatch, r, c, m.Dim, m.NLag*m.Dim)
	}
	if b.Sigma.SymmetricDim() != m.Dim {
		return fmt.Errorf("%w: Sigma has order %d, need %d",
			ErrDimensionMismatch, b.Sigma.SymmetricDim(), m.Dim)
	}
	if b.Mu != nil && b.Mu.Len() != m.Dim {
		return fmt.Errorf("%w: Mu has length %d, need %d",
			ErrDimensionMismatch, b.Mu.Len(), m.Dim)
	}
	return nil
}

// checkRows confirms that each of the nrow rows of x sums to 1.
func checkRows(x []float64, nrow, ncol int, name string) error {

	for i := 0; i < nrow; i++ {
		row := x[i*ncol : (i+1)*ncol]
		if math.Abs(floats.Sum(row)-1) > rowSumTol {
			return fmt.Errorf("%w: row %d of %s does not sum to 1",
				ErrInvalidDistribution, i, name)
		}
		for _, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: row %d of %s has a negative entry",
					ErrInvalidDistribution, i, name)
			}
		}
	}
	return nil
}

// seriesSource returns a random stream for series p in the current sweep.
// Each series gets its own stream so that the per-series samplers can run
// concurrently.
func (m *Model) seriesSource(p int) rand.Source {
	return rand.NewPCG(m.Seed, uint64(m.sweep)<<32|uint64(p))
}

// makeFloatArray makes a collection of r slices
// of length c, packed contiguously.
func makeFloatArray(r, c int) [][]float64 {

	bka := make([]float64, r*c)
	x := make([][]float64, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}

