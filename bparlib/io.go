package bparlib

import (
	"compress/gzip"
	"encoding/gob"
	"os"

	"gonum.org/v1/gonum/mat"
)

// behaviorSnap is the gob image of a Behavior.
type behaviorSnap struct {
	ARows, ACols int
	A            []float64
	Mu           []float64
	Sigma        []float64
}

// modelSnap is the gob image of a Model.  The gonum matrix types are
// flattened to raw slices for encoding.
type modelSnap struct {
	NSeries, Kz, Ks, Dim, NLag int

	Theta [][]behaviorSnap

	Trans, Init, Switch []float64

	Obs, Design [][]float64
	BlockEnd    [][]int

	State, SwitchState, TruthState [][]int

	Alpha, Kappa float64

	PriorMu0                 []float64
	PriorKappa0, PriorNu0    float64
	PriorLambda0             []float64
	PriorDim                 int

	Seed uint64
}

func snapSym(s *mat.SymDense) []float64 {
	if s == nil {
		return nil
	}
	d := s.SymmetricDim()
	out := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			out[i*d+j] = s.At(i, j)
		}
	}
	return out
}

func snapVec(v *mat.VecDense) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// WriteModel writes the model as a gzip-compressed gob file.
func WriteModel(m *Model, fname string) error {

	snap := modelSnap{
		NSeries:     m.NSeries,
		Kz:          m.Kz,
		Ks:          m.Ks,
		Dim:         m.Dim,
		NLag:        m.NLag,
		Trans:       m.Trans,
		Init:        m.Init,
		Switch:      m.Switch,
		Obs:         m.Obs,
		Design:      m.Design,
		BlockEnd:    m.BlockEnd,
		State:       m.State,
		SwitchState: m.SwitchState,
		TruthState:  m.TruthState,
		Alpha:       m.Alpha,
		Kappa:       m.Kappa,
		Seed:        m.Seed,
	}

	if m.Prior.Mu0 != nil {
		snap.PriorMu0 = snapVec(m.Prior.Mu0)
		snap.PriorKappa0 = m.Prior.Kappa0
		snap.PriorNu0 = m.Prior.Nu0
		snap.PriorLambda0 = snapSym(m.Prior.Lambda0)
		snap.PriorDim = m.Prior.Mu0.Len()
	}

	snap.Theta = make([][]behaviorSnap, len(m.Theta))
	for k, row := range m.Theta {
		snap.Theta[k] = make([]behaviorSnap, len(row))
		for s := range row {
			b := &row[s]
			r, c := b.A.Dims()
			bs := behaviorSnap{
				ARows: r,
				ACols: c,
				A:     make([]float64, r*c),
				Mu:    snapVec(b.Mu),
				Sigma: snapSym(b.Sigma),
			}
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					bs.A[i*c+j] = b.A.At(i, j)
				}
			}
			snap.Theta[k][s] = bs
		}
	}

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fid.Close()

	gid := gzip.NewWriter(fid)
	defer gid.Close()

	return gob.NewEncoder(gid).Encode(&snap)
}

// ReadModel reads a model from a gzip-compressed gob file written by
// WriteModel.
func ReadModel(fname string) (*Model, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	gid, err := gzip.NewReader(fid)
	if err != nil {
		return nil, err
	}
	defer gid.Close()

	var snap modelSnap
	if err := gob.NewDecoder(gid).Decode(&snap); err != nil {
		return nil, err
	}

	m := New(snap.NSeries, snap.Kz, snap.Ks, snap.Dim, snap.NLag)
	m.Trans = snap.Trans
	m.Init = snap.Init
	m.Switch = snap.Switch
	m.Obs = snap.Obs
	m.Design = snap.Design
	m.BlockEnd = snap.BlockEnd
	m.State = snap.State
	m.SwitchState = snap.SwitchState
	m.TruthState = snap.TruthState
	m.Alpha = snap.Alpha
	m.Kappa = snap.Kappa
	m.Seed = snap.Seed

	if snap.PriorMu0 != nil {
		d := snap.PriorDim
		m.Prior = NIWPrior{
			Mu0:     mat.NewVecDense(d, snap.PriorMu0),
			Kappa0:  snap.PriorKappa0,
			Nu0:     snap.PriorNu0,
			Lambda0: newSymFromRowMajor(d, snap.PriorLambda0),
		}
	}

	m.Theta = make([][]Behavior, len(snap.Theta))
	for k, row := range snap.Theta {
		m.Theta[k] = make([]Behavior, len(row))
		for s, bs := range row {
			b := Behavior{
				A:     mat.NewDense(bs.ARows, bs.ACols, bs.A),
				Sigma: newSymFromRowMajor(bs.ARows, bs.Sigma),
			}
			if bs.Mu != nil {
				b.Mu = mat.NewVecDense(len(bs.Mu), bs.Mu)
			}
			m.Theta[k][s] = b
		}
	}

	return m, nil
}

func newSymFromRowMajor(d int, data []float64) *mat.SymDense {
	if data == nil {
		return nil
	}
	s := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			s.SetSym(i, j, data[i*d+j])
		}
	}
	return s
}
