package bparlib

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestCategoricalOneHot(t *testing.T) {

	for n := 1; n <= 5; n++ {
		for i := 0; i < n; i++ {
			w := make([]float64, n)
			w[i] = 0.7
			for _, u := range []float64{0, 0.25, 0.5, 0.999999} {
				j, err := categorical(w, u)
				if err != nil {
					t.Fatal(err)
				}
				if j != i {
					t.Errorf("n=%d one-hot at %d, u=%v: drew %d", n, i, u, j)
				}
			}
		}
	}
}

func TestCategoricalBoundary(t *testing.T) {

	// A draw exactly on a cumulative boundary resolves to the lower index.
	w := []float64{0.5, 0.5}
	j, err := categorical(w, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if j != 0 {
		t.Errorf("boundary draw resolved to %d, want 0", j)
	}

	w = []float64{0.2, 0.3, 0.5}
	j, err = categorical(w, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if j != 0 {
		t.Errorf("boundary draw resolved to %d, want 0", j)
	}
}

func TestCategoricalProportions(t *testing.T) {

	rng := rand.New(rand.NewPCG(9, 10))
	w := []float64{1, 2, 7}
	counts := make([]float64, 3)
	n := 100000

	for i := 0; i < n; i++ {
		j, err := categorical(w, rng.Float64())
		if err != nil {
			t.Fatal(err)
		}
		counts[j]++
	}

	for j := range w {
		p := counts[j] / float64(n)
		want := w[j] / 10
		if math.Abs(p-want) > 0.01 {
			t.Errorf("index %d drawn with frequency %v, want %v", j, p, want)
		}
	}
}

func TestCategoricalInvalid(t *testing.T) {

	for _, w := range [][]float64{
		{0, 0, 0},
		{},
	} {
		if _, err := categorical(w, 0.5); !errors.Is(err, ErrInvalidDistribution) {
			t.Errorf("weights %v: got %v, want ErrInvalidDistribution", w, err)
		}
	}
}

// TestForwardDeterministic is the degenerate scenario: one-hot emissions
// favoring state 0 at the first two steps and state 1 at the last must
// always yield the trajectory [0, 0, 1].
func TestForwardDeterministic(t *testing.T) {

	kz, T := 2, 3
	ll := NewLogLik(kz, 1, T)
	neg := math.Inf(-1)
	ll.Set(0, 0, 0, 0)
	ll.Set(1, 0, 0, neg)
	ll.Set(0, 0, 1, 0)
	ll.Set(1, 0, 1, neg)
	ll.Set(0, 0, 2, neg)
	ll.Set(1, 0, 2, 0)

	tr := []float64{0.9, 0.1, 0.2, 0.8}
	sw := []float64{1, 1}
	init := []float64{0.5, 0.5}

	msg, err := BackwardPass(ll, tr, sw, nil)
	if err != nil {
		t.Fatal(err)
	}

	for rep := 0; rep < 100; rep++ {
		z, _, err := ForwardSample(msg, ll, tr, init, sw, rand.NewPCG(11, uint64(rep)))
		if err != nil {
			t.Fatal(err)
		}
		want := []int{0, 0, 1}
		for i := range want {
			if z[i] != want[i] {
				t.Fatalf("rep %d: drew %v, want %v", rep, z, want)
			}
		}
	}
}

func TestForwardAgainstTransitions(t *testing.T) {

	// With flat emissions the sampled trajectories follow the chain law;
	// check marginal visit frequencies of the first step against init.
	kz, T := 3, 2
	ll := NewLogLik(kz, 1, T)
	tr := randTrans(kz, rand.New(rand.NewPCG(12, 13)))
	sw := []float64{1, 1, 1}
	init := []float64{0.2, 0.3, 0.5}

	msg, err := BackwardPass(ll, tr, sw, nil)
	if err != nil {
		t.Fatal(err)
	}

	counts := make([]float64, kz)
	n := 50000
	for rep := 0; rep < n; rep++ {
		z, _, err := ForwardSample(msg, ll, tr, init, sw, rand.NewPCG(14, uint64(rep)))
		if err != nil {
			t.Fatal(err)
		}
		counts[z[0]]++
	}

	for k := 0; k < kz; k++ {
		p := counts[k] / float64(n)
		if math.Abs(p-init[k]) > 0.01 {
			t.Errorf("state %d initial frequency %v, want %v", k, p, init[k])
		}
	}
}

func TestSampleSwitch(t *testing.T) {

	ll := NewLogLik(1, 2, 1)
	ll.Set(0, 0, 0, 0)
	ll.Set(0, 1, 0, math.Inf(-1))
	sw := []float64{0.5, 0.5}

	for rep := 0; rep < 50; rep++ {
		rng := rand.New(rand.NewPCG(15, uint64(rep)))
		s, err := sampleSwitch(ll, sw, 0, 0, rng.Float64())
		if err != nil {
			t.Fatal(err)
		}
		if s != 0 {
			t.Fatalf("rep %d: drew switch %d, want 0", rep, s)
		}
	}
}
