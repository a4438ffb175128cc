package bparlib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestModelRoundTrip(t *testing.T) {

	m := simModel(t, 2, 2, 30, nil)
	fname := filepath.Join(t.TempDir(), "model.gob.gz")

	require.NoError(t, WriteModel(m, fname))

	m2, err := ReadModel(fname)
	require.NoError(t, err)

	assert.Equal(t, m.NSeries, m2.NSeries)
	assert.Equal(t, m.Kz, m2.Kz)
	assert.Equal(t, m.Ks, m2.Ks)
	assert.Equal(t, m.Dim, m2.Dim)
	assert.Equal(t, m.NLag, m2.NLag)
	assert.Equal(t, m.Seed, m2.Seed)

	assert.Equal(t, m.Trans, m2.Trans)
	assert.Equal(t, m.Obs, m2.Obs)
	assert.Equal(t, m.TruthState, m2.TruthState)

	for k := 0; k < m.Kz; k++ {
		for s := 0; s < m.Ks; s++ {
			assert.True(t, mat.Equal(m.Theta[k][s].A, m2.Theta[k][s].A))
			assert.True(t, mat.Equal(m.Theta[k][s].Mu, m2.Theta[k][s].Mu))
			assert.True(t, mat.Equal(m.Theta[k][s].Sigma, m2.Theta[k][s].Sigma))
		}
	}

	assert.True(t, mat.Equal(m.Prior.Mu0, m2.Prior.Mu0))
	assert.True(t, mat.Equal(m.Prior.Lambda0, m2.Prior.Lambda0))

	// The reloaded model must be usable as-is.
	m2.Initialize()
	require.NoError(t, m2.Validate())
	require.NoError(t, m2.SampleStates())
}
