package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goamg/InputParameters"
	"github.com/notargets/goamg/model_problems/Poisson"
)

func TestProcessInput(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "params.yaml")
	data := []byte(`
Title: "Poisson 1D"
Smoother: jacobi
NumIters: 2
Omega: 0.6667
`)
	require.NoError(t, os.WriteFile(fileName, data, 0o644))
	ip := processInput(fileName)
	assert.Equal(t, "Poisson 1D", ip.Title)
	assert.Equal(t, InputParameters.JacobiSmoother, ip.Smoother)
	assert.Equal(t, 2, ip.NumIters)
	assert.InDelta(t, 0.6667, ip.Omega, 1.e-12)
	// Untouched fields keep their defaults
	assert.True(t, ip.SPD)
	assert.Equal(t, 1.e-8, ip.MinTol)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("Smoother: gauss-seidel\n"), 0o644))
	assert.Panics(t, func() { processInput(bad) })
}

func TestRunSmooth(t *testing.T) {
	for _, tc := range []struct {
		name string
		ms   ModelSmooth
		spd  bool
	}{
		{"poisson1d", ModelSmooth{Problem: Poisson.P_1DPoisson, N: 9, AggSize: 3, NPDE: 1}, true},
		{"poisson1d-block", ModelSmooth{Problem: Poisson.P_1DPoisson, N: 9, AggSize: 3, NPDE: 2}, true},
		{"poisson2d", ModelSmooth{Problem: Poisson.P_2DPoisson, N: 4, AggSize: 4, NPDE: 1}, true},
		{"convection1d", ModelSmooth{Problem: Poisson.P_1DConvection, N: 9, AggSize: 3, NPDE: 1}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ip := InputParameters.NewSmootherParameters()
			ip.SPD = tc.spd
			rpt, err := RunSmooth(&tc.ms, ip)
			require.NoError(t, err)
			require.NotNil(t, rpt.Stats)
			assert.False(t, rpt.Stats.Degenerate)
			assert.Less(t, rpt.NullspaceError, 1.e-10)
			if tc.spd {
				assert.LessOrEqual(t, rpt.EnergyAfter, rpt.EnergyBefore+1.e-12)
			}
			var buf bytes.Buffer
			rpt.Print(&buf)
			assert.Contains(t, buf.String(), "tr(P^T A P)")
		})
	}
	t.Run("jacobi", func(t *testing.T) {
		ip := InputParameters.NewSmootherParameters()
		ip.Smoother = InputParameters.JacobiSmoother
		rpt, err := RunSmooth(&ModelSmooth{Problem: Poisson.P_1DPoisson, N: 9, AggSize: 3, NPDE: 1}, ip)
		require.NoError(t, err)
		assert.Nil(t, rpt.Stats)
		assert.Less(t, rpt.EnergyAfter, rpt.EnergyBefore)
	})
	t.Run("unknown problem", func(t *testing.T) {
		_, err := RunSmooth(&ModelSmooth{Problem: "heat3d", N: 9, AggSize: 3, NPDE: 1},
			InputParameters.NewSmootherParameters())
		assert.Error(t, err)
	})
}
