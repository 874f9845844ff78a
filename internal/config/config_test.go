package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsWithNoEnv(t *testing.T) {
	opts, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, 420.0, opts.MaxAnalysisSeconds)
	assert.False(t, opts.Debug)
	assert.GreaterOrEqual(t, opts.Perf.Cores, 1)
}

func TestLoad_OverlaysEnvironmentVariables(t *testing.T) {
	t.Setenv("MAPGEN_MAX_ANALYSIS", "90")
	t.Setenv("MAPGEN_DEBUG", "true")
	t.Setenv("MAPGEN_CORES", "4")

	opts, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, 90.0, opts.MaxAnalysisSeconds)
	assert.True(t, opts.Debug)
	assert.Equal(t, 4, opts.Perf.Cores)
}

func TestLoad_RejectsInvalidMaxAnalysis(t *testing.T) {
	t.Setenv("MAPGEN_MAX_ANALYSIS", "-5")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedBool(t *testing.T) {
	t.Setenv("MAPGEN_DEBUG", "not-a-bool")
	_, err := Load("")
	assert.Error(t, err)
}
