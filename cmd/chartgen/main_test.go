package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func TestParseDifficulty(t *testing.T) {
	cases := map[string]model.Difficulty{
		"easy":   model.Easy,
		"Normal": model.Normal,
		" hard ": model.Hard,
		"EXPERT": model.Expert,
	}
	for in, want := range cases {
		got, err := parseDifficulty(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parseDifficulty("impossible")
	assert.Error(t, err)
}

func TestRunIDSeed_DeterministicAndDistinct(t *testing.T) {
	a := runIDSeed("11111111-1111-1111-1111-111111111111")
	b := runIDSeed("11111111-1111-1111-1111-111111111111")
	c := runIDSeed("22222222-2222-2222-2222-222222222222")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.GreaterOrEqual(t, a, int64(0))
}

func TestWriteChart_WritesJSONNextToBase(t *testing.T) {
	dir := t.TempDir()
	chart := model.Chart{BPM: 120, Duration: 30, Difficulty: model.Hard}

	err := writeChart(dir, "/tracks/boss-theme.wav", chart)
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "boss-theme.chart.json"))
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"BPM": 120`)
}
