package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func steadyOnsets(n int, interval float64) []model.OnsetEvent {
	out := make([]model.OnsetEvent, n)
	for i := range out {
		out[i] = model.OnsetEvent{Time: float64(i) * interval, Strength: 0.9, Band: model.Low}
	}
	return out
}

func TestRefineBeatOffset_LocksToSteadyGrid(t *testing.T) {
	onsets := steadyOnsets(40, 0.5)
	offset, err := RefineBeatOffset(0.2, 120, onsets)
	assert.NoError(t, err)
	assert.InDelta(t, 0, gridDistance(0, offset, 0.5), 0.02)
}

func TestRefineBeatOffset_TooFewOnsetsReturnsErrNoData(t *testing.T) {
	onsets := steadyOnsets(3, 0.5)
	_, err := RefineBeatOffset(0.1, 120, onsets)
	assert.Error(t, err)
	assert.IsType(t, ErrNoData{}, err)
}

func TestBestTempoGrid_StaysNearBaseWhenOnsetsMatch(t *testing.T) {
	onsets := steadyOnsets(60, 0.5)
	bpm, _ := BestTempoGrid(120, 0, onsets)
	assert.InDelta(t, 120, bpm, 20)
}

func TestBuildAdaptiveTempoSegments_CoversFullDuration(t *testing.T) {
	onsets := steadyOnsets(120, 0.5)
	segs := BuildAdaptiveTempoSegments(onsets, 120, 60)
	assert.NotEmpty(t, segs)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.InDelta(t, 60.0, segs[len(segs)-1].End, 1e-9)
	for i := 1; i < len(segs); i++ {
		assert.InDelta(t, segs[i-1].End, segs[i].Start, 1e-9)
	}
}

func TestBuildAdaptiveTempoSegments_EmptyOnsetsFallsBackToBase(t *testing.T) {
	segs := BuildAdaptiveTempoSegments(nil, 128, 20)
	assert.NotEmpty(t, segs)
	for _, s := range segs {
		assert.InDelta(t, 128, s.BPM, 20)
	}
}
