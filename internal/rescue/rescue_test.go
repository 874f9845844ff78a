package rescue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func TestBuild_EmptyOnsetsSynthesizesEightAlternatingTaps(t *testing.T) {
	ctx := &model.Context{Duration: 20, Difficulty: model.Expert, Tempo: []model.TempoSegment{{Start: 0, End: 20, BPM: 120}}}
	notes := Build(ctx, nil)
	assert.Len(t, notes, 8)
	for i := 1; i < len(notes); i++ {
		assert.NotEqual(t, notes[i-1].Lane, notes[i].Lane)
		assert.Greater(t, notes[i].Time, notes[i-1].Time)
	}
}

func TestBuild_MeetsEmergencyFloorFromStrongOnsets(t *testing.T) {
	beats := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		beats = append(beats, float64(i)*0.5)
	}
	ctx := &model.Context{Duration: 20, Difficulty: model.Expert, Beats: beats, Tempo: []model.TempoSegment{{Start: 0, End: 20, BPM: 120}}}
	var onsets []model.OnsetEvent
	for i := 0; i < 40; i++ {
		onsets = append(onsets, model.OnsetEvent{Time: float64(i) * 0.5, Strength: 0.8, Band: model.Low})
	}
	notes := Build(ctx, onsets)
	assert.GreaterOrEqual(t, len(notes), Floor(model.Expert, 20))
}

func TestFloor_UsesBaseWhenDurationRateIsLower(t *testing.T) {
	assert.Equal(t, 22, Floor(model.Expert, 10))
}
