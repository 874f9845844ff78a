package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func qualityContext() *model.Context {
	return &model.Context{
		Duration:   20,
		Difficulty: model.Normal,
		Tempo:      []model.TempoSegment{{Start: 0, End: 20, BPM: 120}},
		Sections: []model.Section{
			{Start: 0, End: 4, Kind: model.Intro, AvgEnergy: 0.2},
			{Start: 4, End: 12, Kind: model.Verse, AvgEnergy: 0.5},
			{Start: 12, End: 20, Kind: model.Chorus, AvgEnergy: 0.9},
		},
	}
}

func TestScore_StaysWithinUnitRange(t *testing.T) {
	ctx := qualityContext()
	var notes []model.Note
	var onsets []model.OnsetEvent
	for i := 0; i < 80; i++ {
		t := float64(i) * 0.25
		notes = append(notes, model.Note{Time: t, Lane: model.Lane(i % 2), Kind: model.Tap, Strength: 0.6})
		onsets = append(onsets, model.OnsetEvent{Time: t, Strength: 0.6, Band: model.Low})
	}
	score := Score(ctx, onsets, notes)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestSelectBest_PrefersEnrichedWhenScoreClose(t *testing.T) {
	conservative := Candidate{Notes: make([]model.Note, 30), Score: 0.7}
	enriched := Candidate{Notes: make([]model.Note, 40), Score: 0.68}
	assert.Equal(t, enriched, SelectBest(conservative, enriched, false))
}

func TestSelectBest_FallsBackToConservativeWhenEnrichedWeakAndSparse(t *testing.T) {
	conservative := Candidate{Notes: make([]model.Note, 30), Score: 0.7}
	enriched := Candidate{Notes: make([]model.Note, 10), Score: -0.5}
	assert.Equal(t, conservative, SelectBest(conservative, enriched, false))
}

func TestQualityFloor_IncreasesWithDifficulty(t *testing.T) {
	assert.Less(t, QualityFloor(model.Easy, 0), QualityFloor(model.Expert, 0))
}
