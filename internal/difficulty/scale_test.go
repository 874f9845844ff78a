package difficulty

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func TestScale_DropsWeakNotesBelowStrengthFloor(t *testing.T) {
	notes := []model.Note{
		{Time: 0, Lane: model.Top, Kind: model.Tap, Strength: 0.01},
		{Time: 1, Lane: model.Top, Kind: model.Tap, Strength: 0.9},
	}
	out := Scale(notes, model.Expert)
	assert.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Time)
}

func TestScale_SimplifyLongsFlattensOnEasy(t *testing.T) {
	dur := 1.0
	notes := []model.Note{{Time: 0, Lane: model.Top, Kind: model.Hold, Strength: 0.9, Duration: &dur}}
	out := Scale(notes, model.Easy)
	assert.Len(t, out, 1)
	assert.Equal(t, model.Tap, out[0].Kind)
	assert.Nil(t, out[0].Duration)
}

func TestScale_EnforcesMinLaneGap(t *testing.T) {
	notes := []model.Note{
		{Time: 0, Lane: model.Top, Kind: model.Tap, Strength: 0.9},
		{Time: 0.01, Lane: model.Top, Kind: model.Tap, Strength: 0.9},
	}
	out := Scale(notes, model.Expert)
	assert.Len(t, out, 1)
}

func TestScale_FlipsLaneWhenRunLimitReached(t *testing.T) {
	var notes []model.Note
	for i := 0; i < 3; i++ {
		notes = append(notes, model.Note{Time: float64(i) * 0.5, Lane: model.Top, Kind: model.Tap, Strength: 0.9})
	}
	out := Scale(notes, model.Easy)
	// Easy's run limit is 2, so the second Top tap is the one that reaches it.
	assert.Equal(t, model.Bottom, out[1].Lane)
}
