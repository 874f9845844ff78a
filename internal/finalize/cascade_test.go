package finalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func simpleContext() *model.Context {
	beats := make([]float64, 0, 32)
	for i := 0; i < 32; i++ {
		beats = append(beats, float64(i)*0.5)
	}
	return &model.Context{
		Duration:   16,
		Difficulty: model.Normal,
		Beats:      beats,
		Tempo:      []model.TempoSegment{{Start: 0, End: 16, BPM: 120}},
		Sections:   []model.Section{{Start: 0, End: 16, Kind: model.Verse, AvgEnergy: 0.5}},
		Features:   model.SongFeatures{SustainedFocus: 0.5, PercussiveFocus: 0.5},
	}
}

func TestResolveLongNoteCollisions_TrimsOverlappingHolds(t *testing.T) {
	ctx := simpleContext()
	d1, d2 := 2.0, 2.0
	notes := []model.Note{
		{Time: 0, Lane: model.Top, Kind: model.Hold, Strength: 0.8, Duration: &d1},
		{Time: 1, Lane: model.Top, Kind: model.Hold, Strength: 0.8, Duration: &d2},
	}
	out := ResolveLongNoteCollisions(ctx, nil, notes)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].Time, out[i-1].End())
	}
}

func TestPruneImpossibleNestedNotes_DropsTapInsideHoldBody(t *testing.T) {
	ctx := simpleContext()
	dur := 2.0
	notes := []model.Note{
		{Time: 0, Lane: model.Top, Kind: model.Hold, Strength: 0.8, Duration: &dur},
		{Time: 1, Lane: model.Top, Kind: model.Tap, Strength: 0.8},
	}
	out := PruneImpossibleNestedNotes(ctx, nil, notes)
	for _, n := range out {
		assert.NotEqual(t, model.Tap, n.Kind)
	}
}

func TestPruneImpossibleNestedNotes_KeepsBatonWindowTap(t *testing.T) {
	ctx := simpleContext()
	dur := 2.0
	target := model.Bottom
	notes := []model.Note{
		{Time: 0, Lane: model.Top, Kind: model.Slide, Strength: 0.8, Duration: &dur, TargetLane: &target},
		{Time: 1.0, Lane: model.Bottom, Kind: model.Tap, Strength: 0.8},
	}
	out := PruneImpossibleNestedNotes(ctx, nil, notes)
	hasTap := false
	for _, n := range out {
		if n.Kind == model.Tap {
			hasTap = true
		}
	}
	assert.True(t, hasTap)
}

func TestSanitizeFinalLongNotes_EnforcesMinimumDuration(t *testing.T) {
	ctx := simpleContext()
	tiny := 0.01
	notes := []model.Note{{Time: 0, Lane: model.Top, Kind: model.Hold, Strength: 0.8, Duration: &tiny}}
	out := SanitizeFinalLongNotes(ctx, nil, notes)
	assert.GreaterOrEqual(t, *out[0].Duration, MinHoldDurationSec)
}

func TestRun_OutputStaysTimeOrdered(t *testing.T) {
	ctx := simpleContext()
	var notes []model.Note
	for i := 0; i < 30; i++ {
		notes = append(notes, model.Note{Time: float64(i) * 0.5, Lane: model.Lane(i % 2), Kind: model.Tap, Strength: 0.7})
	}
	var onsets []model.OnsetEvent
	for i := 0; i < 30; i++ {
		onsets = append(onsets, model.OnsetEvent{Time: float64(i) * 0.5, Strength: 0.7, Band: model.Low})
	}
	out := Run(ctx, onsets, notes)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].Time, out[i-1].Time)
	}
}

func TestRun_IdempotentOnSecondTailApplication(t *testing.T) {
	ctx := simpleContext()
	var notes []model.Note
	for i := 0; i < 20; i++ {
		notes = append(notes, model.Note{Time: float64(i) * 0.5, Lane: model.Lane(i % 2), Kind: model.Tap, Strength: 0.7})
	}
	once := PruneImpossibleNestedNotes(ctx, nil, ResolveLongNoteCollisions(ctx, nil, notes))
	twice := PruneImpossibleNestedNotes(ctx, nil, ResolveLongNoteCollisions(ctx, nil, once))
	assert.Equal(t, once, twice)
}
