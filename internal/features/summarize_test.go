package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func spectral(n int, fn func(i int) model.SpectralProfile) []model.SpectralProfile {
	out := make([]model.SpectralProfile, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func percussiveContext() (*model.Context, []model.OnsetEvent) {
	spec := spectral(40, func(i int) model.SpectralProfile {
		return model.SpectralProfile{
			Time: float64(i) * 0.25, Low: 0.2, Mid: 0.2, High: 0.5,
			Brightness: 0.7, Transient: 0.8, Tonal: 0.1, Percussive: 0.85,
		}
	})
	bands := make([]model.OnsetEvent, 0, 200)
	for i := 0; i < 200; i++ {
		bands = append(bands, model.OnsetEvent{Time: float64(i) * 0.05, Strength: 0.7, Band: model.High})
	}
	ctx := &model.Context{
		Duration: 10,
		Spectral: spec,
		Sections: []model.Section{{Start: 0, End: 10, Kind: model.Chorus, AvgEnergy: 0.8}},
		Tempo:    []model.TempoSegment{{Start: 0, End: 10, BPM: 160}},
	}
	return ctx, bands
}

func TestSummarize_PercussiveTrackScoresHighOnPercussiveFocus(t *testing.T) {
	ctx, highOnsets := percussiveContext()
	f := Summarize(ctx, BandOnsets{High: highOnsets})

	assert.Greater(t, f.PercussiveFocus, 0.5)
	assert.Less(t, f.MelodicFocus, f.PercussiveFocus)
}

func TestSummarize_SustainedTonalTrackScoresHighOnMelodicAndSustained(t *testing.T) {
	spec := spectral(40, func(i int) model.SpectralProfile {
		return model.SpectralProfile{
			Time: float64(i) * 0.25, Low: 0.3, Mid: 0.6, High: 0.1,
			Brightness: 0.3, Transient: 0.1, Tonal: 0.9, Percussive: 0.1,
		}
	})
	ctx := &model.Context{
		Duration: 10,
		Spectral: spec,
		Sections: []model.Section{{Start: 0, End: 10, Kind: model.Verse, AvgEnergy: 0.3}},
		Tempo:    []model.TempoSegment{{Start: 0, End: 10, BPM: 80}},
	}
	midOnsets := []model.OnsetEvent{{Time: 1, Strength: 0.4, Band: model.Mid}, {Time: 5, Strength: 0.4, Band: model.Mid}}

	f := Summarize(ctx, BandOnsets{Mid: midOnsets})

	assert.Greater(t, f.MelodicFocus, 0.5)
	assert.Greater(t, f.SustainedFocus, 0.5)
	assert.Less(t, f.PercussiveFocus, f.MelodicFocus)
}

func TestSummarize_EmptyContextStaysWithinUnitRange(t *testing.T) {
	ctx := &model.Context{Duration: 5}
	f := Summarize(ctx, BandOnsets{})

	for _, v := range []float64{
		f.PercussiveFocus, f.MelodicFocus, f.BassWeight, f.DriveScore, f.SlideAffinity,
		f.SustainedFocus, f.CalmConfidence, f.IntroQuietness, f.DynamicRange, f.SharpnessScore,
	} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestSummarize_QuietIntroRaisesIntroQuietness(t *testing.T) {
	spec := spectral(40, func(i int) model.SpectralProfile {
		return model.SpectralProfile{Time: float64(i) * 0.5, Low: 0.3, Mid: 0.3, High: 0.3, Percussive: 0.3, Tonal: 0.5}
	})
	ctx := &model.Context{
		Duration: 20,
		Spectral: spec,
		Sections: []model.Section{{Start: 0, End: 20, Kind: model.Verse, AvgEnergy: 0.4}},
		Tempo:    []model.TempoSegment{{Start: 0, End: 20, BPM: 120}},
	}
	busyLater := make([]model.OnsetEvent, 0, 60)
	for i := 0; i < 60; i++ {
		busyLater = append(busyLater, model.OnsetEvent{Time: 10 + float64(i)*0.15, Strength: 0.6, Band: model.Mid})
	}

	f := Summarize(ctx, BandOnsets{Mid: busyLater})

	assert.Greater(t, f.IntroQuietness, 0.5)
}
