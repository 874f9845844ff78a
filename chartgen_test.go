package chartgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

// fakeAnalyzer is a minimal, deterministic stand-in for the host-supplied
// Analyzer, letting these tests drive the pipeline without depending on
// internal/refanalyzer's FFT-backed implementation.
type fakeAnalyzer struct {
	bpm        float64
	offset     float64
	onsets     OnsetResult
	sections   []model.Section
	failSpectral bool
}

func (f fakeAnalyzer) DetectBPM(ctx context.Context, audio AudioBuffer) (BPMEstimate, error) {
	bpm := f.bpm
	if bpm == 0 {
		bpm = 120
	}
	return BPMEstimate{BPM: bpm, FirstBeatOffset: f.offset}, nil
}

func (f fakeAnalyzer) GenerateBeatPositions(ctx context.Context, bpm, duration, offset float64, subdivisions int) ([]float64, error) {
	interval := 60.0 / bpm
	var out []float64
	for t := offset; t < duration; t += interval {
		out = append(out, t)
	}
	return out, nil
}

func (f fakeAnalyzer) ComputeOnsetFlux(ctx context.Context, audio AudioBuffer, opts FluxOptions) (OnsetFluxProfile, error) {
	return OnsetFluxProfile{}, nil
}

func (f fakeAnalyzer) DetectOnsetsFromFlux(ctx context.Context, flux OnsetFluxProfile, sensitivity float64) (OnsetResult, error) {
	return f.onsets, nil
}

func (f fakeAnalyzer) QuantizeOnsets(ctx context.Context, times []float64, grid []float64) ([]float64, error) {
	return times, nil
}

func (f fakeAnalyzer) AnalyzeSpectralProfiles(ctx context.Context, audio AudioBuffer, samplePoints []float64, opts SpectralOptions) ([]model.SpectralProfile, error) {
	if f.failSpectral {
		return nil, assert.AnError
	}
	return nil, nil
}

func (f fakeAnalyzer) DetectSections(ctx context.Context, audio AudioBuffer) ([]model.Section, error) {
	if len(f.sections) == 0 {
		return nil, nil
	}
	return f.sections, nil
}

func silentBuffer(seconds float64, sampleRate int) AudioBuffer {
	length := int(seconds * float64(sampleRate))
	ch := make([]float64, length)
	return AudioBuffer{SampleRate: sampleRate, Length: length, NumberOfChannels: 1, Channels: [][]float64{ch}}
}

func TestGenerate_MissingAudioReturnsError(t *testing.T) {
	_, err := Generate(context.Background(), AudioBuffer{}, GenerateOptions{
		Difficulty: model.Normal,
		Analyzer:   fakeAnalyzer{},
	})
	assert.ErrorIs(t, err, ErrMissingAudio)
}

func TestGenerate_RequiresAnalyzer(t *testing.T) {
	_, err := Generate(context.Background(), silentBuffer(5, 44100), GenerateOptions{Difficulty: model.Normal})
	assert.Error(t, err)
}

func TestGenerate_SilentAudioProducesFallbackChart(t *testing.T) {
	audio := silentBuffer(30, 44100)
	chart, err := Generate(context.Background(), audio, GenerateOptions{
		Difficulty: model.Normal,
		Analyzer:   fakeAnalyzer{},
		RNGSeed:    7,
	})
	assert.NoError(t, err)
	assert.InDelta(t, 30.0, chart.Duration, 0.001)
	assert.Equal(t, model.Normal, chart.Difficulty)
	assert.GreaterOrEqual(t, len(chart.Notes), 14)
	assert.Equal(t, len(chart.Notes), chart.TotalNotes)
	assert.NotEmpty(t, chart.Sections)
	assert.NotEmpty(t, chart.BeatPositions)

	for i, n := range chart.Notes {
		assert.GreaterOrEqual(t, n.Time, 0.0)
		assert.Less(t, n.Time, chart.Duration)
		if i > 0 {
			assert.GreaterOrEqual(t, n.Time, chart.Notes[i-1].Time)
		}
	}
	assert.Contains(t, []model.VisualTheme{model.Meadow, model.Sunset, model.NightCity}, chart.VisualTheme)
}

func TestGenerate_IsDeterministic(t *testing.T) {
	audio := silentBuffer(16, 44100)
	opts := GenerateOptions{Difficulty: model.Hard, Analyzer: fakeAnalyzer{bpm: 120}, RNGSeed: 42}

	first, err := Generate(context.Background(), audio, opts)
	assert.NoError(t, err)
	second, err := Generate(context.Background(), audio, opts)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerate_RecoversFromFailingSpectralAnalyzer(t *testing.T) {
	audio := silentBuffer(20, 44100)
	chart, err := Generate(context.Background(), audio, GenerateOptions{
		Difficulty: model.Expert,
		Analyzer:   fakeAnalyzer{failSpectral: true},
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(chart.Notes), 22)
}

func TestGenerate_KickEveryBeatProducesOnlyTaps(t *testing.T) {
	audio := silentBuffer(16, 44100)
	var onsets, strengths []float64
	for t := 0.0; t < 16; t += 0.5 {
		onsets = append(onsets, t)
		strengths = append(strengths, 0.9)
	}
	analyzer := fakeAnalyzer{
		bpm: 120,
		onsets: OnsetResult{
			Onsets: onsets, Strengths: strengths,
			LowOnsets: onsets, LowStrengths: strengths,
		},
	}
	chart, err := Generate(context.Background(), audio, GenerateOptions{
		Difficulty: model.Hard,
		Analyzer:   analyzer,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, chart.Notes)
	for _, n := range chart.Notes {
		assert.Equal(t, model.Tap, n.Kind)
	}
}
