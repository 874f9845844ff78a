package refanalyzer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	chartgen "github.com/basswave/chartgen"
)

func sineBuffer(freq float64, seconds float64, sampleRate int) chartgen.AudioBuffer {
	n := int(seconds * float64(sampleRate))
	ch := make([]float64, n)
	for i := range ch {
		t := float64(i) / float64(sampleRate)
		ch[i] = math.Sin(2 * math.Pi * freq * t)
	}
	return chartgen.AudioBuffer{SampleRate: sampleRate, Length: n, NumberOfChannels: 1, Channels: [][]float64{ch}}
}

func clickTrack(bpm float64, seconds float64, sampleRate int) chartgen.AudioBuffer {
	n := int(seconds * float64(sampleRate))
	ch := make([]float64, n)
	interval := 60.0 / bpm
	for beat := 0.0; beat < seconds; beat += interval {
		start := int(beat * float64(sampleRate))
		for k := 0; k < 200 && start+k < n; k++ {
			ch[start+k] = 0.9
		}
	}
	return chartgen.AudioBuffer{SampleRate: sampleRate, Length: n, NumberOfChannels: 1, Channels: [][]float64{ch}}
}

func TestDetectBPM_ClickTrackStaysInRange(t *testing.T) {
	a := New()
	audio := clickTrack(128, 12, 22050)
	est, err := a.DetectBPM(context.Background(), audio)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, est.BPM, 60.0)
	assert.LessOrEqual(t, est.BPM, 200.0)
}

func TestDetectBPM_EmptyAudioFallsBackToDefault(t *testing.T) {
	a := New()
	est, err := a.DetectBPM(context.Background(), chartgen.AudioBuffer{})
	assert.NoError(t, err)
	assert.Equal(t, 120.0, est.BPM)
}

func TestGenerateBeatPositions_CoversDuration(t *testing.T) {
	a := New()
	positions, err := a.GenerateBeatPositions(context.Background(), 120, 4, 0, 1)
	assert.NoError(t, err)
	assert.True(t, len(positions) >= 7 && len(positions) <= 9)
}

func TestComputeOnsetFlux_ProducesBandedFlux(t *testing.T) {
	a := New()
	audio := clickTrack(140, 6, 22050)
	profile, err := a.ComputeOnsetFlux(context.Background(), audio, chartgen.FluxOptions{})
	assert.NoError(t, err)
	assert.NotEmpty(t, profile.LowFlux)
	assert.Equal(t, len(profile.LowFlux), len(profile.MidFlux))
}

func TestDetectOnsetsFromFlux_FindsPeaksOnClickTrack(t *testing.T) {
	a := New()
	audio := clickTrack(140, 6, 22050)
	profile, _ := a.ComputeOnsetFlux(context.Background(), audio, chartgen.FluxOptions{})
	result, err := a.DetectOnsetsFromFlux(context.Background(), profile, 1.0)
	assert.NoError(t, err)
	assert.NotEmpty(t, result.Onsets)
	for i := 1; i < len(result.Onsets); i++ {
		assert.GreaterOrEqual(t, result.Onsets[i], result.Onsets[i-1])
	}
}

func TestQuantizeOnsets_SnapsToNearestGridPoint(t *testing.T) {
	a := New()
	out, err := a.QuantizeOnsets(context.Background(), []float64{0.48, 1.05}, []float64{0, 0.5, 1.0, 1.5})
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.0}, out)
}

func TestAnalyzeSpectralProfiles_LowToneSkewsLowBand(t *testing.T) {
	a := New()
	audio := sineBuffer(80, 2, 22050)
	profiles, err := a.AnalyzeSpectralProfiles(context.Background(), audio, []float64{0.5, 1.0}, chartgen.SpectralOptions{})
	assert.NoError(t, err)
	for _, p := range profiles {
		assert.Greater(t, p.Low, p.High)
	}
}

func TestDetectSections_CoversFullDuration(t *testing.T) {
	a := New()
	audio := clickTrack(120, 20, 22050)
	sections, err := a.DetectSections(context.Background(), audio)
	assert.NoError(t, err)
	assert.NotEmpty(t, sections)
	assert.Equal(t, 0.0, sections[0].Start)
	assert.InDelta(t, 20.0, sections[len(sections)-1].End, 0.001)
}
