// Package chartgen generates rhythm-game charts from decoded audio. The
// core pipeline never touches raw PCM or FFT bins directly: it consumes
// the external collaborator interfaces defined here, which the host
// supplies (or which internal/refanalyzer implements as a reference).
package chartgen

import (
	"context"
	"errors"

	"github.com/basswave/chartgen/internal/model"
)

// AudioBuffer is decoded PCM with per-channel float64 samples in [-1,1].
type AudioBuffer struct {
	SampleRate      int
	Length          int
	NumberOfChannels int
	Channels        [][]float64
}

// Mono averages all channels down to a single float64 slice.
func (b AudioBuffer) Mono() []float64 {
	if b.NumberOfChannels == 0 || len(b.Channels) == 0 {
		return nil
	}
	if b.NumberOfChannels == 1 {
		return b.Channels[0]
	}
	out := make([]float64, b.Length)
	for i := 0; i < b.Length; i++ {
		var sum float64
		for _, ch := range b.Channels {
			if i < len(ch) {
				sum += ch[i]
			}
		}
		out[i] = sum / float64(b.NumberOfChannels)
	}
	return out
}

var (
	// ErrMissingAudio is the one fatal error: zero-length or zero-channel
	// input, surfaced before any synthesis begins.
	ErrMissingAudio = errors.New("chartgen: missing or empty audio buffer")
)

// errEmptyChart is returned by Generate when the rescued chart is still
// empty after finalization. rescue.Build itself always yields at least 8
// notes, so only the finalization pass can empty it.
var errEmptyChart = errors.New("chartgen: chart below emergency floor")

// BPMEstimate is detectBpm's result.
type BPMEstimate struct {
	BPM              float64
	FirstBeatOffset  float64
}

// OnsetFluxProfile is computeOnsetFlux's result.
type OnsetFluxProfile struct {
	LowFlux, MidFlux, HighFlux       []float64
	LowEnergy, MidEnergy, HighEnergy []float64
	Framerate                       float64
	StartTimeSec                    float64
}

// OnsetResult is detectOnsetsFromFlux's result.
type OnsetResult struct {
	Onsets           []float64
	Strengths        []float64
	LowOnsets        []float64
	MidOnsets        []float64
	HighOnsets       []float64
	LowStrengths     []float64
	MidStrengths     []float64
	HighStrengths    []float64
}

// FluxOptions parameterizes ComputeOnsetFlux.
type FluxOptions struct {
	FFTSize     int
	HopSize     int
	StartSec    *float64
	DurationSec *float64
}

// SpectralOptions parameterizes AnalyzeSpectralProfiles.
type SpectralOptions struct {
	FFTSize int
}

// Analyzer is the full set of external collaborators the host must
// supply. internal/refanalyzer implements it with gonum's FFT as a
// drop-in reference.
type Analyzer interface {
	DetectBPM(ctx context.Context, audio AudioBuffer) (BPMEstimate, error)
	GenerateBeatPositions(ctx context.Context, bpm, duration, offset float64, subdivisions int) ([]float64, error)
	ComputeOnsetFlux(ctx context.Context, audio AudioBuffer, opts FluxOptions) (OnsetFluxProfile, error)
	DetectOnsetsFromFlux(ctx context.Context, flux OnsetFluxProfile, sensitivity float64) (OnsetResult, error)
	QuantizeOnsets(ctx context.Context, times []float64, grid []float64) ([]float64, error)
	AnalyzeSpectralProfiles(ctx context.Context, audio AudioBuffer, samplePoints []float64, opts SpectralOptions) ([]model.SpectralProfile, error)
	DetectSections(ctx context.Context, audio AudioBuffer) ([]model.Section, error)
}

// ProgressFunc is an optional progress callback: (stage, fraction in [0,1]).
type ProgressFunc func(stage string, fraction float64)

// GenerateOptions configures a Generate call.
type GenerateOptions struct {
	Difficulty model.Difficulty
	Analyzer   Analyzer `validate:"required"`
	Progress   ProgressFunc
	RNGSeed    int64
}
