// Package features implements the feature summarizer: ten [0,1]
// song-level scalars, each a weighted sum of normalized observables, in
// the usual accumulate-per-frame/average/combine style, driven by the
// spectral-profile/onset/section/tempo inputs the pipeline already has
// in hand, rather than raw PCM.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/model"
)

// BandOnsets are the raw per-band onset streams the Feature Summarizer
// consumes, upstream of the Onset Timeline Builder's deduplicated output.
type BandOnsets struct {
	Low  []model.OnsetEvent
	Mid  []model.OnsetEvent
	High []model.OnsetEvent
}

// Summarize computes the ten SongFeatures scalars.
func Summarize(ctx *model.Context, bands BandOnsets) model.SongFeatures {
	lowN, midN, highN := len(bands.Low), len(bands.Mid), len(bands.High)
	total := float64(lowN + midN + highN)

	lowShare, midShare, highShare := 0.0, 0.0, 0.0
	if total > 0 {
		lowShare = float64(lowN) / total
		midShare = float64(midN) / total
		highShare = float64(highN) / total
	}

	avgTransient := meanField(ctx.Spectral, func(p model.SpectralProfile) float64 { return p.Transient })
	avgPercussive := meanField(ctx.Spectral, func(p model.SpectralProfile) float64 { return p.Percussive })
	avgTonal := meanField(ctx.Spectral, func(p model.SpectralProfile) float64 { return p.Tonal })
	avgBrightness := meanField(ctx.Spectral, func(p model.SpectralProfile) float64 { return p.Brightness })
	avgLowRatio := meanField(ctx.Spectral, func(p model.SpectralProfile) float64 { return p.Low })

	bpm := representativeBPM(ctx.Tempo)
	bpmNorm := model.Clamp01((bpm - 95) / 95)

	introEnd := math.Min(12, 0.16*ctx.Duration)
	introPercussive := meanFieldWindow(ctx.Spectral, 0, introEnd, func(p model.SpectralProfile) float64 { return p.Percussive })

	sectionEnergies := make([]float64, 0, len(ctx.Sections))
	for _, s := range ctx.Sections {
		sectionEnergies = append(sectionEnergies, s.AvgEnergy)
	}
	energyVarNorm := model.Clamp01(variance(sectionEnergies) / 0.12)
	highlightLift := highlightLift(sectionEnergies)

	percussiveFocus := model.Clamp01(
		0.32*highShare + 0.08*midShare + 0.24*avgTransient + 0.28*avgPercussive +
			0.04*introPercussive + 0.08*bpmNorm)

	melodicFocus := model.Clamp01(
		0.33*midShare + 0.12*(1-highShare) + 0.33*avgTonal + 0.12*(1-avgPercussive) + 0.1*(1-bpmNorm))

	bassWeight := model.Clamp01(0.56*lowShare + 0.34*avgLowRatio + 0.1*(1-avgBrightness))

	driveScore := model.Clamp01(
		0.24*bpmNorm + 0.18*avgBrightness + 0.26*percussiveFocus + 0.18*energyVarNorm +
			0.1*highShare + 0.04*highlightLift)

	sustainedFocus := model.Clamp01(
		0.48*avgTonal + 0.26*(1-avgTransient) + 0.18*(1-avgPercussive) + 0.08*midShare)

	density, strongDensity, sparsity := introDensityObservables(bands, introEnd)
	introQuietness := model.Clamp01(0.58*quiet(density) + 0.26*quiet(strongDensity) + 0.16*quiet(sparsity))

	calmConfidence := model.Clamp01(
		0.30*melodicFocus + 0.22*sustainedFocus + 0.20*introQuietness +
			0.16*(1-driveScore) + 0.12*(1-percussiveFocus) - 0.10*energyVarNorm)

	slideAffinity := model.Clamp01(
		0.40*sustainedFocus + 0.25*melodicFocus + 0.20*(1-percussiveFocus) + 0.15*(1-bpmNorm))

	sharpnessScore := model.Clamp01(
		0.36*avgTransient + 0.30*percussiveFocus + 0.20*highShare + 0.14*(1-avgTonal))

	return model.SongFeatures{
		PercussiveFocus: percussiveFocus,
		MelodicFocus:    melodicFocus,
		BassWeight:      bassWeight,
		DriveScore:      driveScore,
		SlideAffinity:   slideAffinity,
		SustainedFocus:  sustainedFocus,
		CalmConfidence:  calmConfidence,
		IntroQuietness:  introQuietness,
		DynamicRange:    energyVarNorm,
		SharpnessScore:  sharpnessScore,
	}
}

// quiet maps a normalized density-like observable in [0, +inf) to a
// quietness score in [0,1]: 0 density -> fully quiet (1), density at or
// above the song-wide norm -> not quiet (0). Fixed as a clamped linear
// falloff (documented decision, see DESIGN.md). Summarize also applies it
// to sparsity, where it yields the clamped density instead.
func quiet(normalizedDensity float64) float64 {
	return model.Clamp01(1 - normalizedDensity)
}

// introDensityObservables computes the three normalized density-like
// quantities Feature Summarizer needs for IntroQuietness: overall onset
// density and strong-onset (strength>=0.6) density, each normalized
// against the song-wide average so a value of 1 means "as busy as the
// rest of the song" and 0 means "silent", plus sparsity, which is 1 minus
// the clamped density (1 for a silent intro, 0 for a busy one).
func introDensityObservables(bands BandOnsets, introEnd float64) (density, strongDensity, sparsity float64) {
	all := append(append(append([]model.OnsetEvent{}, bands.Low...), bands.Mid...), bands.High...)
	if len(all) == 0 || introEnd <= 0 {
		return 0, 0, 0
	}
	var introCount, introStrong, songEnd float64
	for _, o := range all {
		if o.Time > songEnd {
			songEnd = o.Time
		}
		if o.Time < introEnd {
			introCount++
			if o.Strength >= 0.6 {
				introStrong++
			}
		}
	}
	if songEnd <= 0 {
		songEnd = introEnd
	}
	globalDensity := float64(len(all)) / songEnd
	introRate := introCount / introEnd
	introStrongRate := introStrong / introEnd
	if globalDensity <= 0 {
		return 0, 0, 1
	}
	density = introRate / globalDensity
	strongDensity = introStrongRate / globalDensity
	sparsity = 1 - model.Clamp01(density)
	return density, strongDensity, sparsity
}

func meanField(profiles []model.SpectralProfile, f func(model.SpectralProfile) float64) float64 {
	if len(profiles) == 0 {
		return 0
	}
	vals := make([]float64, len(profiles))
	for i, p := range profiles {
		vals[i] = f(p)
	}
	return stat.Mean(vals, nil)
}

func meanFieldWindow(profiles []model.SpectralProfile, start, end float64, f func(model.SpectralProfile) float64) float64 {
	var vals []float64
	for _, p := range profiles {
		if p.Time >= start && p.Time < end {
			vals = append(vals, f(p))
		}
	}
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.Variance(xs, nil)
}

func highlightLift(sectionEnergies []float64) float64 {
	if len(sectionEnergies) == 0 {
		return 0
	}
	max := sectionEnergies[0]
	for _, e := range sectionEnergies[1:] {
		if e > max {
			max = e
		}
	}
	avg := stat.Mean(sectionEnergies, nil)
	return model.Clamp01(max - avg)
}

func representativeBPM(segments []model.TempoSegment) float64 {
	if len(segments) == 0 {
		return 120
	}
	var weighted, totalDur float64
	for _, s := range segments {
		d := s.End - s.Start
		weighted += s.BPM * d
		totalDur += d
	}
	if totalDur <= 0 {
		return segments[0].BPM
	}
	return weighted / totalDur
}
