// Package bandclass answers the small classification questions the beat
// mapper needs per grid point: which lane a band prefers, and whether
// the local spectral character reads as sustained or staccato. Built as
// small named boolean/float detectors over a shared profile, working
// from already-computed SpectralProfile fields instead of raw FFT
// magnitude bins.
package bandclass

import "github.com/basswave/chartgen/internal/model"

// PreferredLane implements the strict-anchor mapping: Low-band onsets
// anchor Bottom, High-band onsets anchor Top, Mid-band
// follows the song's high/low onset-share imbalance, falling back to
// alternation from lastLane when neither share dominates.
func PreferredLane(band model.Band, highShare, lowShare float64, lastLane model.Lane) (lane model.Lane, isAnchor bool) {
	switch band {
	case model.Low:
		return model.Bottom, true
	case model.High:
		return model.Top, true
	case model.Mid:
		if highShare-lowShare > 0.12 {
			return model.Top, false
		}
		if lowShare-highShare > 0.12 {
			return model.Bottom, false
		}
		return lastLane.Opposite(), false
	default:
		return lastLane.Opposite(), false
	}
}

// SustainedLike implements the sustained-note gate: tonal-heavy,
// low-transient, low-percussive spectral character with a
// moderate onset strength, in a song that leans sustained overall.
func SustainedLike(sp model.SpectralProfile, onsetStrength, sustainedFocus float64) bool {
	return sp.Tonal >= 0.62 && sp.Transient <= 0.38 && sp.Percussive <= 0.5 &&
		onsetStrength <= 0.66 && sustainedFocus >= 0.58
}

// StaccatoLike implements the Tap-preference gate: sharp transient,
// percussive, or simply a hard-hit onset.
func StaccatoLike(sp model.SpectralProfile, onsetStrength float64) bool {
	return sp.Transient >= 0.58 || sp.Percussive >= 0.62 || onsetStrength >= 0.8
}

// BandAffinity returns how strongly the nearest spectral sample supports
// the given band, used by the Onset Timeline Builder's scoring formula.
func BandAffinity(sp model.SpectralProfile, band model.Band) float64 {
	switch band {
	case model.Low:
		return sp.Low
	case model.Mid:
		return sp.Mid
	case model.High:
		return sp.High
	default:
		return (sp.Low + sp.Mid + sp.High) / 3
	}
}
