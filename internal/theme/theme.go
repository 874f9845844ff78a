// Package theme implements the theme and band selector: weighted-
// component archetype scoring with hard overrides, followed by a
// consistency enforcer run in the same call so callers never see an
// un-enforced pick. Uses a weighted-component-distance pattern,
// repointed from track-pair distance to a single track's distance from
// three theme archetypes.
package theme

import (
	"github.com/basswave/chartgen/internal/model"
)

// Stats are the final-chart statistics the selector combines with song
// features.
type Stats struct {
	NPS          float64
	StrongRatio  float64
	AvgSectionEnergy float64
}

// Select computes intensity/calmness/warmth/phonkLike/cityBias, applies
// hard overrides, falls back to a soft-max of the three archetype
// scores, and immediately runs the consistency enforcer before
// returning — this function is the single canonical decision point.
func Select(f model.SongFeatures, stats Stats) model.VisualTheme {
	intensity := 0.4*f.DriveScore + 0.3*f.PercussiveFocus + 0.3*stats.NPS/10
	calmness := 0.4*f.CalmConfidence + 0.3*f.MelodicFocus + 0.3*(1-intensity)
	warmth := 0.5*f.MelodicFocus + 0.3*f.SustainedFocus + 0.2*(1-f.SharpnessScore)
	phonkLike := 0.5*f.BassWeight + 0.3*f.PercussiveFocus + 0.2*intensity
	cityBias := 0.4*f.BassWeight + 0.3*f.PercussiveFocus + 0.3*f.DynamicRange

	var pick model.VisualTheme
	switch {
	case cityBias >= 0.58 || (f.BassWeight > 0.6 && f.PercussiveFocus > 0.6 && f.DynamicRange > 0.5):
		pick = model.NightCity
	case calmness >= 0.68 && f.PercussiveFocus < 0.45 && f.SharpnessScore < 0.45:
		if warmth >= 0.5 {
			pick = model.Sunset
		} else {
			pick = model.Meadow
		}
	default:
		pick = softmaxPick(cityBias, calmness, warmth)
	}

	return enforceConsistency(pick, f, stats)
}

func softmaxPick(cityScore, calmness, warmth float64) model.VisualTheme {
	meadowScore := 0.5*(1-cityScore) + 0.3*calmness + 0.2*(1-warmth)
	sunsetScore := 0.4*warmth + 0.3*calmness + 0.3*(1-cityScore)
	cityFinal := cityScore

	best := model.Meadow
	bestScore := meadowScore
	if sunsetScore > bestScore+0.08 {
		best, bestScore = model.Sunset, sunsetScore
	} else if sunsetScore > bestScore-0.02 && sunsetScore > bestScore {
		best, bestScore = model.Sunset, sunsetScore
	}
	if cityFinal > bestScore+0.08 {
		best, bestScore = model.NightCity, cityFinal
	} else if cityFinal > bestScore-0.02 && cityFinal > bestScore {
		best, bestScore = model.NightCity, cityFinal
	}
	return best
}

// enforceConsistency overrides the initial pick when the final chart's NPS,
// strong-note ratio, and section energy disagree with the archetype's
// expected profile — the second consistency enforcer.
func enforceConsistency(pick model.VisualTheme, f model.SongFeatures, stats Stats) model.VisualTheme {
	switch pick {
	case model.NightCity:
		if stats.NPS < 3.5 && stats.StrongRatio < 0.4 {
			return model.Sunset
		}
	case model.Meadow:
		if stats.NPS > 7 && stats.AvgSectionEnergy > 0.75 {
			return model.NightCity
		}
	case model.Sunset:
		if stats.NPS > 8 && f.PercussiveFocus > 0.7 {
			return model.NightCity
		}
	}
	return pick
}
