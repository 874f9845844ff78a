package beatmap

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/bandclass"
	"github.com/basswave/chartgen/internal/model"
)

// supplementFromOnsets implements the supplementary pass: after the grid
// walk, any onset strong enough and far enough from existing notes gets
// an anchored Tap. This pass adds only Taps; it never emits a Slide,
// whatever the onset's spectral character.
func supplementFromOnsets(ctx *model.Context, notes []model.Note, onsets []model.OnsetEvent) []model.Note {
	if len(onsets) == 0 {
		return notes
	}
	strengths := make([]float64, len(onsets))
	for i, o := range onsets {
		strengths[i] = o.Strength
	}
	sorted := append([]float64{}, strengths...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(0.72, stat.Empirical, sorted, nil)

	laneUntil := buildOccupancy(notes)

	out := append([]model.Note{}, notes...)
	for _, o := range onsets {
		if o.Strength < threshold {
			continue
		}
		beat := ctx.BeatInterval(o.Time)
		halfBeat := beat / 2
		if nearestNoteDistance(notes, o.Time) <= halfBeat*0.82 {
			continue
		}
		lane, _ := bandclass.PreferredLane(o.Band, ctx.Features.PercussiveFocus, ctx.Features.BassWeight, model.Bottom)
		if o.Time < laneUntil[lane] {
			lane = lane.Opposite()
			if o.Time < laneUntil[lane] {
				continue
			}
		}
		out = append(out, model.Note{Time: o.Time, Lane: lane, Kind: model.Tap, Strength: o.Strength})
		laneUntil[lane] = o.Time + 0.08
	}
	return out
}

func buildOccupancy(notes []model.Note) map[model.Lane]float64 {
	occ := map[model.Lane]float64{model.Top: 0, model.Bottom: 0}
	for _, n := range notes {
		until := n.Time + 0.08
		if n.Duration != nil {
			until = n.End() + 0.05
		}
		if until > occ[n.Lane] {
			occ[n.Lane] = until
		}
	}
	return occ
}

func nearestNoteDistance(notes []model.Note, t float64) float64 {
	best := math.Inf(1)
	for _, n := range notes {
		if d := math.Abs(n.Time - t); d < best {
			best = d
		}
	}
	return best
}
