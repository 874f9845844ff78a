// Package rescue implements the emergency rescue path: a minimal
// musically-anchored chart built directly from strong onsets when every
// prior stage fails to clear a per-difficulty floor count.
package rescue

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/model"
)

var floorBase = map[model.Difficulty]int{model.Easy: 10, model.Normal: 14, model.Hard: 18, model.Expert: 22}
var floorRate = map[model.Difficulty]float64{model.Easy: 0.09, model.Normal: 0.125, model.Hard: 0.16, model.Expert: 0.20}

// Floor returns the emergency floor note count for d and duration.
func Floor(d model.Difficulty, duration float64) int {
	byDuration := int(duration * floorRate[d])
	if byDuration > floorBase[d] {
		return byDuration
	}
	return floorBase[d]
}

// Build constructs a minimal chart directly from strong onsets snapped to
// the grid, alternating lanes with a percussive-bias Bottom start. If no
// onsets survive, it falls back to 8 synthesized alternating Taps on beats.
func Build(ctx *model.Context, onsets []model.OnsetEvent) []model.Note {
	strong := strongOnsets(onsets)
	if len(strong) == 0 {
		return synthesizeBeats(ctx)
	}

	grid := ctx.Beats
	lane := model.Bottom
	var notes []model.Note
	for _, o := range strong {
		t := o.Time
		if gp, ok := nearestGrid(grid, t); ok {
			t = gp
		}
		notes = append(notes, model.Note{Time: t, Lane: lane, Kind: model.Tap, Strength: o.Strength})
		lane = lane.Opposite()
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	notes = dedupTimes(notes)
	if len(notes) < Floor(ctx.Difficulty, ctx.Duration) {
		return synthesizeBeats(ctx)
	}
	return notes
}

func strongOnsets(onsets []model.OnsetEvent) []model.OnsetEvent {
	if len(onsets) == 0 {
		return nil
	}
	strengths := make([]float64, len(onsets))
	for i, o := range onsets {
		strengths[i] = o.Strength
	}
	sorted := append([]float64{}, strengths...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(0.6, stat.Empirical, sorted, nil)
	var out []model.OnsetEvent
	for _, o := range onsets {
		if o.Strength >= threshold {
			out = append(out, o)
		}
	}
	return out
}

func nearestGrid(grid []float64, t float64) (float64, bool) {
	if len(grid) == 0 {
		return 0, false
	}
	best := grid[0]
	bestD := math.Abs(best - t)
	for _, g := range grid[1:] {
		if d := math.Abs(g - t); d < bestD {
			bestD, best = d, g
		}
	}
	return best, true
}

func dedupTimes(notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if len(out) > 0 && math.Abs(out[len(out)-1].Time-n.Time) < 1e-9 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// synthesizeBeats is the last-resort path: 8 alternating Taps on beats
// starting at max(0.35, min(duration*0.2, 1.2)).
func synthesizeBeats(ctx *model.Context) []model.Note {
	start := math.Max(0.35, math.Min(ctx.Duration*0.2, 1.2))
	beat := ctx.BeatInterval(start)
	if beat <= 0 {
		beat = 0.5
	}
	notes := make([]model.Note, 0, 8)
	lane := model.Bottom
	t := start
	for i := 0; i < 8; i++ {
		notes = append(notes, model.Note{Time: t, Lane: lane, Kind: model.Tap, Strength: 0.7})
		lane = lane.Opposite()
		t += beat
	}
	return notes
}
