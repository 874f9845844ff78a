// Package quality implements the quality scorer: a weighted sum of eight
// [0,1] component scores, following the same weighted clamp-to-[0,1]
// component distances folded into one score pattern a track-similarity
// scorer would use, repointed from track-pair similarity to
// chart-vs-expectation alignment.
package quality

import (
	"math"
	"sort"

	"github.com/basswave/chartgen/internal/model"
)

// Score is the composite quality score in [0,1].
func Score(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) float64 {
	align := alignScore(ctx, onsets, notes)
	density := densityScore(ctx, notes)
	long := longScore(ctx, notes)
	pattern := patternScore(ctx, notes)
	section := sectionScore(ctx, notes)
	intro := introScore(ctx, notes)
	flow := flowScore(notes)
	laneBalance := laneBalanceScore(notes)

	return model.Clamp01(
		0.37*align + 0.10*density + 0.10*long + 0.11*pattern +
			0.09*section + 0.09*intro + 0.09*flow + 0.06*laneBalance)
}

func component(actual, expected, tolerance float64) float64 {
	if tolerance <= 0 {
		return 1
	}
	return model.Clamp01(1 - math.Min(1, math.Abs(actual-expected)/tolerance))
}

func alignScore(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) float64 {
	if len(notes) == 0 || len(onsets) == 0 {
		return 0.5
	}
	onsetTimes := make([]float64, len(onsets))
	for i, o := range onsets {
		onsetTimes[i] = o.Time
	}
	sort.Float64s(onsetTimes)
	var totalDist float64
	for _, n := range notes {
		totalDist += nearestDistance(onsetTimes, n.Time)
	}
	avgDist := totalDist / float64(len(notes))
	beat := ctx.BeatInterval(0)
	return component(avgDist, 0, math.Max(0.05, 0.2*beat))
}

func nearestDistance(sorted []float64, t float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		if sorted[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	best := math.Inf(1)
	if lo > 0 {
		best = math.Min(best, math.Abs(sorted[lo-1]-t))
	}
	if lo < len(sorted) {
		best = math.Min(best, math.Abs(sorted[lo]-t))
	}
	return best
}

var targetNPSByDifficulty = map[model.Difficulty]float64{
	model.Easy: 2.3, model.Normal: 4.4, model.Hard: 6.6, model.Expert: 8.8,
}

func densityScore(ctx *model.Context, notes []model.Note) float64 {
	if ctx.Duration <= 0 {
		return 0.5
	}
	nps := float64(len(notes)) / ctx.Duration
	return component(nps, targetNPSByDifficulty[ctx.Difficulty], 3.0)
}

func longScore(ctx *model.Context, notes []model.Note) float64 {
	if len(notes) == 0 {
		return 0.5
	}
	longs := 0
	for _, n := range notes {
		if n.IsLong() {
			longs++
		}
	}
	ratio := float64(longs) / float64(len(notes))
	target := map[model.Difficulty]float64{model.Easy: 0.22, model.Normal: 0.28, model.Hard: 0.34, model.Expert: 0.40}[ctx.Difficulty]
	return component(ratio, target, 0.2)
}

func sectionScore(ctx *model.Context, notes []model.Note) float64 {
	if len(ctx.Sections) == 0 {
		return 0.5
	}
	var highlightNPS, otherNPS float64
	var highlightCount, otherCount int
	for _, s := range ctx.Sections {
		n := countIn(notes, s.Start, s.End)
		nps := 0.0
		if s.Duration() > 0 {
			nps = float64(n) / s.Duration()
		}
		if s.Kind == model.Chorus || s.Kind == model.Drop {
			highlightNPS += nps
			highlightCount++
		} else {
			otherNPS += nps
			otherCount++
		}
	}
	if highlightCount == 0 || otherCount == 0 {
		return 0.5
	}
	contrast := highlightNPS/float64(highlightCount) - otherNPS/float64(otherCount)
	return component(contrast, 1.5, 2.0)
}

func countIn(notes []model.Note, start, end float64) int {
	n := 0
	for _, note := range notes {
		if note.Time >= start && note.Time < end {
			n++
		}
	}
	return n
}

func introScore(ctx *model.Context, notes []model.Note) float64 {
	var introCount int
	var introDur float64
	for _, s := range ctx.Sections {
		if s.Kind.Silent() {
			introCount += countIn(notes, s.Start, s.End)
			introDur += s.Duration()
		}
	}
	if introDur == 0 {
		return 1
	}
	nps := float64(introCount) / introDur
	return component(nps, 0.3, 1.0)
}

func flowScore(notes []model.Note) float64 {
	if len(notes) < 3 {
		return 0.5
	}
	gaps := make([]float64, 0, len(notes)-1)
	for i := 1; i < len(notes); i++ {
		gaps = append(gaps, notes[i].Time-notes[i-1].Time)
	}
	mean := 0.0
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	variance := 0.0
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	return component(math.Sqrt(variance), 0, mean+0.2)
}

func laneBalanceScore(notes []model.Note) float64 {
	if len(notes) == 0 {
		return 1
	}
	var top, bottom int
	for _, n := range notes {
		if n.OccupiesLane(model.Top) {
			top++
		}
		if n.OccupiesLane(model.Bottom) {
			bottom++
		}
	}
	total := top + bottom
	if total == 0 {
		return 1
	}
	ratio := float64(top) / float64(total)
	return component(ratio, 0.5, 0.35)
}

// QualityFloor is the rescue-trigger floor: 0.46 + 0.07*qualityLift +
// diffOffset.
func QualityFloor(d model.Difficulty, qualityLift float64) float64 {
	diffOffset := map[model.Difficulty]float64{model.Easy: -0.03, model.Normal: 0, model.Hard: 0.02, model.Expert: 0.04}[d]
	return 0.46 + 0.07*qualityLift + diffOffset
}
