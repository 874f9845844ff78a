package beatmap

import (
	"math"
	"sort"

	"github.com/basswave/chartgen/internal/detmath"
	"github.com/basswave/chartgen/internal/model"
)

// humanize applies the beat mapper's post-pass: chorus impact clearing,
// bar-start anchors, bar density cap, lane-streak correction,
// phrase-edge slide promotion, and periodic rest injection.
func humanize(ctx *model.Context, notes []model.Note) []model.Note {
	notes = clearAndAnchorChorus(ctx, notes)
	notes = addBarAnchors(ctx, notes)
	notes = capBarDensity(ctx, notes)
	notes = correctLaneStreaks(ctx, notes)
	notes = promotePhraseEdgeSlides(ctx, notes)
	notes = injectRests(ctx, notes)
	sort.Slice(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	return notes
}

func chorusStarts(ctx *model.Context) []float64 {
	var starts []float64
	for i, s := range ctx.Sections {
		if s.Kind == model.Chorus && (i == 0 || ctx.Sections[i-1].Kind != model.Chorus) {
			starts = append(starts, s.Start)
		}
	}
	return starts
}

func clearAndAnchorChorus(ctx *model.Context, notes []model.Note) []model.Note {
	beat := ctx.BeatInterval(0)
	cleared := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		drop := false
		for _, start := range chorusStarts(ctx) {
			if n.Time >= start-2*beat && n.Time < start-0.25*beat {
				drop = true
				break
			}
		}
		if !drop {
			cleared = append(cleared, n)
		}
	}
	for _, start := range chorusStarts(ctx) {
		hasAnchor := false
		for _, n := range cleared {
			if math.Abs(n.Time-start) < 0.05 {
				hasAnchor = true
				break
			}
		}
		if !hasAnchor {
			lane := model.Bottom
			if ctx.Features.PercussiveFocus < 0.5 {
				lane = model.Top
			}
			cleared = append(cleared, model.Note{Time: start, Lane: lane, Kind: model.Tap, Strength: 0.9})
		}
	}
	return cleared
}

func barsIn(ctx *model.Context, kind model.SectionKind) []model.Section {
	var bars []model.Section
	beat := ctx.BeatInterval(0)
	for _, s := range ctx.Sections {
		if s.Kind != kind {
			continue
		}
		for t := s.Start; t < s.End; t += 4 * beat {
			end := math.Min(t+4*beat, s.End)
			bars = append(bars, model.Section{Start: t, End: end, Kind: kind})
		}
	}
	return bars
}

func addBarAnchors(ctx *model.Context, notes []model.Note) []model.Note {
	for _, kind := range []model.SectionKind{model.Chorus, model.Drop} {
		for _, bar := range barsIn(ctx, kind) {
			has := false
			for _, n := range notes {
				if n.Time >= bar.Start && n.Time < bar.Start+0.1 {
					has = true
					break
				}
			}
			if !has {
				lane := model.Bottom
				notes = append(notes, model.Note{Time: bar.Start, Lane: lane, Kind: model.Tap, Strength: 0.7})
			}
		}
	}
	return notes
}

func capBarDensity(ctx *model.Context, notes []model.Note) []model.Note {
	beat := ctx.BeatInterval(0)
	windowLen := 4 * beat
	sort.Slice(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	kept := make([]bool, len(notes))
	for i := range kept {
		kept[i] = true
	}
	for start := 0; start < len(notes); {
		windowStart := notes[start].Time
		var idxs []int
		for i := start; i < len(notes) && notes[i].Time < windowStart+windowLen; i++ {
			if kept[i] {
				idxs = append(idxs, i)
			}
		}
		for len(idxs) > 11 {
			weakest := -1
			weakestScore := math.Inf(1)
			for _, i := range idxs {
				if notes[i].Kind != model.Tap {
					continue
				}
				if notes[i].Strength < weakestScore {
					weakestScore = notes[i].Strength
					weakest = i
				}
			}
			if weakest == -1 {
				break
			}
			kept[weakest] = false
			next := idxs[:0]
			for _, i := range idxs {
				if i != weakest {
					next = append(next, i)
				}
			}
			idxs = next
		}
		start++
	}
	out := make([]model.Note, 0, len(notes))
	for i, n := range notes {
		if kept[i] {
			out = append(out, n)
		}
	}
	return out
}

func correctLaneStreaks(ctx *model.Context, notes []model.Note) []model.Note {
	sort.Slice(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	run := 1
	for i := 1; i < len(notes); i++ {
		if notes[i].Lane == notes[i-1].Lane {
			run++
		} else {
			run = 1
		}
		sec := ctx.SectionAt(notes[i].Time)
		limit := 4
		if sec.Kind == model.Chorus || sec.Kind == model.Drop {
			limit = 3
		}
		if run >= limit && notes[i].Kind == model.Tap {
			notes[i].Lane = notes[i].Lane.Opposite()
			run = 1
		}
	}
	return notes
}

func promotePhraseEdgeSlides(ctx *model.Context, notes []model.Note) []model.Note {
	beat := ctx.BeatInterval(0)
	for i := 1; i < len(notes); i++ {
		n := notes[i]
		if n.Kind != model.Tap {
			continue
		}
		sec := ctx.SectionAt(n.Time)
		if sec.Kind != model.Drop && sec.Kind != model.Chorus {
			continue
		}
		beatIdx := nearestBeatIndex(ctx, n.Time)
		if beatIdx%8 != 3 && beatIdx%8 != 7 {
			continue
		}
		gap := n.Time - notes[i-1].Time
		if gap < 0.35*beat || gap > 1.1*beat {
			continue
		}
		dur := clampF(gap, 0.78*beat, 2.5*beat)
		target := n.Lane.Opposite()
		notes[i].Kind = model.Slide
		notes[i].Duration = &dur
		notes[i].TargetLane = &target
	}
	return notes
}

func nearestBeatIndex(ctx *model.Context, t float64) int {
	best, bestD := 0, math.Inf(1)
	for i, b := range ctx.Beats {
		if d := math.Abs(b - t); d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

func injectRests(ctx *model.Context, notes []model.Note) []model.Note {
	beat := ctx.BeatInterval(0)
	barLen := 4 * beat
	barIdx := 0
	kept := make([]bool, len(notes))
	for i := range kept {
		kept[i] = true
	}
	for barStart := 0.0; barStart < ctx.Duration; barStart += barLen {
		sec := ctx.SectionAt(barStart)
		if sec.Kind == model.Chorus || sec.Kind == model.Drop {
			barIdx++
			continue
		}
		if barIdx%6 == 5 {
			weakest := -1
			weakestScore := math.Inf(1)
			for i, n := range notes {
				if !kept[i] || n.Kind != model.Tap {
					continue
				}
				if n.Time >= barStart && n.Time < barStart+barLen && n.Strength < weakestScore {
					weakestScore = n.Strength
					weakest = i
				}
			}
			if weakest != -1 {
				seed := detmath.Seed(barStart, barIdx, 0)
				if detmath.Bool(seed, ctx.RNGSeed, 1.0) {
					kept[weakest] = false
				}
			}
		}
		barIdx++
	}
	out := make([]model.Note, 0, len(notes))
	for i, n := range notes {
		if kept[i] {
			out = append(out, n)
		}
	}
	return out
}
