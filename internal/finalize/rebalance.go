package finalize

import (
	"math"
	"sort"

	"github.com/basswave/chartgen/internal/model"
)

var npsBandLow = map[model.Difficulty]float64{model.Easy: 1.7, model.Normal: 3.2, model.Hard: 4.8, model.Expert: 6.6}
var npsBandHigh = map[model.Difficulty]float64{model.Easy: 2.9, model.Normal: 5.6, model.Hard: 7.9, model.Expert: 10.6}
var sectionNPSMultiplier = map[model.SectionKind]float64{
	model.Drop: 1.45, model.Chorus: 1.32, model.Bridge: 0.82, model.Verse: 0.94,
}

// HolisticRebalance re-shapes per-section density and the Slide:Tap mix
// across a bounded number of passes, keeping whichever intermediate chart
// scores lowest on the combined penalty.
func HolisticRebalance(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	maxPasses := 2
	best := notes
	bestPenalty := penalty(ctx, best)
	current := notes
	for i := 0; i < maxPasses; i++ {
		current = rebalanceOnce(ctx, onsets, current)
		if p := penalty(ctx, current); p < bestPenalty {
			bestPenalty = p
			best = current
		}
	}
	return best
}

func rebalanceOnce(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	out := append([]model.Note{}, notes...)
	for _, sec := range ctx.Sections {
		if sec.Kind.Silent() {
			continue
		}
		mult := sectionNPSMultiplier[sec.Kind]
		if mult == 0 {
			mult = 1
		}
		lo := npsBandLow[ctx.Difficulty] * mult
		hi := npsBandHigh[ctx.Difficulty] * mult
		inSection := countInRange(out, sec.Start, sec.End)
		dur := sec.Duration()
		if dur <= 0 {
			continue
		}
		nps := float64(inSection) / dur

		if nps < lo {
			out = injectFromUnusedOnsets(out, onsets, sec, int((lo-nps)*dur))
		} else if nps > hi {
			out = dropWeakestTaps(out, sec, int((nps-hi)*dur))
		}
	}
	out = rebalanceSlideRatio(ctx, out)
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func countInRange(notes []model.Note, start, end float64) int {
	n := 0
	for _, note := range notes {
		if note.Time >= start && note.Time < end {
			n++
		}
	}
	return n
}

func injectFromUnusedOnsets(notes []model.Note, onsets []model.OnsetEvent, sec model.Section, need int) []model.Note {
	if need <= 0 {
		return notes
	}
	var candidates []model.OnsetEvent
	for _, o := range onsets {
		if o.Time < sec.Start || o.Time >= sec.End {
			continue
		}
		used := false
		for _, n := range notes {
			if math.Abs(n.Time-o.Time) < 0.03 {
				used = true
				break
			}
		}
		if !used {
			candidates = append(candidates, o)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Strength > candidates[j].Strength })
	if need > len(candidates) {
		need = len(candidates)
	}
	for i := 0; i < need; i++ {
		o := candidates[i]
		lane := model.Bottom
		if o.Band == model.High {
			lane = model.Top
		}
		notes = append(notes, model.Note{Time: o.Time, Lane: lane, Kind: model.Tap, Strength: o.Strength})
	}
	return notes
}

func dropWeakestTaps(notes []model.Note, sec model.Section, drop int) []model.Note {
	if drop <= 0 {
		return notes
	}
	idxs := make([]int, 0)
	for i, n := range notes {
		if n.Kind == model.Tap && n.Time >= sec.Start && n.Time < sec.End {
			idxs = append(idxs, i)
		}
	}
	sort.Slice(idxs, func(i, j int) bool { return notes[idxs[i]].Strength < notes[idxs[j]].Strength })
	if drop > len(idxs) {
		drop = len(idxs)
	}
	toDrop := map[int]bool{}
	for i := 0; i < drop; i++ {
		toDrop[idxs[i]] = true
	}
	out := make([]model.Note, 0, len(notes))
	for i, n := range notes {
		if !toDrop[i] {
			out = append(out, n)
		}
	}
	return out
}

func rebalanceSlideRatio(ctx *model.Context, notes []model.Note) []model.Note {
	target := math.Max(0.06, math.Min(0.32,
		0.10+0.20*ctx.Features.SustainedFocus-0.14*ctx.Features.PercussiveFocus))

	slides, taps := 0, 0
	for _, n := range notes {
		switch n.Kind {
		case model.Slide:
			slides++
		case model.Tap:
			taps++
		}
	}
	total := slides + taps
	if total == 0 {
		return notes
	}
	current := float64(slides) / float64(total)
	if current < target-0.05 {
		notes = promoteTapsToSlides(ctx, notes, int((target-current)*float64(total)))
	} else if current > target+0.05 {
		notes = demoteSlidesToTaps(notes, int((current-target)*float64(total)))
	}
	return notes
}

func promoteTapsToSlides(ctx *model.Context, notes []model.Note, count int) []model.Note {
	if count <= 0 {
		return notes
	}
	type cand struct {
		idx  int
		gap  float64
		beat float64
	}
	var cands []cand
	for i := 1; i < len(notes); i++ {
		if notes[i].Kind != model.Tap {
			continue
		}
		beat := ctx.BeatInterval(notes[i].Time)
		gap := notes[i].Time - notes[i-1].Time
		if gap > 0.8*beat && gap < 2.45*beat {
			cands = append(cands, cand{idx: i, gap: gap, beat: beat})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].gap > cands[j].gap })
	if count > len(cands) {
		count = len(cands)
	}
	for i := 0; i < count; i++ {
		c := cands[i]
		dur := clampF(c.gap, 0.78*c.beat, 2.5*c.beat)
		target := notes[c.idx].Lane.Opposite()
		notes[c.idx].Kind = model.Slide
		notes[c.idx].Duration = &dur
		notes[c.idx].TargetLane = &target
	}
	return notes
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func demoteSlidesToTaps(notes []model.Note, count int) []model.Note {
	if count <= 0 {
		return notes
	}
	idxs := make([]int, 0)
	for i, n := range notes {
		if n.Kind == model.Slide {
			idxs = append(idxs, i)
		}
	}
	sort.Slice(idxs, func(i, j int) bool { return notes[idxs[i]].Strength < notes[idxs[j]].Strength })
	if count > len(idxs) {
		count = len(idxs)
	}
	for i := 0; i < count; i++ {
		idx := idxs[i]
		notes[idx].Kind = model.Tap
		notes[idx].Duration = nil
		notes[idx].TargetLane = nil
	}
	return notes
}

// penalty is the holistic loop's minimization objective: weighted sparse +
// dense deviation plus type-feedback and mix penalties.
func penalty(ctx *model.Context, notes []model.Note) float64 {
	var sparse, dense float64
	for _, sec := range ctx.Sections {
		if sec.Kind.Silent() || sec.Duration() <= 0 {
			continue
		}
		mult := sectionNPSMultiplier[sec.Kind]
		if mult == 0 {
			mult = 1
		}
		lo := npsBandLow[ctx.Difficulty] * mult
		hi := npsBandHigh[ctx.Difficulty] * mult
		nps := float64(countInRange(notes, sec.Start, sec.End)) / sec.Duration()
		if nps < lo {
			sparse += (lo - nps)
		} else if nps > hi {
			dense += (nps - hi)
		}
	}

	target := math.Max(0.06, math.Min(0.32, 0.10+0.20*ctx.Features.SustainedFocus-0.14*ctx.Features.PercussiveFocus))
	slides, total := 0, 0
	for _, n := range notes {
		if n.Kind == model.Slide || n.Kind == model.Tap {
			total++
			if n.Kind == model.Slide {
				slides++
			}
		}
	}
	mixPenalty := 0.0
	if total > 0 {
		mixPenalty = math.Abs(float64(slides)/float64(total) - target)
	}

	return 3*sparse + 2.2*dense + 4.5*sectionTypeFeedback(ctx, notes, target) + mixPenalty
}

// sectionTypeFeedback is the per-section counterpart to rebalanceSlideRatio's
// global target: for each playable section with any Slide/Tap notes, it
// compares that section's own slide ratio against the song-wide target and
// accumulates |1-typeFeedback|, where typeFeedback is the section ratio
// expressed as a fraction of target (1 when the section matches the song-wide
// mix, 0 when it has no slides at all).
func sectionTypeFeedback(ctx *model.Context, notes []model.Note, target float64) float64 {
	var sum float64
	for _, sec := range ctx.Sections {
		if sec.Kind.Silent() || sec.Duration() <= 0 {
			continue
		}
		slides, total := 0, 0
		for _, n := range notes {
			if n.Time < sec.Start || n.Time >= sec.End {
				continue
			}
			if n.Kind == model.Slide || n.Kind == model.Tap {
				total++
				if n.Kind == model.Slide {
					slides++
				}
			}
		}
		if total == 0 {
			continue
		}
		ratio := float64(slides) / float64(total)
		typeFeedback := ratio / target
		sum += math.Abs(1 - typeFeedback)
	}
	return sum
}
