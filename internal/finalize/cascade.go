// Package finalize implements the finalization cascade and holistic
// rebalancing loop: an ordered sequence of pure Chart->Chart passes, in
// the style of explicit, mutex-free ordered stages over per-call state.
package finalize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/detmath"
	"github.com/basswave/chartgen/internal/model"
)

// Pass is one cascade stage: a pure transform over the sorted note list.
type Pass func(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note

// Run applies every cascade pass in order, then the holistic rebalancing
// loop.
func Run(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	passes := []Pass{
		AlignToMusicGrid,
		EnforcePhysicalPlayability,
		ResolveLongNoteCollisions,
		ResolveVisualNoteOverlaps,
		PolishRhythmSyncByStrongOnsets,
		StabilizeGenerationQuality,
		EnforceFinalMusicAnchoring,
		InjectBurstBreakerNotes,
		EnforceBurstNonOverlap,
		SanitizeFinalLongNotes,
		PruneImpossibleNestedNotes,
		EnforceStrictLongBodyExclusion,
	}
	for _, p := range passes {
		notes = sortedCopy(p(ctx, onsets, notes))
	}
	notes = HolisticRebalance(ctx, onsets, notes)
	return notes
}

func sortedCopy(notes []model.Note) []model.Note {
	out := append([]model.Note{}, notes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// AlignToMusicGrid snaps each note within max(0.02, 0.12*beat) to the beat
// grid (plus quarters for Hard/Expert) union onset times.
func AlignToMusicGrid(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	anchors := buildAnchors(ctx, onsets)
	out := make([]model.Note, len(notes))
	for i, n := range notes {
		beat := ctx.BeatInterval(n.Time)
		tol := math.Max(0.02, 0.12*beat)
		if t, ok := nearestAnchor(anchors, n.Time); ok && math.Abs(t-n.Time) <= tol {
			// duration already measured from start; keep the span fixed
			n.Time = t
		}
		out[i] = n
	}
	return out
}

func buildAnchors(ctx *model.Context, onsets []model.OnsetEvent) []float64 {
	anchors := append([]float64{}, ctx.Beats...)
	for i := 0; i+1 < len(ctx.Beats); i++ {
		b, next := ctx.Beats[i], ctx.Beats[i+1]
		anchors = append(anchors, (b+next)/2)
		if ctx.Difficulty == model.Hard || ctx.Difficulty == model.Expert {
			anchors = append(anchors, b+(next-b)*0.25, b+(next-b)*0.75)
		}
	}
	for _, o := range onsets {
		anchors = append(anchors, o.Time)
	}
	sort.Float64s(anchors)
	return anchors
}

func nearestAnchor(anchors []float64, t float64) (float64, bool) {
	if len(anchors) == 0 {
		return 0, false
	}
	lo, hi := 0, len(anchors)
	for lo < hi {
		mid := (lo + hi) / 2
		if anchors[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	best := anchors[0]
	bestD := math.Abs(best - t)
	if lo > 0 {
		if d := math.Abs(anchors[lo-1] - t); d < bestD {
			bestD, best = d, anchors[lo-1]
		}
	}
	if lo < len(anchors) {
		if d := math.Abs(anchors[lo] - t); d < bestD {
			bestD, best = d, anchors[lo]
		}
	}
	return best, true
}

type activeLong struct {
	end  float64
	lane model.Lane
}

// EnforcePhysicalPlayability shifts Taps that land inside a long's lane(s)
// forward to the latest end among those longs. The shifted time is not
// re-snapped to the grid, no Tap is dropped, and long notes (Slides
// included) are passed through unchanged, without any check of
// concurrent Slides against each other.
func EnforcePhysicalPlayability(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	var actives []activeLong
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		actives = pruneActives(actives, n.Time)
		if n.Kind == model.Tap {
			blocked := false
			for _, a := range actives {
				if a.lane == n.Lane && n.Time < a.end {
					blocked = true
					break
				}
			}
			if blocked {
				maxEnd := n.Time
				for _, a := range actives {
					if a.lane == n.Lane && a.end > maxEnd {
						maxEnd = a.end
					}
				}
				n.Time = maxEnd
			}
		}
		out = append(out, n)
		if n.IsLong() {
			lane := n.Lane
			actives = append(actives, activeLong{end: n.End(), lane: lane})
			if n.Kind == model.Slide && n.TargetLane != nil {
				actives = append(actives, activeLong{end: n.End(), lane: *n.TargetLane})
			}
		}
	}
	return out
}

func pruneActives(actives []activeLong, t float64) []activeLong {
	out := make([]activeLong, 0, len(actives))
	for _, a := range actives {
		if a.end > t {
			out = append(out, a)
		}
	}
	return out
}

// ResolveLongNoteCollisions shifts each long's start forward per lane to
// clear conflicts, trimming duration, dropping any that can't meet the
// per-kind minimum.
func ResolveLongNoteCollisions(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	laneBusyUntil := map[model.Lane]float64{}
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if !n.IsLong() {
			out = append(out, n)
			continue
		}
		beat := ctx.BeatInterval(n.Time)
		minDur := minLongDur(n.Kind, beat)
		start := n.Time
		if busy, ok := laneBusyUntil[n.Lane]; ok && start < busy {
			start = busy
		}
		newDur := n.End() - start
		if newDur < minDur {
			continue
		}
		n.Time = start
		n.Duration = &newDur
		out = append(out, n)
		laneBusyUntil[n.Lane] = n.End()
		if n.Kind == model.Slide && n.TargetLane != nil {
			laneBusyUntil[*n.TargetLane] = n.End()
		}
	}
	return out
}

func minLongDur(kind model.NoteKind, beat float64) float64 {
	if kind == model.Hold {
		return math.Max(MinHoldDurationSec, 0.62*beat)
	}
	return math.Max(MinSlideDurationSec, 0.78*beat)
}

// ResolveVisualNoteOverlaps drops Taps that visually collide with a long's
// head or body, respecting the diagonal-slide baton window.
func ResolveVisualNoteOverlaps(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.Kind != model.Tap {
			out = append(out, n)
			continue
		}
		beat := ctx.BeatInterval(n.Time)
		headTol := math.Max(0.055, 0.18*beat)
		drop := false
		for _, l := range notes {
			if !l.IsLong() || isSame(l, n) {
				continue
			}
			if !l.OccupiesLane(n.Lane) {
				continue
			}
			if math.Abs(n.Time-l.Time) < headTol {
				drop = true
				break
			}
			if inBatonWindow(l, n) {
				continue
			}
			if n.Time >= l.Time && n.Time <= l.End() {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, n)
		}
	}
	return out
}

func isSame(a, b model.Note) bool { return a.Time == b.Time && a.Lane == b.Lane && a.Kind == b.Kind }

func inBatonWindow(long, tap model.Note) bool {
	if long.Kind != model.Slide || long.TargetLane == nil || long.Duration == nil {
		return false
	}
	if tap.Lane != *long.TargetLane {
		return false
	}
	lo := long.Time + 0.42**long.Duration
	hi := long.Time + 0.62**long.Duration
	return tap.Time >= lo && tap.Time <= hi
}

// PolishRhythmSyncByStrongOnsets nudges each Tap toward a nearby strong
// onset (>=68th percentile).
func PolishRhythmSyncByStrongOnsets(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	strongs := strongOnsetTimes(onsets, 0.68)
	out := make([]model.Note, len(notes))
	for i, n := range notes {
		if n.Kind != model.Tap {
			out[i] = n
			continue
		}
		beat := ctx.BeatInterval(n.Time)
		tol := math.Max(0.026, 0.10*beat)
		if t, ok := nearestAnchor(strongs, n.Time); ok && math.Abs(t-n.Time) <= tol {
			frac := math.Max(0.58, 0.84-0.28*n.Strength)
			n.Time = n.Time + (t-n.Time)*frac
		}
		out[i] = n
	}
	return out
}

func strongOnsetTimes(onsets []model.OnsetEvent, pct float64) []float64 {
	if len(onsets) == 0 {
		return nil
	}
	strengths := make([]float64, len(onsets))
	for i, o := range onsets {
		strengths[i] = o.Strength
	}
	sorted := append([]float64{}, strengths...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(pct, stat.Empirical, sorted, nil)
	var out []float64
	for _, o := range onsets {
		if o.Strength >= threshold {
			out = append(out, o.Time)
		}
	}
	sort.Float64s(out)
	return out
}

// StabilizeGenerationQuality re-snaps each Tap to the first of strong
// onsets / onsets / grid that lies within 0.05 / 0.08 / 0.12 beat, prunes
// Taps that match none of them with a deterministic 1-in-{3,4,5} gate
// (whatever their strength), and caps the long-note ratio by demoting the
// lowest-strength Longs to Taps.
func StabilizeGenerationQuality(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	strongs := strongOnsetTimes(onsets, 0.68)
	onsetTimes := make([]float64, len(onsets))
	for i, o := range onsets {
		onsetTimes[i] = o.Time
	}
	sort.Float64s(onsetTimes)
	grid := buildAnchors(ctx, nil)

	out := make([]model.Note, 0, len(notes))
	for idx, n := range notes {
		if n.Kind == model.Tap {
			beat := ctx.BeatInterval(n.Time)
			anchored := false
			for rank, src := range [][]float64{strongs, onsetTimes, grid} {
				tol := []float64{0.05, 0.08, 0.12}[rank] * beat
				if t, ok := nearestAnchor(src, n.Time); ok && math.Abs(t-n.Time) <= tol {
					n.Time = t
					anchored = true
					break
				}
			}
			if !anchored {
				seed := detmath.Seed(n.Time, int(n.Lane), idx)
				modulus := 3 + detmath.Mod(seed, ctx.RNGSeed, 3)
				if detmath.Mod(seed, ctx.RNGSeed+7, modulus) == 0 {
					continue
				}
			}
		}
		out = append(out, n)
	}

	out = capLongRatio(ctx, out)
	return out
}

func capLongRatio(ctx *model.Context, notes []model.Note) []model.Note {
	ratioCap := longRatioCap[ctx.Difficulty]
	longs := 0
	for _, n := range notes {
		if n.IsLong() {
			longs++
		}
	}
	if len(notes) == 0 || float64(longs)/float64(len(notes)) <= ratioCap {
		return notes
	}
	sortedIdx := make([]int, 0, longs)
	for i, n := range notes {
		if n.IsLong() {
			sortedIdx = append(sortedIdx, i)
		}
	}
	sort.Slice(sortedIdx, func(i, j int) bool { return notes[sortedIdx[i]].Strength < notes[sortedIdx[j]].Strength })
	target := int(ratioCap * float64(len(notes)))
	demote := longs - target
	for i := 0; i < demote && i < len(sortedIdx); i++ {
		idx := sortedIdx[i]
		notes[idx].Kind = model.Tap
		notes[idx].Duration = nil
		notes[idx].TargetLane = nil
	}
	return notes
}

// EnforceFinalMusicAnchoring re-snaps with stricter tolerances and drops
// weak non-highlight Taps that remain far from any onset.
func EnforceFinalMusicAnchoring(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	strongs := strongOnsetTimes(onsets, 0.68)
	onsetTimes := make([]float64, len(onsets))
	for i, o := range onsets {
		onsetTimes[i] = o.Time
	}
	sort.Float64s(onsetTimes)

	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		beat := ctx.BeatInterval(n.Time)
		if n.Kind == model.Tap {
			tol := math.Max(0.03, 0.08*beat)
			if t, ok := nearestAnchor(strongs, n.Time); ok && math.Abs(t-n.Time) <= tol {
				n.Time = t
			} else if t, ok := nearestAnchor(onsetTimes, n.Time); ok && math.Abs(t-n.Time) <= tol {
				n.Time = t
			}
			sec := ctx.SectionAt(n.Time)
			highlight := sec.Kind == model.Chorus || sec.Kind == model.Drop
			farTol := math.Max(0.082, 0.30*beat)
			if !highlight && n.Strength < 0.5 {
				if _, ok := nearestAnchor(onsetTimes, n.Time); ok {
					d := math.Abs(nearestD(onsetTimes, n.Time))
					if d > farTol {
						continue
					}
				}
			}
		}
		out = append(out, n)
	}
	return out
}

func nearestD(xs []float64, t float64) float64 {
	v, _ := nearestAnchor(xs, t)
	return v - t
}
