package finalize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/detmath"
	"github.com/basswave/chartgen/internal/model"
)

// InjectBurstBreakerNotes inserts a Burst wherever a strong onset
// (>=78th percentile) falls in Drop/Chorus with high transient energy and
// sparse local density, so long as it overlaps nothing.
func InjectBurstBreakerNotes(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	if len(onsets) == 0 {
		return notes
	}
	strengths := make([]float64, len(onsets))
	for i, o := range onsets {
		strengths[i] = o.Strength
	}
	sorted := append([]float64{}, strengths...)
	sort.Float64s(sorted)
	p78 := stat.Quantile(0.78, stat.Empirical, sorted, nil)

	out := append([]model.Note{}, notes...)
	for idx, o := range onsets {
		if o.Strength < p78 {
			continue
		}
		sec := ctx.SectionAt(o.Time)
		if sec.Kind != model.Drop && sec.Kind != model.Chorus {
			continue
		}
		sp, ok := ctx.NearestSpectral(o.Time)
		if !ok || sp.Transient < 0.62 {
			continue
		}
		beat := ctx.BeatInterval(o.Time)
		if !isSparseLocally(out, o.Time, 2*beat) {
			continue
		}
		seed := detmath.Seed(o.Time, 0, idx)
		hits := 4 + detmath.Mod(seed, ctx.RNGSeed, 5)
		dur := math.Max(0.72, burstDurFactor(ctx.Difficulty)*beat)
		if overlapsAnyNote(out, o.Time-0.04, o.Time+dur+0.05) {
			continue
		}
		out = append(out, model.Note{Time: o.Time, Lane: model.Bottom, Kind: model.Burst, Strength: o.Strength,
			Duration: &dur, BurstHitsRequired: &hits})
	}
	return out
}

func burstDurFactor(d model.Difficulty) float64 {
	switch d {
	case model.Easy, model.Normal:
		return 1.65
	case model.Hard:
		return 1.95
	default:
		return 2.2
	}
}

func isSparseLocally(notes []model.Note, t, window float64) bool {
	count := 0
	for _, n := range notes {
		if math.Abs(n.Time-t) < window {
			count++
		}
	}
	return count <= 2
}

func overlapsAnyNote(notes []model.Note, start, end float64) bool {
	for _, n := range notes {
		nEnd := n.End()
		if n.IsLong() {
			if start < nEnd && end > n.Time {
				return true
			}
		} else if n.Time >= start && n.Time <= end {
			return true
		}
	}
	return false
}

// EnforceBurstNonOverlap drops any Burst whose window overlaps another
// long's active interval on any lane, or a Tap within 0.18*beat.
func EnforceBurstNonOverlap(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.Kind != model.Burst {
			out = append(out, n)
			continue
		}
		beat := ctx.BeatInterval(n.Time)
		start, end := n.Time-0.04, n.End()+0.05
		conflict := false
		for _, other := range notes {
			if isSame(other, n) {
				continue
			}
			if other.IsLong() {
				if start < other.End() && end > other.Time {
					conflict = true
					break
				}
			}
			if other.Kind == model.Tap && math.Abs(other.Time-n.Time) < 0.18*beat {
				conflict = true
				break
			}
		}
		if !conflict {
			out = append(out, n)
		}
	}
	return out
}

// SanitizeFinalLongNotes enforces minimum long durations, clamps targetLane
// to a real lane, and re-runs collision resolution.
func SanitizeFinalLongNotes(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.IsLong() {
			beat := ctx.BeatInterval(n.Time)
			minDur := minLongDur(n.Kind, beat)
			if n.Duration == nil || *n.Duration < minDur {
				d := minDur
				n.Duration = &d
			}
			if n.Kind == model.Slide && n.TargetLane == nil {
				opp := n.Lane.Opposite()
				n.TargetLane = &opp
			}
		}
		out = append(out, n)
	}
	return ResolveLongNoteCollisions(ctx, onsets, out)
}

// PruneImpossibleNestedNotes drops Taps inside long bodies except the
// diagonal-slide baton window, and collapses same-lane same-type
// duplicates within a short window.
func PruneImpossibleNestedNotes(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.Kind == model.Tap {
			nested := false
			for _, l := range notes {
				if !l.IsLong() || isSame(l, n) || !l.OccupiesLane(n.Lane) {
					continue
				}
				if n.Time >= l.Time && n.Time <= l.End() && !inBatonWindow(l, n) {
					nested = true
					break
				}
			}
			if nested {
				continue
			}
		}
		out = append(out, n)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	deduped := make([]model.Note, 0, len(out))
	for _, n := range out {
		beat := ctx.BeatInterval(n.Time)
		tol := math.Max(0.055, 0.17*beat)
		dup := false
		for i := len(deduped) - 1; i >= 0; i-- {
			if n.Time-deduped[i].Time > tol {
				break
			}
			if deduped[i].Lane == n.Lane && deduped[i].Kind == n.Kind {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, n)
		}
	}
	return deduped
}

// EnforceStrictLongBodyExclusion is the final strict variant: any Tap
// inside any long's body (excluding the baton window) is dropped.
func EnforceStrictLongBodyExclusion(ctx *model.Context, onsets []model.OnsetEvent, notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.Kind == model.Tap {
			excluded := false
			for _, l := range notes {
				if !l.IsLong() || isSame(l, n) || !l.OccupiesLane(n.Lane) {
					continue
				}
				if n.Time > l.Time && n.Time < l.End() && !inBatonWindow(l, n) {
					excluded = true
					break
				}
			}
			if excluded {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}
