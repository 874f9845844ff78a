// Package onset implements the onset timeline builder: candidate
// generation over a fine beat grid, section/band scoring, grid
// snapping, dedup, and per-section top-K selection, following an
// onset-envelope/dedup shape with gonum/stat.Quantile standing in for
// its percentile gates.
package onset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/model"
)

// BandStreams are the raw per-band onset streams feeding the timeline.
type BandStreams struct {
	Low  []model.OnsetEvent
	Mid  []model.OnsetEvent
	High []model.OnsetEvent
}

var targetNPSBase = map[model.Difficulty]float64{
	model.Easy: 2.3, model.Normal: 4.4, model.Hard: 6.6, model.Expert: 8.8,
}

var sectionNPSFactor = map[model.SectionKind]float64{
	model.Drop: 1.55, model.Chorus: 1.38, model.Bridge: 0.72, model.Verse: 0.88,
	model.Outro: 0.22, model.Intro: 0.20, model.Interlude: 0.16,
}

var betaByDifficulty = map[model.Difficulty]float64{
	model.Easy: 0.28, model.Normal: 0.24, model.Hard: 0.20, model.Expert: 0.18,
}

func sectionBandWeight(kind model.SectionKind, band model.Band) float64 {
	switch kind {
	case model.Drop, model.Chorus:
		if band == model.Low {
			return 0.95
		}
		if band == model.High {
			return 0.85
		}
		return 0.6
	case model.Bridge, model.Verse:
		if band == model.Mid {
			return 0.9
		}
		return 0.65
	default:
		return 0.4
	}
}

// Build runs the Onset Timeline Builder algorithm. The 88th-percentile
// strength gate is taken over the merged band streams; fallback is the
// raw mixed onset stream, returned instead when the band streams are
// empty or the result keeps fewer than 28% of fallback's events.
func Build(ctx *model.Context, streams BandStreams, fallback []model.OnsetEvent) []model.OnsetEvent {
	all := mergeStreams(streams)
	if len(all) == 0 {
		return append([]model.OnsetEvent{}, fallback...)
	}

	strengths := make([]float64, len(all))
	for i, o := range all {
		strengths[i] = o.Strength
	}
	p88 := percentile(strengths, 0.88)

	scored := make([]model.OnsetEvent, 0, len(all))
	for _, o := range all {
		sec := ctx.SectionAt(o.Time)
		if sec.Kind.Silent() && o.Strength <= p88 {
			continue
		}
		bandAffinity := bandAffinityFor(ctx, o)
		energyLift := energyLiftFor(ctx, o.Time)
		introSuppress := 0.0
		if sec.Kind.Silent() {
			introSuppress = ctx.Features.IntroQuietness
		}
		score := o.Strength * sectionBandWeight(sec.Kind, o.Band) *
			(0.64 + bandAffinity*0.24 + energyLift*0.12) * (1 - introSuppress*sectionFactor(sec.Kind))
		scored = append(scored, model.OnsetEvent{Time: o.Time, Strength: score, Band: o.Band})
	}

	beat := ctx.BeatInterval(0)
	snapGrid := buildFineGrid(ctx)
	beta := betaByDifficulty[ctx.Difficulty]

	snapped := make([]model.OnsetEvent, 0, len(scored))
	for _, o := range scored {
		window := math.Max(0.035, beta*ctx.BeatInterval(o.Time))
		if gp, ok := nearestGridPoint(snapGrid, o.Time); ok && math.Abs(gp-o.Time) <= window {
			snapped = append(snapped, model.OnsetEvent{Time: gp, Strength: o.Strength, Band: o.Band})
		} else if o.Strength > p88 {
			snapped = append(snapped, o)
		}
	}

	deduped := dedup(snapped, beat)
	selected := selectTopKPerSection(ctx, deduped)
	enforced := enforceMinGap(selected, ctx)

	if float64(len(enforced)) < 0.28*float64(len(fallback)) {
		return append([]model.OnsetEvent{}, fallback...)
	}
	return enforced
}

func mergeStreams(s BandStreams) []model.OnsetEvent {
	all := make([]model.OnsetEvent, 0, len(s.Low)+len(s.Mid)+len(s.High))
	all = append(all, s.Low...)
	all = append(all, s.Mid...)
	all = append(all, s.High...)
	sort.Slice(all, func(i, j int) bool { return all[i].Time < all[j].Time })
	return all
}

func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func bandAffinityFor(ctx *model.Context, o model.OnsetEvent) float64 {
	sp, ok := ctx.NearestSpectral(o.Time)
	if !ok {
		return 0.5
	}
	switch o.Band {
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

func energyLiftFor(ctx *model.Context, t float64) float64 {
	sp, ok := ctx.NearestSpectral(t)
	if !ok {
		return 0
	}
	return sp.Energy
}

func sectionFactor(kind model.SectionKind) float64 {
	switch kind {
	case model.Intro:
		return 1.0
	case model.Outro:
		return 0.8
	case model.Interlude:
		return 0.9
	default:
		return 0.3
	}
}

func buildFineGrid(ctx *model.Context) []float64 {
	if len(ctx.Beats) == 0 {
		return nil
	}
	grid := make([]float64, 0, len(ctx.Beats)*4)
	addThirds := ctx.Features.MelodicFocus >= 0.56 || ctx.Features.SustainedFocus >= 0.56
	addQuarters := ctx.Difficulty == model.Hard || ctx.Difficulty == model.Expert
	for i, b := range ctx.Beats {
		grid = append(grid, b)
		if i+1 < len(ctx.Beats) {
			next := ctx.Beats[i+1]
			grid = append(grid, (b+next)/2)
			if addQuarters {
				grid = append(grid, b+(next-b)*0.25, b+(next-b)*0.75)
			}
			if addThirds {
				grid = append(grid, b+(next-b)/3, b+(next-b)*2/3)
			}
		}
	}
	sort.Float64s(grid)
	return grid
}

func nearestGridPoint(grid []float64, t float64) (float64, bool) {
	if len(grid) == 0 {
		return 0, false
	}
	lo, hi := 0, len(grid)
	for lo < hi {
		mid := (lo + hi) / 2
		if grid[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return grid[0], true
	}
	if lo == len(grid) {
		return grid[len(grid)-1], true
	}
	if t-grid[lo-1] <= grid[lo]-t {
		return grid[lo-1], true
	}
	return grid[lo], true
}

func dedup(events []model.OnsetEvent, beat float64) []model.OnsetEvent {
	bucketSize := math.Max(0.012, 0.16*beat)
	best := map[int64]model.OnsetEvent{}
	order := []int64{}
	for _, e := range events {
		bucket := int64(e.Time / bucketSize)
		if cur, ok := best[bucket]; !ok || e.Strength > cur.Strength {
			if !ok {
				order = append(order, bucket)
			}
			best[bucket] = e
		}
	}
	out := make([]model.OnsetEvent, 0, len(order))
	for _, b := range order {
		out = append(out, best[b])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func selectTopKPerSection(ctx *model.Context, events []model.OnsetEvent) []model.OnsetEvent {
	base := targetNPSBase[ctx.Difficulty]
	var out []model.OnsetEvent
	for _, sec := range ctx.Sections {
		var inSection []model.OnsetEvent
		for _, e := range events {
			if e.Time >= sec.Start && e.Time < sec.End {
				inSection = append(inSection, e)
			}
		}
		if len(inSection) == 0 {
			continue
		}
		factor := sectionNPSFactor[sec.Kind]
		k := int(sec.Duration() * base * factor * (0.6 + 0.4*sec.AvgEnergy))
		sort.Slice(inSection, func(i, j int) bool { return inSection[i].Strength > inSection[j].Strength })
		if k < len(inSection) {
			inSection = inSection[:k]
		}
		out = append(out, inSection...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func enforceMinGap(events []model.OnsetEvent, ctx *model.Context) []model.OnsetEvent {
	if len(events) == 0 {
		return events
	}
	out := make([]model.OnsetEvent, 0, len(events))
	out = append(out, events[0])
	for i := 1; i < len(events); i++ {
		gap := math.Max(0.016, 0.16*ctx.BeatInterval(events[i].Time))
		last := out[len(out)-1]
		if events[i].Time-last.Time < gap {
			if events[i].Strength > last.Strength {
				out[len(out)-1] = events[i]
			}
			continue
		}
		out = append(out, events[i])
	}
	return out
}
