// Package beatmap implements the beat mapper, the primary composer: a
// state-machine walk over the beat/half-beat grid that picks at most
// one onset per slot, decides lane and note kind, and humanizes the
// result. Built on weighted candidate scoring and greedy best-of-N
// selection, generalized from track-to-track transition scoring to
// onset-to-grid-slot scoring.
package beatmap

import (
	"math"
	"sort"

	"github.com/basswave/chartgen/internal/bandclass"
	"github.com/basswave/chartgen/internal/detmath"
	"github.com/basswave/chartgen/internal/model"
)

// gridPoint is a single walk step: a beat or half-beat instant.
type gridPoint struct {
	time     float64
	downbeat bool
	barIdx   int
	beatIdx  int
}

var sectionBaseDensity = map[model.SectionKind]float64{
	model.Drop: 1.0, model.Chorus: 0.92, model.Verse: 0.60, model.Bridge: 0.42,
	model.Intro: 0.18, model.Outro: 0.22, model.Interlude: 0,
}

// state is the beat mapper's persistent walk state.
type state struct {
	lastNoteTime        float64
	haveLast            bool
	lastLane            model.Lane
	consecutiveSameLane int
	laneOccupiedUntil   [2]float64
	history             []model.Lane // bounded ring, size 12
}

func (s *state) pushHistory(l model.Lane) {
	s.history = append(s.history, l)
	if len(s.history) > 12 {
		s.history = s.history[len(s.history)-12:]
	}
}

func (s *state) historyRatio(l model.Lane) float64 {
	if len(s.history) == 0 {
		return 0
	}
	count := 0
	for _, h := range s.history {
		if h == l {
			count++
		}
	}
	return float64(count) / float64(len(s.history))
}

// Map walks the beat grid and produces the primary note list, including the
// humanization post-pass and the supplementary onset pass. This is the
// enriched candidate quality.SelectBest chooses between.
func Map(ctx *model.Context, onsets []model.OnsetEvent) []model.Note {
	notes := MapConservative(ctx, onsets)
	notes = supplementFromOnsets(ctx, notes, onsets)
	sort.Slice(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	return notes
}

// MapConservative walks the beat grid and humanizes the result but skips
// the supplementary onset pass, giving the lower-density candidate
// quality.SelectBest chooses between.
func MapConservative(ctx *model.Context, onsets []model.OnsetEvent) []model.Note {
	grid := buildGrid(ctx)
	st := &state{lastLane: model.Bottom}
	highShare, lowShare := bandShares(onsets)
	var notes []model.Note

	for i, gp := range grid {
		sec := ctx.SectionAt(gp.time)
		if sec.Kind == model.Interlude {
			continue
		}
		beat := ctx.BeatInterval(gp.time)
		density := sectionBaseDensity[sec.Kind] * (0.7 + 0.3*sec.AvgEnergy)

		if !gp.downbeat && density < offbeatGate(ctx.Difficulty, sec) {
			continue
		}

		minGap := math.Max(0.06, beat*(0.20-driveBoost(ctx)*0.07))
		if st.haveLast && gp.time-st.lastNoteTime < minGap {
			continue
		}

		cand, found := nearestOnset(ctx, onsets, gp, beat)

		var note model.Note
		switch {
		case found:
			note = buildNoteFromOnset(ctx, st, cand, gp, beat, i, highShare, lowShare)
		case allowFill(sec, gp, density):
			note = buildFillNote(ctx, st, gp, beat, i)
		default:
			continue
		}

		if note.Time < st.laneOccupiedUntil[note.Lane] {
			alt := note.Lane.Opposite()
			if note.Time < st.laneOccupiedUntil[alt] {
				continue
			}
			note.Lane = alt
			if note.TargetLane != nil {
				other := alt.Opposite()
				note.TargetLane = &other
			}
		}

		notes = append(notes, note)
		until := note.Time + 0.08
		if note.Duration != nil {
			until = note.End() + 0.05
		}
		st.laneOccupiedUntil[note.Lane] = until
		if note.Lane == st.lastLane {
			st.consecutiveSameLane++
		} else {
			st.consecutiveSameLane = 1
		}
		st.lastLane = note.Lane
		st.lastNoteTime = note.Time
		st.haveLast = true
		st.pushHistory(note.Lane)
	}

	notes = humanize(ctx, notes)
	sort.Slice(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	return notes
}

func buildGrid(ctx *model.Context) []gridPoint {
	if len(ctx.Beats) == 0 {
		return nil
	}
	var grid []gridPoint
	for i, b := range ctx.Beats {
		grid = append(grid, gridPoint{time: b, downbeat: true, barIdx: i / 4, beatIdx: i})
		if i+1 < len(ctx.Beats) {
			grid = append(grid, gridPoint{time: (b + ctx.Beats[i+1]) / 2, downbeat: false, barIdx: i / 4, beatIdx: i})
		}
	}
	return grid
}

func offbeatGate(d model.Difficulty, sec model.Section) float64 {
	base := map[model.Difficulty]float64{model.Easy: 0.5, model.Normal: 0.44, model.Hard: 0.36, model.Expert: 0.30}[d]
	if sec.Kind == model.Drop || sec.Kind == model.Chorus {
		return base - 0.08
	}
	return base
}

func driveBoost(ctx *model.Context) float64 {
	return ctx.Features.DriveScore
}

func nearestOnset(ctx *model.Context, onsets []model.OnsetEvent, gp gridPoint, beat float64) (model.OnsetEvent, bool) {
	halfBeat := beat / 2
	window := halfBeat * 0.38
	if gp.downbeat {
		window = halfBeat * 0.64
	}
	var best model.OnsetEvent
	bestScore := math.Inf(-1)
	found := false
	for _, o := range onsets {
		d := math.Abs(o.Time - gp.time)
		if d > window {
			continue
		}
		proximity := 1 - d/window
		bandWeight := bandAffinityScore(ctx, o)
		beatBias := 0.0
		if gp.downbeat {
			beatBias = 0.06
		}
		melodicBias := 0.04 * ctx.Features.MelodicFocus
		score := 0.38*proximity + 0.34*bandWeight + 0.22*o.Strength + beatBias + melodicBias
		if score > bestScore || (score == bestScore && found && d < math.Abs(best.Time-gp.time)) {
			bestScore = score
			best = o
			found = true
		}
	}
	return best, found
}

func bandShares(onsets []model.OnsetEvent) (high, low float64) {
	var lowN, highN, total float64
	for _, o := range onsets {
		total++
		switch o.Band {
		case model.Low:
			lowN++
		case model.High:
			highN++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return highN / total, lowN / total
}

func bandAffinityScore(ctx *model.Context, o model.OnsetEvent) float64 {
	sp, ok := ctx.NearestSpectral(o.Time)
	if !ok {
		return 0.5
	}
	return bandclass.BandAffinity(sp, o.Band)
}

func allowFill(sec model.Section, gp gridPoint, density float64) bool {
	if gp.beatIdx%4 != 0 && gp.beatIdx%4 != 2 {
		return false
	}
	threshold := 0.50
	if sec.AvgEnergy > 0.6 {
		threshold = 0.44
	}
	return density >= threshold
}

func buildFillNote(ctx *model.Context, st *state, gp gridPoint, beat float64, idx int) model.Note {
	lane := st.lastLane.Opposite()
	return model.Note{Time: gp.time, Lane: lane, Kind: model.Tap, Strength: 0.5}
}

func buildNoteFromOnset(ctx *model.Context, st *state, o model.OnsetEvent, gp gridPoint, beat float64, idx int, highShare, lowShare float64) model.Note {
	lane, isAnchor := bandclass.PreferredLane(o.Band, highShare, lowShare, st.lastLane)

	if st.consecutiveSameLane >= 4 || (st.historyRatio(lane) >= 0.65 && !isAnchor) {
		lane = lane.Opposite()
	}

	t := gp.time
	maxNudge := beat / 2 * 0.52
	if gp.downbeat {
		maxNudge = beat / 2 * 0.36
	}
	if d := o.Time - gp.time; math.Abs(d) <= maxNudge {
		t = gp.time + d*0.75
	}

	sp, _ := ctx.NearestSpectral(t)
	sec := ctx.SectionAt(t)

	kind, duration, targetLane := decideKind(ctx, sp, sec, o, st, beat, t, idx, lane)

	return model.Note{Time: t, Lane: lane, Kind: kind, Strength: o.Strength, Duration: duration, TargetLane: targetLane}
}

func decideKind(ctx *model.Context, sp model.SpectralProfile, sec model.Section, o model.OnsetEvent, st *state, beat, t float64, idx int, lane model.Lane) (model.NoteKind, *float64, *model.Lane) {
	gap := t - st.lastNoteTime
	if !st.haveLast {
		gap = beat * 2
	}

	if sec.Kind == model.Bridge && gap > 1.75*beat && o.Strength > 0.52 {
		dur := math.Min(gap*0.5, 2*beat)
		return model.Hold, &dur, nil
	}

	if bandclass.SustainedLike(sp, o.Strength, ctx.Features.SustainedFocus) && !sec.Kind.Silent() &&
		gap > 0.8*beat && gap < 2.45*beat {
		dur := clampF(gap, 0.9*beat, 2.5*beat)
		target := lane
		seed := detmath.Seed(t, int(lane), idx)
		if detmath.Bool(seed, ctx.RNGSeed, 0.5) {
			target = lane.Opposite()
		}
		return model.Slide, &dur, &target
	}

	if sec.Kind == model.Drop && shouldInsertSlide(ctx, idx, t, lane) && gap > 0.8*beat {
		dur := clampF(gap, 0.9*beat, 2.5*beat)
		target := lane.Opposite()
		return model.Slide, &dur, &target
	}

	if bandclass.StaccatoLike(sp, o.Strength) {
		return model.Tap, nil, nil
	}

	return model.Tap, nil, nil
}

// shouldInsertSlide gates the Drop-section slide-insertion rule to
// phrase-edge beats only.
func shouldInsertSlide(ctx *model.Context, idx int, t float64, lane model.Lane) bool {
	if idx%16 != 14 && idx%16 != 15 && idx%8 != 3 && idx%8 != 7 {
		return false
	}
	seed := detmath.Seed(t, int(lane), idx)
	n := 2 + detmath.Mod(seed, ctx.RNGSeed, 3)
	return detmath.Mod(seed, ctx.RNGSeed+1, n) == 0
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
