package chartgen

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/basswave/chartgen/internal/beatmap"
	"github.com/basswave/chartgen/internal/difficulty"
	"github.com/basswave/chartgen/internal/features"
	"github.com/basswave/chartgen/internal/finalize"
	"github.com/basswave/chartgen/internal/model"
	"github.com/basswave/chartgen/internal/onset"
	"github.com/basswave/chartgen/internal/quality"
	"github.com/basswave/chartgen/internal/rescue"
	"github.com/basswave/chartgen/internal/tempo"
	"github.com/basswave/chartgen/internal/theme"
)

var optionsValidator = validator.New()

var hardClampMax = map[model.Difficulty]float64{
	model.Easy: 3.2, model.Normal: 6.2, model.Hard: 9.4, model.Expert: 12.5,
}

// Generate runs the full ten-stage chart composition pipeline over audio
// and opts, producing a deterministic chart for the same numeric inputs.
// The only fatal error is a missing or empty audio buffer; every other
// analyzer or pipeline failure is recovered locally with a conservative
// substitute so a chart is always produced.
func Generate(ctx context.Context, audio AudioBuffer, opts GenerateOptions) (model.Chart, error) {
	if audio.NumberOfChannels == 0 || audio.Length == 0 || len(audio.Channels) == 0 {
		return model.Chart{}, ErrMissingAudio
	}
	if err := optionsValidator.Struct(opts); err != nil {
		return model.Chart{}, fmt.Errorf("chartgen: invalid options: %w", err)
	}

	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}

	mctx, err := buildContext(ctx, audio, opts, progress)
	if err != nil {
		return model.Chart{}, err
	}

	progress("beatmap", 0.55)
	conservativeRaw := beatmap.MapConservative(mctx, mctx.Onsets)
	enrichedRaw := beatmap.Map(mctx, mctx.Onsets)

	progress("difficulty", 0.60)
	conservativeRaw = difficulty.Scale(conservativeRaw, mctx.Difficulty)
	enrichedRaw = difficulty.Scale(enrichedRaw, mctx.Difficulty)

	progress("finalize", 0.95)
	conservativeNotes := finalize.Run(mctx, mctx.Onsets, conservativeRaw)
	enrichedNotes := finalize.Run(mctx, mctx.Onsets, enrichedRaw)

	conservativeScore := quality.Score(mctx, mctx.Onsets, conservativeNotes)
	enrichedScore := quality.Score(mctx, mctx.Onsets, enrichedNotes)

	energetic := mctx.Features.DriveScore >= 0.55 || mctx.Features.PercussiveFocus >= 0.6
	chosen := quality.SelectBest(
		quality.Candidate{Notes: conservativeNotes, Score: conservativeScore},
		quality.Candidate{Notes: enrichedNotes, Score: enrichedScore},
		energetic,
	)
	notes := chosen.Notes
	score := chosen.Score

	progress("quality", 0.97)
	qualityLift := mctx.Features.DriveScore
	floor := quality.QualityFloor(mctx.Difficulty, qualityLift)
	emergencyFloor := rescue.Floor(mctx.Difficulty, mctx.Duration)

	if len(notes) < emergencyFloor || score < floor {
		rescued := rescue.Build(mctx, mctx.Onsets)
		rescued = finalize.Run(mctx, mctx.Onsets, rescued)
		if len(rescued) >= len(notes) || len(notes) < emergencyFloor {
			notes = rescued
		}
		if len(notes) == 0 {
			return model.Chart{}, errEmptyChart
		}
	}

	notes = enforceCountBand(mctx, notes, emergencyFloor)

	progress("theme", 0.99)
	visualTheme := theme.Select(mctx.Features, chartStats(mctx, notes))

	progress("done", 1.0)
	return model.Chart{
		BPM:           representativeBPM(mctx),
		Duration:      mctx.Duration,
		Difficulty:    mctx.Difficulty,
		VisualTheme:   visualTheme,
		Notes:         notes,
		Sections:      mctx.Sections,
		BeatPositions: mctx.Beats,
		TotalNotes:    len(notes),
	}, nil
}

// buildContext runs the analyzer collaborators and assembles the
// pipeline's shared, immutable Context. Every analyzer call follows an
// error-as-fallback policy: a failure here substitutes a conservative
// default and never aborts Generate.
func buildContext(ctx context.Context, audio AudioBuffer, opts GenerateOptions, progress ProgressFunc) (*model.Context, error) {
	duration := float64(audio.Length) / float64(audio.SampleRate)

	progress("tempo", 0.05)
	bpmEstimate, err := opts.Analyzer.DetectBPM(ctx, audio)
	if err != nil {
		bpmEstimate = BPMEstimate{BPM: 120, FirstBeatOffset: 0}
	}

	progress("flux", 0.15)
	flux, err := opts.Analyzer.ComputeOnsetFlux(ctx, audio, FluxOptions{})
	analyzerFailed := err != nil
	var onsetResult OnsetResult
	if !analyzerFailed {
		onsetResult, err = opts.Analyzer.DetectOnsetsFromFlux(ctx, flux, 1.0)
		analyzerFailed = analyzerFailed || err != nil
	}

	lowRaw := toOnsetEvents(onsetResult.LowOnsets, onsetResult.LowStrengths, model.Low)
	midRaw := toOnsetEvents(onsetResult.MidOnsets, onsetResult.MidStrengths, model.Mid)
	highRaw := toOnsetEvents(onsetResult.HighOnsets, onsetResult.HighStrengths, model.High)
	mixedRaw := toOnsetEvents(onsetResult.Onsets, onsetResult.Strengths, model.Mid)

	if len(mixedRaw) == 0 {
		analyzerFailed = true
	}

	progress("sections", 0.25)
	sections, err := opts.Analyzer.DetectSections(ctx, audio)
	if err != nil || len(sections) == 0 {
		sections = []model.Section{{Start: 0, End: duration, Kind: model.Verse, AvgEnergy: 0.5}}
	}

	progress("spectral", 0.35)
	samplePoints := samplePointsFor(duration)
	spectral, err := opts.Analyzer.AnalyzeSpectralProfiles(ctx, audio, samplePoints, SpectralOptions{})
	if err != nil {
		spectral = nil
	}

	initialBPM := bpmEstimate.BPM
	offset, refineErr := tempo.RefineBeatOffset(bpmEstimate.FirstBeatOffset, initialBPM, mixedRaw)
	if _, ok := refineErr.(tempo.ErrNoData); ok {
		offset = math.Mod(bpmEstimate.FirstBeatOffset, 60.0/initialBPM)
	}
	bpm, offset := tempo.BestTempoGrid(initialBPM, offset, mixedRaw)
	tempoSegments := tempo.BuildAdaptiveTempoSegments(mixedRaw, bpm, duration)

	beats, err := opts.Analyzer.GenerateBeatPositions(ctx, bpm, duration, offset, 1)
	if err != nil {
		beats = fallbackBeats(bpm, offset, duration)
	}

	mctx := &model.Context{
		SampleRate:     audio.SampleRate,
		Duration:       duration,
		Difficulty:     opts.Difficulty,
		Sections:       sections,
		Beats:          beats,
		Tempo:          tempoSegments,
		RawMixedOnsets: mixedRaw,
		Spectral:       spectral,
		RNGSeed:        opts.RNGSeed,
	}

	mctx.Features = features.Summarize(mctx, features.BandOnsets{Low: lowRaw, Mid: midRaw, High: highRaw})

	progress("onsets", 0.45)
	timeline := onset.Build(mctx, onset.BandStreams{Low: lowRaw, Mid: midRaw, High: highRaw}, mixedRaw)
	if len(timeline) == 0 || analyzerFailed {
		timeline = mixedRaw
		if len(timeline) == 0 {
			timeline = synthesizeFallbackOnsets(mctx)
		}
	}
	mctx.Onsets = timeline
	return mctx, nil
}

func toOnsetEvents(times, strengths []float64, band model.Band) []model.OnsetEvent {
	if len(times) == 0 {
		return nil
	}
	out := make([]model.OnsetEvent, len(times))
	for i, t := range times {
		s := 0.5
		if i < len(strengths) {
			s = strengths[i]
		}
		out[i] = model.OnsetEvent{Time: t, Strength: s, Band: band}
	}
	return out
}

func samplePointsFor(duration float64) []float64 {
	if duration <= 0 {
		return nil
	}
	const step = 0.25
	n := int(duration/step) + 1
	out := make([]float64, 0, n)
	for t := 0.0; t < duration; t += step {
		out = append(out, t)
	}
	return out
}

func fallbackBeats(bpm, offset, duration float64) []float64 {
	interval := 60.0 / bpm
	var out []float64
	for t := offset; t < duration; t += interval {
		out = append(out, t)
	}
	return out
}

// synthesizeFallbackOnsets produces a weak grid click at the context's
// beat interval (0.5 s, i.e. 120 BPM, when none is known) so downstream
// stages always have something to consume on silent or near-silent audio.
func synthesizeFallbackOnsets(mctx *model.Context) []model.OnsetEvent {
	interval := mctx.BeatInterval(0)
	if interval <= 0 {
		interval = 0.5
	}
	var out []model.OnsetEvent
	for t := 0.0; t < mctx.Duration; t += interval {
		out = append(out, model.OnsetEvent{Time: t, Strength: 0.4, Band: model.Low})
	}
	return out
}

func representativeBPM(mctx *model.Context) float64 {
	if len(mctx.Tempo) == 0 {
		return 120
	}
	var weighted, total float64
	for _, seg := range mctx.Tempo {
		d := seg.Duration()
		weighted += seg.BPM * d
		total += d
	}
	if total == 0 {
		return mctx.Tempo[0].BPM
	}
	return weighted / total
}

func chartStats(mctx *model.Context, notes []model.Note) theme.Stats {
	if mctx.Duration <= 0 || len(notes) == 0 {
		return theme.Stats{}
	}
	var strong int
	for _, n := range notes {
		if n.Strength >= 0.6 {
			strong++
		}
	}
	var energySum float64
	for _, s := range mctx.Sections {
		energySum += s.AvgEnergy
	}
	avgEnergy := 0.5
	if len(mctx.Sections) > 0 {
		avgEnergy = energySum / float64(len(mctx.Sections))
	}
	return theme.Stats{
		NPS:              float64(len(notes)) / mctx.Duration,
		StrongRatio:      float64(strong) / float64(len(notes)),
		AvgSectionEnergy: avgEnergy,
	}
}

// enforceCountBand is the Enforcers stage's final clamp: trims notes
// exceeding ⌈duration·hardClamp.max(difficulty)⌉ by dropping the weakest
// Taps first, and never drops below the emergency floor.
func enforceCountBand(mctx *model.Context, notes []model.Note, floor int) []model.Note {
	maxCount := int(math.Ceil(mctx.Duration * hardClampMax[mctx.Difficulty]))
	if maxCount <= 0 || len(notes) <= maxCount || maxCount < floor {
		return notes
	}

	kept := append([]model.Note{}, notes...)
	sort.SliceStable(kept, func(i, j int) bool {
		iTap, jTap := kept[i].Kind == model.Tap, kept[j].Kind == model.Tap
		if iTap != jTap {
			return iTap
		}
		return kept[i].Strength < kept[j].Strength
	})
	drop := len(kept) - maxCount
	if drop > len(kept) {
		drop = len(kept)
	}
	dropSet := make(map[model.Note]bool, drop)
	for i := 0; i < drop; i++ {
		dropSet[kept[i]] = true
	}
	out := make([]model.Note, 0, maxCount)
	for _, n := range notes {
		if dropSet[n] {
			dropSet[n] = false
			continue
		}
		out = append(out, n)
	}
	return out
}
