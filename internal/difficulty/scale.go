// Package difficulty implements the difficulty scaler: per-difficulty
// minimum spacing, strength floors, and lane-run culling, with
// ScaleProfile kept as a plain tuning struct in the style of
// internal/config's PerfHint.
package difficulty

import "github.com/basswave/chartgen/internal/model"

// ScaleProfile is the per-difficulty tuning.
type ScaleProfile struct {
	MinLaneGap      float64
	MinGlobalTapGap float64
	MinStrength     float64
	LaneRunLimit    int
	SimplifyLongs   bool
}

var profiles = map[model.Difficulty]ScaleProfile{
	model.Easy:   {MinLaneGap: 0.20, MinGlobalTapGap: 0.16, MinStrength: 0.30, LaneRunLimit: 2, SimplifyLongs: true},
	model.Normal: {MinLaneGap: 0.052, MinGlobalTapGap: 0.036, MinStrength: 0.06, LaneRunLimit: 5, SimplifyLongs: false},
	model.Hard:   {MinLaneGap: 0.03, MinGlobalTapGap: 0.024, MinStrength: 0.02, LaneRunLimit: 7, SimplifyLongs: false},
	model.Expert: {MinLaneGap: 0.019, MinGlobalTapGap: 0.015, MinStrength: 0.008, LaneRunLimit: 9, SimplifyLongs: false},
}

// Profile returns the ScaleProfile for d.
func Profile(d model.Difficulty) ScaleProfile {
	return profiles[d]
}

// Scale drops notes below the strength floor, enforces per-lane and
// global Tap gaps, optionally flattens long notes to Taps, and flips a
// Tap to the other lane (resetting its run counter) whenever a
// same-lane run would reach the per-difficulty limit.
func Scale(notes []model.Note, d model.Difficulty) []model.Note {
	p := profiles[d]
	sorted := append([]model.Note{}, notes...)

	kept := make([]model.Note, 0, len(sorted))
	for _, n := range sorted {
		if n.Strength < p.MinStrength {
			continue
		}
		kept = append(kept, n)
	}

	if p.SimplifyLongs {
		for i := range kept {
			if kept[i].IsLong() {
				kept[i].Kind = model.Tap
				kept[i].Duration = nil
				kept[i].TargetLane = nil
				kept[i].BurstHitsRequired = nil
			}
		}
	}

	lastByLane := map[model.Lane]float64{}
	haveLast := map[model.Lane]bool{}
	var lastGlobal float64
	haveGlobal := false
	out := make([]model.Note, 0, len(kept))
	laneRun := map[model.Lane]int{}

	for _, n := range kept {
		gap := p.MinLaneGap
		if n.IsLong() {
			gap *= 1.12
		}
		if haveLast[n.Lane] && n.Time-lastByLane[n.Lane] < gap {
			continue
		}
		if n.Kind == model.Tap && haveGlobal && n.Time-lastGlobal < p.MinGlobalTapGap {
			continue
		}

		if n.Kind == model.Tap {
			if laneRun[n.Lane]+1 >= p.LaneRunLimit {
				n.Lane = n.Lane.Opposite()
				laneRun[n.Lane] = 0
			}
			laneRun[n.Lane]++
			for other := range laneRun {
				if other != n.Lane {
					laneRun[other] = 0
				}
			}
		}

		out = append(out, n)
		lastByLane[n.Lane] = n.Time
		haveLast[n.Lane] = true
		lastGlobal = n.Time
		haveGlobal = true
	}
	return out
}
