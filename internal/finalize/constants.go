package finalize

import "github.com/basswave/chartgen/internal/model"

// Host-defined long-note minima; the core additionally clamps to
// 0.62·beat (Hold) / 0.78·beat (Slide) on top of these.
const (
	MinHoldDurationSec  = 0.45
	MinSlideDurationSec = 0.35
)

var longRatioCap = map[model.Difficulty]float64{
	model.Easy: 0.22, model.Normal: 0.28, model.Hard: 0.34, model.Expert: 0.40,
}
