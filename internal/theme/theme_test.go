package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func TestSelect_BassHeavyPercussiveTrackPicksNightCity(t *testing.T) {
	f := model.SongFeatures{BassWeight: 0.8, PercussiveFocus: 0.8, DynamicRange: 0.7, DriveScore: 0.8}
	stats := Stats{NPS: 8, StrongRatio: 0.6, AvgSectionEnergy: 0.8}
	assert.Equal(t, model.NightCity, Select(f, stats))
}

func TestSelect_CalmWarmTrackPicksSunset(t *testing.T) {
	f := model.SongFeatures{CalmConfidence: 0.9, MelodicFocus: 0.8, SustainedFocus: 0.8,
		SharpnessScore: 0.1, PercussiveFocus: 0.1, DriveScore: 0.1, BassWeight: 0.1, DynamicRange: 0.1}
	stats := Stats{NPS: 2, StrongRatio: 0.2, AvgSectionEnergy: 0.3}
	theme := Select(f, stats)
	assert.Contains(t, []model.VisualTheme{model.Sunset, model.Meadow}, theme)
}

func TestSelect_ConsistencyEnforcerOverridesSparseNightCity(t *testing.T) {
	f := model.SongFeatures{BassWeight: 0.6, PercussiveFocus: 0.65, DynamicRange: 0.55, DriveScore: 0.5}
	stats := Stats{NPS: 1, StrongRatio: 0.1, AvgSectionEnergy: 0.2}
	theme := Select(f, stats)
	assert.Equal(t, model.Sunset, theme)
}
