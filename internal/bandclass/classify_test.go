package bandclass

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func TestPreferredLane_LowAndHighAreStrictAnchors(t *testing.T) {
	lane, anchor := PreferredLane(model.Low, 0.5, 0.5, model.Top)
	assert.Equal(t, model.Bottom, lane)
	assert.True(t, anchor)

	lane, anchor = PreferredLane(model.High, 0.5, 0.5, model.Bottom)
	assert.Equal(t, model.Top, lane)
	assert.True(t, anchor)
}

func TestPreferredLane_MidFollowsShareImbalance(t *testing.T) {
	lane, anchor := PreferredLane(model.Mid, 0.7, 0.1, model.Bottom)
	assert.Equal(t, model.Top, lane)
	assert.False(t, anchor)

	lane, _ = PreferredLane(model.Mid, 0.1, 0.7, model.Top)
	assert.Equal(t, model.Bottom, lane)
}

func TestPreferredLane_MidAlternatesWhenBalanced(t *testing.T) {
	lane, _ := PreferredLane(model.Mid, 0.5, 0.5, model.Top)
	assert.Equal(t, model.Bottom, lane)
}

func TestSustainedLike_TrueForPadLikeProfile(t *testing.T) {
	sp := model.SpectralProfile{Tonal: 0.9, Transient: 0.1, Percussive: 0.2}
	assert.True(t, SustainedLike(sp, 0.4, 0.7))
}

func TestStaccatoLike_TrueForSharpHit(t *testing.T) {
	sp := model.SpectralProfile{Transient: 0.8, Percussive: 0.2}
	assert.True(t, StaccatoLike(sp, 0.3))
}
