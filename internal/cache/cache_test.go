package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basswave/chartgen/internal/model"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	assert.NoError(t, err)

	key := Key{Fingerprint: "abc123", Difficulty: model.Hard}
	chart := model.Chart{BPM: 128, Difficulty: model.Hard}
	s.Put(key, chart)

	got, ok := s.Get(key)
	assert.True(t, ok)
	assert.Equal(t, chart, got)
}

func TestStore_MissReturnsFalse(t *testing.T) {
	s, err := Open(t.TempDir())
	assert.NoError(t, err)
	_, ok := s.Get(Key{Fingerprint: "nope", Difficulty: model.Easy})
	assert.False(t, ok)
}

func TestStore_SaveThenReopenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	assert.NoError(t, err)

	key := Key{Fingerprint: "xyz", Difficulty: model.Expert}
	chart := model.Chart{BPM: 180, Difficulty: model.Expert}
	s.Put(key, chart)
	assert.NoError(t, s.Save())

	reopened, err := Open(dir)
	assert.NoError(t, err)
	got, ok := reopened.Get(key)
	assert.True(t, ok)
	assert.Equal(t, chart, got)
	assert.FileExists(t, filepath.Join(dir, "charts.json"))
}

func TestStore_Evict(t *testing.T) {
	s, err := Open(t.TempDir())
	assert.NoError(t, err)
	key := Key{Fingerprint: "e", Difficulty: model.Normal}
	s.Put(key, model.Chart{})
	assert.Equal(t, 1, s.Len())
	s.Evict(key)
	assert.Equal(t, 0, s.Len())
}

func TestFingerprint_SameAudioSameFingerprint(t *testing.T) {
	mono := make([]float64, 1000)
	for i := range mono {
		mono[i] = float64(i%7) / 7
	}
	a := Fingerprint(44100, 1000, 1, mono)
	b := Fingerprint(44100, 1000, 1, mono)
	assert.Equal(t, a, b)
}

func TestFingerprint_DifferentAudioDiffers(t *testing.T) {
	mono1 := make([]float64, 1000)
	mono2 := make([]float64, 1000)
	for i := range mono1 {
		mono1[i] = float64(i%7) / 7
		mono2[i] = float64(i%11) / 11
	}
	assert.NotEqual(t, Fingerprint(44100, 1000, 1, mono1), Fingerprint(44100, 1000, 1, mono2))
}
