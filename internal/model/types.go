// Package model holds the fixed-arity value types shared across every pass
// of the chart composition pipeline: notes, charts, sections, tempo, and the
// song-feature scalars. Nothing here owns behavior beyond small accessors —
// the passes in the sibling internal/ packages are where the logic lives.
package model

import "fmt"

// Lane is the playfield row a note occupies.
type Lane int

const (
	Top Lane = iota
	Bottom
)

func (l Lane) String() string {
	if l == Top {
		return "Top"
	}
	return "Bottom"
}

// Opposite returns the other lane.
func (l Lane) Opposite() Lane {
	if l == Top {
		return Bottom
	}
	return Top
}

// NoteKind is the playable shape of a note.
type NoteKind int

const (
	Tap NoteKind = iota
	Hold
	Slide
	Burst
)

func (k NoteKind) String() string {
	switch k {
	case Tap:
		return "Tap"
	case Hold:
		return "Hold"
	case Slide:
		return "Slide"
	case Burst:
		return "Burst"
	default:
		return "Unknown"
	}
}

// Priority orders kinds for the same-lane, too-close-in-time tie-break:
// Burst > Slide > Hold > Tap.
func (k NoteKind) Priority() int {
	switch k {
	case Burst:
		return 3
	case Slide:
		return 2
	case Hold:
		return 1
	default:
		return 0
	}
}

// Difficulty is the chart's target skill tier.
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
	Expert
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "Easy"
	case Normal:
		return "Normal"
	case Hard:
		return "Hard"
	case Expert:
		return "Expert"
	default:
		return "Unknown"
	}
}

// SectionKind is the coarse structural role of a Section.
type SectionKind int

const (
	Intro SectionKind = iota
	Verse
	Chorus
	Bridge
	Drop
	Outro
	Interlude
)

func (k SectionKind) String() string {
	switch k {
	case Intro:
		return "Intro"
	case Verse:
		return "Verse"
	case Chorus:
		return "Chorus"
	case Bridge:
		return "Bridge"
	case Drop:
		return "Drop"
	case Outro:
		return "Outro"
	case Interlude:
		return "Interlude"
	default:
		return "Unknown"
	}
}

// Silent reports whether the section is excluded from the "playable"
// set (Intro, Outro, Interlude).
func (k SectionKind) Silent() bool {
	return k == Intro || k == Outro || k == Interlude
}

// VisualTheme is the coarse visual hint chosen by the theme selector.
type VisualTheme int

const (
	Meadow VisualTheme = iota
	Sunset
	NightCity
)

func (t VisualTheme) String() string {
	switch t {
	case Meadow:
		return "Meadow"
	case Sunset:
		return "Sunset"
	case NightCity:
		return "NightCity"
	default:
		return "Unknown"
	}
}

// Band is the frequency class an onset or spectral observation belongs to.
type Band int

const (
	Low Band = iota
	Mid
	High
	Mixed
)

func (b Band) String() string {
	switch b {
	case Low:
		return "Low"
	case Mid:
		return "Mid"
	case High:
		return "High"
	case Mixed:
		return "Mixed"
	default:
		return "Unknown"
	}
}

// Note is a single playable event on the chart. Duration is non-nil iff
// Kind is Hold, Slide, or Burst; TargetLane is non-nil only for Slide;
// BurstHitsRequired is non-nil only for Burst. Notes are immutable once
// emitted — every pass that wants to change one builds a new value.
type Note struct {
	Time              float64
	Lane              Lane
	Kind              NoteKind
	Strength          float64
	Duration          *float64
	TargetLane        *Lane
	BurstHitsRequired *int
}

// End returns Time+Duration for long notes, or Time for instantaneous taps.
func (n Note) End() float64 {
	if n.Duration == nil {
		return n.Time
	}
	return n.Time + *n.Duration
}

// IsLong reports whether the note occupies a time span rather than an instant.
func (n Note) IsLong() bool {
	return n.Kind == Hold || n.Kind == Slide || n.Kind == Burst
}

// OccupiesLane reports whether the note's body covers lane l. A straight
// Slide (TargetLane == Lane) occupies only its own lane; a diagonal Slide
// occupies both lanes across its duration via the baton-window invariant
// handled in internal/finalize, not here.
func (n Note) OccupiesLane(l Lane) bool {
	if n.Lane == l {
		return true
	}
	if n.Kind == Slide && n.TargetLane != nil && *n.TargetLane == l {
		return true
	}
	return false
}

func (n Note) String() string {
	return fmt.Sprintf("%s@%.3f[%s]", n.Kind, n.Time, n.Lane)
}

// Section is a non-overlapping structural segment of the song.
type Section struct {
	Start     float64
	End       float64
	Kind      SectionKind
	AvgEnergy float64
}

// Duration returns End-Start.
func (s Section) Duration() float64 { return s.End - s.Start }

// Contains reports whether t falls within [Start, End).
func (s Section) Contains(t float64) bool { return t >= s.Start && t < s.End }

// TempoSegment is a piecewise-constant tempo region.
type TempoSegment struct {
	Start      float64
	End        float64
	BPM        float64
	Confidence float64
}

// BeatInterval returns the seconds-per-beat for this segment's BPM.
func (t TempoSegment) BeatInterval() float64 { return 60.0 / t.BPM }

// OnsetEvent is a detected note-start candidate, internal to the onset
// timeline builder and consumed by the beat mapper.
type OnsetEvent struct {
	Time     float64
	Strength float64
	Band     Band
}

// SpectralProfile is a single short-time spectral sample, supplied by
// the external analyzer collaborator.
type SpectralProfile struct {
	Time       float64
	Low        float64
	Mid        float64
	High       float64
	Energy     float64
	Brightness float64
	Transient  float64
	Tonal      float64
	Percussive float64
}

// SongFeatures are the ten [0,1] song-level scalars the feature
// summarizer produces.
type SongFeatures struct {
	PercussiveFocus float64
	MelodicFocus    float64
	BassWeight      float64
	DriveScore      float64
	SlideAffinity   float64
	SustainedFocus  float64
	CalmConfidence  float64
	IntroQuietness  float64
	DynamicRange    float64
	SharpnessScore  float64
}

// BandWeights is a normalized (Low, Mid, High) triple summing to 1, each
// weight at least 0.05, keyed by SectionKind.
type BandWeights struct {
	Low  float64
	Mid  float64
	High float64
}

// Clamp01 restricts x to [0,1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Chart is the final ordered product of the pipeline.
type Chart struct {
	BPM         float64
	Duration    float64
	Difficulty  Difficulty
	VisualTheme VisualTheme
	Notes       []Note
	Sections    []Section
	BeatPositions []float64
	TotalNotes  int
}
