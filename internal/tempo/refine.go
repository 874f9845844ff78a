// Package tempo implements the tempo refiner: phase-offset search,
// BPM-grid selection, and adaptive tempo-segment construction, using an
// autocorrelation search style and binary-search grid helpers, with
// gonum/stat for medians.
package tempo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basswave/chartgen/internal/model"
)

// ErrNoData reports that refineBeatOffset had too few usable onsets.
type ErrNoData struct{}

func (ErrNoData) Error() string { return "tempo: insufficient onsets for phase refinement" }

// RefineBeatOffset searches 48 phase offsets across one beat interval and
// returns the offset minimizing weighted onset-to-grid distance. Falls back
// to initial mod interval (with ErrNoData) when fewer than 8 usable onsets
// (time>=0.25, strength>=0.25) are present.
func RefineBeatOffset(initial, bpm float64, onsets []model.OnsetEvent) (float64, error) {
	interval := 60.0 / bpm
	usable := make([]model.OnsetEvent, 0, len(onsets))
	for _, o := range onsets {
		if o.Time >= 0.25 && o.Strength >= 0.25 {
			usable = append(usable, o)
		}
	}
	if len(usable) < 8 {
		return math.Mod(initial, interval), ErrNoData{}
	}

	const steps = 48
	bestPhase := math.Mod(initial, interval)
	bestCost := math.Inf(1)
	for i := 0; i < steps; i++ {
		phase := interval * float64(i) / float64(steps)
		cost := 0.0
		for _, o := range usable {
			d1 := gridDistance(o.Time, phase, interval)
			d2 := gridDistance(o.Time, phase+interval/2, interval)
			cost += math.Min(d1, 1.15*d2) * (0.5 + o.Strength)
		}
		if cost < bestCost {
			bestCost = cost
			bestPhase = phase
		}
	}
	return bestPhase, nil
}

func gridDistance(t, phase, interval float64) float64 {
	d := math.Mod(t-phase, interval)
	if d < 0 {
		d += interval
	}
	if d > interval/2 {
		d = interval - d
	}
	return d
}

var ratios = []float64{0.5, 2.0 / 3.0, 0.75, 1, 1.25, 4.0 / 3.0, 1.5, 2}
var deltas = []float64{-0.06, -0.04, -0.02, -0.01, 0, 0.01, 0.02, 0.04, 0.06}

// BestTempoGrid evaluates bpm·r·(1+δ) candidates clipped to [60,200] and
// returns the (bpm, offset) pair minimizing weighted onset-to-grid distance
// plus a small penalty on drift from the base BPM.
func BestTempoGrid(baseBPM, offset float64, onsets []model.OnsetEvent) (bpm, bestOffset float64) {
	bestCost := math.Inf(1)
	bpm = baseBPM
	bestOffset = offset
	for _, r := range ratios {
		for _, d := range deltas {
			cand := baseBPM * r * (1 + d)
			if cand < 60 || cand > 200 {
				continue
			}
			candOffset, err := RefineBeatOffset(offset, cand, onsets)
			if _, ok := err.(ErrNoData); ok {
				candOffset = offset
			}
			cost := weightedDistance(onsets, cand, candOffset) + 0.0007*math.Abs(cand-baseBPM)
			if cost < bestCost {
				bestCost = cost
				bpm = cand
				bestOffset = candOffset
			}
		}
	}
	return bpm, bestOffset
}

func weightedDistance(onsets []model.OnsetEvent, bpm, offset float64) float64 {
	interval := 60.0 / bpm
	total := 0.0
	for _, o := range onsets {
		total += gridDistance(o.Time, offset, interval) * (0.5 + o.Strength)
	}
	return total
}

// BuildAdaptiveTempoSegments slides a 14s window (the whole track when
// shorter) every half-window over [0, duration], estimating local BPM from
// the median inter-onset interval of strong-enough onsets, normalized
// against the previous segment to avoid octave flips, then smooths the
// sequence with a 1-2-1 kernel. The segments are contiguous: each ends
// where the next window starts, and the last ends at duration.
func BuildAdaptiveTempoSegments(onsets []model.OnsetEvent, baseBPM, duration float64) []model.TempoSegment {
	if duration <= 0 {
		return nil
	}
	windowLen := 14.0
	if duration < windowLen {
		windowLen = duration
	}
	step := windowLen / 2
	if step <= 0 {
		step = duration
	}

	sorted := append([]model.OnsetEvent{}, onsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	type window struct{ start, end, bpm float64 }
	var windows []window
	prevBPM := baseBPM
	for start := 0.0; start < duration; start += step {
		end := math.Min(start+windowLen, duration)
		var inWindow []model.OnsetEvent
		for _, o := range sorted {
			if o.Time >= start && o.Time < end {
				inWindow = append(inWindow, o)
			}
		}
		bpm := prevBPM
		if strong := strongOnsets(inWindow); len(strong) >= 2 {
			iois := interOnsetIntervals(strong)
			med := median(iois)
			if med > 0 {
				cand := 60.0 / med
				bpm = normalizeOctave(cand, prevBPM)
			}
		}
		maxDrift := math.Max(7, 0.16*prevBPM)
		if bpm > prevBPM+maxDrift {
			bpm = prevBPM + maxDrift
		} else if bpm < prevBPM-maxDrift {
			bpm = prevBPM - maxDrift
		}
		windows = append(windows, window{start: start, end: end, bpm: bpm})
		prevBPM = bpm
		if end >= duration {
			break
		}
	}
	if len(windows) == 0 {
		return []model.TempoSegment{{Start: 0, End: duration, BPM: baseBPM, Confidence: 0.3}}
	}

	smoothed := make([]float64, len(windows))
	for i := range windows {
		lo := windows[i].bpm
		if i > 0 {
			lo = windows[i-1].bpm
		}
		hi := windows[i].bpm
		if i < len(windows)-1 {
			hi = windows[i+1].bpm
		}
		smoothed[i] = 0.25*lo + 0.5*windows[i].bpm + 0.25*hi
	}

	segs := make([]model.TempoSegment, len(windows))
	for i, w := range windows {
		end := w.end
		if i+1 < len(windows) {
			end = windows[i+1].start
		}
		segs[i] = model.TempoSegment{Start: w.start, End: end, BPM: smoothed[i], Confidence: 0.7}
	}
	segs[len(segs)-1].End = duration
	return segs
}

func strongOnsets(onsets []model.OnsetEvent) []model.OnsetEvent {
	if len(onsets) == 0 {
		return nil
	}
	strengths := make([]float64, len(onsets))
	for i, o := range onsets {
		strengths[i] = o.Strength
	}
	med := median(strengths)
	out := make([]model.OnsetEvent, 0, len(onsets))
	for _, o := range onsets {
		if o.Strength >= med {
			out = append(out, o)
		}
	}
	return out
}

func interOnsetIntervals(onsets []model.OnsetEvent) []float64 {
	sorted := append([]model.OnsetEvent{}, onsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	if len(sorted) < 2 {
		return nil
	}
	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].Time - sorted[i-1].Time
		if d > 0.05 {
			out = append(out, d)
		}
	}
	return out
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// normalizeOctave folds cand toward the nearest power-of-two multiple of
// prev so tempo estimates don't flip to half or double time between
// windows.
func normalizeOctave(cand, prev float64) float64 {
	if prev <= 0 {
		return cand
	}
	best := cand
	bestDist := math.Abs(cand - prev)
	for _, mult := range []float64{0.25, 0.5, 1, 2, 4} {
		c := cand * mult
		if c < 60 || c > 200 {
			continue
		}
		if d := math.Abs(c - prev); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
