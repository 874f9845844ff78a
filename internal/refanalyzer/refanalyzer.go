// Package refanalyzer is a reference implementation of the external
// collaborator interfaces, so the core pipeline is runnable without a
// host-supplied analyzer. It uses a Hanning-windowed
// gonum.org/v1/gonum/dsp/fourier FFT with a log-banded magnitude
// spectrum and spectral-flux band energy splits, structured as an
// offline batch analyzer rather than a real-time streaming one.
package refanalyzer

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	chartgen "github.com/basswave/chartgen"
	"github.com/basswave/chartgen/internal/model"
)

const defaultFFTSize = 2048

// Analyzer is the gonum-backed reference implementation.
type Analyzer struct{}

// New returns a ready-to-use reference Analyzer.
func New() *Analyzer { return &Analyzer{} }

func hanning(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func magnitudes(fft *fourier.FFT, windowed []float64) []float64 {
	coeffs := fft.Coefficients(nil, windowed)
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = math.Hypot(real(c), imag(c))
	}
	return out
}

// bandEnergies splits a magnitude spectrum into low/mid/high energy using
// a log-frequency banding style, at a coarse 3-band resolution.
func bandEnergies(mags []float64, sampleRate, fftSize int) (low, mid, high float64) {
	freqPerBin := float64(sampleRate) / float64(fftSize)
	nyquist := fftSize / 2
	for bin := 1; bin < nyquist && bin < len(mags); bin++ {
		freq := float64(bin) * freqPerBin
		e := mags[bin] * mags[bin]
		switch {
		case freq < 250:
			low += e
		case freq < 2000:
			mid += e
		default:
			high += e
		}
	}
	return low, mid, high
}

// DetectBPM estimates BPM via autocorrelation of the raw frame-energy
// envelope (512-sample hops, lags spanning 60-200 BPM).
func (a *Analyzer) DetectBPM(ctx context.Context, audio chartgen.AudioBuffer) (chartgen.BPMEstimate, error) {
	mono := audio.Mono()
	if len(mono) == 0 {
		return chartgen.BPMEstimate{BPM: 120, FirstBeatOffset: 0}, nil
	}
	hop := 512
	frameEnergies := frameEnergy(mono, hop)
	if len(frameEnergies) < 8 {
		return chartgen.BPMEstimate{BPM: 120, FirstBeatOffset: 0}, nil
	}
	frameRate := float64(audio.SampleRate) / float64(hop)

	bestBPM := 120.0
	bestScore := -math.MaxFloat64
	minLag := int(frameRate * 60 / 200)
	maxLag := int(frameRate * 60 / 60)
	for lag := minLag; lag <= maxLag && lag < len(frameEnergies); lag++ {
		score := autocorrelationAt(frameEnergies, lag)
		if score > bestScore {
			bestScore = score
			bestBPM = frameRate * 60 / float64(lag)
		}
	}
	offset := firstStrongFrame(frameEnergies) / frameRate
	return chartgen.BPMEstimate{BPM: clampBPM(bestBPM), FirstBeatOffset: offset}, nil
}

func frameEnergy(mono []float64, hop int) []float64 {
	var out []float64
	for i := 0; i+hop <= len(mono); i += hop {
		var sum float64
		for _, s := range mono[i : i+hop] {
			sum += s * s
		}
		out = append(out, sum)
	}
	return out
}

func autocorrelationAt(xs []float64, lag int) float64 {
	var sum float64
	n := 0
	for i := 0; i+lag < len(xs); i++ {
		sum += xs[i] * xs[i+lag]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func firstStrongFrame(energies []float64) float64 {
	max := 0.0
	for _, e := range energies {
		if e > max {
			max = e
		}
	}
	threshold := max * 0.3
	for i, e := range energies {
		if e >= threshold {
			return float64(i)
		}
	}
	return 0
}

func clampBPM(bpm float64) float64 {
	if bpm < 60 {
		return 60
	}
	if bpm > 200 {
		return 200
	}
	return bpm
}

// GenerateBeatPositions lays out beats at 60/bpm spacing from offset to
// duration, optionally subdividing each beat interval.
func (a *Analyzer) GenerateBeatPositions(ctx context.Context, bpm, duration, offset float64, subdivisions int) ([]float64, error) {
	if subdivisions < 1 {
		subdivisions = 1
	}
	interval := 60.0 / bpm / float64(subdivisions)
	var out []float64
	for t := offset; t < duration; t += interval {
		out = append(out, t)
	}
	return out, nil
}

// ComputeOnsetFlux runs a hop-sized STFT and emits per-band spectral flux
// (positive magnitude increase between consecutive frames) plus per-band
// energy, the input to DetectOnsetsFromFlux.
func (a *Analyzer) ComputeOnsetFlux(ctx context.Context, audio chartgen.AudioBuffer, opts chartgen.FluxOptions) (chartgen.OnsetFluxProfile, error) {
	mono := audio.Mono()
	fftSize := opts.FFTSize
	if fftSize <= 0 {
		fftSize = defaultFFTSize
	}
	hop := opts.HopSize
	if hop <= 0 {
		hop = fftSize / 4
	}
	start := 0
	if opts.StartSec != nil {
		start = int(*opts.StartSec * float64(audio.SampleRate))
	}
	end := len(mono)
	if opts.DurationSec != nil {
		end = start + int(*opts.DurationSec*float64(audio.SampleRate))
		if end > len(mono) {
			end = len(mono)
		}
	}
	if start >= end {
		return chartgen.OnsetFluxProfile{Framerate: float64(audio.SampleRate) / float64(hop)}, nil
	}

	window := hanning(fftSize)
	fft := fourier.NewFFT(fftSize)

	var lowFlux, midFlux, highFlux, lowEnergy, midEnergy, highEnergy []float64
	var prevMags []float64

	for i := start; i+fftSize <= end; i += hop {
		windowed := make([]float64, fftSize)
		for j := 0; j < fftSize; j++ {
			windowed[j] = mono[i+j] * window[j]
		}
		mags := magnitudes(fft, windowed)
		low, mid, high := bandEnergies(mags, audio.SampleRate, fftSize)
		lowEnergy = append(lowEnergy, low)
		midEnergy = append(midEnergy, mid)
		highEnergy = append(highEnergy, high)

		if prevMags != nil {
			lf, mf, hf := fluxBands(prevMags, mags, audio.SampleRate, fftSize)
			lowFlux = append(lowFlux, lf)
			midFlux = append(midFlux, mf)
			highFlux = append(highFlux, hf)
		} else {
			lowFlux = append(lowFlux, 0)
			midFlux = append(midFlux, 0)
			highFlux = append(highFlux, 0)
		}
		prevMags = mags
	}

	return chartgen.OnsetFluxProfile{
		LowFlux: lowFlux, MidFlux: midFlux, HighFlux: highFlux,
		LowEnergy: lowEnergy, MidEnergy: midEnergy, HighEnergy: highEnergy,
		Framerate:    float64(audio.SampleRate) / float64(hop),
		StartTimeSec: float64(start) / float64(audio.SampleRate),
	}, nil
}

func fluxBands(prev, cur []float64, sampleRate, fftSize int) (low, mid, high float64) {
	freqPerBin := float64(sampleRate) / float64(fftSize)
	nyquist := fftSize / 2
	n := nyquist
	if n > len(cur) {
		n = len(cur)
	}
	for bin := 1; bin < n; bin++ {
		d := cur[bin] - prev[bin]
		if d < 0 {
			continue
		}
		freq := float64(bin) * freqPerBin
		switch {
		case freq < 250:
			low += d
		case freq < 2000:
			mid += d
		default:
			high += d
		}
	}
	return low, mid, high
}

// DetectOnsetsFromFlux picks peaks in each band's flux curve above a
// sensitivity-scaled adaptive threshold.
func (a *Analyzer) DetectOnsetsFromFlux(ctx context.Context, flux chartgen.OnsetFluxProfile, sensitivity float64) (chartgen.OnsetResult, error) {
	if sensitivity <= 0 {
		sensitivity = 1.0
	}
	lowT, lowS := pickPeaks(flux.LowFlux, flux.Framerate, flux.StartTimeSec, sensitivity)
	midT, midS := pickPeaks(flux.MidFlux, flux.Framerate, flux.StartTimeSec, sensitivity)
	highT, highS := pickPeaks(flux.HighFlux, flux.Framerate, flux.StartTimeSec, sensitivity)

	all := append(append(append([]float64{}, lowT...), midT...), highT...)
	allS := append(append(append([]float64{}, lowS...), midS...), highS...)
	order := argsort(all)
	sortedAll := make([]float64, len(all))
	sortedS := make([]float64, len(all))
	for i, idx := range order {
		sortedAll[i] = all[idx]
		sortedS[i] = allS[idx]
	}

	return chartgen.OnsetResult{
		Onsets: sortedAll, Strengths: sortedS,
		LowOnsets: lowT, LowStrengths: lowS,
		MidOnsets: midT, MidStrengths: midS,
		HighOnsets: highT, HighStrengths: highS,
	}, nil
}

func argsort(xs []float64) []int {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return xs[idx[i]] < xs[idx[j]] })
	return idx
}

func pickPeaks(flux []float64, framerate, startTime, sensitivity float64) (times, strengths []float64) {
	if len(flux) < 3 {
		return nil, nil
	}
	mean, sd := meanStd(flux)
	threshold := mean + sd*(1.4/sensitivity)
	for i := 1; i < len(flux)-1; i++ {
		if flux[i] > threshold && flux[i] >= flux[i-1] && flux[i] >= flux[i+1] {
			t := startTime + float64(i)/framerate
			strength := model.Clamp01((flux[i] - mean) / (sd*4 + 1e-9))
			times = append(times, t)
			strengths = append(strengths, strength)
		}
	}
	return times, strengths
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	std = math.Sqrt(std / float64(len(xs)))
	return mean, std
}

// QuantizeOnsets snaps each time to its nearest grid point.
func (a *Analyzer) QuantizeOnsets(ctx context.Context, times []float64, grid []float64) ([]float64, error) {
	if len(grid) == 0 {
		return times, nil
	}
	sortedGrid := append([]float64{}, grid...)
	sort.Float64s(sortedGrid)
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = nearest(sortedGrid, t)
	}
	return out, nil
}

func nearest(sorted []float64, t float64) float64 {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		if sorted[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return sorted[0]
	}
	if lo == len(sorted) {
		return sorted[len(sorted)-1]
	}
	if t-sorted[lo-1] <= sorted[lo]-t {
		return sorted[lo-1]
	}
	return sorted[lo]
}

// AnalyzeSpectralProfiles samples a windowed FFT at each requested point
// and derives the eight SpectralProfile scalars from band energy ratios,
// a spectral-flux transient proxy against the previous sample point, and
// a harmonic-vs-noise tonal proxy.
func (a *Analyzer) AnalyzeSpectralProfiles(ctx context.Context, audio chartgen.AudioBuffer, samplePoints []float64, opts chartgen.SpectralOptions) ([]model.SpectralProfile, error) {
	mono := audio.Mono()
	fftSize := opts.FFTSize
	if fftSize <= 0 {
		fftSize = defaultFFTSize
	}
	window := hanning(fftSize)
	fft := fourier.NewFFT(fftSize)

	out := make([]model.SpectralProfile, 0, len(samplePoints))
	var prevMags []float64
	for _, t := range samplePoints {
		center := int(t * float64(audio.SampleRate))
		start := center - fftSize/2
		windowed := make([]float64, fftSize)
		for j := 0; j < fftSize; j++ {
			idx := start + j
			if idx >= 0 && idx < len(mono) {
				windowed[j] = mono[idx] * window[j]
			}
		}
		mags := magnitudes(fft, windowed)
		low, mid, high := bandEnergies(mags, audio.SampleRate, fftSize)
		total := low + mid + high
		if total == 0 {
			total = 1
		}
		brightness := (mid + high) / total
		energy := math.Sqrt(total) / float64(fftSize)

		var transient float64
		if prevMags != nil {
			var delta, base float64
			for i := range mags {
				d := mags[i] - prevMags[i]
				if d > 0 {
					delta += d
				}
				base += prevMags[i]
			}
			if base > 0 {
				transient = model.Clamp01(delta / base)
			}
		}
		tonal := spectralFlatnessComplement(mags)
		percussive := model.Clamp01(0.6*transient + 0.4*(1-tonal))

		out = append(out, model.SpectralProfile{
			Time: t, Low: low / total, Mid: mid / total, High: high / total,
			Energy: model.Clamp01(energy), Brightness: model.Clamp01(brightness),
			Transient: transient, Tonal: tonal, Percussive: percussive,
		})
		prevMags = mags
	}
	return out, nil
}

// spectralFlatnessComplement returns 1-flatness, high for tonal/harmonic
// spectra and low for noisy/percussive ones.
func spectralFlatnessComplement(mags []float64) float64 {
	n := 0
	var logSum, sum float64
	for _, m := range mags {
		if m <= 1e-9 {
			continue
		}
		logSum += math.Log(m)
		sum += m
		n++
	}
	if n == 0 || sum == 0 {
		return 0.5
	}
	geoMean := math.Exp(logSum / float64(n))
	arithMean := sum / float64(n)
	flatness := geoMean / arithMean
	return model.Clamp01(1 - flatness)
}

// DetectSections segments the track by coarse energy envelope changes,
// labeling runs as Intro/Verse/Chorus/Drop/Outro by relative energy level.
func (a *Analyzer) DetectSections(ctx context.Context, audio chartgen.AudioBuffer) ([]model.Section, error) {
	mono := audio.Mono()
	if len(mono) == 0 {
		return nil, nil
	}
	duration := float64(len(mono)) / float64(audio.SampleRate)
	windowSec := 4.0
	hop := int(windowSec * float64(audio.SampleRate))
	var energies []float64
	for i := 0; i < len(mono); i += hop {
		end := i + hop
		if end > len(mono) {
			end = len(mono)
		}
		var sum float64
		for _, s := range mono[i:end] {
			sum += s * s
		}
		energies = append(energies, sum/float64(end-i))
	}
	if len(energies) == 0 {
		return []model.Section{{Start: 0, End: duration, Kind: model.Verse, AvgEnergy: 0.5}}, nil
	}

	mean, std := meanStd(energies)
	kindFor := func(e float64) model.SectionKind {
		norm := (e - mean) / (std + 1e-9)
		switch {
		case norm > 1.2:
			return model.Drop
		case norm > 0.4:
			return model.Chorus
		case norm > -0.4:
			return model.Verse
		default:
			return model.Intro
		}
	}

	var sections []model.Section
	curKind := kindFor(energies[0])
	curStart := 0.0
	curEnergies := []float64{energies[0]}
	for i := 1; i < len(energies); i++ {
		k := kindFor(energies[i])
		t := float64(i) * windowSec
		if k != curKind {
			sections = append(sections, model.Section{
				Start: curStart, End: t, Kind: curKind, AvgEnergy: model.Clamp01(avg(curEnergies) / (mean*2 + 1e-9)),
			})
			curKind = k
			curStart = t
			curEnergies = nil
		}
		curEnergies = append(curEnergies, energies[i])
	}
	sections = append(sections, model.Section{
		Start: curStart, End: duration, Kind: curKind, AvgEnergy: model.Clamp01(avg(curEnergies) / (mean*2 + 1e-9)),
	})
	if sections[0].Kind != model.Intro {
		sections[0].Kind = model.Intro
	}
	if sections[len(sections)-1].Kind != model.Outro {
		sections[len(sections)-1].Kind = model.Outro
	}
	return sections, nil
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
