package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/cybre/lumen-companion/internal/utils"
)

// NumBands is the fixed number of frequency buckets in an AudioFrame.
const NumBands = 3

// FrequencyBand represents an inclusive frequency span in Hz used for energy bucketing.
type FrequencyBand struct {
	Low  float64
	High float64
}

// DefaultBands covers the low/mid/high groupings that the chant patterns and
// beat detector care about.
func DefaultBands() [NumBands]FrequencyBand {
	return [NumBands]FrequencyBand{
		{Low: 20, High: 250},
		{Low: 250, High: 2000},
		{Low: 2000, High: 8000},
	}
}

// AudioFrame is one analysis window of microphone energy, bucketed per band.
// Frames are ephemeral; downstream stages keep only what they derive from them.
type AudioFrame struct {
	Tick             uint64
	BandEnergies     [NumBands]float64
	BandNormalized   [NumBands]float64
	TotalEnergy      float64
	RMS              float64
	ZeroCrossingRate float64
	DominantBand     int
}

// SpeechLike reports whether the frame plausibly contains voiced sound rather
// than a pure tone or silence. Shouted chant words land in a characteristic
// zero-crossing band.
func (f AudioFrame) SpeechLike() bool {
	if f.RMS < 1e-4 {
		return false
	}
	return f.ZeroCrossingRate >= 0.02 && f.ZeroCrossingRate <= 0.45
}

// Analyzer transforms mono sample windows into AudioFrames. It reuses scratch
// buffers to keep allocations predictable inside the tick loop.
type Analyzer struct {
	sampleRate    float64
	frameSize     int
	bands         [NumBands]FrequencyBand
	window        []float64
	windowedFrame []float64
	magnitudes    []float64
	binWidth      float64
}

// NewAnalyzer constructs an Analyzer for a given sample rate/frame size.
func NewAnalyzer(sampleRate float64, frameSize int, bands [NumBands]FrequencyBand) *Analyzer {
	if frameSize <= 0 {
		panic("dsp: frameSize must be > 0")
	}
	if sampleRate <= 0 {
		panic("dsp: sampleRate must be > 0")
	}

	var bandCopy [NumBands]FrequencyBand
	empty := true
	for _, b := range bands {
		if b.Low != 0 || b.High != 0 {
			empty = false
			break
		}
	}
	if empty {
		bandCopy = DefaultBands()
	} else {
		bandCopy = bands
	}

	return &Analyzer{
		sampleRate:    sampleRate,
		frameSize:     frameSize,
		bands:         bandCopy,
		window:        HannWindow(frameSize),
		windowedFrame: make([]float64, frameSize),
		magnitudes:    make([]float64, frameSize/2+1),
		binWidth:      sampleRate / float64(frameSize),
	}
}

// Process computes an AudioFrame for the supplied mono window. The window
// length must match the configured frame size.
func (a *Analyzer) Process(samples []float64, tick uint64) AudioFrame {
	if len(samples) != a.frameSize {
		panic("dsp: frame length mismatch")
	}

	copy(a.windowedFrame, samples)
	ApplyWindowInPlace(a.windowedFrame, a.window)

	spectrum := fft.FFTReal(a.windowedFrame)
	half := len(spectrum)/2 + 1
	if len(a.magnitudes) != half {
		a.magnitudes = make([]float64, half)
	}

	var totalEnergy float64
	for i := range half {
		mag := cmplx.Abs(spectrum[i])
		a.magnitudes[i] = mag
		totalEnergy += mag * mag
	}

	frame := AudioFrame{
		Tick:             tick,
		TotalEnergy:      totalEnergy,
		RMS:              RootMeanSquare(samples),
		ZeroCrossingRate: ZeroCrossingRate(samples),
	}

	var dominant float64
	for i, band := range a.bands {
		energy := a.bandEnergy(band)
		frame.BandEnergies[i] = energy
		if totalEnergy > 1e-9 {
			frame.BandNormalized[i] = utils.Clamp(energy/totalEnergy, 0.0, 1.0)
		}
		if energy > dominant {
			dominant = energy
			frame.DominantBand = i
		}
	}

	return frame
}

func (a *Analyzer) bandEnergy(band FrequencyBand) float64 {
	lower := max(band.Low, 0)
	upper := math.Max(band.High, lower)
	start := utils.ClampIndex(int(math.Floor(lower/a.binWidth)), len(a.magnitudes))
	end := utils.ClampIndex(int(math.Ceil(upper/a.binWidth)), len(a.magnitudes))

	var total float64
	for bin := start; bin <= end; bin++ {
		mag := a.magnitudes[bin]
		total += mag * mag
	}
	return total
}

// RootMeanSquare computes the RMS value of a window.
func RootMeanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range samples {
		sumSquares += sample * sample
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// ZeroCrossingRate returns the fraction of sign changes across consecutive samples.
func ZeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var crossings int
	prev := samples[0]
	for i := 1; i < len(samples); i++ {
		curr := samples[i]
		if (prev >= 0 && curr < 0) || (prev < 0 && curr >= 0) {
			crossings++
		}
		prev = curr
	}
	return float64(crossings) / float64(len(samples)-1)
}

// ToMono averages interleaved multi-channel data into a mono window.
func ToMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	if frameLen == 0 {
		return dst
	}
	idx := 0
	for i := range frameLen {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}

// HannWindow returns a precomputed Hann window for the requested size.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := range n {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}

// ApplyWindowInPlace multiplies samples by a window function in-place.
func ApplyWindowInPlace(samples []float64, window []float64) {
	switch {
	case len(samples) == 0:
		return
	case len(samples) != len(window):
		panic("dsp: window length mismatch")
	}
	for i := range samples {
		samples[i] *= window[i]
	}
}

// Smoother implements a simple exponential moving average.
type Smoother struct {
	alpha       float64
	initialized bool
	value       float64
}

// NewSmoother constructs a Smoother using the supplied alpha (0..1).
// Smaller values produce heavier smoothing.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: utils.Clamp(alpha, 0.0, 1.0)}
}

// Step updates the internal state and returns the smoothed value.
func (s *Smoother) Step(v float64) float64 {
	if !s.initialized {
		s.value = v
		s.initialized = true
		return v
	}
	s.value += s.alpha * (v - s.value)
	return s.value
}

// Value returns the current smoothed value without updating it.
func (s *Smoother) Value() float64 {
	return s.value
}
