package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func TestProcessDominantBand(t *testing.T) {
	analyzer := NewAnalyzer(16000, 1024, DefaultBands())

	frame := analyzer.Process(sine(100, 16000, 1024), 1)
	assert.Equal(t, 0, frame.DominantBand, "100Hz tone should land in the low band")

	frame = analyzer.Process(sine(1000, 16000, 1024), 2)
	assert.Equal(t, 1, frame.DominantBand, "1kHz tone should land in the mid band")

	frame = analyzer.Process(sine(4000, 16000, 1024), 3)
	assert.Equal(t, 2, frame.DominantBand, "4kHz tone should land in the high band")
}

func TestProcessSilence(t *testing.T) {
	analyzer := NewAnalyzer(16000, 256, DefaultBands())
	frame := analyzer.Process(make([]float64, 256), 1)

	assert.Zero(t, frame.RMS)
	assert.False(t, frame.SpeechLike())
	for _, energy := range frame.BandNormalized {
		assert.Zero(t, energy)
	}
}

func TestToMonoAverage(t *testing.T) {
	mono := ToMono([]float32{1, 3, 2, 4}, 2, nil)
	require.Len(t, mono, 2)
	assert.InDelta(t, 2.0, mono[0], 1e-9)
	assert.InDelta(t, 3.0, mono[1], 1e-9)
}

func TestSmootherConverges(t *testing.T) {
	s := NewSmoother(0.5)
	assert.Equal(t, 1.0, s.Step(1))
	v := 0.0
	for range 20 {
		v = s.Step(0)
	}
	assert.Less(t, v, 1e-3)
}
