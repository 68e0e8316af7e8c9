package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicSourceKeepsNewestBlocksWhenBehind(t *testing.T) {
	src := &micSource{blocks: make(chan []float64, 2)}

	first := []float64{1}
	second := []float64{2}
	third := []float64{3}

	src.push(first)
	src.push(second)
	src.push(third) // queue full: first is evicted, third takes its place

	assert.Equal(t, second, src.Frame())
	assert.Equal(t, third, src.Frame())
	assert.Nil(t, src.Frame())
}

func TestSimulatedAudioSourceIsPeriodic(t *testing.T) {
	cfg := runtimeConfig{TickRate: 60, SampleRate: 16000, FrameSize: 256}
	src := newSimulatedAudioSource(cfg, 1)

	var energies []float64
	for range 60 {
		frame := src.Frame()
		require.Len(t, frame, cfg.FrameSize)
		var sum float64
		for _, s := range frame {
			sum += s * s
		}
		energies = append(energies, sum)
	}

	// Kicks land every half second; those frames carry far more energy than
	// the noise floor between them.
	assert.Greater(t, energies[29], 100*energies[0])
	assert.Greater(t, energies[59], 100*energies[0])
}
