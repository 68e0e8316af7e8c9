package main

import (
	"context"
	"log/slog"
	"math"
	"math/rand"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"

	"github.com/cybre/lumen-companion/internal/dsp"
	"github.com/cybre/lumen-companion/internal/sensor"
)

// micSource captures live audio through PortAudio. A capture goroutine fills
// a small queue; the tick loop pops at most one block per tick and skips the
// tick when capture is behind.
type micSource struct {
	blocks chan []float64
}

func newMicSource() *micSource {
	return &micSource{blocks: make(chan []float64, 8)}
}

func (m *micSource) Frame() []float64 {
	select {
	case block := <-m.blocks:
		return block
	default:
		return nil
	}
}

// push enqueues a captured block. When the loop is behind it evicts the
// oldest queued block so the freshest audio keeps latency bounded.
func (m *micSource) push(block []float64) {
	select {
	case m.blocks <- block:
		return
	default:
	}
	select {
	case <-m.blocks:
	default:
	}
	select {
	case m.blocks <- block:
	default:
	}
}

// capture runs until the context ends, feeding the source queue.
func (m *micSource) capture(ctx context.Context, logger *slog.Logger, cfg runtimeConfig) error {
	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return eris.Wrap(err, "resolve default audio input device")
	}
	if device.MaxInputChannels < 1 {
		return eris.Errorf("device %s has no input channels", device.Name)
	}

	channels := cfg.Channels
	if channels > int(device.MaxInputChannels) {
		channels = int(device.MaxInputChannels)
	}

	logger.Info("using audio input device",
		slog.String("name", device.Name),
		slog.Float64("sample_rate", cfg.SampleRate),
		slog.Int("channels", channels),
		slog.Int("frame_size", cfg.FrameSize))

	buffer := make([]float32, cfg.FrameSize*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FrameSize,
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return eris.Wrap(err, "open audio stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return eris.Wrap(err, "start audio stream")
	}
	defer stream.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := stream.Read(); err != nil {
			if eris.Is(err, portaudio.InputOverflowed) {
				continue
			}
			return eris.Wrap(err, "read audio stream")
		}

		m.push(dsp.ToMono(buffer, channels, nil))
	}
}

// simulatedAudioSource synthesizes a steady 120 BPM kick over noise so the
// whole pipeline can run without a microphone.
type simulatedAudioSource struct {
	cfg  runtimeConfig
	rng  *rand.Rand
	tick uint64
}

func newSimulatedAudioSource(cfg runtimeConfig, seed int64) *simulatedAudioSource {
	return &simulatedAudioSource{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func (s *simulatedAudioSource) Frame() []float64 {
	s.tick++
	samples := make([]float64, s.cfg.FrameSize)

	// Half a second between kicks at 120 BPM.
	beatPeriod := uint64(s.cfg.TickRate) / 2
	onBeat := beatPeriod > 0 && s.tick%beatPeriod == 0

	for i := range samples {
		samples[i] = 0.005 * (s.rng.Float64()*2 - 1)
		if onBeat {
			t := float64(i) / s.cfg.SampleRate
			samples[i] += 0.8 * math.Sin(2*math.Pi*80*t) * math.Exp(-t*30)
		}
	}
	return samples
}

// simulatedSensorSource wanders the ambient light level and injects the
// occasional tap so moods have something to react to.
type simulatedSensorSource struct {
	rng   *rand.Rand
	light float64
}

func newSimulatedSensorSource(seed int64) *simulatedSensorSource {
	return &simulatedSensorSource{rng: rand.New(rand.NewSource(seed)), light: 120}
}

func (s *simulatedSensorSource) Sample() (sensor.EnvironmentSample, bool) {
	s.light += s.rng.NormFloat64() * 2
	if s.light < 5 {
		s.light = 5
	}
	if s.light > 800 {
		s.light = 800
	}

	motion := 0.0
	if s.rng.Float64() < 0.002 {
		motion = 8 // an occasional tap
	}

	return sensor.EnvironmentSample{Light: s.light, MotionMagnitude: motion}, true
}
