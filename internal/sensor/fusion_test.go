package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTapCooldownSuppressesDoubleTrigger(t *testing.T) {
	fusion := New(Config{TapThreshold: 5, TapCooldownTicks: 30})

	state := fusion.Ingest(EnvironmentSample{Tick: 1, Light: 100, MotionMagnitude: 7})
	assert.Equal(t, MotionTap, state.Motion)

	// Same physical jolt a few ticks later must not re-trigger.
	state = fusion.Ingest(EnvironmentSample{Tick: 5, Light: 100, MotionMagnitude: 7})
	assert.Equal(t, MotionNone, state.Motion)

	state = fusion.Ingest(EnvironmentSample{Tick: 40, Light: 100, MotionMagnitude: 7})
	assert.Equal(t, MotionTap, state.Motion)
}

func TestShakeOutranksTap(t *testing.T) {
	fusion := New(Config{TapThreshold: 5, ShakeThreshold: 11})

	state := fusion.Ingest(EnvironmentSample{Tick: 1, Light: 100, MotionMagnitude: 15})
	assert.Equal(t, MotionShake, state.Motion)
}

func TestLightInteractionFiresOncePerExcursion(t *testing.T) {
	fusion := New(Config{WindowSize: 4, LightDeltaThreshold: 50, BaselineAlpha: 0.001})

	// Settle the window and baseline at ambient level.
	for tick := uint64(1); tick <= 20; tick++ {
		state := fusion.Ingest(EnvironmentSample{Tick: tick, Light: 100})
		assert.False(t, state.LightInteraction)
	}

	// Shadow falls over the sensor: one event, then silence while it persists.
	fired := 0
	for tick := uint64(21); tick <= 40; tick++ {
		state := fusion.Ingest(EnvironmentSample{Tick: tick, Light: 10})
		if state.LightInteraction {
			fired++
		}
	}
	assert.Equal(t, 1, fired)

	// Light returns to baseline, the detector re-arms, a second shadow fires again.
	for tick := uint64(41); tick <= 120; tick++ {
		fusion.Ingest(EnvironmentSample{Tick: tick, Light: 100})
	}
	fired = 0
	for tick := uint64(121); tick <= 140; tick++ {
		state := fusion.Ingest(EnvironmentSample{Tick: tick, Light: 10})
		if state.LightInteraction {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
}

func TestBaselineLagsSuddenLightChanges(t *testing.T) {
	fusion := New(Config{WindowSize: 2, BaselineAlpha: 0.01})

	var state FusedState
	for tick := uint64(1); tick <= 50; tick++ {
		state = fusion.Ingest(EnvironmentSample{Tick: tick, Light: 100})
	}
	assert.InDelta(t, 100, state.BaselineLight, 1)

	// A lamp snaps on. The window average follows almost immediately but the
	// baseline, being a slow moving average, barely moves.
	for tick := uint64(51); tick <= 55; tick++ {
		state = fusion.Ingest(EnvironmentSample{Tick: tick, Light: 500})
	}
	assert.InDelta(t, 500, state.SmoothedLight, 1)
	assert.Less(t, state.BaselineLight, 150.0)
	assert.Positive(t, state.LightDelta)
}

func TestOutOfRangeSamplesClamped(t *testing.T) {
	fusion := New(Config{WindowSize: 2, MaxLight: 500})

	state := fusion.Ingest(EnvironmentSample{Tick: 1, Light: 99999, MotionMagnitude: -5})
	assert.LessOrEqual(t, state.SmoothedLight, 500.0)
	assert.Equal(t, MotionNone, state.Motion)
}
