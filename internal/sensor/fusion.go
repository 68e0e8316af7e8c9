package sensor

import (
	"github.com/cybre/lumen-companion/internal/dsp"
	"github.com/cybre/lumen-companion/internal/utils"
)

// MotionEvent classifies the accelerometer reading for one tick.
type MotionEvent int

const (
	MotionNone MotionEvent = iota
	MotionTap
	MotionShake
)

// String returns a human-friendly name for the motion event.
func (m MotionEvent) String() string {
	switch m {
	case MotionTap:
		return "tap"
	case MotionShake:
		return "shake"
	default:
		return "none"
	}
}

// EnvironmentSample is one raw reading from the sensor collaborator.
type EnvironmentSample struct {
	Tick            uint64
	Light           float64
	MotionMagnitude float64
}

// FusedState is the smoothed, classified environmental picture for one tick.
type FusedState struct {
	Tick             uint64
	SmoothedLight    float64
	BaselineLight    float64
	Motion           MotionEvent
	LightInteraction bool
	LightDelta       float64
}

// Config tunes the fusion stage. Zero fields fall back to defaults.
type Config struct {
	WindowSize          int     // rolling light window, samples
	BaselineAlpha       float64 // slow EMA tracking ambient baseline
	TapThreshold        float64 // motion magnitude for a tap
	ShakeThreshold      float64 // motion magnitude for a shake
	TapCooldownTicks    uint64  // min ticks between taps
	ShakeCooldownTicks  uint64  // min ticks between shakes
	LightDeltaThreshold float64 // smoothed-vs-baseline delta that counts as interaction
	LightSettleFraction float64 // fraction of the threshold the delta must drop below to re-arm
	MaxLight            float64 // raw light clamp ceiling
	MaxMotion           float64 // raw motion clamp ceiling
}

// Fusion normalizes raw light/motion samples into FusedState and detects
// discrete interaction events. It never rejects a sample; out-of-range raw
// values are clamped.
type Fusion struct {
	cfg Config

	window      []float64
	windowIndex int
	windowCount int
	windowSum   float64

	baseline *dsp.Smoother

	lastTapTick   uint64
	tapSeen       bool
	lastShakeTick uint64
	shakeSeen     bool

	inLightExcursion bool
}

// New constructs a Fusion stage with sane defaults for a 60 ticks/second loop.
func New(cfg Config) *Fusion {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 32
	}
	if cfg.BaselineAlpha <= 0 {
		cfg.BaselineAlpha = 0.01
	}
	if cfg.TapThreshold <= 0 {
		cfg.TapThreshold = 6
	}
	if cfg.ShakeThreshold <= 0 {
		cfg.ShakeThreshold = 11
	}
	if cfg.TapCooldownTicks == 0 {
		cfg.TapCooldownTicks = 30 // ~500ms
	}
	if cfg.ShakeCooldownTicks == 0 {
		cfg.ShakeCooldownTicks = 60 // ~1s
	}
	if cfg.LightDeltaThreshold <= 0 {
		cfg.LightDeltaThreshold = 50
	}
	if cfg.LightSettleFraction <= 0 || cfg.LightSettleFraction >= 1 {
		cfg.LightSettleFraction = 0.5
	}
	if cfg.MaxLight <= 0 {
		cfg.MaxLight = 1000
	}
	if cfg.MaxMotion <= 0 {
		cfg.MaxMotion = 100
	}

	return &Fusion{
		cfg:      cfg,
		window:   make([]float64, cfg.WindowSize),
		baseline: dsp.NewSmoother(cfg.BaselineAlpha),
	}
}

// Ingest folds one raw sample into the rolling window and returns the fused
// state for this tick.
func (f *Fusion) Ingest(sample EnvironmentSample) FusedState {
	light := utils.Clamp(sample.Light, 0, f.cfg.MaxLight)
	motion := utils.Clamp(sample.MotionMagnitude, 0, f.cfg.MaxMotion)

	f.windowSum -= f.window[f.windowIndex]
	f.window[f.windowIndex] = light
	f.windowSum += light
	f.windowIndex = (f.windowIndex + 1) % len(f.window)
	if f.windowCount < len(f.window) {
		f.windowCount++
	}
	smoothed := f.windowSum / float64(f.windowCount)

	baseline := f.baseline.Step(smoothed)

	state := FusedState{
		Tick:          sample.Tick,
		SmoothedLight: smoothed,
		BaselineLight: baseline,
		Motion:        f.classifyMotion(sample.Tick, motion),
	}

	state.LightDelta = smoothed - baseline
	state.LightInteraction = f.detectLightInteraction(state.LightDelta)

	return state
}

func (f *Fusion) classifyMotion(tick uint64, magnitude float64) MotionEvent {
	switch {
	case magnitude >= f.cfg.ShakeThreshold:
		if f.shakeSeen && tick-f.lastShakeTick < f.cfg.ShakeCooldownTicks {
			return MotionNone
		}
		f.lastShakeTick = tick
		f.shakeSeen = true
		return MotionShake
	case magnitude >= f.cfg.TapThreshold:
		if f.tapSeen && tick-f.lastTapTick < f.cfg.TapCooldownTicks {
			return MotionNone
		}
		f.lastTapTick = tick
		f.tapSeen = true
		return MotionTap
	default:
		return MotionNone
	}
}

// detectLightInteraction fires exactly once per excursion: the delta must
// drop back below the settle fraction of the threshold before another
// interaction can fire.
func (f *Fusion) detectLightInteraction(delta float64) bool {
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}

	if f.inLightExcursion {
		if magnitude < f.cfg.LightDeltaThreshold*f.cfg.LightSettleFraction {
			f.inLightExcursion = false
		}
		return false
	}

	if magnitude > f.cfg.LightDeltaThreshold {
		f.inLightExcursion = true
		return true
	}
	return false
}
