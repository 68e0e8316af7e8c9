package audio

import (
	"math"

	"github.com/cybre/lumen-companion/internal/dsp"
	"github.com/cybre/lumen-companion/internal/utils"
)

// BeatEvent marks a detected beat onset. BPM is zero until a steady tempo has
// been observed; Confidence grows with the number of consistent intervals.
type BeatEvent struct {
	Tick       uint64
	BPM        float64
	Confidence float64
}

// Config tunes the analyzer. Zero fields fall back to defaults sized for a
// 60 ticks/second loop.
type Config struct {
	EnergyWindow         int     // onset history length, frames
	ThresholdMultiple    float64 // onset threshold: mean + k*stddev
	EnergyFloor          float64 // absolute minimum energy for an onset
	RefractoryTicks      uint64  // min ticks between onsets
	TempoAlpha           float64 // EMA alpha for inter-onset intervals
	TempoTolerance       float64 // interval deviation fraction that resets the estimate
	MinBPM               float64
	MaxBPM               float64
	TickRate             float64 // logical ticks per second
	PhaseCorrectionLimit float64 // max phase nudge per call, fraction of a beat period
	ChantCooldownTicks   uint64  // quiet period after a fired chant match

	// Bands mirrors the dsp band table so chant frequency ranges can be
	// checked against an onset's dominant band.
	Bands [dsp.NumBands]dsp.FrequencyBand
}

func (c Config) withDefaults() Config {
	if c.EnergyWindow <= 0 {
		c.EnergyWindow = 48
	}
	if c.ThresholdMultiple <= 0 {
		c.ThresholdMultiple = 1.5
	}
	if c.EnergyFloor <= 0 {
		c.EnergyFloor = 1e-3
	}
	if c.RefractoryTicks == 0 {
		c.RefractoryTicks = 10 // ~160ms
	}
	if c.TempoAlpha <= 0 {
		c.TempoAlpha = 0.25
	}
	if c.TempoTolerance <= 0 {
		c.TempoTolerance = 0.35
	}
	if c.MinBPM <= 0 {
		c.MinBPM = 50
	}
	if c.MaxBPM <= c.MinBPM {
		c.MaxBPM = 200
	}
	if c.TickRate <= 0 {
		c.TickRate = 60
	}
	if c.PhaseCorrectionLimit <= 0 {
		c.PhaseCorrectionLimit = 1.0 / 16
	}
	if c.ChantCooldownTicks == 0 {
		c.ChantCooldownTicks = 900 // ~15s
	}
	empty := true
	for _, b := range c.Bands {
		if b.Low != 0 || b.High != 0 {
			empty = false
			break
		}
	}
	if empty {
		c.Bands = dsp.DefaultBands()
	}
	return c
}

// Analyzer consumes AudioFrames and produces beat onsets, a running tempo
// estimate, and chant pattern matches. All timing is in monotonic ticks.
type Analyzer struct {
	cfg Config

	history      []float64
	historyIndex int
	historyCount int

	lastOnsetTick uint64
	onsetSeen     bool

	intervalEMA   float64
	intervalCount int

	phaseShift float64

	matchers         []*chantMatcher
	lastChantTick    uint64
	chantFired       bool
	bands            [dsp.NumBands]dsp.FrequencyBand
	minIntervalTicks float64
	maxIntervalTicks float64
}

// NewAnalyzer constructs an Analyzer with the supplied chant patterns
// registered. Patterns shorter than their own minimum length are skipped.
func NewAnalyzer(cfg Config, patterns []ChantPattern) *Analyzer {
	cfg = cfg.withDefaults()

	a := &Analyzer{
		cfg:              cfg,
		history:          make([]float64, cfg.EnergyWindow),
		bands:            cfg.Bands,
		minIntervalTicks: cfg.TickRate * 60 / cfg.MaxBPM,
		maxIntervalTicks: cfg.TickRate * 60 / cfg.MinBPM,
	}
	for _, p := range patterns {
		if m := newChantMatcher(p); m != nil {
			a.matchers = append(a.matchers, m)
		}
	}
	return a
}

// Analyze ingests one frame and returns an onset event and/or a chant match,
// either of which may be nil.
func (a *Analyzer) Analyze(frame dsp.AudioFrame) (*BeatEvent, *ChantMatch) {
	onset := a.detectOnset(frame)
	a.pushEnergy(frame.RMS)

	var event *BeatEvent
	var match *ChantMatch

	if onset {
		a.updateTempo(frame.Tick)
		a.lastOnsetTick = frame.Tick
		a.onsetSeen = true
		event = &BeatEvent{
			Tick:       frame.Tick,
			BPM:        a.BPM(),
			Confidence: a.Confidence(),
		}
		match = a.feedChant(frame)
	}
	a.expireChant(frame.Tick)

	return event, match
}

func (a *Analyzer) detectOnset(frame dsp.AudioFrame) bool {
	if a.onsetSeen && frame.Tick-a.lastOnsetTick < a.cfg.RefractoryTicks {
		return false
	}
	if frame.RMS < a.cfg.EnergyFloor {
		return false
	}
	if a.historyCount < a.cfg.EnergyWindow/4 {
		// Not enough history for a meaningful threshold yet.
		return false
	}

	mean, stddev := a.energyStats()
	return frame.RMS > mean+a.cfg.ThresholdMultiple*stddev
}

func (a *Analyzer) pushEnergy(energy float64) {
	a.history[a.historyIndex] = energy
	a.historyIndex = (a.historyIndex + 1) % len(a.history)
	if a.historyCount < len(a.history) {
		a.historyCount++
	}
}

func (a *Analyzer) energyStats() (mean, stddev float64) {
	if a.historyCount == 0 {
		return 0, 0
	}
	var sum float64
	for i := range a.historyCount {
		sum += a.history[i]
	}
	mean = sum / float64(a.historyCount)

	var sumSq float64
	for i := range a.historyCount {
		d := a.history[i] - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / float64(a.historyCount))
	return mean, stddev
}

// updateTempo folds the interval ending at tick into the running estimate.
// Intervals outside the plausible BPM range are skipped as missed or spurious
// onsets; intervals deviating beyond the tolerance band reset the estimate.
func (a *Analyzer) updateTempo(tick uint64) {
	if !a.onsetSeen {
		return
	}

	interval := float64(tick - a.lastOnsetTick)
	switch {
	case interval < a.minIntervalTicks || interval > a.maxIntervalTicks:
		// Out of plausible tempo range, ignore for the estimate.
	case a.intervalCount == 0:
		a.intervalEMA = interval
		a.intervalCount = 1
	default:
		deviation := math.Abs(interval-a.intervalEMA) / a.intervalEMA
		if deviation > a.cfg.TempoTolerance {
			// Steady beat lost, start over from this interval.
			a.intervalEMA = interval
			a.intervalCount = 1
		} else {
			a.intervalEMA += a.cfg.TempoAlpha * (interval - a.intervalEMA)
			a.intervalCount++
		}
	}
}

// BPM returns the current tempo estimate, or zero when no steady beat is held.
func (a *Analyzer) BPM() float64 {
	if a.intervalCount < 2 || a.intervalEMA <= 0 {
		return 0
	}
	return 60 * a.cfg.TickRate / a.intervalEMA
}

// Confidence grows with the number of consecutive consistent intervals.
func (a *Analyzer) Confidence() float64 {
	if a.intervalCount < 2 {
		return 0
	}
	return utils.Clamp(float64(a.intervalCount)/8.0, 0.0, 1.0)
}

// Phase returns the current beat phase in [0,1): the fraction of the beat
// period elapsed since the last onset, including accumulated corrections.
func (a *Analyzer) Phase(tick uint64) float64 {
	period := a.periodTicks()
	if period <= 0 || !a.onsetSeen {
		return 0
	}
	elapsed := float64(tick-a.lastOnsetTick) + a.phaseShift
	return utils.WrapUnit(elapsed / period)
}

// NudgePhase moves the local beat phase toward the leader by delta (a signed
// fraction of the beat period), bounded per call so followers glide into
// phase-lock instead of snapping.
func (a *Analyzer) NudgePhase(delta float64) {
	period := a.periodTicks()
	if period <= 0 {
		return
	}
	limit := a.cfg.PhaseCorrectionLimit
	a.phaseShift += utils.Clamp(delta, -limit, limit) * period
}

func (a *Analyzer) periodTicks() float64 {
	bpm := a.BPM()
	if bpm <= 0 {
		return 0
	}
	return 60 * a.cfg.TickRate / bpm
}
