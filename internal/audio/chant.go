package audio

import (
	"math"

	"github.com/cybre/lumen-companion/internal/dsp"
)

// FrequencyRange is the inclusive Hz span a chant's onsets must fall into.
type FrequencyRange struct {
	Low  float64
	High float64
}

// ChantPattern is a registered timing/frequency signature. Patterns are
// configuration: loaded once, never mutated.
type ChantPattern struct {
	Name            string
	TimingGapTicks  []uint64 // expected gaps between consecutive onsets
	GapTolerance    float64  // accepted deviation fraction per gap, default 0.5
	Frequency       FrequencyRange
	EnergyThreshold float64 // minimum onset RMS
	MinLength       int     // minimum consecutive correct gaps for a valid pattern
	TimeoutTicks    uint64  // overall window to complete the sequence
}

// ChantMatch reports a completed pattern. It fires exactly once per detection.
type ChantMatch struct {
	Pattern string
	Tick    uint64
}

// chantMatcher tracks progress through one pattern's gap sequence. A mismatch
// resets it; completing the sequence inside the timeout fires the match.
type chantMatcher struct {
	pattern ChantPattern

	active        bool
	startTick     uint64
	lastOnsetTick uint64
	progress      int
}

func newChantMatcher(pattern ChantPattern) *chantMatcher {
	if len(pattern.TimingGapTicks) == 0 {
		return nil
	}
	if pattern.MinLength <= 0 {
		pattern.MinLength = 2
	}
	// A sequence shorter than the minimum length can only ever produce
	// noise-level matches, so it is not worth tracking at all.
	if len(pattern.TimingGapTicks) < pattern.MinLength {
		return nil
	}
	if pattern.GapTolerance <= 0 {
		pattern.GapTolerance = 0.5
	}
	if pattern.TimeoutTicks == 0 {
		var total uint64
		for _, gap := range pattern.TimingGapTicks {
			total += gap
		}
		pattern.TimeoutTicks = total * 2
	}
	return &chantMatcher{pattern: pattern}
}

func (m *chantMatcher) reset() {
	m.active = false
	m.progress = 0
}

func (m *chantMatcher) anchor(tick uint64) {
	m.active = true
	m.startTick = tick
	m.lastOnsetTick = tick
	m.progress = 0
}

// onset advances the matcher with a qualifying onset and reports whether the
// full sequence completed.
func (m *chantMatcher) onset(tick uint64) bool {
	if !m.active {
		m.anchor(tick)
		return false
	}

	gap := float64(tick - m.lastOnsetTick)
	expected := float64(m.pattern.TimingGapTicks[m.progress])
	if math.Abs(gap-expected) > expected*m.pattern.GapTolerance {
		// Wrong rhythm; this onset may still start a fresh attempt.
		m.anchor(tick)
		return false
	}

	m.progress++
	m.lastOnsetTick = tick

	if m.progress < len(m.pattern.TimingGapTicks) {
		return false
	}
	if tick-m.startTick > m.pattern.TimeoutTicks {
		m.reset()
		return false
	}

	m.reset()
	return true
}

// expire abandons an attempt that ran past the pattern's overall window.
func (m *chantMatcher) expire(tick uint64) {
	if m.active && tick-m.startTick > m.pattern.TimeoutTicks {
		m.reset()
	}
}

// qualifies gates onsets on loudness, voiced character, and frequency band.
func (m *chantMatcher) qualifies(frame dsp.AudioFrame, bands [dsp.NumBands]dsp.FrequencyBand) bool {
	if frame.RMS < m.pattern.EnergyThreshold {
		return false
	}
	if !frame.SpeechLike() {
		return false
	}
	band := bands[frame.DominantBand]
	return band.High >= m.pattern.Frequency.Low && band.Low <= m.pattern.Frequency.High
}

// feedChant routes one onset frame through every registered matcher. At most
// one match fires per onset; a fired match starts the detection cooldown.
func (a *Analyzer) feedChant(frame dsp.AudioFrame) *ChantMatch {
	if len(a.matchers) == 0 {
		return nil
	}
	if a.chantFired && frame.Tick-a.lastChantTick < a.cfg.ChantCooldownTicks {
		return nil
	}

	for _, m := range a.matchers {
		if !m.qualifies(frame, a.bands) {
			// An unqualified onset breaks any run in progress.
			m.reset()
			continue
		}
		if m.onset(frame.Tick) {
			a.chantFired = true
			a.lastChantTick = frame.Tick
			for _, other := range a.matchers {
				other.reset()
			}
			return &ChantMatch{Pattern: m.pattern.Name, Tick: frame.Tick}
		}
	}
	return nil
}

func (a *Analyzer) expireChant(tick uint64) {
	for _, m := range a.matchers {
		m.expire(tick)
	}
}
