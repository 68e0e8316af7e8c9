package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/lumen-companion/internal/dsp"
)

func quietFrame(tick uint64) dsp.AudioFrame {
	return dsp.AudioFrame{Tick: tick, RMS: 0.01, ZeroCrossingRate: 0.1}
}

func loudFrame(tick uint64, band int) dsp.AudioFrame {
	return dsp.AudioFrame{Tick: tick, RMS: 1.0, DominantBand: band, ZeroCrossingRate: 0.1}
}

// feed runs the analyzer over one frame per tick, with loud onset frames at
// the given ticks, and returns the emitted events and matches.
func feed(a *Analyzer, from, to uint64, onsets map[uint64]int) ([]BeatEvent, []ChantMatch) {
	var events []BeatEvent
	var matches []ChantMatch
	for tick := from; tick <= to; tick++ {
		frame := quietFrame(tick)
		if band, ok := onsets[tick]; ok {
			frame = loudFrame(tick, band)
		}
		event, match := a.Analyze(frame)
		if event != nil {
			events = append(events, *event)
		}
		if match != nil {
			matches = append(matches, *match)
		}
	}
	return events, matches
}

func TestBPMConvergesOnSteadyBeat(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60}, nil)

	// Onsets every 30 ticks = 500ms at 60 ticks/second = 120 BPM.
	onsets := map[uint64]int{}
	for i := range uint64(8) {
		onsets[60+i*30] = 0
	}

	events, _ := feed(a, 1, 300, onsets)
	require.Len(t, events, 8)
	assert.InDelta(t, 120, events[len(events)-1].BPM, 5)
	assert.Greater(t, events[len(events)-1].Confidence, 0.5)
}

func TestBPMResetOnUnsteadyIntervals(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60}, nil)

	onsets := map[uint64]int{}
	for i := range uint64(5) {
		onsets[60+i*30] = 0
	}
	events, _ := feed(a, 1, 200, onsets)
	require.NotEmpty(t, events)
	require.InDelta(t, 120, events[len(events)-1].BPM, 5)

	// A grossly deviating interval signals loss of the steady beat.
	events, _ = feed(a, 201, 260, map[uint64]int{250: 0})
	require.Len(t, events, 1)
	assert.Zero(t, events[0].BPM)
	assert.Zero(t, events[0].Confidence)
}

func TestNoOnsetsDuringRefractoryPeriod(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60, RefractoryTicks: 10}, nil)

	onsets := map[uint64]int{60: 0, 63: 0, 66: 0, 75: 0}
	events, _ := feed(a, 1, 100, onsets)
	require.Len(t, events, 2, "onsets inside the refractory window are ignored")
	assert.Equal(t, uint64(60), events[0].Tick)
	assert.Equal(t, uint64(75), events[1].Tick)
}

func chantTestPattern() ChantPattern {
	return ChantPattern{
		Name:            "we-are",
		TimingGapTicks:  []uint64{30, 60},
		GapTolerance:    0.3,
		Frequency:       FrequencyRange{Low: 300, High: 2000},
		EnergyThreshold: 0.5,
		MinLength:       2,
		TimeoutTicks:    200,
	}
}

func TestChantMatchFiresExactlyOnce(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60}, []ChantPattern{chantTestPattern()})

	onsets := map[uint64]int{60: 1, 90: 1, 150: 1}
	_, matches := feed(a, 1, 300, onsets)
	require.Len(t, matches, 1)
	assert.Equal(t, "we-are", matches[0].Pattern)
	assert.Equal(t, uint64(150), matches[0].Tick)
}

func TestChantMatchRejectsOffTiming(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60}, []ChantPattern{chantTestPattern()})

	// Second gap misses the 60-tick expectation by more than 30%.
	onsets := map[uint64]int{60: 1, 90: 1, 175: 1}
	_, matches := feed(a, 1, 300, onsets)
	assert.Empty(t, matches)
}

func TestChantMatchRejectsWrongBand(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60}, []ChantPattern{chantTestPattern()})

	// Bass-dominant onsets sit outside the pattern's frequency range.
	onsets := map[uint64]int{60: 0, 90: 0, 150: 0}
	_, matches := feed(a, 1, 300, onsets)
	assert.Empty(t, matches)
}

func TestChantCooldownSuppressesImmediateRefire(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60, ChantCooldownTicks: 600}, []ChantPattern{chantTestPattern()})

	onsets := map[uint64]int{60: 1, 90: 1, 150: 1}
	_, matches := feed(a, 1, 200, onsets)
	require.Len(t, matches, 1)

	// The same sequence right after the match stays silent.
	onsets = map[uint64]int{300: 1, 330: 1, 390: 1}
	_, matches = feed(a, 201, 500, onsets)
	assert.Empty(t, matches)
}

func TestPatternShorterThanMinLengthIsDiscarded(t *testing.T) {
	short := ChantPattern{
		Name:           "too-short",
		TimingGapTicks: []uint64{30},
		MinLength:      3,
	}
	a := NewAnalyzer(Config{TickRate: 60}, []ChantPattern{short})
	assert.Empty(t, a.matchers)
}

func TestPhaseNudgeIsBounded(t *testing.T) {
	a := NewAnalyzer(Config{TickRate: 60, PhaseCorrectionLimit: 1.0 / 16}, nil)

	onsets := map[uint64]int{}
	for i := range uint64(6) {
		onsets[60+i*30] = 0
	}
	feed(a, 1, 250, onsets)
	require.InDelta(t, 120, a.BPM(), 5)

	before := a.Phase(260)
	a.NudgePhase(0.5) // request half a period; the correction must cap at 1/16
	after := a.Phase(260)

	assert.InDelta(t, 1.0/16, after-before, 1e-6)
}
