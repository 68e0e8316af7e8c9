package mood

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/lumen-companion/internal/profile"
)

func TestTransitionIsTotal(t *testing.T) {
	valid := map[State]bool{}
	for _, s := range AllStates() {
		valid[s] = true
	}

	for _, s := range AllStates() {
		for _, e := range AllEvents() {
			next := Transition(s, e)
			assert.True(t, valid[next], "Transition(%s, %s) produced invalid state %d", s, e, next)
		}
	}
}

func TestChantCelebratesFromAnyState(t *testing.T) {
	for _, s := range AllStates() {
		assert.Equal(t, StateCelebrating, Transition(s, EventChantMatch), "from %s", s)
	}
}

func TestTapExcitesThenSettlesToCalm(t *testing.T) {
	e := NewEngine(Config{ActiveHoldTicks: 240}, nil, nil)

	state := e.Step(100, []EventKind{EventTap})
	assert.Equal(t, StateExcited, state)
	assert.Equal(t, uint64(1), e.Profile().TraitCounters[profile.TraitRespondedToTap])

	state = e.Step(300, nil)
	assert.Equal(t, StateExcited, state, "mood holds while within the hold window")

	state = e.Step(341, nil)
	assert.Equal(t, StateCalm, state)
}

func TestIdleTimeoutSeeksAttention(t *testing.T) {
	e := NewEngine(Config{IdleSeekTicks: 1800}, nil, nil)

	assert.Equal(t, StateCalm, e.Step(1800, nil))
	assert.Equal(t, StateSeekingAttention, e.Step(1801, nil))
}

func TestRewardedAttentionCelebratesAndBuildsTrust(t *testing.T) {
	e := NewEngine(Config{IdleSeekTicks: 100}, nil, nil)

	require.Equal(t, StateSeekingAttention, e.Step(200, nil))

	state := e.Step(210, []EventKind{EventTap})
	assert.Equal(t, StateCelebrating, state)
	assert.InDelta(t, 0.55, e.Profile().TrustScore, 1e-9)
	assert.Equal(t, uint64(1), e.Profile().TraitCounters[profile.TraitAttentionRewarded])
	assert.True(t, e.ConsumeSaveRequest(), "a trust change of the configured delta requests a save")
	assert.False(t, e.ConsumeSaveRequest(), "the request resets once consumed")
}

func TestSteadyBeatOnlyMovesCalmToCurious(t *testing.T) {
	assert.Equal(t, StateCurious, Transition(StateCalm, EventSteadyBeat))
	assert.Equal(t, StateExcited, Transition(StateExcited, EventSteadyBeat))
	assert.Equal(t, StateInvestigating, Transition(StateInvestigating, EventSteadyBeat))
}

func TestHighestPriorityEventWins(t *testing.T) {
	e := NewEngine(Config{}, nil, nil)

	state := e.Step(50, []EventKind{EventTap, EventShake, EventChantMatch})
	assert.Equal(t, StateCelebrating, state)
	assert.Equal(t, uint64(1), e.Profile().TraitCounters[profile.TraitRespondedToTap], "losing events still count as traits")
	assert.Equal(t, uint64(1), e.Profile().TraitCounters[profile.TraitRespondedToShake])
}

func TestTrustDecaysDuringLongIdle(t *testing.T) {
	e := NewEngine(Config{TrustDecayTicks: 100, IdleSeekTicks: 100000}, nil, nil)

	for tick := uint64(1); tick <= 250; tick++ {
		e.Step(tick, nil)
	}
	assert.InDelta(t, 0.48, e.Profile().TrustScore, 1e-9, "two decay intervals elapsed")

	e.Step(251, []EventKind{EventTap})
	trust := e.Profile().TrustScore
	for tick := uint64(252); tick <= 300; tick++ {
		e.Step(tick, nil)
	}
	assert.Equal(t, trust, e.Profile().TrustScore, "an interaction resets the decay clock")
}
