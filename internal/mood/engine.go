package mood

import (
	"log/slog"

	"github.com/cybre/lumen-companion/internal/profile"
)

// State is the companion's current internal affective state. Exactly one is
// active at a time; transitions are the only way to change it.
type State int

const (
	StateCalm State = iota
	StateCurious
	StateExcited
	StateInvestigating
	StateSeekingAttention
	StateCelebrating
)

// AllStates enumerates every mood state, in declaration order.
func AllStates() []State {
	return []State{
		StateCalm,
		StateCurious,
		StateExcited,
		StateInvestigating,
		StateSeekingAttention,
		StateCelebrating,
	}
}

// String returns a human-friendly name for the state.
func (s State) String() string {
	switch s {
	case StateCalm:
		return "calm"
	case StateCurious:
		return "curious"
	case StateExcited:
		return "excited"
	case StateInvestigating:
		return "investigating"
	case StateSeekingAttention:
		return "seeking_attention"
	case StateCelebrating:
		return "celebrating"
	default:
		return "unknown"
	}
}

// EventKind identifies one category of mood input, listed in priority order
// (lower value = higher priority).
type EventKind int

const (
	EventChantMatch EventKind = iota
	EventShake
	EventTap
	EventLightInteraction
	EventSteadyBeat
	EventIdleTimeout
)

// AllEvents enumerates every event kind, in priority order.
func AllEvents() []EventKind {
	return []EventKind{
		EventChantMatch,
		EventShake,
		EventTap,
		EventLightInteraction,
		EventSteadyBeat,
		EventIdleTimeout,
	}
}

// String returns a human-friendly name for the event kind.
func (e EventKind) String() string {
	switch e {
	case EventChantMatch:
		return "chant_match"
	case EventShake:
		return "shake"
	case EventTap:
		return "tap"
	case EventLightInteraction:
		return "light_interaction"
	case EventSteadyBeat:
		return "steady_beat"
	case EventIdleTimeout:
		return "idle_timeout"
	default:
		return "unknown"
	}
}

// isInteraction reports whether the event counts as a user interaction for
// trust and idle-tracking purposes.
func (e EventKind) isInteraction() bool {
	switch e {
	case EventTap, EventShake, EventLightInteraction, EventChantMatch:
		return true
	default:
		return false
	}
}

// Transition is the total transition function over (state, event). Any pair
// without an explicit rule keeps the current state, so the machine is never
// undefined.
func Transition(state State, event EventKind) State {
	if event == EventChantMatch {
		return StateCelebrating
	}
	if state == StateSeekingAttention && event.isInteraction() {
		return StateCelebrating
	}

	switch event {
	case EventShake, EventTap:
		return StateExcited
	case EventLightInteraction:
		return StateInvestigating
	case EventSteadyBeat:
		if state == StateCalm {
			return StateCurious
		}
	case EventIdleTimeout:
		if state != StateCelebrating {
			return StateSeekingAttention
		}
	}
	return state
}

// Config tunes the engine. Zero fields fall back to defaults sized for a
// 60 ticks/second loop. The trust increment/decay pair is deliberately
// configuration, not a literal.
type Config struct {
	TrustIncrement     float64 // trust gained per rewarded interaction
	TrustDecay         float64 // trust lost per decay interval without interaction
	IdleSeekTicks      uint64  // idle ticks before seeking attention
	TrustDecayTicks    uint64  // idle ticks per trust decay step
	ActiveHoldTicks    uint64  // ticks an active mood holds before settling
	CelebrateHoldTicks uint64  // ticks the celebration holds before settling
	SaveTrustDelta     float64 // trust change that requests a persistence checkpoint
}

func (c Config) withDefaults() Config {
	if c.TrustIncrement <= 0 {
		c.TrustIncrement = 0.05
	}
	if c.TrustDecay <= 0 {
		c.TrustDecay = 0.01
	}
	if c.IdleSeekTicks == 0 {
		c.IdleSeekTicks = 1800 // ~30s
	}
	if c.TrustDecayTicks == 0 {
		c.TrustDecayTicks = 7200 // ~2min
	}
	if c.ActiveHoldTicks == 0 {
		c.ActiveHoldTicks = 240 // ~4s
	}
	if c.CelebrateHoldTicks == 0 {
		c.CelebrateHoldTicks = 360 // ~6s
	}
	if c.SaveTrustDelta <= 0 {
		c.SaveTrustDelta = 0.05
	}
	return c
}

// Engine runs the mood state machine and owns the live personality profile
// for the session.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	state            State
	stateEnteredTick uint64

	prof *profile.PersonalityProfile

	lastInteractionTick uint64
	lastDecayTick       uint64

	trustAtLastSave float64
	saveRequested   bool
}

// NewEngine constructs an Engine. A nil profile starts a fresh personality.
func NewEngine(cfg Config, prof *profile.PersonalityProfile, logger *slog.Logger) *Engine {
	if prof == nil {
		prof = profile.NewProfile()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:             cfg.withDefaults(),
		logger:          logger,
		state:           StateCalm,
		prof:            prof,
		trustAtLastSave: prof.TrustScore,
	}
}

// State returns the current mood.
func (e *Engine) State() State {
	return e.state
}

// Profile returns the live personality profile owned by the engine.
func (e *Engine) Profile() *profile.PersonalityProfile {
	return e.prof
}

// Step advances the machine by one tick. Events must be passed in the order
// they were observed; the highest-priority one drives the transition, while
// trait counters record every event.
func (e *Engine) Step(tick uint64, events []EventKind) State {
	chosen, hasEvent := e.recordEvents(tick, events)

	if !hasEvent && tick-e.lastInteractionTick > e.cfg.IdleSeekTicks && e.state != StateSeekingAttention {
		chosen, hasEvent = EventIdleTimeout, true
	}

	if hasEvent {
		e.applyTrust(chosen)
		next := Transition(e.state, chosen)
		if next == StateCurious && e.state != StateCurious {
			e.prof.Bump(profile.TraitAudioInvestigations)
		}
		if next != e.state {
			e.logger.Debug("mood transition",
				slog.String("from", e.state.String()),
				slog.String("to", next.String()),
				slog.String("event", chosen.String()),
				slog.Float64("trust", e.prof.TrustScore))
			e.state = next
			e.stateEnteredTick = tick
		}
	}

	e.settle(tick)
	e.decayTrust(tick)
	e.checkpoint()

	return e.state
}

// recordEvents bumps trait counters, tracks interaction recency, and returns
// the highest-priority event.
func (e *Engine) recordEvents(tick uint64, events []EventKind) (EventKind, bool) {
	chosen := EventIdleTimeout
	hasEvent := false

	for _, event := range events {
		switch event {
		case EventTap:
			e.prof.Bump(profile.TraitRespondedToTap)
		case EventShake:
			e.prof.Bump(profile.TraitRespondedToShake)
		case EventLightInteraction:
			e.prof.Bump(profile.TraitLightInteractions)
		case EventChantMatch:
			e.prof.Bump(profile.TraitChantCelebrations)
		}
		if event.isInteraction() {
			e.lastInteractionTick = tick
			e.lastDecayTick = tick
		}
		if !hasEvent || event < chosen {
			chosen = event
			hasEvent = true
		}
	}
	return chosen, hasEvent
}

func (e *Engine) applyTrust(event EventKind) {
	switch {
	case event == EventChantMatch:
		e.prof.AdjustTrust(e.cfg.TrustIncrement)
	case e.state == StateSeekingAttention && event.isInteraction():
		// The companion asked for attention and got it.
		e.prof.AdjustTrust(e.cfg.TrustIncrement)
		e.prof.Bump(profile.TraitAttentionRewarded)
	}
}

// settle returns active moods to calm once their hold expires. Seeking
// attention persists until an interaction arrives.
func (e *Engine) settle(tick uint64) {
	hold := e.cfg.ActiveHoldTicks
	switch e.state {
	case StateCalm, StateSeekingAttention:
		return
	case StateCelebrating:
		hold = e.cfg.CelebrateHoldTicks
	}
	if tick-e.stateEnteredTick > hold {
		e.state = StateCalm
		e.stateEnteredTick = tick
	}
}

func (e *Engine) decayTrust(tick uint64) {
	if tick-e.lastInteractionTick <= e.cfg.TrustDecayTicks {
		return
	}
	if tick-e.lastDecayTick <= e.cfg.TrustDecayTicks {
		return
	}
	e.prof.AdjustTrust(-e.cfg.TrustDecay)
	e.lastDecayTick = tick
}

// checkpoint requests a coalesced save once trust has moved far enough since
// the last one.
func (e *Engine) checkpoint() {
	delta := e.prof.TrustScore - e.trustAtLastSave
	if delta < 0 {
		delta = -delta
	}
	if delta >= e.cfg.SaveTrustDelta {
		e.saveRequested = true
	}
}

// ConsumeSaveRequest reports whether a persistence checkpoint is due and
// resets the request. The caller performs the actual save.
func (e *Engine) ConsumeSaveRequest() bool {
	if !e.saveRequested {
		return false
	}
	e.saveRequested = false
	e.trustAtLastSave = e.prof.TrustScore
	return true
}
