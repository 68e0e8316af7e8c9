package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cybre/lumen-companion/internal/mood"
)

func TestSwitchIsLatchedToNextStep(t *testing.T) {
	s := NewScheduler()

	frame := s.Step(Input{Tick: 1, Mood: mood.StateCalm})
	assert.Equal(t, Companion, frame.Routine)

	s.Request(Meditate)
	assert.Equal(t, Companion, s.Active(), "switch waits for the tick boundary")

	frame = s.Step(Input{Tick: 2, Mood: mood.StateCalm})
	assert.Equal(t, Meditate, frame.Routine)
	assert.Equal(t, Meditate, s.Active())
}

func TestInvalidRoutineIsIgnored(t *testing.T) {
	s := NewScheduler()
	s.Request(ID(200))
	s.Step(Input{Tick: 1})
	assert.Equal(t, Companion, s.Active())
}

func TestMeditateCapsBrightness(t *testing.T) {
	s := NewScheduler()
	s.Request(Meditate)

	frame := s.Step(Input{Tick: 1, Brightness: 20})
	assert.Equal(t, 10, frame.Brightness)

	frame = s.Step(Input{Tick: 2, Brightness: 5})
	assert.Equal(t, 5, frame.Brightness, "already dim ambient target passes through")
}

func TestCompanionRendersMoodDistinctly(t *testing.T) {
	s := NewScheduler()

	calm := s.Step(Input{Tick: 100, Mood: mood.StateCalm})
	celebrating := s.Step(Input{Tick: 100, Mood: mood.StateCelebrating})
	assert.NotEqual(t, calm.Pixels, celebrating.Pixels)
}

func TestDanceAdvancesHueOnBeatWrap(t *testing.T) {
	s := NewScheduler()
	s.Request(Dance)

	first := s.Step(Input{Tick: 1, BPM: 120, BeatPhase: 0.9})
	wrapped := s.Step(Input{Tick: 2, BPM: 120, BeatPhase: 0.05})
	assert.NotEqual(t, first.Pixels[0], wrapped.Pixels[0], "a new beat changes the palette")
}

func TestAdoptLeaderOnlyWhileDancing(t *testing.T) {
	s := NewScheduler()

	s.AdoptLeader(Cruising)
	s.Step(Input{Tick: 1})
	assert.Equal(t, Companion, s.Active(), "solo routines ignore the leader")

	s.Request(Dance)
	s.Step(Input{Tick: 2})
	s.AdoptLeader(Cruising)
	s.Step(Input{Tick: 3})
	assert.Equal(t, Cruising, s.Active(), "a dancing follower mirrors the leader")
}
