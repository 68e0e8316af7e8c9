package routine

import (
	"math"

	"github.com/crazy3lf/colorconv"

	"github.com/cybre/lumen-companion/internal/mood"
	"github.com/cybre/lumen-companion/internal/utils"
)

// RingSize is the number of addressable pixels on the light ring.
const RingSize = 10

// ID identifies a lighting routine. The value doubles as the routine byte on
// the sync wire.
type ID uint8

const (
	Companion ID = iota
	Cruising
	Meditate
	Dance
)

// String returns a human-friendly name for the routine.
func (id ID) String() string {
	switch id {
	case Companion:
		return "companion"
	case Cruising:
		return "cruising"
	case Meditate:
		return "meditate"
	case Dance:
		return "dance"
	default:
		return "unknown"
	}
}

// Valid reports whether the byte names a known routine.
func (id ID) Valid() bool {
	return id <= Dance
}

// Pixel is one ring LED color.
type Pixel struct {
	R, G, B uint8
}

// Frame is the complete light output for one tick.
type Frame struct {
	Routine    ID
	Brightness int // percent, from the ambient light controller
	Pixels     [RingSize]Pixel
}

// Input carries everything a routine needs to render one tick.
type Input struct {
	Tick       uint64
	Mood       mood.State
	BeatPhase  float64 // [0,1), valid only when BPM > 0
	BPM        float64
	Trust      float64 // [0,1]
	Brightness int     // percent target from the ambient controller
}

// Scheduler renders the active routine and latches routine switches so the
// output never changes mid-tick. Followers running the dance routine adopt
// whatever routine the group leader announces.
type Scheduler struct {
	active  ID
	pending ID
	hasPend bool

	switchTick uint64
	hueDrift   float64
	lastBeat   float64
	beatHue    float64
}

// NewScheduler starts in the companion routine.
func NewScheduler() *Scheduler {
	return &Scheduler{active: Companion, beatHue: 200}
}

// Active returns the routine currently rendering.
func (s *Scheduler) Active() ID {
	return s.active
}

// Request queues a routine switch. It takes effect at the start of the next
// Step, so the frame already rendered this tick is never contradicted.
func (s *Scheduler) Request(id ID) {
	if !id.Valid() || id == s.active {
		return
	}
	s.pending = id
	s.hasPend = true
}

// AdoptLeader folds the group leader's announced routine in. Only meaningful
// while dancing: a follower mirrors the leader so the group stays coherent.
func (s *Scheduler) AdoptLeader(id ID) {
	if s.active != Dance && s.pending != Dance {
		return
	}
	if id.Valid() && id != s.active {
		s.Request(id)
	}
}

// Step applies any pending switch, then renders one frame.
func (s *Scheduler) Step(in Input) Frame {
	if s.hasPend {
		s.active = s.pending
		s.hasPend = false
		s.switchTick = in.Tick
	}

	frame := Frame{Routine: s.active, Brightness: in.Brightness}
	switch s.active {
	case Cruising:
		s.renderCruising(in, &frame)
	case Meditate:
		s.renderMeditate(in, &frame)
	case Dance:
		s.renderDance(in, &frame)
	default:
		s.renderCompanion(in, &frame)
	}
	return frame
}

// renderCompanion expresses the current mood. Trust widens the palette: a
// companion that trusts its human glows more saturated and lively.
func (s *Scheduler) renderCompanion(in Input, frame *Frame) {
	t := float64(in.Tick)
	liveliness := utils.Lerp(0.5, 1.0, in.Trust)

	switch in.Mood {
	case mood.StateCurious:
		// Cyan shimmer wandering around the ring.
		for i := range frame.Pixels {
			offset := 25 * math.Sin(t/18+float64(i)*0.7)
			frame.Pixels[i] = pixelHSV(185+offset, 0.6*liveliness, 0.8)
		}
	case mood.StateExcited:
		// Fast amber pulses.
		pulse := 0.55 + 0.45*math.Sin(t/4)
		for i := range frame.Pixels {
			frame.Pixels[i] = pixelHSV(35, 0.9, pulse*liveliness+0.1)
		}
	case mood.StateInvestigating:
		// A single bright scanner sweeping the ring.
		head := int(in.Tick/3) % RingSize
		for i := range frame.Pixels {
			v := 0.15
			if i == head {
				v = 1.0
			} else if (i+1)%RingSize == head || (i+RingSize-1)%RingSize == head {
				v = 0.45
			}
			frame.Pixels[i] = pixelHSV(265, 0.7, v)
		}
	case mood.StateSeekingAttention:
		// Slow lonely breathing in blue.
		breath := 0.3 + 0.25*math.Sin(t/45)
		for i := range frame.Pixels {
			frame.Pixels[i] = pixelHSV(225, 0.8, breath)
		}
	case mood.StateCelebrating:
		// Spinning rainbow.
		for i := range frame.Pixels {
			hue := math.Mod(t*4+float64(i)*36, 360)
			frame.Pixels[i] = pixelHSV(hue, 1.0, 0.9)
		}
	default:
		// Calm: steady warm glow.
		for i := range frame.Pixels {
			frame.Pixels[i] = pixelHSV(38, 0.45, 0.5+0.1*math.Sin(t/60))
		}
	}
}

// renderCruising drifts a gradient slowly around the ring, indifferent to
// mood. This is the routine for when the companion is along for the ride.
func (s *Scheduler) renderCruising(in Input, frame *Frame) {
	s.hueDrift = math.Mod(s.hueDrift+0.2, 360)
	for i := range frame.Pixels {
		hue := math.Mod(s.hueDrift+float64(i)*12, 360)
		frame.Pixels[i] = pixelHSV(hue, 0.7, 0.7)
	}
}

// renderMeditate breathes slowly at a capped brightness regardless of the
// ambient target.
func (s *Scheduler) renderMeditate(in Input, frame *Frame) {
	if frame.Brightness > 10 {
		frame.Brightness = 10
	}
	breath := 0.35 + 0.3*math.Sin(float64(in.Tick)/90)
	for i := range frame.Pixels {
		frame.Pixels[i] = pixelHSV(28, 0.35, breath)
	}
}

// renderDance locks the ring to the beat phase. Each beat advances the hue so
// a whole synced group steps through colors together.
func (s *Scheduler) renderDance(in Input, frame *Frame) {
	if in.BPM <= 0 {
		// No beat yet, idle on a dim pulse until one is found.
		v := 0.25 + 0.1*math.Sin(float64(in.Tick)/20)
		for i := range frame.Pixels {
			frame.Pixels[i] = pixelHSV(s.beatHue, 0.8, v)
		}
		return
	}

	if in.BeatPhase < s.lastBeat {
		// Phase wrapped, a new beat started.
		s.beatHue = math.Mod(s.beatHue+47, 360)
	}
	s.lastBeat = in.BeatPhase

	// Sharp attack on the beat, exponential decay through the period.
	pulse := math.Exp(-4 * in.BeatPhase)
	for i := range frame.Pixels {
		v := utils.Lerp(0.2, 1.0, pulse)
		frame.Pixels[i] = pixelHSV(math.Mod(s.beatHue+float64(i)*8, 360), 0.95, v)
	}
}

func pixelHSV(h, sat, v float64) Pixel {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	r, g, b, err := colorconv.HSVToRGB(h, utils.Clamp(sat, 0.0, 1.0), utils.Clamp(v, 0.0, 1.0))
	if err != nil {
		return Pixel{}
	}
	return Pixel{R: r, G: g, B: b}
}
