package device

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cybre/lumen-companion/internal/audio"
	"github.com/cybre/lumen-companion/internal/brightness"
	"github.com/cybre/lumen-companion/internal/dsp"
	"github.com/cybre/lumen-companion/internal/mood"
	"github.com/cybre/lumen-companion/internal/peersync"
	"github.com/cybre/lumen-companion/internal/profile"
	"github.com/cybre/lumen-companion/internal/routine"
	"github.com/cybre/lumen-companion/internal/sensor"
	"github.com/cybre/lumen-companion/internal/utils"
)

// SensorSource supplies environment samples. Sample reports ok=false when no
// fresh reading is available this tick; the core then reuses the last one.
type SensorSource interface {
	Sample() (sensor.EnvironmentSample, bool)
}

// AudioSource supplies one block of mono samples per tick, or nil when the
// capture device produced nothing in time.
type AudioSource interface {
	Frame() []float64
}

// Renderer receives the finished light frame each tick.
type Renderer interface {
	Render(frame routine.Frame)
}

// SyncLink is the sync network boundary. A nil link means the device runs
// solo and always leads.
type SyncLink interface {
	Send(msg peersync.Message)
	Drain() []peersync.Message
}

// Config assembles the core's moving parts and tick timing.
type Config struct {
	TickRate int // ticks per second

	Sensor   SensorSource
	Audio    AudioSource
	Renderer Renderer
	Sync     SyncLink

	Analyzer    *dsp.Analyzer
	Fusion      *sensor.Fusion
	Beat        *audio.Analyzer
	Mood        *mood.Engine
	Brightness  *brightness.Controller
	Scheduler   *routine.Scheduler
	Coordinator *peersync.Coordinator

	Store profile.Store

	// MinSaveIntervalTicks coalesces profile saves: even when the mood engine
	// keeps requesting checkpoints, writes are spaced at least this far apart.
	MinSaveIntervalTicks uint64
	// AutosaveTicks forces a periodic save regardless of requests.
	AutosaveTicks uint64

	Logger *slog.Logger
}

// Core runs the synchronous control loop. All subsystem state is touched only
// from Step, so nothing here needs a lock.
type Core struct {
	cfg    Config
	logger *slog.Logger

	tick       uint64
	lastSample sensor.EnvironmentSample
	sampleSeen bool

	routineReq chan routine.ID

	lastSaveTick uint64
}

// DeviceKey derives the 32-bit election key from the persistent device
// identity, so the same device wins ties across restarts.
func DeviceKey(deviceID string) uint32 {
	u, err := uuid.Parse(deviceID)
	if err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(u[0:4])
}

// NewCore wires the subsystems together.
func NewCore(cfg Config) *Core {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.MinSaveIntervalTicks == 0 {
		cfg.MinSaveIntervalTicks = 300 // ~5s
	}
	if cfg.AutosaveTicks == 0 {
		cfg.AutosaveTicks = 18000 // ~5min
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{
		cfg:        cfg,
		logger:     logger,
		routineReq: make(chan routine.ID, 1),
	}
}

// SetRenderer installs the render hook. Call before Run; the renderer often
// needs the core itself, which rules out passing it through the config.
func (c *Core) SetRenderer(r Renderer) {
	c.cfg.Renderer = r
}

// RequestRoutine queues a routine switch from outside the loop (CLI or UI).
// The switch lands at the next tick boundary.
func (c *Core) RequestRoutine(id routine.ID) {
	select {
	case c.routineReq <- id:
	default:
	}
}

// Run drives the loop at the configured tick rate until the context ends,
// then performs a final profile save.
func (c *Core) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("companion core started",
		slog.Int("tick_rate", c.cfg.TickRate),
		slog.String("role", c.cfg.Coordinator.Role().String()))

	for {
		select {
		case <-ctx.Done():
			c.saveProfile(context.Background())
			return ctx.Err()
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step advances the whole device by exactly one tick: sensors, fusion, audio
// analysis, mood, brightness, routine rendering, then sync.
func (c *Core) Step() routine.Frame {
	c.tick++
	tick := c.tick

	// Inbound sync first so this tick's election sees the freshest peers.
	if c.cfg.Sync != nil {
		for _, msg := range c.cfg.Sync.Drain() {
			c.cfg.Coordinator.Observe(msg, tick)
		}
	}

	fused := c.readSensors(tick)
	beatEvent, chantMatch := c.analyzeAudio(tick)

	moodState := c.cfg.Mood.Step(tick, moodEvents(fused, beatEvent, chantMatch))

	level := c.cfg.Brightness.Current()
	if fused != nil {
		level = c.cfg.Brightness.Target(fused.SmoothedLight)
	}

	c.cfg.Coordinator.Tick(tick)
	c.followLeader()

	select {
	case id := <-c.routineReq:
		c.cfg.Scheduler.Request(id)
	default:
	}

	frame := c.cfg.Scheduler.Step(routine.Input{
		Tick:       tick,
		Mood:       moodState,
		BeatPhase:  c.cfg.Beat.Phase(tick),
		BPM:        c.cfg.Beat.BPM(),
		Trust:      c.cfg.Mood.Profile().TrustScore,
		Brightness: int(level.Percent),
	})

	if c.cfg.Renderer != nil {
		c.cfg.Renderer.Render(frame)
	}

	if c.cfg.Sync != nil {
		if out := c.cfg.Coordinator.Outbound(tick, c.cfg.Beat.Phase(tick), uint8(c.cfg.Scheduler.Active())); out != nil {
			c.cfg.Sync.Send(*out)
		}
	}

	c.maybeSave(tick)
	return frame
}

// Tick returns the current tick count.
func (c *Core) Tick() uint64 {
	return c.tick
}

func (c *Core) readSensors(tick uint64) *sensor.FusedState {
	if c.cfg.Sensor == nil {
		return nil
	}
	sample, ok := c.cfg.Sensor.Sample()
	if ok {
		c.lastSample = sample
		c.sampleSeen = true
	}
	if !c.sampleSeen {
		return nil
	}
	c.lastSample.Tick = tick
	fused := c.cfg.Fusion.Ingest(c.lastSample)
	return &fused
}

func (c *Core) analyzeAudio(tick uint64) (*audio.BeatEvent, *audio.ChantMatch) {
	var frame dsp.AudioFrame
	if c.cfg.Audio != nil {
		if samples := c.cfg.Audio.Frame(); len(samples) > 0 {
			frame = c.cfg.Analyzer.Process(samples, tick)
		} else {
			frame = dsp.AudioFrame{Tick: tick}
		}
	} else {
		frame = dsp.AudioFrame{Tick: tick}
	}
	return c.cfg.Beat.Analyze(frame)
}

// followLeader nudges the local beat phase toward the leader's. The nudge is
// bounded inside the analyzer so a bad heartbeat cannot yank the phase.
func (c *Core) followLeader() {
	if leaderPhase, ok := c.cfg.Coordinator.LeaderPhase(); ok {
		local := c.cfg.Beat.Phase(c.tick)
		c.cfg.Beat.NudgePhase(utils.UnitDelta(local, leaderPhase))
	}
	if leaderRoutine, ok := c.cfg.Coordinator.LeaderRoutine(); ok {
		c.cfg.Scheduler.AdoptLeader(routine.ID(leaderRoutine))
	}
}

func moodEvents(fused *sensor.FusedState, beat *audio.BeatEvent, chant *audio.ChantMatch) []mood.EventKind {
	var events []mood.EventKind
	if chant != nil {
		events = append(events, mood.EventChantMatch)
	}
	if fused != nil {
		switch fused.Motion {
		case sensor.MotionShake:
			events = append(events, mood.EventShake)
		case sensor.MotionTap:
			events = append(events, mood.EventTap)
		}
		if fused.LightInteraction {
			events = append(events, mood.EventLightInteraction)
		}
	}
	if beat != nil && beat.BPM > 0 {
		events = append(events, mood.EventSteadyBeat)
	}
	return events
}

func (c *Core) maybeSave(tick uint64) {
	if c.cfg.Store == nil {
		return
	}
	if tick-c.lastSaveTick < c.cfg.MinSaveIntervalTicks {
		return
	}
	due := c.cfg.Mood.ConsumeSaveRequest()
	if tick-c.lastSaveTick >= c.cfg.AutosaveTicks {
		due = true
	}
	if !due {
		return
	}
	c.lastSaveTick = tick
	c.saveProfile(context.Background())
}

// saveProfile writes a snapshot. Failure is logged and life goes on; the
// companion never dies over a bad disk.
func (c *Core) saveProfile(ctx context.Context) {
	if c.cfg.Store == nil {
		return
	}
	snapshot := c.cfg.Mood.Profile().Clone()
	if err := c.cfg.Store.Save(ctx, snapshot); err != nil {
		c.logger.Warn("profile save failed", slog.String("error", err.Error()))
	}
}
