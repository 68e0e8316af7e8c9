package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cybre/lumen-companion/internal/audio"
	"github.com/cybre/lumen-companion/internal/brightness"
	"github.com/cybre/lumen-companion/internal/device"
	"github.com/cybre/lumen-companion/internal/dsp"
	"github.com/cybre/lumen-companion/internal/mood"
	"github.com/cybre/lumen-companion/internal/peersync"
	"github.com/cybre/lumen-companion/internal/profile"
	"github.com/cybre/lumen-companion/internal/routine"
	"github.com/cybre/lumen-companion/internal/sensor"
	"github.com/cybre/lumen-companion/internal/ui"
)

func newRunCommand() *cobra.Command {
	var (
		simulate  bool
		visualize bool
		debug     bool
		noSync    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the companion loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if simulate {
				cfg.Simulate = true
			}
			if visualize {
				cfg.Visualize = true
			}
			if debug {
				cfg.Debug = true
			}
			if noSync {
				cfg.SyncEnabled = false
			}

			err = runCompanion(cmd.Context(), cfg)
			if eris.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&simulate, "simulate", false, "run with synthetic audio and sensors")
	cmd.Flags().BoolVar(&visualize, "visualize", false, "render the live terminal display")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "disable multi-device sync")

	return cmd
}

func runCompanion(ctx context.Context, cfg runtimeConfig) error {
	logger := setupLogger(cfg.Debug, cfg.Visualize)

	store, prof := openProfile(ctx, cfg, logger)
	defer store.Close()

	beatAnalyzer := audio.NewAnalyzer(audio.Config{TickRate: cfg.TickRate}, defaultChantPatterns(cfg.TickRate))
	moodEngine := mood.NewEngine(mood.Config{}, prof, logger)

	brightnessCtrl, err := brightness.NewController(brightness.DefaultLevels(), 0.1)
	if err != nil {
		return err
	}

	coordinator := peersync.NewCoordinator(peersync.Config{}, device.DeviceKey(prof.DeviceID), logger)

	var link device.SyncLink
	if cfg.SyncEnabled {
		transport, err := peersync.NewTransport(ctx, cfg.SyncPort, logger)
		if err != nil {
			logger.Warn("sync disabled, transport unavailable", slog.String("error", err.Error()))
		} else {
			defer transport.Close()
			link = transport
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	var audioSource device.AudioSource
	var sensorSource device.SensorSource
	if cfg.Simulate {
		seed := time.Now().UnixNano()
		audioSource = newSimulatedAudioSource(cfg, seed)
		sensorSource = newSimulatedSensorSource(seed + 1)
		logger.Info("running with simulated audio and sensors")
	} else {
		if err := portaudio.Initialize(); err != nil {
			return eris.Wrap(err, "initialize PortAudio")
		}
		defer portaudio.Terminate()

		mic := newMicSource()
		audioSource = mic
		g.Go(func() error {
			return mic.capture(gctx, logger, cfg)
		})
	}

	core := device.NewCore(device.Config{
		TickRate:    cfg.TickRate,
		Sensor:      sensorSource,
		Audio:       audioSource,
		Sync:        link,
		Analyzer:    dsp.NewAnalyzer(cfg.SampleRate, cfg.FrameSize, dsp.DefaultBands()),
		Fusion:      sensor.New(sensor.Config{}),
		Beat:        beatAnalyzer,
		Mood:        moodEngine,
		Brightness:  brightnessCtrl,
		Scheduler:   routine.NewScheduler(),
		Coordinator: coordinator,
		Store:       store,
		Logger:      logger,
	})

	if cfg.Visualize {
		if !ui.IsInteractiveTerminal() {
			logger.Warn("visualization requested without an interactive terminal")
		} else {
			viz := ui.NewVisualizer(cancel, core.RequestRoutine)
			defer viz.Close()
			core.SetRenderer(newStatusRenderer(viz, core, moodEngine, beatAnalyzer, coordinator))
		}
	}

	g.Go(func() error {
		return core.Run(gctx)
	})

	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		logger.Error("companion loop failed", slog.Any("error", err))
		return err
	}
	return nil
}

// openProfile loads the persisted personality, falling back to an in-memory
// store when the database cannot be opened. The companion always starts.
func openProfile(ctx context.Context, cfg runtimeConfig, logger *slog.Logger) (profile.Store, *profile.PersonalityProfile) {
	var store profile.Store
	store, err := profile.NewSQLiteStore(cfg.ProfilePath)
	if err != nil {
		logger.Warn("profile database unavailable, personality will not persist",
			slog.String("path", cfg.ProfilePath),
			slog.String("error", err.Error()))
		store = profile.NewVolatileStore()
	}

	prof, found, err := store.Load(ctx)
	if err != nil {
		logger.Warn("failed to load profile, starting fresh", slog.String("error", err.Error()))
	}
	if !found || prof == nil {
		prof = profile.NewProfile()
		logger.Info("provisioned new device identity", slog.String("device_id", prof.DeviceID))
	} else {
		logger.Info("loaded personality profile",
			slog.String("device_id", prof.DeviceID),
			slog.Float64("trust", prof.TrustScore))
	}
	return store, prof
}

func setupLogger(debug, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	if visualize && !debug {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}

// defaultChantPatterns ships a couple of call patterns the companion listens
// for out of the box. Gaps are expressed in ticks.
func defaultChantPatterns(tickRate int) []audio.ChantPattern {
	half := uint64(tickRate / 2)
	return []audio.ChantPattern{
		{
			Name:            "double-clap",
			TimingGapTicks:  []uint64{half / 2, half / 2},
			Frequency:       audio.FrequencyRange{Low: 2000, High: 8000},
			EnergyThreshold: 0.3,
		},
		{
			Name:            "hey-hey-hey",
			TimingGapTicks:  []uint64{half, half},
			Frequency:       audio.FrequencyRange{Low: 250, High: 2000},
			EnergyThreshold: 0.2,
		},
	}
}

// statusRenderer adapts the visualizer to the core's render hook, sampling
// the live subsystems from inside the tick so no locking is needed.
type statusRenderer struct {
	viz         *ui.Visualizer
	core        *device.Core
	mood        *mood.Engine
	beat        *audio.Analyzer
	coordinator *peersync.Coordinator
}

func newStatusRenderer(viz *ui.Visualizer, core *device.Core, moodEngine *mood.Engine, beat *audio.Analyzer, coordinator *peersync.Coordinator) *statusRenderer {
	return &statusRenderer{viz: viz, core: core, mood: moodEngine, beat: beat, coordinator: coordinator}
}

func (r *statusRenderer) Render(frame routine.Frame) {
	tick := r.core.Tick()
	r.viz.Update(ui.Status{
		Tick:       tick,
		Pixels:     frame.Pixels,
		Routine:    frame.Routine.String(),
		Brightness: frame.Brightness,
		Mood:       r.mood.State().String(),
		Trust:      r.mood.Profile().TrustScore,
		BPM:        r.beat.BPM(),
		BeatPhase:  r.beat.Phase(tick),
		Role:       r.coordinator.Role().String(),
		Peers:      r.coordinator.Peers(),
	})
}
