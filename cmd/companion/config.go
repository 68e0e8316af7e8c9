package main

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// runtimeConfig is populated from the environment first, then overridden by
// command line flags.
type runtimeConfig struct {
	TickRate   int     `env:"COMPANION_TICK_RATE" envDefault:"60"`
	SampleRate float64 `env:"COMPANION_SAMPLE_RATE" envDefault:"16000"`
	FrameSize  int     `env:"COMPANION_FRAME_SIZE" envDefault:"1024"`
	Channels   int     `env:"COMPANION_CHANNELS" envDefault:"1"`

	ProfilePath string `env:"COMPANION_PROFILE_PATH"`

	SyncPort    int  `env:"COMPANION_SYNC_PORT" envDefault:"41952"`
	SyncEnabled bool `env:"COMPANION_SYNC_ENABLED" envDefault:"true"`

	Simulate  bool `env:"COMPANION_SIMULATE" envDefault:"false"`
	Visualize bool `env:"COMPANION_VISUALIZE" envDefault:"false"`
	Debug     bool `env:"COMPANION_DEBUG" envDefault:"false"`
}

func loadConfig() (runtimeConfig, error) {
	var cfg runtimeConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "parse environment")
	}
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = defaultProfilePath()
	}
	return cfg, nil
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "companion.db"
	}
	return filepath.Join(dir, "lumen-companion", "companion.db")
}
