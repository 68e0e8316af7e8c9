package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cybre/lumen-companion/internal/profile"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "companion",
		Short:         "Adaptive lighting companion",
		Long:          "companion runs the sensor-driven lighting companion: beat tracking, moods, ambient brightness and multi-device sync.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newProfileCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or reset the persisted personality",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved personality profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := profile.NewSQLiteStore(cfg.ProfilePath)
			if err != nil {
				return err
			}
			defer store.Close()

			p, found, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved profile")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "device:     %s\n", p.DeviceID)
			fmt.Fprintf(out, "trust:      %.2f\n", p.TrustScore)
			fmt.Fprintf(out, "last saved: %s\n", p.LastSavedAt.Format("2006-01-02 15:04:05"))

			traits := make([]string, 0, len(p.TraitCounters))
			for trait := range p.TraitCounters {
				traits = append(traits, trait)
			}
			sort.Strings(traits)
			for _, trait := range traits {
				fmt.Fprintf(out, "  %-24s %d\n", trait, p.TraitCounters[trait])
			}
			return nil
		},
	}

	var confirmed bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved personality and start fresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return eris.New("refusing to reset without --yes")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := profile.NewSQLiteStore(cfg.ProfilePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "profile reset")
			return nil
		},
	}
	reset.Flags().BoolVar(&confirmed, "yes", false, "confirm the reset")

	profileCmd.AddCommand(show, reset)
	return profileCmd
}
