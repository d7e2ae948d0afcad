package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pinrec/pinrec/internal/config"
	"github.com/pinrec/pinrec/internal/service"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "pinrec",
	Short: "Pin-based speech recording and correction tool",
	Long: `PinRec records audio sessions and lets you pin the moments worth
reviewing. When a recording stops, every pin is trimmed to a short clip,
transcribed, and run through an AI grammar correction.

Stored sessions can be browsed, replayed (original clip or spoken
correction), and pruned pin by pin.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		// config init must be able to run before a config file exists
		if cmd.Name() == "init" {
			return nil
		}

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pinrec.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug (includes ffmpeg output)")

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(configCmd)
}

// newService builds the production service from the loaded config.
func newService() (service.Service, error) {
	slog.Debug("Creating service instance")
	svc, err := service.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

// setupLogging configures slog based on the verbose level. Debug level also
// surfaces the buffered ffmpeg output lines.
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
