package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var playCorrection bool

var playCmd = &cobra.Command{
	Use:   "play <session-id> <pin>",
	Short: "Play a pin's clip or speak its correction",
	Long: `Play the trimmed clip of a stored pin, or speak the AI correction
with --correction. Pin numbers match the history listing (starting at 1).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		pinNumber, err := strconv.Atoi(args[1])
		if err != nil || pinNumber < 1 {
			return fmt.Errorf("invalid pin number: %s", args[1])
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		if playCorrection {
			err = svc.PlayCorrection(sessionID, pinNumber-1)
		} else {
			err = svc.PlayOriginal(sessionID, pinNumber-1)
		}
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		// block until the clip or speech finishes
		return svc.AwaitPlayback(cmd.Context())
	},
}

func init() {
	playCmd.Flags().BoolVarP(&playCorrection, "correction", "c", false, "speak the AI correction instead of playing the clip")
}
