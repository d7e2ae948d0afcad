package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pinrec/pinrec/internal/session"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a session and pin moments for analysis",
	Long: `Record audio while marking moments with pins. Press Enter or type 'p'
to drop a pin at the current time, type 's' to stop.

After stopping, each pinned moment is trimmed to a clip, transcribed, and
corrected; the finished session is saved to the session log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// pins need the relay; refuse before touching the microphone
		if err := cfg.RequireProxy(); err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		slog.Info("Starting recording")
		if err := svc.StartRecording(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		fmt.Println("Recording... [Enter/p] pin  [s] stop")

		// Ctrl+C discards the session instead of leaving ffmpeg running
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- strings.TrimSpace(strings.ToLower(scanner.Text()))
			}
			close(lines)
		}()

	loop:
		for {
			select {
			case <-sigChan:
				slog.Info("Interrupted, discarding session")
				return svc.Reset()
			case line, ok := <-lines:
				if !ok {
					break loop
				}
				switch line {
				case "", "p":
					if err := svc.Pin(); err != nil {
						slog.Error("Pin failed", "error", err)
						continue
					}
					snap := svc.Status()
					n := len(snap.Pins)
					fmt.Printf("Pinned #%d at %s\n", n, session.FormatClock(snap.Pins[n-1].PinTime))
				case "s", "stop", "q":
					break loop
				default:
					fmt.Println("[Enter/p] pin  [s] stop")
				}
			}
		}

		slog.Info("Stopping recording")
		if err := svc.StopRecording(); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		snap := svc.Status()
		if len(snap.Pins) == 0 {
			fmt.Println("No pins captured, nothing to analyze.")
			return svc.Reset()
		}

		fmt.Printf("Analyzing %d pin(s)...\n", len(snap.Pins))
		snap, err = svc.AwaitAnalysis(context.Background())
		if err != nil {
			slog.Error("Analysis aborted", "error", err)
		}

		printPins(snap.Pins)
		if msg := svc.LastError(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		if err != nil {
			return err
		}
		fmt.Println(svc.Notice())
		return nil
	},
}

// printPins renders each analyzed pin the way the history listing does.
func printPins(pins []session.Pin) {
	for i, pin := range pins {
		fmt.Printf("  #%d  %s\n", i+1, session.FormatPinRange(pin.PinTime))
		if pin.Analysis == nil {
			fmt.Println("      (not analyzed)")
			continue
		}
		fmt.Printf("      heard:      %s\n", session.DisplayOriginal(pin.Analysis.Original))
		fmt.Printf("      suggestion: %s\n", pin.Analysis.Suggestion)
	}
}
