package cmd

import (
	"fmt"
	"time"

	"github.com/pinrec/pinrec/internal/session"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored sessions and their pins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		sessions, err := svc.History()
		if err != nil {
			return fmt.Errorf("failed to load session log: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded yet.")
			return nil
		}

		now := time.Now()
		for _, sess := range sessions {
			fmt.Printf("%s  %s  (%d pin(s))\n", sess.ID, session.FormatRelativeDate(sess.Date, now), len(sess.Pins))
			printPins(sess.Pins)
		}
		return nil
	},
}
