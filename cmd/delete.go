package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pinrec/pinrec/internal/store"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>:<pin> [...]",
	Short: "Delete stored pins",
	Long: `Delete one or more stored pins, given as session-id:pin pairs. Pin
numbers match the history listing (starting at 1). Deleting a session's
last pin removes the whole session; clip files are removed with their pins.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := make([]store.PinKey, 0, len(args))
		for _, arg := range args {
			key, err := parsePinKey(arg)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		if len(keys) == 1 {
			err = svc.DeletePin(keys[0].SessionID, keys[0].PinIndex)
		} else {
			err = svc.DeleteMany(keys)
		}
		if err != nil {
			return fmt.Errorf("failed to delete: %w", err)
		}

		fmt.Printf("Deleted %d pin(s).\n", len(keys))
		return nil
	},
}

func parsePinKey(arg string) (store.PinKey, error) {
	idx := strings.LastIndex(arg, ":")
	if idx <= 0 || idx == len(arg)-1 {
		return store.PinKey{}, fmt.Errorf("invalid pin reference %q, want session-id:pin", arg)
	}
	pinNumber, err := strconv.Atoi(arg[idx+1:])
	if err != nil || pinNumber < 1 {
		return store.PinKey{}, fmt.Errorf("invalid pin number in %q", arg)
	}
	return store.PinKey{SessionID: arg[:idx], PinIndex: pinNumber - 1}, nil
}
