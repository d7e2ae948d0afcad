// Package clip owns the trimmed audio segment files extracted around pins:
// their deterministic naming, their materialization via an external trim, and
// their removal.
package clip

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Ext is the container extension of extracted clips.
const Ext = ".m4a"

// Path returns the deterministic clip path for a pin index, derived from the
// parent recording's path.
func Path(recordingPath string, index int) string {
	return fmt.Sprintf("%s.pin_%d%s", recordingPath, index, Ext)
}

// Remove deletes a clip file. Removing a missing file is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
