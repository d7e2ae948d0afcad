package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pinrec/pinrec/internal/session"
)

// ErrTrim is reported when the external trim utility exits non-success.
var ErrTrim = errors.New("audio trim failed")

// Trimmer materializes a window of an audio file into a new file.
type Trimmer interface {
	Trim(ctx context.Context, inPath, outPath string, startSec, durationSec int) error
}

// FFmpegTrimmer trims with a stream copy, no re-encode.
type FFmpegTrimmer struct{}

func (FFmpegTrimmer) Trim(ctx context.Context, inPath, outPath string, startSec, durationSec int) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.Itoa(startSec),
		"-t", strconv.Itoa(durationSec),
		"-i", inPath,
		"-acodec", "copy",
		"-y",
		outPath,
	)

	slog.Debug("Running FFmpeg for clip trim", "command", strings.Join(cmd.Args, " "))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg: %v\nOutput: %s", ErrTrim, err, string(output))
	}
	return nil
}

// Segmenter derives the window around a pin and produces its clip file.
type Segmenter struct {
	trim Trimmer
}

// NewSegmenter creates a segmenter; a nil trimmer selects FFmpeg.
func NewSegmenter(t Trimmer) *Segmenter {
	if t == nil {
		t = FFmpegTrimmer{}
	}
	return &Segmenter{trim: t}
}

// Segment extracts the [max(0, pinTime-15), pinTime] window of the recording
// into the clip file for the given pin index and returns the clip path.
func (s *Segmenter) Segment(ctx context.Context, recordingPath string, index, pinTime int) (string, error) {
	start, duration := session.Window(pinTime)
	outPath := Path(recordingPath, index)
	if err := s.trim.Trim(ctx, recordingPath, outPath, start, duration); err != nil {
		return "", err
	}
	return outPath, nil
}
