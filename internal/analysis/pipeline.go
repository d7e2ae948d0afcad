// Package analysis sequences segmentation, transcription and correction for
// the pins of a stopped recording.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pinrec/pinrec/internal/session"
)

// Segmenter materializes the clip for one pin.
type Segmenter interface {
	Segment(ctx context.Context, recordingPath string, index, pinTime int) (string, error)
}

// Transcriber turns a clip file into raw text.
type Transcriber interface {
	Transcribe(ctx context.Context, clipPath string) (string, error)
}

// Corrector turns raw text into a corrected suggestion.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// Pipeline processes pins strictly in capture order, one at a time. The
// sequential walk bounds load on the remote endpoints and the local trim
// utility and keeps completion order deterministic.
type Pipeline struct {
	segmenter   Segmenter
	transcriber Transcriber
	corrector   Corrector
}

// New creates a pipeline from its three stages.
func New(s Segmenter, t Transcriber, c Corrector) *Pipeline {
	return &Pipeline{segmenter: s, transcriber: t, corrector: c}
}

// Analyze assigns an analysis to each pin in order. The first failure aborts
// the remaining pins; the returned slice carries every analysis assigned up
// to that point alongside the error. Cancelling ctx prevents further pins
// from being scheduled but never interrupts the pin already in flight.
func (p *Pipeline) Analyze(ctx context.Context, recordingPath string, pins []session.Pin) ([]session.Pin, error) {
	out := make([]session.Pin, len(pins))
	copy(out, pins)

	for i := range out {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		callCtx := context.WithoutCancel(ctx)

		clipPath, err := p.segmenter.Segment(callCtx, recordingPath, i, out[i].PinTime)
		if err != nil {
			return out, fmt.Errorf("segmenting pin %d: %w", i, err)
		}

		text, err := p.transcriber.Transcribe(callCtx, clipPath)
		if err != nil {
			return out, fmt.Errorf("transcribing pin %d: %w", i, err)
		}

		suggestion, err := p.corrector.Correct(callCtx, text)
		if err != nil {
			return out, fmt.Errorf("correcting pin %d: %w", i, err)
		}

		out[i].Analysis = &session.Analysis{
			Original:   text,
			Suggestion: suggestion,
			ClipPath:   clipPath,
		}
		slog.Debug("Pin analyzed", "index", i, "clip", clipPath)
	}

	return out, nil
}
