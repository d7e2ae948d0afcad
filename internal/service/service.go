// Package service wires the recorder, analysis pipeline, playback arbiter
// and session log behind one interface for the command layer.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinrec/pinrec/internal/analysis"
	"github.com/pinrec/pinrec/internal/capture"
	"github.com/pinrec/pinrec/internal/clip"
	"github.com/pinrec/pinrec/internal/config"
	"github.com/pinrec/pinrec/internal/correct"
	"github.com/pinrec/pinrec/internal/playback"
	"github.com/pinrec/pinrec/internal/session"
	"github.com/pinrec/pinrec/internal/store"
	"github.com/pinrec/pinrec/internal/transcribe"
)

// Service is the core pinrec service interface.
type Service interface {
	// Recording operations
	StartRecording() error
	Pin() error
	StopRecording() error
	AwaitAnalysis(ctx context.Context) (session.Snapshot, error)
	Reset() error
	Status() session.Snapshot

	// History operations
	History() ([]session.Session, error)
	DeletePin(sessionID string, pinIndex int) error
	DeleteMany(keys []store.PinKey) error

	// Playback operations
	PlayOriginal(sessionID string, pinIndex int) error
	PlayCorrection(sessionID string, pinIndex int) error
	StopPlayback()
	AwaitPlayback(ctx context.Context) error
	PlaybackActive() bool

	// Information operations
	LastError() string
	Notice() string
}

// Deps are the collaborators a service is assembled from; tests substitute
// fakes here.
type Deps struct {
	Capture session.Capture
	Analyze session.Analyzer
	Log     *store.Log
	Arbiter *playback.Arbiter
}

// New builds the production service from configuration.
func New(cfg *config.Config) (Service, error) {
	arbiter := playback.New(playback.ExecPlayer{}, playback.ExecSynthesizer{})

	var backing store.Backing
	switch cfg.Storage.Backend {
	case "sqlite":
		b, err := store.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session log: %w", err)
		}
		backing = b
	case "memory":
		backing = &store.MemoryBacking{}
	default:
		backing = store.NewFileBacking(cfg.Storage.Path)
	}

	pipeline := analysis.New(
		clip.NewSegmenter(nil),
		transcribe.NewClient(transcribe.Config{
			Endpoint: cfg.Proxy.WhisperEndpoint(),
			Model:    cfg.Proxy.WhisperModel,
			Language: cfg.Proxy.Language,
		}),
		correct.NewClient(correct.Config{
			Endpoint:      cfg.Proxy.ChatEndpoint(),
			Model:         cfg.Proxy.ChatModel,
			FallbackModel: cfg.Proxy.FallbackModel,
		}),
	)

	return NewWith(Deps{
		Capture: capture.NewFFmpeg(cfg.Output.Directory, cfg.Capture.InputFormat, cfg.Capture.Device),
		Analyze: pipeline.Analyze,
		Log:     store.NewLog(backing, arbiter),
		Arbiter: arbiter,
	}), nil
}

// NewWith assembles a service from explicit collaborators.
func NewWith(d Deps) Service {
	s := &pinrecService{
		log:     d.Log,
		arbiter: d.Arbiter,
	}
	s.recorder = session.NewRecorder(d.Capture, d.Analyze, session.Hooks{
		OnComplete: s.handleComplete,
		OnFailure:  s.handleFailure,
	})
	return s
}

type pinrecService struct {
	recorder *session.Recorder
	log      *store.Log
	arbiter  *playback.Arbiter

	mu        sync.RWMutex
	lastError string
	notice    string
	runErr    error
}

// StartRecording begins a new recording session.
func (s *pinrecService) StartRecording() error {
	s.clearMessages()
	if err := s.recorder.Start(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

// Pin marks the current moment in the active recording.
func (s *pinrecService) Pin() error {
	return s.recorder.Pin()
}

// StopRecording stops the session; with pins captured the analysis pipeline
// starts in the background and its completion appends the session to the log.
func (s *pinrecService) StopRecording() error {
	s.clearMessages()
	if err := s.recorder.Stop(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return err
	}
	return nil
}

// AwaitAnalysis blocks until the pending analysis run finishes, returning the
// final snapshot and the run's error if it aborted.
func (s *pinrecService) AwaitAnalysis(ctx context.Context) (session.Snapshot, error) {
	select {
	case <-ctx.Done():
		return s.recorder.Snapshot(), ctx.Err()
	case <-s.recorder.Done():
	}

	s.mu.RLock()
	err := s.runErr
	s.mu.RUnlock()
	return s.recorder.Snapshot(), err
}

// Reset stops playback and returns the recorder to idle. Always succeeds.
func (s *pinrecService) Reset() error {
	s.arbiter.StopAll()
	s.recorder.Reset()
	s.clearMessages()
	return nil
}

// Status returns the current recorder snapshot.
func (s *pinrecService) Status() session.Snapshot {
	return s.recorder.Snapshot()
}

// History returns persisted sessions, most recent first.
func (s *pinrecService) History() ([]session.Session, error) {
	return s.log.List()
}

// DeletePin removes one pin, cascading to its clip file and, when it was the
// session's last pin, to the session.
func (s *pinrecService) DeletePin(sessionID string, pinIndex int) error {
	return s.log.DeletePin(sessionID, pinIndex)
}

// DeleteMany removes a set of pins in one persisted write.
func (s *pinrecService) DeleteMany(keys []store.PinKey) error {
	return s.log.DeleteMany(keys)
}

// PlayOriginal plays the trimmed clip of a stored pin.
func (s *pinrecService) PlayOriginal(sessionID string, pinIndex int) error {
	pin, err := s.findPin(sessionID, pinIndex)
	if err != nil {
		return err
	}
	if pin.Analysis == nil || pin.Analysis.ClipPath == "" {
		return playback.ErrNoClip
	}
	return s.arbiter.PlayOriginal(sessionID, pinIndex, pin.Analysis.ClipPath)
}

// PlayCorrection speaks the corrected suggestion of a stored pin.
func (s *pinrecService) PlayCorrection(sessionID string, pinIndex int) error {
	pin, err := s.findPin(sessionID, pinIndex)
	if err != nil {
		return err
	}
	if pin.Analysis == nil || pin.Analysis.Suggestion == "" {
		return playback.ErrNoClip
	}
	return s.arbiter.PlayCorrection(sessionID, pinIndex, pin.Analysis.Suggestion)
}

// StopPlayback silences whichever channel is active.
func (s *pinrecService) StopPlayback() {
	s.arbiter.StopAll()
}

// AwaitPlayback blocks until the active playback finishes.
func (s *pinrecService) AwaitPlayback(ctx context.Context) error {
	return s.arbiter.Wait(ctx)
}

// PlaybackActive reports whether anything is audible.
func (s *pinrecService) PlaybackActive() bool {
	return s.arbiter.Active() != nil
}

func (s *pinrecService) findPin(sessionID string, pinIndex int) (session.Pin, error) {
	sess, err := s.log.Find(sessionID)
	if err != nil {
		return session.Pin{}, err
	}
	if sess == nil {
		return session.Pin{}, fmt.Errorf("session not found: %s", sessionID)
	}
	if pinIndex < 0 || pinIndex >= len(sess.Pins) {
		return session.Pin{}, fmt.Errorf("pin index %d out of range for session %s", pinIndex, sessionID)
	}
	return sess.Pins[pinIndex], nil
}

// handleComplete persists the finished session; called exactly once per
// completed recording with at least one pin.
func (s *pinrecService) handleComplete(sess session.Session) {
	if err := s.log.Append(sess); err != nil {
		s.setLastError(fmt.Sprintf("Failed to save session: %v", err))
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.notice = "AI correction completed for every pin."
	s.mu.Unlock()
	slog.Info("Session persisted", "session_id", sess.ID, "pins", len(sess.Pins))
}

// handleFailure records the aborted run; partial analyses stay on the
// snapshot but nothing is persisted.
func (s *pinrecService) handleFailure(err error) {
	s.mu.Lock()
	s.runErr = err
	s.mu.Unlock()
	s.setLastError(fmt.Sprintf("Pin analysis failed: %v", err))
}

// LastError returns the last error message (thread-safe).
func (s *pinrecService) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Notice returns the last confirmation message (thread-safe).
func (s *pinrecService) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

func (s *pinrecService) setLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	slog.Error("Service error occurred", "error_message", msg)
}

func (s *pinrecService) clearMessages() {
	s.mu.Lock()
	s.lastError = ""
	s.notice = ""
	s.runErr = nil
	s.mu.Unlock()
}
