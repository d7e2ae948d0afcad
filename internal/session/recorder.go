package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the recording lifecycle state.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateStopped   State = "STOPPED"
)

// ErrPermissionDenied is returned by Start when the microphone is not
// authorized for capture.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Capture is the audio subsystem the recorder drives.
type Capture interface {
	// Authorize verifies the capture device is accessible.
	Authorize() error
	// Start begins recording the full-session artifact.
	Start() error
	// Stop finalizes the artifact and returns its path.
	Stop() (string, error)
}

// Analyzer runs the per-pin analysis after a recording stops. It returns the
// pins with whatever analyses were assigned before the first failure.
type Analyzer func(ctx context.Context, audioPath string, pins []Pin) ([]Pin, error)

// Hooks receive the outcome of an analysis run. OnComplete fires exactly once
// per completed recording with at least one pin.
type Hooks struct {
	OnComplete func(Session)
	OnFailure  func(error)
}

// Snapshot is an immutable view of the recorder for the presentation layer.
type Snapshot struct {
	State        State
	Elapsed      int
	Pins         []Pin
	AudioPath    string
	Analyzing    bool
	Notification string
}

// Recorder is the recording session state machine:
// Idle -> Recording -> Stopped -> Idle, with Reset returning to Idle from
// any state.
type Recorder struct {
	mu      sync.Mutex
	capture Capture
	analyze Analyzer
	hooks   Hooks

	state        State
	startedAt    time.Time
	elapsed      int
	pins         []Pin
	audioPath    string
	analyzing    bool
	notification string

	notifyTimer *time.Timer
	tickerStop  chan struct{}
	runCancel   context.CancelFunc
	runDone     chan struct{}
	generation  int

	now func() time.Time
}

// NewRecorder creates an idle recorder. analyze may be nil, in which case
// stopping a recording never schedules an analysis run.
func NewRecorder(c Capture, analyze Analyzer, hooks Hooks) *Recorder {
	return &Recorder{
		capture: c,
		analyze: analyze,
		hooks:   hooks,
		state:   StateIdle,
		now:     time.Now,
	}
}

// Start transitions Idle -> Recording. It clears all transient pin and
// elapsed state from a previous session and begins elapsed-time tracking at
// one-second resolution.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("can only start recording from idle state, current: %s", r.state)
	}

	if err := r.capture.Authorize(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	r.pins = nil
	r.elapsed = 0
	r.audioPath = ""
	r.notification = ""
	r.analyzing = false
	r.runDone = nil

	if err := r.capture.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	r.startedAt = r.now()
	r.state = StateRecording
	r.tickerStop = make(chan struct{})
	go r.trackElapsed(r.tickerStop)

	slog.Info("Recording started")
	return nil
}

func (r *Recorder) trackElapsed(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state == StateRecording {
				r.elapsed = int(r.now().Sub(r.startedAt).Seconds())
			}
			r.mu.Unlock()
		}
	}
}

// Pin appends a new pin at the current elapsed time. Valid only while
// recording. The transient notification auto-clears after one second.
func (r *Recorder) Pin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return fmt.Errorf("pins can only be captured while recording, current: %s", r.state)
	}

	pinTime := int(r.now().Sub(r.startedAt).Seconds())
	r.pins = append(r.pins, Pin{PinTime: pinTime})

	msg := fmt.Sprintf("Pinned #%d!!", len(r.pins))
	r.notification = msg
	if r.notifyTimer != nil {
		r.notifyTimer.Stop()
	}
	r.notifyTimer = time.AfterFunc(time.Second, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.notification == msg {
			r.notification = ""
		}
	})

	slog.Debug("Pin captured", "index", len(r.pins)-1, "pin_time", pinTime)
	return nil
}

// Stop transitions Recording -> Stopped, finalizes the recording artifact and,
// when at least one pin was captured, schedules the analysis run
// asynchronously. The Stopped state is pending-analysis until the run
// finishes; Done reports completion.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return fmt.Errorf("no recording in progress")
	}

	close(r.tickerStop)
	r.tickerStop = nil
	r.elapsed = int(r.now().Sub(r.startedAt).Seconds())

	r.state = StateStopped
	r.runDone = make(chan struct{})

	path, err := r.capture.Stop()
	if err != nil {
		close(r.runDone)
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	r.audioPath = path

	if len(r.pins) == 0 || r.analyze == nil {
		close(r.runDone)
		slog.Info("Recording stopped", "audio", path, "pins", 0)
		return nil
	}

	r.analyzing = true
	ctx, cancel := context.WithCancel(context.Background())
	r.runCancel = cancel
	r.generation++

	pins := make([]Pin, len(r.pins))
	copy(pins, r.pins)
	go r.run(ctx, r.generation, path, pins, r.runDone)

	slog.Info("Recording stopped, analysis scheduled", "audio", path, "pins", len(pins))
	return nil
}

func (r *Recorder) run(ctx context.Context, gen int, audioPath string, pins []Pin, done chan struct{}) {
	defer close(done)

	result, err := r.analyze(ctx, audioPath, pins)

	r.mu.Lock()
	if gen != r.generation || r.state != StateStopped {
		// The session was reset while the run was in flight; whatever the
		// calls produced is discarded.
		r.mu.Unlock()
		slog.Debug("Discarding analysis results from reset session")
		return
	}
	r.pins = result
	r.analyzing = false
	r.runCancel = nil
	r.mu.Unlock()

	if err != nil {
		slog.Error("Pin analysis failed", "error", err)
		if r.hooks.OnFailure != nil {
			r.hooks.OnFailure(err)
		}
		return
	}

	if r.hooks.OnComplete != nil {
		r.hooks.OnComplete(Session{
			ID:        NewID(),
			Date:      r.now(),
			AudioPath: audioPath,
			Pins:      result,
		})
	}
}

// Reset returns to Idle from any state, clearing all pin, analysis and
// elapsed state. A run in flight keeps its already-issued calls but no
// further pins are scheduled and nothing is persisted. Always succeeds.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runCancel != nil {
		r.runCancel()
		r.runCancel = nil
	}
	if r.notifyTimer != nil {
		r.notifyTimer.Stop()
		r.notifyTimer = nil
	}
	if r.tickerStop != nil {
		close(r.tickerStop)
		r.tickerStop = nil
	}
	if r.state == StateRecording {
		if _, err := r.capture.Stop(); err != nil {
			slog.Warn("Failed to stop capture during reset", "error", err)
		}
	}

	r.generation++
	r.state = StateIdle
	r.pins = nil
	r.elapsed = 0
	r.audioPath = ""
	r.notification = ""
	r.analyzing = false
	r.runDone = nil

	slog.Debug("Recorder reset to idle")
}

// Done returns a channel closed when the analysis run scheduled by the last
// Stop has finished. When no run is pending the channel is already closed.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runDone == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.runDone
}

// Snapshot returns an immutable copy of the current recorder state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	pins := make([]Pin, len(r.pins))
	copy(pins, r.pins)
	for i := range pins {
		if pins[i].Analysis != nil {
			a := *pins[i].Analysis
			pins[i].Analysis = &a
		}
	}

	return Snapshot{
		State:        r.state,
		Elapsed:      r.elapsed,
		Pins:         pins,
		AudioPath:    r.audioPath,
		Analyzing:    r.analyzing,
		Notification: r.notification,
	}
}
