// Package playback arbitrates the single audible output slot shared by every
// screen: at most one source, original clip or synthesized correction, plays
// at any instant.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrBusy is returned when a different pin's channel is active; the user
	// must stop it first, there is no preemption across pins.
	ErrBusy = errors.New("another pin is playing")
	// ErrNoClip is returned when the pin has nothing to play.
	ErrNoClip = errors.New("nothing to play for pin")
)

// Channel distinguishes the two audible sources of a pin.
type Channel string

const (
	ChannelOriginal   Channel = "original"
	ChannelCorrection Channel = "correction"
)

// Handle identifies which pin and channel is currently audible.
type Handle struct {
	SessionID string
	PinIndex  int
	Channel   Channel
}

// Playback is one running audio source. Done is closed exactly once, at
// natural end or after Stop.
type Playback interface {
	Done() <-chan struct{}
	Stop()
}

// Player plays a decoded audio file.
type Player interface {
	Play(path string) (Playback, error)
}

// Synthesizer speaks a suggestion text aloud.
type Synthesizer interface {
	Speak(text string) (Playback, error)
}

type active struct {
	handle   Handle
	playback Playback
}

// Arbiter holds the single mutable playback slot.
type Arbiter struct {
	mu     sync.Mutex
	player Player
	synth  Synthesizer
	active *active
}

// New creates an arbiter over the given output channels.
func New(player Player, synth Synthesizer) *Arbiter {
	return &Arbiter{player: player, synth: synth}
}

// PlayOriginal starts clip playback for a pin. A second call for the same
// pin's original channel stops it instead. Any other pin being audible fails
// with ErrBusy; an empty clip path fails with ErrNoClip.
func (a *Arbiter) PlayOriginal(sessionID string, pinIndex int, clipPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if clipPath == "" {
		return ErrNoClip
	}
	if act := a.active; act != nil {
		if act.handle.SessionID != sessionID || act.handle.PinIndex != pinIndex {
			return ErrBusy
		}
		wasOriginal := act.handle.Channel == ChannelOriginal
		a.stopLocked()
		if wasOriginal {
			// Toggle: same pin, same channel.
			return nil
		}
	}

	pb, err := a.player.Play(clipPath)
	if err != nil {
		return err
	}
	a.startLocked(Handle{SessionID: sessionID, PinIndex: pinIndex, Channel: ChannelOriginal}, pb)
	return nil
}

// PlayCorrection speaks a pin's suggestion. A different pin's correction
// channel being active fails with ErrBusy; an active original channel, for
// any pin, is stopped first since only one audible channel is allowed. A
// second call for the same pin's correction channel stops it.
func (a *Arbiter) PlayCorrection(sessionID string, pinIndex int, suggestion string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if suggestion == "" {
		return ErrNoClip
	}
	if act := a.active; act != nil {
		switch act.handle.Channel {
		case ChannelCorrection:
			if act.handle.SessionID != sessionID || act.handle.PinIndex != pinIndex {
				return ErrBusy
			}
			a.stopLocked()
			return nil
		case ChannelOriginal:
			a.stopLocked()
		}
	}

	pb, err := a.synth.Speak(suggestion)
	if err != nil {
		return err
	}
	a.startLocked(Handle{SessionID: sessionID, PinIndex: pinIndex, Channel: ChannelCorrection}, pb)
	return nil
}

// StopAll stops and releases whichever channel is active. Idempotent.
func (a *Arbiter) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		a.stopLocked()
	}
}

// Wait blocks until the active playback ends, by natural end or stop. When
// nothing is audible it returns immediately.
func (a *Arbiter) Wait(ctx context.Context) error {
	a.mu.Lock()
	act := a.active
	a.mu.Unlock()

	if act == nil {
		return nil
	}
	select {
	case <-act.playback.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the handle of the audible source, or nil when silent.
func (a *Arbiter) Active() *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return nil
	}
	h := a.active.handle
	return &h
}

func (a *Arbiter) startLocked(h Handle, pb Playback) {
	a.active = &active{handle: h, playback: pb}
	go a.watch(pb)
	slog.Debug("Playback started", "session", h.SessionID, "pin", h.PinIndex, "channel", h.Channel)
}

// watch clears the slot when playback reaches its natural end, unless the
// slot was already handed to a newer playback.
func (a *Arbiter) watch(pb Playback) {
	<-pb.Done()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil && a.active.playback == pb {
		a.active = nil
	}
}

func (a *Arbiter) stopLocked() {
	act := a.active
	a.active = nil
	act.playback.Stop()
	slog.Debug("Playback stopped", "session", act.handle.SessionID, "pin", act.handle.PinIndex, "channel", act.handle.Channel)
}
