// Package store persists completed sessions as an ordered log under one
// logical key and owns the cascading deletion of pins, sessions and their
// clip files.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pinrec/pinrec/internal/clip"
	"github.com/pinrec/pinrec/internal/session"
)

// ErrStorage is reported when reading or writing the persisted log fails.
var ErrStorage = errors.New("session log storage failed")

// PinKey identifies one pin for bulk deletion, by its original index within
// the session at the time the keys were collected.
type PinKey struct {
	SessionID string
	PinIndex  int
}

// Stopper is consulted before any deletion so an audible clip is never
// removed mid-play.
type Stopper interface {
	StopAll()
}

// Log is the session log store. Read-modify-write is not locked: a single
// active writer is assumed, and concurrent modification from two flows at
// once is not supported.
type Log struct {
	backing  Backing
	playback Stopper // may be nil
}

// NewLog creates a session log over the given backing. playback may be nil.
func NewLog(b Backing, playback Stopper) *Log {
	return &Log{backing: b, playback: playback}
}

func (l *Log) load() ([]session.Session, error) {
	data, err := l.backing.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrStorage, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []session.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrStorage, err)
	}
	return sessions, nil
}

func (l *Log) save(sessions []session.Session) error {
	if sessions == nil {
		sessions = []session.Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	if err := l.backing.Save(data); err != nil {
		return fmt.Errorf("%w: save: %v", ErrStorage, err)
	}
	return nil
}

// Append adds a completed session to the end of the log, keeping storage
// order chronological.
func (l *Log) Append(s session.Session) error {
	sessions, err := l.load()
	if err != nil {
		return err
	}
	sessions = append(sessions, s)
	return l.save(sessions)
}

// List returns the sessions in most-recent-first order for display. Storage
// order is not touched.
func (l *Log) List() ([]session.Session, error) {
	sessions, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make([]session.Session, len(sessions))
	for i, s := range sessions {
		out[len(sessions)-1-i] = s
	}
	return out, nil
}

// Find returns the stored session with the given id, or nil.
func (l *Log) Find(sessionID string) (*session.Session, error) {
	sessions, err := l.load()
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == sessionID {
			s := sessions[i]
			return &s, nil
		}
	}
	return nil, nil
}

// DeletePin removes one pin and its clip file. The session itself is removed
// when its last pin goes. An unknown session or index is a no-op.
func (l *Log) DeletePin(sessionID string, pinIndex int) error {
	if l.playback != nil {
		l.playback.StopAll()
	}

	sessions, err := l.load()
	if err != nil {
		return err
	}

	idx := -1
	for i := range sessions {
		if sessions[i].ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 || pinIndex < 0 || pinIndex >= len(sessions[idx].Pins) {
		return nil
	}

	removeClipFile(sessions[idx].Pins[pinIndex])

	sessions[idx].Pins = append(sessions[idx].Pins[:pinIndex], sessions[idx].Pins[pinIndex+1:]...)
	if len(sessions[idx].Pins) == 0 {
		sessions = append(sessions[:idx], sessions[idx+1:]...)
	}

	return l.save(sessions)
}

// DeleteMany removes a set of pins identified by their original indices and
// persists the log once. Marking first and filtering after keeps earlier
// deletions within a session from shifting the indices of later ones.
func (l *Log) DeleteMany(keys []PinKey) error {
	if len(keys) == 0 {
		return nil
	}
	if l.playback != nil {
		l.playback.StopAll()
	}

	sessions, err := l.load()
	if err != nil {
		return err
	}

	// Phase one: mark.
	marked := make(map[string]map[int]bool)
	for _, key := range keys {
		for i := range sessions {
			if sessions[i].ID != key.SessionID {
				continue
			}
			if key.PinIndex < 0 || key.PinIndex >= len(sessions[i].Pins) {
				break
			}
			if marked[key.SessionID] == nil {
				marked[key.SessionID] = make(map[int]bool)
			}
			if !marked[key.SessionID][key.PinIndex] {
				marked[key.SessionID][key.PinIndex] = true
				removeClipFile(sessions[i].Pins[key.PinIndex])
			}
			break
		}
	}

	// Phase two: filter marked pins, then sessions left empty.
	var remaining []session.Session
	for _, s := range sessions {
		dead := marked[s.ID]
		if dead == nil {
			remaining = append(remaining, s)
			continue
		}
		var pins []session.Pin
		for i, p := range s.Pins {
			if !dead[i] {
				pins = append(pins, p)
			}
		}
		if len(pins) > 0 {
			s.Pins = pins
			remaining = append(remaining, s)
		}
	}

	return l.save(remaining)
}

// removeClipFile is best-effort: the metadata is the source of truth and clip
// files are disposable cache artifacts, so a file-system failure is logged
// and swallowed.
func removeClipFile(p session.Pin) {
	if p.Analysis == nil || p.Analysis.ClipPath == "" {
		return
	}
	if err := clip.Remove(p.Analysis.ClipPath); err != nil {
		slog.Warn("Failed to remove clip file", "path", p.Analysis.ClipPath, "error", err)
	}
}
