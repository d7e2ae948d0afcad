package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pinrec/pinrec/internal/session"
)

type countingStopper struct {
	calls int
}

func (c *countingStopper) StopAll() { c.calls++ }

func newTestLog(t *testing.T) (*Log, *countingStopper) {
	t.Helper()
	stopper := &countingStopper{}
	return NewLog(&MemoryBacking{}, stopper), stopper
}

func makeSession(t *testing.T, id string, pinCount int) session.Session {
	t.Helper()
	dir := t.TempDir()
	pins := make([]session.Pin, pinCount)
	for i := range pins {
		clipPath := filepath.Join(dir, "rec.m4a.pin_"+string(rune('0'+i))+".m4a")
		if err := os.WriteFile(clipPath, []byte("clip"), 0644); err != nil {
			t.Fatal(err)
		}
		pins[i] = session.Pin{
			PinTime: (i + 1) * 20,
			Analysis: &session.Analysis{
				Original:   "some words",
				Suggestion: "better words",
				ClipPath:   clipPath,
			},
		}
	}
	return session.Session{
		ID:        id,
		Date:      time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		AudioPath: filepath.Join(dir, "rec.m4a"),
		Pins:      pins,
	}
}

func clipExists(t *testing.T, s session.Session, pinIndex int) bool {
	t.Helper()
	_, err := os.Stat(s.Pins[pinIndex].Analysis.ClipPath)
	return err == nil
}

func TestAppendAndList(t *testing.T) {
	log, _ := newTestLog(t)

	first := makeSession(t, "s1", 1)
	second := makeSession(t, "s2", 2)
	if err := log.Append(first); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := log.Append(second); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	// most recent first for display
	sessions, err := log.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "s2" || sessions[1].ID != "s1" {
		t.Errorf("list order = [%s, %s], want [s2, s1]", sessions[0].ID, sessions[1].ID)
	}
	if len(sessions[0].Pins) != 2 || sessions[0].Pins[0].Analysis == nil {
		t.Errorf("pins lost through persistence round trip: %+v", sessions[0].Pins)
	}
}

func TestListEmpty(t *testing.T) {
	log, _ := newTestLog(t)
	sessions, err := log.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(sessions))
	}
}

func TestFind(t *testing.T) {
	log, _ := newTestLog(t)
	want := makeSession(t, "s1", 1)
	if err := log.Append(want); err != nil {
		t.Fatal(err)
	}

	got, err := log.Find("s1")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if got == nil || got.ID != "s1" {
		t.Fatalf("Find(s1) = %+v", got)
	}

	missing, err := log.Find("nope")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if missing != nil {
		t.Errorf("Find(nope) = %+v, want nil", missing)
	}
}

func TestDeletePin(t *testing.T) {
	log, stopper := newTestLog(t)
	sess := makeSession(t, "s1", 2)
	if err := log.Append(sess); err != nil {
		t.Fatal(err)
	}

	if err := log.DeletePin("s1", 0); err != nil {
		t.Fatalf("DeletePin() error: %v", err)
	}
	if stopper.calls != 1 {
		t.Errorf("playback stopped %d times, want 1", stopper.calls)
	}

	// pin 0's clip is gone, pin 1's survives
	if clipExists(t, sess, 0) {
		t.Error("deleted pin's clip file still exists")
	}
	if !clipExists(t, sess, 1) {
		t.Error("surviving pin's clip file was removed")
	}

	got, err := log.Find("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got.Pins) != 1 {
		t.Fatalf("session after delete = %+v, want 1 pin", got)
	}
	if got.Pins[0].PinTime != sess.Pins[1].PinTime {
		t.Errorf("wrong pin survived: %+v", got.Pins[0])
	}
}

func TestDeleteLastPinRemovesSession(t *testing.T) {
	log, _ := newTestLog(t)
	if err := log.Append(makeSession(t, "s1", 1)); err != nil {
		t.Fatal(err)
	}

	if err := log.DeletePin("s1", 0); err != nil {
		t.Fatalf("DeletePin() error: %v", err)
	}

	got, err := log.Find("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("session with no pins still stored: %+v", got)
	}
}

func TestDeletePinUnknown(t *testing.T) {
	log, _ := newTestLog(t)
	if err := log.Append(makeSession(t, "s1", 1)); err != nil {
		t.Fatal(err)
	}

	// unknown session and out-of-range index are no-ops
	if err := log.DeletePin("nope", 0); err != nil {
		t.Errorf("DeletePin(unknown session) error: %v", err)
	}
	if err := log.DeletePin("s1", 5); err != nil {
		t.Errorf("DeletePin(out of range) error: %v", err)
	}

	sessions, _ := log.List()
	if len(sessions) != 1 || len(sessions[0].Pins) != 1 {
		t.Errorf("log modified by no-op delete: %+v", sessions)
	}
}

func TestDeleteManyOriginalIndices(t *testing.T) {
	log, stopper := newTestLog(t)
	sess := makeSession(t, "s1", 3)
	other := makeSession(t, "s2", 1)
	if err := log.Append(sess); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(other); err != nil {
		t.Fatal(err)
	}

	// indices 0 and 2 refer to positions before any removal happens
	err := log.DeleteMany([]PinKey{
		{SessionID: "s1", PinIndex: 0},
		{SessionID: "s1", PinIndex: 2},
	})
	if err != nil {
		t.Fatalf("DeleteMany() error: %v", err)
	}
	if stopper.calls != 1 {
		t.Errorf("playback stopped %d times, want 1", stopper.calls)
	}

	got, err := log.Find("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got.Pins) != 1 {
		t.Fatalf("session after bulk delete = %+v, want 1 pin", got)
	}
	if got.Pins[0].PinTime != sess.Pins[1].PinTime {
		t.Errorf("wrong pin survived index-shift handling: %+v", got.Pins[0])
	}

	if clipExists(t, sess, 0) || clipExists(t, sess, 2) {
		t.Error("deleted pins' clip files still exist")
	}
	if !clipExists(t, sess, 1) {
		t.Error("surviving pin's clip file was removed")
	}

	// the untouched session is intact
	untouched, _ := log.Find("s2")
	if untouched == nil || len(untouched.Pins) != 1 {
		t.Errorf("unrelated session modified: %+v", untouched)
	}
}

func TestDeleteManyWholeSession(t *testing.T) {
	log, _ := newTestLog(t)
	if err := log.Append(makeSession(t, "s1", 2)); err != nil {
		t.Fatal(err)
	}

	err := log.DeleteMany([]PinKey{
		{SessionID: "s1", PinIndex: 0},
		{SessionID: "s1", PinIndex: 1},
	})
	if err != nil {
		t.Fatalf("DeleteMany() error: %v", err)
	}

	got, _ := log.Find("s1")
	if got != nil {
		t.Errorf("fully emptied session still stored: %+v", got)
	}
}

func TestDeleteManyDuplicateAndUnknownKeys(t *testing.T) {
	log, _ := newTestLog(t)
	if err := log.Append(makeSession(t, "s1", 2)); err != nil {
		t.Fatal(err)
	}

	err := log.DeleteMany([]PinKey{
		{SessionID: "s1", PinIndex: 1},
		{SessionID: "s1", PinIndex: 1},
		{SessionID: "nope", PinIndex: 0},
		{SessionID: "s1", PinIndex: 9},
	})
	if err != nil {
		t.Fatalf("DeleteMany() error: %v", err)
	}

	got, _ := log.Find("s1")
	if got == nil || len(got.Pins) != 1 {
		t.Fatalf("session = %+v, want 1 remaining pin", got)
	}
}

func TestDeleteManyEmpty(t *testing.T) {
	log, stopper := newTestLog(t)
	if err := log.DeleteMany(nil); err != nil {
		t.Fatalf("DeleteMany(nil) error: %v", err)
	}
	if stopper.calls != 0 {
		t.Errorf("playback stopped for empty key set")
	}
}

func TestLogCorruptData(t *testing.T) {
	backing := &MemoryBacking{}
	backing.Save([]byte("{not json"))
	log := NewLog(backing, nil)

	_, err := log.List()
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("List() error = %v, want ErrStorage", err)
	}
}

func TestFileBackingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sessions.json")
	backing := NewFileBacking(path)

	// missing file reads as empty, not an error
	data, err := backing.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error: %v", err)
	}
	if data != nil {
		t.Errorf("Load() on missing file = %q, want nil", data)
	}

	// save creates parent directories
	if err := backing.Save([]byte(`[{"sessionId":"s1"}]`)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data, err = backing.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(data) != `[{"sessionId":"s1"}]` {
		t.Errorf("Load() = %q", data)
	}

	// a log over the file backing persists across instances
	log := NewLog(NewFileBacking(path), nil)
	sessions, err := log.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Errorf("sessions = %+v", sessions)
	}
}
