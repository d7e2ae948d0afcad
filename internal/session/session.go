package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WindowSeconds is the length of the clip extracted before each pin.
const WindowSeconds = 15

// SilenceMarker is the placeholder stored when the transcriber returned no
// speech text for a clip.
const SilenceMarker = "- - -"

// Analysis is the transcription and correction result for one pin.
// Immutable once assigned; ClipPath points at the trimmed audio segment.
type Analysis struct {
	Original   string `json:"original"`
	Suggestion string `json:"suggestion"`
	ClipPath   string `json:"clipUri"`
}

// Pin is a user-marked moment within a recording. PinTime is the elapsed
// second count from recording start. Analysis is nil until the pipeline
// assigns it.
type Pin struct {
	PinTime  int       `json:"pinTime"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

// Session is one completed recording with its pins. A session only exists
// while it has at least one pin.
type Session struct {
	ID        string    `json:"sessionId"`
	Date      time.Time `json:"date"`
	AudioPath string    `json:"filePath"`
	Pins      []Pin     `json:"pinned"`
}

// NewID returns an opaque unique session identifier.
func NewID() string {
	return uuid.NewString()
}

// Window derives the clip window for a pin time: [max(0, t-15), t].
// Returns the window start and duration in seconds.
func Window(pinTime int) (start, duration int) {
	start = pinTime - WindowSeconds
	if start < 0 {
		start = 0
	}
	return start, pinTime - start
}

// An original text containing "$" (the silence-marker convention from the
// transcription prompt) or an isolated "." carries no real speech.
var isolatedDot = regexp.MustCompile(`(?:^|\s)\.(?:\s|$)`)

// DisplayOriginal maps raw transcribed text to what the history view shows.
// The stored text is left untouched; this is a presentation rule only.
func DisplayOriginal(text string) string {
	if text == "" {
		return SilenceMarker
	}
	if strings.Contains(text, "$") || isolatedDot.MatchString(text) {
		return SilenceMarker
	}
	return text
}

// FormatClock renders a second count as mm:ss.
func FormatClock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

// FormatPinRange renders the clip window of a pin for display.
func FormatPinRange(pinTime int) string {
	start, _ := Window(pinTime)
	return fmt.Sprintf("%s - %s", FormatClock(start), FormatClock(pinTime))
}

// FormatRelativeDate renders a session date as a relative age for recent
// sessions and an absolute date for older ones.
func FormatRelativeDate(t time.Time, now time.Time) string {
	if t.IsZero() || t.After(now) {
		return "Unknown Time"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006/01/02")
}
