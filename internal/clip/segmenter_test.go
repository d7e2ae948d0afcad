package clip

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// stubTrimmer records the arguments of each Trim call.
type stubTrimmer struct {
	calls []trimCall
	err   error
}

type trimCall struct {
	inPath, outPath       string
	startSec, durationSec int
}

func (s *stubTrimmer) Trim(ctx context.Context, inPath, outPath string, startSec, durationSec int) error {
	s.calls = append(s.calls, trimCall{inPath, outPath, startSec, durationSec})
	return s.err
}

func TestPath(t *testing.T) {
	tests := []struct {
		recording string
		index     int
		want      string
	}{
		{"/audio/rec_20260315_120000.m4a", 0, "/audio/rec_20260315_120000.m4a.pin_0.m4a"},
		{"/audio/rec_20260315_120000.m4a", 3, "/audio/rec_20260315_120000.m4a.pin_3.m4a"},
		{"session.m4a", 1, "session.m4a.pin_1.m4a"},
	}

	for _, tt := range tests {
		if got := Path(tt.recording, tt.index); got != tt.want {
			t.Errorf("Path(%q, %d) = %q, want %q", tt.recording, tt.index, got, tt.want)
		}
	}
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name         string
		pinTime      int
		index        int
		wantStart    int
		wantDuration int
	}{
		{"full window", 40, 0, 25, 15},
		{"clamped window", 8, 1, 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trimmer := &stubTrimmer{}
			seg := NewSegmenter(trimmer)

			got, err := seg.Segment(context.Background(), "/audio/rec.m4a", tt.index, tt.pinTime)
			if err != nil {
				t.Fatalf("Segment() error: %v", err)
			}

			want := Path("/audio/rec.m4a", tt.index)
			if got != want {
				t.Errorf("Segment() path = %q, want %q", got, want)
			}
			if len(trimmer.calls) != 1 {
				t.Fatalf("Trim called %d times, want 1", len(trimmer.calls))
			}
			call := trimmer.calls[0]
			if call.inPath != "/audio/rec.m4a" || call.outPath != want {
				t.Errorf("Trim paths = (%q, %q), want (%q, %q)", call.inPath, call.outPath, "/audio/rec.m4a", want)
			}
			if call.startSec != tt.wantStart || call.durationSec != tt.wantDuration {
				t.Errorf("Trim window = [%d, %d], want [%d, %d]", call.startSec, call.durationSec, tt.wantStart, tt.wantDuration)
			}
		})
	}
}

func TestSegmentTrimFailure(t *testing.T) {
	trimmer := &stubTrimmer{err: ErrTrim}
	seg := NewSegmenter(trimmer)

	path, err := seg.Segment(context.Background(), "/audio/rec.m4a", 0, 20)
	if !errors.Is(err, ErrTrim) {
		t.Fatalf("Segment() error = %v, want ErrTrim", err)
	}
	if path != "" {
		t.Errorf("Segment() path = %q on failure, want empty", path)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.m4a.pin_0.m4a")
	if err := os.WriteFile(path, []byte("clip"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clip file still exists after Remove")
	}

	// removing a missing file is not an error
	if err := Remove(path); err != nil {
		t.Errorf("Remove() on missing file error: %v", err)
	}
}
