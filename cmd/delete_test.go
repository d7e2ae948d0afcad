package cmd

import (
	"testing"

	"github.com/pinrec/pinrec/internal/store"
)

func TestParsePinKey(t *testing.T) {
	tests := []struct {
		arg     string
		want    store.PinKey
		wantErr bool
	}{
		{arg: "abc-123:1", want: store.PinKey{SessionID: "abc-123", PinIndex: 0}},
		{arg: "abc-123:12", want: store.PinKey{SessionID: "abc-123", PinIndex: 11}},
		{arg: "a:b:3", want: store.PinKey{SessionID: "a:b", PinIndex: 2}},
		{arg: "abc-123", wantErr: true},
		{arg: "abc-123:", wantErr: true},
		{arg: ":1", wantErr: true},
		{arg: "abc-123:0", wantErr: true},
		{arg: "abc-123:x", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parsePinKey(tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePinKey(%q) succeeded, want error", tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePinKey(%q) error: %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePinKey(%q) = %+v, want %+v", tt.arg, got, tt.want)
		}
	}
}
