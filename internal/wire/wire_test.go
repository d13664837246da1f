package wire

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeValidLine(t *testing.T) {
	s, err := Decode("F,200,T,1000,F,300,F,254")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Sample{
		{Triggered: false, Raw: 200},
		{Triggered: true, Raw: 1000},
		{Triggered: false, Raw: 300},
		{Triggered: false, Raw: 254},
	}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestDecodeTrailingCR(t *testing.T) {
	s, err := Decode("T,1,F,2,F,3,F,4\r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s[0].Triggered || s[3].Raw != 4 {
		t.Errorf("got %+v", s)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"too few fields", "F,200,T,1000,F,300", ErrFieldCount},
		{"too many fields", "F,200,T,1000,F,300,F,254,F,1", ErrFieldCount},
		{"empty line", "", ErrFieldCount},
		{"bad trigger token", "X,200,T,1000,F,300,F,254", ErrTriggerToken},
		{"lowercase trigger", "t,200,T,1000,F,300,F,254", ErrTriggerToken},
		{"non-numeric value", "F,abc,T,1000,F,300,F,254", ErrNumericField},
		{"negative value", "F,-1,T,1000,F,300,F,254", ErrNumericField},
		{"empty value", "F,,T,1000,F,300,F,254", ErrNumericField},
		{"garbage", "garbage", ErrFieldCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.line)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeAtomicity(t *testing.T) {
	// First three channels are valid; the failure in the last one must not
	// leak partial channel data.
	s, err := Decode("T,100,T,200,T,300,Q,400")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if s != (Sample{}) {
		t.Errorf("expected zero sample on failure, got %+v", s)
	}
}

func TestDecodeOutOfRangeAccepted(t *testing.T) {
	// 12-bit rail overshoot is device noise, not a decode failure.
	s, err := Decode("F,5000,F,0,F,4095,F,0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s[0].Raw != 5000 {
		t.Errorf("got raw %d, want 5000", s[0].Raw)
	}
	if s[0].InRange() {
		t.Error("5000 should report out of range")
	}
	if !s[2].InRange() {
		t.Error("4095 should report in range")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	lines := []string{
		"F,200,T,1000,F,300,F,254",
		"F,0,F,0,F,0,F,0",
		"T,4095,T,1,T,2,T,3",
	}
	for _, line := range lines {
		s, err := Decode(line)
		if err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if got := Encode(s); got != line {
			t.Errorf("round trip of %q produced %q", line, got)
		}
	}
}

func TestEncodeNormalizesLeadingZeros(t *testing.T) {
	s, err := Decode("F,007,F,0,F,0,F,0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Encode(s); got != "F,7,F,0,F,0,F,0" {
		t.Errorf("got %q", got)
	}
}

func TestChannelCatalog(t *testing.T) {
	if len(Channels) != NumChannels {
		t.Fatalf("catalog has %d channels", len(Channels))
	}
	seen := map[string]bool{}
	for i, ch := range Channels {
		if ch.Index != i {
			t.Errorf("channel %d has index %d", i, ch.Index)
		}
		if ch.Label == "" || !strings.HasPrefix(ch.Color, "#") {
			t.Errorf("channel %d has incomplete metadata: %+v", i, ch)
		}
		if seen[ch.Label] {
			t.Errorf("duplicate label %q", ch.Label)
		}
		seen[ch.Label] = true
	}

	if ChannelByLabel("Don Left") == nil {
		t.Error("ChannelByLabel failed for known label")
	}
	if ChannelByLabel("Snare") != nil {
		t.Error("ChannelByLabel matched unknown label")
	}
}
