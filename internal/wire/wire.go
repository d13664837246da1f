// Package wire implements the drum controller's line protocol: one ASCII
// line per sample, eight comma-separated fields alternating trigger flag
// and raw ADC value for each of the four pads, in fixed pad order.
//
// Decoding is pure and atomic: a line either yields a complete Sample or a
// classified error, never a partial result.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NumChannels is the number of sensor channels the controller reports.
const NumChannels = 4

// MaxRaw is the upper rail of the controller's 12-bit ADC. Readings above
// it are decoded anyway; range policy belongs to consumers, not the codec.
const MaxRaw = 4095

// Decode failure classes. Errors returned by Decode wrap exactly one of
// these, so callers can classify with errors.Is.
var (
	ErrFieldCount   = errors.New("wrong field count")
	ErrTriggerToken = errors.New("invalid trigger token")
	ErrNumericField = errors.New("invalid numeric field")
)

// Reading is one channel's state at one instant: the firmware's trigger
// decision plus the raw ADC value it was based on.
type Reading struct {
	Triggered bool `json:"triggered"`
	Raw       int  `json:"raw"`
}

// InRange reports whether the raw value sits inside the nominal ADC range.
func (r Reading) InRange() bool {
	return r.Raw >= 0 && r.Raw <= MaxRaw
}

// Sample is one decoded line: all four channels in pad order.
type Sample [NumChannels]Reading

// Decode parses one line into a Sample. A trailing carriage return is
// tolerated (the firmware terminates lines with CRLF on some hosts).
func Decode(line string) (Sample, error) {
	var s Sample

	line = strings.TrimSuffix(line, "\r")
	fields := strings.Split(line, ",")
	if len(fields) != 2*NumChannels {
		return s, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), 2*NumChannels)
	}

	for i := 0; i < NumChannels; i++ {
		trig := fields[2*i]
		switch trig {
		case "T":
			s[i].Triggered = true
		case "F":
			s[i].Triggered = false
		default:
			return Sample{}, fmt.Errorf("%w: field %d is %q", ErrTriggerToken, 2*i, trig)
		}

		raw := fields[2*i+1]
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Sample{}, fmt.Errorf("%w: field %d is %q", ErrNumericField, 2*i+1, raw)
		}
		s[i].Raw = v
	}

	return s, nil
}

// Encode renders a Sample back into its wire form, without the terminator.
func Encode(s Sample) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(TriggerToken(r.Triggered))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(r.Raw))
	}
	return b.String()
}

// TriggerToken returns the wire token for a trigger flag.
func TriggerToken(triggered bool) string {
	if triggered {
		return "T"
	}
	return "F"
}
