// Package port abstracts the serial link to the drum controller. The real
// implementation sits on go.bug.st/serial; tests inject FakePort through the
// same Opener seam.
package port

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Baud is the controller firmware's fixed line rate.
const Baud = 115200

// Port is the surface the monitor needs from a serial connection. Read must
// honor the configured read timeout by returning (0, nil) when it elapses,
// and must unblock with an error once the port is closed.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a named port. The ingestion engine takes one of these so
// tests can swap in fakes.
type Opener func(name string) (Port, error)

// Open opens the named serial device at the firmware's fixed rate, 8N1.
func Open(name string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return p, nil
}
