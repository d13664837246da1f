// Package device speaks the drum controller's numeric configuration
// protocol. Commands are decimal codes terminated by a newline; the
// settings dump is a sequence of key:value lines.
//
// A Client does its own reads and writes on the port, so it must only be
// driven from whichever goroutine owns the port's read side (the ingestion
// engine runs these exchanges inside its read loop).
package device

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/strikeline/padmon/internal/port"
)

// Protocol command codes.
const (
	cmdReadSettings  = 1000
	cmdSaveToFlash   = 1001
	cmdWriteSettings = 1002
	cmdStartStream   = 2000
	cmdStopStream    = 2001
)

// NumSettings is the size of the firmware's settings table (keys 0..17).
const NumSettings = 18

// settingsWindow bounds how long ReadSettings waits for the full dump.
const settingsWindow = 1500 * time.Millisecond

// ErrNoSettings is returned when the device sends nothing back for a
// settings read, typically because it is mid-reset or not a controller.
var ErrNoSettings = errors.New("device: no settings received")

// SettingNames maps firmware setting keys to stable identifiers. The layout
// comes from the controller firmware and is not reorderable.
var SettingNames = map[int]string{
	0:  "light_trigger_don_left",
	1:  "light_trigger_ka_left",
	2:  "light_trigger_don_right",
	3:  "light_trigger_ka_right",
	4:  "don_debounce_ms",
	5:  "ka_debounce_ms",
	6:  "crosstalk_debounce_ms",
	7:  "key_debounce_ms",
	8:  "key_hold_ms",
	9:  "double_trigger_mode",
	10: "heavy_trigger_don_left",
	11: "heavy_trigger_ka_left",
	12: "heavy_trigger_don_right",
	13: "heavy_trigger_ka_right",
	14: "cutoff_don_left",
	15: "cutoff_ka_left",
	16: "cutoff_don_right",
	17: "cutoff_ka_right",
}

// Client drives the configuration protocol over an open port.
type Client struct {
	p port.Port
}

// NewClient wraps an open controller port.
func NewClient(p port.Port) *Client {
	return &Client{p: p}
}

// StartStreaming asks the firmware to begin emitting sample lines.
func (c *Client) StartStreaming() error {
	return c.send(cmdStartStream)
}

// StopStreaming asks the firmware to stop emitting sample lines.
func (c *Client) StopStreaming() error {
	return c.send(cmdStopStream)
}

// SaveToFlash persists the device's current settings to its flash.
func (c *Client) SaveToFlash() error {
	return c.send(cmdSaveToFlash)
}

// ReadSettings requests the full settings table and parses the key:value
// response lines. Pending input is discarded first so stale sample lines
// are not misread as settings. The caller must have streaming stopped.
func (c *Client) ReadSettings() (map[int]int, error) {
	if err := c.p.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("reset input: %w", err)
	}
	if err := c.send(cmdReadSettings); err != nil {
		return nil, err
	}

	settings := make(map[int]int)
	var pending []byte
	buf := make([]byte, 256)
	deadline := time.Now().Add(settingsWindow)

	for time.Now().Before(deadline) {
		n, err := c.p.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if n == 0 {
			// Read timeout. A quiet gap after data means the dump is done.
			if len(settings) > 0 {
				break
			}
			continue
		}
		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			line := strings.TrimSpace(string(pending[:idx]))
			pending = pending[idx+1:]
			if key, value, ok := ParseSetting(line); ok {
				settings[key] = value
			}
		}
		if len(settings) >= NumSettings {
			break
		}
	}

	if len(settings) == 0 {
		return nil, ErrNoSettings
	}
	return settings, nil
}

// WriteSettings pushes the given settings to the device and saves them to
// flash. The firmware expects one line of space-separated key:value pairs
// after the write-mode command.
func (c *Client) WriteSettings(settings map[int]int) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	if err := c.send(cmdWriteSettings); err != nil {
		return err
	}

	keys := make([]int, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%d:%d", k, settings[k])
	}
	if _, err := fmt.Fprintf(c.p, "%s\n", strings.Join(pairs, " ")); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return c.SaveToFlash()
}

// ParseSetting parses one "key:value" line from a settings dump.
func ParseSetting(line string) (key, value int, ok bool) {
	k, v, found := strings.Cut(line, ":")
	if !found {
		return 0, 0, false
	}
	key, err := strconv.Atoi(strings.TrimSpace(k))
	if err != nil {
		return 0, 0, false
	}
	value, err = strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, 0, false
	}
	return key, value, true
}

// ValidateSettings rejects unknown keys and out-of-range values before
// anything reaches the device.
func ValidateSettings(settings map[int]int) error {
	if len(settings) == 0 {
		return errors.New("device: empty settings")
	}
	for k, v := range settings {
		if _, known := SettingNames[k]; !known {
			return fmt.Errorf("device: unknown setting key %d", k)
		}
		if v < 0 || v > 4095 {
			return fmt.Errorf("device: setting %d value %d out of range", k, v)
		}
	}
	return nil
}

func (c *Client) send(cmd int) error {
	if _, err := fmt.Fprintf(c.p, "%d\n", cmd); err != nil {
		return fmt.Errorf("send command %d: %w", cmd, err)
	}
	return nil
}
