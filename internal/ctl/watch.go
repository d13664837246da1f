package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, u.String()))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Println()
	}

	// Build a filter set for O(1) lookup.
	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			// Apply event type filter.
			if len(filterSet) > 0 {
				var ev map[string]any
				if err := json.Unmarshal(msg, &ev); err == nil {
					evType, _ := ev["type"].(string)
					if !filterSet[evType] {
						continue
					}
				}
			}

			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				renderEvent(msg)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Falls back to raw JSON for unrecognized event types.
func renderEvent(raw []byte) {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Printf("  %s\n", string(raw))
		return
	}

	evType, _ := ev["type"].(string)
	ts := formatEventTime(ev)

	switch evType {
	case "heartbeat":
		// Heartbeats are noisy — show them dimmed on a single line.
		state, _ := ev["state"].(string)
		uptime, _ := ev["uptime_seconds"].(float64)
		uptimeStr := formatDuration(time.Duration(uptime) * time.Second)
		fmt.Printf("  %s %s  %s  up %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(state), state),
			colorize(dim, uptimeStr),
		)

	case "state":
		status, _ := ev["status"].(map[string]any)
		state, _ := status["state"].(string)
		port, _ := status["port"].(string)
		reason, _ := status["reason"].(string)
		line := fmt.Sprintf("  %s %s  %s",
			colorize(dim, ts),
			colorize(bold, "LINK"),
			colorize(stateColor(state), state))
		if port != "" {
			line += "  " + colorize(dim, port)
		}
		if reason != "" {
			line += "  " + colorize(red, reason)
		}
		fmt.Println(line)

	case "snapshot":
		channels, _ := ev["channels"].([]any)
		parts := make([]string, 0, len(channels))
		for _, c := range channels {
			ch, _ := c.(map[string]any)
			label, _ := ch["label"].(string)
			raw, _ := ch["raw"].(float64)
			triggered, _ := ch["triggered"].(bool)
			val := fmt.Sprintf("%s %4.0f", shortLabel(label), raw)
			if triggered {
				val = colorize(red, val)
			} else {
				val = colorize(dim, val)
			}
			parts = append(parts, val)
		}
		samples, _ := ev["samples"].(float64)
		fmt.Printf("  %s %s  %s  %s\n",
			colorize(dim, ts),
			colorize(dim, "levels"),
			strings.Join(parts, "  "),
			colorize(dim, fmt.Sprintf("n=%.0f", samples)),
		)

	case "hit":
		channel, _ := ev["channel"].(string)
		raw, _ := ev["raw"].(float64)
		fmt.Printf("  %s %s  %s %s\n",
			colorize(dim, ts),
			colorize(bold, "HIT "),
			colorize(red, padRight(channel, 10)),
			fmt.Sprintf("%4.0f", raw),
		)

	case "recording":
		status, _ := ev["status"].(map[string]any)
		active, _ := status["active"].(bool)
		rows, _ := status["rows"].(float64)
		session, _ := status["session"].(map[string]any)
		path, _ := session["path"].(string)
		if active {
			fmt.Printf("  %s %s  %s\n",
				colorize(dim, ts), colorize(cyan, "REC  started"), path)
		} else {
			fmt.Printf("  %s %s  %s (%.0f rows)\n",
				colorize(dim, ts), colorize(cyan, "REC  stopped"), path, rows)
		}

	case "log":
		level, _ := ev["level"].(string)
		message, _ := ev["message"].(string)
		fmt.Printf("  %s %s  %s\n", colorize(dim, ts), formatLogLevel(level), message)

	default:
		// Unknown event type — dump as indented JSON so nothing is lost.
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			fmt.Printf("  %s\n", string(raw))
			return
		}
		fmt.Printf("  %s\n", string(pretty))
	}
}

// shortLabel compresses a channel label like "Don Left" to "DL" for the
// one-line level display.
func shortLabel(label string) string {
	words := strings.Fields(label)
	var b strings.Builder
	for _, w := range words {
		b.WriteByte(w[0])
	}
	return b.String()
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	return shortTime(tsRaw)
}

// shortTime renders an RFC 3339 timestamp as local wall-clock time.
func shortTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		if len(ts) > 10 {
			return ts[:10]
		}
		return ts
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
