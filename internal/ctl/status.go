package ctl

import (
	"fmt"
	"strings"
	"time"
)

// statusResponse mirrors the JSON returned by GET /api/status.
type statusResponse struct {
	Name   string `json:"name"`
	Status struct {
		State  string `json:"state"`
		Port   string `json:"port"`
		Reason string `json:"reason"`
	} `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Samples        uint64 `json:"samples"`
	DecodeFailures uint64 `json:"decode_failures"`
	Capacity       int    `json:"capacity"`
	Recorder       struct {
		Active  bool   `json:"active"`
		Rows    uint64 `json:"rows"`
		Session struct {
			Path string `json:"path"`
		} `json:"session"`
	} `json:"recorder"`
	WSClients    int    `json:"ws_clients"`
	RecordingDir string `json:"recording_dir"`
	MQTTEnabled  bool   `json:"mqtt_enabled"`
	Disk         *struct {
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk"`
}

// StatusOptions configures the status command.
type StatusOptions struct {
	JSON bool
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, opts StatusOptions) error {
	var s statusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.Status.State), s.Status.State)
	if s.Status.Port != "" {
		stateStr += colorize(dim, "  "+s.Status.Port)
	}

	fmt.Println()
	fmt.Println(header("  PAD MONITOR STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 42)))
	fmt.Printf("  %-14s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-14s %s\n", colorize(dim, "Link:"), stateStr)
	if s.Status.Reason != "" {
		fmt.Printf("  %-14s %s\n", colorize(dim, "Reason:"), colorize(red, s.Status.Reason))
	}
	fmt.Printf("  %-14s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-14s %d (buffer %d)\n", colorize(dim, "Samples:"), s.Samples, s.Capacity)
	fmt.Printf("  %-14s %d\n", colorize(dim, "Bad lines:"), s.DecodeFailures)

	if s.Recorder.Active {
		fmt.Printf("  %-14s %s (%d rows)\n", colorize(dim, "Recording:"),
			colorize(red, "ACTIVE"), s.Recorder.Rows)
		fmt.Printf("  %-14s %s\n", colorize(dim, "File:"), s.Recorder.Session.Path)
	} else {
		fmt.Printf("  %-14s off\n", colorize(dim, "Recording:"))
	}

	fmt.Printf("  %-14s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	if s.Disk != nil {
		fmt.Printf("  %-14s %s free in %s\n", colorize(dim, "Disk:"),
			formatBytes(s.Disk.AvailableBytes), s.RecordingDir)
	}
	if s.MQTTEnabled {
		fmt.Printf("  %-14s enabled\n", colorize(dim, "MQTT:"))
	}
	fmt.Printf("  %-14s %s\n", colorize(dim, "Host:"), strings.TrimRight(baseURL, "/"))
	fmt.Println()

	return nil
}
