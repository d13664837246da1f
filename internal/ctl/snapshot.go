package ctl

import (
	"fmt"
	"strings"
)

// snapshotResponse mirrors GET /api/snapshot.
type snapshotResponse struct {
	Status struct {
		State  string `json:"state"`
		Port   string `json:"port"`
		Reason string `json:"reason"`
	} `json:"status"`
	Seq            uint64 `json:"seq"`
	Samples        uint64 `json:"samples"`
	DecodeFailures uint64 `json:"decode_failures"`
	Capacity       int    `json:"capacity"`
	Channels       []struct {
		Channel struct {
			Index int    `json:"index"`
			Label string `json:"label"`
		} `json:"channel"`
		Threshold int `json:"threshold"`
		Entries   []struct {
			Triggered bool `json:"triggered"`
			Raw       int  `json:"raw"`
		} `json:"entries"`
	} `json:"channels"`
}

// SnapshotOptions configures the snapshot command.
type SnapshotOptions struct {
	Entries int // history entries to print per channel (0 = just the newest)
	JSON    bool
}

// Snapshot fetches the full engine snapshot and renders per-channel levels.
func Snapshot(baseURL string, opts SnapshotOptions) error {
	var s snapshotResponse
	if err := getJSON(baseURL, "/api/snapshot", &s); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(s)
	}

	fmt.Println()
	fmt.Println(header("  PAD SNAPSHOT"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 58)))
	fmt.Printf("  %-10s %s   %s %d   %s %d\n",
		colorize(stateColor(s.Status.State), s.Status.State),
		colorize(dim, s.Status.Port),
		colorize(dim, "samples"), s.Samples,
		colorize(dim, "bad"), s.DecodeFailures)
	fmt.Println()

	for _, ch := range s.Channels {
		raw, triggered := 0, false
		if n := len(ch.Entries); n > 0 {
			raw = ch.Entries[n-1].Raw
			triggered = ch.Entries[n-1].Triggered
		}

		mark := " "
		if triggered {
			mark = colorize(red, "●")
		}
		fmt.Printf("  %s %-10s [%s] %4d %s\n",
			mark,
			ch.Channel.Label,
			levelBar(raw, ch.Threshold, 24, triggered),
			raw,
			colorize(dim, fmt.Sprintf("thr %d", ch.Threshold)))

		// Optional short history tail, newest last.
		if opts.Entries > 0 {
			entries := ch.Entries
			if len(entries) > opts.Entries {
				entries = entries[len(entries)-opts.Entries:]
			}
			vals := make([]string, len(entries))
			for i, e := range entries {
				if e.Triggered {
					vals[i] = colorize(red, fmt.Sprintf("%d", e.Raw))
				} else {
					vals[i] = fmt.Sprintf("%d", e.Raw)
				}
			}
			fmt.Printf("    %s %s\n", colorize(dim, "last:"), strings.Join(vals, " "))
		}
	}
	fmt.Println()

	return nil
}
