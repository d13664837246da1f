package ctl

import (
	"fmt"
	"strings"
)

// Clear empties the daemon's channel histories and counters.
func Clear(baseURL string, jsonOut bool) error {
	var result struct {
		OK bool `json:"ok"`
	}
	if err := postJSON(baseURL, "/api/clear", nil, &result); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(result)
	}
	fmt.Printf("\n  %s\n\n", colorize(green, "CLEARED"))
	return nil
}

// Capacity resizes the per-channel history buffers.
func Capacity(baseURL string, n int, jsonOut bool) error {
	var result struct {
		OK       bool `json:"ok"`
		Capacity int  `json:"capacity"`
	}
	if err := postJSON(baseURL, "/api/capacity", map[string]int{"capacity": n}, &result); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(result)
	}
	fmt.Printf("\n  %s  %d entries per channel\n\n", colorize(green, "RESIZED"), result.Capacity)
	return nil
}

// Thresholds shows or replaces the display reference values. A nil or empty
// values slice means show.
func Thresholds(baseURL string, values []int, jsonOut bool) error {
	if len(values) > 0 {
		var result struct {
			OK         bool  `json:"ok"`
			Thresholds []int `json:"thresholds"`
		}
		if err := postJSON(baseURL, "/api/thresholds", map[string][]int{"thresholds": values}, &result); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(result)
		}
		fmt.Printf("\n  %s  %v\n\n", colorize(green, "SET"), result.Thresholds)
		return nil
	}

	var resp struct {
		Thresholds []int `json:"thresholds"`
	}
	if err := getJSON(baseURL, "/api/thresholds", &resp); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(resp)
	}

	var channels struct {
		Channels []struct {
			Label string `json:"label"`
		} `json:"channels"`
	}
	if err := getJSON(baseURL, "/api/channels", &channels); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DISPLAY THRESHOLDS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 30)))
	for i, v := range resp.Thresholds {
		label := fmt.Sprintf("channel %d", i)
		if i < len(channels.Channels) {
			label = channels.Channels[i].Label
		}
		fmt.Printf("  %-12s %d\n", colorize(dim, label+":"), v)
	}
	fmt.Println()
	return nil
}
