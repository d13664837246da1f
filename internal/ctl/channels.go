package ctl

import (
	"fmt"
	"strings"
)

// Channels prints the daemon's pad catalog: wire index, label, and the
// display color renderers use for each channel.
func Channels(baseURL string, jsonOut bool) error {
	var resp struct {
		Channels []struct {
			Index int    `json:"index"`
			Label string `json:"label"`
			Color string `json:"color"`
		} `json:"channels"`
	}
	if err := getJSON(baseURL, "/api/channels", &resp); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CHANNELS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 34)))
	for _, ch := range resp.Channels {
		fmt.Printf("  %d  %s %s\n",
			ch.Index,
			padRight(ch.Label, 12),
			colorize(dim, ch.Color))
	}
	fmt.Println()
	return nil
}
