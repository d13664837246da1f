package ctl

import (
	"fmt"
	"strconv"
	"strings"
)

// SettingsOptions configures the settings command.
type SettingsOptions struct {
	// Set holds "key=value" pairs to write. Empty means read and display.
	Set  []string
	JSON bool
}

// Settings reads the firmware settings table from the connected controller,
// or writes new values and saves them to the controller's flash.
func Settings(baseURL string, opts SettingsOptions) error {
	if len(opts.Set) > 0 {
		return writeSettings(baseURL, opts)
	}

	var resp struct {
		Settings []struct {
			Key   int    `json:"key"`
			Name  string `json:"name"`
			Value int    `json:"value"`
		} `json:"settings"`
	}
	if err := getJSON(baseURL, "/api/settings", &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CONTROLLER SETTINGS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 44)))
	for _, s := range resp.Settings {
		fmt.Printf("  %2d  %-26s %d\n", s.Key, colorize(dim, s.Name), s.Value)
	}
	fmt.Println()
	return nil
}

func writeSettings(baseURL string, opts SettingsOptions) error {
	settings := make(map[string]int, len(opts.Set))
	for _, pair := range opts.Set {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("bad setting %q, want key=value", pair)
		}
		if _, err := strconv.Atoi(k); err != nil {
			return fmt.Errorf("bad setting key %q", k)
		}
		value, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("bad setting value %q", v)
		}
		settings[k] = value
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := postJSON(baseURL, "/api/settings", map[string]any{"settings": settings}, &result); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(result)
	}
	fmt.Printf("\n  %s  %d settings written to flash\n\n", colorize(green, "SAVED"), len(settings))
	return nil
}
