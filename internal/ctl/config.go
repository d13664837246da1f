package ctl

import (
	"fmt"
	"strings"
)

// ConfigOptions configures the config command.
type ConfigOptions struct {
	Profiles bool // list named profiles instead of the live config
	JSON     bool
}

// Config shows the daemon's effective configuration, or the named profiles
// available in its config directory.
func Config(baseURL string, opts ConfigOptions) error {
	if opts.Profiles {
		var resp struct {
			ConfigDir string `json:"config_dir"`
			Profiles  []struct {
				Name string `json:"name"`
				Path string `json:"path"`
			} `json:"profiles"`
		}
		if err := getJSON(baseURL, "/api/config/profiles", &resp); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(resp)
		}

		fmt.Println()
		fmt.Println(header("  CONFIG PROFILES"))
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 44)))
		fmt.Printf("  %s %s\n", colorize(dim, "dir:"), resp.ConfigDir)
		if len(resp.Profiles) == 0 {
			fmt.Println(colorize(dim, "  no profiles"))
		}
		for _, p := range resp.Profiles {
			fmt.Printf("  %-16s %s\n", p.Name, colorize(dim, p.Path))
		}
		fmt.Println()
		return nil
	}

	// The live config is structured and nested; indented JSON reads better
	// than any table.
	var cfg map[string]any
	if err := getJSON(baseURL, "/api/config", &cfg); err != nil {
		return err
	}
	return printJSON(cfg)
}
