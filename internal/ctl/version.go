package ctl

import (
	"fmt"
	"strings"
)

// Version prints the daemon's build information alongside the client's.
func Version(baseURL, clientVersion string, jsonOut bool) error {
	var resp struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
		BuiltAt   string `json:"built_at"`
	}
	if err := getJSON(baseURL, "/api/version", &resp); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"client": clientVersion, "daemon": resp})
	}

	fmt.Println()
	fmt.Println(header("  VERSION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 30)))
	fmt.Printf("  %-10s %s\n", colorize(dim, "client:"), clientVersion)
	fmt.Printf("  %-10s %s (%s, built %s)\n", colorize(dim, "daemon:"),
		resp.Version, resp.GoVersion, resp.BuiltAt)
	fmt.Println()
	return nil
}
