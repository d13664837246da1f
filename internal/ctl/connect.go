package ctl

import (
	"fmt"
)

// ConnectOptions configures the connect command.
type ConnectOptions struct {
	Port string
	JSON bool
}

// Connect asks the daemon to open a serial port and start streaming.
// An empty Port falls back to the daemon's configured default.
func Connect(baseURL string, opts ConnectOptions) error {
	var body any
	if opts.Port != "" {
		body = map[string]string{"port": opts.Port}
	}

	var result struct {
		OK     bool `json:"ok"`
		Status struct {
			State  string `json:"state"`
			Port   string `json:"port"`
			Reason string `json:"reason"`
		} `json:"status"`
	}
	if err := postJSON(baseURL, "/api/connect", body, &result); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(result)
	}

	fmt.Printf("\n  %s  %s\n\n",
		colorize(stateColor(result.Status.State), result.Status.State),
		colorize(dim, result.Status.Port))
	return nil
}

// Disconnect asks the daemon to close the serial connection.
func Disconnect(baseURL string, jsonOut bool) error {
	var result struct {
		OK     bool `json:"ok"`
		Status struct {
			State string `json:"state"`
		} `json:"status"`
	}
	if err := postJSON(baseURL, "/api/disconnect", nil, &result); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(result)
	}
	fmt.Printf("\n  %s\n\n", colorize(stateColor(result.Status.State), result.Status.State))
	return nil
}
