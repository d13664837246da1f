package ctl

import (
	"fmt"
	"strings"
)

// PortsOptions configures the ports command.
type PortsOptions struct {
	JSON bool
}

// Ports lists the serial ports visible to the daemon, flagging ones that
// look like a pad controller.
func Ports(baseURL string, opts PortsOptions) error {
	var resp struct {
		Ports []struct {
			Device       string `json:"device"`
			Description  string `json:"description"`
			VID          string `json:"vid"`
			PID          string `json:"pid"`
			IsController bool   `json:"is_controller"`
		} `json:"ports"`
	}
	if err := getJSON(baseURL, "/api/ports", &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SERIAL PORTS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 60)))

	if len(resp.Ports) == 0 {
		fmt.Println(colorize(dim, "  none found"))
		fmt.Println()
		return nil
	}

	for _, p := range resp.Ports {
		marker := " "
		device := p.Device
		if p.IsController {
			marker = colorize(green, "*")
			device = colorize(bold, device)
		}
		desc := p.Description
		if p.VID != "" {
			desc += colorize(dim, fmt.Sprintf("  [%s:%s]", p.VID, p.PID))
		}
		fmt.Printf("  %s %-24s %s\n", marker, device, desc)
	}
	fmt.Println()
	fmt.Println(colorize(dim, "  * looks like a pad controller"))
	fmt.Println()

	return nil
}
