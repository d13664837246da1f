package port

import (
	"strings"

	"go.bug.st/serial/enumerator"
)

// controllerVID is the Raspberry Pi USB vendor ID. The drum controller is an
// RP2040 board, so a port with this VID is almost certainly the device.
const controllerVID = "2E8A"

// Info describes one candidate serial port.
type Info struct {
	Device       string `json:"device"`
	Description  string `json:"description,omitempty"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	IsController bool   `json:"is_controller"`
}

// List enumerates serial ports, flagging likely drum controllers by USB
// vendor ID. Ports the platform cannot describe are still listed.
func List() ([]Info, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(details))
	for _, d := range details {
		info := Info{Device: d.Name}
		if d.IsUSB {
			info.Description = d.Product
			info.VID = d.VID
			info.PID = d.PID
			info.IsController = isController(d.VID)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func isController(vid string) bool {
	return strings.EqualFold(vid, controllerVID)
}
