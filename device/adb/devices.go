package adb

import (
	"strings"

	"github.com/mwantia/adbfs/data"
)

// StateDevice is the state of a device that is ready for commands.
const StateDevice = "device"

// parseDevices parses the "serial\tstate\n" lines of host:devices.
func parseDevices(list string) []data.DeviceInfo {
	var devices []data.DeviceInfo
	for line := range strings.SplitSeq(list, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		devices = append(devices, data.DeviceInfo{
			ID:    fields[0],
			State: fields[1],
		})
	}

	return devices
}

func formatDevices(devices []data.DeviceInfo) string {
	var sb strings.Builder
	for _, dev := range devices {
		state := dev.State
		if state == "" {
			state = StateDevice
		}
		sb.WriteString(dev.ID + "\t" + state + "\n")
	}

	return sb.String()
}
