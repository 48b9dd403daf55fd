// Package diagnostics classifies discovery telemetry into human-actionable
// status messages. It never touches hardware: everything derives from a
// snapshot, which keeps the wording testable without a camera attached.
package diagnostics

import "fmt"

// Snapshot is the telemetry of one discovery pass. It is produced once per
// pass and never mutated afterwards.
type Snapshot struct {
	I2CBusesFound          int      `json:"i2c_buses_found"`
	I2CBusPaths            []string `json:"i2c_bus_paths"`
	I2CBusNumber           int      `json:"i2c_bus_number"` // -1 when no controller answered
	VideoDevicesFound      int      `json:"video_devices_found"`
	VideoDevicePaths       []string `json:"video_device_paths"`
	CameraType             string   `json:"camera_type"`
	I2CCapabilitiesCount   int      `json:"i2c_capabilities_count"`
	V4L2ControlsCount      int      `json:"v4l2_controls_count"`
	LibcameraControlsCount int      `json:"libcamera_controls_count"`
	LibcameraProbeStatus   string   `json:"libcamera_probe_status"`
}

// Explain derives an ordered list of likely-cause messages from a snapshot.
// Rules are evaluated independently and concatenated: several conditions
// can hold at once and each contributes its own line. The ordering is a
// display preference, not a contract.
func Explain(s Snapshot) []string {
	var messages []string

	if s.I2CBusesFound == 0 {
		messages = append(messages,
			"No I2C buses found. Enable the I2C interface (e.g. via raspi-config) and reboot.")
	} else if s.CameraType == "none" {
		messages = append(messages, fmt.Sprintf(
			"%d I2C bus(es) present but no controller answered at address 0x0C. Check the camera's control cable.",
			s.I2CBusesFound))
	}

	if s.VideoDevicesFound == 0 {
		messages = append(messages,
			"No video device present. Check that the camera is connected and its driver is loaded.")
	} else if s.V4L2ControlsCount == 0 {
		messages = append(messages, fmt.Sprintf(
			"%d video device(s) found but the driver exposes no adjustable controls.",
			s.VideoDevicesFound))
	}

	switch s.LibcameraProbeStatus {
	case "timeout":
		messages = append(messages,
			"The libcamera metadata probe timed out; extended control metadata is unavailable.")
	case "error":
		messages = append(messages,
			"The libcamera metadata probe failed; the camera may already be held by a streamer.")
	case "skipped":
		messages = append(messages,
			"The libcamera metadata probe was skipped; extended control metadata is unavailable.")
	}

	if len(messages) == 0 {
		messages = append(messages,
			"Camera detected but no adjustable controls were found.")
	}

	return messages
}
