//go:build !linux

package v4l2

import "errors"

// v4l2 only exists on Linux; other platforms get a prober that finds
// nothing so the rest of the backend still builds for local development.

// DeviceProber is a stub on non-Linux platforms.
type DeviceProber struct{}

// NewDeviceProber returns the stub prober.
func NewDeviceProber() *DeviceProber {
	return &DeviceProber{}
}

func (p *DeviceProber) Devices() []string {
	return nil
}

func (p *DeviceProber) ProbeControls(device string) ([]Control, error) {
	return nil, errors.New("v4l2 is only supported on linux")
}

func (p *DeviceProber) GetValue(device string, id uint32) (int32, error) {
	return 0, errors.New("v4l2 is only supported on linux")
}

func (p *DeviceProber) SetValue(device string, id uint32, value int32) error {
	return errors.New("v4l2 is only supported on linux")
}
