package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/camera-control-manager/backend/internal/bus"
	"github.com/camera-control-manager/backend/internal/libcamera"
	"github.com/camera-control-manager/backend/internal/ptz"
	"github.com/camera-control-manager/backend/internal/v4l2"
)

// stubBus answers (or not) at the controller address on one channel.
type stubBus struct {
	channel int
	present bool
}

func (s *stubBus) Channel() int { return s.channel }
func (s *stubBus) ReadByte(addr byte) (byte, error) {
	if !s.present {
		return 0, &bus.Error{Kind: bus.NotPresent, Channel: s.channel, Addr: addr}
	}
	return 0, nil
}
func (s *stubBus) ReadBlock(addr, reg byte, n int) ([]byte, error) { return []byte{0, 0}, nil }
func (s *stubBus) WriteByte(addr, reg, value byte) error           { return nil }
func (s *stubBus) WriteBlock(addr, reg byte, data []byte) error    { return nil }
func (s *stubBus) Close() error                                    { return nil }

func newStubDriver(present bool) *ptz.Driver {
	return ptz.NewDriver(
		ptz.WithChannelLister(func() []int { return []int{1} }),
		ptz.WithBusOpener(func(channel int) (ptz.Bus, error) {
			return &stubBus{channel: channel, present: present}, nil
		}),
	)
}

type stubProber struct {
	devices  []string
	controls []v4l2.Control
}

func (p *stubProber) Devices() []string { return p.devices }
func (p *stubProber) ProbeControls(device string) ([]v4l2.Control, error) {
	return p.controls, nil
}
func (p *stubProber) GetValue(device string, id uint32) (int32, error) { return 0, nil }
func (p *stubProber) SetValue(device string, id uint32, value int32) error {
	return nil
}

func countingCapture(calls *int, payload string) *libcamera.Capture {
	return libcamera.NewCapture(libcamera.WithRunner(
		func(ctx context.Context, name string, args ...string) ([]byte, error) {
			*calls++
			if payload == "" {
				return nil, errors.New("camera busy")
			}
			return []byte(payload), nil
		}))
}

func TestStartupBuildsMotorizedModel(t *testing.T) {
	captureCalls := 0
	capture := countingCapture(&captureCalls, `[{"name": "Brightness", "type": "int32", "min": -64, "max": 64, "default": 0}]`)
	registry := v4l2.NewRegistry(&stubProber{
		devices: []string{"/dev/video0"},
		controls: []v4l2.Control{
			{ID: 100, Name: "Brightness", Type: v4l2.TypeInteger, Min: -64, Max: 64, Device: "/dev/video0"},
		},
	})
	engine := NewEngine(newStubDriver(true), registry, capture).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1"} })

	model := engine.Startup(context.Background())

	if model.CameraType != CameraMotorized {
		t.Fatalf("camera type = %s, want motorized", model.CameraType)
	}
	if len(model.I2CCapabilities) != 5 {
		t.Errorf("i2c capabilities = %v, want all five axes", model.I2CCapabilities)
	}
	if len(model.V4L2Controls) != 1 {
		t.Fatalf("v4l2 controls = %d, want 1", len(model.V4L2Controls))
	}
	if model.Empty {
		t.Error("model flagged empty despite discovered capabilities")
	}

	// Name-matched libcamera metadata must be attached to the control.
	if model.V4L2Controls[0].Libcamera == nil {
		t.Error("libcamera metadata not merged into the matching control")
	}
	if model.Diagnostics.LibcameraProbeStatus != string(libcamera.StatusOK) {
		t.Errorf("probe status = %s, want ok", model.Diagnostics.LibcameraProbeStatus)
	}
	if captureCalls != 1 {
		t.Fatalf("capture ran %d times during startup, want 1", captureCalls)
	}

	if engine.State() != StateIdle {
		t.Errorf("engine state after pass = %s, want idle", engine.State())
	}
}

func TestRefreshNeverRerunsCapture(t *testing.T) {
	captureCalls := 0
	capture := countingCapture(&captureCalls, `[]`)
	registry := v4l2.NewRegistry(&stubProber{})
	engine := NewEngine(newStubDriver(true), registry, capture).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1"} })

	engine.Startup(context.Background())
	engine.Refresh(context.Background())
	engine.Refresh(context.Background())

	if captureCalls != 1 {
		t.Fatalf("capture ran %d times, want exactly 1", captureCalls)
	}
}

func TestCameraTypeFixed(t *testing.T) {
	registry := v4l2.NewRegistry(&stubProber{
		devices: []string{"/dev/video0"},
		controls: []v4l2.Control{
			{ID: 100, Name: "Brightness", Type: v4l2.TypeInteger, Device: "/dev/video0"},
		},
	})
	engine := NewEngine(newStubDriver(false), registry, nil).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1"} })

	model := engine.Startup(context.Background())
	if model.CameraType != CameraFixed {
		t.Fatalf("camera type = %s, want fixed", model.CameraType)
	}
	if len(model.I2CCapabilities) != 0 {
		t.Errorf("i2c capabilities = %v, want none", model.I2CCapabilities)
	}
	if model.Diagnostics.LibcameraProbeStatus != string(libcamera.StatusSkipped) {
		t.Errorf("nil capture should report skipped, got %s", model.Diagnostics.LibcameraProbeStatus)
	}
}

func TestCameraTypeNone(t *testing.T) {
	registry := v4l2.NewRegistry(&stubProber{})
	engine := NewEngine(newStubDriver(false), registry, nil).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1"} })

	model := engine.Startup(context.Background())
	if model.CameraType != CameraNone {
		t.Fatalf("camera type = %s, want none", model.CameraType)
	}
	if !model.Empty {
		t.Error("model with no capabilities must be flagged empty")
	}
	if model.I2CCapabilities == nil || model.V4L2Controls == nil {
		t.Error("capability slices must be non-nil even when empty")
	}
}

func TestCameraTypeUnknownOnProbeFault(t *testing.T) {
	driver := ptz.NewDriver(
		ptz.WithChannelLister(func() []int { return []int{1} }),
		ptz.WithBusOpener(func(channel int) (ptz.Bus, error) {
			return nil, errors.New("EACCES")
		}),
	)
	registry := v4l2.NewRegistry(&stubProber{})
	engine := NewEngine(driver, registry, nil).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1"} })

	model := engine.Startup(context.Background())
	if model.CameraType != CameraUnknown {
		t.Fatalf("camera type = %s, want unknown when the probe itself fails", model.CameraType)
	}
}

func TestDiagnosticsCounts(t *testing.T) {
	registry := v4l2.NewRegistry(&stubProber{
		devices: []string{"/dev/video0", "/dev/video1"},
		controls: []v4l2.Control{
			{ID: 100, Name: "Brightness", Type: v4l2.TypeInteger, Device: "/dev/video0"},
		},
	})
	engine := NewEngine(newStubDriver(true), registry, nil).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1", "/dev/i2c-11"} })

	model := engine.Startup(context.Background())
	d := model.Diagnostics
	if d.I2CBusesFound != 2 || d.VideoDevicesFound != 2 {
		t.Errorf("bus/device counts = %d/%d, want 2/2", d.I2CBusesFound, d.VideoDevicesFound)
	}
	if d.I2CBusNumber != 1 {
		t.Errorf("controller bus = %d, want 1", d.I2CBusNumber)
	}
	if d.V4L2ControlsCount != 1 {
		t.Errorf("control count = %d, want 1", d.V4L2ControlsCount)
	}
	if d.CameraType != string(CameraMotorized) {
		t.Errorf("diagnostics camera type = %s", d.CameraType)
	}
}

func TestLegacyID(t *testing.T) {
	tests := []struct {
		name    string
		probeCh int // 1 for full axis, 11 for focus only, 0 for none
		want    string
	}{
		{"full axis", 1, "1"},
		{"focus only", 11, "0"},
		{"no controller", 0, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := ptz.NewDriver(
				ptz.WithChannelLister(func() []int {
					if tt.probeCh == 0 {
						return nil
					}
					return []int{tt.probeCh}
				}),
				ptz.WithBusOpener(func(channel int) (ptz.Bus, error) {
					return &stubBus{channel: channel, present: true}, nil
				}),
			)
			if _, err := driver.Probe(); err != nil {
				t.Fatal(err)
			}
			engine := NewEngine(driver, v4l2.NewRegistry(&stubProber{}), nil)
			if got := engine.LegacyID(); got != tt.want {
				t.Errorf("LegacyID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuplicateDiscoveryCycleIsIdempotent(t *testing.T) {
	registry := v4l2.NewRegistry(&stubProber{
		devices: []string{"/dev/video0"},
		controls: []v4l2.Control{
			{ID: 100, Name: "Zoom, Absolute", Type: v4l2.TypeInteger, Min: 0, Max: 10, Device: "/dev/video0"},
		},
	})
	engine := NewEngine(newStubDriver(true), registry, nil).
		WithBusPathLister(func() []string { return []string{"/dev/i2c-1"} })

	first := engine.Startup(context.Background())
	second := engine.Refresh(context.Background())

	if first.CameraType != second.CameraType {
		t.Errorf("camera type changed across identical passes: %s vs %s", first.CameraType, second.CameraType)
	}
	if len(first.I2CCapabilities) != len(second.I2CCapabilities) {
		t.Errorf("capability set changed across identical passes: %v vs %v",
			first.I2CCapabilities, second.I2CCapabilities)
	}
}
