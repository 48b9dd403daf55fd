// Package discovery orchestrates hardware probing and assembles the
// capabilities model the UI is built from.
package discovery

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/camera-control-manager/backend/internal/bus"
	"github.com/camera-control-manager/backend/internal/diagnostics"
	"github.com/camera-control-manager/backend/internal/libcamera"
	"github.com/camera-control-manager/backend/internal/ptz"
	"github.com/camera-control-manager/backend/internal/v4l2"
)

// CameraType classifies what discovery found.
type CameraType string

const (
	// CameraNone means neither a motor controller nor video controls.
	CameraNone CameraType = "none"
	// CameraFixed means video controls exist but no motor controller.
	CameraFixed CameraType = "fixed"
	// CameraMotorized means a motor controller answered on the bus.
	CameraMotorized CameraType = "motorized"
	// CameraUnknown means the bus probe itself failed.
	CameraUnknown CameraType = "unknown"
)

// State names one phase of a discovery pass.
type State string

const (
	StateIdle            State = "idle"
	StateMetadataCapture State = "metadata_capture"
	StateBusProbe        State = "bus_probe"
	StateDeviceProbe     State = "device_probe"
	StateMerged          State = "merged"
)

// Capabilities is the unified, point-in-time snapshot of every discovered
// controllable feature. It is rebuilt wholesale on each pass and published
// atomically, so readers never observe a half-populated model.
type Capabilities struct {
	CameraType        CameraType              `json:"camera_type"`
	I2CCapabilities   []string                `json:"i2c_capabilities"`
	V4L2Controls      []v4l2.Control          `json:"v4l2_controls"`
	LibcameraControls []libcamera.ControlMeta `json:"libcamera_controls"`
	Diagnostics       diagnostics.Snapshot    `json:"diagnostics"`

	// Empty flags a model with no capabilities at all, telling the caller
	// to surface the diagnostic explanation instead of an empty panel.
	Empty bool `json:"empty"`
}

// Engine runs discovery passes over the PTZ driver, the video-control
// registry and the optional metadata-capture path.
type Engine struct {
	driver   *ptz.Driver
	registry *v4l2.Registry
	capture  *libcamera.Capture
	busPaths func() []string

	// passMu serializes discovery passes; readers never take it.
	passMu  sync.Mutex
	started bool

	state atomic.Value // State
	model atomic.Pointer[Capabilities]

	meta       []libcamera.ControlMeta
	metaStatus libcamera.Status
}

// NewEngine wires the engine to its probes. capture may be nil when the
// metadata path is disabled.
func NewEngine(driver *ptz.Driver, registry *v4l2.Registry, capture *libcamera.Capture) *Engine {
	e := &Engine{
		driver:     driver,
		registry:   registry,
		capture:    capture,
		busPaths:   bus.ChannelPaths,
		metaStatus: libcamera.StatusUnknown,
	}
	e.state.Store(StateIdle)
	e.model.Store(&Capabilities{
		CameraType:      CameraUnknown,
		I2CCapabilities: []string{},
		V4L2Controls:    []v4l2.Control{},
	})
	return e
}

// WithBusPathLister overrides bus path enumeration (tests).
func (e *Engine) WithBusPathLister(list func() []string) *Engine {
	e.busPaths = list
	return e
}

// Model returns the latest published capabilities snapshot.
func (e *Engine) Model() *Capabilities {
	return e.model.Load()
}

// State returns the engine's current pass phase.
func (e *Engine) State() State {
	return e.state.Load().(State)
}

// MetaStatus reports the outcome of the startup metadata capture.
func (e *Engine) MetaStatus() libcamera.Status {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	return e.metaStatus
}

// Startup runs the full discovery pass. The metadata capture needs
// transient exclusive access to the camera, so this must complete before
// the streaming pipeline opens the device; the capture runs exactly once
// per process.
func (e *Engine) Startup(ctx context.Context) *Capabilities {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	if !e.started {
		e.started = true
		e.enter(StateMetadataCapture)
		if e.capture != nil {
			e.meta, e.metaStatus = e.capture.Run(ctx)
		} else {
			e.metaStatus = libcamera.StatusSkipped
		}
	}

	e.enter(StateBusProbe)
	result, err := e.driver.Probe()
	if err != nil {
		log.Printf("Bus probe failed: %v", err)
	}
	if result.Kind != ptz.KindNone {
		e.driver.RestoreFocus()
	}

	return e.probeDevicesAndMerge(err != nil)
}

// Refresh re-enters the pass at DeviceProbe, e.g. after hot-plugging a
// device. The metadata capture never reruns: it would contend with the
// streaming pipeline for exclusive device access.
func (e *Engine) Refresh(ctx context.Context) *Capabilities {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	return e.probeDevicesAndMerge(false)
}

// probeDevicesAndMerge runs DeviceProbe and Merged. Callers hold passMu.
func (e *Engine) probeDevicesAndMerge(busProbeFailed bool) *Capabilities {
	e.enter(StateDeviceProbe)
	e.registry.Refresh(e.enrichControl)
	caps := e.driver.RefineCapabilities(e.registry.ControlNames())

	e.enter(StateMerged)
	model := e.merge(caps, busProbeFailed)
	e.model.Store(model)

	if model.Empty {
		for _, msg := range diagnostics.Explain(model.Diagnostics) {
			log.Printf("Diagnostics: %s", msg)
		}
	}

	e.enter(StateIdle)
	return model
}

// merge assembles a fresh capabilities model from the latest probe
// outcomes. The previous model is discarded wholesale, never patched.
func (e *Engine) merge(caps []string, busProbeFailed bool) *Capabilities {
	controls := e.registry.Controls()

	model := &Capabilities{
		CameraType:        e.cameraType(len(controls) > 0, busProbeFailed),
		I2CCapabilities:   caps,
		V4L2Controls:      controls,
		LibcameraControls: e.meta,
		Empty:             len(caps) == 0 && len(controls) == 0,
	}
	if model.I2CCapabilities == nil {
		model.I2CCapabilities = []string{}
	}
	if model.V4L2Controls == nil {
		model.V4L2Controls = []v4l2.Control{}
	}

	busPaths := e.busPaths()
	devicePaths := e.registry.Devices()
	model.Diagnostics = diagnostics.Snapshot{
		I2CBusesFound:          len(busPaths),
		I2CBusPaths:            busPaths,
		I2CBusNumber:           e.driver.Channel(),
		VideoDevicesFound:      len(devicePaths),
		VideoDevicePaths:       devicePaths,
		CameraType:             string(model.CameraType),
		I2CCapabilitiesCount:   len(model.I2CCapabilities),
		V4L2ControlsCount:      len(model.V4L2Controls),
		LibcameraControlsCount: len(model.LibcameraControls),
		LibcameraProbeStatus:   string(e.metaStatus),
	}

	return model
}

func (e *Engine) cameraType(haveControls, busProbeFailed bool) CameraType {
	switch e.driver.Kind() {
	case ptz.KindFullAxis, ptz.KindFocusOnly:
		return CameraMotorized
	}
	if busProbeFailed {
		return CameraUnknown
	}
	if haveControls {
		return CameraFixed
	}
	return CameraNone
}

// enrichControl attaches libcamera metadata to a freshly enumerated v4l2
// control when the capture reported a control with a matching name.
func (e *Engine) enrichControl(c *v4l2.Control) {
	for i := range e.meta {
		if strings.EqualFold(strings.TrimSpace(e.meta[i].Name), strings.TrimSpace(c.Name)) {
			c.Libcamera = &v4l2.MetaDetail{
				Name:    e.meta[i].Name,
				Type:    e.meta[i].Type,
				Min:     e.meta[i].Min,
				Max:     e.meta[i].Max,
				Default: e.meta[i].Default,
			}
			return
		}
	}
}

func (e *Engine) enter(state State) {
	e.state.Store(state)
	if state != StateIdle {
		log.Printf("Discovery: entering %s", state)
	}
}

// LegacyID is the numeric camera-type identifier older frontends poll:
// "1" for a full-axis controller, "0" for a bare focus motor, "2" for none.
func (e *Engine) LegacyID() string {
	switch e.driver.Kind() {
	case ptz.KindFullAxis:
		return "1"
	case ptz.KindFocusOnly:
		return "0"
	default:
		return "2"
	}
}
