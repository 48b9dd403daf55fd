// Package ptz drives the Arducam motor controller over I2C: pan, tilt,
// zoom, focus and IR-cut switching.
package ptz

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// ControllerAddr is the fixed I2C address of the Arducam motor controller.
const ControllerAddr = 0x0C

// Motor controller register map.
const (
	regZoom   = 0x00
	regFocus  = 0x01
	regStatus = 0x04
	regPan    = 0x05
	regTilt   = 0x06
	regIRCut  = 0x0C
)

// maxWriteRetries bounds how often a transient bus fault is retried before
// the command is reported as failed. NotPresent is never retried.
const maxWriteRetries = 10

// Declared axis ranges. The UI clamps client-side; the driver mirrors the
// same ranges and rejects anything outside them.
const (
	PanMin, PanMax   = 0, 180
	TiltMin, TiltMax = 0, 180
	ZoomMin, ZoomMax = 0, 1000
	FocusMin, FocusMax = 0, 1000

	// Focus-only VCM chips (DW9714) accept a narrower DAC range.
	vcmFocusMin, vcmFocusMax = 100, 1000
)

// Capability names one controllable axis.
type Capability = string

const (
	CapPan   Capability = "pan"
	CapTilt  Capability = "tilt"
	CapZoom  Capability = "zoom"
	CapFocus Capability = "focus"
	CapIRCut Capability = "ircut"
)

// Kind describes what kind of controller answered the probe.
type Kind int

const (
	// KindNone means no controller answered on any bus.
	KindNone Kind = iota
	// KindFullAxis is the pan/tilt/zoom/focus/ircut controller on bus 1.
	KindFullAxis
	// KindFocusOnly is a bare VCM focus chip found on another bus.
	KindFocusOnly
)

func (k Kind) String() string {
	switch k {
	case KindFullAxis:
		return "full_axis"
	case KindFocusOnly:
		return "focus_only"
	default:
		return "none"
	}
}

// State mirrors the hardware's last acknowledged position. It is only
// mutated after a bus transaction succeeds, so it never drifts from what
// the controller accepted.
type State struct {
	Pan     int  `json:"pan"`
	Tilt    int  `json:"tilt"`
	Zoom    int  `json:"zoom"`
	Focus   int  `json:"focus"`
	IRCutOn bool `json:"ircut_on"`
}

// OutOfRangeError rejects a value outside an axis's declared range.
type OutOfRangeError struct {
	Axis     string
	Value    int
	Min, Max int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s value %d out of range [%d, %d]", e.Axis, e.Value, e.Min, e.Max)
}

// ErrUnsupported is returned when the probed controller lacks the axis.
var ErrUnsupported = errors.New("axis not supported by this camera")

// ErrNoController is returned for writes issued before a successful probe.
var ErrNoController = errors.New("no motor controller present")

// Bus is the slice of the bus transport the driver needs. *bus.Handle
// satisfies it.
type Bus interface {
	Channel() int
	ReadByte(addr byte) (byte, error)
	ReadBlock(addr, reg byte, n int) ([]byte, error)
	WriteByte(addr, reg, value byte) error
	WriteBlock(addr, reg byte, data []byte) error
	Close() error
}

// FocusStore persists the focus position across restarts. It is the only
// piece of controller state that survives a restart.
type FocusStore interface {
	FocusLevel() (int, error)
	SaveFocusLevel(level int) error
}

// Driver owns the controller bus handle and the acknowledged state.
type Driver struct {
	openBus      func(channel int) (Bus, error)
	listChannels func() []int
	store        FocusStore

	mu    sync.Mutex
	bus   Bus
	kind  Kind
	caps  map[Capability]bool
	state State
}

// Option configures a Driver.
type Option func(*Driver)

// WithBusOpener overrides how bus channels are opened (tests).
func WithBusOpener(open func(channel int) (Bus, error)) Option {
	return func(d *Driver) { d.openBus = open }
}

// WithChannelLister overrides bus channel enumeration (tests).
func WithChannelLister(list func() []int) Option {
	return func(d *Driver) { d.listChannels = list }
}

// WithFocusStore wires focus persistence.
func WithFocusStore(store FocusStore) Option {
	return func(d *Driver) { d.store = store }
}

// NewDriver creates a driver. Probe must run before any axis command.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		caps: make(map[Capability]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProbeResult reports what a probe pass found.
type ProbeResult struct {
	Kind    Kind
	Channel int // bus channel the controller answered on; -1 when none
}

// Probe attempts a liveness transaction at the controller address on every
// exposed bus channel. Bus 1 hosts the full-axis controller on supported
// cameras, so it is tried first; a controller on any other bus is treated
// as a bare focus motor. Absence is an expected outcome, not an error:
// only unexpected bus faults are returned.
func (d *Driver) Probe() (ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closeLocked()
	d.kind = KindNone
	d.caps = make(map[Capability]bool)

	channels := d.channels()

	var probeErr error
	for _, priority := range []bool{true, false} {
		for _, ch := range channels {
			if (ch == 1) != priority {
				continue
			}
			h, ok, err := d.probeChannel(ch)
			if err != nil {
				probeErr = err
				continue
			}
			if !ok {
				continue
			}
			d.bus = h
			if ch == 1 {
				d.kind = KindFullAxis
			} else {
				d.kind = KindFocusOnly
			}
			d.caps = baseCapabilities(d.kind)
			log.Printf("PTZ controller found: kind=%s bus=%d", d.kind, ch)
			return ProbeResult{Kind: d.kind, Channel: ch}, nil
		}
	}

	return ProbeResult{Kind: KindNone, Channel: -1}, probeErr
}

// probeChannel opens a channel and checks whether a device ACKs the
// controller address. The handle is kept open only on success.
func (d *Driver) probeChannel(channel int) (Bus, bool, error) {
	h, err := d.open(channel)
	if err != nil {
		return nil, false, err
	}
	if _, err := h.ReadByte(ControllerAddr); err != nil {
		h.Close()
		if isNotPresent(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return h, true, nil
}

// Kind returns the controller kind found by the last probe.
func (d *Driver) Kind() Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kind
}

// Channel returns the bus channel of the active controller, or -1.
func (d *Driver) Channel() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return -1
	}
	return d.bus.Channel()
}

// Capabilities returns the sorted capability set of the probed controller.
// An empty slice means no PTZ hardware is present.
func (d *Driver) Capabilities() []Capability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capsLocked()
}

func (d *Driver) capsLocked() []Capability {
	caps := make([]Capability, 0, len(d.caps))
	for c := range d.caps {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// State returns the last acknowledged controller state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetPan pans the camera to the given angle.
func (d *Driver) SetPan(angle int) error {
	if angle < PanMin || angle > PanMax {
		return &OutOfRangeError{Axis: CapPan, Value: angle, Min: PanMin, Max: PanMax}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeAxis(CapPan, regPan, angle); err != nil {
		return err
	}
	d.state.Pan = angle
	return nil
}

// SetTilt tilts the camera to the given angle.
func (d *Driver) SetTilt(angle int) error {
	if angle < TiltMin || angle > TiltMax {
		return &OutOfRangeError{Axis: CapTilt, Value: angle, Min: TiltMin, Max: TiltMax}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeAxis(CapTilt, regTilt, angle); err != nil {
		return err
	}
	d.state.Tilt = angle
	return nil
}

// SetZoom moves the zoom motor to the given level.
func (d *Driver) SetZoom(level int) error {
	if level < ZoomMin || level > ZoomMax {
		return &OutOfRangeError{Axis: CapZoom, Value: level, Min: ZoomMin, Max: ZoomMax}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeAxis(CapZoom, regZoom, level); err != nil {
		return err
	}
	d.state.Zoom = level
	return nil
}

// SetFocus moves the focus motor to the given position. Accepted positions
// are persisted so they can be restored after a restart.
func (d *Driver) SetFocus(position int) error {
	if position < FocusMin || position > FocusMax {
		return &OutOfRangeError{Axis: CapFocus, Value: position, Min: FocusMin, Max: FocusMax}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.caps[CapFocus] {
		return ErrUnsupported
	}

	switch d.kind {
	case KindFullAxis:
		if err := d.writeAxis(CapFocus, regFocus, position); err != nil {
			return err
		}
	case KindFocusOnly:
		if err := d.writeVCMFocus(position); err != nil {
			return err
		}
	default:
		return ErrNoController
	}

	d.state.Focus = position
	d.persistFocus(position)
	return nil
}

// SetIRCut switches the infrared-cut filter.
func (d *Driver) SetIRCut(on bool) error {
	value := 0
	if on {
		value = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeAxis(CapIRCut, regIRCut, value); err != nil {
		return err
	}
	d.state.IRCutOn = on
	return nil
}

// RestoreFocus re-applies the persisted focus position after a probe found
// a focus-capable controller. Called once at startup.
func (d *Driver) RestoreFocus() {
	if d.store == nil {
		return
	}
	d.mu.Lock()
	focusable := d.caps[CapFocus]
	d.mu.Unlock()
	if !focusable {
		return
	}
	level, err := d.store.FocusLevel()
	if err != nil {
		log.Printf("Failed to load persisted focus level: %v", err)
		return
	}
	log.Printf("Restoring focus to %d", level)
	if err := d.SetFocus(level); err != nil {
		log.Printf("Failed to restore focus: %v", err)
	}
}

// RefineCapabilities recomputes the capability set from the probed
// controller kind and cross-checks it against control names discovered on
// the video devices. A capability is pruned only when the video driver
// confirmed at least one of focus/zoom but not this one; with no video
// evidence at all the I2C-declared set stands (the axes may be I2C-only).
// Starting from the base set each pass means a hot-plugged lens can win a
// previously pruned capability back on refresh.
func (d *Driver) RefineCapabilities(controlNames []string) []Capability {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.caps = baseCapabilities(d.kind)

	if len(controlNames) == 0 {
		return d.capsLocked()
	}

	confirmed := make(map[Capability]bool)
	for _, name := range controlNames {
		switch normalizeControlName(name) {
		case "focus", "focus (absolute)", "focus_absolute", "focus, absolute":
			confirmed[CapFocus] = true
		case "zoom", "zoom (absolute)", "zoom_absolute", "zoom, absolute":
			confirmed[CapZoom] = true
		}
	}

	if len(confirmed) > 0 {
		for _, cap := range []Capability{CapFocus, CapZoom} {
			if d.caps[cap] && !confirmed[cap] {
				delete(d.caps, cap)
			}
		}
	}
	return d.capsLocked()
}

// Close releases the controller bus handle.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Driver) closeLocked() {
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			log.Printf("Failed to close i2c bus: %v", err)
		}
		d.bus = nil
	}
}

// writeAxis validates the capability, waits for controller readiness and
// issues a retried 2-byte register write. Callers hold d.mu.
func (d *Driver) writeAxis(cap Capability, reg byte, value int) error {
	if !d.caps[cap] {
		return ErrUnsupported
	}
	if d.bus == nil {
		return ErrNoController
	}
	if !d.readyLocked() {
		return fmt.Errorf("%s: controller busy", cap)
	}
	return d.retryWrite(func() error {
		return d.bus.WriteBlock(ControllerAddr, reg, valueToBytes(value))
	})
}

// writeVCMFocus drives a bare DW9714-style VCM chip. The two bytes of a
// plain register write both encode the DAC position; there is no named
// register. Callers hold d.mu.
func (d *Driver) writeVCMFocus(position int) error {
	if d.bus == nil {
		return ErrNoController
	}
	if position < vcmFocusMin {
		position = vcmFocusMin
	}
	if position > vcmFocusMax {
		position = vcmFocusMax
	}
	encoded := (position << 4) & 0x3FF0
	data1 := byte((encoded >> 8) & 0x3F)
	data2 := byte(encoded & 0xF0)
	return d.retryWrite(func() error {
		return d.bus.WriteByte(ControllerAddr, data1, data2)
	})
}

// retryWrite retries transient bus faults. A NotPresent answer means the
// camera was unplugged; retrying cannot help.
func (d *Driver) retryWrite(write func() error) error {
	var err error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		err = write()
		if err == nil {
			return nil
		}
		if isNotPresent(err) {
			return err
		}
	}
	return err
}

// readyLocked reads the status register; bit 0 of the second byte set
// means a previous motor command is still executing. Focus-only chips have
// no status register and are always considered ready.
func (d *Driver) readyLocked() bool {
	if d.kind != KindFullAxis {
		return true
	}
	status, err := d.bus.ReadBlock(ControllerAddr, regStatus, 2)
	if err != nil || len(status) < 2 {
		return false
	}
	return status[1]&0x01 == 0
}

func (d *Driver) persistFocus(position int) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveFocusLevel(position); err != nil {
		log.Printf("Failed to persist focus level: %v", err)
	}
}

func (d *Driver) channels() []int {
	if d.listChannels != nil {
		return d.listChannels()
	}
	return defaultChannels()
}

func (d *Driver) open(channel int) (Bus, error) {
	if d.openBus != nil {
		return d.openBus(channel)
	}
	return defaultOpen(channel)
}

func valueToBytes(value int) []byte {
	return []byte{byte(value >> 8), byte(value)}
}

// baseCapabilities is the capability set a controller kind declares before
// any cross-check against video-control evidence.
func baseCapabilities(kind Kind) map[Capability]bool {
	switch kind {
	case KindFullAxis:
		return map[Capability]bool{
			CapPan: true, CapTilt: true, CapZoom: true,
			CapFocus: true, CapIRCut: true,
		}
	case KindFocusOnly:
		return map[Capability]bool{CapFocus: true}
	default:
		return map[Capability]bool{}
	}
}
