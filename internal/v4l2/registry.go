package v4l2

import (
	"errors"
	"log"
	"sync"
)

var (
	// ErrNotFound means the control id is unknown to the current snapshot.
	ErrNotFound = errors.New("unknown control")
	// ErrStale means a refresh superseded the snapshot a call started with.
	ErrStale = errors.New("control set superseded by refresh")
	// ErrNotWritable rejects writes to read-only or inactive controls.
	ErrNotWritable = errors.New("control is not writable")
	// ErrValidation rejects a value before any hardware access.
	ErrValidation = errors.New("validation failed")
)

// Prober enumerates video devices and performs the raw control I/O. The
// production implementation issues v4l2 ioctls; tests substitute a fake.
type Prober interface {
	// Devices lists candidate video device paths, sorted.
	Devices() []string
	// ProbeControls enumerates every control a device exposes.
	ProbeControls(device string) ([]Control, error)
	// GetValue reads the live value of one control.
	GetValue(device string, id uint32) (int32, error)
	// SetValue writes one control value to the device.
	SetValue(device string, id uint32, value int32) error
}

// snapshot is one immutable enumeration result. Readers work against the
// snapshot they fetched; Refresh swaps in a replacement wholesale, so no
// caller ever observes a mix of old and new descriptors.
type snapshot struct {
	version  uint64
	controls []*Control
	byID     map[uint32]*Control
	devices  []string
}

// Registry owns the descriptor snapshot for all detected video devices.
type Registry struct {
	prober Prober

	mu   sync.RWMutex
	snap *snapshot
}

// NewRegistry creates an empty registry. Call Refresh to populate it.
func NewRegistry(prober Prober) *Registry {
	return &Registry{
		prober: prober,
		snap:   &snapshot{byID: make(map[uint32]*Control)},
	}
}

// Enricher may attach finer-grained metadata to a freshly enumerated
// control. A nil enricher leaves descriptors untouched.
type Enricher func(c *Control)

// Refresh re-enumerates every device from scratch and atomically replaces
// the descriptor snapshot. When the same control id appears on multiple
// devices, the first device that exposes it wins (devices probe in sorted
// order). Per-device probe failures are logged and skipped; an unreadable
// device simply contributes no controls.
func (r *Registry) Refresh(enrich Enricher) []Control {
	devices := r.prober.Devices()

	next := &snapshot{
		byID:    make(map[uint32]*Control),
		devices: devices,
	}

	for _, device := range devices {
		controls, err := r.prober.ProbeControls(device)
		if err != nil {
			log.Printf("Probing controls on %s failed: %v", device, err)
			continue
		}
		for i := range controls {
			c := controls[i]
			if _, seen := next.byID[c.ID]; seen {
				continue
			}
			if enrich != nil {
				enrich(&c)
			}
			next.controls = append(next.controls, &c)
			next.byID[c.ID] = &c
		}
	}

	r.mu.Lock()
	next.version = r.snap.version + 1
	r.snap = next
	r.mu.Unlock()

	if len(next.controls) > 0 {
		log.Printf("Discovered %d video controls across %d devices", len(next.controls), len(devices))
	} else {
		log.Printf("No video controls found on any /dev/video* device")
	}

	return r.Controls()
}

// Controls returns copies of every descriptor in enumeration order.
// Copies are taken under the read lock so a concurrent Set cannot tear a
// descriptor mid-copy.
func (r *Registry) Controls() []Control {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Control, len(r.snap.controls))
	for i, c := range r.snap.controls {
		out[i] = *c
	}
	return out
}

// ControlNames returns the control names in the current snapshot.
func (r *Registry) ControlNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.snap.controls))
	for i, c := range r.snap.controls {
		names[i] = c.Name
	}
	return names
}

// Devices returns the device paths the current snapshot was probed from.
func (r *Registry) Devices() []string {
	return r.snapshot().devices
}

// Get returns a copy of the descriptor for id.
func (r *Registry) Get(id uint32) (Control, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.snap.byID[id]
	if !ok {
		return Control{}, ErrNotFound
	}
	return *c, nil
}

// CurrentValue reads the live value of a control from its device.
func (r *Registry) CurrentValue(id uint32) (int32, error) {
	snap := r.snapshot()
	c, ok := snap.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	return r.prober.GetValue(c.Device, id)
}

// Set validates value against the descriptor and writes it to the device.
// Validation is side-effect free: a rejected write never reaches hardware.
// The returned value is what the driver actually accepted (read back after
// the write), which may differ from the request when the driver rounds.
func (r *Registry) Set(id uint32, value int32) (int32, error) {
	snap := r.snapshot()
	c, ok := snap.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	if !c.Writable() {
		return 0, ErrNotWritable
	}
	if err := c.Validate(value); err != nil {
		return 0, err
	}

	if err := r.prober.SetValue(c.Device, id, value); err != nil {
		return 0, err
	}

	accepted := value
	if actual, err := r.prober.GetValue(c.Device, id); err == nil {
		accepted = actual
	}

	// Record the accepted value unless a refresh replaced the snapshot
	// mid-flight; the replacement snapshot already re-read every value.
	r.mu.Lock()
	if r.snap.version != snap.version {
		r.mu.Unlock()
		return accepted, ErrStale
	}
	c.Value = accepted
	r.mu.Unlock()

	return accepted, nil
}

func (r *Registry) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}
