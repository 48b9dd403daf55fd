// Package bus provides mutex-guarded raw transactions over I2C bus channels.
package bus

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrorKind classifies a failed bus transaction.
type ErrorKind int

const (
	// NotPresent means no device answered at the address. This is the
	// expected outcome when probing for optional hardware, not a fault.
	NotPresent ErrorKind = iota
	// Timeout means the transaction did not complete within the deadline.
	Timeout
	// IOFault covers every other transaction failure.
	IOFault
)

func (k ErrorKind) String() string {
	switch k {
	case NotPresent:
		return "not_present"
	case Timeout:
		return "timeout"
	default:
		return "io_fault"
	}
}

// Error is a failed bus transaction with its classification.
type Error struct {
	Kind    ErrorKind
	Channel int
	Addr    byte
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("i2c-%d addr 0x%02X: %s: %v", e.Channel, e.Addr, e.Kind, e.Err)
	}
	return fmt.Sprintf("i2c-%d addr 0x%02X: %s", e.Channel, e.Addr, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotPresent reports whether err is a bus error signalling absent hardware.
func IsNotPresent(err error) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == NotPresent
}

// transactor issues one raw SMBus transaction. The production implementation
// talks to /dev/i2c-N; tests substitute a fake.
type transactor interface {
	ReadByte(addr byte) (byte, error)
	ReadBlock(addr, reg byte, n int) ([]byte, error)
	WriteByte(addr, reg, value byte) error
	WriteBlock(addr, reg byte, data []byte) error
	Close() error
}

// Handle is the exclusive-access wrapper around one bus channel. All
// transactions on the channel serialize through a single mutex, so at most
// one is in flight at any time. Handles for different channels do not
// contend with each other.
type Handle struct {
	channel int
	timeout time.Duration

	mu sync.Mutex
	tr transactor
}

// DefaultTimeout bounds a single bus transaction.
const DefaultTimeout = 1 * time.Second

// Open opens the I2C character device for the given channel number.
func Open(channel int) (*Handle, error) {
	tr, err := openDevice(channel, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return &Handle{channel: channel, timeout: DefaultTimeout, tr: tr}, nil
}

// newHandle wires an arbitrary transactor; used by tests.
func newHandle(channel int, tr transactor) *Handle {
	return &Handle{channel: channel, timeout: DefaultTimeout, tr: tr}
}

// Channel returns the bus channel number this handle owns.
func (h *Handle) Channel() int {
	return h.channel
}

// ReadByte reads a single byte from the device at addr.
func (h *Handle) ReadByte(addr byte) (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.tr.ReadByte(addr)
	if err != nil {
		return 0, h.wrap(addr, err)
	}
	return b, nil
}

// ReadBlock reads n bytes starting at register reg from the device at addr.
func (h *Handle) ReadBlock(addr, reg byte, n int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := h.tr.ReadBlock(addr, reg, n)
	if err != nil {
		return nil, h.wrap(addr, err)
	}
	return data, nil
}

// WriteByte writes a single data byte to register reg on the device at addr.
func (h *Handle) WriteByte(addr, reg, value byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.tr.WriteByte(addr, reg, value); err != nil {
		return h.wrap(addr, err)
	}
	return nil
}

// WriteBlock writes data to register reg on the device at addr.
func (h *Handle) WriteBlock(addr, reg byte, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.tr.WriteBlock(addr, reg, data); err != nil {
		return h.wrap(addr, err)
	}
	return nil
}

// Close releases the underlying device.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tr.Close()
}

// wrap classifies a raw transaction error. Retry policy belongs to the
// caller, which can tell transient faults from NotPresent.
func (h *Handle) wrap(addr byte, err error) error {
	if be, ok := err.(*Error); ok {
		return be
	}
	return &Error{Kind: classify(err), Channel: h.channel, Addr: addr, Err: err}
}

// Channels enumerates the bus channel numbers the host exposes, sorted.
func Channels() []int {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil
	}
	return channelNumbers(matches)
}

// ChannelPaths returns the device paths for every exposed bus, sorted.
func ChannelPaths() []string {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func channelNumbers(paths []string) []int {
	var nums []int
	for _, p := range paths {
		idx := strings.LastIndex(p, "-")
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(p[idx+1:])
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
