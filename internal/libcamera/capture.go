// Package libcamera captures control metadata through the libcamera stack.
//
// The capture needs transient exclusive access to the camera, so it runs
// exactly once, at startup, before the streaming pipeline claims the
// device. The captured data is introspection-only: all runtime reads and
// writes go through v4l2, which coexists with a running streamer.
package libcamera

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Status is the outcome of the one-time capture.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOK      Status = "ok"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// ControlMeta is one control's metadata as reported by libcamera. Ranges
// here are finer grained than what the v4l2 enumeration can report.
type ControlMeta struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Min     any    `json:"min"`
	Max     any    `json:"max"`
	Default any    `json:"default"`
	Source  string `json:"source"`
}

// DefaultTimeout bounds the capture so a hung camera stack can never block
// startup.
const DefaultTimeout = 5 * time.Second

// Capture runs the external libcamera introspection helper, which opens
// the camera, dumps control metadata as JSON and exits, releasing the
// device unconditionally.
type Capture struct {
	command string
	timeout time.Duration

	// run is the exec seam; tests substitute canned output.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Option configures a Capture.
type Option func(*Capture)

// WithTimeout overrides the capture deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Capture) { c.timeout = timeout }
}

// WithRunner overrides command execution (tests).
func WithRunner(run func(ctx context.Context, name string, args ...string) ([]byte, error)) Option {
	return func(c *Capture) { c.run = run }
}

// NewCapture creates a capture using the helper named by the
// LIBCAMERA_PROBE_CMD environment variable.
func NewCapture(opts ...Option) *Capture {
	c := &Capture{
		command: getEnv("LIBCAMERA_PROBE_CMD", "libcamera-probe --json"),
		timeout: DefaultTimeout,
		run:     runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the capture once. Failures are swallowed into the returned
// status: the capability is optional and must never fail startup.
func (c *Capture) Run(ctx context.Context) ([]ControlMeta, Status) {
	fields := strings.Fields(c.command)
	if len(fields) == 0 {
		return nil, StatusSkipped
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.run(ctx, fields[0], fields[1:]...)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Printf("libcamera probe timed out after %s, skipping", c.timeout)
		return nil, StatusTimeout
	case errors.Is(err, exec.ErrNotFound):
		log.Printf("libcamera probe helper %q not installed, skipping", fields[0])
		return nil, StatusSkipped
	case err != nil:
		log.Printf("libcamera probe failed (camera likely already in use): %v", err)
		return nil, StatusError
	}

	var controls []ControlMeta
	if err := json.Unmarshal(output, &controls); err != nil {
		log.Printf("libcamera probe produced unparseable output: %v", err)
		return nil, StatusError
	}
	if len(controls) == 0 {
		log.Printf("libcamera introspection captured no controls")
		return nil, StatusSkipped
	}

	for i := range controls {
		controls[i].Source = "libcamera"
	}

	names := make([]string, len(controls))
	for i, ctrl := range controls {
		names[i] = ctrl.Name
	}
	log.Printf("libcamera introspection captured %d controls: %s", len(controls), strings.Join(names, ", "))

	return controls, StatusOK
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
