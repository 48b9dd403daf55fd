package libcamera

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func fixedOutput(output []byte, err error) func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return output, err
	}
}

func TestRunParsesControls(t *testing.T) {
	payload := []byte(`[
		{"name": "AnalogueGain", "type": "float", "min": 1.0, "max": 16.0, "default": 1.0},
		{"name": "ExposureTime", "type": "int32", "min": 14, "max": 66666, "default": 1000}
	]`)
	c := NewCapture(WithRunner(fixedOutput(payload, nil)))

	controls, status := c.Run(context.Background())
	if status != StatusOK {
		t.Fatalf("status = %s, want ok", status)
	}
	if len(controls) != 2 {
		t.Fatalf("controls = %d, want 2", len(controls))
	}
	if controls[0].Name != "AnalogueGain" || controls[0].Source != "libcamera" {
		t.Errorf("control[0] = %+v", controls[0])
	}
}

func TestRunHelperMissing(t *testing.T) {
	c := NewCapture(WithRunner(fixedOutput(nil, exec.ErrNotFound)))

	controls, status := c.Run(context.Background())
	if status != StatusSkipped || controls != nil {
		t.Fatalf("missing helper: status=%s controls=%v, want skipped/nil", status, controls)
	}
}

func TestRunHelperFails(t *testing.T) {
	c := NewCapture(WithRunner(fixedOutput(nil, errors.New("camera busy"))))

	if _, status := c.Run(context.Background()); status != StatusError {
		t.Fatalf("status = %s, want error", status)
	}
}

func TestRunUnparseableOutput(t *testing.T) {
	c := NewCapture(WithRunner(fixedOutput([]byte("not json"), nil)))

	if _, status := c.Run(context.Background()); status != StatusError {
		t.Fatalf("status = %s, want error", status)
	}
}

func TestRunEmptyControlList(t *testing.T) {
	c := NewCapture(WithRunner(fixedOutput([]byte("[]"), nil)))

	if _, status := c.Run(context.Background()); status != StatusSkipped {
		t.Fatalf("status = %s, want skipped", status)
	}
}

func TestRunTimeout(t *testing.T) {
	c := NewCapture(
		WithTimeout(10*time.Millisecond),
		WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	)

	start := time.Now()
	_, status := c.Run(context.Background())
	if status != StatusTimeout {
		t.Fatalf("status = %s, want timeout", status)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took %s, deadline not enforced", elapsed)
	}
}
