package bus

import (
	"errors"
	"reflect"
	"testing"
)

// fakeTransactor records transactions and returns scripted errors.
type fakeTransactor struct {
	readErr  error
	writeErr error
	data     map[byte][]byte
	writes   []writeRecord
	closed   bool
}

type writeRecord struct {
	addr, reg byte
	data      []byte
}

func (f *fakeTransactor) ReadByte(addr byte) (byte, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return 0xAB, nil
}

func (f *fakeTransactor) ReadBlock(addr, reg byte, n int) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.data[reg], nil
}

func (f *fakeTransactor) WriteByte(addr, reg, value byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeRecord{addr, reg, []byte{value}})
	return nil
}

func (f *fakeTransactor) WriteBlock(addr, reg byte, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeRecord{addr, reg, data})
	return nil
}

func (f *fakeTransactor) Close() error {
	f.closed = true
	return nil
}

func TestHandleWrapsErrors(t *testing.T) {
	raw := errors.New("boom")
	h := newHandle(3, &fakeTransactor{readErr: raw})

	_, err := h.ReadByte(0x0C)
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if be.Channel != 3 || be.Addr != 0x0C {
		t.Errorf("error context = channel %d addr 0x%02X, want channel 3 addr 0x0C", be.Channel, be.Addr)
	}
	if !errors.Is(err, raw) {
		t.Error("wrapped error lost the underlying cause")
	}
}

func TestHandleKeepsPreclassifiedErrors(t *testing.T) {
	pre := &Error{Kind: NotPresent, Channel: 3, Addr: 0x0C}
	h := newHandle(3, &fakeTransactor{writeErr: pre})

	err := h.WriteByte(0x0C, 0x00, 0x01)
	var be *Error
	if !errors.As(err, &be) || be != pre {
		t.Fatalf("pre-classified error was re-wrapped: %v", err)
	}
	if !IsNotPresent(err) {
		t.Error("IsNotPresent should see through the returned error")
	}
}

func TestIsNotPresent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not present", &Error{Kind: NotPresent}, true},
		{"timeout", &Error{Kind: Timeout}, false},
		{"io fault", &Error{Kind: IOFault}, false},
		{"plain error", errors.New("nope"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotPresent(tt.err); got != tt.want {
				t.Errorf("IsNotPresent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHandleTransactions(t *testing.T) {
	tr := &fakeTransactor{data: map[byte][]byte{0x04: {0x00, 0x01}}}
	h := newHandle(1, tr)

	if got, _ := h.ReadByte(0x0C); got != 0xAB {
		t.Errorf("ReadByte = 0x%02X, want 0xAB", got)
	}
	if got, _ := h.ReadBlock(0x0C, 0x04, 2); !reflect.DeepEqual(got, []byte{0x00, 0x01}) {
		t.Errorf("ReadBlock = %v", got)
	}
	if err := h.WriteBlock(0x0C, 0x05, []byte{0x00, 0x5A}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if len(tr.writes) != 1 || tr.writes[0].reg != 0x05 {
		t.Errorf("write not recorded: %+v", tr.writes)
	}
	if err := h.Close(); err != nil || !tr.closed {
		t.Error("Close did not reach the transactor")
	}
	if h.Channel() != 1 {
		t.Errorf("Channel() = %d, want 1", h.Channel())
	}
}

func TestChannelNumbers(t *testing.T) {
	got := channelNumbers([]string{"/dev/i2c-10", "/dev/i2c-1", "/dev/i2c-0", "/dev/i2c-x", "garbage"})
	want := []int{0, 1, 10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("channelNumbers = %v, want %v", got, want)
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Kind: NotPresent, Channel: 1, Addr: 0x0C}
	if got := e.Error(); got != "i2c-1 addr 0x0C: not_present" {
		t.Errorf("Error() = %q", got)
	}
}
