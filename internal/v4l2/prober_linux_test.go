//go:build linux

package v4l2

import "testing"

// The request codes must match the kernel's videodev2.h values exactly;
// the struct sizes feed into them, so this also pins the struct layouts.
func TestIoctlRequestCodes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"VIDIOC_QUERYCTRL", vidiocQueryCtrl, 0xC044565C},
		{"VIDIOC_QUERYMENU", vidiocQueryMenu, 0xC02C5625},
		{"VIDIOC_G_CTRL", vidiocGCtrl, 0xC008561B},
		{"VIDIOC_S_CTRL", vidiocSCtrl, 0xC008561C},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("request = 0x%08X, want 0x%08X", tt.got, tt.want)
			}
		})
	}
}

func TestControlTypeMapping(t *testing.T) {
	tests := []struct {
		raw    uint32
		want   ControlType
		wantOK bool
	}{
		{ctrlTypeInteger, TypeInteger, true},
		{ctrlTypeInteger64, TypeInteger, true},
		{ctrlTypeBoolean, TypeBoolean, true},
		{ctrlTypeMenu, TypeMenu, true},
		{ctrlTypeButton, TypeButton, true},
		{ctrlTypeIntegerMenu, TypeIntegerMenu, true},
		{ctrlTypeCtrlClass, "", false},
		{ctrlTypeString, "", false},
		{ctrlTypeBitmask, "", false},
		{255, "", false},
	}
	for _, tt := range tests {
		got, ok := controlType(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("controlType(%d) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCString(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("Brightness\x00\x00\x00"), "Brightness"},
		{[]byte("Zoom, Absolute\x00junk"), "Zoom, Absolute"},
		{[]byte("  padded \x00"), "padded"},
		{[]byte("\x00"), ""},
		{[]byte("no terminator"), "no terminator"},
	}
	for _, tt := range tests {
		if got := cString(tt.in); got != tt.want {
			t.Errorf("cString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeviceNumberOrdering(t *testing.T) {
	if deviceNumber("/dev/video10") != 10 || deviceNumber("/dev/video2") != 2 {
		t.Error("device numbers parsed incorrectly")
	}
}
