package v4l2

import (
	"errors"
	"testing"
)

func TestControlValidate(t *testing.T) {
	integer := Control{Name: "Brightness", Type: TypeInteger, Min: -64, Max: 64, Step: 1}
	stepped := Control{Name: "Sharpness", Type: TypeInteger, Min: 0, Max: 100, Step: 10}
	boolean := Control{Name: "Auto White Balance", Type: TypeBoolean, Min: 0, Max: 1}
	menu := Control{Name: "Power Line Frequency", Type: TypeMenu, Min: 0, Max: 2,
		MenuItems: map[int32]string{0: "Disabled", 1: "50 Hz", 2: "60 Hz"}}
	sparseMenu := Control{Name: "Exposure, Auto", Type: TypeMenu, Min: 0, Max: 3,
		MenuItems: map[int32]string{1: "Manual Mode", 3: "Aperture Priority Mode"}}

	tests := []struct {
		name    string
		control Control
		value   int32
		wantErr bool
	}{
		{"integer in range", integer, 0, false},
		{"integer at min", integer, -64, false},
		{"integer at max", integer, 64, false},
		{"integer below min", integer, -65, true},
		{"integer above max", integer, 65, true},
		{"stepped aligned", stepped, 30, false},
		{"stepped misaligned", stepped, 35, true},
		{"boolean zero", boolean, 0, false},
		{"boolean one", boolean, 1, false},
		{"boolean other", boolean, 2, true},
		{"menu valid index", menu, 1, false},
		{"menu out of range", menu, 3, true},
		{"menu negative", menu, -1, true},
		{"sparse menu hole", sparseMenu, 2, true},
		{"sparse menu valid", sparseMenu, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.control.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%d) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestControlWritable(t *testing.T) {
	tests := []struct {
		name    string
		control Control
		want    bool
	}{
		{"plain", Control{}, true},
		{"read only", Control{ReadOnly: true}, false},
		{"inactive", Control{Inactive: true}, false},
		{"both", Control{ReadOnly: true, Inactive: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.control.Writable(); got != tt.want {
				t.Errorf("Writable() = %v, want %v", got, tt.want)
			}
		})
	}
}
