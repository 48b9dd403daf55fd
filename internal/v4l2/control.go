// Package v4l2 enumerates and drives the image controls that video devices
// expose, and maintains a validated registry of their descriptors.
package v4l2

import "fmt"

// ControlType is the descriptor type tag. Control types the registry does
// not recognize are silently omitted during enumeration to stay forward
// compatible with driver additions.
type ControlType string

const (
	TypeInteger     ControlType = "integer"
	TypeBoolean     ControlType = "boolean"
	TypeMenu        ControlType = "menu"
	TypeIntegerMenu ControlType = "integer_menu"
	TypeButton      ControlType = "button"
)

// Control is the full metadata and current value of one driver control.
type Control struct {
	ID        uint32           `json:"id"`
	Name      string           `json:"name"`
	Type      ControlType      `json:"type"`
	Min       int32            `json:"min"`
	Max       int32            `json:"max"`
	Step      int32            `json:"step"`
	Default   int32            `json:"default"`
	Value     int32            `json:"value"`
	ReadOnly  bool             `json:"read_only"`
	Inactive  bool             `json:"inactive"`
	Device    string           `json:"device"`
	MenuItems map[int32]string `json:"menu_items,omitempty"`

	// Libcamera carries finer-grained metadata captured at startup, when
	// the one-time introspection pass matched this control by name.
	Libcamera *MetaDetail `json:"libcamera,omitempty"`
}

// MetaDetail is introspection-only metadata from the startup capture.
type MetaDetail struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Min     any    `json:"min"`
	Max     any    `json:"max"`
	Default any    `json:"default"`
}

// Validate checks value against the control's type and range constraints.
// It is a pure precondition check: a rejected value never reaches hardware.
func (c *Control) Validate(value int32) error {
	switch c.Type {
	case TypeBoolean:
		if value != 0 && value != 1 {
			return fmt.Errorf("%w: value %d is not a boolean for %q", ErrValidation, value, c.Name)
		}
		return nil
	case TypeMenu, TypeIntegerMenu:
		if value < c.Min || value > c.Max {
			return fmt.Errorf("%w: index %d outside [%d, %d] for %q", ErrValidation, value, c.Min, c.Max, c.Name)
		}
		if len(c.MenuItems) > 0 {
			if _, ok := c.MenuItems[value]; !ok {
				return fmt.Errorf("%w: index %d is not a valid option for %q", ErrValidation, value, c.Name)
			}
		}
		return nil
	}

	if value < c.Min {
		return fmt.Errorf("%w: value %d is below minimum %d for %q", ErrValidation, value, c.Min, c.Name)
	}
	if value > c.Max {
		return fmt.Errorf("%w: value %d exceeds maximum %d for %q", ErrValidation, value, c.Max, c.Name)
	}
	if c.Step > 1 && (value-c.Min)%c.Step != 0 {
		return fmt.Errorf("%w: value %d is not aligned to step %d (from minimum %d) for %q",
			ErrValidation, value, c.Step, c.Min, c.Name)
	}
	return nil
}

// Writable reports whether set commands may target this control.
func (c *Control) Writable() bool {
	return !c.ReadOnly && !c.Inactive
}
