package ptz

import (
	"strings"

	"github.com/camera-control-manager/backend/internal/bus"
)

// Default wiring to the real bus transport. Tests swap these via options.

func defaultChannels() []int {
	return bus.Channels()
}

func defaultOpen(channel int) (Bus, error) {
	return bus.Open(channel)
}

func isNotPresent(err error) bool {
	return bus.IsNotPresent(err)
}

func normalizeControlName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
