//go:build !linux

package bus

import (
	"errors"
	"time"
)

// I2C character devices only exist on Linux; other platforms get a stub so
// the rest of the backend still builds for local development.

func openDevice(channel int, timeout time.Duration) (transactor, error) {
	return nil, errors.New("i2c is only supported on linux")
}

func classify(err error) ErrorKind {
	return IOFault
}
