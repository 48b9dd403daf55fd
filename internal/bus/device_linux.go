//go:build linux

package bus

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// i2c-dev ioctl request codes (linux/i2c-dev.h).
const (
	i2cRetries = 0x0701
	i2cTimeout = 0x0702 // in units of 10 ms
	i2cSlave   = 0x0703
)

// device talks to one /dev/i2c-N character device. The kernel serializes
// individual transfers; the Handle mutex above serializes whole transactions.
type device struct {
	fd   int
	path string
	addr byte // last slave address selected via ioctl
}

func openDevice(channel int, timeout time.Duration) (transactor, error) {
	path := fmt.Sprintf("/dev/i2c-%d", channel)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// Bound how long the kernel waits on an unresponsive device. Retries
	// stay at zero: retry policy belongs to the driver layer.
	ticks := int(timeout / (10 * time.Millisecond))
	if ticks < 1 {
		ticks = 1
	}
	_ = unix.IoctlSetInt(fd, i2cTimeout, ticks)
	_ = unix.IoctlSetInt(fd, i2cRetries, 0)

	return &device{fd: fd, path: path, addr: 0xFF}, nil
}

func (d *device) selectAddr(addr byte) error {
	if d.addr == addr {
		return nil
	}
	if err := unix.IoctlSetInt(d.fd, i2cSlave, int(addr)); err != nil {
		return err
	}
	d.addr = addr
	return nil
}

func (d *device) ReadByte(addr byte) (byte, error) {
	if err := d.selectAddr(addr); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if _, err := unix.Read(d.fd, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *device) ReadBlock(addr, reg byte, n int) ([]byte, error) {
	if err := d.selectAddr(addr); err != nil {
		return nil, err
	}
	if _, err := unix.Write(d.fd, []byte{reg}); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	read, err := unix.Read(d.fd, buf)
	if err != nil {
		return nil, err
	}
	if read != n {
		return nil, fmt.Errorf("short read: got %d of %d bytes", read, n)
	}
	return buf, nil
}

func (d *device) WriteByte(addr, reg, value byte) error {
	if err := d.selectAddr(addr); err != nil {
		return err
	}
	_, err := unix.Write(d.fd, []byte{reg, value})
	return err
}

func (d *device) WriteBlock(addr, reg byte, data []byte) error {
	if err := d.selectAddr(addr); err != nil {
		return err
	}
	_, err := unix.Write(d.fd, append([]byte{reg}, data...))
	return err
}

func (d *device) Close() error {
	return unix.Close(d.fd)
}

// classify maps a raw errno to an ErrorKind. A device that does not ACK its
// address surfaces as ENXIO or EREMOTEIO depending on the adapter driver.
func classify(err error) ErrorKind {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENXIO, unix.ENODEV, unix.EREMOTEIO:
			return NotPresent
		case unix.ETIMEDOUT, unix.EAGAIN:
			return Timeout
		}
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return Timeout
	}
	return IOFault
}
