//go:build linux

package kernelpool

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open handle on /dev/random.
type Device struct {
	f *os.File
}

// Open opens /dev/random for crediting. Crediting requires CAP_SYS_ADMIN.
func Open() (*Device, error) {
	f, err := os.OpenFile("/dev/random", os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	return &Device{f: f}, nil
}

// AddEntropy mixes data into the pool and credits bits of entropy.
func (d *Device) AddEntropy(data []byte, bits int) error {
	info, err := packPoolInfo(data, bits)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.RNDADDENTROPY, uintptr(unsafe.Pointer(&info[0])))
	if errno != 0 {
		return fmt.Errorf("RNDADDENTROPY: %w", errno)
	}
	return nil
}

// EntropyCount returns the kernel's current entropy estimate in bits.
func (d *Device) EntropyCount() (int, error) {
	n, err := unix.IoctlGetInt(int(d.f.Fd()), unix.RNDGETENTCNT)
	if err != nil {
		return 0, fmt.Errorf("RNDGETENTCNT: %w", err)
	}
	return n, nil
}

// Close closes the device.
func (d *Device) Close() error {
	return d.f.Close()
}
