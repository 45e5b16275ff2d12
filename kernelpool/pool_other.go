//go:build !linux

package kernelpool

// Device is unavailable on this platform.
type Device struct{}

// Open returns ErrUnsupported.
func Open() (*Device, error) { return nil, ErrUnsupported }

// AddEntropy returns ErrUnsupported.
func (d *Device) AddEntropy([]byte, int) error { return ErrUnsupported }

// EntropyCount returns ErrUnsupported.
func (d *Device) EntropyCount() (int, error) { return 0, ErrUnsupported }

// Close does nothing.
func (d *Device) Close() error { return nil }
