package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Device identifies the sample source a capture was taken from.
type Device string

const (
	DeviceADC    Device = "adc"
	DeviceUSB    Device = "usb"
	DeviceSim    Device = "sim"
	DeviceReplay Device = "replay"
)

const stampLayout = "20060102T150405"

// Devices lists the allowed device identifiers.
func Devices() []Device {
	return []Device{DeviceADC, DeviceUSB, DeviceSim, DeviceReplay}
}

// Validate checks whether d is one of the allowed device identifiers.
func (d Device) Validate() error {
	for _, ok := range Devices() {
		if d == ok {
			return nil
		}
	}
	return fmt.Errorf("invalid device: %q (allowed: adc, usb, sim, replay)", string(d))
}

// BuildBaseName builds the base filename using the convention:
//
//	YYYYMMDDTHHMMSS_{device}_s{bits}_i{interval}
//
// bits is the sample size per collection and interval the number of seconds
// between collections; both must be positive.
func BuildBaseName(now time.Time, device Device, bits int, intervalSeconds int) (string, error) {
	if err := device.Validate(); err != nil {
		return "", err
	}
	if bits <= 0 {
		return "", errors.New("bits must be > 0")
	}
	if intervalSeconds <= 0 {
		return "", errors.New("intervalSeconds must be > 0")
	}
	return fmt.Sprintf("%s_%s_s%d_i%d", now.Format(stampLayout), string(device), bits, intervalSeconds), nil
}

// Capture is the information encoded in a base name.
type Capture struct {
	Time            time.Time
	Device          Device
	Bits            int
	IntervalSeconds int
}

var baseNameRe = regexp.MustCompile(`^(\d{8}T\d{6})_([a-z]+)_s(\d+)_i(\d+)$`)

// ParseBaseName reverses BuildBaseName. Directories and extensions are
// ignored, so a full path to a .bin or .csv file is accepted.
func ParseBaseName(name string) (Capture, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	m := baseNameRe.FindStringSubmatch(base)
	if m == nil {
		return Capture{}, fmt.Errorf("not a capture file name: %s", filepath.Base(name))
	}
	stamp, err := time.ParseInLocation(stampLayout, m[1], time.Local)
	if err != nil {
		return Capture{}, fmt.Errorf("bad timestamp in %s: %w", base, err)
	}
	c := Capture{Time: stamp, Device: Device(m[2])}
	if err := c.Device.Validate(); err != nil {
		return Capture{}, err
	}
	if c.Bits, err = strconv.Atoi(m[3]); err != nil || c.Bits <= 0 {
		return Capture{}, fmt.Errorf("bad bit count in %s", base)
	}
	if c.IntervalSeconds, err = strconv.Atoi(m[4]); err != nil || c.IntervalSeconds <= 0 {
		return Capture{}, fmt.Errorf("bad interval in %s", base)
	}
	return c, nil
}

// WithExt appends an extension to a base name. A leading dot in ext is
// accepted. Empty ext returns base.
func WithExt(base string, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}

// JoinDir joins an optional directory with the filename.
func JoinDir(dir string, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// BuildBinCSVPaths builds full paths for the .bin and .csv outputs of one
// capture inside dir (dir may be empty).
func BuildBinCSVPaths(dir string, now time.Time, device Device, bits int, intervalSeconds int) (binPath string, csvPath string, err error) {
	base, err := BuildBaseName(now, device, bits, intervalSeconds)
	if err != nil {
		return "", "", err
	}
	return JoinDir(dir, WithExt(base, "bin")), JoinDir(dir, WithExt(base, "csv")), nil
}
