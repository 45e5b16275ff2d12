package bandgap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/hashicorp/go-multierror"
)

// Default USB identifiers of the board in vendor mode.
const (
	DefaultUSBVendorID  = 0x0416
	DefaultUSBProductID = 0x5020
)

// vendor requests understood by the board firmware
const (
	usbReqEnableBandGap = 0x01
	usbReqReadBandGap   = 0x02
)

// USBInfo describes an attached board.
type USBInfo struct {
	Bus          int
	Address      int
	Product      string
	SerialNumber string
}

// ListUSB returns the boards attached with the given vendor/product IDs.
func ListUSB(vid, pid uint16) ([]USBInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("enumerating usb devices: %w", err)
	}

	infos := make([]USBInfo, 0, len(devs))
	for _, d := range devs {
		info := USBInfo{Bus: d.Desc.Bus, Address: d.Desc.Address}
		info.Product, _ = d.Product()
		info.SerialNumber, _ = d.SerialNumber()
		infos = append(infos, info)
	}
	return infos, nil
}

// USBSource reads conversions from the board through vendor control requests.
//
// Usage:
//
//	s, _ := OpenUSB(DefaultUSBVendorID, DefaultUSBProductID)
//	defer s.Close()
//	_ = s.Setup(ctx)
//	code, _ := s.ReadSample(ctx)
type USBSource struct {
	ctx *gousb.Context
	dev *gousb.Device
	buf [2]byte
}

// OpenUSB opens the first board with the given IDs. Zero IDs select the defaults.
func OpenUSB(vid, pid uint16) (*USBSource, error) {
	if vid == 0 {
		vid = DefaultUSBVendorID
	}
	if pid == 0 {
		pid = DefaultUSBProductID
	}

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("band-gap board %04x:%04x not found", vid, pid)
	}
	_ = dev.SetAutoDetach(true)
	dev.ControlTimeout = conversionTimeout

	return &USBSource{ctx: ctx, dev: dev}, nil
}

// Setup switches the converter to the band-gap channel and waits for the
// analog front end to settle.
func (s *USBSource) Setup(ctx context.Context) error {
	if err := s.control(usbReqEnableBandGap, nil, false); err != nil {
		return fmt.Errorf("enable band-gap channel: %w", err)
	}
	select {
	case <-time.After(10 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadSample triggers one conversion and returns the code.
func (s *USBSource) ReadSample(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.control(usbReqReadBandGap, s.buf[:], true); err != nil {
		return 0, fmt.Errorf("read band-gap: %w", err)
	}
	return binary.LittleEndian.Uint16(s.buf[:]) & CodeMask, nil
}

// Close releases USB resources.
func (s *USBSource) Close() error {
	if s == nil {
		return nil
	}
	var result *multierror.Error
	if s.dev != nil {
		if err := s.dev.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close device: %w", err))
		}
	}
	if s.ctx != nil {
		if err := s.ctx.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close context: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func (s *USBSource) control(req uint8, data []byte, in bool) error {
	typ := uint8(gousb.ControlOut) | uint8(gousb.ControlVendor) | uint8(gousb.ControlDevice)
	if in {
		typ = uint8(gousb.ControlIn) | uint8(gousb.ControlVendor) | uint8(gousb.ControlDevice)
	}
	n, err := s.dev.Control(typ, req, 0, 0, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return errors.New("short control transfer")
	}
	return nil
}
