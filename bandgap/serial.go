package bandgap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DeviceNamePrefix identifies the sampling board in the product string or
// serial number reported by the USB CDC interface.
const DeviceNamePrefix = "BandGap"

// USB identifiers of the board's virtual COM port.
const (
	SerialVID = "0416"
	SerialPID = "5011"
)

// DefaultBaudRate is used when OpenSerial is given a zero baud rate.
const DefaultBaudRate = 115200

// Board commands. Every command is a single byte; the trigger command is
// answered with the 12-bit code as two little-endian bytes.
const (
	cmdEnable  = 'E'
	cmdTrigger = 'T'
)

// conversionTimeout bounds a single trigger/response exchange.
const conversionTimeout = 2 * time.Second

// ListSerial returns the serial ports that belong to band-gap boards.
func ListSerial() ([]*enumerator.PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating ports: %w", err)
	}
	var boards []*enumerator.PortDetails
	for _, p := range ports {
		if isBandGapPort(p) && p.Name != "" {
			boards = append(boards, p)
		}
	}
	return boards, nil
}

// DetectSerial returns true if a band-gap board is attached as a serial port.
func DetectSerial() (bool, error) {
	boards, err := ListSerial()
	if err != nil {
		return false, err
	}
	return len(boards) > 0, nil
}

// FindPort returns the port path of the first attached board, e.g.
// "/dev/ttyACM0" or "COM5".
func FindPort() (string, error) {
	boards, err := ListSerial()
	if err != nil {
		return "", err
	}
	if len(boards) == 0 {
		return "", errors.New("band-gap board not found")
	}
	return boards[0].Name, nil
}

// SerialSource reads conversions from a board attached as a serial port.
type SerialSource struct {
	port serial.Port
	name string
	buf  [2]byte
}

// OpenSerial opens portName. An empty portName selects the first detected
// board; a zero baud selects DefaultBaudRate.
func OpenSerial(portName string, baud int) (*SerialSource, error) {
	if baud < 0 {
		return nil, errors.New("baud must not be negative")
	}
	if baud == 0 {
		baud = DefaultBaudRate
	}
	if portName == "" {
		var err error
		portName, err = FindPort()
		if err != nil {
			return nil, err
		}
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	return &SerialSource{port: port, name: portName}, nil
}

// Name returns the port path.
func (s *SerialSource) Name() string { return s.name }

// Setup raises DTR, drops stale input and switches the board's converter to
// the band-gap channel.
func (s *SerialSource) Setup(ctx context.Context) error {
	if err := s.port.SetDTR(true); err != nil {
		return fmt.Errorf("set DTR: %w", err)
	}
	if err := s.port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	// not fatal, the first trigger resynchronizes anyway
	_ = s.port.ResetInputBuffer()

	if _, err := s.port.Write([]byte{cmdEnable}); err != nil {
		return fmt.Errorf("enable band-gap channel: %w", err)
	}
	return ctx.Err()
}

// ReadSample triggers one conversion and reads the code back.
func (s *SerialSource) ReadSample(ctx context.Context) (uint16, error) {
	if _, err := s.port.Write([]byte{cmdTrigger}); err != nil {
		return 0, fmt.Errorf("trigger: %w", err)
	}

	total := 0
	deadline := time.Now().Add(conversionTimeout)
	for total < len(s.buf) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("conversion timeout after %s: read %d/%d bytes", conversionTimeout, total, len(s.buf))
		}
		n, err := s.port.Read(s.buf[total:])
		if err != nil {
			return 0, fmt.Errorf("read: %w", err)
		}
		total += n
	}
	return binary.LittleEndian.Uint16(s.buf[:]) & CodeMask, nil
}

// Close closes the serial port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

func isBandGapPort(p *enumerator.PortDetails) bool {
	if p == nil {
		return false
	}
	if p.IsUSB && strings.HasPrefix(p.Product, DeviceNamePrefix) {
		return true
	}
	if p.IsUSB && strings.HasPrefix(p.SerialNumber, DeviceNamePrefix) {
		return true
	}
	return strings.EqualFold(p.VID, SerialVID) && strings.EqualFold(p.PID, SerialPID)
}
