package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/Thiagojm/bgtrng/bandgap"
	"github.com/Thiagojm/bgtrng/logging"
)

func stubEnumerators(t *testing.T, ports []*enumerator.PortDetails, boards []bandgap.USBInfo, serialErr, usbErr error) {
	t.Helper()
	oldSerial, oldUSB := listSerial, listUSB
	listSerial = func() ([]*enumerator.PortDetails, error) { return ports, serialErr }
	listUSB = func(uint16, uint16) ([]bandgap.USBInfo, error) { return boards, usbErr }
	t.Cleanup(func() { listSerial, listUSB = oldSerial, oldUSB })
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(logging.New(&buf, slog.LevelInfo))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

func runDetect(t *testing.T) (stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	require.NoError(t, run(cmd, nil))
	return out.String(), errOut.String()
}

func TestEnumerationErrorsAreLogged(t *testing.T) {
	stubEnumerators(t, nil, nil, errors.New("no sysfs"), errors.New("libusb unavailable"))
	logBuf := captureLog(t)

	stdout, stderr := runDetect(t)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "No band-gap boards found")
	assert.Contains(t, logBuf.String(), "serial enumeration failed")
	assert.Contains(t, logBuf.String(), "no sysfs")
	assert.Contains(t, logBuf.String(), "usb enumeration failed")
	assert.Contains(t, logBuf.String(), "libusb unavailable")
}

func TestListsBoards(t *testing.T) {
	stubEnumerators(t,
		[]*enumerator.PortDetails{{Name: "/dev/ttyACM0", IsUSB: true, VID: bandgap.SerialVID, PID: bandgap.SerialPID, Product: "BandGap"}},
		[]bandgap.USBInfo{{Bus: 1, Address: 4, SerialNumber: "BG-0001"}},
		nil, nil)
	logBuf := captureLog(t)

	stdout, _ := runDetect(t)
	assert.Contains(t, stdout, "Board 1 (serial):")
	assert.Contains(t, stdout, "Port: /dev/ttyACM0")
	assert.Contains(t, stdout, "Name: BandGap")
	assert.Contains(t, stdout, "Board 2 (usb):")
	assert.Contains(t, stdout, "Bus 001 Device 004")
	assert.Contains(t, stdout, "Serial: BG-0001")
	assert.NotContains(t, stdout, "No band-gap boards found")
	assert.Empty(t, logBuf.String())
}
