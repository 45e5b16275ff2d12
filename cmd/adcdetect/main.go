// adcdetect lists the band-gap boards attached as serial ports or as USB
// vendor devices.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thiagojm/bgtrng/bandgap"
	"github.com/Thiagojm/bgtrng/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:          "adcdetect",
		Short:        "List attached band-gap sampling boards",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	vid, pid uint16

	listSerial = bandgap.ListSerial
	listUSB    = bandgap.ListUSB
)

func init() {
	rootCmd.Flags().Uint16Var(&vid, "vid", bandgap.DefaultUSBVendorID, "USB vendor ID of the board")
	rootCmd.Flags().Uint16Var(&pid, "pid", bandgap.DefaultUSBProductID, "USB product ID of the board")
}

func run(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	found := 0

	ports, err := listSerial()
	if err != nil {
		slog.Warn("serial enumeration failed", "err", err)
	}
	for _, p := range ports {
		found++
		fmt.Fprintf(out, "Board %d (serial):\n", found)
		fmt.Fprintf(out, "  Port: %s\n", p.Name)
		if p.Product != "" {
			fmt.Fprintf(out, "  Name: %s\n", p.Product)
		}
		if p.SerialNumber != "" {
			fmt.Fprintf(out, "  Serial: %s\n", p.SerialNumber)
		}
		fmt.Fprintf(out, "  VID:PID: %s:%s\n", p.VID, p.PID)
	}

	boards, err := listUSB(vid, pid)
	if err != nil {
		slog.Warn("usb enumeration failed", "err", err)
	}
	for _, b := range boards {
		found++
		fmt.Fprintf(out, "Board %d (usb):\n", found)
		fmt.Fprintf(out, "  Bus %03d Device %03d\n", b.Bus, b.Address)
		if b.Product != "" {
			fmt.Fprintf(out, "  Name: %s\n", b.Product)
		}
		if b.SerialNumber != "" {
			fmt.Fprintf(out, "  Serial: %s\n", b.SerialNumber)
		}
	}

	if found == 0 {
		fmt.Fprintf(out, "No band-gap boards found (serial %s:%s, usb %04x:%04x)\n",
			bandgap.SerialVID, bandgap.SerialPID, vid, pid)
	}
	return nil
}

func main() {
	slog.SetDefault(logging.New(os.Stderr, slog.LevelInfo))
	if err := rootCmd.Execute(); err != nil {
		slog.Error("adcdetect failed", "err", err)
		os.Exit(1)
	}
}
