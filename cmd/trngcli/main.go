// trngcli reads random data from the band-gap pipeline. It can dump blocks
// once or at a fixed interval, print single words, and exercise the
// poll-style entropy callback.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"

	"github.com/Thiagojm/bgtrng/config"
	"github.com/Thiagojm/bgtrng/logging"
	"github.com/Thiagojm/bgtrng/trng"
)

var (
	rootCmd = &cobra.Command{
		Use:               "trngcli",
		Short:             "Read random data from the band-gap TRNG pipeline",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return teardown(cmd.OutOrStdout())
		},
	}

	flags       *config.Flags
	dumpMetrics bool

	pipeline *trng.Pipeline
	closer   io.Closer
	set      *metrics.Set
)

func init() {
	flags = config.BindFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print pipeline metrics on exit")
}

func setup(_ *cobra.Command, _ []string) error {
	cfg, err := flags.Load()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return err
	}

	set = metrics.NewSet()
	pipeline, closer, err = cfg.NewPipeline(logger, set)
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Device, err)
	}
	logger.Debug("pipeline ready", "device", cfg.Device, "window", cfg.WindowSize, "timeout", cfg.HarvestTimeout)
	return nil
}

func teardown(w io.Writer) error {
	if closer == nil {
		return nil
	}
	if dumpMetrics {
		set.WritePrometheus(w)
	}
	return closer.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("trngcli failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	var (
		n        int
		interval time.Duration
	)
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read bytes once or at an interval and print them as hex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n <= 0 {
				return errors.New("--bytes must be > 0")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if interval == 0 {
				buf := make([]byte, n)
				if _, err := pipeline.Poll(ctx, buf); err != nil {
					return err
				}
				fmt.Fprintf(out, "read %d bytes\n%s\n", n, hex.EncodeToString(buf))
				return nil
			}

			slog.Info("reading at interval, press Ctrl+C to stop", "bytes", n, "interval", interval)
			err := pipeline.CollectAtInterval(ctx, n, interval, func(b []byte) {
				fmt.Fprintf(out, "%s  %d bytes  %s\n", time.Now().Format(time.RFC3339), len(b), hex.EncodeToString(b))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	readCmd.Flags().IntVarP(&n, "bytes", "n", trng.BlockSize, "number of bytes per read")
	readCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "interval between reads (e.g. 2s), 0 for one-shot")
	rootCmd.AddCommand(readCmd)
}

func init() {
	var count int
	wordCmd := &cobra.Command{
		Use:   "word",
		Short: "Print 32-bit random words, one harvest each",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for i := 0; i < count; i++ {
				v, err := pipeline.Uint32(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "0x%08x\n", v)
			}
			return nil
		},
	}
	wordCmd.Flags().IntVarP(&count, "count", "n", 1, "number of words")
	rootCmd.AddCommand(wordCmd)
}

func init() {
	var n int
	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Call the poll-style entropy callback and report its status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n < 0 {
				return errors.New("--bytes must not be negative")
			}
			buf := make([]byte, n)
			olen := 0
			status := pipeline.HardwarePoll(nil, buf, &olen)
			fmt.Fprintf(cmd.OutOrStdout(), "status %d, %d of %d bytes\n%s\n", status, olen, n, hex.EncodeToString(buf[:olen]))
			if status != trng.StatusOK {
				return fmt.Errorf("entropy source failed (status %d)", status)
			}
			return nil
		},
	}
	pollCmd.Flags().IntVarP(&n, "bytes", "n", trng.BlockSize, "number of bytes requested")
	rootCmd.AddCommand(pollCmd)
}
