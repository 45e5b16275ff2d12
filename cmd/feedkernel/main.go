// feedkernel harvests blocks from the pipeline and credits them to the Linux
// kernel entropy pool. It needs CAP_SYS_ADMIN.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thiagojm/bgtrng/config"
	"github.com/Thiagojm/bgtrng/kernelpool"
	"github.com/Thiagojm/bgtrng/logging"
	"github.com/Thiagojm/bgtrng/trng"
)

var (
	rootCmd = &cobra.Command{
		Use:          "feedkernel",
		Short:        "Credit harvested random blocks to the kernel entropy pool",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	flags       *config.Flags
	chunk       int
	interval    time.Duration
	bitsPerByte int
)

func init() {
	flags = config.BindFlags(rootCmd.Flags())
	rootCmd.Flags().IntVar(&chunk, "chunk", trng.BlockSize, "bytes credited per round")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "time between rounds")
	rootCmd.Flags().IntVar(&bitsPerByte, "bits-per-byte", 4, "entropy credited per byte (0-8)")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := flags.Load()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return err
	}

	pool, err := kernelpool.Open()
	if err != nil {
		return fmt.Errorf("open kernel pool: %w", err)
	}
	defer pool.Close()

	pipeline, closer, err := cfg.NewPipeline(logger, nil)
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Device, err)
	}
	defer closer.Close()

	if before, err := pool.EntropyCount(); err == nil {
		logger.Info("kernel pool", "entropy_bits", before)
	}

	fed, err := kernelpool.Feed(cmd.Context(), pool, pipeline.ReaderContext(cmd.Context()), kernelpool.FeedOptions{
		ChunkSize:   chunk,
		Interval:    interval,
		BitsPerByte: bitsPerByte,
		Logger:      logger,
	})
	logger.Info("feeding stopped", "bytes", fed, "harvests", pipeline.Metrics().Harvests())
	if after, cerr := pool.EntropyCount(); cerr == nil {
		logger.Info("kernel pool", "entropy_bits", after)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("feedkernel failed", "err", err)
		os.Exit(1)
	}
}
