// collect harvests a batch of bits from the pipeline at a fixed interval and
// stores the raw bytes in a .bin file and the ones count per batch in a .csv
// file, both named by the capture convention.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thiagojm/bgtrng/config"
	"github.com/Thiagojm/bgtrng/logging"
	"github.com/Thiagojm/bgtrng/naming"
	"github.com/Thiagojm/bgtrng/report"
)

var (
	rootCmd = &cobra.Command{
		Use:          "collect",
		Short:        "Collect random bits at an interval into .bin and .csv files",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	flags       *config.Flags
	bitCount    int
	intervalSec int
	outDir      string
)

func init() {
	flags = config.BindFlags(rootCmd.Flags())
	rootCmd.Flags().IntVarP(&bitCount, "bits", "b", 2048, "number of bits per batch")
	rootCmd.Flags().IntVarP(&intervalSec, "interval", "i", 1, "seconds between batches")
	rootCmd.Flags().StringVarP(&outDir, "outdir", "o", "data", "output directory")
}

type sink struct {
	bin, csv *os.File
	binBuf   *bufio.Writer
	csvBuf   *bufio.Writer
}

func openSink(binPath, csvPath string) (*sink, error) {
	binFile, err := os.OpenFile(binPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open bin file: %w", err)
	}
	csvFile, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = binFile.Close()
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	return &sink{
		bin:    binFile,
		csv:    csvFile,
		binBuf: bufio.NewWriter(binFile),
		csvBuf: bufio.NewWriter(csvFile),
	}, nil
}

// write appends one batch and flushes both files so an interrupted capture
// stays usable.
func (s *sink) write(batch []byte, ts string, ones int) error {
	if _, err := s.binBuf.Write(batch); err != nil {
		return fmt.Errorf("write bin: %w", err)
	}
	if _, err := fmt.Fprintf(s.csvBuf, "%s,%d\n", ts, ones); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := s.binBuf.Flush(); err != nil {
		return err
	}
	return s.csvBuf.Flush()
}

func (s *sink) Close() error {
	return errors.Join(s.bin.Close(), s.csv.Close())
}

func run(cmd *cobra.Command, _ []string) error {
	if bitCount <= 0 {
		return errors.New("--bits must be > 0")
	}
	if intervalSec <= 0 {
		return errors.New("--interval must be > 0")
	}
	cfg, err := flags.Load()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return err
	}

	pipeline, closer, err := cfg.NewPipeline(logger, nil)
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Device, err)
	}
	defer closer.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating outdir: %w", err)
	}
	binPath, csvPath, err := naming.BuildBinCSVPaths(outDir, time.Now(), cfg.Device, bitCount, intervalSec)
	if err != nil {
		return err
	}
	out, err := openSink(binPath, csvPath)
	if err != nil {
		return err
	}
	defer out.Close()

	interval := time.Duration(intervalSec) * time.Second
	byteCount := (bitCount + 7) / 8
	unused := byteCount*8 - bitCount
	logger.Info("collecting", "bits", bitCount, "interval", interval, "device", cfg.Device, "bin", binPath)

	sample := 0
	err = pipeline.CollectAtInterval(cmd.Context(), byteCount, interval, func(batch []byte) {
		// zero the bits past bitCount so the .bin matches the ones count
		batch[len(batch)-1] &= 0xFF << unused
		ones := report.CountOnes(batch, bitCount)
		ts := time.Now().Format("20060102T15:04:05")
		if werr := out.write(batch, ts, ones); werr != nil {
			logger.Error("write failed", "err", werr)
			return
		}
		sample++
		fmt.Fprintf(cmd.OutOrStdout(), "sample %d: ones=%d/%d at %s\n", sample, ones, bitCount, ts)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("collection stopped", "samples", sample)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("collect failed", "err", err)
		os.Exit(1)
	}
}
