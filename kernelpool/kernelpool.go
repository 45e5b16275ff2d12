// Package kernelpool credits harvested random blocks to the kernel entropy
// pool.
package kernelpool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrUnsupported is returned on platforms without an entropy ioctl.
var ErrUnsupported = errors.New("kernel entropy pool not supported on this platform")

// MaxChunk is the largest payload credited with one ioctl.
const MaxChunk = 512

// Pool accepts entropy with an entropy estimate in bits.
type Pool interface {
	AddEntropy(data []byte, bits int) error
}

// packPoolInfo lays out a struct rand_pool_info: entropy_count and buf_size
// as native ints followed by the payload.
func packPoolInfo(data []byte, bits int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("no entropy to add")
	}
	if len(data) > MaxChunk {
		return nil, fmt.Errorf("chunk of %d bytes exceeds %d", len(data), MaxChunk)
	}
	if bits < 0 || bits > 8*len(data) {
		return nil, fmt.Errorf("entropy estimate %d out of range for %d bytes", bits, len(data))
	}
	buf := make([]byte, 8+len(data))
	binary.NativeEndian.PutUint32(buf[0:4], uint32(int32(bits)))
	binary.NativeEndian.PutUint32(buf[4:8], uint32(int32(len(data))))
	copy(buf[8:], data)
	return buf, nil
}

// FeedOptions control Feed.
type FeedOptions struct {
	// ChunkSize is the number of bytes read and credited per round.
	ChunkSize int
	// Interval separates rounds.
	Interval time.Duration
	// BitsPerByte is the credited entropy per byte, 0 to 8.
	BitsPerByte int
	Logger      *slog.Logger
}

// Feed reads ChunkSize bytes from src every Interval and credits them to pool
// until ctx is done or an error occurs. It returns the number of bytes fed.
func Feed(ctx context.Context, pool Pool, src io.Reader, opts FeedOptions) (int, error) {
	if opts.ChunkSize <= 0 || opts.ChunkSize > MaxChunk {
		return 0, fmt.Errorf("chunk size must be within 1..%d", MaxChunk)
	}
	if opts.Interval <= 0 {
		return 0, errors.New("interval must be positive")
	}
	if opts.BitsPerByte < 0 || opts.BitsPerByte > 8 {
		return 0, errors.New("bits per byte must be within 0..8")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	fed := 0
	buf := make([]byte, opts.ChunkSize)
	for {
		if _, err := io.ReadFull(src, buf); err != nil {
			return fed, fmt.Errorf("read entropy: %w", err)
		}
		if err := pool.AddEntropy(buf, len(buf)*opts.BitsPerByte); err != nil {
			return fed, fmt.Errorf("add entropy: %w", err)
		}
		fed += len(buf)
		log.Debug("fed kernel pool", "bytes", len(buf), "total", fed)

		select {
		case <-ctx.Done():
			return fed, ctx.Err()
		case <-ticker.C:
		}
	}
}
