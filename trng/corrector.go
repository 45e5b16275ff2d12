package trng

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Thiagojm/bgtrng/bandgap"
)

var (
	// ErrSourceStuck is returned when the retry policy gives up on a source
	// that keeps producing out-of-band samples.
	ErrSourceStuck = errors.New("sample source stuck outside acceptance band")
	// ErrNotInitialized is returned when bits are requested before Initialize.
	ErrNotInitialized = errors.New("sample window not initialized")
)

// log a warning after this many consecutive rejected samples, and every
// multiple of it after that
const rejectWarnEvery = 1024

// Corrector converts band-gap samples into debiased bits with a running
// average comparator. It is not safe for concurrent use.
type Corrector struct {
	src   bandgap.Source
	win   *Window
	band  bandgap.Band
	retry RetryPolicy

	filled      bool
	initialized bool

	log     *slog.Logger
	metrics *Metrics
}

// NewCorrector creates a Corrector drawing from src.
func NewCorrector(src bandgap.Source, cfg Config) (*Corrector, error) {
	if src == nil {
		return nil, errors.New("sample source must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return newCorrector(src, cfg, newMetrics(cfg.Metrics)), nil
}

func newCorrector(src bandgap.Source, cfg Config, m *Metrics) *Corrector {
	return &Corrector{
		src:     src,
		win:     NewWindow(cfg.WindowSize),
		band:    cfg.Band,
		retry:   cfg.Retry,
		log:     cfg.Logger,
		metrics: m,
	}
}

// Initialize sets up the source, fills the window with raw samples and drops
// the first seed word. It runs once; later calls return nil immediately. A
// failed attempt may be retried.
func (c *Corrector) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	if init, ok := c.src.(bandgap.Initializer); ok {
		if err := init.Setup(ctx); err != nil {
			return fmt.Errorf("set up sample source: %w", err)
		}
	}

	// the fill is not band filtered, it only bootstraps the running sum
	fill := make([]uint16, c.win.Size())
	for i := range fill {
		v, err := c.src.ReadSample(ctx)
		if err != nil {
			return fmt.Errorf("fill window: %w", err)
		}
		c.metrics.samples.Inc()
		fill[i] = v
	}
	c.win.Reset(fill)
	c.filled = true

	// the first word is correlated with the fill sequence
	if _, err := c.ExtractSeedWord(ctx); err != nil {
		c.filled = false
		return fmt.Errorf("discard first word: %w", err)
	}

	c.initialized = true
	c.log.Debug("sample window initialized", "size", c.win.Size(), "average", c.win.Average(), "band", c.band.String())
	return nil
}

// Initialized reports whether Initialize has completed.
func (c *Corrector) Initialized() bool { return c.initialized }

// Window exposes the sample window for inspection.
func (c *Corrector) Window() *Window { return c.win }

// ExtractBit draws the next in-band sample and returns 1 if the window
// average is at least the sample, else 0. The sample then replaces the
// oldest one in the window.
func (c *Corrector) ExtractBit(ctx context.Context) (uint8, error) {
	if !c.filled {
		return 0, ErrNotInitialized
	}
	v, err := c.draw(ctx)
	if err != nil {
		return 0, err
	}

	var bit uint8
	if c.win.Average() >= uint32(v) {
		bit = 1
	}
	c.win.Push(v)
	c.metrics.bits.Inc()
	return bit, nil
}

// ExtractSeedWord assembles SeedBits bits, the first one landing in the most
// significant position.
func (c *Corrector) ExtractSeedWord(ctx context.Context) (uint32, error) {
	var word uint32
	for i := 0; i < SeedBits; i++ {
		bit, err := c.ExtractBit(ctx)
		if err != nil {
			return 0, err
		}
		word |= uint32(bit) << (SeedBits - 1 - i)
	}
	return word, nil
}

func (c *Corrector) draw(ctx context.Context) (uint16, error) {
	for attempts := 1; ; attempts++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		v, err := c.src.ReadSample(ctx)
		if err != nil {
			return 0, fmt.Errorf("read sample: %w", err)
		}
		c.metrics.samples.Inc()
		if c.band.Contains(v) {
			return v, nil
		}

		c.metrics.rejected.Inc()
		if c.retry.exhausted(attempts) {
			return 0, c.retry.fail(attempts, v, c.band)
		}
		if attempts%rejectWarnEvery == 0 {
			c.log.Warn("samples keep falling outside acceptance band", "rejected", attempts, "last", v, "band", c.band.String())
		}
	}
}
