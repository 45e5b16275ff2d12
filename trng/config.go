package trng

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-multierror"

	"github.com/Thiagojm/bgtrng/bandgap"
)

const (
	// DefaultWindowSize is the number of recent samples the average is taken over.
	DefaultWindowSize = 32
	// SeedBits is the number of debiased bits in one seed word.
	SeedBits = 32
	// MaxWindowSize is the largest window whose running sum cannot overflow
	// a uint32, whatever uint16 samples it holds.
	MaxWindowSize = math.MaxUint32 / math.MaxUint16
)

// RetryPolicy bounds how many consecutive out-of-band samples a bit
// extraction tolerates.
type RetryPolicy struct {
	// MaxAttempts is the number of draws after which extraction gives up.
	// Zero retries forever.
	MaxAttempts int
	// Fallback is returned (wrapped) when MaxAttempts is exhausted. Nil
	// selects ErrSourceStuck.
	Fallback error
}

func (p RetryPolicy) exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

func (p RetryPolicy) fail(attempts int, last uint16, band bandgap.Band) error {
	fallback := p.Fallback
	if fallback == nil {
		fallback = ErrSourceStuck
	}
	return fmt.Errorf("%w: %d consecutive samples outside %s, last %d", fallback, attempts, band, last)
}

// Config tunes a Pipeline. The zero value is usable: every zero field is
// replaced by its default.
type Config struct {
	// WindowSize is the number of samples in the sliding window.
	WindowSize int
	// Band is the acceptance band. The zero band selects bandgap.DefaultBand.
	Band bandgap.Band
	// Retry limits rejected draws per bit.
	Retry RetryPolicy
	// HarvestTimeout bounds the wait for the completion interrupt. Zero waits
	// until the context is done.
	HarvestTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Set
}

// DefaultConfig returns the configuration matching the reference firmware:
// 32-sample window, +/-50 code band, unbounded retries and waits.
func DefaultConfig() Config {
	return Config{
		WindowSize: DefaultWindowSize,
		Band:       bandgap.DefaultBand(),
	}
}

func (c Config) withDefaults() Config {
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.Band == (bandgap.Band{}) {
		c.Band = bandgap.DefaultBand()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewSet()
	}
	return c
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.WindowSize < 0 || c.WindowSize > MaxWindowSize {
		result = multierror.Append(result, fmt.Errorf("window size must be within 0..%d", MaxWindowSize))
	}
	if err := c.Band.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Retry.MaxAttempts < 0 {
		result = multierror.Append(result, errors.New("max attempts must not be negative"))
	}
	if c.HarvestTimeout < 0 {
		result = multierror.Append(result, errors.New("harvest timeout must not be negative"))
	}
	return result.ErrorOrNil()
}
