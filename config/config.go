// Package config loads the YAML configuration of the pipeline and builds its
// sample source and accelerator.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/Thiagojm/bgtrng/bandgap"
	"github.com/Thiagojm/bgtrng/engine"
	"github.com/Thiagojm/bgtrng/logging"
	"github.com/Thiagojm/bgtrng/naming"
	"github.com/Thiagojm/bgtrng/trng"
)

// Serial selects the serial-attached board.
type Serial struct {
	// Port is the serial port name. Empty means auto-detect.
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// USB selects the USB-attached board.
type USB struct {
	VID uint16 `yaml:"vid"`
	PID uint16 `yaml:"pid"`
}

// Replay selects a recorded sample file (little-endian uint16 codes).
type Replay struct {
	Path string `yaml:"path"`
}

// Sim shapes the simulated source.
type Sim struct {
	Seed       uint64  `yaml:"seed"`
	StdDev     float64 `yaml:"stddev"`
	Drift      float64 `yaml:"drift"`
	GlitchRate float64 `yaml:"glitch_rate"`
}

// Engine configures the software accelerator.
type Engine struct {
	Cipher  string        `yaml:"cipher"`
	Latency time.Duration `yaml:"latency"`
}

// File is the on-disk configuration.
type File struct {
	Device naming.Device `yaml:"device"`
	Serial Serial        `yaml:"serial"`
	USB    USB           `yaml:"usb"`
	Replay Replay        `yaml:"replay"`
	Sim    Sim           `yaml:"sim"`

	WindowSize     int           `yaml:"window_size"`
	Tolerance      int           `yaml:"tolerance"`
	MaxAttempts    int           `yaml:"max_attempts"`
	HarvestTimeout time.Duration `yaml:"harvest_timeout"`

	Engine   Engine `yaml:"engine"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Device:     naming.DeviceSim,
		Serial:     Serial{Baud: bandgap.DefaultBaudRate},
		USB:        USB{VID: bandgap.DefaultUSBVendorID, PID: bandgap.DefaultUSBProductID},
		Sim:        Sim{StdDev: 6},
		WindowSize: trng.DefaultWindowSize,
		Tolerance:  bandgap.DefaultTolerance,
		Engine:     Engine{Cipher: engine.CipherAES},
		LogLevel:   "info",
	}
}

// Load reads and validates the configuration at path. Keys missing from the
// file keep their defaults.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration. Unknown keys are an error.
func Parse(r io.Reader) (*File, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *File) Validate() error {
	var errs *multierror.Error

	if err := c.Device.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	switch c.Device {
	case naming.DeviceADC:
		if c.Serial.Baud <= 0 {
			errs = multierror.Append(errs, errors.New("serial.baud must be > 0"))
		}
	case naming.DeviceReplay:
		if c.Replay.Path == "" {
			errs = multierror.Append(errs, errors.New("replay.path is required for the replay device"))
		}
	}
	if c.Sim.StdDev < 0 || c.Sim.Drift < 0 {
		errs = multierror.Append(errs, errors.New("sim.stddev and sim.drift must not be negative"))
	}
	if c.Sim.GlitchRate < 0 || c.Sim.GlitchRate > 1 {
		errs = multierror.Append(errs, errors.New("sim.glitch_rate must be within [0, 1]"))
	}
	if c.Tolerance < 0 {
		errs = multierror.Append(errs, errors.New("tolerance must not be negative"))
	}
	if c.Engine.Latency < 0 {
		errs = multierror.Append(errs, errors.New("engine.latency must not be negative"))
	}
	if c.Engine.Cipher != engine.CipherAES && c.Engine.Cipher != engine.CipherSerpent {
		errs = multierror.Append(errs, fmt.Errorf("engine.cipher must be %s or %s", engine.CipherAES, engine.CipherSerpent))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.PipelineConfig(nil, nil).Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}

// PipelineConfig converts the file into a trng.Config. A nil logger or set
// leaves the pipeline defaults in place.
func (c *File) PipelineConfig(logger *slog.Logger, set *metrics.Set) trng.Config {
	return trng.Config{
		WindowSize:     c.WindowSize,
		Band:           bandgap.NewBand(c.Tolerance),
		Retry:          trng.RetryPolicy{MaxAttempts: c.MaxAttempts},
		HarvestTimeout: c.HarvestTimeout,
		Logger:         logger,
		Metrics:        set,
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// OpenSource opens the configured sample source. The returned closer must be
// called when the source is no longer used.
func (c *File) OpenSource() (bandgap.Source, io.Closer, error) {
	switch c.Device {
	case naming.DeviceSim:
		src, err := bandgap.NewSimulated(c.Sim.Seed, bandgap.SimOptions{
			StdDev:     c.Sim.StdDev,
			Drift:      c.Sim.Drift,
			GlitchRate: c.Sim.GlitchRate,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, nopCloser, nil

	case naming.DeviceADC:
		port := c.Serial.Port
		if port == "" {
			var err error
			if port, err = bandgap.FindPort(); err != nil {
				return nil, nil, err
			}
		}
		src, err := bandgap.OpenSerial(port, c.Serial.Baud)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil

	case naming.DeviceUSB:
		src, err := bandgap.OpenUSB(c.USB.VID, c.USB.PID)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil

	case naming.DeviceReplay:
		f, err := os.Open(c.Replay.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open replay: %w", err)
		}
		defer f.Close()
		src, err := bandgap.LoadReplay(f)
		if err != nil {
			return nil, nil, fmt.Errorf("load replay %s: %w", c.Replay.Path, err)
		}
		return src, nopCloser, nil

	default:
		return nil, nil, c.Device.Validate()
	}
}

// NewAccelerator builds the software accelerator.
func (c *File) NewAccelerator() (*engine.Soft, error) {
	return engine.New(engine.Options{
		Cipher:  c.Engine.Cipher,
		Latency: c.Engine.Latency,
	})
}

// NewPipeline opens the source and accelerator and wires them into a
// pipeline. The closer releases both.
func (c *File) NewPipeline(logger *slog.Logger, set *metrics.Set) (*trng.Pipeline, io.Closer, error) {
	src, srcCloser, err := c.OpenSource()
	if err != nil {
		return nil, nil, err
	}
	acc, err := c.NewAccelerator()
	if err != nil {
		_ = srcCloser.Close()
		return nil, nil, err
	}
	p, err := trng.New(src, acc, c.PipelineConfig(logger, set))
	if err != nil {
		_ = srcCloser.Close()
		return nil, nil, err
	}
	return p, closerFunc(func() error {
		var errs *multierror.Error
		if err := acc.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := srcCloser.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
		return errs.ErrorOrNil()
	}), nil
}
