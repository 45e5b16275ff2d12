package config

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/Thiagojm/bgtrng/naming"
)

// Flags are the command line overrides shared by the tools. A flag only
// overrides the file when it was set explicitly.
type Flags struct {
	fs *pflag.FlagSet

	path     string
	device   string
	port     string
	replay   string
	seed     uint64
	timeout  time.Duration
	attempts int
	logLevel string
}

// BindFlags registers the shared flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.path, "config", "c", "", "path to a YAML config file")
	fs.StringVarP(&f.device, "device", "d", string(naming.DeviceSim), "sample source: adc|usb|sim|replay")
	fs.StringVar(&f.port, "port", "", "serial port of the adc board (auto-detect when empty)")
	fs.StringVar(&f.replay, "replay", "", "sample file for the replay device")
	fs.Uint64Var(&f.seed, "seed", 0, "seed of the simulated source (0 = random)")
	fs.DurationVar(&f.timeout, "timeout", 0, "harvest timeout (0 = wait forever)")
	fs.IntVar(&f.attempts, "max-attempts", 0, "rejected samples tolerated per bit (0 = unbounded)")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	return f
}

// Load reads the config file, if any, applies explicit flags and validates
// the result.
func (f *Flags) Load() (*File, error) {
	cfg := Default()
	if f.path != "" {
		var err error
		if cfg, err = Load(f.path); err != nil {
			return nil, err
		}
	}

	if f.fs.Changed("device") {
		cfg.Device = naming.Device(f.device)
	}
	if f.fs.Changed("port") {
		cfg.Serial.Port = f.port
	}
	if f.fs.Changed("replay") {
		cfg.Replay.Path = f.replay
	}
	if f.fs.Changed("seed") {
		cfg.Sim.Seed = f.seed
	}
	if f.fs.Changed("timeout") {
		cfg.HarvestTimeout = f.timeout
	}
	if f.fs.Changed("max-attempts") {
		cfg.MaxAttempts = f.attempts
	}
	if f.fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
