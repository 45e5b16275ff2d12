package config

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thiagojm/bgtrng/bandgap"
	"github.com/Thiagojm/bgtrng/naming"
	"github.com/Thiagojm/bgtrng/trng"
)

const sampleConfig = `
device: sim
sim: {seed: 7, stddev: 4.5, glitch_rate: 0.01}
usb: {vid: 0x1234, pid: 0x5678}
tolerance: 40
max_attempts: 1000
harvest_timeout: 250ms
engine: {cipher: serpent, latency: 1ms}
log_level: debug
`

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, naming.DeviceSim, cfg.Device)
	assert.Equal(t, uint64(7), cfg.Sim.Seed)
	assert.InDelta(t, 4.5, cfg.Sim.StdDev, 1e-9)
	assert.Equal(t, uint16(0x1234), cfg.USB.VID)
	assert.Equal(t, 250*time.Millisecond, cfg.HarvestTimeout)
	assert.Equal(t, "serpent", cfg.Engine.Cipher)
	assert.Equal(t, time.Millisecond, cfg.Engine.Latency)
	// untouched keys keep their defaults
	assert.Equal(t, trng.DefaultWindowSize, cfg.WindowSize)
	assert.Equal(t, bandgap.DefaultBaudRate, cfg.Serial.Baud)

	pc := cfg.PipelineConfig(nil, nil)
	assert.Equal(t, bandgap.NewBand(40), pc.Band)
	assert.Equal(t, 1000, pc.Retry.MaxAttempts)
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	pc := cfg.PipelineConfig(nil, nil)
	assert.Equal(t, bandgap.DefaultBand(), pc.Band)
	assert.Equal(t, time.Duration(0), pc.HarvestTimeout)
	assert.Equal(t, 0, pc.Retry.MaxAttempts)
}

func TestParseUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("windowsize: 16\n"))
	assert.Error(t, err)
}

func TestValidateReportsAll(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Device = "bitb"
	cfg.WindowSize = trng.MaxWindowSize + 1
	cfg.Engine.Cipher = "rc4"
	cfg.LogLevel = "loud"
	cfg.MaxAttempts = -1

	err := cfg.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.GreaterOrEqual(t, len(merr.Errors), 5)

	cfg = Default()
	cfg.Device = naming.DeviceReplay
	assert.Error(t, cfg.Validate(), "replay needs a path")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bgtrng.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_size: 64\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.WindowSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenReplaySource(t *testing.T) {
	t.Parallel()

	codes := []uint16{1489, 1500, 1470}
	raw := make([]byte, 2*len(codes))
	for i, c := range codes {
		binary.LittleEndian.PutUint16(raw[2*i:], c)
	}
	path := filepath.Join(t.TempDir(), "samples.bin")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := Default()
	cfg.Device = naming.DeviceReplay
	cfg.Replay.Path = path
	src, closer, err := cfg.OpenSource()
	require.NoError(t, err)
	defer closer.Close()

	for _, want := range codes {
		got, err := src.ReadSample(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNewPipelineSim(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Sim.Seed = 11
	set := metrics.NewSet()
	p, closer, err := cfg.NewPipeline(nil, set)
	require.NoError(t, err)

	out := make([]byte, trng.BlockSize+5)
	n, err := p.Poll(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, len(out), n)
	require.NoError(t, closer.Close())
	assert.Equal(t, uint64(2), p.Metrics().Harvests())
}

func TestFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bgtrng.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sim: {seed: 3}\nharvest_timeout: 1s\n"), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--seed", "9", "--max-attempts", "50"}))

	cfg, err := flags.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), cfg.Sim.Seed)
	assert.Equal(t, 50, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.HarvestTimeout, "unset flag keeps the file value")
	assert.Equal(t, naming.DeviceSim, cfg.Device)

	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags = BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--device", "replay"}))
	_, err = flags.Load()
	assert.Error(t, err, "replay without a path")
}
