package trng_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thiagojm/bgtrng/bandgap"
	"github.com/Thiagojm/bgtrng/engine"
	"github.com/Thiagojm/bgtrng/trng"
)

func newSimPipeline(t *testing.T, seed uint64) *trng.Pipeline {
	t.Helper()
	src, err := bandgap.NewSimulated(seed, bandgap.SimOptions{GlitchRate: 0.1})
	require.NoError(t, err)
	acc, err := engine.New(engine.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = acc.Close() })

	p, err := trng.New(src, acc, trng.DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestSimulatedPipelineReproducible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newSimPipeline(t, 1234)
	b := newSimPipeline(t, 1234)

	outA := make([]byte, 100)
	outB := make([]byte, 100)
	n, err := a.Poll(ctx, outA)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	_, err = b.Poll(ctx, outB)
	require.NoError(t, err)

	assert.Equal(t, outA, outB)
	assert.NotEqual(t, make([]byte, 100), outA)
	assert.Greater(t, a.Metrics().Rejected(), uint64(0), "glitches are rejected")
}

func TestSimulatedPipelineBlocksDiffer(t *testing.T) {
	t.Parallel()

	p := newSimPipeline(t, 99)
	out := make([]byte, 2*trng.BlockSize)
	_, err := p.Poll(context.Background(), out)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(out[:trng.BlockSize], out[trng.BlockSize:]))
}

func TestSimulatedPipelineFillsWholeBlocks(t *testing.T) {
	t.Parallel()

	p := newSimPipeline(t, 7)
	out := make([]byte, 4*trng.BlockSize)
	n, err := p.Poll(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, len(out), n)

	// every 8-byte word of every block carries generator output
	zero := make([]byte, 8)
	for off := 0; off < len(out); off += 8 {
		assert.NotEqual(t, zero, out[off:off+8], "zero word at offset %d", off)
	}
	assert.Equal(t, uint64(4), p.Metrics().Harvests())
}
