package bandgap

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBand(t *testing.T) {
	t.Parallel()

	b := DefaultBand()
	assert.Equal(t, Band{Low: 1439, High: 1539}, b)
	assert.True(t, b.Contains(1439))
	assert.True(t, b.Contains(1539))
	assert.True(t, b.Contains(1489))
	assert.False(t, b.Contains(1438))
	assert.False(t, b.Contains(1540))
	assert.NoError(t, b.Validate())
}

func TestNewBandClamps(t *testing.T) {
	t.Parallel()

	b := NewBand(5000)
	assert.Equal(t, uint16(0), b.Low)
	assert.Equal(t, uint16(FullScale), b.High)

	assert.Error(t, Band{Low: 10, High: 5}.Validate())
	assert.Error(t, Band{Low: 10, High: FullScale + 1}.Validate())
}

func TestSimulatedDeterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := NewSimulated(42, SimOptions{})
	require.NoError(t, err)
	b, err := NewSimulated(42, SimOptions{})
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		va, err := a.ReadSample(ctx)
		require.NoError(t, err)
		vb, err := b.ReadSample(ctx)
		require.NoError(t, err)
		require.Equal(t, va, vb)
		require.LessOrEqual(t, va, uint16(FullScale))
	}
	assert.Equal(t, 1000, a.Reads())
}

func TestSimulatedGlitches(t *testing.T) {
	t.Parallel()

	s, err := NewSimulated(1, SimOptions{GlitchRate: 1})
	require.NoError(t, err)
	v, err := s.ReadSample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(FullScale), v)
	assert.False(t, DefaultBand().Contains(v))

	_, err = NewSimulated(1, SimOptions{GlitchRate: 2})
	assert.Error(t, err)
	_, err = NewSimulated(1, SimOptions{StdDev: -1})
	assert.Error(t, err)
}

func TestSimulatedCanceled(t *testing.T) {
	t.Parallel()

	s, err := NewSimulated(1, SimOptions{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadSample(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, err := LoadReplay(bytes.NewReader([]byte{0xd1, 0x05, 0xff, 0xff}))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Remaining())

	v, err := r.ReadSample(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x05d1), v)

	v, err = r.ReadSample(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0fff), v, "codes are masked to 12 bits")

	_, err = r.ReadSample(ctx)
	assert.ErrorIs(t, err, io.EOF)

	_, err = LoadReplay(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}
