package kernelpool

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPoolInfo(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4, 5}
	info, err := packPoolInfo(data, 33)
	require.NoError(t, err)
	require.Len(t, info, 8+len(data))
	assert.Equal(t, uint32(33), binary.NativeEndian.Uint32(info[0:4]))
	assert.Equal(t, uint32(5), binary.NativeEndian.Uint32(info[4:8]))
	assert.Equal(t, data, info[8:])

	_, err = packPoolInfo(nil, 0)
	assert.Error(t, err)
	_, err = packPoolInfo(data, 41)
	assert.Error(t, err)
	_, err = packPoolInfo(make([]byte, MaxChunk+1), 8)
	assert.Error(t, err)
}

type recordingPool struct {
	chunks [][]byte
	bits   []int
	fail   error
}

func (p *recordingPool) AddEntropy(data []byte, bits int) error {
	if p.fail != nil {
		return p.fail
	}
	p.chunks = append(p.chunks, append([]byte(nil), data...))
	p.bits = append(p.bits, bits)
	return nil
}

func TestFeed(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 100))
	pool := &recordingPool{}
	fed, err := Feed(context.Background(), pool, src, FeedOptions{
		ChunkSize:   32,
		Interval:    time.Millisecond,
		BitsPerByte: 4,
	})
	require.Error(t, err, "source runs dry")
	assert.Equal(t, 96, fed)
	require.Len(t, pool.chunks, 3)
	assert.Equal(t, []int{128, 128, 128}, pool.bits)
}

func TestFeedStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := &recordingPool{}
	fed, err := Feed(ctx, pool, bytes.NewReader(make([]byte, 64)), FeedOptions{ChunkSize: 16, Interval: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 16, fed)

	errFull := errors.New("pool full")
	_, err = Feed(context.Background(), &recordingPool{fail: errFull}, bytes.NewReader(make([]byte, 64)), FeedOptions{ChunkSize: 16, Interval: time.Hour})
	assert.ErrorIs(t, err, errFull)

	_, err = Feed(context.Background(), pool, nil, FeedOptions{ChunkSize: 0, Interval: time.Second})
	assert.Error(t, err)
	_, err = Feed(context.Background(), pool, nil, FeedOptions{ChunkSize: 8, Interval: time.Second, BitsPerByte: 9})
	assert.Error(t, err)
}
