package bandgap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Replay returns a recorded sequence of codes, one per ReadSample call, and
// io.EOF once the sequence is exhausted.
type Replay struct {
	codes []uint16
	pos   int
}

// NewReplay replays codes in order. The slice is not copied.
func NewReplay(codes []uint16) *Replay {
	return &Replay{codes: codes}
}

// LoadReplay reads a capture of little-endian uint16 codes. A trailing odd
// byte is an error.
func LoadReplay(r io.Reader) (*Replay, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, errors.New("capture length is not a multiple of 2 bytes")
	}
	codes := make([]uint16, len(raw)/2)
	for i := range codes {
		codes[i] = binary.LittleEndian.Uint16(raw[2*i:]) & CodeMask
	}
	return NewReplay(codes), nil
}

// ReadSample returns the next recorded code.
func (r *Replay) ReadSample(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.pos >= len(r.codes) {
		return 0, io.EOF
	}
	v := r.codes[r.pos]
	r.pos++
	return v, nil
}

// Remaining returns the number of codes not yet replayed.
func (r *Replay) Remaining() int { return len(r.codes) - r.pos }
