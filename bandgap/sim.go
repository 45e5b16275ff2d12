package bandgap

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math"
	mrand "math/rand"
)

// SimOptions shapes the simulated converter output.
type SimOptions struct {
	// StdDev is the standard deviation of the noise in codes. Zero selects 6.
	StdDev float64
	// Drift is the per-sample step of a slow random walk added to the midpoint,
	// in codes. Zero disables drift.
	Drift float64
	// GlitchRate is the fraction of samples replaced by a full-scale reading,
	// which the acceptance band must reject.
	GlitchRate float64
}

// Simulated is a seeded software model of the band-gap channel: Gaussian
// noise around Midpoint with optional drift and glitches.
type Simulated struct {
	r      *mrand.Rand
	opts   SimOptions
	offset float64
	reads  int
}

// NewSimulated creates a simulated source. If seed is zero, a random seed is
// drawn from crypto/rand.
func NewSimulated(seed uint64, opts SimOptions) (*Simulated, error) {
	if opts.StdDev < 0 || opts.Drift < 0 {
		return nil, errors.New("stddev and drift must not be negative")
	}
	if opts.GlitchRate < 0 || opts.GlitchRate > 1 {
		return nil, errors.New("glitch rate must be within [0, 1]")
	}
	if opts.StdDev == 0 {
		opts.StdDev = 6
	}
	if seed == 0 {
		var s [8]byte
		if _, err := crand.Read(s[:]); err != nil {
			return nil, err
		}
		seed = binary.LittleEndian.Uint64(s[:])
	}
	return &Simulated{
		r:    mrand.New(mrand.NewSource(int64(seed))),
		opts: opts,
	}, nil
}

// ReadSample returns the next simulated code.
func (s *Simulated) ReadSample(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.reads++

	if s.opts.GlitchRate > 0 && s.r.Float64() < s.opts.GlitchRate {
		return FullScale, nil
	}
	if s.opts.Drift > 0 {
		s.offset += (s.r.Float64()*2 - 1) * s.opts.Drift
	}

	v := math.Round(Midpoint() + s.offset + s.r.NormFloat64()*s.opts.StdDev)
	switch {
	case v < 0:
		v = 0
	case v > FullScale:
		v = FullScale
	}
	return uint16(v), nil
}

// Reads returns how many samples have been drawn.
func (s *Simulated) Reads() int { return s.reads }
