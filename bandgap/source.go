package bandgap

import (
	"context"
	"fmt"
)

// Converter characteristics of the sampled band-gap channel.
const (
	// Resolution is the ADC resolution in bits.
	Resolution = 12
	// FullScale is the largest code the ADC returns.
	FullScale = 1<<Resolution - 1
	// CodeMask keeps the conversion bits of a data register read.
	CodeMask = FullScale

	// ReferenceVolts is the nominal band-gap voltage.
	ReferenceVolts = 1.2
	// SupplyVolts is the ADC reference (full-scale) voltage.
	SupplyVolts = 3.3

	// DefaultTolerance is the default half-width of the acceptance band, in codes.
	DefaultTolerance = 50
)

// Source triggers one conversion and returns the raw 12-bit code. ReadSample
// blocks until the conversion is done.
type Source interface {
	ReadSample(ctx context.Context) (uint16, error)
}

// Initializer is implemented by sources that need one-time hardware setup
// before the first conversion.
type Initializer interface {
	Setup(ctx context.Context) error
}

// Midpoint returns the code the band-gap reference should read at on an ideal
// converter.
func Midpoint() float64 {
	return ReferenceVolts / SupplyVolts * FullScale
}

// Band is an inclusive range of accepted codes.
type Band struct {
	Low  uint16
	High uint16
}

// NewBand returns the acceptance band of +/- tolerance codes around Midpoint.
// Bounds are truncated toward zero and clamped to the converter range.
func NewBand(tolerance int) Band {
	mid := Midpoint()
	low := int(mid - float64(tolerance))
	high := int(mid + float64(tolerance))
	if low < 0 {
		low = 0
	}
	if high > FullScale {
		high = FullScale
	}
	return Band{Low: uint16(low), High: uint16(high)}
}

// DefaultBand returns NewBand(DefaultTolerance).
func DefaultBand() Band {
	return NewBand(DefaultTolerance)
}

// Contains reports whether code lies inside the band.
func (b Band) Contains(code uint16) bool {
	return code >= b.Low && code <= b.High
}

// Validate checks that the band is not inverted and fits the converter range.
func (b Band) Validate() error {
	if b.Low > b.High {
		return fmt.Errorf("band low %d above high %d", b.Low, b.High)
	}
	if b.High > FullScale {
		return fmt.Errorf("band high %d above full scale %d", b.High, FullScale)
	}
	return nil
}

func (b Band) String() string {
	return fmt.Sprintf("[%d, %d]", b.Low, b.High)
}
