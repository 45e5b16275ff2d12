package trng

import (
	"encoding/binary"
	"fmt"
)

// BlockSize is the number of bytes one harvest produces.
const BlockSize = 32

// Block is the output of one harvest.
type Block [BlockSize]byte

// Word returns the i-th 32-bit word of the block in the accelerator's
// little-endian register order.
func (b *Block) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(b[4*i:])
}

// KeySize selects how many bits the PRNG engine generates per run.
type KeySize uint8

// PRNG engine modes.
const (
	KeySize64 KeySize = iota + 1
	KeySize128
	KeySize192
	KeySize256
)

// ParseKeySize maps a bit count to a KeySize.
func ParseKeySize(bits int) (KeySize, error) {
	switch bits {
	case 64:
		return KeySize64, nil
	case 128:
		return KeySize128, nil
	case 192:
		return KeySize192, nil
	case 256:
		return KeySize256, nil
	default:
		return 0, fmt.Errorf("unsupported key size %d (allowed: 64, 128, 192, 256)", bits)
	}
}

// Valid reports whether k is one of the defined modes.
func (k KeySize) Valid() bool {
	return k >= KeySize64 && k <= KeySize256
}

// Bytes returns the generated output length for the mode.
func (k KeySize) Bytes() int {
	if !k.Valid() {
		return 0
	}
	return int(k) * 8
}

func (k KeySize) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KeySize(%d)", uint8(k))
	}
	return fmt.Sprintf("%d-bit", k.Bytes()*8)
}

// InterruptSource tags which engine raised the shared crypto interrupt.
type InterruptSource uint8

// Completion sources sharing the crypto interrupt line.
const (
	PRNGDone InterruptSource = iota
	AESDone

	numSources
)

func (s InterruptSource) String() string {
	switch s {
	case PRNGDone:
		return "prng-done"
	case AESDone:
		return "aes-done"
	default:
		return fmt.Sprintf("InterruptSource(%d)", uint8(s))
	}
}

// InterruptLine is the status side of the crypto interrupt: which sources
// are pending, and how to acknowledge them.
type InterruptLine interface {
	Pending(src InterruptSource) bool
	Clear(src InterruptSource)
}

// InterruptHandler is invoked in interrupt context whenever the accelerator
// raises its interrupt line.
type InterruptHandler func(line InterruptLine)

// Accelerator is the register interface of the crypto accelerator.
type Accelerator interface {
	// EnableClock turns on the accelerator's clock domain.
	EnableClock() error
	EnablePRNGInterrupt() error
	DisablePRNGInterrupt() error
	// SeedAndStart loads seed into the PRNG engine when reseed is set and
	// starts one generation run of the given size. Completion is signalled
	// through the attached interrupt handler.
	SeedAndStart(size KeySize, reseed bool, seed uint32) error
	// ReadOutput copies the generated output into out.
	ReadOutput(out *Block) error
	// Attach registers the interrupt handler.
	Attach(h InterruptHandler)
}
