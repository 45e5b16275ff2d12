// Package engine is a software model of the crypto accelerator: a PRNG engine
// and an AES engine sharing one completion interrupt line. The PRNG engine is
// a fortuna generator keyed with AES or serpent. Runs complete on their own
// goroutine, which plays the role of the interrupt context.
package engine

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aead/serpent"
	"github.com/seehuhn/fortuna"

	"github.com/Thiagojm/bgtrng/trng"
)

var (
	// ErrClockDisabled is returned for register access before EnableClock.
	ErrClockDisabled = errors.New("accelerator clock disabled")
	// ErrBusy is returned when a run is started while the engine is still busy.
	ErrBusy = errors.New("engine busy")
)

// Supported PRNG ciphers.
const (
	CipherAES     = "aes"
	CipherSerpent = "serpent"
)

// Options configure a Soft accelerator.
type Options struct {
	// Cipher keys the fortuna generator: "aes" (default) or "serpent".
	Cipher string
	// Latency delays every completion, modelling conversion time.
	Latency time.Duration
	// Stall suppresses completion interrupts, modelling a hung engine.
	Stall bool
}

// Soft implements trng.Accelerator and trng.InterruptLine in software.
type Soft struct {
	mu   sync.Mutex
	opts Options

	clock   bool
	intEn   [2]bool
	pending [2]bool
	handler trng.InterruptHandler

	gen      *fortuna.Generator
	seeded   bool
	prngBusy bool
	out      trng.Block
	starts   int

	aesKey  []byte
	aesBusy bool
	aesOut  [aes.BlockSize]byte

	runs sync.WaitGroup
}

// New creates a Soft accelerator.
func New(opts Options) (*Soft, error) {
	if opts.Cipher == "" {
		opts.Cipher = CipherAES
	}
	newCipher, err := cipherFactory(opts.Cipher)
	if err != nil {
		return nil, err
	}
	if opts.Latency < 0 {
		return nil, errors.New("latency must not be negative")
	}

	gen := fortuna.NewGenerator(newCipher)
	if gen == nil {
		return nil, errors.New("failed to initialize prng engine")
	}
	return &Soft{opts: opts, gen: gen}, nil
}

func cipherFactory(name string) (func([]byte) (cipher.Block, error), error) {
	switch name {
	case CipherAES:
		return aes.NewCipher, nil
	case CipherSerpent:
		return serpent.NewCipher, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported cipher: %s", name)
	}
}

// Attach registers the interrupt handler.
func (s *Soft) Attach(h trng.InterruptHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// EnableClock turns on the accelerator clock.
func (s *Soft) EnableClock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = true
	return nil
}

// DisableClock gates the accelerator clock.
func (s *Soft) DisableClock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = false
}

// EnablePRNGInterrupt unmasks the PRNG completion interrupt.
func (s *Soft) EnablePRNGInterrupt() error { return s.setIntEnable(trng.PRNGDone, true) }

// DisablePRNGInterrupt masks the PRNG completion interrupt.
func (s *Soft) DisablePRNGInterrupt() error { return s.setIntEnable(trng.PRNGDone, false) }

// EnableAESInterrupt unmasks the AES completion interrupt.
func (s *Soft) EnableAESInterrupt() error { return s.setIntEnable(trng.AESDone, true) }

// DisableAESInterrupt masks the AES completion interrupt.
func (s *Soft) DisableAESInterrupt() error { return s.setIntEnable(trng.AESDone, false) }

func (s *Soft) setIntEnable(src trng.InterruptSource, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clock {
		return ErrClockDisabled
	}
	s.intEn[src] = on
	return nil
}

// PRNGInterruptEnabled reports whether the PRNG interrupt is unmasked.
func (s *Soft) PRNGInterruptEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intEn[trng.PRNGDone]
}

// SeedAndStart loads seed into the generator when reseed is set (or when it
// was never seeded) and starts one run producing size.Bytes() bytes. As with
// the hardware engine, the output after a reseed depends only on the seed.
func (s *Soft) SeedAndStart(size trng.KeySize, reseed bool, seed uint32) error {
	if !size.Valid() {
		return fmt.Errorf("invalid key size %d", size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clock {
		return ErrClockDisabled
	}
	if s.handler == nil {
		return trng.ErrNotAttached
	}
	if s.prngBusy {
		return ErrBusy
	}

	if reseed || !s.seeded {
		// reset the generator so the output depends on the seed word alone
		s.gen.Seed(int64(seed))
		s.seeded = true
	}
	data := s.gen.PseudoRandomData(uint(size.Bytes()))

	s.prngBusy = true
	s.pending[trng.PRNGDone] = false
	s.starts++

	s.runs.Add(1)
	go s.complete(trng.PRNGDone, func() {
		s.out = trng.Block{}
		copy(s.out[:], data)
		s.prngBusy = false
	})
	return nil
}

// ReadOutput copies the last generated output into out. Bytes beyond the
// configured key size are zero.
func (s *Soft) ReadOutput(out *trng.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clock {
		return ErrClockDisabled
	}
	*out = s.out
	return nil
}

// SetAESKey loads the AES engine key (16, 24 or 32 bytes).
func (s *Soft) SetAESKey(key []byte) error {
	if _, err := aes.NewCipher(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aesKey = append([]byte(nil), key...)
	return nil
}

// StartAES encrypts one block with the loaded key. Completion is signalled
// on the shared interrupt line as AESDone.
func (s *Soft) StartAES(in [aes.BlockSize]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clock {
		return ErrClockDisabled
	}
	if s.handler == nil {
		return trng.ErrNotAttached
	}
	if s.aesKey == nil {
		return errors.New("aes key not loaded")
	}
	if s.aesBusy {
		return ErrBusy
	}
	block, err := aes.NewCipher(s.aesKey)
	if err != nil {
		return err
	}
	var out [aes.BlockSize]byte
	block.Encrypt(out[:], in[:])

	s.aesBusy = true
	s.pending[trng.AESDone] = false
	s.runs.Add(1)
	go s.complete(trng.AESDone, func() {
		s.aesOut = out
		s.aesBusy = false
	})
	return nil
}

// ReadAES returns the last AES result.
func (s *Soft) ReadAES() [aes.BlockSize]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aesOut
}

// complete finishes a run after the configured latency and raises the
// interrupt if its source is unmasked.
func (s *Soft) complete(src trng.InterruptSource, finish func()) {
	defer s.runs.Done()
	if s.opts.Latency > 0 {
		time.Sleep(s.opts.Latency)
	}

	s.mu.Lock()
	finish()
	if s.opts.Stall {
		s.mu.Unlock()
		return
	}
	s.pending[src] = true
	h, enabled := s.handler, s.intEn[src]
	s.mu.Unlock()

	if enabled && h != nil {
		h(s)
	}
}

// Raise marks src pending and invokes the handler as if the hardware had
// raised the line, regardless of masking. Used for fault injection.
func (s *Soft) Raise(src trng.InterruptSource) {
	s.mu.Lock()
	s.pending[src] = true
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(s)
	}
}

// SetStall switches completion interrupts off (true) or back on.
func (s *Soft) SetStall(stall bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Stall = stall
}

// Pending implements trng.InterruptLine.
func (s *Soft) Pending(src trng.InterruptSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[src]
}

// Clear implements trng.InterruptLine.
func (s *Soft) Clear(src trng.InterruptSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[src] = false
}

// Starts returns the number of PRNG runs started.
func (s *Soft) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Close waits for in-flight runs to complete.
func (s *Soft) Close() error {
	s.runs.Wait()
	return nil
}

var (
	_ trng.Accelerator   = (*Soft)(nil)
	_ trng.InterruptLine = (*Soft)(nil)
)
