package trng

import (
	"context"
	"io"
	"sync"
)

// scriptSource replays vals, then returns io.EOF.
type scriptSource struct {
	vals  []uint16
	pos   int
	reads int
	setup int
}

func (s *scriptSource) ReadSample(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.vals) {
		return 0, io.EOF
	}
	s.reads++
	v := s.vals[s.pos]
	s.pos++
	return v, nil
}

func (s *scriptSource) Setup(context.Context) error {
	s.setup++
	return nil
}

// constSource returns the same code forever.
type constSource struct {
	v     uint16
	reads int
}

func (s *constSource) ReadSample(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.reads++
	return s.v, nil
}

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// fakeAccel completes every run on a goroutine by raising the interrupt line.
// Run k (1-based) outputs byte(k<<5 + i) at offset i.
type fakeAccel struct {
	mu      sync.Mutex
	handler InterruptHandler
	pending [numSources]bool
	out     Block

	clockOn bool
	intOn   bool
	seeds   []uint32
	modes   []KeySize
	calls   int

	// stall never completes; wrongSource completes as AESDone
	stall       bool
	wrongSource bool

	wg sync.WaitGroup
}

func (a *fakeAccel) Attach(h InterruptHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

func (a *fakeAccel) EnableClock() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.clockOn = true
	return nil
}

func (a *fakeAccel) EnablePRNGInterrupt() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.intOn = true
	return nil
}

func (a *fakeAccel) DisablePRNGInterrupt() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.intOn = false
	return nil
}

func (a *fakeAccel) SeedAndStart(size KeySize, _ bool, seed uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.seeds = append(a.seeds, seed)
	a.modes = append(a.modes, size)
	k := len(a.seeds)
	if a.stall {
		return nil
	}

	src := PRNGDone
	if a.wrongSource {
		src = AESDone
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.mu.Lock()
		for i := range a.out {
			a.out[i] = byte(k<<5) + byte(i)
		}
		a.pending[src] = true
		h := a.handler
		a.mu.Unlock()
		h(a)
	}()
	return nil
}

func (a *fakeAccel) ReadOutput(out *Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	*out = a.out
	return nil
}

func (a *fakeAccel) Pending(src InterruptSource) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[src]
}

func (a *fakeAccel) Clear(src InterruptSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[src] = false
}

func (a *fakeAccel) starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seeds)
}

func (a *fakeAccel) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeAccel) interruptEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.intOn
}

// expectedBlock returns what run k of fakeAccel outputs.
func expectedBlock(k int) Block {
	var b Block
	for i := range b {
		b[i] = byte(k<<5) + byte(i)
	}
	return b
}

// staticLine is an InterruptLine with fixed pending bits.
type staticLine struct {
	pending [numSources]bool
	cleared []InterruptSource
}

func (l *staticLine) Pending(src InterruptSource) bool { return l.pending[src] }

func (l *staticLine) Clear(src InterruptSource) {
	l.pending[src] = false
	l.cleared = append(l.cleared, src)
}
