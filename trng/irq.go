package trng

import (
	"context"
	"errors"
	"time"

	"github.com/tevino/abool"
)

// ErrHardwareTimeout is returned when the accelerator does not signal
// completion within the configured timeout.
var ErrHardwareTimeout = errors.New("accelerator did not signal completion")

// Completion holds one done flag per interrupt source. The interrupt handler
// only sets flags; only the foreground clears them.
type Completion struct {
	flags  [numSources]*abool.AtomicBool
	notify [numSources]chan struct{}
}

// NewCompletion returns a Completion with all flags clear.
func NewCompletion() *Completion {
	c := &Completion{}
	for i := range c.flags {
		c.flags[i] = abool.New()
		c.notify[i] = make(chan struct{}, 1)
	}
	return c
}

// HandleInterrupt is the crypto interrupt handler. It routes the interrupt
// to exactly one source, PRNG first, and acknowledges it on the line.
func (c *Completion) HandleInterrupt(line InterruptLine) {
	switch {
	case line.Pending(PRNGDone):
		c.signal(PRNGDone)
		line.Clear(PRNGDone)
	case line.Pending(AESDone):
		c.signal(AESDone)
		line.Clear(AESDone)
	}
}

func (c *Completion) signal(src InterruptSource) {
	c.flags[src].Set()
	select {
	case c.notify[src] <- struct{}{}:
	default:
	}
}

// Done reports whether src has signalled since it was last cleared.
func (c *Completion) Done(src InterruptSource) bool {
	return c.flags[src].IsSet()
}

// Clear resets the flag of src. Call it before arming the hardware.
func (c *Completion) Clear(src InterruptSource) {
	c.flags[src].UnSet()
	select {
	case <-c.notify[src]:
	default:
	}
}

// Wait blocks until src is signalled, ctx is done, or timeout elapses.
// A zero timeout waits without a deadline.
func (c *Completion) Wait(ctx context.Context, src InterruptSource, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for !c.flags[src].IsSet() {
		select {
		case <-c.notify[src]:
		case <-deadline:
			if c.flags[src].IsSet() {
				return nil
			}
			return ErrHardwareTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
