package trng

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tevino/abool"
)

var (
	// ErrHarvestInFlight is returned when a harvest is started while another
	// one is still waiting on the accelerator.
	ErrHarvestInFlight = errors.New("harvest already in flight")
	// ErrNotAttached is returned by accelerators used before a handler is attached.
	ErrNotAttached = errors.New("no interrupt handler attached")
)

// harvestMode is the PRNG mode of every harvest. Only the 256-bit mode fills
// a whole Block per run.
const harvestMode = KeySize256

// Harvester runs the seed-then-harvest protocol against an accelerator.
type Harvester struct {
	acc     Accelerator
	corr    *Corrector
	done    *Completion
	timeout time.Duration

	inFlight *abool.AtomicBool

	log     *slog.Logger
	metrics *Metrics
}

// NewHarvester creates a Harvester and attaches its interrupt handler to acc.
// The Harvester reports into the corrector's metrics; cfg.Metrics is ignored.
func NewHarvester(acc Accelerator, corr *Corrector, cfg Config) (*Harvester, error) {
	if acc == nil {
		return nil, errors.New("accelerator must not be nil")
	}
	if corr == nil {
		return nil, errors.New("corrector must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return newHarvester(acc, corr, cfg, corr.metrics), nil
}

func newHarvester(acc Accelerator, corr *Corrector, cfg Config, m *Metrics) *Harvester {
	h := &Harvester{
		acc:      acc,
		corr:     corr,
		done:     NewCompletion(),
		timeout:  cfg.HarvestTimeout,
		inFlight: abool.New(),
		log:      cfg.Logger,
		metrics:  m,
	}
	acc.Attach(h.done.HandleInterrupt)
	return h
}

// Completion returns the completion flags the attached handler writes to.
func (h *Harvester) Completion() *Completion { return h.done }

// Harvest seeds the PRNG engine with a fresh seed word, waits for the
// completion interrupt and reads one block into out. The corrector must be
// initialized.
func (h *Harvester) Harvest(ctx context.Context, out *Block) (err error) {
	if !h.inFlight.SetToIf(false, true) {
		return ErrHarvestInFlight
	}
	defer h.inFlight.UnSet()
	start := time.Now()

	if err := h.acc.EnableClock(); err != nil {
		return fmt.Errorf("enable accelerator clock: %w", err)
	}
	if err := h.acc.EnablePRNGInterrupt(); err != nil {
		return fmt.Errorf("enable prng interrupt: %w", err)
	}
	defer func() {
		if derr := h.acc.DisablePRNGInterrupt(); derr != nil && err == nil {
			err = fmt.Errorf("disable prng interrupt: %w", derr)
		}
	}()

	seed, err := h.corr.ExtractSeedWord(ctx)
	if err != nil {
		return fmt.Errorf("extract seed word: %w", err)
	}

	h.done.Clear(PRNGDone)
	if err := h.acc.SeedAndStart(harvestMode, true, seed); err != nil {
		return fmt.Errorf("seed prng: %w", err)
	}
	if err := h.done.Wait(ctx, PRNGDone, h.timeout); err != nil {
		if errors.Is(err, ErrHardwareTimeout) {
			h.metrics.timeouts.Inc()
			h.log.Warn("prng completion interrupt timed out", "timeout", h.timeout)
			return fmt.Errorf("%w after %s", err, h.timeout)
		}
		return err
	}

	if err := h.acc.ReadOutput(out); err != nil {
		return fmt.Errorf("read prng output: %w", err)
	}

	h.metrics.harvests.Inc()
	h.metrics.harvestDuration.UpdateDuration(start)
	h.log.Debug("harvested block", "mode", harvestMode.String(), "took", time.Since(start))
	return nil
}
