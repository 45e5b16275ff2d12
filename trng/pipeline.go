package trng

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/Thiagojm/bgtrng/bandgap"
)

// Status codes returned by HardwarePoll.
const (
	StatusOK = 0
	// StatusSourceFailed matches the entropy-source-failed code expected by
	// poll-callback consumers.
	StatusSourceFailed = -0x003C
)

// Pipeline owns the sample window, the completion flags and the accelerator
// of one entropy source. Its methods serialize on an internal lock, so at
// most one harvest is in flight per Pipeline.
type Pipeline struct {
	mu   sync.Mutex
	corr *Corrector
	harv *Harvester

	log     *slog.Logger
	set     *metrics.Set
	metrics *Metrics
}

// New builds a Pipeline reading samples from src and harvesting from acc.
func New(src bandgap.Source, acc Accelerator, cfg Config) (*Pipeline, error) {
	if src == nil {
		return nil, errors.New("sample source must not be nil")
	}
	if acc == nil {
		return nil, errors.New("accelerator must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	m := newMetrics(cfg.Metrics)
	corr := newCorrector(src, cfg, m)
	return &Pipeline{
		corr:    corr,
		harv:    newHarvester(acc, corr, cfg, m),
		log:     cfg.Logger,
		set:     cfg.Metrics,
		metrics: m,
	}, nil
}

// Initialize runs the one-time window fill. Poll, Uint32 and Read call it
// implicitly.
func (p *Pipeline) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.corr.Initialize(ctx)
}

// Poll fills out with harvested bytes and returns how many were written.
// Whole blocks are harvested straight into out; a trailing partial block is
// harvested into a scratch block and truncated. An empty out returns 0
// without touching the hardware. On error, the bytes of all blocks completed
// so far are reported.
func (p *Pipeline) Poll(ctx context.Context, out []byte) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.corr.Initialize(ctx); err != nil {
		return 0, err
	}

	n := 0
	for len(out)-n >= BlockSize {
		blk := (*[BlockSize]byte)(out[n : n+BlockSize])
		if err := p.harv.Harvest(ctx, (*Block)(blk)); err != nil {
			p.metrics.pollBytes.Add(n)
			return n, err
		}
		n += BlockSize
	}
	if rem := len(out) - n; rem > 0 {
		var tmp Block
		if err := p.harv.Harvest(ctx, &tmp); err != nil {
			p.metrics.pollBytes.Add(n)
			return n, err
		}
		n += copy(out[n:], tmp[:rem])
	}

	p.metrics.pollBytes.Add(n)
	return n, nil
}

// HardwarePoll is the entropy callback for poll-style consumers. data is
// unused. The produced length is stored in olen. It returns StatusOK, or
// StatusSourceFailed if a configured timeout or retry limit tripped; with the
// default configuration it blocks instead of failing.
func (p *Pipeline) HardwarePoll(data any, output []byte, olen *int) int {
	_ = data
	n, err := p.Poll(context.Background(), output)
	if olen != nil {
		*olen = n
	}
	if err != nil {
		p.log.Error("hardware poll failed", "requested", len(output), "produced", n, "err", err)
		return StatusSourceFailed
	}
	return StatusOK
}

// Uint32 harvests one block and returns its first word.
func (p *Pipeline) Uint32(ctx context.Context) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.corr.Initialize(ctx); err != nil {
		return 0, err
	}
	var blk Block
	if err := p.harv.Harvest(ctx, &blk); err != nil {
		return 0, err
	}
	return blk.Word(0), nil
}

// Read implements io.Reader on top of Poll.
func (p *Pipeline) Read(b []byte) (int, error) {
	return p.Poll(context.Background(), b)
}

var _ io.Reader = (*Pipeline)(nil)

// ReaderContext returns an io.Reader whose reads are bound to ctx.
func (p *Pipeline) ReaderContext(ctx context.Context) io.Reader {
	return ctxReader{p: p, ctx: ctx}
}

type ctxReader struct {
	p   *Pipeline
	ctx context.Context
}

func (r ctxReader) Read(b []byte) (int, error) { return r.p.Poll(r.ctx, b) }

// CollectAtInterval polls n bytes every interval, invoking onBatch with each
// batch. The first batch is read immediately. It runs until ctx is cancelled
// or a poll fails, and returns that error.
func (p *Pipeline) CollectAtInterval(ctx context.Context, n int, interval time.Duration, onBatch func([]byte)) error {
	if n <= 0 {
		return errors.New("n must be positive")
	}
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	if onBatch == nil {
		return errors.New("onBatch callback must not be nil")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := make([]byte, n)
		if _, err := p.Poll(ctx, buf); err != nil {
			return err
		}
		onBatch(buf)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Metrics returns the pipeline counters.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// WriteMetrics writes the pipeline's metric set in Prometheus text format.
func (p *Pipeline) WriteMetrics(w io.Writer) {
	p.set.WritePrometheus(w)
}

// Corrector returns the pipeline's corrector. It must not be used while
// another goroutine is polling.
func (p *Pipeline) Corrector() *Corrector { return p.corr }

// Completion returns the completion flags driven by the accelerator interrupt.
func (p *Pipeline) Completion() *Completion { return p.harv.Completion() }
