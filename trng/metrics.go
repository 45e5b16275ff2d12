package trng

import (
	"github.com/VictoriaMetrics/metrics"
)

// Metrics are the pipeline counters, registered on a metrics.Set.
type Metrics struct {
	samples         *metrics.Counter
	rejected        *metrics.Counter
	bits            *metrics.Counter
	harvests        *metrics.Counter
	timeouts        *metrics.Counter
	pollBytes       *metrics.Counter
	harvestDuration *metrics.Histogram
}

func newMetrics(set *metrics.Set) *Metrics {
	return &Metrics{
		samples:         set.GetOrCreateCounter("bgtrng_samples_total"),
		rejected:        set.GetOrCreateCounter("bgtrng_samples_rejected_total"),
		bits:            set.GetOrCreateCounter("bgtrng_bits_total"),
		harvests:        set.GetOrCreateCounter("bgtrng_harvests_total"),
		timeouts:        set.GetOrCreateCounter("bgtrng_harvest_timeouts_total"),
		pollBytes:       set.GetOrCreateCounter("bgtrng_poll_bytes_total"),
		harvestDuration: set.GetOrCreateHistogram("bgtrng_harvest_duration_seconds"),
	}
}

// Samples returns the number of conversions read, including rejected ones.
func (m *Metrics) Samples() uint64 { return m.samples.Get() }

// Rejected returns the number of out-of-band samples.
func (m *Metrics) Rejected() uint64 { return m.rejected.Get() }

// Bits returns the number of debiased bits produced.
func (m *Metrics) Bits() uint64 { return m.bits.Get() }

// Harvests returns the number of completed harvests.
func (m *Metrics) Harvests() uint64 { return m.harvests.Get() }

// Timeouts returns the number of harvests that timed out.
func (m *Metrics) Timeouts() uint64 { return m.timeouts.Get() }

// PollBytes returns the number of bytes delivered through Poll.
func (m *Metrics) PollBytes() uint64 { return m.pollBytes.Get() }
