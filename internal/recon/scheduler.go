package recon

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
)

// BatchObserver is called after a batch has been committed. committed holds
// the batch results in requested order.
type BatchObserver func(batch, batches int, committed []ProbeResult)

// Scheduler fans probes out in fixed-size batches. Probes inside a batch run
// concurrently; batches run one after another, and a batch is only committed
// once every one of its probes has returned.
type Scheduler struct {
	prober    *Prober
	batchSize int
	logger    *logging.Logger
	metrics   *metrics.PrometheusMetrics
}

// NewScheduler creates a scheduler running at most batchSize probes at once.
func NewScheduler(prober *Prober, batchSize int, logger *logging.Logger, m *metrics.PrometheusMetrics) *Scheduler {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		prober:    prober,
		batchSize: batchSize,
		logger:    logger,
		metrics:   m,
	}
}

// Run probes every spec against addr and returns one result per spec in the
// same order. If ctx is done before the last batch is committed, Run returns
// ctx's error and no results.
func (s *Scheduler) Run(
	ctx context.Context,
	addr netip.Addr,
	specs []PortSpec,
	timeout time.Duration,
	observe BatchObserver,
) ([]ProbeResult, error) {
	results := make([]ProbeResult, len(specs))
	batches := (len(specs) + s.batchSize - 1) / s.batchSize

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := b * s.batchSize
		end := min(start+s.batchSize, len(specs))

		committed := s.runBatch(ctx, addr, specs[start:end], timeout)

		// A cancellation observed after the barrier discards the whole batch.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		copy(results[start:end], committed)
		s.metrics.IncrementBatches()
		if observe != nil {
			observe(b, batches, committed)
		}
	}

	return results, nil
}

// runBatch probes batch concurrently and waits for every probe. Each probe
// writes only its own slot of the returned slice.
func (s *Scheduler) runBatch(ctx context.Context, addr netip.Addr, batch []PortSpec, timeout time.Duration) []ProbeResult {
	buf := make([]ProbeResult, len(batch))

	var g errgroup.Group
	for i, spec := range batch {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Probe panicked",
						"address", addr.String(),
						"port", spec.Port,
						"panic", r)
					buf[i] = ProbeResult{
						Port:    spec.Port,
						Service: spec.Service,
						Status:  StatusError,
						Reason:  fmt.Sprintf("probe panic: %v", r),
					}
				}
			}()
			buf[i] = s.prober.Probe(ctx, addr, spec, timeout)
			return nil
		})
	}
	// Probes absorb their own failures, so Wait only acts as the barrier.
	_ = g.Wait()

	return buf
}
