package recon

import (
	"context"
	"time"

	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
)

// Engine runs full scans and liveness checks against one target at a time.
// It keeps no state between calls and is safe for concurrent use.
type Engine struct {
	config    Config
	resolver  *Resolver
	scheduler *Scheduler
	logger    *logging.Logger
	metrics   *metrics.PrometheusMetrics
}

type engineOptions struct {
	dialer  Dialer
	lookup  HostLookup
	backend string
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
}

// Option customizes an Engine.
type Option func(*engineOptions)

// WithDialer replaces the dialer used by probes.
func WithDialer(d Dialer) Option {
	return func(o *engineOptions) { o.dialer = d }
}

// WithLookup replaces the hostname lookup backend.
func WithLookup(l HostLookup, backend string) Option {
	return func(o *engineOptions) {
		o.lookup = l
		o.backend = backend
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink. Without it the engine records nothing.
func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// New creates an engine from cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "invalid engine configuration", err)
	}

	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	logger := o.logger.WithComponent("recon")

	prober := NewProber(o.dialer, logger, o.metrics)

	return &Engine{
		config:    cfg,
		resolver:  NewResolver(o.lookup, o.backend, cfg.ResolveTimeout, o.metrics),
		scheduler: NewScheduler(prober, cfg.BatchSize, logger, o.metrics),
		logger:    logger,
		metrics:   o.metrics,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// FullScan resolves target, probes the reference ports (or ports, when
// given) and returns the report. Input and resolution failures return before
// any socket is opened; cancellation returns no report at all.
func (e *Engine) FullScan(ctx context.Context, target string, ports []int) (report *Report, err error) {
	startedAt := time.Now()
	e.metrics.ScanStarted()
	defer func() {
		e.metrics.ScanFinished(string(ModeFull), scanStatus(err), time.Since(startedAt))
	}()

	resolved, err := e.resolver.Resolve(ctx, target)
	if err != nil {
		e.logger.ErrorScan("Target rejected", target, err)
		return nil, err
	}

	specs, err := BuildPortSet(ports, e.config.MaxPorts)
	if err != nil {
		e.logger.ErrorScan("Port set rejected", target, err, "requested", len(ports))
		return nil, err
	}

	e.logger.InfoScan("Starting full scan", resolved.Input,
		"address", resolved.Address.String(),
		"ports", len(specs),
		"batch_size", e.config.BatchSize)

	results, err := e.scheduler.Run(ctx, resolved.Address, specs, e.config.ProbeTimeout, e.logBatch(resolved))
	if err != nil {
		err = errors.ErrScanCancelled(resolved.Input, err)
		e.logger.ErrorScan("Full scan cancelled", resolved.Input, err)
		return nil, err
	}

	report = newReport(ModeFull, resolved, startedAt, results)
	e.logger.InfoScan("Full scan completed", resolved.Input,
		"scan_id", report.ID.String(),
		"duration", report.Duration,
		"open", report.Summary.Open,
		"closed", report.Summary.Closed,
		"filtered", report.Summary.Filtered,
		"errors", report.Summary.Errors)

	return report, nil
}

// QuickScan probes the fixed liveness ports in a single pass and reports
// whether the host answered on any of them.
func (e *Engine) QuickScan(ctx context.Context, target string) (result *LivenessResult, err error) {
	startedAt := time.Now()
	e.metrics.ScanStarted()
	defer func() {
		e.metrics.ScanFinished(string(ModeQuick), scanStatus(err), time.Since(startedAt))
	}()

	resolved, err := e.resolver.Resolve(ctx, target)
	if err != nil {
		e.logger.ErrorScan("Target rejected", target, err)
		return nil, err
	}

	specs := QuickPortSet(e.config.QuickPorts)
	results, err := e.scheduler.Run(ctx, resolved.Address, specs, e.config.QuickProbeTimeout, nil)
	if err != nil {
		err = errors.ErrScanCancelled(resolved.Input, err)
		e.logger.ErrorScan("Quick scan cancelled", resolved.Input, err)
		return nil, err
	}

	result = newLivenessResult(newReport(ModeQuick, resolved, startedAt, results))
	e.logger.InfoScan("Quick scan completed", resolved.Input,
		"is_up", result.IsUp,
		"open", result.OpenPortCount,
		"duration", time.Since(startedAt))

	return result, nil
}

func (e *Engine) logBatch(target Target) BatchObserver {
	return func(batch, batches int, committed []ProbeResult) {
		e.logger.Debug("Batch committed",
			"target", target.Input,
			"batch", batch+1,
			"batches", batches,
			"ports", len(committed))
	}
}

// scanStatus is the metrics label for a finished scan.
func scanStatus(err error) string {
	if err == nil {
		return "success"
	}
	switch errors.ClassOf(err) {
	case errors.ClassInput:
		return "rejected"
	case errors.ClassResolution:
		return "unresolved"
	case errors.ClassCancellation:
		return "cancelled"
	default:
		return "error"
	}
}
