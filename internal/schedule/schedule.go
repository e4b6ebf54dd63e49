// Package schedule runs recurring full scans on cron expressions and stores
// their reports in the report history when one is configured.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/recon"
)

// Scanner runs the full scan of a scheduled job.
type Scanner interface {
	FullScan(ctx context.Context, target string, ports []int) (*recon.Report, error)
}

// ReportSaver persists the report of a finished scheduled scan.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *recon.Report) error
}

// Job is one recurring scan.
type Job struct {
	Name   string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Cron   string `yaml:"cron" json:"cron" mapstructure:"cron" validate:"required"`
	Target string `yaml:"target" json:"target" mapstructure:"target" validate:"required,max=253"`
	Ports  []int  `yaml:"ports,omitempty" json:"ports,omitempty" mapstructure:"ports"`
}

// Validate checks the cron expression using the standard 5-field format.
func (j Job) Validate() error {
	if _, err := cron.ParseStandard(j.Cron); err != nil {
		return fmt.Errorf("job %q: invalid cron expression: %w", j.Name, err)
	}
	return nil
}

// Status is the runtime view of a scheduled job.
type Status struct {
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	Target    string    `json:"target"`
	Ports     []int     `json:"ports,omitempty"`
	NextRun   time.Time `json:"nextRun,omitzero"`
	LastRun   time.Time `json:"lastRun,omitzero"`
	LastError string    `json:"lastError,omitempty"`
	Runs      int       `json:"runs"`
	Running   bool      `json:"running"`
}

type entry struct {
	job     Job
	cronID  cron.EntryID
	lastRun time.Time
	lastErr string
	runs    int
	running bool
}

// Scheduler triggers scheduled scans. A run that is still in progress when
// its next trigger fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	scanner Scanner
	store   ReportSaver
	timeout time.Duration
	logger  *logging.Logger

	mu      sync.RWMutex
	jobs    map[string]*entry
	running bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. store may be nil, in which case reports are only
// logged. timeout bounds every run.
func New(scanner Scanner, store ReportSaver, timeout time.Duration, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("schedule")

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		scanner: scanner,
		store:   store,
		timeout: timeout,
		logger:  logger,
		jobs:    make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers a job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q is already scheduled", job.Name)
	}

	name := job.Name
	id, err := s.cron.AddFunc(job.Cron, func() { s.run(name) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.jobs[name] = &entry{job: job, cronID: id}

	s.logger.Info("Scheduled scan added", "job", name, "cron", job.Cron, "target", job.Target)
	return nil
}

// Start begins triggering jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels in-flight runs and waits for them to return or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
	s.logger.Info("Scheduler stopped")
}

// Status returns every job ordered by name.
func (s *Scheduler) Status() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, Status{
			Name:      e.job.Name,
			Cron:      e.job.Cron,
			Target:    e.job.Target,
			Ports:     e.job.Ports,
			NextRun:   s.cron.Entry(e.cronID).Next,
			LastRun:   e.lastRun,
			LastError: e.lastErr,
			Runs:      e.runs,
			Running:   e.running,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// run executes one trigger of the named job.
func (s *Scheduler) run(name string) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	if e.running {
		s.mu.Unlock()
		s.logger.Warn("Skipping scheduled scan, previous run still active", "job", name)
		return
	}
	e.running = true
	job := e.job
	s.mu.Unlock()

	ctx, cancel := s.runContext()
	err := s.execute(ctx, job)
	cancel()

	s.mu.Lock()
	e.running = false
	e.lastRun = time.Now()
	e.runs++
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	s.mu.Unlock()
}

func (s *Scheduler) runContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.timeout)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	s.logger.InfoScan("Scheduled scan starting", job.Target, "job", job.Name)

	report, err := s.scanner.FullScan(ctx, job.Target, job.Ports)
	if err != nil {
		s.logger.ErrorScan("Scheduled scan failed", job.Target, err, "job", job.Name)
		return err
	}

	if s.store != nil {
		if err := s.store.SaveReport(ctx, report); err != nil {
			s.logger.ErrorScan("Failed to save scheduled scan report", job.Target, err,
				"job", job.Name, "scan_id", report.ID.String())
			return err
		}
	}

	s.logger.InfoScan("Scheduled scan completed", job.Target,
		"job", job.Name,
		"scan_id", report.ID.String(),
		"open", report.Summary.Open,
		"duration", report.Duration)
	return nil
}

// cronLogger routes cron's own messages through the structured logger.
type cronLogger struct {
	logger *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error(msg, append(keysAndValues, "error", err)...)
}
