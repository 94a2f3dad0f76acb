package metrics

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
	"golang.org/x/sync/errgroup"
)

func init() {
	// The txpool.* names contain dots.
	model.NameValidationScheme = model.UTF8Validation
}

const (
	// DefaultFlushTimeout bounds a single background export.
	DefaultFlushTimeout = 5 * time.Second

	maxPendingFlushes = 4
)

// Exporter ships the gathered registry to an external sink.
type Exporter interface {
	Export(ctx context.Context, g prometheus.Gatherer) error
}

// Metrics holds the txpool conversion metrics.
type Metrics struct {
	TypeWrapperInstances *prometheus.CounterVec
	InputBytes           prometheus.Gauge
	OutputBytes          prometheus.Gauge
	ParseDuration        prometheus.Gauge
	ContentDuration      prometheus.Gauge
	FieldReplacements    prometheus.Counter
	ParseErrors          *prometheus.CounterVec
}

// NewMetrics creates the txpool metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		TypeWrapperInstances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txpool.type_wrapper.instances",
				Help: "Named structs and type wrappers seen, by name",
			},
			[]string{"wrapper_type"},
		),
		InputBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "txpool.input.bytes",
			Help: "Size of the last debug dump read",
		}),
		OutputBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "txpool.output.bytes",
			Help: "Size of the last JSON document written",
		}),
		ParseDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "txpool.parse.duration_ms",
			Help: "Wall time of the last conversion in milliseconds",
		}),
		ContentDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "txpool.content.parse_duration_ms",
			Help: "Wall time spent lexing and parsing the last dump in milliseconds",
		}),
		FieldReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txpool.field.replacements",
			Help: "Field names quoted into JSON keys",
		}),
		ParseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txpool.parse.errors",
				Help: "Located parse errors",
			},
			[]string{"error_type", "error_line", "error_column"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.TypeWrapperInstances,
		m.InputBytes,
		m.OutputBytes,
		m.ParseDuration,
		m.ContentDuration,
		m.FieldReplacements,
		m.ParseErrors,
	}
}

// Collector aggregates finished jobs into process-wide metrics and exports
// them without blocking the caller.
type Collector struct {
	registry *prometheus.Registry
	metrics  *Metrics
	exporter Exporter
	logger   *slog.Logger
	timeout  time.Duration

	// mu keeps one job's counters and gauges together.
	mu      sync.Mutex
	flushes errgroup.Group
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithFlushTimeout bounds each background export.
func WithFlushTimeout(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCollector creates a Collector. A nil exporter keeps metrics local and
// only logs them; a nil logger uses slog.Default().
func NewCollector(exporter Exporter, logger *slog.Logger, opts ...CollectorOption) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		metrics:  NewMetrics(),
		exporter: exporter,
		logger:   logger,
		timeout:  DefaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry.MustRegister(c.metrics.collectors()...)
	c.flushes.SetLimit(maxPendingFlushes)
	return c
}

// Metrics returns the txpool metric set.
func (c *Collector) Metrics() *Metrics {
	return c.metrics
}

// NewJob starts a job whose measurements will be flushed into c.
func (c *Collector) NewJob() *Job {
	return NewJob()
}

// Flush folds the job into the process-wide metrics and starts a background
// export. It returns ErrJobFinished if the job was already flushed; export
// failures are logged, never returned.
func (c *Collector) Flush(ctx context.Context, job *Job) error {
	snap, err := job.finish()
	if err != nil {
		return err
	}

	c.apply(snap)

	if c.exporter == nil {
		c.logSnapshot(snap)
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	started := c.flushes.TryGo(func() error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		if err := c.exporter.Export(ctx, c.registry); err != nil {
			c.logger.Warn("metrics export failed, logging locally",
				"job_id", snap.JobID, "error", err)
			c.logSnapshot(snap)
			return nil
		}
		c.logger.Debug("metrics exported", "job_id", snap.JobID)
		return nil
	})
	if !started {
		c.logger.Warn("too many pending metric exports, logging locally", "job_id", snap.JobID)
		c.logSnapshot(snap)
	}
	return nil
}

// Wait blocks until pending exports finish or ctx is done. Returning on ctx
// does not cancel the exports: each still runs until its flush timeout, and
// a helper goroutine lingers until they have all finished.
func (c *Collector) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = c.flushes.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) apply(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metrics
	for name, n := range s.TypeWrapperCounts {
		m.TypeWrapperInstances.WithLabelValues(name).Add(float64(n))
	}
	m.InputBytes.Set(float64(s.InputBytes))
	m.OutputBytes.Set(float64(s.OutputBytes))
	m.ParseDuration.Set(milliseconds(s.TotalDuration))
	m.ContentDuration.Set(milliseconds(s.ContentDuration))
	m.FieldReplacements.Add(float64(s.FieldReplacements))
	for _, e := range s.Errors {
		m.ParseErrors.WithLabelValues(
			ErrorTypeLabel(string(e.Kind)),
			strconv.Itoa(e.Line),
			strconv.Itoa(e.Column),
		).Inc()
	}
}

func (c *Collector) logSnapshot(s Snapshot) {
	names := make([]string, 0, len(s.TypeWrapperCounts))
	for name := range s.TypeWrapperCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.logger.Info("metric", "name", "txpool.type_wrapper.instances",
			"wrapper_type", name, "value", s.TypeWrapperCounts[name], "job_id", s.JobID)
	}

	c.logger.Info("metric", "name", "txpool.input.bytes", "value", s.InputBytes, "job_id", s.JobID)
	c.logger.Info("metric", "name", "txpool.output.bytes", "value", s.OutputBytes, "job_id", s.JobID)
	c.logger.Info("metric", "name", "txpool.parse.duration_ms", "value", milliseconds(s.TotalDuration), "job_id", s.JobID)
	c.logger.Info("metric", "name", "txpool.content.parse_duration_ms", "value", milliseconds(s.ContentDuration), "job_id", s.JobID)
	c.logger.Info("metric", "name", "txpool.field.replacements", "value", s.FieldReplacements, "job_id", s.JobID)
	for _, e := range s.Errors {
		c.logger.Info("metric", "name", "txpool.parse.errors",
			"error_type", ErrorTypeLabel(string(e.Kind)),
			"error_line", e.Line, "error_column", e.Column, "job_id", s.JobID)
	}
}

// ErrorTypeLabel converts an error kind such as UnexpectedTokenError into
// the snake_case label value unexpected_token_error.
func ErrorTypeLabel(kind string) string {
	return strcase.ToSnake(kind)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
