// Package driver runs one txpool conversion job: read, parse, render, write,
// then hand the job's measurements to the metrics collector.
package driver

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/formatter"
	"github.com/mcncl/txpool2json/internal/metrics"
	"github.com/mcncl/txpool2json/internal/parser"
)

// Output opens the destination for the JSON of a successful job. It is
// never called for a failed job.
type Output func() (io.WriteCloser, error)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Writer sends the JSON to w, which is left open.
func Writer(w io.Writer) Output {
	return func() (io.WriteCloser, error) {
		return nopCloser{w}, nil
	}
}

// File creates or truncates the file at path.
func File(path string) Output {
	return func() (io.WriteCloser, error) {
		return os.Create(path)
	}
}

// Result describes a finished job.
type Result struct {
	JobID    string
	Snapshot metrics.Snapshot
}

// Driver wires the parser and formatter to a metrics collector.
type Driver struct {
	collector *metrics.Collector
	formatter *formatter.Formatter
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Driver. A nil logger uses slog.Default().
func New(collector *metrics.Collector, opts formatter.Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		collector: collector,
		formatter: formatter.NewFormatter(opts),
		logger:    logger,
		now:       time.Now,
	}
}

// Run converts src and writes the JSON plus a trailing newline to out. The
// job is flushed to the collector whatever the outcome; the returned Result
// is valid even when err is non-nil.
func (d *Driver) Run(ctx context.Context, src string, out Output) (*Result, error) {
	job := d.collector.NewJob()
	logger := d.logger.With("job_id", job.ID())
	start := d.now()

	runErr := d.run(job, logger, src, out)

	job.RecordDuration(metrics.Total, d.now().Sub(start))
	res := &Result{JobID: job.ID(), Snapshot: job.Snapshot()}

	if err := d.collector.Flush(ctx, job); err != nil {
		logger.Warn("failed to flush metrics", "error", err)
	}

	if runErr != nil {
		logger.Debug("job failed", "error", runErr, "errors", len(res.Snapshot.Errors))
		return res, runErr
	}
	logger.Debug("job finished",
		"input_bytes", res.Snapshot.InputBytes,
		"output_bytes", res.Snapshot.OutputBytes,
		"type_wrappers", res.Snapshot.TypeWrapperTotal(),
		"field_replacements", res.Snapshot.FieldReplacements)
	return res, nil
}

func (d *Driver) run(job *metrics.Job, logger *slog.Logger, src string, out Output) error {
	job.RecordBytes(metrics.Input, len(src))

	contentStart := d.now()
	value, err := parser.ParseString(src, job)
	job.RecordDuration(metrics.Content, d.now().Sub(contentStart))
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return err
		}
		return errors.NewParsingError("failed to parse txpool content", err)
	}
	logger.Debug("parsed txpool content", "type_wrappers", job.Snapshot().TypeWrapperTotal())

	text, err := d.formatter.Format(value, job)
	if err != nil {
		var perr *errors.ParseError
		if stderrors.As(err, &perr) {
			job.RecordParseError(perr)
		}
		return errors.NewRenderError("failed to render JSON", err)
	}

	w, err := out()
	if err != nil {
		return errors.NewOutputError("failed to open output", err)
	}
	if _, err := io.WriteString(w, text+"\n"); err != nil {
		_ = w.Close()
		return errors.NewOutputError("failed to write output", err)
	}
	if err := w.Close(); err != nil {
		return errors.NewOutputError("failed to close output", err)
	}
	return nil
}
