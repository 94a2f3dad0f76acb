package metrics

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mcncl/txpool2json/internal/errors"
)

// Direction selects which byte gauge RecordBytes feeds.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Stage selects which duration RecordDuration feeds.
type Stage string

const (
	// Total spans reading the input to writing the output.
	Total Stage = "total"
	// Content spans lexing and parsing the txpool content.
	Content Stage = "content"
)

// ErrorRecord is one located failure.
type ErrorRecord struct {
	Kind    errors.ErrorKind
	Line    int
	Column  int
	Message string
}

// Snapshot is the measurement set of one job.
type Snapshot struct {
	JobID             string
	TypeWrapperCounts map[string]int
	InputBytes        int
	OutputBytes       int
	TotalDuration     time.Duration
	ContentDuration   time.Duration
	FieldReplacements int
	Errors            []ErrorRecord
}

// TypeWrapperTotal sums the per-name counts.
func (s Snapshot) TypeWrapperTotal() int {
	total := 0
	for _, n := range s.TypeWrapperCounts {
		total += n
	}
	return total
}

// Job records measurements for a single conversion. It is not safe for
// concurrent use.
type Job struct {
	snap     Snapshot
	finished bool
}

// NewJob returns an empty Job with a fresh id.
func NewJob() *Job {
	return &Job{
		snap: Snapshot{
			JobID:             uuid.NewString(),
			TypeWrapperCounts: make(map[string]int),
		},
	}
}

// ID returns the job id.
func (j *Job) ID() string {
	return j.snap.JobID
}

// RecordTypeWrapper counts one successfully closed named composite.
func (j *Job) RecordTypeWrapper(name string) {
	j.snap.TypeWrapperCounts[name]++
}

// RecordFieldReplacement counts one field name quoted into JSON.
func (j *Job) RecordFieldReplacement() {
	j.snap.FieldReplacements++
}

// RecordBytes adds n to the byte count for dir.
func (j *Job) RecordBytes(dir Direction, n int) {
	switch dir {
	case Input:
		j.snap.InputBytes += n
	case Output:
		j.snap.OutputBytes += n
	}
}

// RecordDuration sets the elapsed time of a stage.
func (j *Job) RecordDuration(stage Stage, elapsed time.Duration) {
	switch stage {
	case Total:
		j.snap.TotalDuration = elapsed
	case Content:
		j.snap.ContentDuration = elapsed
	}
}

// RecordError appends a located error.
func (j *Job) RecordError(kind errors.ErrorKind, line, column int, message string) {
	j.snap.Errors = append(j.snap.Errors, ErrorRecord{
		Kind:    kind,
		Line:    line,
		Column:  column,
		Message: message,
	})
}

// RecordParseError appends e.
func (j *Job) RecordParseError(e *errors.ParseError) {
	j.RecordError(e.Kind, e.Line, e.Column, e.Message)
}

// HasErrors reports whether any error was recorded.
func (j *Job) HasErrors() bool {
	return len(j.snap.Errors) > 0
}

// Snapshot returns a copy of the current measurements.
func (j *Job) Snapshot() Snapshot {
	s := j.snap
	s.TypeWrapperCounts = maps.Clone(j.snap.TypeWrapperCounts)
	s.Errors = slices.Clone(j.snap.Errors)
	return s
}

// finish hands the measurements over. It succeeds once per job.
func (j *Job) finish() (Snapshot, error) {
	if j.finished {
		return Snapshot{}, errors.ErrJobFinished
	}
	j.finished = true
	return j.Snapshot(), nil
}
