// Package grading pages through an exam's submissions, scores them and
// streams the results to a Sink.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
	"github.com/Abrar11050/exam-conductor/internal/scoring"
)

// BatchSize is the number of submissions fetched per page.
const BatchSize = 10

// Placeholders used when a submission's student record is gone.
const (
	UnknownName  = "<Unknown Name>"
	UnknownEmail = "<N/A>"
)

// Source provides the data a grading run reads.
type Source interface {
	// GradingExam returns the exam with its questions, or nil if it does not exist.
	GradingExam(ctx context.Context, examID string) (*model.Exam, error)
	// SubmissionPage returns up to limit submissions in arrival order,
	// starting at skip, each joined with its student when the user exists.
	SubmissionPage(ctx context.Context, examID string, skip, limit int) ([]model.GradableSubmission, error)
}

// Meta describes the exam being graded.
type Meta struct {
	ExamID      string
	Title       string
	WindowStart time.Time
	WindowEnd   time.Time
	Duration    time.Duration
	Points      []float64
	Grand       float64
}

// Row is one graded submission.
type Row struct {
	SubmissionID string
	StudentID    string
	Name         string
	Email        string
	Scores       []float64
	Total        float64
}

// Sink receives the results of a grading run in order: Initiate once, then
// BatchDone per page (possibly with no rows), then Complete. Failure is
// called for each submission that could not be scored. Abort replaces
// Complete when the run stops early and must release what Initiate acquired.
type Sink interface {
	Initiate(meta Meta) error
	BatchDone(rows []Row) error
	Failure(msg string)
	Complete() error
	Abort()
}

// Stats summarises a finished run.
type Stats struct {
	Batches  int
	Rows     int
	Failures int
}

// Task grades one exam into one sink.
type Task struct {
	src    Source
	examID string
	sink   Sink

	meta *Meta
	keys []scoring.Key
}

// NewTask creates a grading task.
func NewTask(src Source, examID string, sink Sink) *Task {
	return &Task{src: src, examID: examID, sink: sink}
}

// Prepare loads the exam's metadata and answer keys.
func (t *Task) Prepare(ctx context.Context) error {
	e, err := t.src.GradingExam(ctx, t.examID)
	if err != nil {
		return apperr.Infra("error fetching exam", err)
	}
	if e == nil {
		return apperr.NotFound("exam not found")
	}

	t.keys = scoring.KeysFor(e)
	meta := &Meta{
		ExamID:      e.ID,
		Title:       e.Title,
		WindowStart: e.WindowStart,
		WindowEnd:   e.WindowEnd,
		Duration:    e.Duration,
		Points:      make([]float64, len(e.Questions)),
	}
	for i, q := range e.Questions {
		meta.Points[i] = q.Points
		meta.Grand += q.Points
	}
	t.meta = meta
	return nil
}

// Run pages through all submissions. A page shorter than BatchSize ends the
// run. A failed page fetch or sink write aborts the run; a submission that
// cannot be scored is reported to the sink and skipped.
func (t *Task) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if t.meta == nil {
		return stats, errors.New("exam not prepared")
	}
	if err := t.sink.Initiate(*t.meta); err != nil {
		t.sink.Abort()
		return stats, fmt.Errorf("initiate report: %w", err)
	}
	completed := false
	defer func() {
		if !completed {
			t.sink.Abort()
		}
	}()

	for skip := 0; ; skip += BatchSize {
		subs, err := t.src.SubmissionPage(ctx, t.examID, skip, BatchSize)
		if err != nil {
			return stats, apperr.Infra(fmt.Sprintf("error fetching submissions [examID: %s, skip: %d, limit: %d]", t.examID, skip, BatchSize), err)
		}

		rows := make([]Row, 0, len(subs))
		for _, sub := range subs {
			row, err := t.processOne(sub)
			if err != nil {
				slog.Warn("skipping submission", "exam_id", t.examID, "submission_id", sub.ID, "error", err)
				t.sink.Failure(err.Error())
				stats.Failures++
				continue
			}
			rows = append(rows, row)
		}
		if err := t.sink.BatchDone(rows); err != nil {
			return stats, fmt.Errorf("write batch: %w", err)
		}
		stats.Batches++
		stats.Rows += len(rows)

		if len(subs) < BatchSize {
			break
		}
	}

	completed = true
	if err := t.sink.Complete(); err != nil {
		return stats, fmt.Errorf("complete report: %w", err)
	}
	return stats, nil
}

func (t *Task) processOne(sub model.GradableSubmission) (Row, error) {
	res, err := scoring.Scorify(t.keys, sub.Answers)
	if err != nil {
		return Row{}, fmt.Errorf("submission %s: %w", sub.ID, err)
	}

	row := Row{
		SubmissionID: sub.ID,
		Name:         UnknownName,
		Email:        UnknownEmail,
		Scores:       res.Scores,
		Total:        res.Total,
	}
	if sub.Student != nil {
		row.StudentID = sub.Student.ID
		row.Name = sub.Student.Name
		if sub.Student.Email != "" {
			row.Email = sub.Student.Email
		}
	}
	return row, nil
}
