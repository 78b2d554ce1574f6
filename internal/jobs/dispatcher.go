package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

const (
	queueSize          = 64
	interruptedMessage = "interrupted by server restart"
)

// ExamLookup resolves the exam a job is requested for.
type ExamLookup interface {
	GetExam(ctx context.Context, id string) (*model.Exam, error)
}

// Dispatcher accepts gradesheet jobs, hands them to the worker and records
// their outcome.
type Dispatcher struct {
	exams    ExamLookup
	statuses StatusStore
	notifier Notifier
	outDir   string

	cmds      chan Command
	connected atomic.Bool
	done      chan struct{}
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. notifier may be nil.
func NewDispatcher(exams ExamLookup, statuses StatusStore, notifier Notifier, outDir string) *Dispatcher {
	return &Dispatcher{
		exams:    exams,
		statuses: statuses,
		notifier: notifier,
		outDir:   outDir,
		cmds:     make(chan Command, queueSize),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs w in its own goroutine and asks it to connect to its store.
// Jobs are refused until the worker reports STORE_CONNECTED.
func (d *Dispatcher) Start(ctx context.Context, w *Worker) {
	replies := make(chan Reply, queueSize)
	go w.Run(ctx, d.cmds, replies)
	go d.consume(ctx, replies)
	d.cmds <- Command{Kind: CmdConnectStore}
}

// RecoverInterrupted marks jobs left running by a previous process as
// failed. It must run before Start.
func (d *Dispatcher) RecoverInterrupted(ctx context.Context) (int, error) {
	running, err := d.statuses.Running(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running jobs: %w", err)
	}
	for _, desc := range running {
		desc.Finish(d.now(), interruptedMessage)
		if err := d.statuses.Save(ctx, desc); err != nil {
			return 0, fmt.Errorf("save descriptor %s: %w", desc.JobID, err)
		}
		slog.Warn("gradesheet interrupted by restart", "job_id", desc.JobID, "owner_id", desc.OwnerID)
		if d.notifier != nil {
			if err := d.notifier.Notify(ctx, desc); err != nil {
				slog.Warn("failed to publish job event", "job_id", desc.JobID, "error", err)
			}
		}
	}
	return len(running), nil
}

// Done is closed once the reply loop has stopped.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Connected reports whether the worker has a store connection.
func (d *Dispatcher) Connected() bool { return d.connected.Load() }

func (d *Dispatcher) consume(ctx context.Context, replies <-chan Reply) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-replies:
			d.apply(ctx, r)
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, r Reply) {
	switch r.Kind {
	case ReplyStoreConnected:
		d.connected.Store(true)
		slog.Info("grading worker connected")
	case ReplyStoreConnError:
		d.connected.Store(false)
		slog.Error("grading worker failed to connect", "error", r.Error)
	case ReplyConverted, ReplyConvError:
		d.finish(ctx, r)
	case ReplyNotImplemented:
		slog.Warn("grading worker rejected command", "error", r.Error)
	}
}

func (d *Dispatcher) finish(ctx context.Context, r Reply) {
	desc, err := d.statuses.Get(ctx, r.OwnerID, r.JobID)
	if err != nil {
		slog.Error("failed to load job descriptor", "job_id", r.JobID, "error", err)
		return
	}
	if desc == nil {
		slog.Warn("reply for unknown job", "job_id", r.JobID, "owner_id", r.OwnerID)
		return
	}

	failure := ""
	if r.Kind == ReplyConvError {
		failure = r.Error
		if failure == "" {
			failure = "unknown error"
		}
	}
	desc.Finish(d.now(), failure)
	if err := d.statuses.Save(ctx, *desc); err != nil {
		slog.Error("failed to save job descriptor", "job_id", r.JobID, "error", err)
		return
	}
	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, *desc); err != nil {
			slog.Warn("failed to publish job event", "job_id", r.JobID, "error", err)
		}
	}
}

// Submit validates a job request, records it as running and queues it.
func (d *Dispatcher) Submit(ctx context.Context, ownerID, examID string, format model.ExportFormat) (*model.JobDescriptor, error) {
	if !d.Connected() {
		return nil, apperr.Unavailable("grading worker is not connected")
	}
	if !format.Valid() {
		return nil, apperr.Validation("unsupported gradesheet format")
	}
	e, err := d.exams.GetExam(ctx, examID)
	if err != nil {
		slog.Error("failed to get exam", "exam_id", examID, "error", err)
		return nil, apperr.Infra("failed to get exam", err)
	}
	if e == nil {
		return nil, apperr.NotFound("exam not found")
	}
	if e.AuthorID != ownerID {
		return nil, apperr.Forbidden("you are not the owner of this exam")
	}

	desc := model.JobDescriptor{
		Title:     e.Title,
		OwnerID:   ownerID,
		ExamID:    examID,
		JobID:     uuid.NewString(),
		Format:    format,
		CreatedAt: d.now(),
		ElapsedMs: -1,
		Status:    model.JobRunning,
	}
	if err := d.statuses.Save(ctx, desc); err != nil {
		slog.Error("failed to save job descriptor", "job_id", desc.JobID, "error", err)
		return nil, apperr.Infra("failed to record gradesheet job", err)
	}

	cmd := Command{Kind: CmdConvert, Format: format, ExamID: examID, JobID: desc.JobID, OwnerID: ownerID}
	select {
	case d.cmds <- cmd:
	default:
		desc.Finish(d.now(), "grading queue is full")
		if err := d.statuses.Save(ctx, desc); err != nil {
			slog.Error("failed to save job descriptor", "job_id", desc.JobID, "error", err)
		}
		return nil, apperr.Unavailable("grading queue is full")
	}
	slog.Info("gradesheet queued", "job_id", desc.JobID, "exam_id", examID, "format", format)
	return &desc, nil
}

// Status returns one of the owner's job descriptors.
func (d *Dispatcher) Status(ctx context.Context, ownerID, jobID string) (*model.JobDescriptor, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, apperr.NotFound("gradesheet not found")
	}
	desc, err := d.statuses.Get(ctx, ownerID, jobID)
	if err != nil {
		slog.Error("failed to load job descriptor", "job_id", jobID, "error", err)
		return nil, apperr.Infra("failed to get gradesheet status", err)
	}
	if desc == nil {
		return nil, apperr.NotFound("gradesheet not found")
	}
	return desc, nil
}

// List returns the owner's jobs, newest first.
func (d *Dispatcher) List(ctx context.Context, ownerID string) ([]model.JobDescriptor, error) {
	list, err := d.statuses.List(ctx, ownerID)
	if err != nil {
		slog.Error("failed to list jobs", "owner_id", ownerID, "error", err)
		return nil, apperr.Infra("failed to list gradesheets", err)
	}
	return list, nil
}

// Artifact returns the descriptor and file path of a finished gradesheet.
func (d *Dispatcher) Artifact(ctx context.Context, ownerID, jobID string) (*model.JobDescriptor, string, error) {
	desc, err := d.Status(ctx, ownerID, jobID)
	if err != nil {
		return nil, "", err
	}
	if desc.Status != model.JobDone {
		return nil, "", apperr.Policy("gradesheet is not ready")
	}
	return desc, ArtifactPath(d.outDir, ownerID, desc.Format, jobID), nil
}
