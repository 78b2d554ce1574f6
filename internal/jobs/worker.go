package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/report"
)

// Source is a grading source the worker owns and closes.
type Source interface {
	grading.Source
	Close() error
}

// Opener opens the worker's private store connection.
type Opener func(ctx context.Context) (Source, error)

// Worker processes commands strictly one at a time.
type Worker struct {
	open   Opener
	outDir string
	opts   report.Options
	src    Source
}

// NewWorker creates a worker writing gradesheets under outDir.
func NewWorker(open Opener, outDir string, opts report.Options) *Worker {
	return &Worker{open: open, outDir: outDir, opts: opts}
}

// Run handles commands until cmds is closed or ctx is done. A job that has
// started runs to completion; ctx is only checked between commands.
func (w *Worker) Run(ctx context.Context, cmds <-chan Command, replies chan<- Reply) {
	defer func() {
		if w.src != nil {
			if err := w.src.Close(); err != nil {
				slog.Warn("failed to close worker store", "error", err)
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			reply := w.Handle(ctx, cmd)
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Handle executes a single command and returns its reply.
func (w *Worker) Handle(ctx context.Context, cmd Command) Reply {
	switch cmd.Kind {
	case CmdConnectStore:
		return w.connect(ctx)
	case CmdConvert:
		start := time.Now()
		err := w.convert(context.WithoutCancel(ctx), cmd)
		if err != nil {
			slog.Error("gradesheet failed", "job_id", cmd.JobID, "exam_id", cmd.ExamID, "format", cmd.Format, "error", err)
			return Reply{Kind: ReplyConvError, JobID: cmd.JobID, OwnerID: cmd.OwnerID, Error: err.Error()}
		}
		slog.Info("gradesheet written", "job_id", cmd.JobID, "exam_id", cmd.ExamID, "format", cmd.Format, "took", time.Since(start))
		return Reply{Kind: ReplyConverted, JobID: cmd.JobID, OwnerID: cmd.OwnerID}
	}
	return Reply{Kind: ReplyNotImplemented, Error: fmt.Sprintf("command %s not implemented", cmd.Kind)}
}

func (w *Worker) connect(ctx context.Context) Reply {
	if w.src != nil {
		return Reply{Kind: ReplyStoreConnected}
	}
	src, err := w.open(ctx)
	if err != nil {
		return Reply{Kind: ReplyStoreConnError, Error: err.Error()}
	}
	w.src = src
	return Reply{Kind: ReplyStoreConnected}
}

func (w *Worker) convert(ctx context.Context, cmd Command) (err error) {
	if w.src == nil {
		return errors.New("store not connected")
	}
	if !cmd.Format.Valid() {
		return fmt.Errorf("unsupported format %q", cmd.Format)
	}

	path := ArtifactPath(w.outDir, cmd.OwnerID, cmd.Format, cmd.JobID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gradesheet: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	sink, err := report.New(cmd.Format, f, w.opts)
	if err != nil {
		return err
	}
	task := grading.NewTask(w.src, cmd.ExamID, sink)
	if err := task.Prepare(ctx); err != nil {
		return err
	}
	stats, err := task.Run(ctx)
	if err != nil {
		return err
	}
	if stats.Failures > 0 {
		slog.Warn("gradesheet has skipped rows", "job_id", cmd.JobID, "failures", stats.Failures)
	}
	return nil
}
