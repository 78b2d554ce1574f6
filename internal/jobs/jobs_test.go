package jobs

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
	"github.com/Abrar11050/exam-conductor/internal/report"
)

type fakeSource struct {
	exam   *model.Exam
	subs   []model.GradableSubmission
	closed bool
}

func (f *fakeSource) GradingExam(_ context.Context, examID string) (*model.Exam, error) {
	if f.exam == nil || f.exam.ID != examID {
		return nil, nil
	}
	return f.exam, nil
}

func (f *fakeSource) SubmissionPage(_ context.Context, _ string, skip, limit int) ([]model.GradableSubmission, error) {
	if skip >= len(f.subs) {
		return nil, nil
	}
	return f.subs[skip:min(skip+limit, len(f.subs))], nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type examLookup struct{ exam *model.Exam }

func (l examLookup) GetExam(_ context.Context, id string) (*model.Exam, error) {
	if l.exam == nil || l.exam.ID != id {
		return nil, nil
	}
	return l.exam, nil
}

type recordingNotifier struct {
	events chan model.JobDescriptor
}

func (n *recordingNotifier) Notify(_ context.Context, d model.JobDescriptor) error {
	n.events <- d
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func jobExam() *model.Exam {
	return &model.Exam{
		ID:          "e1",
		AuthorID:    "t1",
		Title:       "Quiz",
		WindowStart: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
		Duration:    time.Hour,
		Questions: []model.Question{
			{ID: "q1", Points: 4, Correct: []int{0}},
		},
	}
}

func jobSource() *fakeSource {
	return &fakeSource{
		exam: jobExam(),
		subs: []model.GradableSubmission{
			{
				ID:      "s1",
				Student: &model.Student{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com"},
				Answers: []model.Answer{{QuestionID: "q1", UsedAttempts: 1, Provided: []int{0}}},
			},
		},
	}
}

func opener(src *fakeSource) Opener {
	return func(context.Context) (Source, error) { return src, nil }
}

func TestWorkerConvertWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	w := NewWorker(opener(jobSource()), dir, report.Options{Location: time.UTC})
	ctx := context.Background()

	require.Equal(t, ReplyStoreConnected, w.Handle(ctx, Command{Kind: CmdConnectStore}).Kind)

	jobID := "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a11"
	reply := w.Handle(ctx, Command{Kind: CmdConvert, Format: model.FormatCSV, ExamID: "e1", JobID: jobID, OwnerID: "t1"})
	require.Equal(t, ReplyConverted, reply.Kind, reply.Error)
	assert.Equal(t, jobID, reply.JobID)
	assert.Equal(t, "t1", reply.OwnerID)

	data, err := os.ReadFile(ArtifactPath(dir, "t1", model.FormatCSV, jobID))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Ada Lovelace"`)
}

func TestWorkerConvertMissingExamRemovesArtifact(t *testing.T) {
	dir := t.TempDir()
	w := NewWorker(opener(jobSource()), dir, report.Options{})
	ctx := context.Background()
	w.Handle(ctx, Command{Kind: CmdConnectStore})

	jobID := "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a12"
	reply := w.Handle(ctx, Command{Kind: CmdConvert, Format: model.FormatHTML, ExamID: "nope", JobID: jobID, OwnerID: "t1"})
	assert.Equal(t, ReplyConvError, reply.Kind)
	assert.NotEmpty(t, reply.Error)

	_, err := os.Stat(ArtifactPath(dir, "t1", model.FormatHTML, jobID))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWorkerConvertWithoutStore(t *testing.T) {
	w := NewWorker(opener(jobSource()), t.TempDir(), report.Options{})
	reply := w.Handle(context.Background(), Command{Kind: CmdConvert, Format: model.FormatCSV, ExamID: "e1", JobID: "j", OwnerID: "t1"})
	assert.Equal(t, ReplyConvError, reply.Kind)
	assert.Equal(t, "store not connected", reply.Error)
}

func TestWorkerConnectError(t *testing.T) {
	w := NewWorker(func(context.Context) (Source, error) {
		return nil, errors.New("connection refused")
	}, t.TempDir(), report.Options{})
	reply := w.Handle(context.Background(), Command{Kind: CmdConnectStore})
	assert.Equal(t, ReplyStoreConnError, reply.Kind)
	assert.Equal(t, "connection refused", reply.Error)
}

func TestWorkerUnknownCommand(t *testing.T) {
	w := NewWorker(opener(jobSource()), t.TempDir(), report.Options{})
	reply := w.Handle(context.Background(), Command{Kind: CommandKind(42)})
	assert.Equal(t, ReplyNotImplemented, reply.Kind)
}

func TestWorkerRunClosesSource(t *testing.T) {
	src := jobSource()
	w := NewWorker(opener(src), t.TempDir(), report.Options{})
	cmds := make(chan Command, 1)
	replies := make(chan Reply, 1)
	cmds <- Command{Kind: CmdConnectStore}
	close(cmds)

	w.Run(context.Background(), cmds, replies)

	assert.Equal(t, ReplyStoreConnected, (<-replies).Kind)
	assert.True(t, src.closed)
}

func TestFileStatusStore(t *testing.T) {
	s := NewFileStatusStore(t.TempDir())
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	older := model.JobDescriptor{OwnerID: "t1", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a01", CreatedAt: base, Status: model.JobRunning, ElapsedMs: -1}
	newer := model.JobDescriptor{OwnerID: "t1", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a02", CreatedAt: base.Add(time.Minute), Status: model.JobRunning, ElapsedMs: -1}
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	got, err := s.Get(ctx, "t1", older.JobID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobRunning, got.Status)

	older.Finish(base.Add(1500*time.Millisecond), "")
	require.NoError(t, s.Save(ctx, older))
	got, err = s.Get(ctx, "t1", older.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDone, got.Status)
	assert.Equal(t, int64(1500), got.ElapsedMs)

	list, err := s.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.JobID, list[0].JobID)

	missing, err := s.Get(ctx, "t1", "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a03")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func startDispatcher(t *testing.T, src *fakeSource) (*Dispatcher, *recordingNotifier, string) {
	t.Helper()
	dir := t.TempDir()
	notifier := &recordingNotifier{events: make(chan model.JobDescriptor, 4)}
	d := NewDispatcher(examLookup{exam: jobExam()}, NewFileStatusStore(dir), notifier, dir)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	d.Start(ctx, NewWorker(opener(src), dir, report.Options{}))
	require.Eventually(t, d.Connected, time.Second, 5*time.Millisecond)
	return d, notifier, dir
}

func TestDispatcherSubmitCompletes(t *testing.T) {
	d, notifier, _ := startDispatcher(t, jobSource())
	ctx := context.Background()

	desc, err := d.Submit(ctx, "t1", "e1", model.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, desc.Status)
	assert.Equal(t, int64(-1), desc.ElapsedMs)
	assert.Equal(t, "Quiz", desc.Title)

	var event model.JobDescriptor
	select {
	case event = <-notifier.events:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	assert.Equal(t, desc.JobID, event.JobID)
	assert.Equal(t, model.JobDone, event.Status)
	assert.Equal(t, "gradesheet.done", RoutingKey(event))

	got, err := d.Status(ctx, "t1", desc.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDone, got.Status)
	assert.GreaterOrEqual(t, got.ElapsedMs, int64(0))

	_, path, err := d.Artifact(ctx, "t1", desc.JobID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, desc.JobID+".xlsx"))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	list, err := d.List(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDispatcherSubmitRejects(t *testing.T) {
	d, _, _ := startDispatcher(t, jobSource())
	ctx := context.Background()

	_, err := d.Submit(ctx, "t1", "e1", model.ExportFormat("pdf"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = d.Submit(ctx, "t1", "missing", model.FormatCSV)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = d.Submit(ctx, "t2", "e1", model.FormatCSV)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestDispatcherNotConnected(t *testing.T) {
	d := NewDispatcher(examLookup{exam: jobExam()}, NewFileStatusStore(t.TempDir()), nil, t.TempDir())
	_, err := d.Submit(context.Background(), "t1", "e1", model.FormatCSV)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestDispatcherStatusUnknownJob(t *testing.T) {
	d := NewDispatcher(examLookup{}, NewFileStatusStore(t.TempDir()), nil, t.TempDir())
	ctx := context.Background()

	_, err := d.Status(ctx, "t1", "not-a-uuid")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = d.Status(ctx, "t1", "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a99")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDispatcherArtifactNotReady(t *testing.T) {
	dir := t.TempDir()
	statuses := NewFileStatusStore(dir)
	d := NewDispatcher(examLookup{}, statuses, nil, dir)
	ctx := context.Background()
	jobID := "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a10"
	require.NoError(t, statuses.Save(ctx, model.JobDescriptor{OwnerID: "t1", JobID: jobID, Status: model.JobRunning, ElapsedMs: -1}))

	_, _, err := d.Artifact(ctx, "t1", jobID)
	assert.Equal(t, apperr.KindPolicy, apperr.KindOf(err))
}

func TestDispatcherConversionFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	statuses := NewFileStatusStore(dir)
	d := NewDispatcher(examLookup{}, statuses, nil, dir)
	ctx := context.Background()
	jobID := "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a20"
	require.NoError(t, statuses.Save(ctx, model.JobDescriptor{OwnerID: "t1", JobID: jobID, Status: model.JobRunning, ElapsedMs: -1, CreatedAt: time.Now()}))

	d.apply(ctx, Reply{Kind: ReplyConvError, JobID: jobID, OwnerID: "t1", Error: "exam not found"})

	got, err := statuses.Get(ctx, "t1", jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "exam not found", *got.Error)
	assert.Equal(t, "gradesheet.error", RoutingKey(*got))
}

func TestFileStatusStoreRunning(t *testing.T) {
	s := NewFileStatusStore(t.TempDir())
	ctx := context.Background()

	none, err := s.Running(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	running := model.JobDescriptor{OwnerID: "t1", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a31", CreatedAt: time.Now(), Status: model.JobRunning, ElapsedMs: -1}
	other := model.JobDescriptor{OwnerID: "t2", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a32", CreatedAt: time.Now(), Status: model.JobRunning, ElapsedMs: -1}
	done := model.JobDescriptor{OwnerID: "t1", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a33", CreatedAt: time.Now(), Status: model.JobDone}
	for _, d := range []model.JobDescriptor{running, other, done} {
		require.NoError(t, s.Save(ctx, d))
	}

	got, err := s.Running(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.JobID)
	}
	assert.ElementsMatch(t, []string{running.JobID, other.JobID}, ids)
}

func TestDispatcherRecoverInterrupted(t *testing.T) {
	dir := t.TempDir()
	statuses := NewFileStatusStore(dir)
	notifier := &recordingNotifier{events: make(chan model.JobDescriptor, 4)}
	d := NewDispatcher(examLookup{}, statuses, notifier, dir)
	ctx := context.Background()

	stale := model.JobDescriptor{OwnerID: "t1", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a40", CreatedAt: time.Now().Add(-time.Minute), Status: model.JobRunning, ElapsedMs: -1}
	finished := model.JobDescriptor{OwnerID: "t1", JobID: "0b6f4f43-5d7a-4a8c-9f43-1f0f3b3c2a41", CreatedAt: time.Now(), Status: model.JobDone, ElapsedMs: 3}
	require.NoError(t, statuses.Save(ctx, stale))
	require.NoError(t, statuses.Save(ctx, finished))

	n, err := d.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := statuses.Get(ctx, "t1", stale.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, interruptedMessage, *got.Error)
	assert.GreaterOrEqual(t, got.ElapsedMs, int64(0))

	untouched, err := statuses.Get(ctx, "t1", finished.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDone, untouched.Status)

	event := <-notifier.events
	assert.Equal(t, stale.JobID, event.JobID)

	n, err = d.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
