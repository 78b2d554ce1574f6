package grading

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

type fakeSource struct {
	exam    *model.Exam
	subs    []model.GradableSubmission
	failAt  int // skip offset whose fetch fails, -1 for never
	fetches []int
}

func (f *fakeSource) GradingExam(_ context.Context, examID string) (*model.Exam, error) {
	if f.exam == nil || f.exam.ID != examID {
		return nil, nil
	}
	return f.exam, nil
}

func (f *fakeSource) SubmissionPage(_ context.Context, _ string, skip, limit int) ([]model.GradableSubmission, error) {
	f.fetches = append(f.fetches, skip)
	if skip == f.failAt {
		return nil, errors.New("cursor lost")
	}
	if skip >= len(f.subs) {
		return nil, nil
	}
	end := min(skip+limit, len(f.subs))
	return f.subs[skip:end], nil
}

type recordingSink struct {
	events   []string
	meta     Meta
	rows     []Row
	failures []string
}

func (r *recordingSink) Initiate(meta Meta) error {
	r.meta = meta
	r.events = append(r.events, "initiate")
	return nil
}

func (r *recordingSink) BatchDone(rows []Row) error {
	r.rows = append(r.rows, rows...)
	r.events = append(r.events, fmt.Sprintf("batch:%d", len(rows)))
	return nil
}

func (r *recordingSink) Failure(msg string) {
	r.failures = append(r.failures, msg)
}

func (r *recordingSink) Complete() error {
	r.events = append(r.events, "complete")
	return nil
}

func (r *recordingSink) Abort() {
	r.events = append(r.events, "abort")
}

func gradingExam() *model.Exam {
	return &model.Exam{
		ID:          "e1",
		Title:       "Quiz",
		WindowStart: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
		Duration:    time.Hour,
		Questions: []model.Question{
			{ID: "q1", Points: 10, Correct: []int{0, 2}},
			{ID: "q2", Points: 2, Correct: []int{1}},
		},
	}
}

func submissions(n int) []model.GradableSubmission {
	subs := make([]model.GradableSubmission, n)
	for i := range subs {
		subs[i] = model.GradableSubmission{
			ID:      fmt.Sprintf("s%d", i),
			Student: &model.Student{ID: fmt.Sprintf("u%d", i), Name: "Student " + fmt.Sprint(i), Email: fmt.Sprintf("u%d@example.com", i)},
			Answers: []model.Answer{
				{QuestionID: "q1", UsedAttempts: 1, Provided: []int{0}},
				{QuestionID: "q2", UsedAttempts: 1, Provided: []int{1}},
			},
		}
	}
	return subs
}

func runTask(t *testing.T, src *fakeSource, sink *recordingSink) (Stats, error) {
	t.Helper()
	task := NewTask(src, "e1", sink)
	require.NoError(t, task.Prepare(context.Background()))
	return task.Run(context.Background())
}

func TestRun_ThreePages(t *testing.T) {
	src := &fakeSource{exam: gradingExam(), subs: submissions(23), failAt: -1}
	sink := &recordingSink{}

	stats, err := runTask(t, src, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"initiate", "batch:10", "batch:10", "batch:3", "complete"}, sink.events)
	assert.Equal(t, []int{0, 10, 20}, src.fetches)
	assert.Equal(t, Stats{Batches: 3, Rows: 23}, stats)
	require.Len(t, sink.rows, 23)
	assert.Equal(t, "s0", sink.rows[0].SubmissionID)
	assert.Equal(t, "s22", sink.rows[22].SubmissionID)
	assert.InDelta(t, 7.0, sink.rows[0].Total, 1e-9)
	assert.Equal(t, []float64{10, 2}, sink.meta.Points)
	assert.Equal(t, 12.0, sink.meta.Grand)
}

func TestRun_FullLastPageFetchesEmptyPage(t *testing.T) {
	src := &fakeSource{exam: gradingExam(), subs: submissions(10), failAt: -1}
	sink := &recordingSink{}

	_, err := runTask(t, src, sink)
	require.NoError(t, err)
	assert.Equal(t, []string{"initiate", "batch:10", "batch:0", "complete"}, sink.events)
}

func TestRun_NoSubmissions(t *testing.T) {
	src := &fakeSource{exam: gradingExam(), failAt: -1}
	sink := &recordingSink{}

	_, err := runTask(t, src, sink)
	require.NoError(t, err)
	assert.Equal(t, []string{"initiate", "batch:0", "complete"}, sink.events)
}

func TestRun_RowFailureSkipsRow(t *testing.T) {
	subs := submissions(23)
	subs[12].Answers = subs[12].Answers[:1]
	subs[20].Answers[0].QuestionID = "q2"
	src := &fakeSource{exam: gradingExam(), subs: subs, failAt: -1}
	sink := &recordingSink{}

	stats, err := runTask(t, src, sink)
	require.NoError(t, err)
	assert.Equal(t, 21, stats.Rows)
	assert.Equal(t, 2, stats.Failures)
	require.Len(t, sink.failures, 2)
	assert.Contains(t, sink.failures[0], "s12")
	assert.Contains(t, sink.failures[1], "s20")
	assert.Equal(t, []string{"initiate", "batch:10", "batch:9", "batch:2", "complete"}, sink.events)
}

func TestRun_FetchFailureAborts(t *testing.T) {
	src := &fakeSource{exam: gradingExam(), subs: submissions(23), failAt: 10}
	sink := &recordingSink{}

	_, err := runTask(t, src, sink)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInfra, apperr.KindOf(err))
	assert.Equal(t, []string{"initiate", "batch:10", "abort"}, sink.events)
}

type failingSink struct {
	recordingSink
	failBatch int
}

func (f *failingSink) BatchDone(rows []Row) error {
	if len(f.events) == f.failBatch {
		return errors.New("disk full")
	}
	return f.recordingSink.BatchDone(rows)
}

func TestRun_SinkFailureAborts(t *testing.T) {
	src := &fakeSource{exam: gradingExam(), subs: submissions(23), failAt: -1}
	sink := &failingSink{failBatch: 2}

	task := NewTask(src, "e1", sink)
	require.NoError(t, task.Prepare(context.Background()))
	_, err := task.Run(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"initiate", "batch:10", "abort"}, sink.events)
}

func TestRun_MissingStudent(t *testing.T) {
	subs := submissions(2)
	subs[0].Student = nil
	subs[1].Student.Email = ""
	src := &fakeSource{exam: gradingExam(), subs: subs, failAt: -1}
	sink := &recordingSink{}

	_, err := runTask(t, src, sink)
	require.NoError(t, err)
	assert.Equal(t, UnknownName, sink.rows[0].Name)
	assert.Equal(t, UnknownEmail, sink.rows[0].Email)
	assert.Empty(t, sink.rows[0].StudentID)
	assert.Equal(t, "Student 1", sink.rows[1].Name)
	assert.Equal(t, UnknownEmail, sink.rows[1].Email)
}

func TestPrepare_MissingExam(t *testing.T) {
	task := NewTask(&fakeSource{failAt: -1}, "nope", &recordingSink{})
	err := task.Prepare(context.Background())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = task.Run(context.Background())
	assert.Error(t, err)
}
