package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

func sampleExam() *model.Exam {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &model.Exam{
		AuthorID:    "t1",
		Title:       "Networks midterm",
		WindowStart: start,
		WindowEnd:   start.Add(3 * time.Hour),
		Duration:    90 * time.Minute,
		ShowScores:  true,
		Questions: []model.Question{
			{ID: "q1", Text: "Layers?", Points: 10, MaxAttempts: 2, Type: model.QuestionMulti, Options: []string{"A", "B", "C"}, Correct: []int{0, 2}},
			{ID: "q2", Text: "Port?", Points: 5, MaxAttempts: model.UnlimitedAttempts, Options: []string{"80", "443"}},
		},
	}
}

func TestExamDocConversion(t *testing.T) {
	e := sampleExam()
	d := toExamDoc(e)
	d.ID = bson.NewObjectID()

	assert.Equal(t, int64(90*60*1000), d.DurationMs)
	require.Len(t, d.Questions, 2)
	assert.Equal(t, int(model.QuestionMulti), d.Questions[0].Type)
	assert.Equal(t, []int{}, d.Questions[1].Correct)

	back := d.model()
	assert.Equal(t, d.ID.Hex(), back.ID)
	assert.Equal(t, e.Duration, back.Duration)
	assert.Equal(t, e.Questions[0], back.Questions[0])
	assert.Equal(t, []int{}, back.Questions[1].Correct)

	sum := d.summary()
	assert.Equal(t, back.ID, sum.ExamID)
	assert.Equal(t, e.Duration, sum.Duration)
	assert.Nil(t, sum.Finished)
}

func TestSubmissionDocConversion(t *testing.T) {
	answers := []model.Answer{
		{QuestionID: "q1", UsedAttempts: 1, Provided: []int{0, 2}},
		{QuestionID: "q2"},
	}
	d := submissionDoc{
		ID:        bson.NewObjectID(),
		ExamID:    bson.NewObjectID(),
		StudentID: "u1",
		StartTime: time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC),
		Answers:   toAnswerDocs(answers),
	}
	sub := d.model()
	assert.Equal(t, d.ExamID.Hex(), sub.ExamID)
	assert.Equal(t, answers[0], sub.Answers[0])
	assert.Equal(t, []int{}, sub.Answers[1].Provided)
}

func TestObjectID(t *testing.T) {
	_, ok := objectID("not-an-id")
	assert.False(t, ok)

	want := bson.NewObjectID()
	got, ok := objectID(want.Hex())
	require.True(t, ok)
	assert.Equal(t, want, got)
}

// newIntegrationStore connects to EXCO_TEST_MONGO_URI, or skips.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("EXCO_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EXCO_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db := "exco_test_" + bson.NewObjectID().Hex()
	s, err := New(ctx, uri, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.client.Database(db).Drop(context.Background())
		s.Close()
	})
	return s
}

func TestIntegrationSubmissionLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	e := sampleExam()
	require.NoError(t, s.CreateExam(ctx, e))
	u := &model.User{Username: "ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: model.UserRoleStudent, Active: true}
	require.NoError(t, s.CreateUser(ctx, u))

	sub := &model.Submission{ExamID: e.ID, StudentID: u.ID, StartTime: time.Now()}
	for _, q := range e.Questions {
		sub.Answers = append(sub.Answers, model.Answer{QuestionID: q.ID, Provided: []int{}})
	}
	require.NoError(t, s.CreateSubmission(ctx, sub))
	err := s.CreateSubmission(ctx, &model.Submission{ExamID: e.ID, StudentID: u.ID, StartTime: time.Now()})
	assert.True(t, errors.Is(err, model.ErrConflict))

	ok, err := s.RecordAttempt(ctx, e.ID, u.ID, e.Questions[1].ID, []int{1})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetSubmission(ctx, e.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Answers[1].UsedAttempts)
	assert.Equal(t, []int{1}, got.Answers[1].Provided)

	ok, err = s.FinishSubmission(ctx, e.ID, u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.RecordAttempt(ctx, e.ID, u.ID, e.Questions[0].ID, []int{0})
	require.NoError(t, err)
	assert.False(t, ok)
	got, err = s.GetSubmission(ctx, e.ID, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Answers[0].UsedAttempts)

	exam, err := s.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, exam.HasScripts)

	page, err := s.SubmissionPage(ctx, e.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.NotNil(t, page[0].Student)
	assert.Equal(t, "Ada Lovelace", page[0].Student.Name)

	ok, err = s.DeleteSubmission(ctx, e.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	exam, _ = s.GetExam(ctx, e.ID)
	assert.False(t, exam.HasScripts)
}

func TestIntegrationQuestionPositions(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	e := sampleExam()
	require.NoError(t, s.CreateExam(ctx, e))
	q := &model.Question{Text: "First", Points: 1, MaxAttempts: 1, Options: []string{"x", "y"}, Correct: []int{0}}
	require.NoError(t, s.AddQuestion(ctx, e.ID, q, 0))

	got, err := s.GetExam(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 3)
	assert.Equal(t, "First", got.Questions[0].Text)

	ok, err := s.DeleteQuestion(ctx, e.ID, q.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ = s.GetExam(ctx, e.ID)
	assert.Len(t, got.Questions, 2)
}
