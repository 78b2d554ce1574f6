package exam

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// MockStore implements Store for service tests.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Exam), args.Error(1)
}

func (m *MockStore) CreateExam(ctx context.Context, e *model.Exam) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockStore) UpdateExam(ctx context.Context, e *model.Exam) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockStore) DeleteExam(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListOwnedExams(ctx context.Context, authorID string, page model.Page) ([]model.ExamSummary, error) {
	args := m.Called(ctx, authorID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExamSummary), args.Error(1)
}

func (m *MockStore) AddQuestion(ctx context.Context, examID string, q *model.Question, position int) error {
	args := m.Called(ctx, examID, q, position)
	return args.Error(0)
}

func (m *MockStore) UpdateQuestion(ctx context.Context, examID string, q model.Question) (bool, error) {
	args := m.Called(ctx, examID, q)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteQuestion(ctx context.Context, examID, questionID string) (bool, error) {
	args := m.Called(ctx, examID, questionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetSubmission(ctx context.Context, examID, studentID string) (*model.Submission, error) {
	args := m.Called(ctx, examID, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *MockStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockStore) RecordAttempt(ctx context.Context, examID, studentID, questionID string, provided []int) (bool, error) {
	args := m.Called(ctx, examID, studentID, questionID, provided)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FinishSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	args := m.Called(ctx, examID, studentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	args := m.Called(ctx, examID, studentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteSubmissions(ctx context.Context, examID string) (int64, error) {
	args := m.Called(ctx, examID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListStudentSubmissions(ctx context.Context, studentID string, page model.Page) ([]model.ExamSummary, error) {
	args := m.Called(ctx, studentID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExamSummary), args.Error(1)
}

func (m *MockStore) ListExamSubmissions(ctx context.Context, examID string) ([]model.SubmissionOverview, error) {
	args := m.Called(ctx, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SubmissionOverview), args.Error(1)
}
