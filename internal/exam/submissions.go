package exam

import (
	"context"
	"log/slog"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// ListStudentSubmissions lists a student's submissions joined with their
// exams, ordered by start time.
func (s *Service) ListStudentSubmissions(ctx context.Context, studentID string, page model.Page) ([]model.ExamSummary, error) {
	list, err := s.store.ListStudentSubmissions(ctx, studentID, page.Normalize())
	if err != nil {
		return nil, infra("failed to get submissions", err, "student_id", studentID)
	}
	return list, nil
}

// ListExamSubmissions lists every submission of an exam for its author.
func (s *Service) ListExamSubmissions(ctx context.Context, authorID, examID string) ([]model.SubmissionOverview, error) {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return nil, err
	}
	list, err := s.store.ListExamSubmissions(ctx, examID)
	if err != nil {
		return nil, infra("failed to get submissions", err, "exam_id", examID)
	}
	return list, nil
}

// RemoveSubmission deletes one student's submission so they can start over.
func (s *Service) RemoveSubmission(ctx context.Context, authorID, examID, studentID string) error {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return err
	}
	ok, err := s.store.DeleteSubmission(ctx, examID, studentID)
	if err != nil {
		return infra("failed to delete submission", err, "exam_id", examID, "student_id", studentID)
	}
	if !ok {
		return apperr.NotFound("submission not found")
	}
	slog.Info("submission removed", "exam_id", examID, "student_id", studentID)
	return nil
}

// ResetSubmissions deletes all submissions of an exam and returns how many
// were removed.
func (s *Service) ResetSubmissions(ctx context.Context, authorID, examID string) (int64, error) {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteSubmissions(ctx, examID)
	if err != nil {
		return 0, infra("failed to delete submissions", err, "exam_id", examID)
	}
	slog.Info("submissions reset", "exam_id", examID, "count", n)
	return n, nil
}
