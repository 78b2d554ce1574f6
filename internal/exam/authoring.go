package exam

import (
	"context"
	"strings"
	"time"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// ExamInput holds the fields of a new exam.
type ExamInput struct {
	Title       string
	Description string
	WindowStart time.Time
	WindowEnd   time.Time
	Duration    time.Duration
	ClampTime   bool
	ShowScores  bool
}

// ExamPatch holds the fields to change on an exam. Nil fields are left as is.
type ExamPatch struct {
	Title       *string
	Description *string
	WindowStart *time.Time
	WindowEnd   *time.Time
	Duration    *time.Duration
	ClampTime   *bool
	ShowScores  *bool
}

func (p ExamPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.WindowStart == nil && p.WindowEnd == nil &&
		p.Duration == nil && p.ClampTime == nil && p.ShowScores == nil
}

// QuestionInput holds the fields of a new question. Zero Points and
// MaxAttempts take their defaults.
type QuestionInput struct {
	Text        string
	Points      float64
	MaxAttempts int
	Type        model.QuestionType
	Options     []string
	Correct     []int
}

// QuestionPatch holds the fields to change on a question.
type QuestionPatch struct {
	Text        *string
	Points      *float64
	MaxAttempts *int
	Type        *model.QuestionType
	Options     []string
	Correct     []int
}

// CreateExam validates in and stores a new exam owned by authorID.
func (s *Service) CreateExam(ctx context.Context, authorID string, in ExamInput) (*model.Exam, error) {
	if strings.TrimSpace(in.Title) == "" || in.WindowStart.IsZero() || in.WindowEnd.IsZero() || in.Duration == 0 || authorID == "" {
		return nil, apperr.Validation("invalid exam properties")
	}
	if !in.WindowStart.Before(in.WindowEnd) {
		return nil, apperr.Validation("invalid exam window")
	}
	if in.Duration < 0 {
		return nil, apperr.Validation("invalid exam duration")
	}

	e := &model.Exam{
		AuthorID:    authorID,
		Title:       in.Title,
		Description: in.Description,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
		Duration:    in.Duration,
		ClampTime:   in.ClampTime,
		ShowScores:  in.ShowScores,
	}
	if err := s.store.CreateExam(ctx, e); err != nil {
		return nil, infra("failed to create exam", err, "author_id", authorID)
	}
	return e, nil
}

// ownedExam loads an exam and checks that authorID wrote it.
func (s *Service) ownedExam(ctx context.Context, authorID, examID string) (*model.Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, infra("failed to get exam", err, "exam_id", examID)
	}
	if e == nil {
		return nil, apperr.NotFound("exam not found")
	}
	if e.AuthorID != authorID {
		return nil, apperr.Forbidden("you are not the owner of this exam")
	}
	return e, nil
}

// UpdateExam applies p to an exam. A window bound given alone is checked
// against the stored opposite bound.
func (s *Service) UpdateExam(ctx context.Context, authorID, examID string, p ExamPatch) error {
	if p.empty() {
		return apperr.Policy("exam not modified")
	}
	e, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return err
	}

	start, end := e.WindowStart, e.WindowEnd
	if p.WindowStart != nil {
		start = *p.WindowStart
	}
	if p.WindowEnd != nil {
		end = *p.WindowEnd
	}
	if !start.Before(end) {
		return apperr.Validation("invalid exam window")
	}
	if p.Duration != nil && *p.Duration <= 0 {
		return apperr.Validation("invalid exam duration")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperr.Validation("invalid exam properties")
	}

	e.WindowStart, e.WindowEnd = start, end
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.ClampTime != nil {
		e.ClampTime = *p.ClampTime
	}
	if p.ShowScores != nil {
		e.ShowScores = *p.ShowScores
	}
	if err := s.store.UpdateExam(ctx, e); err != nil {
		return infra("failed to update exam", err, "exam_id", examID)
	}
	return nil
}

// DeleteExam removes an exam and all of its submissions.
func (s *Service) DeleteExam(ctx context.Context, authorID, examID string) error {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return err
	}
	ok, err := s.store.DeleteExam(ctx, examID)
	if err != nil {
		return infra("failed to erase exam", err, "exam_id", examID)
	}
	if !ok {
		return apperr.NotFound("exam not found")
	}
	return nil
}

// ListOwnedExams lists exams written by authorID ordered by window start.
func (s *Service) ListOwnedExams(ctx context.Context, authorID string, page model.Page) ([]model.ExamSummary, error) {
	list, err := s.store.ListOwnedExams(ctx, authorID, page.Normalize())
	if err != nil {
		return nil, infra("failed to get owned exams", err, "author_id", authorID)
	}
	return list, nil
}

// AddQuestion appends a question, or inserts it at position when given.
// Questions can only be added before any student has started the exam.
func (s *Service) AddQuestion(ctx context.Context, authorID, examID string, in QuestionInput, position *int) (*model.Question, error) {
	e, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return nil, err
	}
	if e.HasScripts {
		return nil, apperr.Policy("this exam has scripts, cannot add new questions")
	}

	q := &model.Question{
		Text:        in.Text,
		Points:      in.Points,
		MaxAttempts: in.MaxAttempts,
		Type:        in.Type,
		Options:     in.Options,
		Correct:     normalizeIndices(in.Correct),
	}
	if q.Points == 0 {
		q.Points = 1
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = 1
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}

	pos := len(e.Questions)
	if position != nil && *position >= 0 && *position < pos {
		pos = *position
	}
	if err := s.store.AddQuestion(ctx, examID, q, pos); err != nil {
		return nil, infra("failed to create question", err, "exam_id", examID)
	}
	return q, nil
}

// UpdateQuestion applies p to a question. Once students have started the
// exam the number of options is fixed.
func (s *Service) UpdateQuestion(ctx context.Context, authorID, examID, questionID string, p QuestionPatch) error {
	e, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return err
	}
	cur, _ := e.QuestionByID(questionID)
	if cur == nil {
		return apperr.NotFound("question not found")
	}
	q := *cur
	if p.Options != nil {
		if e.HasScripts && len(p.Options) != len(q.Options) {
			return apperr.Policy("this question's exam has scripts, cannot add or remove options")
		}
		q.Options = p.Options
	}
	if p.Text != nil {
		q.Text = *p.Text
	}
	if p.Points != nil {
		q.Points = *p.Points
	}
	if p.MaxAttempts != nil {
		q.MaxAttempts = *p.MaxAttempts
	}
	if p.Type != nil {
		q.Type = *p.Type
	}
	if p.Correct != nil {
		q.Correct = normalizeIndices(p.Correct)
	}
	if err := validateQuestion(&q); err != nil {
		return err
	}

	ok, err := s.store.UpdateQuestion(ctx, examID, q)
	if err != nil {
		return infra("failed to update question", err, "exam_id", examID, "question_id", questionID)
	}
	if !ok {
		return apperr.NotFound("question not found")
	}
	return nil
}

// DeleteQuestion removes a question from an exam without scripts.
func (s *Service) DeleteQuestion(ctx context.Context, authorID, examID, questionID string) error {
	e, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return err
	}
	if e.HasScripts {
		return apperr.Policy("this exam has scripts, cannot delete questions")
	}
	ok, err := s.store.DeleteQuestion(ctx, examID, questionID)
	if err != nil {
		return infra("failed to erase question", err, "exam_id", examID, "question_id", questionID)
	}
	if !ok {
		return apperr.NotFound("question not found")
	}
	return nil
}

func validateQuestion(q *model.Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return apperr.Validation("question text is required")
	}
	if len(q.Options) == 0 {
		return apperr.Validation("question options are required")
	}
	if q.Points <= 0 {
		return apperr.Validation("question points must be positive")
	}
	if q.MaxAttempts <= 0 && q.MaxAttempts != model.UnlimitedAttempts {
		return apperr.Validation("invalid attempt limit")
	}
	if q.Type != model.QuestionSingle && q.Type != model.QuestionMulti {
		return apperr.Validation("invalid question type")
	}
	for _, c := range q.Correct {
		if c < 0 || c >= len(q.Options) {
			return apperr.Validation("invalid correct answer index")
		}
	}
	return nil
}
