// Package exam implements exam delivery: state resolution, starting and
// finishing submissions, guarded answer writes and exam authoring.
package exam

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

// Store is the persistence the exam service needs. Lookups return (nil, nil)
// when the record does not exist. Boolean results report whether a record
// was matched and changed.
type Store interface {
	GetExam(ctx context.Context, id string) (*model.Exam, error)
	CreateExam(ctx context.Context, e *model.Exam) error
	UpdateExam(ctx context.Context, e *model.Exam) error
	DeleteExam(ctx context.Context, id string) (bool, error)
	ListOwnedExams(ctx context.Context, authorID string, page model.Page) ([]model.ExamSummary, error)

	// AddQuestion inserts q at position, or appends when position is out of range.
	AddQuestion(ctx context.Context, examID string, q *model.Question, position int) error
	UpdateQuestion(ctx context.Context, examID string, q model.Question) (bool, error)
	DeleteQuestion(ctx context.Context, examID, questionID string) (bool, error)

	GetSubmission(ctx context.Context, examID, studentID string) (*model.Submission, error)
	// CreateSubmission stores sub and marks its exam as having scripts.
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	// RecordAttempt sets provided and increments used attempts of one answer in a single update.
	RecordAttempt(ctx context.Context, examID, studentID, questionID string, provided []int) (bool, error)
	FinishSubmission(ctx context.Context, examID, studentID string) (bool, error)
	// DeleteSubmission clears the exam's script flag when no submissions remain.
	DeleteSubmission(ctx context.Context, examID, studentID string) (bool, error)
	DeleteSubmissions(ctx context.Context, examID string) (int64, error)
	ListStudentSubmissions(ctx context.Context, studentID string, page model.Page) ([]model.ExamSummary, error)
	ListExamSubmissions(ctx context.Context, examID string) ([]model.SubmissionOverview, error)
}

// Service runs exam operations against a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by st.
func NewService(st Store) *Service {
	return &Service{store: st, now: time.Now}
}

func infra(msg string, err error, args ...any) error {
	slog.Error(msg, append(args, "error", err)...)
	return apperr.Infra(msg, err)
}

func (s *Service) resolve(ctx context.Context, examID, studentID string) (State, *model.Exam, *model.Submission, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return StateError, nil, nil, infra("failed to check submission state", err, "exam_id", examID)
	}
	if e == nil {
		return StateNotFound, nil, nil, nil
	}
	sub, err := s.store.GetSubmission(ctx, examID, studentID)
	if err != nil {
		return StateError, e, nil, infra("failed to check submission state", err, "exam_id", examID, "student_id", studentID)
	}
	return Resolve(e, sub, s.now()), e, sub, nil
}

// State returns the current delivery state for a student. It is evaluated
// afresh on every call.
func (s *Service) State(ctx context.Context, examID, studentID string) (State, error) {
	st, _, _, err := s.resolve(ctx, examID, studentID)
	return st, err
}

// Start creates the student's submission if the exam is in NOT_STARTED and
// returns the questions without their answer keys.
func (s *Service) Start(ctx context.Context, examID, studentID string) ([]model.Question, error) {
	st, e, _, err := s.resolve(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if st == StateNotFound {
		return nil, apperr.NotFound("exam not found")
	}
	if st != StateNotStarted {
		return nil, apperr.Policy(fmt.Sprintf("you cannot start this exam, reason: %s", st))
	}

	sub := &model.Submission{
		ExamID:    examID,
		StudentID: studentID,
		StartTime: s.now(),
		Answers:   make([]model.Answer, len(e.Questions)),
	}
	for i, q := range e.Questions {
		sub.Answers[i] = model.Answer{QuestionID: q.ID, Provided: []int{}}
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, apperr.Policy("submission already exists")
		}
		return nil, infra("failed to create submission", err, "exam_id", examID, "student_id", studentID)
	}
	slog.Info("submission started", "exam_id", examID, "student_id", studentID, "submission_id", sub.ID)
	return stripKeys(e.Questions), nil
}

// Attempt records one answer write after the attempt checks pass.
func (s *Service) Attempt(ctx context.Context, examID, questionID, studentID string, provided []int) error {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return infra("failed to attempt question", err, "exam_id", examID)
	}
	var q *model.Question
	var sub *model.Submission
	if e != nil {
		q, _ = e.QuestionByID(questionID)
		sub, err = s.store.GetSubmission(ctx, examID, studentID)
		if err != nil {
			return infra("failed to attempt question", err, "exam_id", examID, "student_id", studentID)
		}
	}
	if err := checkAttempt(e, q, sub, questionID, provided, s.now()); err != nil {
		return err
	}

	ok, err := s.store.RecordAttempt(ctx, examID, studentID, questionID, normalizeIndices(provided))
	if err != nil {
		return infra("failed to attempt question", err, "exam_id", examID, "question_id", questionID)
	}
	if !ok {
		return infra("failed to proceed into submission", nil, "exam_id", examID, "question_id", questionID)
	}
	return nil
}

// Finish marks the student's submission as finished.
func (s *Service) Finish(ctx context.Context, examID, studentID string) error {
	ok, err := s.store.FinishSubmission(ctx, examID, studentID)
	if err != nil {
		return infra("failed to mark submission as finished", err, "exam_id", examID, "student_id", studentID)
	}
	if !ok {
		return apperr.Policy("submission was not updated")
	}
	return nil
}

// ViewMode tells the client how an exam is being looked at.
type ViewMode int

const (
	ModeStudent     ViewMode = iota // a student looking at their own exam
	ModeEdit                        // the author
	ModeReadOnly                    // another teacher
	ModeStudentView                 // the author looking at a student's submission
)

func (m ViewMode) String() string {
	switch m {
	case ModeStudent:
		return "student"
	case ModeEdit:
		return "edit"
	case ModeReadOnly:
		return "readonly"
	case ModeStudentView:
		return "student_view"
	}
	return "unknown"
}

// View is an exam as seen by a particular user.
type View struct {
	Exam       model.Exam
	Mode       ViewMode
	State      State
	Submission *model.Submission
	Result     *scoring.Result
}

// View builds the exam view for viewer. studentID is only used when the
// author asks to see a student's submission.
func (s *Service) View(ctx context.Context, viewer *model.User, examID, studentID string) (*View, error) {
	switch viewer.Role {
	case model.UserRoleStudent:
		return s.studentView(ctx, viewer.ID, examID)
	case model.UserRoleTeacher:
		return s.teacherView(ctx, viewer.ID, examID, studentID)
	}
	return nil, apperr.Forbidden("invalid access attempt")
}

func (s *Service) studentView(ctx context.Context, studentID, examID string) (*View, error) {
	st, e, sub, err := s.resolve(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("exam not found")
	}

	v := &View{Mode: ModeStudent, State: st, Exam: *e}
	v.Exam.Questions = nil
	v.Exam.HasScripts = false
	if !showQuestions(st, e.ShowScores) {
		return v, nil
	}
	if sub == nil {
		return nil, apperr.NotFound("submission not found")
	}
	v.Submission = sub
	if !showCorrects(st, e.ShowScores) {
		v.Exam.Questions = stripKeys(e.Questions)
		return v, nil
	}
	v.Exam.Questions = e.Questions
	res, err := scoring.Scorify(scoring.KeysFor(e), sub.Answers)
	if err != nil {
		return nil, infra("error processing grades", err, "exam_id", examID, "submission_id", sub.ID)
	}
	v.Result = &res
	return v, nil
}

func (s *Service) teacherView(ctx context.Context, teacherID, examID, studentID string) (*View, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, infra("failed to get exam", err, "exam_id", examID)
	}
	if e == nil {
		return nil, apperr.NotFound("exam not found")
	}
	if e.AuthorID != teacherID {
		v := &View{Mode: ModeReadOnly, Exam: *e}
		v.Exam.Questions = nil
		return v, nil
	}

	v := &View{Mode: ModeEdit, Exam: *e}
	if studentID == "" {
		return v, nil
	}
	sub, err := s.store.GetSubmission(ctx, examID, studentID)
	if err != nil {
		return nil, infra("failed to get submission", err, "exam_id", examID, "student_id", studentID)
	}
	if sub == nil {
		return nil, apperr.NotFound("submission not found")
	}
	v.Mode = ModeStudentView
	v.Submission = sub
	res, err := scoring.Scorify(scoring.KeysFor(e), sub.Answers)
	if err != nil {
		return nil, infra("error processing grades", err, "exam_id", examID, "submission_id", sub.ID)
	}
	v.Result = &res
	return v, nil
}

func showQuestions(st State, showScores bool) bool {
	switch st {
	case StateStarted:
		return true
	case StateSubmitted, StateDoneExpired:
		return showScores
	case StateNotStarted, StateMissed, StateEarly, StateNotFound, StateError:
		return false
	}
	return false
}

func showCorrects(st State, showScores bool) bool {
	switch st {
	case StateSubmitted, StateDoneExpired:
		return showScores
	case StateStarted, StateNotStarted, StateMissed, StateEarly, StateNotFound, StateError:
		return false
	}
	return false
}

func stripKeys(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		q.Correct = nil
		out[i] = q
	}
	return out
}
