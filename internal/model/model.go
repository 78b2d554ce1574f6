package model

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by stores when a write collides with an existing
// record, such as a second submission for the same exam and student.
var ErrConflict = errors.New("conflicting record")

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent takes exams.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher authors exams and generates gradesheets.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin manages users.
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	FirstName    string    `json:"first_name" bson:"first_name"`
	LastName     string    `json:"last_name" bson:"last_name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         UserRole  `json:"role" bson:"role"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionType is the selection mode of a question.
type QuestionType int

const (
	// QuestionSingle allows one option (radio).
	QuestionSingle QuestionType = 0
	// QuestionMulti allows any number of options (checkbox).
	QuestionMulti QuestionType = 1
)

// UnlimitedAttempts is the MaxAttempts sentinel for questions without an attempt cap.
const UnlimitedAttempts = -1

// Question is one exam question. Correct is always stored sorted ascending.
type Question struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Points      float64      `json:"points"`
	MaxAttempts int          `json:"max_attempts"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options"`
	Correct     []int        `json:"correct,omitempty"`
}

// Unlimited reports whether the question has no attempt cap.
func (q Question) Unlimited() bool {
	return q.MaxAttempts == UnlimitedAttempts
}

// Exam is an authored exam with its window and ordered questions.
type Exam struct {
	ID          string        `json:"id"`
	AuthorID    string        `json:"author_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Duration    time.Duration `json:"-"`
	ClampTime   bool          `json:"clamp_time"`
	ShowScores  bool          `json:"show_scores"`
	HasScripts  bool          `json:"has_scripts"`
	Questions   []Question    `json:"questions,omitempty"`
}

// DurationMs returns the duration in whole milliseconds.
func (e *Exam) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// QuestionByID returns the question with the given ID and its position, or nil.
func (e *Exam) QuestionByID(id string) (*Question, int) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], i
		}
	}
	return nil, -1
}

// GrandTotal sums the points of all questions.
func (e *Exam) GrandTotal() float64 {
	var sum float64
	for _, q := range e.Questions {
		sum += q.Points
	}
	return sum
}

// ExamSummary is the short listing form of an exam, optionally joined with a student's submission.
type ExamSummary struct {
	ExamID      string        `json:"exam_id"`
	AuthorID    string        `json:"author_id"`
	Title       string        `json:"title"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Duration    time.Duration `json:"-"`
	ShowScores  bool          `json:"show_scores"`

	SubmissionID string     `json:"submission_id,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	Finished     *bool      `json:"finished,omitempty"`
}

// Answer is a student's response to one question.
type Answer struct {
	QuestionID   string `json:"question_id"`
	UsedAttempts int    `json:"used_attempts"`
	Provided     []int  `json:"provided"`
}

// Submission is a student's script for one exam. Answers are index-aligned with the exam's questions.
type Submission struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"exam_id"`
	StudentID string    `json:"student_id"`
	StartTime time.Time `json:"start_time"`
	Finished  bool      `json:"finished"`
	Answers   []Answer  `json:"answers,omitempty"`
}

// AnswerFor returns the answer record for a question, or nil.
func (s *Submission) AnswerFor(questionID string) *Answer {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i]
		}
	}
	return nil
}

// Student is the identity block attached to a graded submission.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GradableSubmission is a submission page item joined with its student, if the user still exists.
type GradableSubmission struct {
	ID      string
	Student *Student
	Answers []Answer
}

// SubmissionOverview is a submission listed for the exam author.
type SubmissionOverview struct {
	ID        string    `json:"id"`
	Student   *Student  `json:"student"`
	StartTime time.Time `json:"start_time"`
	Finished  bool      `json:"finished"`
}

// DefaultPageLimit is used when a listing request gives no limit.
const DefaultPageLimit = 20

// Page selects a slice of a time-ordered listing.
type Page struct {
	Newest bool
	Limit  int
	Skip   int
}

// Normalize fills in defaults and clamps negative values.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}
