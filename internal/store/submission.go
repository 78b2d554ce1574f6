package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// GetSubmission returns a student's submission for an exam with its answers.
func (s *Store) GetSubmission(ctx context.Context, examID, studentID string) (*model.Submission, error) {
	var sub model.Submission
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, student_id, start_time, finished
		 FROM submissions WHERE exam_id = ? AND student_id = ?`, examID, studentID,
	).Scan(&sub.ID, &sub.ExamID, &sub.StudentID, &sub.StartTime, &sub.Finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	answers, err := s.answers(ctx, []string{sub.ID})
	if err != nil {
		return nil, err
	}
	sub.Answers = answers[sub.ID]
	return &sub, nil
}

// answers loads the answers of several submissions keyed by submission ID.
func (s *Store) answers(ctx context.Context, submissionIDs []string) (map[string][]model.Answer, error) {
	out := make(map[string][]model.Answer, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(submissionIDs))
	for i, id := range submissionIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT submission_id, question_id, used_attempts, provided FROM answers
		 WHERE submission_id IN (`+placeholders(len(args))+`) ORDER BY submission_id, position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var subID, provided string
		var a model.Answer
		if err := rows.Scan(&subID, &a.QuestionID, &a.UsedAttempts, &provided); err != nil {
			return nil, err
		}
		if a.Provided, err = decodeInts(provided); err != nil {
			return nil, err
		}
		out[subID] = append(out[subID], a)
	}
	return out, rows.Err()
}

// CreateSubmission stores sub with its seeded answers and marks the exam as
// having scripts. It returns model.ErrConflict when the student already has
// a submission for the exam.
func (s *Store) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	sub.ID = uuid.NewString()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM submissions WHERE exam_id = ? AND student_id = ?`, sub.ExamID, sub.StudentID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrConflict
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO submissions (id, exam_id, student_id, start_time, finished) VALUES (?, ?, ?, ?, ?)`,
			sub.ID, sub.ExamID, sub.StudentID, sub.StartTime.UTC(), sub.Finished,
		)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		for i, a := range sub.Answers {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO answers (submission_id, question_id, position, used_attempts, provided) VALUES (?, ?, ?, ?, ?)`,
				sub.ID, a.QuestionID, i, a.UsedAttempts, encodeInts(a.Provided),
			)
			if err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE exams SET has_scripts = 1 WHERE id = ?`, sub.ExamID)
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("created submission", "id", sub.ID, "exam_id", sub.ExamID, "student_id", sub.StudentID)
	return nil
}

// RecordAttempt stores provided and bumps used attempts in one statement.
// Finished submissions are left untouched.
func (s *Store) RecordAttempt(ctx context.Context, examID, studentID, questionID string, provided []int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE answers SET provided = ?, used_attempts = used_attempts + 1
		 WHERE question_id = ? AND submission_id =
		   (SELECT id FROM submissions WHERE exam_id = ? AND student_id = ? AND finished = 0)`,
		encodeInts(provided), questionID, examID, studentID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FinishSubmission marks an unfinished submission as finished.
func (s *Store) FinishSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET finished = 1 WHERE exam_id = ? AND student_id = ? AND finished = 0`,
		examID, studentID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteSubmission removes one student's submission. The exam loses its
// script flag when it was the last one.
func (s *Store) DeleteSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM submissions WHERE exam_id = ? AND student_id = ?`, examID, studentID).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE submission_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE exams SET has_scripts = 0 WHERE id = ?
			 AND NOT EXISTS (SELECT 1 FROM submissions WHERE exam_id = ?)`, examID, examID)
		deleted = err == nil
		return err
	})
	return deleted, err
}

// DeleteSubmissions removes every submission of an exam and clears its
// script flag.
func (s *Store) DeleteSubmissions(ctx context.Context, examID string) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if n, err = deleteSubmissions(ctx, tx, examID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE exams SET has_scripts = 0 WHERE id = ?`, examID)
		return err
	})
	return n, err
}

func deleteSubmissions(ctx context.Context, tx *sql.Tx, examID string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM answers WHERE submission_id IN (SELECT id FROM submissions WHERE exam_id = ?)`, examID)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE exam_id = ?`, examID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListStudentSubmissions returns a page of the student's submissions joined
// with their exams, in arrival order.
func (s *Store) ListStudentSubmissions(ctx context.Context, studentID string, page model.Page) ([]model.ExamSummary, error) {
	page = page.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.author_id, e.title, e.window_start, e.window_end, e.duration_ms, e.show_scores,
		        s.id, s.start_time, s.finished
		 FROM submissions s JOIN exams e ON e.id = s.exam_id
		 WHERE s.student_id = ? ORDER BY s.seq `+orderDir(page.Newest)+` LIMIT ? OFFSET ?`,
		studentID, page.Limit, page.Skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []model.ExamSummary{}
	for rows.Next() {
		var es model.ExamSummary
		var durationMs int64
		var start time.Time
		var finished bool
		if err := rows.Scan(&es.ExamID, &es.AuthorID, &es.Title, &es.WindowStart, &es.WindowEnd, &durationMs,
			&es.ShowScores, &es.SubmissionID, &start, &finished); err != nil {
			return nil, err
		}
		es.Duration = msDuration(durationMs)
		es.StartTime = &start
		es.Finished = &finished
		list = append(list, es)
	}
	return list, rows.Err()
}

// ListExamSubmissions returns every submission of an exam with its student,
// in arrival order. Student is nil when the user no longer exists.
func (s *Store) ListExamSubmissions(ctx context.Context, examID string) ([]model.SubmissionOverview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.student_id, s.start_time, s.finished, u.id, u.first_name, u.last_name, u.email
		 FROM submissions s LEFT JOIN users u ON u.id = s.student_id
		 WHERE s.exam_id = ? ORDER BY s.seq`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []model.SubmissionOverview{}
	for rows.Next() {
		var o model.SubmissionOverview
		var studentID string
		var u joinedUser
		if err := rows.Scan(&o.ID, &studentID, &o.StartTime, &o.Finished, &u.id, &u.first, &u.last, &u.email); err != nil {
			return nil, err
		}
		o.Student = u.student()
		list = append(list, o)
	}
	return list, rows.Err()
}

// joinedUser holds the nullable user columns of a LEFT JOIN.
type joinedUser struct {
	id, first, last, email sql.NullString
}

func (u joinedUser) student() *model.Student {
	if !u.id.Valid {
		return nil
	}
	full := model.User{FirstName: u.first.String, LastName: u.last.String}
	return &model.Student{ID: u.id.String, Name: full.FullName(), Email: u.email.String}
}
