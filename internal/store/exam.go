package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

const examColumns = `id, author_id, title, description, window_start, window_end, duration_ms, clamp_time, show_scores, has_scripts`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	var e model.Exam
	var durationMs int64
	err := row.Scan(&e.ID, &e.AuthorID, &e.Title, &e.Description, &e.WindowStart, &e.WindowEnd,
		&durationMs, &e.ClampTime, &e.ShowScores, &e.HasScripts)
	if err != nil {
		return nil, err
	}
	e.Duration = msDuration(durationMs)
	return &e, nil
}

// GetExam returns an exam with its questions in order.
func (s *Store) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Questions, err = s.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GradingExam is GetExam under the name the grading pipeline reads.
func (s *Store) GradingExam(ctx context.Context, id string) (*model.Exam, error) {
	return s.GetExam(ctx, id)
}

func (s *Store) questions(ctx context.Context, examID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, points, max_attempts, type, options, correct
		 FROM questions WHERE exam_id = ? ORDER BY position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []model.Question
	for rows.Next() {
		var q model.Question
		var options, correct string
		if err := rows.Scan(&q.ID, &q.Text, &q.Points, &q.MaxAttempts, &q.Type, &options, &correct); err != nil {
			return nil, err
		}
		if q.Options, err = decodeStrings(options); err != nil {
			return nil, err
		}
		if q.Correct, err = decodeInts(correct); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// CreateExam inserts an exam and its questions, assigning IDs.
func (s *Store) CreateExam(ctx context.Context, e *model.Exam) error {
	e.ID = uuid.NewString()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exams (`+examColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.AuthorID, e.Title, e.Description, e.WindowStart.UTC(), e.WindowEnd.UTC(),
			e.DurationMs(), e.ClampTime, e.ShowScores, e.HasScripts,
		)
		if err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		for i := range e.Questions {
			e.Questions[i].ID = uuid.NewString()
			if err := insertQuestion(ctx, tx, e.ID, e.Questions[i], i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("created exam", "id", e.ID, "author_id", e.AuthorID, "questions", len(e.Questions))
	return nil
}

// UpdateExam writes the exam's own fields. Questions are left untouched.
func (s *Store) UpdateExam(ctx context.Context, e *model.Exam) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE exams SET title = ?, description = ?, window_start = ?, window_end = ?,
		 duration_ms = ?, clamp_time = ?, show_scores = ? WHERE id = ?`,
		e.Title, e.Description, e.WindowStart.UTC(), e.WindowEnd.UTC(),
		e.DurationMs(), e.ClampTime, e.ShowScores, e.ID,
	)
	return err
}

// DeleteExam removes an exam with its questions and submissions.
func (s *Store) DeleteExam(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := deleteSubmissions(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

// ListOwnedExams returns a page of the author's exams in creation order.
func (s *Store) ListOwnedExams(ctx context.Context, authorID string, page model.Page) ([]model.ExamSummary, error) {
	page = page.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, author_id, title, window_start, window_end, duration_ms, show_scores
		 FROM exams WHERE author_id = ? ORDER BY seq `+orderDir(page.Newest)+` LIMIT ? OFFSET ?`,
		authorID, page.Limit, page.Skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []model.ExamSummary{}
	for rows.Next() {
		var es model.ExamSummary
		var durationMs int64
		if err := rows.Scan(&es.ExamID, &es.AuthorID, &es.Title, &es.WindowStart, &es.WindowEnd, &durationMs, &es.ShowScores); err != nil {
			return nil, err
		}
		es.Duration = msDuration(durationMs)
		list = append(list, es)
	}
	return list, rows.Err()
}

func insertQuestion(ctx context.Context, tx *sql.Tx, examID string, q model.Question, position int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO questions (id, exam_id, position, text, points, max_attempts, type, options, correct)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, examID, position, q.Text, q.Points, q.MaxAttempts, q.Type,
		encodeStrings(q.Options), encodeInts(q.Correct),
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// AddQuestion inserts q at position, shifting later questions down. An out
// of range position appends.
func (s *Store) AddQuestion(ctx context.Context, examID string, q *model.Question, position int) error {
	q.ID = uuid.NewString()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE exam_id = ?`, examID).Scan(&count); err != nil {
			return err
		}
		if position < 0 || position > count {
			position = count
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE questions SET position = position + 1 WHERE exam_id = ? AND position >= ?`, examID, position)
		if err != nil {
			return fmt.Errorf("shift questions: %w", err)
		}
		return insertQuestion(ctx, tx, examID, *q, position)
	})
}

// UpdateQuestion overwrites a question's content in place.
func (s *Store) UpdateQuestion(ctx context.Context, examID string, q model.Question) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET text = ?, points = ?, max_attempts = ?, type = ?, options = ?, correct = ?
		 WHERE exam_id = ? AND id = ?`,
		q.Text, q.Points, q.MaxAttempts, q.Type, encodeStrings(q.Options), encodeInts(q.Correct), examID, q.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteQuestion removes a question and closes the gap in positions.
func (s *Store) DeleteQuestion(ctx context.Context, examID, questionID string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var position int
		err := tx.QueryRowContext(ctx,
			`SELECT position FROM questions WHERE exam_id = ? AND id = ?`, examID, questionID).Scan(&position)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, questionID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE questions SET position = position - 1 WHERE exam_id = ? AND position > ?`, examID, position)
		deleted = err == nil
		return err
	})
	return deleted, err
}
