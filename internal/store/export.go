package store

import (
	"context"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// SubmissionPage returns up to limit submissions of an exam in arrival
// order, starting at skip, joined with their students and answers.
func (s *Store) SubmissionPage(ctx context.Context, examID string, skip, limit int) ([]model.GradableSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, u.id, u.first_name, u.last_name, u.email
		 FROM submissions s LEFT JOIN users u ON u.id = s.student_id
		 WHERE s.exam_id = ? ORDER BY s.seq LIMIT ? OFFSET ?`, examID, limit, skip)
	if err != nil {
		return nil, err
	}
	var page []model.GradableSubmission
	for rows.Next() {
		var g model.GradableSubmission
		var u joinedUser
		if err := rows.Scan(&g.ID, &u.id, &u.first, &u.last, &u.email); err != nil {
			rows.Close()
			return nil, err
		}
		g.Student = u.student()
		page = append(page, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(page))
	for i, g := range page {
		ids[i] = g.ID
	}
	answers, err := s.answers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range page {
		page[i].Answers = answers[page[i].ID]
	}
	return page, nil
}
