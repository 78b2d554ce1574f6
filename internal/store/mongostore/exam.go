package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// GetExam retrieves an exam with its questions.
func (s *Store) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var d examDoc
	err := s.exams.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return d.model(), nil
}

// GradingExam is GetExam under the name the grading pipeline reads.
func (s *Store) GradingExam(ctx context.Context, id string) (*model.Exam, error) {
	return s.GetExam(ctx, id)
}

// CreateExam inserts an exam with its questions, assigning IDs.
func (s *Store) CreateExam(ctx context.Context, e *model.Exam) error {
	for i := range e.Questions {
		e.Questions[i].ID = bson.NewObjectID().Hex()
	}
	d := toExamDoc(e)
	d.ID = bson.NewObjectID()
	if _, err := s.exams.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	e.ID = d.ID.Hex()
	slog.Info("created exam", "id", e.ID, "author_id", e.AuthorID, "questions", len(e.Questions))
	return nil
}

// UpdateExam writes the exam's own fields. Questions are left untouched.
func (s *Store) UpdateExam(ctx context.Context, e *model.Exam) error {
	oid, ok := objectID(e.ID)
	if !ok {
		return fmt.Errorf("invalid exam id %q", e.ID)
	}
	_, err := s.exams.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":        e.Title,
		"description":  e.Description,
		"window_start": e.WindowStart.UTC(),
		"window_end":   e.WindowEnd.UTC(),
		"duration_ms":  e.DurationMs(),
		"clamp_time":   e.ClampTime,
		"show_scores":  e.ShowScores,
	}})
	if err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}
	return nil
}

// DeleteExam removes an exam and its submissions.
func (s *Store) DeleteExam(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	if _, err := s.submissions.DeleteMany(ctx, bson.M{"exam_id": oid}); err != nil {
		return false, fmt.Errorf("failed to delete exam submissions: %w", err)
	}
	res, err := s.exams.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete exam: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ListOwnedExams returns a page of the author's exams in creation order.
func (s *Store) ListOwnedExams(ctx context.Context, authorID string, page model.Page) ([]model.ExamSummary, error) {
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: sortOrder(page.Newest)}}).
		SetSkip(int64(page.Skip)).
		SetLimit(int64(page.Limit)).
		SetProjection(bson.M{"questions": 0})
	cursor, err := s.exams.Find(ctx, bson.M{"author_id": authorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	var docs []examDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode exams: %w", err)
	}
	list := make([]model.ExamSummary, len(docs))
	for i, d := range docs {
		list[i] = d.summary()
	}
	return list, nil
}

// AddQuestion inserts q at position. Mongo appends when position is past
// the end; a negative position also appends.
func (s *Store) AddQuestion(ctx context.Context, examID string, q *model.Question, position int) error {
	oid, ok := objectID(examID)
	if !ok {
		return fmt.Errorf("invalid exam id %q", examID)
	}
	q.ID = bson.NewObjectID().Hex()
	push := bson.M{"$each": []questionDoc{toQuestionDoc(*q)}}
	if position >= 0 {
		push["$position"] = position
	}
	_, err := s.exams.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$push": bson.M{"questions": push}})
	if err != nil {
		return fmt.Errorf("failed to add question: %w", err)
	}
	return nil
}

// UpdateQuestion replaces one embedded question.
func (s *Store) UpdateQuestion(ctx context.Context, examID string, q model.Question) (bool, error) {
	oid, ok := objectID(examID)
	if !ok {
		return false, nil
	}
	res, err := s.exams.UpdateOne(ctx,
		bson.M{"_id": oid, "questions.id": q.ID},
		bson.M{"$set": bson.M{"questions.$": toQuestionDoc(q)}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update question: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// DeleteQuestion pulls one embedded question.
func (s *Store) DeleteQuestion(ctx context.Context, examID, questionID string) (bool, error) {
	oid, ok := objectID(examID)
	if !ok {
		return false, nil
	}
	res, err := s.exams.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$pull": bson.M{"questions": bson.M{"id": questionID}}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete question: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) setHasScripts(ctx context.Context, examID bson.ObjectID, v bool) error {
	_, err := s.exams.UpdateOne(ctx, bson.M{"_id": examID}, bson.M{"$set": bson.M{"has_scripts": v}})
	if err != nil {
		return fmt.Errorf("failed to update script flag: %w", err)
	}
	return nil
}
