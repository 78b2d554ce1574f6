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

func submissionFilter(examID, studentID string) (bson.M, bool) {
	oid, ok := objectID(examID)
	if !ok {
		return nil, false
	}
	return bson.M{"exam_id": oid, "student_id": studentID}, true
}

// GetSubmission returns a student's submission for an exam.
func (s *Store) GetSubmission(ctx context.Context, examID, studentID string) (*model.Submission, error) {
	filter, ok := submissionFilter(examID, studentID)
	if !ok {
		return nil, nil
	}
	var d submissionDoc
	err := s.submissions.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return d.model(), nil
}

// CreateSubmission inserts sub and marks its exam as having scripts. The
// unique (exam_id, student_id) index turns a second start into
// model.ErrConflict.
func (s *Store) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	examOID, ok := objectID(sub.ExamID)
	if !ok {
		return fmt.Errorf("invalid exam id %q", sub.ExamID)
	}
	d := submissionDoc{
		ID:        bson.NewObjectID(),
		ExamID:    examOID,
		StudentID: sub.StudentID,
		StartTime: sub.StartTime.UTC(),
		Finished:  sub.Finished,
		Answers:   toAnswerDocs(sub.Answers),
	}
	if _, err := s.submissions.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrConflict
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	sub.ID = d.ID.Hex()
	if err := s.setHasScripts(ctx, examOID, true); err != nil {
		return err
	}
	slog.Info("created submission", "id", sub.ID, "exam_id", sub.ExamID, "student_id", sub.StudentID)
	return nil
}

// RecordAttempt sets the provided options and bumps used attempts of one
// embedded answer in a single update. Finished submissions are left untouched.
func (s *Store) RecordAttempt(ctx context.Context, examID, studentID, questionID string, provided []int) (bool, error) {
	filter, ok := submissionFilter(examID, studentID)
	if !ok {
		return false, nil
	}
	filter["answers.question_id"] = questionID
	filter["finished"] = false
	res, err := s.submissions.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"answers.$.provided": nonNil(provided)},
		"$inc": bson.M{"answers.$.used_attempts": 1},
	})
	if err != nil {
		return false, fmt.Errorf("failed to record attempt: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// FinishSubmission marks an unfinished submission as finished.
func (s *Store) FinishSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	filter, ok := submissionFilter(examID, studentID)
	if !ok {
		return false, nil
	}
	filter["finished"] = false
	res, err := s.submissions.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"finished": true}})
	if err != nil {
		return false, fmt.Errorf("failed to finish submission: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// DeleteSubmission removes one student's submission and clears the exam's
// script flag when it was the last one.
func (s *Store) DeleteSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	filter, ok := submissionFilter(examID, studentID)
	if !ok {
		return false, nil
	}
	res, err := s.submissions.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete submission: %w", err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	examOID := filter["exam_id"].(bson.ObjectID)
	left, err := s.submissions.CountDocuments(ctx, bson.M{"exam_id": examOID})
	if err != nil {
		return true, fmt.Errorf("failed to count submissions: %w", err)
	}
	if left == 0 {
		if err := s.setHasScripts(ctx, examOID, false); err != nil {
			return true, err
		}
	}
	return true, nil
}

// DeleteSubmissions removes every submission of an exam.
func (s *Store) DeleteSubmissions(ctx context.Context, examID string) (int64, error) {
	oid, ok := objectID(examID)
	if !ok {
		return 0, nil
	}
	res, err := s.submissions.DeleteMany(ctx, bson.M{"exam_id": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete submissions: %w", err)
	}
	if err := s.setHasScripts(ctx, oid, false); err != nil {
		return res.DeletedCount, err
	}
	return res.DeletedCount, nil
}

// ListStudentSubmissions returns a page of the student's submissions joined
// with their exams. Submissions whose exam is gone are left out.
func (s *Store) ListStudentSubmissions(ctx context.Context, studentID string, page model.Page) ([]model.ExamSummary, error) {
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: sortOrder(page.Newest)}}).
		SetSkip(int64(page.Skip)).
		SetLimit(int64(page.Limit)).
		SetProjection(bson.M{"answers": 0})
	cursor, err := s.submissions.Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	var subs []submissionDoc
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}

	examIDs := make([]bson.ObjectID, len(subs))
	for i, d := range subs {
		examIDs[i] = d.ExamID
	}
	exams, err := s.examsByID(ctx, examIDs)
	if err != nil {
		return nil, err
	}

	list := make([]model.ExamSummary, 0, len(subs))
	for _, d := range subs {
		e, ok := exams[d.ExamID]
		if !ok {
			continue
		}
		es := e.summary()
		es.SubmissionID = d.ID.Hex()
		start, finished := d.StartTime, d.Finished
		es.StartTime = &start
		es.Finished = &finished
		list = append(list, es)
	}
	return list, nil
}

func (s *Store) examsByID(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]examDoc, error) {
	out := make(map[bson.ObjectID]examDoc, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.exams.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"questions": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	var docs []examDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode exams: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

// ListExamSubmissions returns every submission of an exam with its student,
// in arrival order.
func (s *Store) ListExamSubmissions(ctx context.Context, examID string) ([]model.SubmissionOverview, error) {
	oid, ok := objectID(examID)
	if !ok {
		return []model.SubmissionOverview{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"answers": 0})
	subs, err := s.findSubmissions(ctx, bson.M{"exam_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	students, err := s.studentsFor(ctx, subs)
	if err != nil {
		return nil, err
	}
	list := make([]model.SubmissionOverview, len(subs))
	for i, d := range subs {
		list[i] = model.SubmissionOverview{
			ID:        d.ID.Hex(),
			Student:   students[d.StudentID],
			StartTime: d.StartTime,
			Finished:  d.Finished,
		}
	}
	return list, nil
}

// SubmissionPage returns up to limit submissions of an exam in arrival
// order, starting at skip, joined with their students.
func (s *Store) SubmissionPage(ctx context.Context, examID string, skip, limit int) ([]model.GradableSubmission, error) {
	oid, ok := objectID(examID)
	if !ok {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	subs, err := s.findSubmissions(ctx, bson.M{"exam_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	students, err := s.studentsFor(ctx, subs)
	if err != nil {
		return nil, err
	}
	page := make([]model.GradableSubmission, len(subs))
	for i, d := range subs {
		page[i] = model.GradableSubmission{
			ID:      d.ID.Hex(),
			Student: students[d.StudentID],
			Answers: answersModel(d.Answers),
		}
	}
	return page, nil
}

func (s *Store) findSubmissions(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]submissionDoc, error) {
	cursor, err := s.submissions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find submissions: %w", err)
	}
	var docs []submissionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}
	return docs, nil
}

// studentsFor loads the users behind subs. Missing users are absent from
// the map.
func (s *Store) studentsFor(ctx context.Context, subs []submissionDoc) (map[string]*model.Student, error) {
	out := make(map[string]*model.Student, len(subs))
	if len(subs) == 0 {
		return out, nil
	}
	ids := make([]string, len(subs))
	for i, d := range subs {
		ids[i] = d.StudentID
	}
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	var users []model.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode students: %w", err)
	}
	for _, u := range users {
		out[u.ID] = &model.Student{ID: u.ID, Name: u.FullName(), Email: u.Email}
	}
	return out, nil
}
