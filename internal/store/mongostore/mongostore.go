// Package mongostore is the MongoDB backend. Exams embed their questions and
// submissions embed their answers, so an attempt is a single positional
// update of one submission document.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

type Store struct {
	client      *mongo.Client
	exams       *mongo.Collection
	submissions *mongo.Collection
	users       *mongo.Collection
	sessions    *mongo.Collection
}

// New connects to uri, selects database and makes sure the indexes exist.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		exams:       db.Collection("exams"),
		submissions: db.Collection("submissions"),
		users:       db.Collection("users"),
		sessions:    db.Collection("auth_sessions"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	slog.Info("connected to mongodb", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.submissions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "exam_id", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "student_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create submission indexes: %w", err)
	}
	if _, err := s.exams.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "author_id", Value: 1}}}); err != nil {
		return fmt.Errorf("failed to create exam indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	// Expired logins are removed by the server.
	_, err = s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type examDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	AuthorID    string        `bson:"author_id"`
	Title       string        `bson:"title"`
	Description string        `bson:"description"`
	WindowStart time.Time     `bson:"window_start"`
	WindowEnd   time.Time     `bson:"window_end"`
	DurationMs  int64         `bson:"duration_ms"`
	ClampTime   bool          `bson:"clamp_time"`
	ShowScores  bool          `bson:"show_scores"`
	HasScripts  bool          `bson:"has_scripts"`
	Questions   []questionDoc `bson:"questions"`
}

type questionDoc struct {
	ID          string   `bson:"id"`
	Text        string   `bson:"text"`
	Points      float64  `bson:"points"`
	MaxAttempts int      `bson:"max_attempts"`
	Type        int      `bson:"type"`
	Options     []string `bson:"options"`
	Correct     []int    `bson:"correct"`
}

type submissionDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	ExamID    bson.ObjectID `bson:"exam_id"`
	StudentID string        `bson:"student_id"`
	StartTime time.Time     `bson:"start_time"`
	Finished  bool          `bson:"finished"`
	Answers   []answerDoc   `bson:"answers"`
}

type answerDoc struct {
	QuestionID   string `bson:"question_id"`
	UsedAttempts int    `bson:"used_attempts"`
	Provided     []int  `bson:"provided"`
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func toQuestionDoc(q model.Question) questionDoc {
	return questionDoc{
		ID:          q.ID,
		Text:        q.Text,
		Points:      q.Points,
		MaxAttempts: q.MaxAttempts,
		Type:        int(q.Type),
		Options:     nonNil(q.Options),
		Correct:     nonNil(q.Correct),
	}
}

func (d questionDoc) model() model.Question {
	return model.Question{
		ID:          d.ID,
		Text:        d.Text,
		Points:      d.Points,
		MaxAttempts: d.MaxAttempts,
		Type:        model.QuestionType(d.Type),
		Options:     nonNil(d.Options),
		Correct:     nonNil(d.Correct),
	}
}

func toExamDoc(e *model.Exam) examDoc {
	d := examDoc{
		AuthorID:    e.AuthorID,
		Title:       e.Title,
		Description: e.Description,
		WindowStart: e.WindowStart.UTC(),
		WindowEnd:   e.WindowEnd.UTC(),
		DurationMs:  e.DurationMs(),
		ClampTime:   e.ClampTime,
		ShowScores:  e.ShowScores,
		HasScripts:  e.HasScripts,
		Questions:   make([]questionDoc, len(e.Questions)),
	}
	for i, q := range e.Questions {
		d.Questions[i] = toQuestionDoc(q)
	}
	return d
}

func (d examDoc) model() *model.Exam {
	e := &model.Exam{
		ID:          d.ID.Hex(),
		AuthorID:    d.AuthorID,
		Title:       d.Title,
		Description: d.Description,
		WindowStart: d.WindowStart,
		WindowEnd:   d.WindowEnd,
		Duration:    time.Duration(d.DurationMs) * time.Millisecond,
		ClampTime:   d.ClampTime,
		ShowScores:  d.ShowScores,
		HasScripts:  d.HasScripts,
		Questions:   make([]model.Question, len(d.Questions)),
	}
	for i, q := range d.Questions {
		e.Questions[i] = q.model()
	}
	return e
}

func (d examDoc) summary() model.ExamSummary {
	return model.ExamSummary{
		ExamID:      d.ID.Hex(),
		AuthorID:    d.AuthorID,
		Title:       d.Title,
		WindowStart: d.WindowStart,
		WindowEnd:   d.WindowEnd,
		Duration:    time.Duration(d.DurationMs) * time.Millisecond,
		ShowScores:  d.ShowScores,
	}
}

func toAnswerDocs(answers []model.Answer) []answerDoc {
	docs := make([]answerDoc, len(answers))
	for i, a := range answers {
		docs[i] = answerDoc{QuestionID: a.QuestionID, UsedAttempts: a.UsedAttempts, Provided: nonNil(a.Provided)}
	}
	return docs
}

func answersModel(docs []answerDoc) []model.Answer {
	answers := make([]model.Answer, len(docs))
	for i, a := range docs {
		answers[i] = model.Answer{QuestionID: a.QuestionID, UsedAttempts: a.UsedAttempts, Provided: nonNil(a.Provided)}
	}
	return answers
}

func (d submissionDoc) model() *model.Submission {
	return &model.Submission{
		ID:        d.ID.Hex(),
		ExamID:    d.ExamID.Hex(),
		StudentID: d.StudentID,
		StartTime: d.StartTime,
		Finished:  d.Finished,
		Answers:   answersModel(d.Answers),
	}
}

// objectID parses a hex ID. Malformed IDs cannot match any document.
func objectID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	return oid, err == nil
}

func sortOrder(newest bool) int {
	if newest {
		return -1
	}
	return 1
}
