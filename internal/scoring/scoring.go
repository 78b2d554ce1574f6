// Package scoring computes penalty-adjusted question scores.
package scoring

import (
	"errors"
	"fmt"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// MissPenalty is subtracted from the hit count for every provided option
// that is not in the correct set.
const MissPenalty = 0.25

// ErrOutOfSync reports that a submission's answers are not positionally
// aligned with its exam's questions. It indicates corrupt stored data.
var ErrOutOfSync = errors.New("questions and answers out of sync")

// Key is the grading view of a question.
type Key struct {
	QuestionID string
	Points     float64
	Correct    []int
}

// Response is a student's recorded answer.
type Response = model.Answer

// Result is the per-submission scoring outcome.
type Result struct {
	Scores []float64
	Total  float64
	Grand  float64
}

// KeysFor builds the grading keys of an exam in question order.
func KeysFor(e *model.Exam) []Key {
	keys := make([]Key, len(e.Questions))
	for i, q := range e.Questions {
		keys[i] = Key{QuestionID: q.ID, Points: q.Points, Correct: q.Correct}
	}
	return keys
}

// CorrectFactor returns the fraction of a question's points earned by the
// provided option set. Provided must be deduplicated.
func CorrectFactor(correct, provided []int) float64 {
	if len(correct) == 0 {
		if len(provided) == 0 {
			return 1
		}
		return 0
	}

	var hits, misses int
	for _, p := range provided {
		if contains(correct, p) {
			hits++
		} else {
			misses++
		}
	}
	score := float64(hits) - MissPenalty*float64(misses)
	if score < 0 {
		score = 0
	}
	return score / float64(len(correct))
}

// Scorify scores answers against keys position by position. Answers never
// attempted score zero whatever they contain.
func Scorify(keys []Key, answers []Response) (Result, error) {
	if len(keys) != len(answers) {
		return Result{}, fmt.Errorf("%w: %d questions, %d answers", ErrOutOfSync, len(keys), len(answers))
	}

	res := Result{Scores: make([]float64, len(keys))}
	for i, k := range keys {
		a := answers[i]
		if k.QuestionID != a.QuestionID {
			return Result{}, fmt.Errorf("%w at index %d", ErrOutOfSync, i)
		}
		if a.UsedAttempts > 0 {
			res.Scores[i] = k.Points * CorrectFactor(k.Correct, a.Provided)
		}
		res.Total += res.Scores[i]
		res.Grand += k.Points
	}
	return res, nil
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
