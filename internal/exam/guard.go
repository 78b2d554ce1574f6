package exam

import (
	"slices"
	"time"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// HasTime reports whether a submission started at start still has time left.
// With clamp set the personal duration is cut to what remains of the window
// at start.
func HasTime(windowEnd, start time.Time, duration time.Duration, clamp bool, now time.Time) bool {
	effective := duration
	if clamp {
		if left := windowEnd.Sub(start); left < effective {
			effective = left
		}
	}
	return now.Before(start.Add(effective))
}

// checkAttempt validates an answer write. The order of checks decides which
// failure a client sees when several apply.
func checkAttempt(e *model.Exam, q *model.Question, sub *model.Submission, questionID string, provided []int, now time.Time) error {
	if e == nil {
		return apperr.NotFound("exam not found")
	}
	if q == nil {
		return apperr.NotFound("question not found")
	}
	if now.Before(e.WindowStart) {
		return apperr.Policy("cannot attempt outside of exam window")
	}
	if sub == nil {
		return apperr.NotFound("submission not found")
	}
	if sub.Finished {
		return apperr.Policy("exam has already been finished")
	}
	ans := sub.AnswerFor(questionID)
	if ans == nil {
		return apperr.NotFound("question submission not found")
	}
	if !HasTime(e.WindowEnd, sub.StartTime, e.Duration, e.ClampTime, now) {
		return apperr.Policy("cannot submit outside of exam duration")
	}
	if !q.Unlimited() && ans.UsedAttempts >= q.MaxAttempts {
		return apperr.Policy("maximum attempts reached")
	}
	if len(provided) > len(q.Options) {
		return apperr.Validation("too many options provided")
	}
	for _, p := range provided {
		if p < 0 || p >= len(q.Options) {
			return apperr.Validation("invalid option selected")
		}
	}
	return nil
}

// normalizeIndices returns a sorted copy of idx without duplicates.
func normalizeIndices(idx []int) []int {
	out := slices.Clone(idx)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int{}
	}
	return out
}
