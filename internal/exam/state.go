package exam

import (
	"time"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// State is the delivery state of an exam for one student at one instant.
type State int

const (
	StateNotStarted  State = iota + 1 // window open, no submission
	StateStarted                      // submission open with time left
	StateSubmitted                    // finished, or time used up while the window is open
	StateDoneExpired                  // time used up and the window closed
	StateMissed                       // window closed without a submission
	StateEarly                        // window not open yet
	StateNotFound                     // exam does not exist
	StateError                        // stored exam or submission is incomplete
)

var stateNames = map[State]string{
	StateNotStarted:  "NOT_STARTED",
	StateStarted:     "STARTED",
	StateSubmitted:   "SUBMITTED",
	StateDoneExpired: "DONE_EXPIRED",
	StateMissed:      "MISSED",
	StateEarly:       "EARLY",
	StateNotFound:    "NOT_FOUND",
	StateError:       "ERROR",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "ERROR"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolve derives the delivery state from the exam, the student's submission
// (nil if none) and the current time. It is pure: the same inputs always give
// the same state.
//
// An unfinished submission whose personal time has not run out stays STARTED
// even after the exam window has closed.
func Resolve(e *model.Exam, sub *model.Submission, now time.Time) State {
	if e == nil {
		return StateNotFound
	}
	if e.WindowStart.IsZero() || e.WindowEnd.IsZero() || e.Duration <= 0 {
		return StateError
	}
	if now.Before(e.WindowStart) {
		return StateEarly
	}

	afterWindow := !now.Before(e.WindowEnd)
	if sub == nil {
		if afterWindow {
			return StateMissed
		}
		return StateNotStarted
	}
	if sub.StartTime.IsZero() {
		return StateError
	}
	if sub.Finished {
		return StateSubmitted
	}

	if HasTime(e.WindowEnd, sub.StartTime, e.Duration, e.ClampTime, now) {
		return StateStarted
	}
	if afterWindow {
		return StateDoneExpired
	}
	return StateSubmitted
}
