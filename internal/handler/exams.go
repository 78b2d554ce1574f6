package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/exam"
	appI18n "github.com/Abrar11050/exam-conductor/internal/i18n"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// examJSON adds the millisecond duration the model hides.
type examJSON struct {
	model.Exam
	DurationMs int64 `json:"duration_ms"`
}

func newExamJSON(e model.Exam) examJSON {
	return examJSON{Exam: e, DurationMs: e.DurationMs()}
}

type summaryJSON struct {
	model.ExamSummary
	DurationMs int64 `json:"duration_ms"`
}

func newSummaries(list []model.ExamSummary) []summaryJSON {
	out := make([]summaryJSON, len(list))
	for i, s := range list {
		out[i] = summaryJSON{ExamSummary: s, DurationMs: s.Duration.Milliseconds()}
	}
	return out
}

var stateMessages = map[exam.State]string{
	exam.StateNotStarted:  "StateNotStarted",
	exam.StateStarted:     "StateStarted",
	exam.StateSubmitted:   "StateSubmitted",
	exam.StateDoneExpired: "StateDoneExpired",
	exam.StateMissed:      "StateMissed",
	exam.StateEarly:       "StateEarly",
	exam.StateNotFound:    "StateNotFound",
	exam.StateError:       "StateError",
}

type viewJSON struct {
	Exam       examJSON          `json:"exam"`
	Mode       string            `json:"mode"`
	State      *exam.State       `json:"state,omitempty"`
	StateText  string            `json:"state_text,omitempty"`
	Submission *model.Submission `json:"submission,omitempty"`
	Scores     []float64         `json:"scores,omitempty"`
	Total      *float64          `json:"total,omitempty"`
	Grand      *float64          `json:"grand,omitempty"`
}

func (h *Handler) handleViewExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	v, err := h.exams.View(r.Context(), user, chi.URLParam(r, "examID"), r.URL.Query().Get("std"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := viewJSON{Exam: newExamJSON(v.Exam), Mode: v.Mode.String(), Submission: v.Submission}
	if v.Mode == exam.ModeStudent {
		st := v.State
		out.State = &st
		out.StateText = appI18n.T(r.Context(), stateMessages[st])
	}
	if v.Result != nil {
		out.Scores = v.Result.Scores
		out.Total = &v.Result.Total
		out.Grand = &v.Result.Grand
	}
	respond(w, http.StatusOK, "", out)
}

type examRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
	DurationMs  *int64     `json:"duration_ms"`
	ClampTime   *bool      `json:"clamp_time"`
	ShowScores  *bool      `json:"show_scores"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (req examRequest) input() exam.ExamInput {
	return exam.ExamInput{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		WindowStart: deref(req.WindowStart),
		WindowEnd:   deref(req.WindowEnd),
		Duration:    time.Duration(deref(req.DurationMs)) * time.Millisecond,
		ClampTime:   deref(req.ClampTime),
		ShowScores:  deref(req.ShowScores),
	}
}

func (req examRequest) patch() exam.ExamPatch {
	p := exam.ExamPatch{
		Title:       req.Title,
		Description: req.Description,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		ClampTime:   req.ClampTime,
		ShowScores:  req.ShowScores,
	}
	if req.DurationMs != nil {
		d := time.Duration(*req.DurationMs) * time.Millisecond
		p.Duration = &d
	}
	return p
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	e, err := h.exams.CreateExam(r.Context(), user.ID, req.input())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "", newExamJSON(*e))
}

func (h *Handler) handleListOwnedExams(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	list, err := h.exams.ListOwnedExams(r.Context(), user.ID, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", newSummaries(list))
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	if err := h.exams.UpdateExam(r.Context(), user.ID, chi.URLParam(r, "examID"), req.patch()); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", nil)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.exams.DeleteExam(r.Context(), user.ID, chi.URLParam(r, "examID")); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", nil)
}

type questionRequest struct {
	Text        *string             `json:"text"`
	Points      *float64            `json:"points"`
	MaxAttempts *int                `json:"max_attempts"`
	Type        *model.QuestionType `json:"type"`
	Options     []string            `json:"options"`
	Correct     []int               `json:"correct"`
	Position    *int                `json:"position"`
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Position != nil && *req.Position < 0 {
		respondError(w, r, apperr.Validation("invalid position"))
		return
	}
	in := exam.QuestionInput{
		Text:        deref(req.Text),
		Points:      deref(req.Points),
		MaxAttempts: deref(req.MaxAttempts),
		Type:        deref(req.Type),
		Options:     req.Options,
		Correct:     req.Correct,
	}
	user := model.UserFromContext(r.Context())
	q, err := h.exams.AddQuestion(r.Context(), user.ID, chi.URLParam(r, "examID"), in, req.Position)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "", q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p := exam.QuestionPatch{
		Text:        req.Text,
		Points:      req.Points,
		MaxAttempts: req.MaxAttempts,
		Type:        req.Type,
		Options:     req.Options,
		Correct:     req.Correct,
	}
	user := model.UserFromContext(r.Context())
	err := h.exams.UpdateQuestion(r.Context(), user.ID, chi.URLParam(r, "examID"), chi.URLParam(r, "questionID"), p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", nil)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	err := h.exams.DeleteQuestion(r.Context(), user.ID, chi.URLParam(r, "examID"), chi.URLParam(r, "questionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", nil)
}
