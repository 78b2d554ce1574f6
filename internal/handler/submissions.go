package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/Abrar11050/exam-conductor/internal/i18n"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	questions, err := h.exams.Start(r.Context(), chi.URLParam(r, "examID"), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", questions)
}

type attemptRequest struct {
	Provided []int `json:"provided"`
}

func (h *Handler) handleAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Provided == nil {
		req.Provided = []int{}
	}
	user := model.UserFromContext(r.Context())
	err := h.exams.Attempt(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "questionID"), user.ID, req.Provided)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", nil)
}

func (h *Handler) handleFinishExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.exams.Finish(r.Context(), chi.URLParam(r, "examID"), user.ID); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", nil)
}

func (h *Handler) handleListStudentSubmissions(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	list, err := h.exams.ListStudentSubmissions(r.Context(), user.ID, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", newSummaries(list))
}

func (h *Handler) handleListExamSubmissions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	list, err := h.exams.ListExamSubmissions(r.Context(), user.ID, chi.URLParam(r, "examID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.SubmissionOverview{}
	}
	respond(w, http.StatusOK, "", list)
}

func (h *Handler) handleRemoveSubmission(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	err := h.exams.RemoveSubmission(r.Context(), user.ID, chi.URLParam(r, "examID"), chi.URLParam(r, "studentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, appI18n.Tp(r.Context(), "SubmissionsRemoved", 1), nil)
}

func (h *Handler) handleResetSubmissions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	n, err := h.exams.ResetSubmissions(r.Context(), user.ID, chi.URLParam(r, "examID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, appI18n.Tp(r.Context(), "SubmissionsRemoved", int(n)), map[string]int64{"removed": n})
}
