package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	appI18n "github.com/Abrar11050/exam-conductor/internal/i18n"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

var contentTypes = map[model.ExportFormat]string{
	model.FormatCSV:  "text/csv; charset=utf-8",
	model.FormatHTML: "text/html; charset=utf-8",
	model.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (h *Handler) handleCreateGradesheet(w http.ResponseWriter, r *http.Request) {
	format := model.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = model.FormatCSV
	}
	user := model.UserFromContext(r.Context())
	desc, err := h.sheets.Submit(r.Context(), user.ID, chi.URLParam(r, "examID"), format)
	if err != nil {
		respondError(w, r, err)
		return
	}
	msg := appI18n.Td(r.Context(), "GradesheetQueued", map[string]any{"JobID": desc.JobID})
	respond(w, http.StatusAccepted, msg, desc)
}

// handleListGradesheets returns job ids, or full descriptors with ?full=true.
func (h *Handler) handleListGradesheets(w http.ResponseWriter, r *http.Request) {
	full := false
	if v := r.URL.Query().Get("full"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, apperr.Validation("invalid full parameter"))
			return
		}
		full = b
	}
	user := model.UserFromContext(r.Context())
	list, err := h.sheets.List(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if full {
		if list == nil {
			list = []model.JobDescriptor{}
		}
		respond(w, http.StatusOK, "", list)
		return
	}
	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.JobID
	}
	respond(w, http.StatusOK, "", ids)
}

func (h *Handler) handleGradesheetStatus(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	desc, err := h.sheets.Status(r.Context(), user.ID, chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", desc)
}

func (h *Handler) handleGradesheetFile(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	desc, path, err := h.sheets.Artifact(r.Context(), user.ID, chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[desc.Format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "gradesheet-"+desc.JobID+"."+desc.Format.Ext()))
	http.ServeFile(w, r, path)
}
