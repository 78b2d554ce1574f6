// Package handler exposes exams, submissions and gradesheets as a JSON API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/exam"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// Accounts is the user and login persistence the handlers need.
type Accounts interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserActive(ctx context.Context, id string, active bool) (bool, error)
	CreateAuthSession(ctx context.Context, userID string) (string, error)
	GetAuthSession(ctx context.Context, token string) (*model.AuthSession, error)
	DeleteAuthSession(ctx context.Context, token string) error
}

// Gradesheets queues and serves gradesheet jobs.
type Gradesheets interface {
	Submit(ctx context.Context, ownerID, examID string, format model.ExportFormat) (*model.JobDescriptor, error)
	Status(ctx context.Context, ownerID, jobID string) (*model.JobDescriptor, error)
	List(ctx context.Context, ownerID string) ([]model.JobDescriptor, error)
	Artifact(ctx context.Context, ownerID, jobID string) (*model.JobDescriptor, string, error)
}

// Config holds the HTTP-level settings.
type Config struct {
	BasePath      string
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	exams    *exam.Service
	accounts Accounts
	sheets   Gradesheets
	config   Config
}

// New creates a new Handler.
func New(exams *exam.Service, accounts Accounts, sheets Gradesheets, cfg Config) *Handler {
	return &Handler{exams: exams, accounts: accounts, sheets: sheets, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(h.csrfMiddleware)

		r.Post("/api/logout", h.handleLogout)
		r.Get("/api/me", h.handleMe)
		r.With(requireRole(model.UserRoleStudent, model.UserRoleTeacher)).Get("/api/exams/{examID}", h.handleViewExam)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher))
			r.Post("/api/exams", h.handleCreateExam)
			r.Get("/api/exams", h.handleListOwnedExams)
			r.Patch("/api/exams/{examID}", h.handleUpdateExam)
			r.Delete("/api/exams/{examID}", h.handleDeleteExam)
			r.Post("/api/exams/{examID}/questions", h.handleAddQuestion)
			r.Patch("/api/exams/{examID}/questions/{questionID}", h.handleUpdateQuestion)
			r.Delete("/api/exams/{examID}/questions/{questionID}", h.handleDeleteQuestion)
			r.Get("/api/exams/{examID}/submissions", h.handleListExamSubmissions)
			r.Delete("/api/exams/{examID}/submissions", h.handleResetSubmissions)
			r.Delete("/api/exams/{examID}/submissions/{studentID}", h.handleRemoveSubmission)
			r.Post("/api/exams/{examID}/gradesheets", h.handleCreateGradesheet)
			r.Get("/api/gradesheets", h.handleListGradesheets)
			r.Get("/api/gradesheets/{jobID}", h.handleGradesheetStatus)
			r.Get("/api/gradesheets/{jobID}/file", h.handleGradesheetFile)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStudent))
			r.Post("/api/exams/{examID}/start", h.handleStartExam)
			r.Patch("/api/exams/{examID}/attempt/{questionID}", h.handleAttempt)
			r.Patch("/api/exams/{examID}/finish", h.handleFinishExam)
			r.Get("/api/submissions", h.handleListStudentSubmissions)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/admin/users", h.handleListUsers)
			r.Post("/api/admin/users", h.handleCreateUser)
			r.Patch("/api/admin/users/{userID}/active", h.handleSetUserActive)
		})
	})
}

// envelope is the body of every JSON response.
type envelope struct {
	OK   bool   `json:"ok"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func respond(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{OK: true, Msg: msg, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, envelope{OK: false, Msg: apperr.Message(err)})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// pageFromQuery reads newest, limit and skip. cursor is accepted as an
// alias of skip.
func pageFromQuery(r *http.Request) (model.Page, error) {
	q := r.URL.Query()
	var p model.Page
	if v := q.Get("newest"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, apperr.Validation("invalid newest parameter")
		}
		p.Newest = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, apperr.Validation("invalid limit parameter")
		}
		p.Limit = n
	}
	skip := q.Get("skip")
	if skip == "" {
		skip = q.Get("cursor")
	}
	if skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return p, apperr.Validation("invalid cursor parameter")
		}
		p.Skip = n
	}
	return p.Normalize(), nil
}

func (h *Handler) cookiePath() string {
	return h.config.BasePath + "/"
}
