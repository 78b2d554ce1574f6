package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Abrar11050/exam-conductor/internal/apperr"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		respondError(w, r, apperr.Infra("failed to list users", err))
		return
	}
	if users == nil {
		users = []model.User{}
	}
	respond(w, http.StatusOK, "", users)
}

type createUserRequest struct {
	Username  string         `json:"username"`
	Password  string         `json:"password"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Email     string         `json:"email"`
	Role      model.UserRole `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, r, apperr.Validation("username and password required"))
		return
	}
	if req.Role == "" {
		req.Role = model.UserRoleStudent
	}
	if !req.Role.Valid() {
		respondError(w, r, apperr.Validation("unknown role"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, apperr.Infra("failed to hash password", err))
		return
	}

	u := &model.User{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	if err := h.accounts.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			respondError(w, r, apperr.Policy("username already taken"))
			return
		}
		respondError(w, r, apperr.Infra("failed to create user", err))
		return
	}
	respond(w, http.StatusCreated, "", u)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if self := model.UserFromContext(r.Context()); self != nil && self.ID == id && !req.Active {
		respondError(w, r, apperr.Policy("cannot deactivate your own account"))
		return
	}
	ok, err := h.accounts.SetUserActive(r.Context(), id, req.Active)
	if err != nil {
		respondError(w, r, apperr.Infra("failed to update user", err))
		return
	}
	if !ok {
		respondError(w, r, apperr.NotFound("user not found"))
		return
	}
	slog.Info("user active flag changed", "id", id, "active", req.Active)
	respond(w, http.StatusOK, "", nil)
}
