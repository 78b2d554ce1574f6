package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/Abrar11050/exam-conductor/internal/i18n"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter) error {
	token, err := generateCSRFToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// csrfMiddleware implements double-submit protection: unsafe requests must
// echo the csrf_token cookie in the X-CSRF-Token header.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if err != nil || cookie.Value == "" {
				if err := h.setCSRFCookie(w); err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					writeJSON(w, http.StatusInternalServerError, envelope{Msg: "internal error"})
					return
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, envelope{Msg: "csrf token missing"})
			return
		}
		token := r.Header.Get(csrfHeaderName)
		if token == "" {
			slog.Warn("CSRF header missing", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, envelope{Msg: "csrf token missing"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, envelope{Msg: "invalid csrf token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			h.unauthorized(w, r)
			return
		}

		authSess, err := h.accounts.GetAuthSession(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			h.unauthorized(w, r)
			return
		}
		if authSess == nil {
			h.unauthorized(w, r)
			return
		}

		user, err := h.accounts.GetUserByID(r.Context(), authSess.UserID)
		if err != nil || user == nil || !user.Active {
			h.unauthorized(w, r)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, envelope{Msg: appI18n.T(r.Context(), "LoginRequired")})
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, envelope{Msg: appI18n.T(r.Context(), "AccessDenied")})
		})
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, envelope{Msg: appI18n.T(r.Context(), "LoginRequired")})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.accounts.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		h.loginFailed(w, r)
		return
	}
	if user == nil {
		h.loginFailed(w, r)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.loginFailed(w, r)
		return
	}
	if !user.Active {
		writeJSON(w, http.StatusForbidden, envelope{Msg: appI18n.T(r.Context(), "AccountDisabled")})
		return
	}

	token, err := h.accounts.CreateAuthSession(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Msg: "internal error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	if err := h.setCSRFCookie(w); err != nil {
		slog.Error("failed to generate CSRF token", "error", err)
	}
	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	respond(w, http.StatusOK, "", user)
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, envelope{Msg: appI18n.T(r.Context(), "LoginFailed")})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.accounts.DeleteAuthSession(r.Context(), cookie.Value); err != nil {
			slog.Warn("failed to delete auth session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	respond(w, http.StatusOK, appI18n.T(r.Context(), "LoggedOut"), nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "", model.UserFromContext(r.Context()))
}
