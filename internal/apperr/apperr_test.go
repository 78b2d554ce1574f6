package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("exam not found"), http.StatusNotFound},
		{"validation", Validation("too many options"), http.StatusBadRequest},
		{"policy", Policy("attempts exhausted"), http.StatusNotAcceptable},
		{"forbidden", Forbidden("not the owner"), http.StatusForbidden},
		{"unavailable", Unavailable("worker not connected"), http.StatusServiceUnavailable},
		{"infra", Infra("load exam", errors.New("disk")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("start: %w", Policy("closed")), http.StatusNotAcceptable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInfraHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Infra("failed to load exam", cause)

	if got := Message(err); got != "failed to load exam" {
		t.Errorf("Message() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if got := Message(errors.New("raw")); got != "internal error" {
		t.Errorf("Message(plain) = %q", got)
	}
}
