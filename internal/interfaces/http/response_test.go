package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledger/internal/domain/account"
	"ledger/internal/domain/transaction"
	"ledger/internal/shared/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", account.ErrAccountNotFound, http.StatusNotFound},
		{"invalid argument", transaction.ErrZeroAmount, http.StatusBadRequest},
		{"conflict", transaction.ErrConcurrentModification, http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("create: %w", account.ErrAccountNameTaken), http.StatusConflict},
		{"unavailable", apperror.Unavailable("database unavailable", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"unauthorized", errUnauthorized, http.StatusUnauthorized},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteErrorHidesCauses(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"domain message", account.ErrAccountInUse, http.StatusConflict, "account is referenced by transactions or recurring templates"},
		{"unavailable cause hidden", apperror.Unavailable("database unavailable", errors.New("password authentication failed")), http.StatusServiceUnavailable, "database unavailable"},
		{"internal error hidden", errors.New("pq: relation does not exist"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			rr := httptest.NewRecorder()
			writeError(rr, req, tt.err)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.message {
				t.Errorf("error = %q, want %q", body.Error, tt.message)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
	}{
		{"no checks", nil, http.StatusOK},
		{"healthy", map[string]HealthCheck{"database": func(context.Context) error { return nil }}, http.StatusOK},
		{"unhealthy", map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"broker":   func(context.Context) error { return errors.New("connection refused") },
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHealthHandler(tt.checks).Register(mux)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			var body HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Checks) != len(tt.checks) {
				t.Errorf("checks = %v, want %d entries", body.Checks, len(tt.checks))
			}
		})
	}
}
