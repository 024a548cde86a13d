// Package http exposes the ledger over a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ledger/internal/shared/apperror"
	"ledger/internal/shared/logging"
	"ledger/internal/shared/middleware"
	"ledger/internal/shared/period"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errUnauthorized = errors.New("unauthorized")

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Component(logging.ComponentHTTP).Error("failed to encode response", logging.FieldError, err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeError maps a domain error to its HTTP status. Errors without a kind
// are logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		logging.Component(logging.ComponentHTTP).ErrorContext(r.Context(), "request failed",
			logging.FieldMethod, r.Method,
			logging.FieldPath, r.URL.Path,
			logging.FieldError, err)
	}
	if status == http.StatusInternalServerError {
		writeMessage(w, status, "internal server error")
		return
	}
	writeMessage(w, status, errorMessage(err))
}

func statusFor(err error) int {
	if errors.Is(err, errUnauthorized) {
		return http.StatusUnauthorized
	}
	switch apperror.KindOf(err) {
	case apperror.ErrNotFound:
		return http.StatusNotFound
	case apperror.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperror.ErrConflict:
		return http.StatusConflict
	case apperror.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides infrastructure causes behind the domain message.
func errorMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return err.Error()
}

func requestUser(r *http.Request) (int64, error) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return 0, errUnauthorized
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeOptional is decode accepting an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.InvalidArgument("invalid request body: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperror.InvalidArgument("invalid id")
	}
	return id, nil
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.InvalidArgument("invalid " + field)
	}
	return id, nil
}

// parseDay parses an optional YYYY-MM-DD value.
func parseDay(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := period.ParseDay(raw)
	if err != nil {
		return nil, apperror.InvalidArgument(field + " must be formatted as YYYY-MM-DD")
	}
	return &day, nil
}

// parseMonth parses an optional YYYY-MM value. Empty means the zero time.
func parseMonth(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	month, err := period.ParseMonth(raw)
	if err != nil {
		return time.Time{}, apperror.InvalidArgument("month must be formatted as YYYY-MM")
	}
	return month, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.InvalidArgument(name + " must be an integer")
	}
	return n, nil
}
