package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"ledger/internal/shared/apperror"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// pqCode returns the SQLSTATE of a Postgres error and the violated constraint.
func pqCode(err error) (string, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, c := pqCode(err)
	return code == codeUniqueViolation && (constraint == "" || c == constraint)
}

func isForeignKeyViolation(err error) bool {
	code, _ := pqCode(err)
	return code == codeForeignKeyViolation
}

// mapError tags connection-level failures as Unavailable and leftover
// constraint violations as Conflict. Errors that already carry a kind, and
// context errors, pass through.
func mapError(err error) error {
	if err == nil || apperror.KindOf(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch code, _ := pqCode(err); {
	case code == codeUniqueViolation || code == codeForeignKeyViolation:
		return &apperror.Error{Kind: apperror.ErrConflict, Msg: "constraint violation", Cause: err}
	case code == codeSerialization || code == codeDeadlock:
		return &apperror.Error{Kind: apperror.ErrConflict, Msg: "concurrent write", Cause: err}
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"):
		return apperror.Unavailable("database unavailable", err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return apperror.Unavailable("database unavailable", err)
	}
	return err
}
