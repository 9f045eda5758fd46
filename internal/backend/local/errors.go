package local

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/listenupapp/tagnotes/internal/errors"
)

// The hosted backend answers with HTTP statuses; the local one sets the same
// Status on its errors so callers cannot tell them apart.

func badRequest(format string, args ...any) error {
	e := errors.Validationf(format, args...)
	e.Status = http.StatusBadRequest
	return e
}

func unprocessable(msg string) *errors.Error {
	e := errors.Validation(msg)
	e.Status = http.StatusUnprocessableEntity
	return e
}

func rowSecurity(table string) error {
	return errors.Remote(http.StatusForbidden,
		fmt.Sprintf("new row violates row-level security policy for table %q", table))
}

// sqlError maps a driver error to the error the hosted backend would return
// for the same constraint.
func sqlError(err error, table string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var e *errors.Error
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		e = errors.Conflict(fmt.Sprintf("duplicate key value violates unique constraint on %q", table))
		e.Status = http.StatusConflict
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		e = errors.Conflict(fmt.Sprintf("update or delete on table %q violates foreign key constraint", table))
		e.Status = http.StatusConflict
	case strings.Contains(msg, "NOT NULL constraint failed"), strings.Contains(msg, "CHECK constraint failed"):
		e = errors.Validation(fmt.Sprintf("new row for relation %q violates a constraint", table))
		e.Status = http.StatusBadRequest
	default:
		e = errors.Internal("database error")
	}
	return e.WithCause(err)
}
