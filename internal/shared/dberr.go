package shared

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// sqlstateMessages translates engine error codes into a stable,
// human-readable vocabulary.
var sqlstateMessages = map[string]string{
	"23505": "unique constraint violation",
	"23503": "foreign key constraint violation",
	"23502": "not null constraint violation",
	"23514": "check constraint violation",
	"23P01": "exclusion constraint violation",
	"22P02": "invalid text representation",
	"22003": "numeric value out of range",
	"22001": "string data right truncation",
	"42P01": "undefined table",
	"42703": "undefined column",
	"42883": "undefined function",
	"42804": "data type mismatch",
	"42501": "insufficient privilege",
	"40P01": "deadlock detected",
	"40001": "serialization failure",
}

// IsUniqueViolation reports whether the mapped error is a unique
// constraint violation.
func IsUniqueViolation(err *Error) bool {
	return err != nil && err.Code == "23505"
}

// MapDBError converts a driver error into an application Error. Repository
// methods return only mapped errors, so no engine error crosses the
// repository boundary.
func MapDBError(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Code: CodeNotFound, Message: "resource not found", Status: http.StatusNotFound}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		message, ok := sqlstateMessages[pgErr.Code]
		if !ok {
			message = "unknown database error"
		}
		mapped := &Error{Code: pgErr.Code, Message: message, Status: http.StatusBadRequest}
		details := map[string]any{}
		if pgErr.ConstraintName != "" {
			details["constraint"] = pgErr.ConstraintName
		}
		if pgErr.TableName != "" {
			details["table"] = pgErr.TableName
		}
		if pgErr.Detail != "" {
			details["detail"] = pgErr.Detail
		}
		if len(details) > 0 {
			mapped.Details = details
		}
		return mapped
	}
	return Internal(err, "unknown database error")
}
