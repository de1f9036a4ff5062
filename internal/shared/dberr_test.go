package shared

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapDBErrorNoRows(t *testing.T) {
	mapped := MapDBError(pgx.ErrNoRows)
	require.Equal(t, CodeNotFound, mapped.Code)
	require.Equal(t, http.StatusNotFound, mapped.Status)
}

func TestMapDBErrorUniqueViolation(t *testing.T) {
	mapped := MapDBError(&pgconn.PgError{
		Code:           "23505",
		ConstraintName: "user_permissions_pkey",
		TableName:      "user_permissions",
	})
	require.Equal(t, "23505", mapped.Code)
	require.Equal(t, "unique constraint violation", mapped.Message)
	require.Equal(t, http.StatusBadRequest, mapped.Status)
	require.Equal(t, "user_permissions_pkey", mapped.Details["constraint"])
	require.Equal(t, "user_permissions", mapped.Details["table"])
	require.True(t, IsUniqueViolation(mapped))
}

func TestMapDBErrorUnknownSQLState(t *testing.T) {
	mapped := MapDBError(&pgconn.PgError{Code: "XX000"})
	require.Equal(t, "XX000", mapped.Code)
	require.Equal(t, "unknown database error", mapped.Message)
}

func TestMapDBErrorFallsBackToInternal(t *testing.T) {
	mapped := MapDBError(errors.New("connection reset"))
	require.Equal(t, CodeInternalError, mapped.Code)
	require.Equal(t, http.StatusInternalServerError, mapped.Status)
}
