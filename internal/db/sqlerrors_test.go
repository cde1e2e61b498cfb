package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// TestMapSQLErrorBusy verifies that a busy database maps to a serialization
// error, which the store's write retry keys on.
func TestMapSQLErrorBusy(t *testing.T) {
	t.Parallel()

	mapped := MapSQLError(sqlite3.Error{Code: sqlite3.ErrBusy})
	require.True(t, IsSerializationError(mapped))
	require.True(t, IsSerializationOrDeadlockError(mapped))
	require.False(t, IsDeadlockError(mapped))
}

// TestMapSQLErrorLocked verifies that a locked database maps to a deadlock
// error, also retried by the store.
func TestMapSQLErrorLocked(t *testing.T) {
	t.Parallel()

	mapped := MapSQLError(sqlite3.Error{Code: sqlite3.ErrLocked})
	require.True(t, IsDeadlockError(mapped))
	require.True(t, IsSerializationOrDeadlockError(mapped))
	require.False(t, IsSerializationError(mapped))
}

// TestMapSQLErrorWrapped verifies classification through fmt.Errorf wrapping,
// since store call sites add operation context around the mapped error.
func TestMapSQLErrorWrapped(t *testing.T) {
	t.Parallel()

	mapped := MapSQLError(sqlite3.Error{Code: sqlite3.ErrBusy})
	wrapped := fmt.Errorf("failed to store message: %w", mapped)
	require.True(t, IsSerializationOrDeadlockError(wrapped))
}

// TestMapSQLErrorUniqueConstraint verifies the unique constraint mapping.
func TestMapSQLErrorUniqueConstraint(t *testing.T) {
	t.Parallel()

	mapped := MapSQLError(sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	})

	var uniqueErr *ErrSQLUniqueConstraintViolation
	require.True(t, errors.As(mapped, &uniqueErr))
	require.False(t, IsSerializationOrDeadlockError(mapped))
}

// TestMapSQLErrorPassthrough verifies that non-sqlite errors are returned
// unchanged.
func TestMapSQLErrorPassthrough(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("plain failure")
	require.Equal(t, sentinel, MapSQLError(sentinel))
	require.False(t, IsSerializationOrDeadlockError(sentinel))
}
