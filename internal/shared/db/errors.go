package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("database unreachable")
	// ErrQuery matches every *QueryError.
	ErrQuery = errors.New("database rejected statement")
)

// ConnectionError is returned when a reconnect cycle exhausts its attempts.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to reconnect to database after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// QueryError carries the backend's error text for a failed statement.
type QueryError struct {
	Op      string
	Code    string // SQLSTATE, empty when the failure did not come from the server
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("database %s failed: %s", e.Op, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func newQueryError(op string, err error) *QueryError {
	qe := &QueryError{Op: op, Message: err.Error(), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		qe.Code = pgErr.Code
		qe.Message = pgErr.Message
	}
	return qe
}

// codeInvalidStatementName is the SQLSTATE for a prepared statement that does
// not exist on the connection.
const codeInvalidStatementName = "26000"

// IsMissingStatement reports whether err says a named statement is unknown to
// the current connection, typically because it was prepared on a previous one.
func IsMissingStatement(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Code == codeInvalidStatementName
}
