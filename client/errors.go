package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when the server rejects a mutation because
	// a concurrent edit won.
	ErrConflict = errors.New("board api: conflict")
	// ErrForbidden is returned when the caller lacks permission on the board.
	ErrForbidden = errors.New("board api: forbidden")
	// ErrNotFound is returned when the board or entity no longer exists.
	ErrNotFound = errors.New("board api: not found")
)

// ColumnNotEmptyError is returned when a column owning cards is deleted.
// The server refuses the operation; callers surface the specific reason
// rather than a generic failure.
type ColumnNotEmptyError struct {
	ColumnID string
}

func (e *ColumnNotEmptyError) Error() string {
	return fmt.Sprintf("board api: column %s still has cards", e.ColumnID)
}

// StatusError carries any other non-success HTTP response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("board api: unexpected status %d: %s", e.Status, e.Body)
}
