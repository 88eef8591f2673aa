package backend

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by every store and service. Callers classify with
// errors.Is; stores wrap them with context using fmt.Errorf("...: %w", err).
var (
	ErrAuthRequired         = errors.New("authentication required")
	ErrNotFound             = errors.New("not found")
	ErrDuplicate            = errors.New("already exists")
	ErrAlreadyJoined        = errors.New("already joined")
	ErrLobbyFull            = errors.New("lobby is full")
	ErrInvalidState         = errors.New("invalid state for this action")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrConflict             = errors.New("concurrent update lost")
	ErrValidation           = errors.New("validation failed")
	ErrConfirmationRequired = errors.New("confirmation required")
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrAuthRequired, http.StatusUnauthorized},
	{ErrNotFound, http.StatusNotFound},
	{ErrDuplicate, http.StatusConflict},
	{ErrAlreadyJoined, http.StatusConflict},
	{ErrLobbyFull, http.StatusConflict},
	{ErrInvalidState, http.StatusConflict},
	{ErrPermissionDenied, http.StatusForbidden},
	{ErrConflict, http.StatusConflict},
	{ErrValidation, http.StatusBadRequest},
	{ErrConfirmationRequired, http.StatusPreconditionRequired},
}

// HTTPStatus maps an error to the status code the API reports for it.
// Unclassified errors are internal.
func HTTPStatus(err error) int {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// ClassifyZeroRows explains why a guarded write matched no rows. exists and
// versionChanged come from re-reading the row after the write. A row that is
// still there and unchanged means the authorization layer filtered the write.
func ClassifyZeroRows(exists, versionChanged bool) error {
	switch {
	case !exists:
		return ErrNotFound
	case versionChanged:
		return ErrConflict
	default:
		return ErrPermissionDenied
	}
}
