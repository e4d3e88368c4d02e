package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid argument")
	ErrUnavailable = errors.New("collaborator unavailable")
)
