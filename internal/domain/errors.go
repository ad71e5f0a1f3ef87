package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNoJob          = errors.New("no job available")
	ErrInvalidRequest = errors.New("invalid request")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrUnauthorized   = errors.New("unauthorized")
)
