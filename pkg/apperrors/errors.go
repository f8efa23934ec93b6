package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateService       = errors.New("credential already exists for this service")
	ErrValidation             = errors.New("invalid input")
	ErrAttemptsExhausted      = errors.New("query attempts exhausted")
	ErrCredentialsKeyMismatch = errors.New("credential was encrypted with a different key")
)
