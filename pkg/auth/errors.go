package auth

import "errors"

// Errors returned by Service methods. The API layer maps these onto HTTP
// status codes; anything not in this list is treated as an internal error.
var (
	ErrValidation             = errors.New("auth: validation error")
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrAccountInactive        = errors.New("auth: account is inactive")
	ErrInvalidRefreshToken    = errors.New("auth: invalid refresh token")
	ErrRefreshTokenExpired    = errors.New("auth: refresh token expired")
	ErrUserNotFoundOrInactive = errors.New("auth: user not found or inactive")
	ErrEmailTaken             = errors.New("auth: email already registered")
	ErrInvalidToken           = errors.New("auth: invalid token")
	ErrNotFound               = errors.New("auth: not found")
)

// ValidationError carries per-field messages for 422 responses.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "auth: validation error" }

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }
