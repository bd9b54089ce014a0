package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every error returned by the core wraps exactly one of these so
// callers can branch with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrAuthentication     = errors.New("authentication failed")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrStepUpRequired     = errors.New("recent authentication required")
	ErrToken              = errors.New("invalid token")
)

// kindError is a specific error that belongs to a kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	// ErrInvalidCredentials never says which part of the credential was wrong.
	ErrInvalidCredentials = newKindError(ErrAuthentication, "invalid credentials")
	ErrInvalidSSOToken    = newKindError(ErrAuthentication, "invalid or expired token")
	ErrInvalidSystemKey   = newKindError(ErrAuthentication, "invalid system key")

	ErrEmailTaken               = newKindError(ErrConflict, "email already in use")
	ErrProviderAlreadyLinked    = newKindError(ErrConflict, "already linked")
	ErrIdentityLinkedElsewhere  = newKindError(ErrConflict, "identity already linked to another account")
	ErrAccountExistsOtherMethod = newKindError(ErrConflict, "account exists via a different method")
	ErrConcurrentModification   = newKindError(ErrConflict, "account was modified concurrently, retry the request")

	ErrUserNotFound      = newKindError(ErrNotFound, "user not found")
	ErrProviderNotLinked = newKindError(ErrNotFound, "provider not linked")

	ErrLastAuthMethod = newKindError(ErrInvariantViolation, "cannot remove last authentication method")

	ErrUnsupportedProvider = newKindError(ErrValidation, "unsupported sso provider")
)

// ErrVersionMismatch is returned by stores when a conditional update loses the race.
// It never leaves the core; the linking engine re-reads and re-checks on it.
var ErrVersionMismatch = errors.New("version mismatch")

// ValidationError rejects a malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StepUpRequiredError means the token is valid but too old for a sensitive action.
type StepUpRequiredError struct {
	IssuedAt time.Time
	Age      time.Duration
	MaxAge   time.Duration
}

func (e *StepUpRequiredError) Error() string {
	return "token is too old, please verify your identity again"
}

func (e *StepUpRequiredError) Unwrap() error { return ErrStepUpRequired }

// TokenErrorReason distinguishes why a bearer token was rejected.
type TokenErrorReason string

const (
	TokenMalformed      TokenErrorReason = "malformed"
	TokenExpired        TokenErrorReason = "expired"
	TokenIssuerMismatch TokenErrorReason = "issuer_mismatch"
)

// TokenError is returned by token verification.
type TokenError struct {
	Reason TokenErrorReason
	Err    error
}

func (e *TokenError) Error() string {
	switch e.Reason {
	case TokenExpired:
		return "token expired"
	case TokenIssuerMismatch:
		return "token issuer mismatch"
	default:
		return "invalid token"
	}
}

func (e *TokenError) Is(target error) bool { return target == ErrToken }
func (e *TokenError) Unwrap() error        { return e.Err }
