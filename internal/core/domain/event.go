package domain

import "time"

// AuthEventType names a security-relevant state transition.
type AuthEventType string

const (
	EventRegistered   AuthEventType = "registered"
	EventLogin        AuthEventType = "login"
	EventLoginFailed  AuthEventType = "login_failed"
	EventReauth       AuthEventType = "reauthenticated"
	EventLinked       AuthEventType = "identity_linked"
	EventUnlinked     AuthEventType = "identity_unlinked"
	EventPasswordSet  AuthEventType = "password_set"
	EventEmailChanged AuthEventType = "email_changed"
	EventSystemToken  AuthEventType = "system_token_issued"
	EventUserDeleted  AuthEventType = "user_deleted"
)

// AuthEvent is one entry of the security audit trail.
type AuthEvent struct {
	Type     AuthEventType
	UserID   string
	Method   string   // "password", "sso" or empty
	Provider Provider // optional
	At       time.Time
}
