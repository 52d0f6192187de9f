// Package identity defines the contract between portal clients and the identity provider:
// sessions, users, auth events and the Client surface the session core consumes.
package identity

import (
	"context"
	"time"
)

type (
	// User is the provider's view of an authenticated identity.
	User struct {
		ID          string            `json:"id"`
		Email       string            `json:"email"`
		ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
		LastSignIn  *time.Time        `json:"last_sign_in_at,omitempty"`
		Metadata    map[string]string `json:"user_metadata,omitempty"`
		CreatedAt   time.Time         `json:"created_at"`
		UpdatedAt   time.Time         `json:"updated_at"`
	}

	// Session is a provider-issued proof of authentication. It is never built by the session core.
	Session struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		TokenType    string    `json:"token_type"`
		ExpiresIn    int64     `json:"expires_in"`
		ExpiresAt    time.Time `json:"expires_at"`
		User         User      `json:"user"`
	}

	// Attributes are the user data sent along a sign-up.
	Attributes struct {
		FullName string `json:"full_name,omitempty"`
		Role     string `json:"role,omitempty"`
	}

	// SignUpResult carries the created user and, when no email confirmation is required, its session.
	SignUpResult struct {
		User    User     `json:"user"`
		Session *Session `json:"session"`
	}
)

// SubjectID returns the id of the authenticated subject.
func (s *Session) SubjectID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}

// Expired reports whether the access token is past (or within leeway of) its expiry.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

// SessionPresent reports whether the sign-up activated a session right away.
func (r SignUpResult) SessionPresent() bool { return r.Session != nil }

func (a Attributes) Map() map[string]string {
	m := make(map[string]string, 2)
	if a.FullName != "" {
		m["full_name"] = a.FullName
	}
	if a.Role != "" {
		m["role"] = a.Role
	}
	return m
}

// AttributesFrom reads the sign-up attributes back from user metadata.
func AttributesFrom(metadata map[string]string) Attributes {
	return Attributes{FullName: metadata["full_name"], Role: metadata["role"]}
}

type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// Event is pushed by a Client whenever its session changes. A nil Session means signed out.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Client is the identity service surface consumed by the session core.
type Client interface {
	SignUp(ctx context.Context, email, password string, attrs Attributes) (SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	GetCurrentSession(ctx context.Context) (*Session, error)
	GetCurrentUser(ctx context.Context) (User, error)
	// Subscribe returns a channel of auth events and a func to unsubscribe.
	Subscribe() (<-chan Event, func())
}
