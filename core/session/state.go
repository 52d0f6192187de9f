package session

import (
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
)

// State is the process-wide auth state owned by a Manager.
// Values handed out are copies; only the Manager replaces it.
type State struct {
	Session *identity.Session
	Profile *profile.Profile
	Loading bool
	// Error is the user-facing message of the last failure, empty when none.
	Error string
}

// Authenticated reports whether a session is present.
func (s State) Authenticated() bool { return s.Session != nil }

// Phase is the auth lifecycle state of a Manager.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticating
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
