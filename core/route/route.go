// Package route decides where a portal client must be sent given its auth state.
package route

import "strings"

// Area groups the portal paths by access rule.
type Area int

const (
	// AreaApp is every path that needs a session.
	AreaApp Area = iota
	// AreaAuth holds the login, register & forgot-password paths.
	AreaAuth
)

func (a Area) String() string {
	if a == AreaAuth {
		return "auth"
	}
	return "app"
}

// AreaOf returns the Area of path: AreaAuth when its first segment is "auth".
func AreaOf(path string) Area {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	first := strings.SplitN(path, "/", 2)[0]
	if i := strings.IndexAny(first, "?#"); i >= 0 {
		first = first[:i]
	}
	if first == "auth" {
		return AreaAuth
	}
	return AreaApp
}

// Target is a redirect decision.
type Target int

const (
	TargetNone Target = iota
	TargetLogin
	TargetHome
)

const (
	LoginPath = "/auth/login"
	HomePath  = "/"
)

// Path returns the path to redirect to; empty for TargetNone.
func (t Target) Path() string {
	switch t {
	case TargetLogin:
		return LoginPath
	case TargetHome:
		return HomePath
	default:
		return ""
	}
}

func (t Target) String() string {
	switch t {
	case TargetLogin:
		return "login"
	case TargetHome:
		return "home"
	default:
		return "none"
	}
}

// Decide is the redirect rule. Nothing moves while loading.
func Decide(sessionPresent bool, area Area, loading bool) Target {
	switch {
	case loading:
		return TargetNone
	case !sessionPresent && area != AreaAuth:
		return TargetLogin
	case sessionPresent && area == AreaAuth:
		return TargetHome
	default:
		return TargetNone
	}
}
