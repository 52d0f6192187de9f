package session

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core/identity"
)

// Op names a Manager operation.
type Op string

const (
	OpInitialize     Op = "initialize"
	OpSignUp         Op = "sign up"
	OpSignIn         Op = "sign in"
	OpSignOut        Op = "sign out"
	OpResetPassword  Op = "reset password"
	OpUpdatePassword Op = "update password"
)

// Reason is the closed set of failure causes surfaced to users.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonInvalidCredentials
	ReasonEmailNotConfirmed
	ReasonRateLimited
	ReasonInvalidEmail
	ReasonUserExists
	ReasonWeakPassword
	ReasonUnavailable
)

const (
	msgInvalidCredentials = "the email or password you entered is incorrect"
	msgEmailNotConfirmed  = "please verify your email address before signing in"
	msgRateLimited        = "too many attempts, try again later"
	msgInvalidEmail       = "invalid email format"
	msgUserExists         = "an account with this email already exists"
	msgWeakPassword       = "password does not meet the requirements"
	msgUnavailable        = "service unavailable, try again later"

	msgProfileLoad   = "unable to load your profile"
	msgProfileCreate = "unable to create your profile"
)

var fallbackMessages = map[Op]string{
	OpInitialize:     "unable to restore your session",
	OpSignUp:         "unable to sign up",
	OpSignIn:         "unable to sign in",
	OpSignOut:        "unable to sign out",
	OpResetPassword:  "unable to send the password reset email",
	OpUpdatePassword: "unable to update your password",
}

// Message returns the user-facing text of r for op. It never returns an empty string.
func (r Reason) Message(op Op) string {
	switch r {
	case ReasonInvalidCredentials:
		return msgInvalidCredentials
	case ReasonEmailNotConfirmed:
		return msgEmailNotConfirmed
	case ReasonRateLimited:
		return msgRateLimited
	case ReasonInvalidEmail:
		return msgInvalidEmail
	case ReasonUserExists:
		return msgUserExists
	case ReasonWeakPassword:
		return msgWeakPassword
	case ReasonUnavailable:
		return msgUnavailable
	}
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "something went wrong"
}

// Expected reports whether r is an ordinary outcome of user input rather than a fault of the system.
func (r Reason) Expected() bool {
	switch r {
	case ReasonInvalidCredentials, ReasonEmailNotConfirmed, ReasonRateLimited,
		ReasonInvalidEmail, ReasonUserExists, ReasonWeakPassword:
		return true
	}
	return false
}

// signature identifies a Reason by provider code, HTTP status or message fragment.
type signature struct {
	reason    Reason
	codes     []identity.ErrorCode
	statuses  []int
	fragments []string // lower case
}

func (sig signature) matches(code identity.ErrorCode, status int, msg string) bool {
	for _, c := range sig.codes {
		if code != "" && c == code {
			return true
		}
	}
	for _, s := range sig.statuses {
		if status != 0 && s == status {
			return true
		}
	}
	for _, f := range sig.fragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// signatures are matched in priority order.
var signatures = []signature{
	{
		reason:    ReasonInvalidCredentials,
		codes:     []identity.ErrorCode{identity.CodeInvalidCredentials},
		fragments: []string{"invalid login credentials", "invalid credentials"},
	},
	{
		reason:    ReasonEmailNotConfirmed,
		codes:     []identity.ErrorCode{identity.CodeEmailNotConfirmed},
		fragments: []string{"email not confirmed"},
	},
	{
		reason:    ReasonRateLimited,
		codes:     []identity.ErrorCode{identity.CodeRateLimited},
		statuses:  []int{http.StatusTooManyRequests},
		fragments: []string{"rate limit", "too many requests"},
	},
	{
		reason:    ReasonInvalidEmail,
		fragments: []string{"unable to validate email address", "invalid format"},
	},
	{
		reason:    ReasonUserExists,
		codes:     []identity.ErrorCode{identity.CodeUserExists},
		fragments: []string{"user already registered"},
	},
	{
		reason:    ReasonWeakPassword,
		codes:     []identity.ErrorCode{identity.CodeWeakPassword},
		fragments: []string{"password should", "password must", "password cannot"},
	},
}

// Classify maps any failure to a Reason. It is total: unrecognized failures are ReasonUnknown.
func Classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}

	var (
		code   identity.ErrorCode
		status int
		msg    = strings.ToLower(err.Error())
	)
	idErr, isIDErr := identity.AsError(err)
	if isIDErr {
		code, status = idErr.Code, idErr.Status
		msg = strings.ToLower(idErr.Message)
	}

	for _, sig := range signatures {
		if sig.matches(code, status, msg) {
			return sig.reason
		}
	}

	if isIDErr && idErr.Temporary() {
		return ReasonUnavailable
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return ReasonUnavailable
	}
	return ReasonUnknown
}

// Error is returned by the operations that hand failures back to their callers.
// Its text is the classified user-facing message; the provider failure is kept for logs.
type Error struct {
	Op     Op
	Reason Reason
	Err    error
}

func (e *Error) Error() string { return e.Reason.Message(e.Op) }
func (e *Error) Unwrap() error { return e.Err }
