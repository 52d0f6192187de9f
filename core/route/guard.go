package route

import (
	"context"

	"github.com/trezcool/pinkconnect/core/session"
)

// Navigator is the navigation surface of a portal front end.
type Navigator interface {
	CurrentPath() string
	// Replace navigates to path without keeping the current one in history.
	Replace(path string)
}

// Guard redirects a Navigator according to the auth state.
type Guard struct {
	nav Navigator
}

func NewGuard(nav Navigator) *Guard {
	return &Guard{nav: nav}
}

// Check evaluates the redirect rule once for st, navigating if needed.
func (g *Guard) Check(st session.State) Target {
	target := Decide(st.Authenticated(), AreaOf(g.nav.CurrentPath()), st.Loading)
	if target != TargetNone {
		g.nav.Replace(target.Path())
	}
	return target
}

// Run checks every state received until states is closed or ctx is done.
func (g *Guard) Run(ctx context.Context, states <-chan session.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			g.Check(st)
		}
	}
}
