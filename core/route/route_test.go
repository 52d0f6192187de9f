package route

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/session"
)

func TestAreaOf(t *testing.T) {
	tests := []struct {
		path string
		want Area
	}{
		{path: "/auth/login", want: AreaAuth},
		{path: "/auth/register", want: AreaAuth},
		{path: "auth/forgot-password", want: AreaAuth},
		{path: "/auth", want: AreaAuth},
		{path: "/auth?next=/", want: AreaAuth},
		{path: "/", want: AreaApp},
		{path: "", want: AreaApp},
		{path: "/messages", want: AreaApp},
		{path: "/authors", want: AreaApp},
		{path: "/students/auth", want: AreaApp},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, AreaOf(tt.path))
		})
	}
}

func TestDecide(t *testing.T) {
	// every (sessionPresent, area, loading) triple
	for _, present := range []bool{false, true} {
		for _, area := range []Area{AreaApp, AreaAuth} {
			for _, loading := range []bool{false, true} {
				want := TargetNone
				switch {
				case loading:
				case !present && area != AreaAuth:
					want = TargetLogin
				case present && area == AreaAuth:
					want = TargetHome
				}
				assert.Equal(t, want, Decide(present, area, loading), "present=%v area=%s loading=%v", present, area, loading)
			}
		}
	}

	assert.Equal(t, TargetLogin, Decide(false, AreaApp, false))
	assert.Equal(t, TargetHome, Decide(true, AreaAuth, false))
	assert.Equal(t, TargetNone, Decide(false, AreaAuth, false))
	assert.Equal(t, TargetNone, Decide(true, AreaApp, false))
}

func TestTarget_Path(t *testing.T) {
	assert.Equal(t, "", TargetNone.Path())
	assert.Equal(t, "/auth/login", TargetLogin.Path())
	assert.Equal(t, "/", TargetHome.Path())
}

type fakeNavigator struct {
	mu       sync.Mutex
	path     string
	replaced []string
}

func (n *fakeNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *fakeNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.replaced = append(n.replaced, path)
}

func TestGuard_Check(t *testing.T) {
	sess := &identity.Session{User: identity.User{ID: "u1"}}

	tests := []struct {
		name     string
		path     string
		state    session.State
		want     Target
		wantPath string
	}{
		{name: "loading", path: "/messages", state: session.State{Loading: true}, want: TargetNone, wantPath: "/messages"},
		{name: "anonymous in app", path: "/messages", state: session.State{}, want: TargetLogin, wantPath: "/auth/login"},
		{name: "anonymous in auth", path: "/auth/register", state: session.State{}, want: TargetNone, wantPath: "/auth/register"},
		{name: "signed in on login", path: "/auth/login", state: session.State{Session: sess}, want: TargetHome, wantPath: "/"},
		{name: "signed in in app", path: "/attendance", state: session.State{Session: sess}, want: TargetNone, wantPath: "/attendance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &fakeNavigator{path: tt.path}
			g := NewGuard(nav)

			assert.Equal(t, tt.want, g.Check(tt.state))
			assert.Equal(t, tt.wantPath, nav.CurrentPath())
		})
	}
}

func TestGuard_Run(t *testing.T) {
	sess := &identity.Session{User: identity.User{ID: "u1"}}
	nav := &fakeNavigator{path: "/posts"}
	g := NewGuard(nav)

	states := make(chan session.State)
	done := make(chan struct{})
	go func() {
		g.Run(context.Background(), states)
		close(done)
	}()

	states <- session.State{Loading: true} // initializing: stay
	states <- session.State{}              // no session: to login
	states <- session.State{Loading: true} // signing in
	states <- session.State{Session: sess} // signed in: to home
	close(states)
	<-done

	assert.Equal(t, []string{"/auth/login", "/"}, nav.replaced)
}

func TestGuard_Run_cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewGuard(&fakeNavigator{}).Run(ctx, make(chan session.State))
		close(done)
	}()
	cancel()
	<-done
}
