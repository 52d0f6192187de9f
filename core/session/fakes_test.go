package session

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
)

type fakeClient struct {
	mu sync.Mutex

	current *identity.Session
	user    identity.User

	session      *identity.Session // returned by SignIn
	signUpResult identity.SignUpResult

	getSessionErr error
	getUserErr    error
	signInErr     error
	signUpErr     error
	signOutErr    error
	resetErr      error
	updateErr     error

	// when set, SignIn blocks until it is closed
	signInGate chan struct{}
	signInSeen chan struct{}

	// when set, SignUp & SignIn push a SIGNED_IN event like a real provider client
	emitSignedIn bool

	calls  map[string]int
	events chan identity.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls:  make(map[string]int),
		events: make(chan identity.Event, 8),
	}
}

func (c *fakeClient) called(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *fakeClient) record(op string) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

func (c *fakeClient) SignUp(_ context.Context, email, _ string, attrs identity.Attributes) (identity.SignUpResult, error) {
	c.record("SignUp")
	if c.signUpErr != nil {
		return identity.SignUpResult{}, c.signUpErr
	}
	res := c.signUpResult
	if res.User.Email == "" {
		res.User.Email = email
	}
	if res.User.Metadata == nil {
		res.User.Metadata = attrs.Map()
	}
	if c.emitSignedIn && res.Session != nil {
		c.events <- identity.Event{Kind: identity.EventSignedIn, Session: res.Session}
	}
	return res, nil
}

func (c *fakeClient) SignIn(ctx context.Context, _, _ string) (*identity.Session, error) {
	c.record("SignIn")
	if c.signInGate != nil {
		if c.signInSeen != nil {
			close(c.signInSeen)
		}
		select {
		case <-c.signInGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.signInErr != nil {
		return nil, c.signInErr
	}
	c.mu.Lock()
	c.current = c.session
	c.mu.Unlock()
	if c.emitSignedIn {
		c.events <- identity.Event{Kind: identity.EventSignedIn, Session: c.session}
	}
	return c.session, nil
}

func (c *fakeClient) SignOut(context.Context) error {
	c.record("SignOut")
	if c.signOutErr != nil {
		return c.signOutErr
	}
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) ResetPassword(context.Context, string) error {
	c.record("ResetPassword")
	return c.resetErr
}

func (c *fakeClient) UpdatePassword(context.Context, string) error {
	c.record("UpdatePassword")
	return c.updateErr
}

func (c *fakeClient) GetCurrentSession(context.Context) (*identity.Session, error) {
	c.record("GetCurrentSession")
	if c.getSessionErr != nil {
		return nil, c.getSessionErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, nil
}

func (c *fakeClient) GetCurrentUser(context.Context) (identity.User, error) {
	c.record("GetCurrentUser")
	if c.getUserErr != nil {
		return identity.User{}, c.getUserErr
	}
	return c.user, nil
}

func (c *fakeClient) Subscribe() (<-chan identity.Event, func()) {
	c.record("Subscribe")
	return c.events, func() {}
}

type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]profile.Profile
	inserted []profile.NewProfile

	findErr   error
	insertErr error
	// simulates a concurrent creation: Insert stores the profile, then reports a duplicate
	raceOnInsert bool
}

func newFakeStore(profiles ...profile.Profile) *fakeStore {
	s := &fakeStore{profiles: make(map[string]profile.Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, id string) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return profile.Profile{}, s.findErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) Insert(_ context.Context, np profile.NewProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, np)
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.profiles[np.ID]; ok {
		return profile.ErrDuplicate
	}
	now := time.Now().UTC()
	s.profiles[np.ID] = profile.Profile{
		ID:        np.ID,
		Email:     np.Email,
		FullName:  np.FullName,
		Role:      np.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.raceOnInsert {
		return profile.ErrDuplicate
	}
	return nil
}

func (s *fakeStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

type testLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *testLogger) Debug(string, ...interface{}) {}
func (l *testLogger) Info(string, ...interface{})  {}
func (l *testLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
func (l *testLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}
func (l *testLogger) Fatal(string, ...interface{}) {}

// count returns the number of warnings and errors logged.
func (l *testLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns) + len(l.errors)
}

func (l *testLogger) levels() (warns, errs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns), len(l.errors)
}

func testSession(id, email string) *identity.Session {
	return &identity.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         identity.User{ID: id, Email: email},
	}
}

func testProfile(id, email, role string) profile.Profile {
	return profile.Profile{ID: id, Email: email, Role: role}
}
