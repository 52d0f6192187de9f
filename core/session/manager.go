// Package session keeps a portal client's auth state (session, profile, loading, error)
// in sync with the identity provider.
//
// A Manager is created once at start up and handed to whatever renders the portal.
// Every change of State goes through a single transition function, whether it comes
// from an explicit call (SignIn, SignOut...) or from an auth event pushed by the provider.
package session

import (
	"context"
	"fmt"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
)

type Manager struct {
	client     identity.Client
	profiles   profile.Store
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator

	mu          sync.Mutex
	state       State
	inflight    int
	initialized bool
	// explicit sign-ins in flight; they adopt their session themselves
	signingIn   int
	watchers    map[int]chan State
	nextWatcher int

	ctx         context.Context // scope of event-driven work
	cancel      context.CancelFunc
	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
	done        chan struct{}
}

func NewManager(client identity.Client, profiles profile.Store, logger core.Logger) *Manager {
	validate, translator := core.NewValidator()
	profile.InitValidators(validate, translator)

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:     client,
		profiles:   profiles,
		logger:     logger,
		validate:   validate,
		translator: translator,
		state:      State{Loading: true},
		inflight:   1, // the initial session check
		watchers:   make(map[int]chan State),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start subscribes to the provider's auth events and checks for a current session.
// It returns once the initial check has settled. Calling it again is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		events, unsubscribe := m.client.Subscribe()
		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()

		go m.listen(events)
		m.initialize(ctx)
	})
}

// Close stops listening to auth events and closes every Watch channel.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		unsubscribe := m.unsubscribe
		m.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		m.cancel()

		started := true
		m.startOnce.Do(func() { started = false })
		if started {
			<-m.done
		}

		m.mu.Lock()
		for id, ch := range m.watchers {
			delete(m.watchers, id)
			close(ch)
		}
		m.mu.Unlock()
	})
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !m.initialized:
		return PhaseInitializing
	case m.inflight > 0:
		return PhaseAuthenticating
	case m.state.Session != nil:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Watch returns a channel receiving the current state, then every state replacement.
// A slow reader only misses intermediate states, never the latest one.
func (m *Manager) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	ch <- m.state
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
	}
}

// update is the single state transition: it applies fn to a copy of the state,
// adjusts the in-flight count, restores the invariants and publishes the result.
func (m *Manager) update(inflightDelta int, fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inflight += inflightDelta
	if m.inflight < 0 {
		m.inflight = 0
	}

	next := m.state
	if fn != nil {
		fn(&next)
	}
	next.Loading = m.inflight > 0
	if next.Session == nil {
		next.Profile = nil
	}
	m.state = next

	for _, ch := range m.watchers {
		select {
		case ch <- next:
		default:
			// drop the stale state the reader has not consumed yet
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

// begin marks an operation in flight and clears the previous error.
func (m *Manager) begin() {
	m.update(1, func(s *State) { s.Error = "" })
}

func (m *Manager) end() {
	m.update(-1, nil)
}

// fail logs err, stores its classified message and returns it as an *Error.
// Expected failures are logged as warnings so they do not reach the error tracker.
func (m *Manager) fail(op Op, err error) error {
	reason := Classify(err)
	msg := fmt.Sprintf("session: %s failed: %v", op, err)
	if reason.Expected() {
		m.logger.Warn(msg, err)
	} else {
		m.logger.Error(msg, err)
	}
	m.update(0, func(s *State) { s.Error = reason.Message(op) })
	return &Error{Op: op, Reason: reason, Err: err}
}

// ClearError forgets the last failure message.
func (m *Manager) ClearError() {
	m.update(0, func(s *State) { s.Error = "" })
}

func (m *Manager) initialize(ctx context.Context) {
	defer m.update(-1, func(*State) { m.initialized = true })

	sess, err := m.client.GetCurrentSession(ctx)
	if err != nil {
		// nothing actionable yet: start unauthenticated
		m.logger.Warn(fmt.Sprintf("session: checking current session: %v", err), err)
		return
	}
	if sess != nil {
		m.adoptSession(ctx, sess, nil)
	}
}

func (m *Manager) listen(events <-chan identity.Event) {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev identity.Event) {
	m.logger.Debug(fmt.Sprintf("session: auth event %s", ev.Kind))
	if ev.Kind == identity.EventSignedIn && m.isSigningIn() {
		return
	}
	if ev.Session == nil {
		m.clearSession()
		return
	}
	m.adoptSession(m.ctx, ev.Session, nil)
}

// trackSignIn marks an explicit sign-in (or sign-up) in flight until the returned func is called.
func (m *Manager) trackSignIn() func() {
	m.mu.Lock()
	m.signingIn++
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.signingIn--
		m.mu.Unlock()
	}
}

func (m *Manager) isSigningIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signingIn > 0
}

func (m *Manager) clearSession() {
	m.update(0, func(s *State) {
		s.Session = nil
		s.Profile = nil
	})
}

// adoptSession makes sess the current session and resolves its profile, unless the profile
// of the same subject is already known (e.g. on token refresh).
// seed, when set, is used to create a missing profile instead of the defaults.
func (m *Manager) adoptSession(ctx context.Context, sess *identity.Session, seed *profile.NewProfile) {
	var known bool
	m.update(0, func(s *State) {
		sameSubject := s.Session != nil && s.Session.SubjectID() == sess.SubjectID()
		known = sameSubject && s.Profile != nil
		if !sameSubject {
			s.Profile = nil
		}
		s.Session = sess
	})
	if known {
		return
	}
	m.resolveProfile(ctx, sess, seed)
}

// resolveProfile fetches the profile of sess's subject, creating it on first sign-in.
// Failures are logged and surfaced through State.Error; the session is kept.
func (m *Manager) resolveProfile(ctx context.Context, sess *identity.Session, seed *profile.NewProfile) {
	m.update(0, func(s *State) { s.Error = "" })

	subject := sess.SubjectID()
	prof, msg, err := m.fetchOrCreateProfile(ctx, sess, seed)
	if err != nil {
		m.logger.Error(fmt.Sprintf("session: resolving profile of %s: %v", subject, err), err)
		m.update(0, func(s *State) {
			if s.Session.SubjectID() == subject {
				s.Error = msg
			}
		})
		return
	}

	m.update(0, func(s *State) {
		// the session may have been replaced or cleared meanwhile
		if s.Session != nil && s.Session.SubjectID() == subject {
			s.Profile = &prof
		}
	})
}

// fetchOrCreateProfile returns the subject's profile, or the user-facing message to show on failure.
func (m *Manager) fetchOrCreateProfile(ctx context.Context, sess *identity.Session, seed *profile.NewProfile) (profile.Profile, string, error) {
	id := sess.SubjectID()

	prof, err := m.profiles.FindByID(ctx, id)
	if err == nil {
		return prof, "", nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return profile.Profile{}, msgProfileLoad, errors.Wrap(err, "finding profile")
	}

	var np profile.NewProfile
	if seed != nil {
		np = *seed
	} else {
		usr, err := m.client.GetCurrentUser(ctx)
		if err != nil {
			return profile.Profile{}, msgProfileCreate, errors.Wrap(err, "getting current user")
		}
		// the attributes chosen at sign-up survive an email confirmation in the user metadata
		attrs := identity.AttributesFrom(usr.Metadata)
		np = profile.NewProfile{ID: id, Email: usr.Email, FullName: core.StringPtr(core.CleanString(attrs.FullName)), Role: profile.DefaultRole}
		if role := cleanRole(attrs.Role); profile.ValidRole(role) {
			np.Role = role
		}
	}
	np.ID = id
	if np.Role == "" {
		np.Role = profile.DefaultRole
	}

	if err = m.profiles.Insert(ctx, np); err != nil && !errors.Is(err, profile.ErrDuplicate) {
		return profile.Profile{}, msgProfileCreate, errors.Wrap(err, "inserting profile")
	}

	if prof, err = m.profiles.FindByID(ctx, id); err != nil {
		return profile.Profile{}, msgProfileLoad, errors.Wrap(err, "finding created profile")
	}
	return prof, "", nil
}

// SignUp registers a new account. When the provider activates the session right away,
// the profile is created from attrs and the state becomes authenticated; when an email
// confirmation is pending, the state stays unauthenticated without error.
func (m *Manager) SignUp(ctx context.Context, email, password string, attrs identity.Attributes) error {
	form := signUpForm{Email: cleanEmail(email), Password: password, FullName: core.CleanString(attrs.FullName), Role: core.CleanString(attrs.Role, true)}
	if err := m.check(form); err != nil {
		return err
	}
	attrs = identity.Attributes{FullName: form.FullName, Role: cleanRole(form.Role)}

	m.begin()
	defer m.end()
	defer m.trackSignIn()()

	res, err := m.client.SignUp(ctx, form.Email, password, attrs)
	if err != nil {
		return m.fail(OpSignUp, err)
	}
	if !res.SessionPresent() {
		return nil
	}

	email = res.User.Email
	if email == "" {
		email = res.Session.User.Email
	}
	m.adoptSession(ctx, res.Session, &profile.NewProfile{
		ID:       res.Session.SubjectID(),
		Email:    email,
		FullName: core.StringPtr(attrs.FullName),
		Role:     attrs.Role,
	})
	return nil
}

// SignIn authenticates with email & password. On failure the classified error is stored
// in the state and returned.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	form := credentialsForm{Email: cleanEmail(email), Password: password}
	if err := m.check(form); err != nil {
		return err
	}

	m.begin()
	defer m.end()
	defer m.trackSignIn()()

	sess, err := m.client.SignIn(ctx, form.Email, password)
	if err != nil {
		return m.fail(OpSignIn, err)
	}
	if sess == nil {
		return m.fail(OpSignIn, identity.ErrSessionNotFound)
	}
	m.adoptSession(ctx, sess, nil)
	return nil
}

// SignOut ends the session. A failed sign-out keeps the session and only sets the error.
func (m *Manager) SignOut(ctx context.Context) error {
	m.begin()
	defer m.end()

	if err := m.client.SignOut(ctx); err != nil {
		_ = m.fail(OpSignOut, err)
		return nil
	}
	m.clearSession()
	return nil
}

// ResetPassword asks the provider to mail a password reset link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	form := emailForm{Email: cleanEmail(email)}
	if err := m.check(form); err != nil {
		return err
	}

	m.begin()
	defer m.end()

	if err := m.client.ResetPassword(ctx, form.Email); err != nil {
		_ = m.fail(OpResetPassword, err)
	}
	return nil
}

// UpdatePassword changes the password of the signed in user.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	form := passwordForm{Password: newPassword}
	if err := m.check(form); err != nil {
		return err
	}

	m.begin()
	defer m.end()

	if err := m.client.UpdatePassword(ctx, newPassword); err != nil {
		_ = m.fail(OpUpdatePassword, err)
	}
	return nil
}

// IsOpError reports whether err was returned by a failed provider call (as opposed to validation).
func IsOpError(err error) bool {
	var opErr *Error
	return errors.As(err, &opErr)
}
