// Package identitysvc talks to the identity provider API on behalf of portal clients.
package identitysvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/storage/local"
)

const (
	// SessionKey is the local storage key of the persisted session.
	SessionKey = "auth.session"

	defaultTimeout = 10 * time.Second
	refreshLeeway  = 30 * time.Second
	eventBuffer    = 8
	maxErrorBody   = 1 << 20
)

// Client is the HTTP identity.Client. It keeps the current session in memory and in a local.Storage.
type Client struct {
	baseURL    string
	http       *http.Client
	storage    local.Storage
	logger     core.Logger
	redirectTo string
	nowFunc    func() time.Time

	mu      sync.Mutex
	session *identity.Session
	loaded  bool

	refresh singleflight.Group

	subMu   sync.Mutex
	subs    map[int]chan identity.Event
	nextSub int
}

var _ identity.Client = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRedirectTo sets the link password reset mails point at.
func WithRedirectTo(url string) Option {
	return func(c *Client) { c.redirectTo = url }
}

func NewClient(baseURL string, storage local.Storage, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		storage: storage,
		logger:  nopLogger{},
		nowFunc: time.Now,
		subs:    make(map[int]chan identity.Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type (
	signUpPayload struct {
		Email    string              `json:"email"`
		Password string              `json:"password"`
		Data     identity.Attributes `json:"data"`
	}

	credentialsPayload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	refreshPayload struct {
		RefreshToken string `json:"refresh_token"`
	}

	recoverPayload struct {
		Email      string `json:"email"`
		RedirectTo string `json:"redirect_to,omitempty"`
	}

	passwordPayload struct {
		Password string `json:"password"`
	}
)

func (c *Client) SignUp(ctx context.Context, email, password string, attrs identity.Attributes) (identity.SignUpResult, error) {
	var res identity.SignUpResult
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", signUpPayload{email, password, attrs}, &res)
	if err != nil {
		return identity.SignUpResult{}, err
	}
	if res.Session != nil {
		c.setSession(ctx, res.Session, identity.EventSignedIn)
	}
	return res, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	sess := new(identity.Session)
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentialsPayload{email, password}, sess)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, sess, identity.EventSignedIn)
	return sess, nil
}

// SignOut revokes the session remotely, then forgets it.
// A session the provider no longer knows is forgotten all the same; other failures keep it.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess != nil {
		err = c.do(ctx, http.MethodPost, "/auth/v1/logout", sess.AccessToken, nil, nil)
		if err != nil && !isRejected(err) {
			return err
		}
	}
	c.setSession(ctx, nil, identity.EventSignedOut)
	return nil
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", "", recoverPayload{email, c.redirectTo}, nil)
}

func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	sess, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	var usr identity.User
	if err = c.do(ctx, http.MethodPut, "/auth/v1/user", sess.AccessToken, passwordPayload{newPassword}, &usr); err != nil {
		return err
	}

	updated := *sess
	updated.User = usr
	c.setSession(ctx, &updated, identity.EventUserUpdated)
	return nil
}

// GetCurrentSession returns the stored session, refreshed when its access token expired.
// It returns nil when signed out, or when the provider rejected the refresh.
func (c *Client) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	sess, err := c.loadSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !sess.Expired(c.nowFunc(), refreshLeeway) {
		return sess, nil
	}

	sess, err = c.refreshSession(ctx, sess)
	if err != nil {
		if isRejected(err) {
			c.setSession(ctx, nil, identity.EventSignedOut)
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (c *Client) GetCurrentUser(ctx context.Context) (identity.User, error) {
	sess, err := c.requireSession(ctx)
	if err != nil {
		return identity.User{}, err
	}
	var usr identity.User
	if err = c.do(ctx, http.MethodGet, "/auth/v1/user", sess.AccessToken, nil, &usr); err != nil {
		return identity.User{}, err
	}
	return usr, nil
}

// Subscribe returns a channel receiving every session change.
// Events are dropped for subscribers that fall behind.
func (c *Client) Subscribe() (<-chan identity.Event, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan identity.Event, eventBuffer)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Client) broadcast(evt identity.Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- evt:
		default:
			c.logger.Warn(fmt.Sprintf("identitysvc: dropped %s event", evt.Kind))
		}
	}
}

// AccessToken returns a valid access token of the current session.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	sess, err := c.requireSession(ctx)
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (c *Client) requireSession(ctx context.Context) (*identity.Session, error) {
	sess, err := c.GetCurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, identity.ErrSessionNotFound
	}
	return sess, nil
}

// refreshSession exchanges the refresh token of sess. Concurrent callers share one request.
func (c *Client) refreshSession(ctx context.Context, sess *identity.Session) (*identity.Session, error) {
	v, err, _ := c.refresh.Do(sess.RefreshToken, func() (interface{}, error) {
		fresh := new(identity.Session)
		err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", refreshPayload{sess.RefreshToken}, fresh)
		if err != nil {
			return nil, err
		}
		c.setSession(ctx, fresh, identity.EventTokenRefreshed)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*identity.Session), nil
}

// loadSession restores the persisted session on first use.
func (c *Client) loadSession(ctx context.Context) (*identity.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.session, nil
	}

	data, err := c.storage.Get(ctx, SessionKey)
	switch {
	case errors.Cause(err) == local.ErrNotFound:
	case err != nil:
		return nil, errors.Wrap(err, "loading session")
	default:
		sess := new(identity.Session)
		if err = json.Unmarshal(data, sess); err != nil || sess.AccessToken == "" {
			c.logger.Warn("identitysvc: discarding unreadable stored session", err)
			_ = c.storage.Delete(ctx, SessionKey)
		} else {
			c.session = sess
		}
	}
	c.loaded = true
	return c.session, nil
}

// setSession replaces the current session, persists it and notifies subscribers.
// Persistence failures are logged; the session stays usable in memory.
func (c *Client) setSession(ctx context.Context, sess *identity.Session, kind identity.EventKind) {
	c.mu.Lock()
	c.session = sess
	c.loaded = true

	var err error
	if sess == nil {
		err = c.storage.Delete(ctx, SessionKey)
	} else {
		var data []byte
		if data, err = json.Marshal(sess); err == nil {
			err = c.storage.Set(ctx, SessionKey, data)
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn(fmt.Sprintf("identitysvc: persisting session: %v", err), err)
	}
	c.broadcast(identity.Event{Kind: kind, Session: sess})
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return identity.NewError(0, identity.CodeNetwork, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return identity.NewError(resp.StatusCode, identity.CodeUnexpected, "malformed response: "+err.Error())
	}
	return nil
}

func decodeError(resp *http.Response) error {
	idErr := new(identity.Error)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, idErr); err != nil || idErr.Message == "" {
		idErr.Message = http.StatusText(resp.StatusCode)
	}
	idErr.Status = resp.StatusCode
	if idErr.Code == "" {
		idErr.Code = identity.CodeUnexpected
	}
	return idErr
}

// isRejected reports whether the provider refused the session itself.
func isRejected(err error) bool {
	idErr, ok := identity.AsError(err)
	if !ok {
		return false
	}
	switch idErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
