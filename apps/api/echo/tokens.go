package echoapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/user"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"
	tokenTypeBearer  = "bearer"
)

// Claims represents the authorization claims transmitted via a JWT.
// Access and refresh tokens of a session share the same SessionID.
// Refresh tokens carry a unique ID so each can be exchanged only once.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	Type      string `json:"typ,omitempty"`
}

type tokenIssuer struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		accessTTL:  conf.Server.JWTExpirationDelta,
		refreshTTL: conf.Server.JWTRefreshExpirationDelta,
		nowFunc:    time.Now,
	}
}

func (ti *tokenIssuer) claims(usr user.User, sid, typ string, ttl time.Duration) *Claims {
	now := ti.nowFunc()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:     usr.Email,
		Role:      usr.Role,
		SessionID: sid,
		Type:      typ,
	}
}

func (ti *tokenIssuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// issue signs a new access/refresh token pair for usr. An empty sid starts a new session.
func (ti *tokenIssuer) issue(usr user.User, sid string) (*identity.Session, error) {
	if sid == "" {
		sid = uuid.NewString()
	}
	access := ti.claims(usr, sid, accessTokenType, ti.accessTTL)
	accessToken, err := ti.sign(access)
	if err != nil {
		return nil, err
	}
	refresh := ti.claims(usr, sid, refreshTokenType, ti.refreshTTL)
	refresh.ID = uuid.NewString()
	refreshToken, err := ti.sign(refresh)
	if err != nil {
		return nil, err
	}
	return &identity.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(ti.accessTTL / time.Second),
		ExpiresAt:    access.ExpiresAt.Time.UTC(),
		User:         usr.Identity(),
	}, nil
}

// parse verifies a token of the given type and returns its claims.
// Any failure is reported as identity.ErrInvalidToken.
func (ti *tokenIssuer) parse(tokenStr, typ string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return ti.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Type != typ || claims.SessionID == "" || claims.Subject == "" {
		return nil, identity.ErrInvalidToken
	}
	if typ == refreshTokenType && claims.ID == "" {
		return nil, identity.ErrInvalidToken
	}
	return claims, nil
}
