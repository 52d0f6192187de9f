package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core/identity"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "bearer "

	revokedKeyPrefix     = "revoked:"
	usedRefreshKeyPrefix = "refresh-used:"
	rateLimitKeyPrefix   = "ratelimit:"
)

func contextClaims(ctx echo.Context) (*Claims, bool) {
	claims, ok := ctx.Get(contextClaimsKey).(*Claims)
	return claims, ok
}

// requireSession authenticates the bearer access token of the request.
// Tokens of a revoked session are rejected.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
		if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
			return identity.ErrSessionNotFound
		}
		claims, err := s.tokens.parse(auth[len(bearerPrefix):], accessTokenType)
		if err != nil {
			return err
		}
		if err = s.checkRevoked(ctx, claims); err != nil {
			return err
		}
		ctx.Set(contextClaimsKey, claims)
		return next(ctx)
	}
}

func (s *Server) checkRevoked(ctx echo.Context, claims *Claims) error {
	revoked, err := s.deps.Cache.Exists(ctx.Request().Context(), revokedKeyPrefix+claims.SessionID)
	if err != nil {
		return errors.Wrap(err, "checking session revocation")
	}
	if revoked {
		return identity.ErrSessionNotFound
	}
	return nil
}

// revoke marks the session of claims as signed out until its refresh token expires.
func (s *Server) revoke(ctx echo.Context, claims *Claims) error {
	err := s.deps.Cache.Set(ctx.Request().Context(), revokedKeyPrefix+claims.SessionID, s.tokens.refreshTTL)
	return errors.Wrap(err, "revoking session")
}

// consumeRefresh marks the refresh token of claims as used. A token can be exchanged once:
// later exchanges, concurrent ones included, are reported as identity.ErrInvalidToken.
func (s *Server) consumeRefresh(ctx echo.Context, claims *Claims) error {
	n, err := s.deps.Cache.Incr(ctx.Request().Context(), usedRefreshKeyPrefix+claims.ID, s.tokens.refreshTTL)
	if err != nil {
		return errors.Wrap(err, "consuming refresh token")
	}
	if n > 1 {
		return identity.ErrInvalidToken
	}
	return nil
}

// rateLimit counts an attempt of op for key and fails once the configured limit is exceeded.
// Cache failures are logged and let the attempt through.
func (s *Server) rateLimit(ctx echo.Context, op, key string) error {
	limit := s.deps.Conf.Auth.SignInRateLimit
	if limit <= 0 || key == "" {
		return nil
	}
	cacheKey := fmt.Sprintf("%s%s:%s", rateLimitKeyPrefix, op, key)
	n, err := s.deps.Cache.Incr(ctx.Request().Context(), cacheKey, s.deps.Conf.Auth.SignInRateWindow)
	if err != nil {
		s.deps.Logger.Warn(fmt.Sprintf("echoapi.rateLimit(%s): %v", op, err), err)
		return nil
	}
	if n > int64(limit) {
		return identity.ErrRateLimited
	}
	return nil
}

func isRateLimited(err error) bool {
	idErr, ok := identity.AsError(err)
	return ok && idErr.Code == identity.CodeRateLimited
}
