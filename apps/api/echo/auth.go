package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/user"
)

// auth operations, as counted by the metrics
const (
	opSignUp   = "signup"
	opVerify   = "verify"
	opPassword = "password"
	opRefresh  = "refresh_token"
	opLogout   = "logout"
	opRecover  = "recover"
	opReset    = "reset"
	opUpdate   = "update_user"
)

var (
	errUnsupportedGrant   = identity.NewError(http.StatusBadRequest, identity.CodeValidationFailed, "Unsupported grant type")
	errRedirectNotAllowed = identity.NewError(http.StatusBadRequest, identity.CodeValidationFailed, "Unable to validate redirect_to: url not allowed")
)

type (
	signUpRequest struct {
		Email    string              `json:"email"`
		Password string              `json:"password"`
		Data     identity.Attributes `json:"data"`
	}

	tokenRequest struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}

	verifyRequest struct {
		Type  string `json:"type"`
		Token string `json:"token"`
		UID   string `json:"uid"`
	}

	recoverRequest struct {
		Email      string `json:"email"`
		RedirectTo string `json:"redirect_to"`
	}

	updateUserRequest struct {
		Password string `json:"password"`
	}
)

type authApi struct {
	*Server
	svc        *user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthAPI(g *echo.Group, s *Server) {
	api := authApi{
		Server:     s,
		svc:        s.deps.UserSvc,
		validate:   s.deps.Validate,
		translator: s.deps.Translator,
	}

	// un-authed endpoints
	g.POST("/signup", api.signUp)
	g.POST("/verify", api.verify)
	g.POST("/token", api.token)
	g.POST("/recover", api.recover)
	g.POST("/reset", api.reset)

	// authed endpoints
	g.POST("/logout", api.logout, s.requireSession)
	g.GET("/user", api.getUser, s.requireSession)
	g.PUT("/user", api.updateUser, s.requireSession)
}

func (api *authApi) fail(op string, err error) error {
	err = providerError(err, api.translator)
	api.metrics.attempt(op, err)
	return err
}

// checkEmail cleans email and reports a malformed one the way the provider does.
func (api *authApi) checkEmail(email string) (string, error) {
	email = core.CleanString(email, true /* lower */)
	if err := api.validate.Var(email, "required,email"); err != nil {
		return "", identity.ErrInvalidEmail
	}
	return email, nil
}

// Handlers

func (api *authApi) signUp(ctx echo.Context) error {
	var req signUpRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to signUpRequest")
	}

	usr, err := api.svc.SignUp(ctx.Request().Context(), user.NewUser{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.Data.FullName,
		Role:     req.Data.Role,
	})
	if err != nil {
		return api.fail(opSignUp, err)
	}

	res := identity.SignUpResult{User: usr.Identity()}
	if usr.IsConfirmed() {
		if res.Session, err = api.tokens.issue(usr, ""); err != nil {
			return errors.Wrap(err, "issuing session")
		}
	}
	api.metrics.attempt(opSignUp, nil)
	return ctx.JSON(http.StatusOK, res)
}

// verify confirms a sign-up and starts a session.
func (api *authApi) verify(ctx echo.Context) error {
	var req verifyRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to verifyRequest")
	}
	if req.Type != "" && req.Type != "signup" {
		return api.fail(opVerify, errUnsupportedGrant)
	}

	usr, err := api.svc.ConfirmEmail(ctx.Request().Context(), user.ConfirmEmail{UID: req.UID, Token: req.Token})
	if err != nil {
		return api.fail(opVerify, err)
	}
	sess, err := api.tokens.issue(usr, "")
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	api.metrics.attempt(opVerify, nil)
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) token(ctx echo.Context) error {
	var req tokenRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to tokenRequest")
	}

	switch ctx.QueryParam("grant_type") {
	case "password":
		return api.passwordGrant(ctx, req)
	case "refresh_token":
		return api.refreshGrant(ctx, req)
	}
	return errUnsupportedGrant
}

func (api *authApi) passwordGrant(ctx echo.Context, req tokenRequest) error {
	email, err := api.checkEmail(req.Email)
	if err != nil {
		return api.fail(opPassword, err)
	}
	if err = api.rateLimit(ctx, opPassword, email); err != nil {
		return api.fail(opPassword, err)
	}
	if req.Password == "" {
		return api.fail(opPassword, identity.ErrInvalidCredentials)
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), email, req.Password)
	if err != nil {
		return api.fail(opPassword, err)
	}
	sess, err := api.tokens.issue(usr, "")
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	api.metrics.attempt(opPassword, nil)
	return ctx.JSON(http.StatusOK, sess)
}

// refreshGrant issues a new token pair within the session of the refresh token.
func (api *authApi) refreshGrant(ctx echo.Context, req tokenRequest) error {
	claims, err := api.tokens.parse(req.RefreshToken, refreshTokenType)
	if err != nil {
		return api.fail(opRefresh, err)
	}
	if err = api.checkRevoked(ctx, claims); err != nil {
		return api.fail(opRefresh, err)
	}
	if err = api.consumeRefresh(ctx, claims); err != nil {
		return api.fail(opRefresh, err)
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return api.fail(opRefresh, identity.ErrInvalidToken)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	sess, err := api.tokens.issue(usr, claims.SessionID)
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	api.metrics.attempt(opRefresh, nil)
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) logout(ctx echo.Context) error {
	claims, _ := contextClaims(ctx)
	if err := api.revoke(ctx, claims); err != nil {
		return err
	}
	api.metrics.attempt(opLogout, nil)
	return ctx.NoContent(http.StatusNoContent)
}

// recover mails a password reset link. It answers the same whether the account exists or not.
func (api *authApi) recover(ctx echo.Context) error {
	var req recoverRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to recoverRequest")
	}
	email, err := api.checkEmail(req.Email)
	if err != nil {
		return api.fail(opRecover, err)
	}
	if err = api.rateLimit(ctx, opRecover, email); err != nil {
		return api.fail(opRecover, err)
	}

	redirectTo := req.RedirectTo
	if redirectTo == "" {
		redirectTo = api.deps.Conf.FrontendBaseURL + "auth/reset-password"
	} else if !api.deps.Conf.AllowsRedirect(redirectTo) {
		return api.fail(opRecover, errRedirectNotAllowed)
	}
	err = api.svc.RequestPasswordReset(ctx.Request().Context(), email, redirectTo)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "requesting password reset")
	}
	api.metrics.attempt(opRecover, nil)
	return ctx.JSON(http.StatusOK, echo.Map{})
}

func (api *authApi) reset(ctx echo.Context) error {
	var req user.ResetUserPassword
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	usr, err := api.svc.ResetPassword(ctx.Request().Context(), req)
	if err != nil {
		return api.fail(opReset, err)
	}
	api.metrics.attempt(opReset, nil)
	return ctx.JSON(http.StatusOK, usr.Identity())
}

func (api *authApi) getUser(ctx echo.Context) error {
	claims, _ := contextClaims(ctx)
	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return providerError(err, api.translator)
	}
	return ctx.JSON(http.StatusOK, usr.Identity())
}

func (api *authApi) updateUser(ctx echo.Context) error {
	var req updateUserRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to updateUserRequest")
	}
	claims, _ := contextClaims(ctx)
	usr, err := api.svc.UpdatePassword(ctx.Request().Context(), claims.Subject, req.Password)
	if err != nil {
		return api.fail(opUpdate, err)
	}
	api.metrics.attempt(opUpdate, nil)
	return ctx.JSON(http.StatusOK, usr.Identity())
}
