package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/core/user"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Message string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// providerError maps service errors to the provider error clients match on.
// Validation errors are translated first; errors it does not know are returned as is.
func providerError(err error, translator ut.Translator) error {
	err = core.TranslateValidationErrors(err, translator)
	switch errors.Cause(err) {
	case user.ErrInvalidCredentials:
		return identity.ErrInvalidCredentials
	case user.ErrEmailNotConfirmed:
		return identity.ErrEmailNotConfirmed
	case user.ErrEmailExists:
		return identity.ErrUserExists
	case user.ErrInvalidToken:
		return identity.ErrInvalidToken
	case user.ErrNotFound:
		return identity.ErrSessionNotFound
	case profile.ErrNotFound:
		return identity.ErrNotFound
	case profile.ErrDuplicate:
		return identity.ErrDuplicateKey
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		fields := vErr.FieldMap()
		if _, ok := fields["email"]; ok {
			return identity.ErrInvalidEmail
		}
		if msg, ok := fields["password"]; ok && msg != "this field is required" {
			return identity.WeakPassword(msg)
		}
	}
	return err
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code int
			body errorBody
		)

		var (
			idErr   *identity.Error
			httpErr *echo.HTTPError
			vErrs   validator.ValidationErrors
			vErr    *core.ValidationError
		)
		switch {
		case errors.As(err, &idErr):
			code = idErr.Status
			if code == 0 {
				code = http.StatusBadRequest
			}
			body = errorBody{Message: idErr.Message, Code: string(idErr.Code)}
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			body = errorBody{Message: http.StatusText(code)}
			if msg, ok := httpErr.Message.(string); ok {
				body.Message = msg
			}
			switch code {
			case http.StatusNotFound:
				body.Code = string(identity.CodeNotFound)
			case http.StatusForbidden:
				body.Code = string(identity.CodeForbidden)
			}
		case errors.As(err, &vErrs):
			if errors.As(core.TranslateValidationErrors(vErrs, translator), &vErr) {
				code, body = validationBody(vErr)
			}
		case errors.As(err, &vErr):
			code, body = validationBody(vErr)
		}

		if code == 0 { // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			body = errorBody{Message: msg, Code: string(identity.CodeUnexpected)}

			var usr identity.User
			if claims, ok := contextClaims(ctx); ok {
				usr.ID = claims.Subject
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			body.Message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func validationBody(vErr *core.ValidationError) (int, errorBody) {
	body := errorBody{
		Message: vErr.Error(),
		Code:    string(identity.CodeValidationFailed),
		Fields:  vErr.FieldMap(),
	}
	if len(body.Fields) == 0 {
		body.Fields = nil
	}
	return http.StatusBadRequest, body
}
