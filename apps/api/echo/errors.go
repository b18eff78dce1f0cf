package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

const validationFailedMsg = "validation failed"

var (
	errNoToken            = echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	errTokenFailed        = echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, token failed")
	errNotAdmin           = echo.NewHTTPError(http.StatusForbidden, "Not authorized as admin")
	errNotInstructor      = echo.NewHTTPError(http.StatusForbidden, "Not authorized as instructor")
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "Refresh has expired")
	errRouteNotFound      = echo.NewHTTPError(http.StatusNotFound, "Route not found")

	errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

	// domainErrors maps the domain sentinel errors to their HTTP status.
	// A slice and not a map: some error types (validator.ValidationErrors) are not hashable.
	domainErrors = []struct {
		err  error
		code int
	}{
		{user.ErrNotFound, http.StatusNotFound},
		{course.ErrNotFound, http.StatusNotFound},
		{course.ErrNotAuthorized, http.StatusForbidden},
		{course.ErrOwnCourseReview, http.StatusForbidden},
		{blog.ErrNotFound, http.StatusNotFound},
		{blog.ErrNotAuthorized, http.StatusForbidden},
		{category.ErrNotFound, http.StatusNotFound},
		{enrollment.ErrNotFound, http.StatusNotFound},
		{enrollment.ErrNotAuthorized, http.StatusForbidden},
	}
)

func domainErrorCode(err error) (int, bool) {
	for _, de := range domainErrors {
		if err == de.err {
			return de.code, true
		}
	}
	return 0, false
}

// httpErrorMessage maps the errors of the echo middlewares to the messages of our API.
func httpErrorMessage(herr *echo.HTTPError) (int, string) {
	switch {
	case herr == middleware.ErrJWTMissing:
		herr = errNoToken
	case herr == echo.ErrNotFound:
		herr = errRouteNotFound
	case herr.Code == http.StatusUnauthorized && herr.Internal != nil: // invalid or expired jwt
		herr = errTokenFailed
	}
	if msg, ok := herr.Message.(string); ok {
		return herr.Code, msg
	}
	return herr.Code, http.StatusText(herr.Code)
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		body := make(echo.Map, 2)
		cause := errors.Cause(err)

		if c, ok := domainErrorCode(cause); ok {
			code = c
			body["message"] = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				var msg string
				code, msg = httpErrorMessage(origErr)
				body["message"] = msg
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				body["message"] = validationFailedMsg
				body["errors"] = fldErrs
			case *core.ValidationError:
				code = http.StatusBadRequest
				if len(origErr.Fields) > 0 {
					body["message"] = validationFailedMsg
					body["errors"] = origErr.FieldMap()
				} else {
					body["message"] = origErr.Error()
				}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				body["message"] = msg
				if ctx.Echo().Debug {
					body["message"] = err.Error()
				}

				args := []interface{}{errors.Wrap(err, msg)}
				if usr, uErr := getContextUser(ctx); uErr == nil {
					args = append(args, usr)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
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
