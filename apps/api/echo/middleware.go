package echoapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

// loadUserMiddleware attaches the user of the token claims to the context.
// When required, requests without claims or whose user is gone are rejected.
func loadUserMiddleware(svc *user.Service, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				if required {
					return errNoToken
				}
				return next(ctx)
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errTokenFailed
				}
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func roleMiddleware(allowed func(user.User) bool, denied error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !allowed(usr) {
				return denied
			}
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.User.IsAdmin, errNotAdmin)
}

// instructorMiddleware lets instructors and admins through.
func instructorMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.User.IsInstructor, errNotInstructor)
}

// rateLimitMiddleware limits the requests per client IP within scope.
// Limiter errors let the request through.
func rateLimitMiddleware(limiter core.RateLimiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil {
				return next(ctx)
			}
			ok, retryAfter, err := limiter.Allow(ctx.Request().Context(), scope+":"+ctx.RealIP())
			if err != nil {
				ctx.Logger().Warn(fmt.Sprintf("rate limiting %s: %+v", scope, err))
				return next(ctx)
			}
			if !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return ctx.JSON(http.StatusTooManyRequests, echo.Map{
					"message":    "Too many requests, please try again later",
					"retryAfter": secs,
				})
			}
			return next(ctx)
		}
	}
}

// with returns the middlewares of mws followed by more, leaving mws untouched.
// Public and authed routes share their groups: a group with middlewares would catch every path under its prefix.
func with(mws []echo.MiddlewareFunc, more ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return append(append(make([]echo.MiddlewareFunc, 0, len(mws)+len(more)), mws...), more...)
}
