package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

var nowFunc = time.Now // mockable

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Limiter        core.RateLimiter
		DisableReqLogs bool

		UserSvc       *user.Service
		CourseSvc     *course.Service
		BlogSvc       *blog.Service
		CategorySvc   *category.Service
		EnrollmentSvc *enrollment.Service
	}

	Server struct {
		opts     Options
		app      *echo.Echo
		jwt      jwtAuth
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		jwt:      newJWTAuth(opts.Conf),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	api := s.app.Group("/api")
	api.GET("/health", health)

	authed := s.authRequired()
	optional := s.authOptional()
	limit := rateLimitMiddleware(s.opts.Limiter, "auth")

	registerAuthAPI(api, authed, limit, s.jwt, s.opts.UserSvc, s.opts.CourseSvc, s.opts.EnrollmentSvc, s.opts.Validate)
	registerUserAPI(api, authed, s.opts.UserSvc, s.opts.Validate)
	registerCourseAPI(api, authed, optional, s.opts.CourseSvc, s.opts.Validate)
	registerBlogAPI(api, authed, optional, s.opts.BlogSvc, s.opts.Validate)
	registerCategoryAPI(api, authed, s.opts.CategorySvc, s.opts.CourseSvc, s.opts.Validate)
	registerEnrollmentAPI(api, authed, s.opts.EnrollmentSvc, s.opts.Validate)
}

// authRequired rejects requests without a valid token of an existing user.
func (s *Server) authRequired() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{s.jwt.middleware(false), loadUserMiddleware(s.opts.UserSvc, true)}
}

// authOptional loads the user when a token is sent.
func (s *Server) authOptional() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{s.jwt.middleware(true), loadUserMiddleware(s.opts.UserSvc, false)}
}

// Start listens for requests and for the termination signals.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks for a graceful shutdown, as a SIGTERM would.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status":    "OK",
		"message":   "E-learning backend is running",
		"timestamp": nowFunc().UTC(),
	})
}
