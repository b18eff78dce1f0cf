package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

type userApi struct {
	svc           *user.Service
	courseSvc     *course.Service
	enrollmentSvc *enrollment.Service
	jwt           jwtAuth
	validate      *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	rateLimit echo.MiddlewareFunc,
	jwt jwtAuth,
	svc *user.Service,
	courseSvc *course.Service,
	enrollmentSvc *enrollment.Service,
	validate *validator.Validate,
) {
	api := userApi{svc: svc, courseSvc: courseSvc, enrollmentSvc: enrollmentSvc, jwt: jwt, validate: validate}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register, rateLimit)
	ag.POST("/login", api.login, rateLimit)
	ag.POST("/password-reset", api.resetPassword, rateLimit)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset, rateLimit)

	// authed endpoints
	ag.GET("/me", api.me, authed...)
	ag.POST("/refresh", api.refreshToken, authed...)
}

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *user.Service, validate *validator.Validate) {
	api := userApi{svc: svc, validate: validate}

	admin := with(authed, adminMiddleware())
	ug := g.Group("/users")
	ug.GET("", api.query, admin...)
	ug.GET("/roles", api.queryRoles, admin...)
	ug.PUT("/profile", api.updateProfile, authed...)
	ug.GET("/:id", api.retrieve, authed...)
	ug.PUT("/:id/role", api.setRole, admin...)
}

// Handlers

func (api *userApi) authResponse(usr user.User) (AuthResponse, error) {
	token, err := api.jwt.generateToken(api.jwt.claims(usr))
	if err != nil {
		return AuthResponse{}, errors.Wrap(err, "generating token")
	}
	return AuthResponse{
		ID:    usr.ID,
		Name:  usr.Name,
		Email: usr.Email,
		Role:  usr.Role,
		Phone: usr.Phone,
		Token: token,
	}, nil
}

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data, "NewUser"); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	resp, err := api.authResponse(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data, "LoginRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	resp, err := api.authResponse(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()

	enrollments, err := api.enrollmentSvc.QueryByStudent(reqCtx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled courses")
	}
	enrolled := make([]course.Summary, 0, len(enrollments))
	for _, e := range enrollments {
		enrolled = append(enrolled, e.Course)
	}

	created := make([]course.Summary, 0)
	if usr.IsInstructor() {
		courses, err := api.courseSvc.QueryByInstructor(reqCtx, usr.ID)
		if err != nil {
			return errors.Wrap(err, "querying created courses")
		}
		for _, c := range courses {
			created = append(created, c.Summary())
		}
	}

	return ctx.JSON(http.StatusOK, MeResponse{
		User:            usr,
		EnrolledCourses: enrolled,
		CreatedCourses:  created,
	})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.jwt.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bind(ctx, &data, "PasswordResetRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Message: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bind(ctx, &data, "ResetUserPassword"); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data, api.validate); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset with the new password."})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, UserPage{Users: []user.User{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page := bindPagination(ctx)

	users, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, UserPage{
		Users: users,
		PageResponse: PageResponse{
			TotalPages:  core.TotalPages(total, page.Limit),
			CurrentPage: page.Page,
			Total:       total,
		},
	})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// retrieve returns the public profile of a user; the user themselves and admins see the email.
func (api *userApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr.Profile(usr.ID == ctxUsr.ID || ctxUsr.IsAdmin()))
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data user.UpdateProfile
	if err = bind(ctx, &data, "UpdateProfile"); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data, api.validate)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setRole(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data user.SetRole
	if err = bind(ctx, &data, "SetRole"); err != nil {
		return err
	}
	data.Role = core.CleanString(data.Role, true /* lower */)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	usr, err = api.svc.SetRole(ctx.Request().Context(), ctxUsr, usr, data.Role)
	if err != nil {
		return errors.Wrap(err, "setting role")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	AuthResponse struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
		Phone string `json:"phone"`
		Token string `json:"token"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		user.User
		EnrolledCourses []course.Summary `json:"enrolledCourses"`
		CreatedCourses  []course.Summary `json:"createdCourses"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	UserPage struct {
		Users []user.User `json:"users"`
		PageResponse
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
