package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/enrollment"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *enrollment.Service, validate *validator.Validate) {
	api := enrollmentApi{svc: svc, validate: validate}

	eg := g.Group("/enrollments")
	eg.POST("", api.enroll, authed...)
	eg.GET("", api.queryMine, authed...)
	eg.GET("/:id", api.retrieve, authed...)
	eg.PUT("/:id/progress", api.completeLesson, authed...)

	// instructor dashboard
	g.GET("/courses/:id/students", api.queryByCourse, authed...)
}

// Handlers

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data enrollment.NewEnrollment
	if err = bind(ctx, &data, "NewEnrollment"); err != nil {
		return err
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), usr, data, api.validate)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *enrollmentApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enrollments, err := api.svc.QueryByStudent(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) completeLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data enrollment.LessonProgress
	if err = bind(ctx, &data, "LessonProgress"); err != nil {
		return err
	}

	e, err := api.svc.CompleteLesson(ctx.Request().Context(), usr, ctx.Param("id"), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) queryByCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enrollments, err := api.svc.QueryByCourse(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying course students")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
