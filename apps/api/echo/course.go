package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/course"
)

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	optional []echo.MiddlewareFunc,
	svc *course.Service,
	validate *validator.Validate,
) {
	api := courseApi{svc: svc, validate: validate}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve, optional...)

	// authed endpoints
	cg.GET("/instructor/my-courses", api.queryMine, with(authed, instructorMiddleware())...)
	cg.POST("", api.create, with(authed, instructorMiddleware())...)
	cg.PUT("/:id", api.update, authed...)
	cg.DELETE("/:id", api.destroy, authed...)
	cg.POST("/:id/reviews", api.addReview, authed...)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := bind(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}
	var err error
	if filter.MinPrice, err = bindFloatParam(ctx, "minPrice"); err != nil {
		return err
	}
	if filter.MaxPrice, err = bindFloatParam(ctx, "maxPrice"); err != nil {
		return err
	}

	p, err := api.svc.QueryPublished(ctx.Request().Context(), filter, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.svc.QueryByInstructor(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetVisible(ctx.Request().Context(), ctx.Param("id"), optionalContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data course.NewCourse
	if err = bind(ctx, &data, "NewCourse"); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data, api.validate)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data course.UpdateCourse
	if err = bind(ctx, &data, "UpdateCourse"); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Course deleted successfully"})
}

func (api *courseApi) addReview(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data course.NewReview
	if err = bind(ctx, &data, "NewReview"); err != nil {
		return err
	}

	if err = api.svc.AddReview(ctx.Request().Context(), usr, ctx.Param("id"), data, api.validate); err != nil {
		return errors.Wrap(err, "adding review")
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "Review added"})
}
