package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
)

type categoryApi struct {
	svc       *category.Service
	courseSvc *course.Service
	validate  *validator.Validate
}

func registerCategoryAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *category.Service,
	courseSvc *course.Service,
	validate *validator.Validate,
) {
	api := categoryApi{svc: svc, courseSvc: courseSvc, validate: validate}
	admin := with(authed, adminMiddleware())

	cg := g.Group("/categories")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.POST("", api.create, admin...)
	cg.PUT("/:id", api.update, admin...)
	cg.DELETE("/:id", api.destroy, admin...)
}

// Handlers

func (api *categoryApi) query(ctx echo.Context) error {
	cats, err := api.svc.QueryActive(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	return ctx.JSON(http.StatusOK, cats)
}

// retrieve returns the category with its published courses.
func (api *categoryApi) retrieve(ctx echo.Context) error {
	cat, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}
	courses, err := api.courseSvc.QueryByCategory(ctx.Request().Context(), cat.Name)
	if err != nil {
		return err
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, CategoryResponse{Category: cat, Courses: courses})
}

func (api *categoryApi) create(ctx echo.Context) error {
	var data category.NewCategory
	if err := bind(ctx, &data, "NewCategory"); err != nil {
		return err
	}
	cat, err := api.svc.Create(ctx.Request().Context(), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *categoryApi) update(ctx echo.Context) error {
	var data category.UpdateCategory
	if err := bind(ctx, &data, "UpdateCategory"); err != nil {
		return err
	}
	cat, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *categoryApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Category deleted"})
}

type CategoryResponse struct {
	Category category.Category `json:"category"`
	Courses  []course.Course   `json:"courses"`
}
