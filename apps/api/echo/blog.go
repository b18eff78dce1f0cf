package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/blog"
)

type blogApi struct {
	svc      *blog.Service
	validate *validator.Validate
}

func registerBlogAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	optional []echo.MiddlewareFunc,
	svc *blog.Service,
	validate *validator.Validate,
) {
	api := blogApi{svc: svc, validate: validate}

	bg := g.Group("/blogs")
	bg.GET("", api.query)
	bg.GET("/:id", api.retrieve, optional...) // id or slug
	bg.POST("/:id/like", api.bump(blog.CounterLikes))
	bg.POST("/:id/bookmark", api.bump(blog.CounterBookmarks))
	bg.POST("/:id/share", api.bump(blog.CounterShares))

	// authed endpoints
	bg.GET("/instructor/my-blogs", api.queryMine, with(authed, instructorMiddleware())...)
	bg.POST("", api.create, with(authed, instructorMiddleware())...)
	bg.PUT("/:id", api.update, authed...)
	bg.DELETE("/:id", api.destroy, authed...)
	bg.POST("/:id/comments", api.addComment, authed...)
}

// Handlers

func (api *blogApi) query(ctx echo.Context) error {
	var filter blog.QueryFilter
	if err := bind(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}
	p, err := api.svc.QueryPublished(ctx.Request().Context(), filter, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying blogs")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *blogApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	blogs, err := api.svc.QueryByAuthor(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	if blogs == nil {
		blogs = []blog.Blog{}
	}
	return ctx.JSON(http.StatusOK, blogs)
}

// retrieve finds a blog by ID or slug and counts the view.
func (api *blogApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.Read(ctx.Request().Context(), ctx.Param("id"), optionalContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "reading blog")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *blogApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data blog.NewBlog
	if err = bind(ctx, &data, "NewBlog"); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), usr, data, api.validate)
	if err != nil {
		return errors.Wrap(err, "creating blog")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *blogApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data blog.UpdateBlog
	if err = bind(ctx, &data, "UpdateBlog"); err != nil {
		return err
	}

	b, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "updating blog")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *blogApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting blog")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Blog deleted successfully"})
}

// bump returns the handler adding 1 to a reader counter, answering `{<counter>: value}`.
func (api *blogApi) bump(counter string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		val, err := api.svc.Bump(ctx.Request().Context(), ctx.Param("id"), counter)
		if err != nil {
			return errors.Wrapf(err, "bumping blog %s", counter)
		}
		return ctx.JSON(http.StatusOK, echo.Map{counter: val})
	}
}

func (api *blogApi) addComment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data blog.NewComment
	if err = bind(ctx, &data, "NewComment"); err != nil {
		return err
	}

	cm, err := api.svc.AddComment(ctx.Request().Context(), usr, ctx.Param("id"), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, cm)
}
