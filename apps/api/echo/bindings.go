package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var orderingParam = "ordering"

// Ordering binds `?ordering=-createdAt,name`: comma separated fields, `-` for descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindPagination reads `page` and `limit`; invalid values fall back to the defaults.
func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	page.Page, _ = strconv.Atoi(ctx.QueryParam("page"))
	page.Limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	page.Clean()
	return page
}

// bindFloatParam returns nil when the query param is absent.
func bindFloatParam(ctx echo.Context, name string) (*float64, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: name + " must be a number"})
	}
	return &f, nil
}

// bind decodes the request into data, naming the target in the error.
func bind(ctx echo.Context, data interface{}, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return nil
}

type (
	MessageResponse struct {
		Message string `json:"message"`
	}

	PageResponse struct {
		TotalPages  int `json:"totalPages"`
		CurrentPage int `json:"currentPage"`
		Total       int `json:"total"`
	}
)
