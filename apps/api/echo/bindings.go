package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var orderingParam = "ordering"

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
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPagination reads `page` & `per_page`; malformed values fall back on the defaults.
func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	if err := ctx.Bind(&page); err != nil {
		return core.Pagination{}.Clean()
	}
	return page.Clean()
}

// bindBody decodes the request body into dest, as a 400 when malformed.
func bindBody(ctx echo.Context, dest interface{}, what string) error {
	if err := ctx.Bind(dest); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok {
			return core.NewValidationError(errors.Wrap(herr, "binding to "+what))
		}
		return errors.Wrap(err, "binding to "+what)
	}
	return nil
}
