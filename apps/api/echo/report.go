package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type reportAPI struct {
	svc *attendance.Service
}

// registerReportAPI mounts the attendance summaries on the (already authed) attendance group.
func registerReportAPI(ag *echo.Group, svc *attendance.Service) {
	api := reportAPI{svc: svc}

	ag.GET("/students/:id/monthly", api.studentMonthly)
	ag.GET("/students/:id/term", api.studentTerm)
	ag.GET("/parents/children/:reg/monthly", api.childMonthly)
	ag.GET("/classes/:id/daily", api.classDaily, staffMiddleware())
	ag.GET("/classes/:id/term", api.classTerm, staffMiddleware())
}

func (api *reportAPI) studentMonthly(ctx echo.Context) error {
	rep, err := api.svc.StudentMonthly(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting monthly report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportAPI) childMonthly(ctx echo.Context) error {
	rep, err := api.svc.ParentChildMonthly(ctx.Request().Context(), ctx.Param("reg"))
	if err != nil {
		return errors.Wrap(err, "getting child monthly report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportAPI) studentTerm(ctx echo.Context) error {
	rep, err := api.svc.StudentTermSummary(
		ctx.Request().Context(),
		ctx.Param("id"),
		ctx.QueryParam("session_id"),
		ctx.QueryParam("term"),
	)
	if err != nil {
		return errors.Wrap(err, "getting term summary")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportAPI) classDaily(ctx echo.Context) error {
	rep, err := api.svc.ClassDaily(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("date"))
	if err != nil {
		return errors.Wrap(err, "getting class daily report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportAPI) classTerm(ctx echo.Context) error {
	rep, err := api.svc.ClassTerm(
		ctx.Request().Context(),
		ctx.Param("id"),
		ctx.QueryParam("session_id"),
		ctx.QueryParam("term"),
	)
	if err != nil {
		return errors.Wrap(err, "getting class term report")
	}
	return ctx.JSON(http.StatusOK, rep)
}
