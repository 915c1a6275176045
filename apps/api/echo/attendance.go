package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceAPI struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := attendanceAPI{
		svc:      deps.AttendanceSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.mark, teacherMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.PATCH("/schedule/:id", api.updateSchedule, teacherMiddleware())
	ag.PATCH("/daily/:id", api.updateDaily, teacherMiddleware())
	ag.GET("/schedule/:id", api.scheduleAttendance, staffMiddleware())
	ag.GET("/schedule/:id/marked", api.isMarked, staffMiddleware())
	ag.GET("/students/:id", api.studentHistory, staffMiddleware())

	registerReportAPI(ag, api.svc)
	registerEditRequestAPI(ag, api.svc, api.validate)
}

// Handlers

func (api *attendanceAPI) mark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data attendance.MarkAttendance
	if err := bindBody(ctx, &data, "MarkAttendance"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Mark(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *attendanceAPI) updateSchedule(ctx echo.Context) error {
	var data attendance.UpdateAttendance
	if err := bindBody(ctx, &data, "UpdateAttendance"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.UpdateAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceAPI) updateDaily(ctx echo.Context) error {
	var data attendance.UpdateDailyAttendance
	if err := bindBody(ctx, &data, "UpdateDailyAttendance"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.UpdateDailyAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating daily attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceAPI) scheduleAttendance(ctx echo.Context) error {
	recs, err := api.svc.ScheduleAttendance(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("date"))
	if err != nil {
		return errors.Wrap(err, "getting schedule attendance")
	}
	if recs == nil {
		recs = []attendance.ScheduleAttendance{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceAPI) isMarked(ctx echo.Context) error {
	status, err := api.svc.IsMarked(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("date"))
	if err != nil {
		return errors.Wrap(err, "checking schedule attendance")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *attendanceAPI) studentHistory(ctx echo.Context) error {
	q, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}

	page, err := api.svc.StudentHistory(ctx.Request().Context(), ctx.Param("id"), q, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "getting student attendance history")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *attendanceAPI) query(ctx echo.Context) error {
	q, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}

	page, err := api.svc.QueryAttendance(ctx.Request().Context(), q, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *attendanceAPI) bindQuery(ctx echo.Context) (attendance.AttendanceQuery, error) {
	var q attendance.AttendanceQuery
	if err := bindBody(ctx, &q, "AttendanceQuery"); err != nil {
		return q, err
	}
	if err := q.Validate(api.validate); err != nil {
		return q, err
	}
	return q, nil
}
