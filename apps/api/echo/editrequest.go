package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type editRequestAPI struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerEditRequestAPI(ag *echo.Group, svc *attendance.Service, validate *validator.Validate) {
	api := editRequestAPI{svc: svc, validate: validate}

	eg := ag.Group("/edit-requests")
	eg.POST("", api.create, teacherMiddleware())
	eg.GET("/mine", api.mine, teacherMiddleware())
	eg.GET("", api.query, adminMiddleware())
	eg.GET("/:id", api.retrieve, adminMiddleware())
	eg.POST("/:id/review", api.review, adminMiddleware())
}

type (
	EditRequestCreated struct {
		RequestID string `json:"request_id"`
	}

	EditRequestList struct {
		Data []attendance.EditRequest `json:"data"`
		Meta core.PageMeta            `json:"meta"`
	}
)

func (api *editRequestAPI) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data attendance.NewEditRequest
	if err := bindBody(ctx, &data, "NewEditRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.CreateEditRequest(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating edit request")
	}
	return ctx.JSON(http.StatusCreated, EditRequestCreated{RequestID: req.ID})
}

func (api *editRequestAPI) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	reqs, err := api.svc.ListMyEditRequests(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing edit requests")
	}
	if reqs == nil {
		reqs = []attendance.EditRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *editRequestAPI) query(ctx echo.Context) error {
	var filter attendance.EditRequestFilter
	if err := bindBody(ctx, &filter, "EditRequestFilter"); err != nil {
		return err
	}
	filter.Clean()

	reqs, meta, err := api.svc.QueryEditRequests(ctx.Request().Context(), filter, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying edit requests")
	}
	if reqs == nil {
		reqs = []attendance.EditRequest{}
	}
	return ctx.JSON(http.StatusOK, EditRequestList{Data: reqs, Meta: meta})
}

func (api *editRequestAPI) retrieve(ctx echo.Context) error {
	req, err := api.svc.GetEditRequest(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting edit request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *editRequestAPI) review(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data attendance.ReviewEditRequest
	if err := bindBody(ctx, &data, "ReviewEditRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.ReviewEditRequest(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "reviewing edit request")
	}
	return ctx.JSON(http.StatusOK, res)
}
