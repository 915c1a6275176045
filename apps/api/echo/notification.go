package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
)

type notificationAPI struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := notificationAPI{svc: deps.NotificationSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.list)
	ng.POST("/:id/read", api.markRead)
	ng.GET("/preferences", api.getPreference)
	ng.PUT("/preferences", api.updatePreference)
}

type NotificationList struct {
	Data []notification.Notification `json:"data"`
	Meta core.PageMeta               `json:"meta"`
}

func (api *notificationAPI) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var filter notification.QueryFilter
	if err := bindBody(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}

	notifs, meta, err := api.svc.List(ctx.Request().Context(), claims.Subject, filter, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, NotificationList{Data: notifs, Meta: meta})
}

func (api *notificationAPI) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationAPI) getPreference(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	pref, err := api.svc.GetPreference(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting notification preference")
	}
	return ctx.JSON(http.StatusOK, pref)
}

func (api *notificationAPI) updatePreference(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data notification.UpdatePreference
	if err := bindBody(ctx, &data, "UpdatePreference"); err != nil {
		return err
	}

	pref, err := api.svc.UpdatePreference(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating notification preference")
	}
	return ctx.JSON(http.StatusOK, pref)
}
