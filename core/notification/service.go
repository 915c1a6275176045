package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("notification", "notification not found")
	ErrPreferenceNotFound = core.NewNotFoundError("notification preference", "notification preference not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns one page of recipientID's notifications, newest first, and the total count.
		QueryNotifications(ctx context.Context, recipientID string, filter QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]Notification, int, error)
		MarkNotificationRead(ctx context.Context, id, recipientID string, exec ...core.DBExecutor) error
		GetPreference(ctx context.Context, userID string, exec ...core.DBExecutor) (Preference, error)
		UpsertPreference(ctx context.Context, pref Preference, exec ...core.DBExecutor) (Preference, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetPreference falls back on DefaultPreference for users who never saved one.
func (svc *Service) GetPreference(ctx context.Context, userID string) (Preference, error) {
	pref, err := svc.repo.GetPreference(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrPreferenceNotFound {
			return DefaultPreference(userID), nil
		}
		return Preference{}, errors.Wrap(err, "getting notification preference")
	}
	return pref, nil
}

func (svc *Service) UpdatePreference(ctx context.Context, userID string, up UpdatePreference) (Preference, error) {
	pref, err := svc.GetPreference(ctx, userID)
	if err != nil {
		return Preference{}, err
	}
	if up.Email != nil {
		pref.Email = *up.Email
	}
	if up.InApp != nil {
		pref.InApp = *up.InApp
	}
	pref.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpsertPreference(ctx, pref)
}

func (svc *Service) Create(ctx context.Context, n Notification) (Notification, error) {
	n.CreatedAt = nowFunc().UTC()
	return svc.repo.CreateNotification(ctx, n)
}

func (svc *Service) List(ctx context.Context, recipientID string, filter QueryFilter, page core.Pagination) ([]Notification, core.PageMeta, error) {
	notifs, total, err := svc.repo.QueryNotifications(ctx, recipientID, filter, page)
	if err != nil {
		return nil, core.PageMeta{}, errors.Wrap(err, "querying notifications")
	}
	return notifs, core.NewPageMeta(page, total), nil
}

func (svc *Service) MarkRead(ctx context.Context, id, recipientID string) error {
	return svc.repo.MarkNotificationRead(ctx, id, recipientID)
}
