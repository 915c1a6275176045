package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		n.ID = uuid.New().String()
		t.notifications[n.ID] = n
		return nil
	})
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, recipientID string, filter notification.QueryFilter, page core.Pagination, _ ...core.DBExecutor) ([]notification.Notification, int, error) {
	var notifs []notification.Notification
	_ = repo.db.read(func(t *tables) error {
		for _, n := range t.notifications {
			if n.RecipientID == recipientID && (!filter.UnreadOnly || !n.IsRead) {
				notifs = append(notifs, n)
			}
		}
		return nil
	})
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	start, end := core.PageBounds(page, len(notifs))
	return notifs[start:end], len(notifs), nil
}

func (repo *notificationRepository) MarkNotificationRead(_ context.Context, id, recipientID string, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func(t *tables) error {
		n, ok := t.notifications[id]
		if !ok || n.RecipientID != recipientID {
			return notification.ErrNotFound
		}
		n.IsRead = true
		t.notifications[id] = n
		return nil
	})
}

func (repo *notificationRepository) GetPreference(_ context.Context, userID string, _ ...core.DBExecutor) (notification.Preference, error) {
	var pref notification.Preference
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if pref, ok = t.notifPrefs[userID]; !ok {
			return notification.ErrPreferenceNotFound
		}
		return nil
	})
	return pref, err
}

func (repo *notificationRepository) UpsertPreference(_ context.Context, pref notification.Preference, exec ...core.DBExecutor) (notification.Preference, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		t.notifPrefs[pref.UserID] = pref
		return nil
	})
	return pref, nil
}
