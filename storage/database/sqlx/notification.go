package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
)

const notificationColumns = `id, recipient_id, type, title, message, metadata, is_read, created_at`

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	Metadata    null.JSON `db:"metadata"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r notificationRow) notification() (notification.Notification, error) {
	n := notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Type:        notification.Type(r.Type),
		Title:       r.Title,
		Message:     r.Message,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.Metadata.Valid {
		if err := r.Metadata.Unmarshal(&n.Metadata); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding notification metadata")
		}
	}
	return n, nil
}

type notificationRepository struct {
	base
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{base{db: db}}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	var metadata null.JSON
	if n.Metadata != nil {
		if err := metadata.Marshal(n.Metadata); err != nil {
			return notification.Notification{}, errors.Wrap(err, "encoding notification metadata")
		}
	}

	n.ID = uuid.New().String()
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO notification (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := exe.ExecContext(ctx, q, n.ID, n.RecipientID, string(n.Type), n.Title, n.Message, metadata, n.IsRead, n.CreatedAt); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, recipientID string, filter notification.QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]notification.Notification, int, error) {
	if !validFilterIDs(recipientID) {
		return []notification.Notification{}, 0, nil
	}
	var w where
	w.add("recipient_id = ?", recipientID)
	if filter.UnreadOnly {
		w.add("NOT is_read")
	}

	exe := repo.getExec(exec)
	total, err := count(ctx, exe, "notification", w)
	if err != nil {
		return nil, 0, err
	}

	q, args := paginate(`SELECT `+notificationColumns+` FROM notification`+w.String()+` ORDER BY created_at DESC`, w.args, &page)
	var rows []notificationRow
	if err = sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.notification()
		if err != nil {
			return nil, 0, err
		}
		notifs = append(notifs, n)
	}
	return notifs, total, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id, recipientID string, exec ...core.DBExecutor) error {
	if !validFilterIDs(id, recipientID) {
		return notification.ErrNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(`UPDATE notification SET is_read = true WHERE id = ? AND recipient_id = ?`), id, recipientID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo notificationRepository) GetPreference(ctx context.Context, userID string, exec ...core.DBExecutor) (notification.Preference, error) {
	if !validFilterIDs(userID) {
		return notification.Preference{}, notification.ErrPreferenceNotFound
	}
	exe := repo.getExec(exec)
	var pref notification.Preference
	q := exe.Rebind(`SELECT user_id, email, in_app, updated_at FROM notification_preference WHERE user_id = ?`)
	if err := exe.QueryRowxContext(ctx, q, userID).Scan(&pref.UserID, &pref.Email, &pref.InApp, &pref.UpdatedAt); err != nil {
		return notification.Preference{}, trapNoRowsErr(err, notification.ErrPreferenceNotFound, "finding notification preference")
	}
	pref.UpdatedAt = pref.UpdatedAt.UTC()
	return pref, nil
}

func (repo notificationRepository) UpsertPreference(ctx context.Context, pref notification.Preference, exec ...core.DBExecutor) (notification.Preference, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO notification_preference (user_id, email, in_app, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, in_app = EXCLUDED.in_app, updated_at = EXCLUDED.updated_at`)
	if _, err := exe.ExecContext(ctx, q, pref.UserID, pref.Email, pref.InApp, pref.UpdatedAt); err != nil {
		return notification.Preference{}, errors.Wrap(err, "saving notification preference")
	}
	return pref, nil
}
