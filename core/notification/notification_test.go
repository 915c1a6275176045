package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/fs"
	"github.com/trezcool/mahudhurio/services/email"
	"github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/tests"
)

func TestService_preferences(t *testing.T) {
	st := testutil.NewStore(t)
	svc := notification.NewService(st.Notifs)
	ctx := context.Background()

	pref, err := svc.GetPreference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, notification.DefaultPreference("u1"), pref)

	off := false
	pref, err = svc.UpdatePreference(ctx, "u1", notification.UpdatePreference{Email: &off})
	require.NoError(t, err)
	assert.False(t, pref.Email)
	assert.True(t, pref.InApp)

	pref, err = svc.UpdatePreference(ctx, "u1", notification.UpdatePreference{InApp: &off})
	require.NoError(t, err)
	assert.False(t, pref.Email)
	assert.False(t, pref.InApp)

	pref, err = svc.GetPreference(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, pref.Email)
	assert.False(t, pref.InApp)
}

func TestService_inbox(t *testing.T) {
	st := testutil.NewStore(t)
	svc := notification.NewService(st.Notifs)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		n, err := svc.Create(ctx, notification.Notification{RecipientID: "u1", Type: notification.TypeEditRequestCreated, Title: title})
		require.NoError(t, err)
		ids = append(ids, n.ID)
		time.Sleep(time.Millisecond)
	}
	_, err := svc.Create(ctx, notification.Notification{RecipientID: "u2", Title: "not yours"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, ids[0], "u1"))
	assert.Equal(t, notification.ErrNotFound, svc.MarkRead(ctx, ids[1], "u2"))
	assert.Equal(t, notification.ErrNotFound, svc.MarkRead(ctx, "lol", "u1"))

	all, meta, err := svc.List(ctx, "u1", notification.QueryFilter{}, core.Pagination{Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "three", all[0].Title)
	assert.Equal(t, 3, meta.Total)
	assert.True(t, meta.HasNext)

	unread, meta, err := svc.List(ctx, "u1", notification.QueryFilter{UnreadOnly: true}, core.Pagination{})
	require.NoError(t, err)
	assert.Len(t, unread, 2)
	assert.Equal(t, 2, meta.Total)
	for _, n := range unread {
		assert.False(t, n.IsRead)
	}
}

func TestDispatcher(t *testing.T) {
	st := testutil.NewStore(t)
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	ctx := context.Background()

	svc := notification.NewService(st.Notifs)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	users := user.NewService(st.Users)

	admin := testutil.CreateUser(t, st.Users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminOwner}, true)
	principal := testutil.CreateUser(t, st.Users, "Principal", "principal", "principal@test.cd", "", []string{user.RoleAdminPrincipal}, true)
	testutil.CreateUser(t, st.Users, "Former", "former", "former@test.cd", "", []string{user.RoleAdmin}, false)
	teacher := testutil.CreateUser(t, st.Users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	// the principal only wants in-app notifications
	off := false
	_, err := svc.UpdatePreference(ctx, principal.ID, notification.UpdatePreference{Email: &off})
	require.NoError(t, err)

	d := notification.NewDispatcher(svc, users, mailSvc, conf, logger)
	d.Start(ctx)

	d.Enqueue(notification.Intent{
		RecipientIDs:   []string{admin.ID, "unknown", admin.ID},
		RecipientRoles: []string{user.RoleAdmin},
		Type:           notification.TypeEditRequestCreated,
		Title:          "New attendance edit request",
		Message:        "please review",
		Metadata:       map[string]interface{}{"request_id": "r1"},
	})
	d.Enqueue(notification.Intent{
		RecipientIDs: []string{teacher.ID},
		Type:         notification.TypeEditRequestReviewed,
		Title:        "Attendance edit request approved",
		Message:      "approved",
	})
	require.NoError(t, d.Stop())

	inbox := func(userID string) []notification.Notification {
		notifs, _, err := svc.List(ctx, userID, notification.QueryFilter{}, core.Pagination{})
		require.NoError(t, err)
		return notifs
	}
	adminInbox := inbox(admin.ID)
	require.Len(t, adminInbox, 1)
	assert.Equal(t, "please review", adminInbox[0].Message)
	assert.Equal(t, "r1", adminInbox[0].Metadata["request_id"])
	assert.Len(t, inbox(principal.ID), 1)
	assert.Len(t, inbox(teacher.ID), 1)

	var to []string
	for _, msg := range mailSvc.SentMessages() {
		require.Len(t, msg.To, 1)
		to = append(to, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, msg.To[0].Name)
	}
	assert.ElementsMatch(t, []string{"admin@test.cd", "teacher@test.cd"}, to)

	t.Run("stopped", func(t *testing.T) {
		assert.NoError(t, d.Stop())
		assert.NotPanics(t, func() {
			d.Enqueue(notification.Intent{RecipientIDs: []string{teacher.ID}, Title: "late"})
		})
		assert.Len(t, inbox(teacher.ID), 1)
	})
}
