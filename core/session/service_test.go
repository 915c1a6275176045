package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/tests"
)

func TestService_ActiveSession(t *testing.T) {
	st := testutil.NewStore(t)
	svc := session.NewService(st.DB, st.Sessions)
	ctx := context.Background()
	now := time.Now()

	_, err := svc.ActiveSession(ctx)
	assert.Equal(t, session.ErrNoActiveSession, err)

	s1 := testutil.CreateSession(t, st.Sessions, "2024/2025", session.StatusActive, now.AddDate(0, -6, 0), now.AddDate(0, 6, 0))
	got, err := svc.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, got.ID)

	testutil.CreateSession(t, st.Sessions, "2025/2026", session.StatusActive, now, now.AddDate(1, 0, 0))
	_, err = svc.ActiveSession(ctx)
	assert.True(t, core.IsConflict(err))
}

func TestService_Create(t *testing.T) {
	st := testutil.NewStore(t)
	svc := session.NewService(st.DB, st.Sessions)
	ctx := context.Background()
	start := time.Date(2024, time.September, 2, 10, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, "2024/2025", start, start)
	assert.True(t, core.IsBadRequest(err))

	s, err := svc.Create(ctx, " 2024/2025 ", start, start.AddDate(0, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, "2024/2025", s.Name)
	assert.Equal(t, session.StatusInactive, s.Status)
	assert.Equal(t, core.TruncateDate(start), s.StartDate)
}

func TestService_Terms(t *testing.T) {
	st := testutil.NewStore(t)
	svc := session.NewService(st.DB, st.Sessions)
	ctx := context.Background()
	start := time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)
	s := testutil.CreateSession(t, st.Sessions, "2024/2025", session.StatusActive, start, start.AddDate(0, 10, 0))

	tests := []struct {
		name       string
		sessionID  string
		start, end time.Time
		wantErr    func(error) bool
	}{
		{name: "end before start", sessionID: s.ID, start: start, end: start.AddDate(0, 0, -1), wantErr: core.IsBadRequest},
		{name: "unknown session", sessionID: "lol", start: start, end: start.AddDate(0, 3, 0), wantErr: core.IsNotFound},
		{name: "ok", sessionID: s.ID, start: start, end: start.AddDate(0, 3, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddTerm(ctx, tt.sessionID, session.FirstTerm, tt.start, tt.end)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}

	term, err := svc.GetTerm(ctx, s.ID, session.FirstTerm)
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 3, 0), term.EndDate)

	_, err = svc.GetTerm(ctx, s.ID, session.ThirdTerm)
	assert.True(t, core.IsNotFound(err))
}

func TestParseTermName(t *testing.T) {
	tn, ok := session.ParseTermName(" second ")
	assert.True(t, ok)
	assert.Equal(t, session.SecondTerm, tn)

	_, ok = session.ParseTermName("FOURTH")
	assert.False(t, ok)
}
