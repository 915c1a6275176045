package core

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Awe", CleanString("  Awe\t"))
	assert.Equal(t, "awe", CleanString(" AWE ", true))
	assert.Equal(t, "", CleanString("   "))
}

func TestCountWeekdays(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{name: "same weekday", from: "2024-03-04", to: "2024-03-04", want: 1},
		{name: "same weekend day", from: "2024-03-09", to: "2024-03-09", want: 0},
		{name: "full week", from: "2024-03-04", to: "2024-03-10", want: 5},
		{name: "march 2024", from: "2024-03-01", to: "2024-03-31", want: 21},
		{name: "reversed", from: "2024-03-10", to: "2024-03-04", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWeekdays(MustParseDate(tt.from).Time, MustParseDate(tt.to).Time))
		})
	}
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(time.Date(2024, time.February, 17, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-01", first.Format(DateLayout))
	assert.Equal(t, "2024-02-29", last.Format(DateLayout))
}

func TestDateOf(t *testing.T) {
	kinshasa := time.FixedZone("WAT", 3600)
	late := time.Date(2024, time.March, 4, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-04", DateOf(late, nil).String())
	assert.Equal(t, "2024-03-05", DateOf(late, kinshasa).String())
	assert.Equal(t, time.UTC, DateOf(late, kinshasa).Location())
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d": "2024-03-04"}`), &v))
	assert.Equal(t, "2024-03-04", v.D.String())

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d": "2024-03-04"}`, string(b))

	require.NoError(t, json.Unmarshal([]byte(`{"d": null}`), &v))
	assert.True(t, v.D.IsZero())
	b, err = json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d": null}`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"d": "04/03/2024"}`), &v))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-04", d.String())
	require.NoError(t, d.Scan([]byte("2024-03-05")))
	assert.Equal(t, "2024-03-05", d.String())
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	assert.Error(t, d.Scan(42))

	v, err := MustParseDate("2024-03-06").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-06", v)
}

func TestParseClock(t *testing.T) {
	day := MustParseDate("2024-03-04").Time
	got, err := ParseClock(day, "07:45:10", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 4, 7, 45, 10, 0, time.UTC), got)

	got, err = ParseClock(day, "08:00:00", time.FixedZone("WAT", 3600))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC), got)

	// the wall clock day is kept even when it is another day in UTC
	got, err = ParseClock(day, "00:30:00", time.FixedZone("WAT", 3600))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 3, 23, 30, 0, 0, time.UTC), got)

	_, err = ParseClock(day, "7h45", nil)
	assert.Error(t, err)
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name      string
		p         Pagination
		total     int
		wantMeta  PageMeta
		wantStart int
		wantEnd   int
	}{
		{
			name: "defaults", total: 5,
			wantMeta: PageMeta{Page: 1, PerPage: DefaultPerPage, Total: 5, TotalPages: 1},
			wantEnd:  5,
		},
		{
			name: "middle page", p: Pagination{Page: 2, PerPage: 2}, total: 5,
			wantMeta:  PageMeta{Page: 2, PerPage: 2, Total: 5, TotalPages: 3, HasNext: true, HasPrev: true},
			wantStart: 2, wantEnd: 4,
		},
		{
			name: "past the end", p: Pagination{Page: 9, PerPage: 2}, total: 5,
			wantMeta:  PageMeta{Page: 9, PerPage: 2, Total: 5, TotalPages: 3, HasPrev: true},
			wantStart: 5, wantEnd: 5,
		},
		{
			name: "per page clamped", p: Pagination{Page: -1, PerPage: 1000}, total: 0,
			wantMeta: PageMeta{Page: 1, PerPage: MaxPerPage},
		},
		{
			name: "page clamped", p: Pagination{Page: math.MaxInt, PerPage: MaxPerPage}, total: 5,
			wantMeta:  PageMeta{Page: MaxPage, PerPage: MaxPerPage, Total: 5, TotalPages: 1, HasPrev: true},
			wantStart: 5, wantEnd: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMeta, NewPageMeta(tt.p, tt.total))
			start, end := PageBounds(tt.p, tt.total)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		badRequest bool
		notFound   bool
		forbidden  bool
		conflict   bool
	}{
		{name: "validation", err: NewValidationError(errors.New("bad"), FieldError{Field: "f", Error: "bad"}), badRequest: true},
		{name: "bad request", err: NewBadRequestError("bad"), badRequest: true},
		{name: "not found", err: NewNotFoundError("user", ""), notFound: true},
		{name: "forbidden", err: NewForbiddenError("no"), forbidden: true},
		{name: "conflict", err: NewConflictError("locked"), conflict: true},
		{name: "wrapped conflict", err: errors.Wrap(NewConflictError("locked"), "marking"), conflict: true},
		{name: "plain", err: fmt.Errorf("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.badRequest, IsBadRequest(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.forbidden, IsForbidden(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
		})
	}

	assert.Equal(t, "user not found", NewNotFoundError("user", "").Error())
	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity"), "handling")))
	assert.False(t, IsShutdown(NewConflictError("x")))
}
