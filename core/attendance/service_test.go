package attendance_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/tests"
)

// monday is the school day every test runs on.
var monday = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

// tickingClock returns a clock starting at start and moving one second forward on every read.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

type fixture struct {
	st       *testutil.Store
	svc      *attendance.Service
	notifier *testutil.Notifier
	sess     session.Session

	admin, teacherUsr, otherUsr, parent user.User
	teacher, other                      school.Teacher
	class                               school.Class
	schedule                            school.Schedule
	s1, s2, outsider                    school.Student
}

func setup(t *testing.T, now time.Time) fixture {
	t.Cleanup(attendance.SetNowFunc(tickingClock(now)))

	st := testutil.NewStore(t)
	f := fixture{st: st, notifier: &testutil.Notifier{}}

	f.admin = testutil.CreateUser(t, st.Users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminOwner}, true)
	f.teacherUsr = testutil.CreateUser(t, st.Users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	f.otherUsr = testutil.CreateUser(t, st.Users, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	f.parent = testutil.CreateUser(t, st.Users, "Parent", "parent", "parent@test.cd", "", []string{user.RoleParent}, true)

	f.sess = testutil.CreateSession(t, st.Sessions, "2023/2024", session.StatusActive, now.AddDate(0, -6, 0), now.AddDate(0, 4, 0))
	testutil.CreateTerm(t, st.Sessions, f.sess.ID, session.SecondTerm, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC))

	f.teacher = testutil.CreateTeacher(t, st.School, f.teacherUsr.ID, true)
	f.other = testutil.CreateTeacher(t, st.School, f.otherUsr.ID, true)
	f.class = testutil.CreateClass(t, st.School, f.sess.ID, "JSS 1")
	f.schedule = testutil.CreateSchedule(t, st.School, f.class.ID, f.teacher.ID, "Maths", now.Weekday())
	testutil.AssignClassTeacher(t, st.School, f.class.ID, f.teacher.ID, true)
	testutil.AssignClassTeacher(t, st.School, f.class.ID, f.other.ID, false)

	f.s1 = testutil.CreateStudent(t, st.School, "", "REG-001", "Ada", "Abara")
	f.s2 = testutil.CreateStudent(t, st.School, "", "REG-002", "Bob", "Kalala")
	f.outsider = testutil.CreateStudent(t, st.School, "", "REG-003", "Eve", "Zulu")
	testutil.Enroll(t, st.School, f.class.ID, f.s1.ID, true)
	testutil.Enroll(t, st.School, f.class.ID, f.s2.ID, true)

	f.svc = st.AttendanceService(core.NewTestConfig(), f.sess, f.notifier)
	return f
}

func records(status string, students ...school.Student) []attendance.MarkRecord {
	recs := make([]attendance.MarkRecord, 0, len(students))
	for _, s := range students {
		recs = append(recs, attendance.MarkRecord{StudentID: s.ID, Status: status})
	}
	return recs
}

func (f fixture) scheduleRecords(t *testing.T) []attendance.ScheduleAttendance {
	recs, _, err := f.st.Attendance.QueryScheduleAttendance(context.Background(), attendance.RecordFilter{ScheduleID: f.schedule.ID}, nil)
	require.NoError(t, err)
	return recs
}

func TestService_Mark(t *testing.T) {
	f := setup(t, monday)
	ctx := context.Background()

	tests := []struct {
		name    string
		actorID string
		data    attendance.MarkAttendance
		wantErr func(error) bool
	}{
		{
			name: "schedule and class", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, ClassID: f.class.ID, Date: "2024-03-04", Records: records("PRESENT", f.s1)},
			wantErr: core.IsBadRequest,
		},
		{
			name: "neither schedule nor class", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{Date: "2024-03-04", Records: records("PRESENT", f.s1)},
			wantErr: core.IsBadRequest,
		},
		{
			name: "malformed date", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "04/03/2024", Records: records("PRESENT", f.s1)},
			wantErr: core.IsBadRequest,
		},
		{
			name: "future date", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "2024-03-05", Records: records("PRESENT", f.s1)},
			wantErr: func(err error) bool { return err == attendance.ErrFutureDate },
		},
		{
			name: "half day on a schedule", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("HALF_DAY", f.s1)},
			wantErr: core.IsBadRequest,
		},
		{
			name: "duplicate student", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("PRESENT", f.s1, f.s1)},
			wantErr: core.IsBadRequest,
		},
		{
			name: "not a teacher", actorID: f.parent.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("PRESENT", f.s1)},
			wantErr: core.IsNotFound,
		},
		{
			name: "not the schedule's teacher", actorID: f.otherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("PRESENT", f.s1)},
			wantErr: core.IsForbidden,
		},
		{
			name: "unknown schedule", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: "lol", Date: "2024-03-04", Records: records("PRESENT", f.s1)},
			wantErr: core.IsNotFound,
		},
		{
			name: "student not enrolled", actorID: f.teacherUsr.ID,
			data:    attendance.MarkAttendance{ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("PRESENT", f.s1, f.outsider)},
			wantErr: core.IsNotFound,
		},
		{
			name: "inactive class teacher", actorID: f.otherUsr.ID,
			data:    attendance.MarkAttendance{ClassID: f.class.ID, Date: "2024-03-04", Records: records("PRESENT", f.s1)},
			wantErr: core.IsForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Mark(ctx, tt.actorID, tt.data)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}
	assert.Empty(t, f.scheduleRecords(t), "failed batches must not write anything")

	t.Run("schedule based", func(t *testing.T) {
		res, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
			ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("present", f.s1, f.s2),
		})
		require.NoError(t, err)
		assert.Equal(t, attendance.MarkResult{Marked: 2, Updated: 0, Total: 2}, res)

		recs := f.scheduleRecords(t)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.True(t, r.IsLocked)
			assert.Equal(t, attendance.StatusPresent, r.Status)
			assert.Equal(t, f.teacherUsr.ID, r.MarkedBy)
			assert.Equal(t, f.sess.ID, r.SessionID)
		}
	})

	t.Run("re-marking a locked record", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
			ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("ABSENT", f.s1),
		})
		assert.Equal(t, attendance.ErrLocked, err)
	})

	t.Run("batches are atomic", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
			ScheduleID: f.schedule.ID, Date: "2024-03-01", Records: records("LATE", f.s2),
		})
		require.NoError(t, err)

		// s1 would be created, s2 is locked
		_, err = f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
			ScheduleID: f.schedule.ID, Date: "2024-03-01", Records: records("ABSENT", f.s1, f.s2),
		})
		assert.Equal(t, attendance.ErrLocked, err)

		recs, _, err := f.st.Attendance.QueryScheduleAttendance(ctx, attendance.RecordFilter{ScheduleID: f.schedule.ID, From: core.MustParseDate("2024-03-01"), To: core.MustParseDate("2024-03-01")}, nil)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, f.s2.ID, recs[0].StudentID)
		assert.Equal(t, attendance.StatusLate, recs[0].Status)
	})

	t.Run("daily", func(t *testing.T) {
		res, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
			ClassID: f.class.ID, Date: "2024-03-04", Records: records("HALF_DAY", f.s1),
		})
		require.NoError(t, err)
		assert.Equal(t, attendance.MarkResult{Marked: 1, Total: 1}, res)

		recs, _, err := f.st.Attendance.QueryDailyAttendance(ctx, attendance.RecordFilter{ClassID: f.class.ID}, nil)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, attendance.StatusHalfDay, recs[0].Status)
		assert.True(t, recs[0].IsLocked)
		assert.NotNil(t, recs[0].CheckInTime)
	})

	assert.Empty(t, f.notifier.Intents())
}

func TestNewService(t *testing.T) {
	st := testutil.NewStore(t)
	sess := testutil.CreateSession(t, st.Sessions, "2023/2024", session.StatusActive, monday.AddDate(0, -6, 0), monday.AddDate(0, 4, 0))

	assert.NotPanics(t, func() {
		st.AttendanceService(core.NewTestConfig(), sess, &testutil.Notifier{})
	})
	assert.Panics(t, func() {
		attendance.NewService(st.DB, st.Attendance, school.NewService(st.School), nil, &testutil.Notifier{}, core.NewTestConfig(), nil)
	})
}

func TestService_UpdateAttendance(t *testing.T) {
	f := setup(t, monday)
	ctx := context.Background()

	unlocked, _, err := f.st.Attendance.UpsertScheduleAttendance(ctx, attendance.ScheduleAttendance{
		ScheduleID: f.schedule.ID,
		StudentID:  f.s1.ID,
		SessionID:  f.sess.ID,
		Date:       core.MustParseDate("2024-03-04"),
		Status:     attendance.StatusAbsent,
		MarkedBy:   f.teacherUsr.ID,
	})
	require.NoError(t, err)
	require.False(t, unlocked.IsLocked)

	late, halfDay, notes := "late", "HALF_DAY", "bus broke down"
	_, err = f.svc.UpdateAttendance(ctx, unlocked.ID, attendance.UpdateAttendance{Status: &halfDay})
	assert.True(t, core.IsBadRequest(err))

	updated, err := f.svc.UpdateAttendance(ctx, unlocked.ID, attendance.UpdateAttendance{Status: &late, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, updated.Status)
	assert.Equal(t, notes, *updated.Notes)
	assert.True(t, updated.IsLocked)

	_, err = f.svc.UpdateAttendance(ctx, unlocked.ID, attendance.UpdateAttendance{Status: &late})
	assert.Equal(t, attendance.ErrLocked, err)

	_, err = f.svc.UpdateAttendance(ctx, "lol", attendance.UpdateAttendance{Status: &late})
	assert.Equal(t, attendance.ErrNotFound, err)

	t.Run("daily", func(t *testing.T) {
		rec, _, err := f.st.Attendance.UpsertDailyAttendance(ctx, attendance.DailyAttendance{
			ClassID:   f.class.ID,
			StudentID: f.s1.ID,
			SessionID: f.sess.ID,
			Date:      core.MustParseDate("2024-03-04"),
			Status:    attendance.StatusPresent,
			MarkedBy:  f.teacherUsr.ID,
		})
		require.NoError(t, err)

		badClock, out := "3pm", "15:30:00"
		_, err = f.svc.UpdateDailyAttendance(ctx, rec.ID, attendance.UpdateDailyAttendance{CheckOutTime: &badClock})
		assert.True(t, core.IsBadRequest(err))

		updated, err := f.svc.UpdateDailyAttendance(ctx, rec.ID, attendance.UpdateDailyAttendance{Status: &halfDay, CheckOutTime: &out})
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusHalfDay, updated.Status)
		assert.Equal(t, time.Date(2024, time.March, 4, 15, 30, 0, 0, time.UTC), *updated.CheckOutTime)
		assert.True(t, updated.IsLocked)
	})

	t.Run("nothing to update", func(t *testing.T) {
		rec, _, err := f.st.Attendance.UpsertScheduleAttendance(ctx, attendance.ScheduleAttendance{
			ScheduleID: f.schedule.ID,
			StudentID:  f.s2.ID,
			SessionID:  f.sess.ID,
			Date:       core.MustParseDate("2024-03-04"),
			Status:     attendance.StatusAbsent,
			MarkedBy:   f.teacherUsr.ID,
		})
		require.NoError(t, err)

		_, err = f.svc.UpdateAttendance(ctx, rec.ID, attendance.UpdateAttendance{})
		assert.Equal(t, attendance.ErrEmptyUpdate, err)
		_, err = f.svc.UpdateDailyAttendance(ctx, rec.ID, attendance.UpdateDailyAttendance{})
		assert.Equal(t, attendance.ErrEmptyUpdate, err)

		got, err := f.st.Attendance.GetScheduleAttendance(ctx, rec.ID)
		require.NoError(t, err)
		assert.False(t, got.IsLocked)
	})
}

func TestService_UpdateDailyAttendance_schoolTimezone(t *testing.T) {
	f := setup(t, monday)
	ctx := context.Background()

	wat := time.FixedZone("WAT", 3600)
	conf := core.NewTestConfig()
	conf.Timezone = wat
	svc := f.st.AttendanceService(conf, f.sess, f.notifier)

	rec, _, err := f.st.Attendance.UpsertDailyAttendance(ctx, attendance.DailyAttendance{
		ClassID:   f.class.ID,
		StudentID: f.s1.ID,
		SessionID: f.sess.ID,
		Date:      core.MustParseDate("2024-03-04"),
		Status:    attendance.StatusPresent,
		MarkedBy:  f.teacherUsr.ID,
	})
	require.NoError(t, err)

	in := "08:00:00"
	updated, err := svc.UpdateDailyAttendance(ctx, rec.ID, attendance.UpdateDailyAttendance{CheckInTime: &in})
	require.NoError(t, err)
	require.NotNil(t, updated.CheckInTime)
	assert.Equal(t, time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC), *updated.CheckInTime)
	assert.Equal(t, "08:00:00", updated.CheckInTime.In(wat).Format("15:04:05"))
}

func TestService_queries(t *testing.T) {
	f := setup(t, monday)
	ctx := context.Background()

	for _, d := range []struct {
		date   string
		status string
	}{{"2024-02-26", "PRESENT"}, {"2024-02-27", "ABSENT"}, {"2024-03-04", "LATE"}} {
		_, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
			ScheduleID: f.schedule.ID, Date: d.date, Records: records(d.status, f.s1),
		})
		require.NoError(t, err)
	}

	marked, err := f.svc.IsMarked(ctx, f.schedule.ID, "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, attendance.MarkedStatus{IsMarked: true, Count: 1}, marked)
	marked, err = f.svc.IsMarked(ctx, f.schedule.ID, "2024-03-01")
	require.NoError(t, err)
	assert.False(t, marked.IsMarked)
	_, err = f.svc.IsMarked(ctx, f.schedule.ID, "lol")
	assert.True(t, core.IsBadRequest(err))

	recs, err := f.svc.ScheduleAttendance(ctx, f.schedule.ID, "2024-02-27")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.StatusAbsent, recs[0].Status)

	page, err := f.svc.StudentHistory(ctx, f.s1.ID, attendance.AttendanceQuery{}, core.Pagination{Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "2024-03-04", page.Data[0].Date.String())
	assert.Equal(t, core.PageMeta{Page: 1, PerPage: 2, Total: 3, TotalPages: 2, HasNext: true}, page.Meta)

	page, err = f.svc.QueryAttendance(ctx, attendance.AttendanceQuery{Status: "present"}, core.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "2024-02-26", page.Data[0].Date.String())

	page, err = f.svc.QueryAttendance(ctx, attendance.AttendanceQuery{StudentID: f.s2.ID}, core.Pagination{})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)

	t.Run("huge page", func(t *testing.T) {
		page, err := f.svc.QueryAttendance(ctx, attendance.AttendanceQuery{}, core.Pagination{Page: math.MaxInt, PerPage: core.MaxPerPage})
		require.NoError(t, err)
		assert.Empty(t, page.Data)
		assert.Equal(t, core.MaxPage, page.Meta.Page)
		assert.Equal(t, 3, page.Meta.Total)

		page, err = f.svc.StudentHistory(ctx, f.s1.ID, attendance.AttendanceQuery{}, core.Pagination{Page: math.MaxInt})
		require.NoError(t, err)
		assert.Empty(t, page.Data)
	})
}

func TestService_editRequests(t *testing.T) {
	f := setup(t, monday)
	ctx := context.Background()

	_, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
		ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: records("ABSENT", f.s1, f.s2),
	})
	require.NoError(t, err)
	recs := f.scheduleRecords(t)
	require.Len(t, recs, 2)
	rec1, rec2 := recs[0], recs[1]

	unlocked, _, err := f.st.Attendance.UpsertScheduleAttendance(ctx, attendance.ScheduleAttendance{
		ScheduleID: f.schedule.ID, StudentID: f.s1.ID, SessionID: f.sess.ID, Date: core.MustParseDate("2024-02-26"),
		Status: attendance.StatusPresent, MarkedBy: f.teacherUsr.ID,
	})
	require.NoError(t, err)

	newReq := func(id string, changes map[string]interface{}) attendance.NewEditRequest {
		return attendance.NewEditRequest{AttendanceID: id, AttendanceType: "SCHEDULE_BASED", ProposedChanges: changes, Reason: "arrived late"}
	}
	present := map[string]interface{}{"status": "present"}

	createTests := []struct {
		name    string
		userID  string
		ner     attendance.NewEditRequest
		wantErr func(error) bool
	}{
		{name: "unknown type", userID: f.teacherUsr.ID, ner: attendance.NewEditRequest{AttendanceID: rec1.ID, AttendanceType: "WEEKLY", ProposedChanges: present, Reason: "x"}, wantErr: core.IsBadRequest},
		{name: "unknown record", userID: f.teacherUsr.ID, ner: newReq("lol", present), wantErr: core.IsNotFound},
		{name: "record not locked", userID: f.teacherUsr.ID, ner: newReq(unlocked.ID, present), wantErr: func(err error) bool { return err == attendance.ErrNotLocked }},
		{name: "not the marker", userID: f.otherUsr.ID, ner: newReq(rec1.ID, present), wantErr: func(err error) bool { return err == attendance.ErrNotMarker }},
		{name: "no changes", userID: f.teacherUsr.ID, ner: newReq(rec1.ID, map[string]interface{}{}), wantErr: core.IsBadRequest},
		{name: "field not editable", userID: f.teacherUsr.ID, ner: newReq(rec1.ID, map[string]interface{}{"date": "2024-03-01"}), wantErr: core.IsBadRequest},
		{name: "daily only status", userID: f.teacherUsr.ID, ner: newReq(rec1.ID, map[string]interface{}{"status": "HALF_DAY"}), wantErr: core.IsBadRequest},
		{name: "non string value", userID: f.teacherUsr.ID, ner: newReq(rec1.ID, map[string]interface{}{"notes": 42}), wantErr: core.IsBadRequest},
	}
	for _, tt := range createTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateEditRequest(ctx, tt.userID, tt.ner)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}
	assert.Empty(t, f.notifier.Intents())

	req1, err := f.svc.CreateEditRequest(ctx, f.teacherUsr.ID, newReq(rec1.ID, map[string]interface{}{"status": "present", "notes": "was in the library"}))
	require.NoError(t, err)
	assert.Equal(t, attendance.RequestPending, req1.Status)
	assert.Equal(t, attendance.TypeScheduleBased, req1.AttendanceType)

	intents := f.notifier.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, []string{user.RoleAdmin}, intents[0].RecipientRoles)
	assert.Equal(t, notification.TypeEditRequestCreated, intents[0].Type)
	assert.Equal(t, req1.ID, intents[0].Metadata["request_id"])

	_, err = f.svc.CreateEditRequest(ctx, f.teacherUsr.ID, newReq(rec1.ID, present))
	assert.Equal(t, attendance.ErrPendingRequestExists, err)

	req2, err := f.svc.CreateEditRequest(ctx, f.teacherUsr.ID, newReq(rec2.ID, map[string]interface{}{"status": "EXCUSED"}))
	require.NoError(t, err)

	t.Run("listing", func(t *testing.T) {
		mine, err := f.svc.ListMyEditRequests(ctx, f.teacherUsr.ID)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, req2.ID, mine[0].ID)

		none, err := f.svc.ListMyEditRequests(ctx, f.otherUsr.ID)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	f.notifier.Reset()
	reviewTests := []struct {
		name    string
		reqID   string
		rer     attendance.ReviewEditRequest
		wantErr func(error) bool
	}{
		{name: "invalid status", reqID: req1.ID, rer: attendance.ReviewEditRequest{Status: "MAYBE"}, wantErr: core.IsBadRequest},
		{name: "unknown request", reqID: "lol", rer: attendance.ReviewEditRequest{Status: "APPROVED"}, wantErr: core.IsNotFound},
		{name: "reject without comment", reqID: req1.ID, rer: attendance.ReviewEditRequest{Status: "REJECTED"}, wantErr: func(err error) bool { return err == attendance.ErrCommentRequired }},
		{name: "reject with blank comment", reqID: req1.ID, rer: attendance.ReviewEditRequest{Status: "rejected", AdminComment: strPtr("  ")}, wantErr: func(err error) bool { return err == attendance.ErrCommentRequired }},
	}
	for _, tt := range reviewTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReviewEditRequest(ctx, tt.reqID, f.admin.ID, tt.rer)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}
	assert.Empty(t, f.notifier.Intents())

	t.Run("approve", func(t *testing.T) {
		res, err := f.svc.ReviewEditRequest(ctx, req1.ID, f.admin.ID, attendance.ReviewEditRequest{Status: "approved"})
		require.NoError(t, err)
		assert.Equal(t, attendance.ReviewResult{RequestID: req1.ID, Status: attendance.RequestApproved}, res)

		rec, err := f.st.Attendance.GetScheduleAttendance(ctx, rec1.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusPresent, rec.Status)
		assert.Equal(t, "was in the library", *rec.Notes)
		assert.True(t, rec.IsLocked)
		assert.Equal(t, rec1.MarkedAt, rec.MarkedAt)

		req, err := f.svc.GetEditRequest(ctx, req1.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.RequestApproved, req.Status)
		require.NotNil(t, req.Reviewer)
		assert.Equal(t, attendance.Reviewer{ID: f.admin.ID, Name: "Admin", Email: "admin@test.cd"}, *req.Reviewer)

		intents := f.notifier.Intents()
		require.Len(t, intents, 1)
		assert.Equal(t, []string{f.teacherUsr.ID}, intents[0].RecipientIDs)
		assert.Equal(t, notification.TypeEditRequestReviewed, intents[0].Type)
	})

	t.Run("review twice", func(t *testing.T) {
		_, err := f.svc.ReviewEditRequest(ctx, req1.ID, f.admin.ID, attendance.ReviewEditRequest{Status: "REJECTED", AdminComment: strPtr("no")})
		assert.True(t, core.IsBadRequest(err))
	})

	t.Run("a new request once reviewed", func(t *testing.T) {
		_, err := f.svc.CreateEditRequest(ctx, f.teacherUsr.ID, newReq(rec1.ID, map[string]interface{}{"notes": "typo"}))
		assert.NoError(t, err)
	})

	t.Run("stale approval", func(t *testing.T) {
		rec, err := f.st.Attendance.GetScheduleAttendance(ctx, rec2.ID)
		require.NoError(t, err)
		rec.UpdatedAt = req2.CreatedAt.Add(time.Minute)
		_, err = f.st.Attendance.UpdateScheduleAttendance(ctx, rec)
		require.NoError(t, err)

		_, err = f.svc.ReviewEditRequest(ctx, req2.ID, f.admin.ID, attendance.ReviewEditRequest{Status: "APPROVED"})
		assert.Equal(t, attendance.ErrStaleEditRequest, err)

		req, err := f.svc.GetEditRequest(ctx, req2.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.RequestPending, req.Status)
		assert.Nil(t, req.Reviewer)
	})

	t.Run("reject", func(t *testing.T) {
		f.notifier.Reset()
		res, err := f.svc.ReviewEditRequest(ctx, req2.ID, f.admin.ID, attendance.ReviewEditRequest{Status: "REJECTED", AdminComment: strPtr(" record is correct ")})
		require.NoError(t, err)
		assert.Equal(t, attendance.RequestRejected, res.Status)

		rec, err := f.st.Attendance.GetScheduleAttendance(ctx, rec2.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusAbsent, rec.Status)

		req, err := f.svc.GetEditRequest(ctx, req2.ID)
		require.NoError(t, err)
		assert.Equal(t, "record is correct", *req.AdminComment)

		intents := f.notifier.Intents()
		require.Len(t, intents, 1)
		assert.Contains(t, intents[0].Message, "rejected")
		assert.Contains(t, intents[0].Message, "record is correct")
	})

	t.Run("query", func(t *testing.T) {
		reqs, meta, err := f.svc.QueryEditRequests(ctx, attendance.EditRequestFilter{Status: "pending"}, core.Pagination{})
		require.NoError(t, err)
		assert.Len(t, reqs, 1)
		assert.Equal(t, 1, meta.Total)

		reqs, meta, err = f.svc.QueryEditRequests(ctx, attendance.EditRequestFilter{AttendanceType: "daily"}, core.Pagination{})
		require.NoError(t, err)
		assert.Empty(t, reqs)
		assert.Equal(t, 0, meta.Total)

		reqs, meta, err = f.svc.QueryEditRequests(ctx, attendance.EditRequestFilter{RequestedBy: f.teacherUsr.ID}, core.Pagination{PerPage: 2})
		require.NoError(t, err)
		assert.Len(t, reqs, 2)
		assert.Equal(t, core.PageMeta{Page: 1, PerPage: 2, Total: 3, TotalPages: 2, HasNext: true}, meta)
	})

	_, err = f.svc.GetEditRequest(ctx, "lol")
	assert.Equal(t, attendance.ErrEditRequestNotFound, err)
}

func TestService_dailyEditRequest(t *testing.T) {
	f := setup(t, monday)
	ctx := context.Background()

	_, err := f.svc.Mark(ctx, f.teacherUsr.ID, attendance.MarkAttendance{
		ClassID: f.class.ID, Date: "2024-03-04", Records: records("ABSENT", f.s1),
	})
	require.NoError(t, err)
	recs, _, err := f.st.Attendance.QueryDailyAttendance(ctx, attendance.RecordFilter{ClassID: f.class.ID}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = f.svc.CreateEditRequest(ctx, f.teacherUsr.ID, attendance.NewEditRequest{
		AttendanceID: recs[0].ID, AttendanceType: "daily", Reason: "left early",
		ProposedChanges: map[string]interface{}{"check_out_time": "noon"},
	})
	assert.True(t, core.IsBadRequest(err))

	req, err := f.svc.CreateEditRequest(ctx, f.teacherUsr.ID, attendance.NewEditRequest{
		AttendanceID: recs[0].ID, AttendanceType: "daily", Reason: "left early",
		ProposedChanges: map[string]interface{}{"status": "half_day", "check_out_time": "12:00:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.TypeDaily, req.AttendanceType)

	_, err = f.svc.ReviewEditRequest(ctx, req.ID, f.admin.ID, attendance.ReviewEditRequest{Status: "APPROVED"})
	require.NoError(t, err)

	rec, err := f.st.Attendance.GetDailyAttendance(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusHalfDay, rec.Status)
	require.NotNil(t, rec.CheckOutTime)
	assert.Equal(t, time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC), *rec.CheckOutTime)
}

func strPtr(s string) *string { return &s }
