package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/tests"
)

type fixture struct {
	admin, teacher, other, parent user.User
	adminToken, teacherToken      string
	otherToken, parentToken       string
	sess                          session.Session
	class                         school.Class
	schedule                      school.Schedule
	studentA, studentB            school.Student
	today                         string
}

func setupSchool(t *testing.T) fixture {
	db.Flush()
	mailSvc.Reset()

	var f fixture
	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	f.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	f.other = testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	f.parent = testutil.CreateUser(t, usrRepo, "Parent", "parent", "parent@test.cd", "", []string{user.RoleParent}, true)
	f.adminToken = getToken(t, f.admin)
	f.teacherToken = getToken(t, f.teacher)
	f.otherToken = getToken(t, f.other)
	f.parentToken = getToken(t, f.parent)

	now := time.Now().UTC()
	sess := testutil.CreateSession(t, sessRepo, "2025/2026", session.StatusInactive, now.AddDate(0, -6, 0), now.AddDate(0, 6, 0))
	sess, err := session.NewService(db, sessRepo).Activate(context.Background(), sess.ID)
	require.NoError(t, err)
	f.sess = sess
	testutil.CreateTerm(t, sessRepo, sess.ID, session.FirstTerm, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))

	teacher := testutil.CreateTeacher(t, schoolRepo, f.teacher.ID, true)
	other := testutil.CreateTeacher(t, schoolRepo, f.other.ID, true)
	f.class = testutil.CreateClass(t, schoolRepo, sess.ID, "JSS 1")
	f.schedule = testutil.CreateSchedule(t, schoolRepo, f.class.ID, teacher.ID, "Maths", now.Weekday())
	testutil.AssignClassTeacher(t, schoolRepo, f.class.ID, teacher.ID, true)
	testutil.AssignClassTeacher(t, schoolRepo, f.class.ID, other.ID, false)

	f.studentA = testutil.CreateStudent(t, schoolRepo, "", "REG-001", "Amani", "Bahati")
	f.studentB = testutil.CreateStudent(t, schoolRepo, "", "REG-002", "Baraka", "Chausiku")
	testutil.Enroll(t, schoolRepo, f.class.ID, f.studentA.ID, true)
	testutil.Enroll(t, schoolRepo, f.class.ID, f.studentB.ID, true)

	f.today = core.DateOf(time.Now(), conf.Timezone).String()
	return f
}

func (f fixture) markBody(t *testing.T, scheduleID, classID, date string, status string, students ...school.Student) []byte {
	data := attendance.MarkAttendance{ScheduleID: scheduleID, ClassID: classID, Date: date}
	for _, s := range students {
		data.Records = append(data.Records, attendance.MarkRecord{StudentID: s.ID, Status: status})
	}
	return marchallObj(t, data)
}

func (f fixture) scheduleRecords(t *testing.T) []attendance.ScheduleAttendance {
	rec := do(http.MethodGet, fmt.Sprintf("/v1/attendance/schedule/%s?date=%s", f.schedule.ID, f.today), f.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var recs []attendance.ScheduleAttendance
	unmarshal(t, rec, &recs)
	return recs
}

func Test_attendanceAPI_mark(t *testing.T) {
	f := setupSchool(t)
	tomorrow := core.DateOf(time.Now().AddDate(0, 0, 1), conf.Timezone).String()

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/attendance",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Teacher required", method: http.MethodPost, path: "/v1/attendance", token: f.parentToken,
			body:     f.markBody(t, f.schedule.ID, "", f.today, "ABSENT", f.studentA),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "future date", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, f.schedule.ID, "", tomorrow, "ABSENT", f.studentA),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"date": "date cannot be in the future"}`),
		},
		{
			name: "HALF_DAY on a schedule", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, f.schedule.ID, "", f.today, "HALF_DAY", f.studentA),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "not the schedule's teacher", method: http.MethodPost, path: "/v1/attendance", token: f.otherToken,
			body:     f.markBody(t, f.schedule.ID, "", f.today, "ABSENT", f.studentA),
			wantCode: http.StatusForbidden,
		},
		{
			name: "inactive class teacher", method: http.MethodPost, path: "/v1/attendance", token: f.otherToken,
			body:     f.markBody(t, "", f.class.ID, f.today, "PRESENT", f.studentA),
			wantCode: http.StatusForbidden,
		},
		{
			name: "both schedule and class", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, f.schedule.ID, f.class.ID, f.today, "ABSENT", f.studentA),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "no records", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, f.schedule.ID, "", f.today, "ABSENT"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "schedule: A & B absent", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, f.schedule.ID, "", f.today, "absent", f.studentA, f.studentB),
			wantCode: http.StatusCreated, wantData: marchallObj(t, attendance.MarkResult{Marked: 2, Updated: 0, Total: 2}),
		},
		{
			name: "schedule: re-mark is locked", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, f.schedule.ID, "", f.today, "PRESENT", f.studentA),
			wantCode: http.StatusConflict,
		},
		{
			name: "daily: HALF_DAY", method: http.MethodPost, path: "/v1/attendance", token: f.teacherToken,
			body:     f.markBody(t, "", f.class.ID, f.today, "HALF_DAY", f.studentA),
			wantCode: http.StatusCreated, wantData: marchallObj(t, attendance.MarkResult{Marked: 1, Updated: 0, Total: 1}),
		},
	}
	runHTTPTests(t, tests)

	recs := f.scheduleRecords(t)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, attendance.StatusAbsent, rec.Status)
		assert.True(t, rec.IsLocked)
		assert.Equal(t, f.teacher.ID, rec.MarkedBy)
		assert.Equal(t, f.sess.ID, rec.SessionID)
	}

	t.Run("is marked", func(t *testing.T) {
		rec := do(http.MethodGet, fmt.Sprintf("/v1/attendance/schedule/%s/marked?date=%s", f.schedule.ID, f.today), f.teacherToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, attendance.MarkedStatus{IsMarked: true, Count: 2})}, rec)
	})

	t.Run("locked records cannot be patched", func(t *testing.T) {
		rec := do(http.MethodPatch, "/v1/attendance/schedule/"+recs[0].ID, f.teacherToken, []byte(`{"status": "PRESENT"}`))
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})
}

func Test_attendanceAPI_query(t *testing.T) {
	f := setupSchool(t)

	rec := do(http.MethodPost, "/v1/attendance", f.teacherToken, f.markBody(t, f.schedule.ID, "", f.today, "LATE", f.studentA, f.studentB))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	page := func(t *testing.T, path, token string) attendance.Page {
		rec := do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p attendance.Page
		unmarshal(t, rec, &p)
		return p
	}

	t.Run("admin required", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance", f.teacherToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("invalid filter", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance?start_date=2024-02-10&end_date=2024-02-01", f.adminToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"end_date": "end_date must not be before start_date"}`)}, rec)
	})
	t.Run("paginated", func(t *testing.T) {
		p := page(t, "/v1/attendance?per_page=1&page=2", f.adminToken)
		assert.Len(t, p.Data, 1)
		assert.Equal(t, core.PageMeta{Page: 2, PerPage: 1, Total: 2, TotalPages: 2, HasNext: false, HasPrev: true}, p.Meta)
	})
	t.Run("by status", func(t *testing.T) {
		assert.Equal(t, 2, page(t, "/v1/attendance?status=late", f.adminToken).Meta.Total)
		assert.Equal(t, 0, page(t, "/v1/attendance?status=ABSENT", f.adminToken).Meta.Total)
	})
	t.Run("student history", func(t *testing.T) {
		p := page(t, "/v1/attendance/students/"+f.studentA.ID, f.teacherToken)
		require.Len(t, p.Data, 1)
		assert.Equal(t, f.studentA.ID, p.Data[0].StudentID)
	})
}

func Test_attendanceAPI_editRequests(t *testing.T) {
	f := setupSchool(t)

	rec := do(http.MethodPost, "/v1/attendance", f.teacherToken, f.markBody(t, f.schedule.ID, "", f.today, "ABSENT", f.studentA))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	recs := f.scheduleRecords(t)
	require.Len(t, recs, 1)
	attID := recs[0].ID

	newRequest := func(changes map[string]interface{}) []byte {
		return marchallObj(t, attendance.NewEditRequest{
			AttendanceID:    attID,
			AttendanceType:  string(attendance.TypeScheduleBased),
			ProposedChanges: changes,
			Reason:          "Student arrived late with a note",
		})
	}

	tests := []httpTest{
		{
			name: "not the marker", method: http.MethodPost, path: "/v1/attendance/edit-requests", token: f.otherToken,
			body: newRequest(map[string]interface{}{"status": "PRESENT"}), wantCode: http.StatusForbidden,
		},
		{
			name: "field not editable", method: http.MethodPost, path: "/v1/attendance/edit-requests", token: f.teacherToken,
			body: newRequest(map[string]interface{}{"check_in_time": "08:00:00"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid status", method: http.MethodPost, path: "/v1/attendance/edit-requests", token: f.teacherToken,
			body: newRequest(map[string]interface{}{"status": "HALF_DAY"}), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, tests)

	var created echoapi.EditRequestCreated
	t.Run("create", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/attendance/edit-requests", f.teacherToken, newRequest(map[string]interface{}{"status": "present"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &created)
		require.NotEmpty(t, created.RequestID)
	})
	t.Run("duplicate pending request", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/attendance/edit-requests", f.teacherToken, newRequest(map[string]interface{}{"notes": "late"}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "a pending edit request already exists for this attendance record"}),
		}, rec)
	})
	t.Run("mine", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance/edit-requests/mine", f.teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var reqs []attendance.EditRequest
		unmarshal(t, rec, &reqs)
		require.Len(t, reqs, 1)
		assert.Equal(t, attendance.RequestPending, reqs[0].Status)
	})
	t.Run("admins are notified", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			var list echoapi.NotificationList
			rec := do(http.MethodGet, "/v1/notifications", f.adminToken)
			unmarshal(t, rec, &list)
			return len(list.Data) == 1 && list.Data[0].Type == notification.TypeEditRequestCreated
		}, time.Second, 10*time.Millisecond)
	})

	reviewPath := "/v1/attendance/edit-requests/" + created.RequestID + "/review"
	reviewTests := []httpTest{
		{
			name: "review: admin required", method: http.MethodPost, path: reviewPath, token: f.teacherToken,
			body: []byte(`{"status": "APPROVED"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "review: rejection needs a comment", method: http.MethodPost, path: reviewPath, token: f.adminToken,
			body: []byte(`{"status": "REJECTED", "admin_comment": "  "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"admin_comment": "admin_comment is required when rejecting a request"}`),
		},
		{
			name: "review: unknown status", method: http.MethodPost, path: reviewPath, token: f.adminToken,
			body: []byte(`{"status": "MAYBE"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "review: unknown request", method: http.MethodPost, path: "/v1/attendance/edit-requests/lol/review", token: f.adminToken,
			body: []byte(`{"status": "APPROVED"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "review: approve", method: http.MethodPost, path: reviewPath, token: f.adminToken,
			body: []byte(`{"status": "approved"}`), wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.ReviewResult{RequestID: created.RequestID, Status: attendance.RequestApproved}),
		},
		{
			name: "review: already reviewed", method: http.MethodPost, path: reviewPath, token: f.adminToken,
			body: []byte(`{"status": "APPROVED"}`), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, reviewTests)

	recs = f.scheduleRecords(t)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.StatusPresent, recs[0].Status)
	assert.True(t, recs[0].IsLocked)

	t.Run("retrieve", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance/edit-requests/"+created.RequestID, f.adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var req attendance.EditRequest
		unmarshal(t, rec, &req)
		assert.Equal(t, attendance.RequestApproved, req.Status)
		require.NotNil(t, req.Reviewer)
		assert.Equal(t, f.admin.ID, req.Reviewer.ID)
	})
	t.Run("query", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance/edit-requests?status=approved", f.adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var list echoapi.EditRequestList
		unmarshal(t, rec, &list)
		assert.Len(t, list.Data, 1)
		assert.Equal(t, 1, list.Meta.Total)
	})
	t.Run("query with malformed filter", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance/edit-requests", f.adminToken, []byte(`{"status": 1}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
	t.Run("requester is notified", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			var list echoapi.NotificationList
			rec := do(http.MethodGet, "/v1/notifications?unread=true", f.teacherToken)
			unmarshal(t, rec, &list)
			return len(list.Data) == 1 && list.Data[0].Type == notification.TypeEditRequestReviewed
		}, time.Second, 10*time.Millisecond)
		assert.Eventually(t, func() bool {
			for _, msg := range mailSvc.SentMessages() {
				if len(msg.To) == 1 && msg.To[0].Address == f.teacher.Email {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond)
	})
}

func Test_attendanceAPI_reports(t *testing.T) {
	f := setupSchool(t)

	rec := do(http.MethodPost, "/v1/attendance", f.teacherToken, f.markBody(t, "", f.class.ID, f.today, "PRESENT", f.studentA))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("class daily", func(t *testing.T) {
		rec := do(http.MethodGet, fmt.Sprintf("/v1/attendance/classes/%s/daily?date=%s", f.class.ID, f.today), f.teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.ClassDailyReport
		unmarshal(t, rec, &rep)
		assert.Equal(t, attendance.ClassDailySummary{TotalStudents: 2, PresentCount: 1, NotMarkedCount: 1}, rep.Summary)
	})
	t.Run("class daily: staff only", func(t *testing.T) {
		rec := do(http.MethodGet, fmt.Sprintf("/v1/attendance/classes/%s/daily?date=%s", f.class.ID, f.today), f.parentToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("child monthly", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance/parents/children/REG-001/monthly", f.parentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.MonthlyReport
		unmarshal(t, rec, &rep)
		assert.Equal(t, f.studentA.ID, rep.StudentID)
		assert.Equal(t, 1, rep.DaysPresent)
	})
	t.Run("child monthly: unknown child", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/attendance/parents/children/REG-404/monthly", f.parentToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("term summary", func(t *testing.T) {
		rec := do(http.MethodGet, fmt.Sprintf("/v1/attendance/students/%s/term?session_id=%s&term=first", f.studentA.ID, f.sess.ID), f.parentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.TermSummary
		unmarshal(t, rec, &rep)
		assert.Equal(t, session.FirstTerm, rep.Term)
		assert.Equal(t, 1, rep.DaysPresent)
	})
	t.Run("term summary: bad term", func(t *testing.T) {
		rec := do(http.MethodGet, fmt.Sprintf("/v1/attendance/students/%s/term?session_id=%s&term=fourth", f.studentA.ID, f.sess.ID), f.parentToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_notificationAPI_preferences(t *testing.T) {
	f := setupSchool(t)

	tests := []httpTest{
		{
			name: "defaults", path: "/v1/notifications/preferences", token: f.parentToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, notification.DefaultPreference(f.parent.ID)),
		},
		{name: "mark unknown read", method: http.MethodPost, path: "/v1/notifications/lol/read", token: f.parentToken, wantCode: http.StatusNotFound},
		{name: "malformed unread flag", path: "/v1/notifications?unread=maybe", token: f.parentToken, wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, tests)

	t.Run("update", func(t *testing.T) {
		rec := do(http.MethodPut, "/v1/notifications/preferences", f.parentToken, []byte(`{"email": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var pref notification.Preference
		unmarshal(t, rec, &pref)
		assert.False(t, pref.Email)
		assert.True(t, pref.InApp)
	})
}
