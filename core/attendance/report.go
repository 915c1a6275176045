package attendance

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
)

type (
	DayDetail struct {
		Date         core.Date  `json:"date"`
		Status       Status     `json:"status"`
		CheckInTime  *time.Time `json:"check_in_time,omitempty"`
		CheckOutTime *time.Time `json:"check_out_time,omitempty"`
		Notes        *string    `json:"notes,omitempty"`
	}

	MonthlyReport struct {
		StudentID        string      `json:"student_id"`
		Month            string      `json:"month"`
		Year             int         `json:"year"`
		TotalDaysInMonth int         `json:"total_days_in_month"`
		DaysPresent      int         `json:"days_present"` // includes late days
		DaysAbsent       int         `json:"days_absent"`
		DaysLate         int         `json:"days_late"`
		DaysExcused      int         `json:"days_excused"`
		DaysHalfDay      int         `json:"days_half_day"`
		Details          []DayDetail `json:"attendance_details"`
	}

	TermSummary struct {
		StudentID       string           `json:"student_id"`
		SessionID       string           `json:"session_id"`
		Term            session.TermName `json:"term"`
		StartDate       core.Date        `json:"start_date"`
		EndDate         core.Date        `json:"end_date"`
		TotalSchoolDays int              `json:"total_school_days"`
		DaysPresent     int              `json:"days_present"`
		DaysAbsent      int              `json:"days_absent"`
	}

	ClassDailyStudent struct {
		StudentID    string     `json:"student_id"`
		FirstName    string     `json:"first_name"`
		MiddleName   *string    `json:"middle_name,omitempty"`
		LastName     string     `json:"last_name"`
		AttendanceID *string    `json:"attendance_id,omitempty"`
		Status       *Status    `json:"status,omitempty"`
		CheckInTime  *time.Time `json:"check_in_time,omitempty"`
		CheckOutTime *time.Time `json:"check_out_time,omitempty"`
		Notes        *string    `json:"notes,omitempty"`
	}

	ClassDailySummary struct {
		TotalStudents  int `json:"total_students"`
		PresentCount   int `json:"present_count"`
		AbsentCount    int `json:"absent_count"`
		LateCount      int `json:"late_count"`
		ExcusedCount   int `json:"excused_count"`
		HalfDayCount   int `json:"half_day_count"`
		NotMarkedCount int `json:"not_marked_count"`
	}

	ClassDailyReport struct {
		ClassID  string              `json:"class_id"`
		Date     core.Date           `json:"date"`
		Students []ClassDailyStudent `json:"students"`
		Summary  ClassDailySummary   `json:"summary"`
	}

	TermDetail struct {
		Date    core.Date `json:"date"`
		Status  Status    `json:"status"`
		WasLate bool      `json:"was_late"`
	}

	ClassTermStudent struct {
		StudentID       string       `json:"student_id"`
		FirstName       string       `json:"first_name"`
		MiddleName      *string      `json:"middle_name,omitempty"`
		LastName        string       `json:"last_name"`
		TotalSchoolDays int          `json:"total_school_days"`
		DaysPresent     int          `json:"days_present"`
		DaysAbsent      int          `json:"days_absent"`
		DaysExcused     int          `json:"days_excused"`
		Details         []TermDetail `json:"attendance_details"`
	}

	ClassTermSummary struct {
		TotalStudents   int `json:"total_students"`
		TotalSchoolDays int `json:"total_school_days"`
	}

	ClassTermReport struct {
		ClassID   string             `json:"class_id"`
		SessionID string             `json:"session_id"`
		Term      session.TermName   `json:"term"`
		StartDate core.Date          `json:"start_date"`
		EndDate   core.Date          `json:"end_date"`
		Students  []ClassTermStudent `json:"students"`
		Summary   ClassTermSummary   `json:"summary"`
	}

	// statusCounts tallies records by status. Late records are not counted as present here.
	statusCounts struct {
		present, absent, late, excused, halfDay int
	}
)

func countStatuses(recs []DailyAttendance) statusCounts {
	var c statusCounts
	for _, r := range recs {
		switch r.Status {
		case StatusPresent:
			c.present++
		case StatusAbsent:
			c.absent++
		case StatusLate:
			c.late++
		case StatusExcused:
			c.excused++
		case StatusHalfDay:
			c.halfDay++
		}
	}
	return c
}

// attended counts the days a student was in school, on time or late.
func (c statusCounts) attended() int { return c.present + c.late }

func summarizeMonth(studentID string, month time.Time, recs []DailyAttendance) MonthlyReport {
	first, last := core.MonthBounds(month)
	c := countStatuses(recs)
	details := make([]DayDetail, 0, len(recs))
	for _, r := range sortedByDate(recs) {
		details = append(details, DayDetail{
			Date:         r.Date,
			Status:       r.Status,
			CheckInTime:  r.CheckInTime,
			CheckOutTime: r.CheckOutTime,
			Notes:        r.Notes,
		})
	}
	return MonthlyReport{
		StudentID:        studentID,
		Month:            first.Month().String(),
		Year:             first.Year(),
		TotalDaysInMonth: last.Day(),
		DaysPresent:      c.attended(),
		DaysAbsent:       c.absent,
		DaysLate:         c.late,
		DaysExcused:      c.excused,
		DaysHalfDay:      c.halfDay,
		Details:          details,
	}
}

// summarizeTerm counts every weekday of the term as a school day. Excused and half days count as neither present nor absent.
func summarizeTerm(studentID string, term session.Term, recs []DailyAttendance) TermSummary {
	c := countStatuses(recs)
	return TermSummary{
		StudentID:       studentID,
		SessionID:       term.SessionID,
		Term:            term.Name,
		StartDate:       core.NewDate(term.StartDate),
		EndDate:         core.NewDate(term.EndDate),
		TotalSchoolDays: core.CountWeekdays(term.StartDate, term.EndDate),
		DaysPresent:     c.attended(),
		DaysAbsent:      c.absent,
	}
}

func summarizeClassDay(classID string, date core.Date, students []school.Student, recs []DailyAttendance) ClassDailyReport {
	byStudent := make(map[string]DailyAttendance, len(recs))
	for _, r := range recs {
		byStudent[r.StudentID] = r
	}

	rep := ClassDailyReport{
		ClassID:  classID,
		Date:     date,
		Students: make([]ClassDailyStudent, 0, len(students)),
	}
	marked := make([]DailyAttendance, 0, len(recs))
	for _, s := range students {
		row := ClassDailyStudent{
			StudentID:  s.ID,
			FirstName:  s.FirstName,
			MiddleName: s.MiddleName,
			LastName:   s.LastName,
		}
		if r, ok := byStudent[s.ID]; ok {
			id, status := r.ID, r.Status
			row.AttendanceID = &id
			row.Status = &status
			row.CheckInTime = r.CheckInTime
			row.CheckOutTime = r.CheckOutTime
			row.Notes = r.Notes
			marked = append(marked, r)
		}
		rep.Students = append(rep.Students, row)
	}

	c := countStatuses(marked)
	rep.Summary = ClassDailySummary{
		TotalStudents:  len(students),
		PresentCount:   c.present,
		AbsentCount:    c.absent,
		LateCount:      c.late,
		ExcusedCount:   c.excused,
		HalfDayCount:   c.halfDay,
		NotMarkedCount: len(students) - len(marked),
	}
	return rep
}

// summarizeClassTerm counts as school days the distinct days attendance was taken in the class.
func summarizeClassTerm(classID string, term session.Term, students []school.Student, recs []DailyAttendance) ClassTermReport {
	days := make(map[string]bool)
	byStudent := make(map[string][]DailyAttendance)
	for _, r := range sortedByDate(recs) {
		days[r.Date.String()] = true
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	rep := ClassTermReport{
		ClassID:   classID,
		SessionID: term.SessionID,
		Term:      term.Name,
		StartDate: core.NewDate(term.StartDate),
		EndDate:   core.NewDate(term.EndDate),
		Students:  make([]ClassTermStudent, 0, len(students)),
		Summary:   ClassTermSummary{TotalStudents: len(students), TotalSchoolDays: len(days)},
	}
	for _, s := range students {
		own := byStudent[s.ID]
		c := countStatuses(own)
		details := make([]TermDetail, 0, len(own))
		for _, r := range own {
			details = append(details, TermDetail{Date: r.Date, Status: r.Status, WasLate: r.Status == StatusLate})
		}
		rep.Students = append(rep.Students, ClassTermStudent{
			StudentID:       s.ID,
			FirstName:       s.FirstName,
			MiddleName:      s.MiddleName,
			LastName:        s.LastName,
			TotalSchoolDays: len(days),
			DaysPresent:     c.attended(),
			DaysAbsent:      c.absent,
			DaysExcused:     c.excused,
			Details:         details,
		})
	}
	return rep
}

// sortedByDate returns a copy of recs, oldest day first.
func sortedByDate(recs []DailyAttendance) []DailyAttendance {
	sorted := make([]DailyAttendance, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date.Time) })
	return sorted
}

func parseTerm(term string) (session.TermName, error) {
	name, ok := session.ParseTermName(term)
	if !ok {
		return "", core.NewValidationError(
			errors.Errorf("invalid term %q", term),
			core.FieldError{Field: "term", Error: "term must be one of FIRST, SECOND, THIRD"},
		)
	}
	return name, nil
}

// StudentMonthly reports a student's daily attendance over the current month of the active session.
func (svc *Service) StudentMonthly(ctx context.Context, studentID string) (MonthlyReport, error) {
	if _, err := svc.dir.Student(ctx, studentID); err != nil {
		return MonthlyReport{}, err
	}
	return svc.monthly(ctx, studentID)
}

// ParentChildMonthly is StudentMonthly for the student holding registration number regNumber.
func (svc *Service) ParentChildMonthly(ctx context.Context, regNumber string) (MonthlyReport, error) {
	s, err := svc.dir.StudentByRegistrationNumber(ctx, regNumber)
	if err != nil {
		return MonthlyReport{}, err
	}
	return svc.monthly(ctx, s.ID)
}

func (svc *Service) monthly(ctx context.Context, studentID string) (MonthlyReport, error) {
	sess, err := svc.cal.ActiveSession(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	month := svc.today().Time
	first, last := core.MonthBounds(month)
	recs, _, err := svc.repo.QueryDailyAttendance(ctx, RecordFilter{
		StudentID: studentID,
		SessionID: sess.ID,
		From:      core.NewDate(first),
		To:        core.NewDate(last),
	}, nil)
	if err != nil {
		return MonthlyReport{}, errors.Wrap(err, "querying daily attendance")
	}
	return summarizeMonth(studentID, month, recs), nil
}

func (svc *Service) StudentTermSummary(ctx context.Context, studentID, sessionID, term string) (TermSummary, error) {
	name, err := parseTerm(term)
	if err != nil {
		return TermSummary{}, err
	}
	t, err := svc.cal.GetTerm(ctx, sessionID, name)
	if err != nil {
		return TermSummary{}, err
	}
	recs, _, err := svc.repo.QueryDailyAttendance(ctx, RecordFilter{
		StudentID: studentID,
		SessionID: sessionID,
		From:      core.NewDate(t.StartDate),
		To:        core.NewDate(t.EndDate),
	}, nil)
	if err != nil {
		return TermSummary{}, errors.Wrap(err, "querying daily attendance")
	}
	return summarizeTerm(studentID, t, recs), nil
}

// ClassDaily reports the daily attendance of every student enrolled in classID on date.
func (svc *Service) ClassDaily(ctx context.Context, classID, date string) (ClassDailyReport, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return ClassDailyReport{}, err
	}
	students, err := svc.enrolled(ctx, classID)
	if err != nil {
		return ClassDailyReport{}, err
	}
	recs, _, err := svc.repo.QueryDailyAttendance(ctx, RecordFilter{ClassID: classID, From: d, To: d}, nil)
	if err != nil {
		return ClassDailyReport{}, errors.Wrap(err, "querying daily attendance")
	}
	return summarizeClassDay(classID, d, students, recs), nil
}

func (svc *Service) ClassTerm(ctx context.Context, classID, sessionID, term string) (ClassTermReport, error) {
	name, err := parseTerm(term)
	if err != nil {
		return ClassTermReport{}, err
	}
	t, err := svc.cal.GetTerm(ctx, sessionID, name)
	if err != nil {
		return ClassTermReport{}, err
	}
	students, err := svc.enrolled(ctx, classID)
	if err != nil {
		return ClassTermReport{}, err
	}
	recs, _, err := svc.repo.QueryDailyAttendance(ctx, RecordFilter{
		ClassID: classID,
		From:    core.NewDate(t.StartDate),
		To:      core.NewDate(t.EndDate),
	}, nil)
	if err != nil {
		return ClassTermReport{}, errors.Wrap(err, "querying daily attendance")
	}
	return summarizeClassTerm(classID, t, students, recs), nil
}

func (svc *Service) enrolled(ctx context.Context, classID string) ([]school.Student, error) {
	students, err := svc.dir.EnrolledStudents(ctx, classID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, ErrNoStudentsEnrolled
	}
	return students, nil
}
