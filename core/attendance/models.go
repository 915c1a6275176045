package attendance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

// AttendanceType tags the kind of an attendance record.
type AttendanceType string

const (
	TypeScheduleBased AttendanceType = "SCHEDULE_BASED"
	TypeDaily         AttendanceType = "DAILY"
)

func ParseType(s string) (AttendanceType, bool) {
	switch t := AttendanceType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeScheduleBased, TypeDaily:
		return t, true
	}
	return "", false
}

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"
	StatusHalfDay Status = "HALF_DAY" // daily attendance only
)

var (
	ScheduleStatuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}
	DailyStatuses    = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusHalfDay}
)

// ParseStatus normalizes s to its canonical casing.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// Allows reports whether s is a valid status for records of type t.
func (t AttendanceType) Allows(s Status) bool {
	statuses := ScheduleStatuses
	if t == TypeDaily {
		statuses = DailyStatuses
	}
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// ScheduleAttendance is the attendance of a student to one timetable period.
type ScheduleAttendance struct {
	ID         string    `json:"id" db:"id"`
	ScheduleID string    `json:"schedule_id" db:"schedule_id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Date       core.Date `json:"date" db:"date"`
	Status     Status    `json:"status" db:"status"`
	MarkedBy   string    `json:"marked_by" db:"marked_by"`
	MarkedAt   time.Time `json:"marked_at" db:"marked_at"`
	Notes      *string   `json:"notes" db:"notes"`
	IsLocked   bool      `json:"is_locked" db:"is_locked"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DailyAttendance is the attendance of a student to their class for a whole day.
type DailyAttendance struct {
	ID           string     `json:"id" db:"id"`
	ClassID      string     `json:"class_id" db:"class_id"`
	StudentID    string     `json:"student_id" db:"student_id"`
	SessionID    string     `json:"session_id" db:"session_id"`
	Date         core.Date  `json:"date" db:"date"`
	Status       Status     `json:"status" db:"status"`
	CheckInTime  *time.Time `json:"check_in_time" db:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time" db:"check_out_time"`
	MarkedBy     string     `json:"marked_by" db:"marked_by"`
	MarkedAt     time.Time  `json:"marked_at" db:"marked_at"`
	Notes        *string    `json:"notes" db:"notes"`
	IsLocked     bool       `json:"is_locked" db:"is_locked"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// MarkAttendance is a batch of attendances for one schedule or one class, on one day.
// Exactly one of ScheduleID and ClassID must be set.
type MarkAttendance struct {
	ScheduleID string       `json:"schedule_id" validate:"omitempty,uuid"`
	ClassID    string       `json:"class_id" validate:"omitempty,uuid"`
	Date       string       `json:"date" validate:"required,date"`
	Records    []MarkRecord `json:"attendance_records" validate:"required,min=1,dive"`
}

type MarkRecord struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	Status    string  `json:"status" validate:"required,daily_status"`
	Notes     *string `json:"notes"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.clean()
	return validate.Struct(ma)
}

func (ma *MarkAttendance) clean() {
	ma.ScheduleID = core.CleanString(ma.ScheduleID, true /* lower */)
	ma.ClassID = core.CleanString(ma.ClassID, true /* lower */)
	ma.Date = core.CleanString(ma.Date)
	for i := range ma.Records {
		ma.Records[i].StudentID = core.CleanString(ma.Records[i].StudentID, true /* lower */)
		ma.Records[i].Status = string(ParseStatus(ma.Records[i].Status))
	}
}

func (ma *MarkAttendance) recordType() AttendanceType {
	if ma.ScheduleID != "" {
		return TypeScheduleBased
	}
	return TypeDaily
}

type MarkResult struct {
	Marked  int `json:"marked"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// UpdateAttendance is a partial update of an unlocked ScheduleAttendance.
type UpdateAttendance struct {
	Status *string `json:"status" validate:"omitempty,attendance_status"`
	Notes  *string `json:"notes"`
}

func (ua *UpdateAttendance) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

func (ua UpdateAttendance) patch() Patch {
	p := Patch{Notes: ua.Notes}
	if ua.Status != nil {
		s := ParseStatus(*ua.Status)
		p.Status = &s
	}
	return p
}

// UpdateDailyAttendance is a partial update of an unlocked DailyAttendance.
// Check-in and check-out times are HH:MM:SS on the record's day.
type UpdateDailyAttendance struct {
	Status       *string `json:"status" validate:"omitempty,daily_status"`
	Notes        *string `json:"notes"`
	CheckInTime  *string `json:"check_in_time" validate:"omitempty,clock"`
	CheckOutTime *string `json:"check_out_time" validate:"omitempty,clock"`
}

func (ua *UpdateDailyAttendance) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

func (ua UpdateDailyAttendance) patch() Patch {
	p := Patch{Notes: ua.Notes, CheckInTime: ua.CheckInTime, CheckOutTime: ua.CheckOutTime}
	if ua.Status != nil {
		s := ParseStatus(*ua.Status)
		p.Status = &s
	}
	return p
}

// Patch holds the fields to change on a record; nil fields are left untouched.
type Patch struct {
	Status       *Status
	Notes        *string
	CheckInTime  *string // HH:MM:SS, daily only
	CheckOutTime *string // HH:MM:SS, daily only
}

func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.Notes == nil && p.CheckInTime == nil && p.CheckOutTime == nil
}

// RecordFilter selects attendance records; zero fields do not filter.
type RecordFilter struct {
	ScheduleID string
	ClassID    string
	StudentID  string
	SessionID  string
	Status     Status
	From       core.Date // inclusive
	To         core.Date // inclusive
}

func (f RecordFilter) matchesDate(d core.Date) bool {
	if !f.From.IsZero() && d.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && d.After(f.To.Time) {
		return false
	}
	return true
}

// Matches reports whether rec passes the filter.
func (f RecordFilter) MatchesSchedule(rec ScheduleAttendance) bool {
	return (f.ScheduleID == "" || rec.ScheduleID == f.ScheduleID) &&
		(f.StudentID == "" || rec.StudentID == f.StudentID) &&
		(f.SessionID == "" || rec.SessionID == f.SessionID) &&
		(f.Status == "" || rec.Status == f.Status) &&
		f.matchesDate(rec.Date)
}

func (f RecordFilter) MatchesDaily(rec DailyAttendance) bool {
	return (f.ClassID == "" || rec.ClassID == f.ClassID) &&
		(f.StudentID == "" || rec.StudentID == f.StudentID) &&
		(f.SessionID == "" || rec.SessionID == f.SessionID) &&
		(f.Status == "" || rec.Status == f.Status) &&
		f.matchesDate(rec.Date)
}

// AttendanceQuery holds the listing parameters of schedule-based attendances.
type AttendanceQuery struct {
	ScheduleID string `query:"schedule_id" json:"schedule_id" validate:"omitempty,uuid"`
	StudentID  string `query:"student_id" json:"student_id" validate:"omitempty,uuid"`
	Status     string `query:"status" json:"status" validate:"omitempty,attendance_status"`
	StartDate  string `query:"start_date" json:"start_date" validate:"omitempty,date"`
	EndDate    string `query:"end_date" json:"end_date" validate:"omitempty,date"`
}

func (q *AttendanceQuery) Validate(validate *validator.Validate) error {
	q.ScheduleID = core.CleanString(q.ScheduleID, true /* lower */)
	q.StudentID = core.CleanString(q.StudentID, true /* lower */)
	q.Status = core.CleanString(q.Status)
	if err := validate.Struct(q); err != nil {
		return err
	}
	if q.StartDate != "" && q.EndDate != "" && q.EndDate < q.StartDate {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end_date must not be before start_date"})
	}
	return nil
}

// Filter converts q, which must be valid, into a RecordFilter.
func (q AttendanceQuery) Filter() RecordFilter {
	f := RecordFilter{
		ScheduleID: q.ScheduleID,
		StudentID:  q.StudentID,
		Status:     ParseStatus(q.Status),
	}
	if q.StartDate != "" {
		f.From = core.MustParseDate(q.StartDate)
	}
	if q.EndDate != "" {
		f.To = core.MustParseDate(q.EndDate)
	}
	return f
}

// Page is one page of records with its pagination metadata.
type Page struct {
	Data []ScheduleAttendance `json:"data"`
	Meta core.PageMeta        `json:"meta"`
}

type MarkedStatus struct {
	IsMarked bool `json:"is_marked"`
	Count    int  `json:"count"`
}
