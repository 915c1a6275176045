package school

import "time"

type Teacher struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Student struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	RegistrationNumber string    `json:"registration_number"`
	FirstName          string    `json:"first_name"`
	MiddleName         *string   `json:"middle_name,omitempty"`
	LastName           string    `json:"last_name"`
	CreatedAt          time.Time `json:"created_at"`
}

type Class struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Arm       *string   `json:"arm,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Schedule is a weekly timetable slot of a class, taught by a teacher.
type Schedule struct {
	ID        string       `json:"id"`
	ClassID   string       `json:"class_id"`
	TeacherID *string      `json:"teacher_id,omitempty"`
	Subject   string       `json:"subject"`
	DayOfWeek time.Weekday `json:"day_of_week"`
	StartTime string       `json:"start_time"` // HH:MM:SS
	EndTime   string       `json:"end_time"`   // HH:MM:SS
}

// IsTaughtBy reports whether teacherID is assigned to the slot.
func (s Schedule) IsTaughtBy(teacherID string) bool {
	return s.TeacherID != nil && *s.TeacherID == teacherID
}

// ClassTeacher assigns a teacher as the form teacher of a class.
type ClassTeacher struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	TeacherID string    `json:"teacher_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Enrollment struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	IsActive   bool      `json:"is_active"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
