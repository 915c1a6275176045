package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database/inmem"
)

// Store bundles an in-memory DB with every repository built on it.
type Store struct {
	DB         *inmemdb.DB
	Users      user.Repository
	Sessions   session.Repository
	School     school.Repository
	Attendance attendance.Repository
	Notifs     notification.Repository
}

func NewStore(t *testing.T) *Store {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	return &Store{
		DB:         db,
		Users:      inmemdb.NewUserRepository(db),
		Sessions:   inmemdb.NewSessionRepository(db),
		School:     inmemdb.NewSchoolRepository(db),
		Attendance: inmemdb.NewAttendanceRepository(db),
		Notifs:     inmemdb.NewNotificationRepository(db),
	}
}

// AttendanceService wires an attendance.Service on st; the session provider always resolves to sess.
func (st *Store) AttendanceService(conf *core.Config, sess session.Session, notifier attendance.Notifier) *attendance.Service {
	cal := &fixedCalendar{session.Fixed(sess), session.NewService(st.DB, st.Sessions)}
	return attendance.NewService(st.DB, st.Attendance, school.NewService(st.School), cal, notifier, conf, logsvc.NewNopLogger())
}

// fixedCalendar reads terms from the store but never resolves the active session from it.
type fixedCalendar struct {
	session.Fixed
	*session.Service
}

func (c fixedCalendar) ActiveSession(ctx context.Context) (session.Session, error) {
	return c.Fixed.ActiveSession(ctx)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser(): %v", err)
	}
	return usr
}

func CreateSession(t *testing.T, repo session.Repository, name string, status session.Status, start, end time.Time) session.Session {
	ts := time.Now().UTC()
	s, err := repo.CreateSession(context.Background(), session.Session{
		Name:      name,
		Status:    status,
		StartDate: core.TruncateDate(start),
		EndDate:   core.TruncateDate(end),
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		t.Fatalf("createSession(): %v", err)
	}
	return s
}

func CreateTerm(t *testing.T, repo session.Repository, sessionID string, name session.TermName, start, end time.Time) session.Term {
	term, err := repo.CreateTerm(context.Background(), session.Term{
		SessionID: sessionID,
		Name:      name,
		StartDate: core.TruncateDate(start),
		EndDate:   core.TruncateDate(end),
	})
	if err != nil {
		t.Fatalf("createTerm(): %v", err)
	}
	return term
}

func CreateTeacher(t *testing.T, repo school.Repository, userID string, isActive bool) school.Teacher {
	tc, err := repo.CreateTeacher(context.Background(), school.Teacher{UserID: userID, IsActive: isActive, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("createTeacher(): %v", err)
	}
	return tc
}

func CreateStudent(t *testing.T, repo school.Repository, userID, regNumber, firstName, lastName string) school.Student {
	s, err := repo.CreateStudent(context.Background(), school.Student{
		UserID:             userID,
		RegistrationNumber: regNumber,
		FirstName:          firstName,
		LastName:           lastName,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createStudent(): %v", err)
	}
	return s
}

func CreateClass(t *testing.T, repo school.Repository, sessionID, name string) school.Class {
	c, err := repo.CreateClass(context.Background(), school.Class{SessionID: sessionID, Name: name, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("createClass(): %v", err)
	}
	return c
}

func CreateSchedule(t *testing.T, repo school.Repository, classID, teacherID, subject string, day time.Weekday) school.Schedule {
	s := school.Schedule{ClassID: classID, Subject: subject, DayOfWeek: day, StartTime: "08:00:00", EndTime: "09:00:00"}
	if teacherID != "" {
		s.TeacherID = &teacherID
	}
	s, err := repo.CreateSchedule(context.Background(), s)
	if err != nil {
		t.Fatalf("createSchedule(): %v", err)
	}
	return s
}

func AssignClassTeacher(t *testing.T, repo school.Repository, classID, teacherID string, isActive bool) school.ClassTeacher {
	ct, err := repo.CreateClassTeacher(context.Background(), school.ClassTeacher{
		ClassID:   classID,
		TeacherID: teacherID,
		IsActive:  isActive,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("assignClassTeacher(): %v", err)
	}
	return ct
}

func Enroll(t *testing.T, repo school.Repository, classID, studentID string, isActive bool) school.Enrollment {
	e, err := repo.CreateEnrollment(context.Background(), school.Enrollment{
		ClassID:    classID,
		StudentID:  studentID,
		IsActive:   isActive,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("enroll(): %v", err)
	}
	return e
}

// Notifier records the intents it is handed.
type Notifier struct {
	mu      sync.Mutex
	intents []notification.Intent
}

func (n *Notifier) Enqueue(in notification.Intent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, in)
}

func (n *Notifier) Intents() []notification.Intent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Intent(nil), n.intents...)
}

func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = nil
}
