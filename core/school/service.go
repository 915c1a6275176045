package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrTeacherNotFound  = core.NewNotFoundError("teacher", "teacher not found")
	ErrStudentNotFound  = core.NewNotFoundError("student", "student not found")
	ErrClassNotFound    = core.NewNotFoundError("class", "class not found")
	ErrScheduleNotFound = core.NewNotFoundError("schedule", "schedule not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		CreateClass(ctx context.Context, c Class, exec ...core.DBExecutor) (Class, error)
		CreateSchedule(ctx context.Context, s Schedule, exec ...core.DBExecutor) (Schedule, error)
		CreateClassTeacher(ctx context.Context, ct ClassTeacher, exec ...core.DBExecutor) (ClassTeacher, error)
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)

		GetTeacherByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (Teacher, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		GetStudentByRegistrationNumber(ctx context.Context, regNumber string, exec ...core.DBExecutor) (Student, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		GetSchedule(ctx context.Context, id string, exec ...core.DBExecutor) (Schedule, error)

		IsActiveClassTeacher(ctx context.Context, classID, teacherID string, exec ...core.DBExecutor) (bool, error)
		IsActivelyEnrolled(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error)
		// QueryEnrolledStudents returns the students actively enrolled in classID, ordered by last then first name.
		QueryEnrolledStudents(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Student, error)
	}

	// Service resolves teachers, classes, schedules and enrollments.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) TeacherByUserID(ctx context.Context, userID string) (Teacher, error) {
	t, err := svc.repo.GetTeacherByUserID(ctx, userID)
	if err != nil {
		return Teacher{}, err
	}
	if !t.IsActive {
		return Teacher{}, ErrTeacherNotFound
	}
	return t, nil
}

func (svc *Service) Student(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) StudentByRegistrationNumber(ctx context.Context, regNumber string) (Student, error) {
	regNumber = core.CleanString(regNumber)
	if regNumber == "" {
		return Student{}, core.NewBadRequestError("registration number is required")
	}
	return svc.repo.GetStudentByRegistrationNumber(ctx, regNumber)
}

func (svc *Service) Class(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) Schedule(ctx context.Context, id string) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *Service) IsActiveClassTeacher(ctx context.Context, classID, teacherID string) (bool, error) {
	ok, err := svc.repo.IsActiveClassTeacher(ctx, classID, teacherID)
	return ok, errors.Wrap(err, "checking class teacher")
}

func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	ok, err := svc.repo.IsActivelyEnrolled(ctx, classID, studentID)
	return ok, errors.Wrap(err, "checking enrollment")
}

func (svc *Service) EnrolledStudents(ctx context.Context, classID string) ([]Student, error) {
	students, err := svc.repo.QueryEnrolledStudents(ctx, classID)
	return students, errors.Wrap(err, "querying enrolled students")
}

// Registration

func (svc *Service) AddTeacher(ctx context.Context, userID string) (Teacher, error) {
	return svc.repo.CreateTeacher(ctx, Teacher{UserID: userID, IsActive: true, CreatedAt: nowFunc().UTC()})
}

func (svc *Service) AddStudent(ctx context.Context, s Student) (Student, error) {
	s.RegistrationNumber = core.CleanString(s.RegistrationNumber)
	s.FirstName = core.CleanString(s.FirstName)
	s.LastName = core.CleanString(s.LastName)
	if s.RegistrationNumber == "" || s.FirstName == "" || s.LastName == "" {
		return Student{}, core.NewBadRequestError("registration number, first name and last name are required")
	}
	s.CreatedAt = nowFunc().UTC()
	return svc.repo.CreateStudent(ctx, s)
}

func (svc *Service) AddClass(ctx context.Context, sessionID, name string) (Class, error) {
	return svc.repo.CreateClass(ctx, Class{SessionID: sessionID, Name: core.CleanString(name), CreatedAt: nowFunc().UTC()})
}

func (svc *Service) AddSchedule(ctx context.Context, s Schedule) (Schedule, error) {
	if _, err := svc.repo.GetClass(ctx, s.ClassID); err != nil {
		return Schedule{}, err
	}
	return svc.repo.CreateSchedule(ctx, s)
}

func (svc *Service) AssignClassTeacher(ctx context.Context, classID, teacherID string) (ClassTeacher, error) {
	return svc.repo.CreateClassTeacher(ctx, ClassTeacher{
		ClassID:   classID,
		TeacherID: teacherID,
		IsActive:  true,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) Enroll(ctx context.Context, classID, studentID string) (Enrollment, error) {
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ClassID:    classID,
		StudentID:  studentID,
		IsActive:   true,
		EnrolledAt: nowFunc().UTC(),
	})
}
