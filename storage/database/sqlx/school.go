package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

const (
	teacherColumns  = `id, user_id, is_active, created_at`
	studentColumns  = `id, user_id, registration_number, first_name, middle_name, last_name, created_at`
	classColumns    = `id, session_id, name, arm, created_at`
	scheduleColumns = `id, class_id, teacher_id, subject, day_of_week, start_time::text AS start_time, end_time::text AS end_time`
)

type studentRow struct {
	ID                 string      `db:"id"`
	UserID             string      `db:"user_id"`
	RegistrationNumber string      `db:"registration_number"`
	FirstName          string      `db:"first_name"`
	MiddleName         null.String `db:"middle_name"`
	LastName           string      `db:"last_name"`
	CreatedAt          time.Time   `db:"created_at"`
}

func (r studentRow) student() school.Student {
	return school.Student{
		ID:                 r.ID,
		UserID:             r.UserID,
		RegistrationNumber: r.RegistrationNumber,
		FirstName:          r.FirstName,
		MiddleName:         r.MiddleName.Ptr(),
		LastName:           r.LastName,
		CreatedAt:          r.CreatedAt.UTC(),
	}
}

type classRow struct {
	ID        string      `db:"id"`
	SessionID string      `db:"session_id"`
	Name      string      `db:"name"`
	Arm       null.String `db:"arm"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r classRow) class() school.Class {
	return school.Class{ID: r.ID, SessionID: r.SessionID, Name: r.Name, Arm: r.Arm.Ptr(), CreatedAt: r.CreatedAt.UTC()}
}

type scheduleRow struct {
	ID        string      `db:"id"`
	ClassID   string      `db:"class_id"`
	TeacherID null.String `db:"teacher_id"`
	Subject   string      `db:"subject"`
	DayOfWeek int         `db:"day_of_week"`
	StartTime string      `db:"start_time"`
	EndTime   string      `db:"end_time"`
}

func (r scheduleRow) schedule() school.Schedule {
	return school.Schedule{
		ID:        r.ID,
		ClassID:   r.ClassID,
		TeacherID: r.TeacherID.Ptr(),
		Subject:   r.Subject,
		DayOfWeek: time.Weekday(r.DayOfWeek),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
}

type schoolRepository struct {
	base
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{base{db: db}}
}

func (repo schoolRepository) insert(ctx context.Context, exec []core.DBExecutor, what, q string, args ...interface{}) error {
	exe := repo.getExec(exec)
	if _, err := exe.ExecContext(ctx, exe.Rebind(q), args...); err != nil {
		if isUniqueViolation(err) {
			return core.NewConflictError(what + " already exists")
		}
		return errors.Wrap(err, "inserting "+what)
	}
	return nil
}

func (repo schoolRepository) CreateTeacher(ctx context.Context, t school.Teacher, exec ...core.DBExecutor) (school.Teacher, error) {
	t.ID = uuid.New().String()
	err := repo.insert(ctx, exec, "teacher",
		`INSERT INTO teacher (`+teacherColumns+`) VALUES (?, ?, ?, ?)`,
		t.ID, t.UserID, t.IsActive, t.CreatedAt)
	if err != nil {
		return school.Teacher{}, err
	}
	return t, nil
}

func (repo schoolRepository) CreateStudent(ctx context.Context, s school.Student, exec ...core.DBExecutor) (school.Student, error) {
	s.ID = uuid.New().String()
	err := repo.insert(ctx, exec, "student",
		`INSERT INTO student (`+studentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.RegistrationNumber, s.FirstName, null.StringFromPtr(s.MiddleName), s.LastName, s.CreatedAt)
	if err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo schoolRepository) CreateClass(ctx context.Context, c school.Class, exec ...core.DBExecutor) (school.Class, error) {
	c.ID = uuid.New().String()
	err := repo.insert(ctx, exec, "class",
		`INSERT INTO class (`+classColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.Name, null.StringFromPtr(c.Arm), c.CreatedAt)
	if err != nil {
		return school.Class{}, err
	}
	return c, nil
}

func (repo schoolRepository) CreateSchedule(ctx context.Context, s school.Schedule, exec ...core.DBExecutor) (school.Schedule, error) {
	s.ID = uuid.New().String()
	err := repo.insert(ctx, exec, "schedule",
		`INSERT INTO schedule (id, class_id, teacher_id, subject, day_of_week, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ClassID, null.StringFromPtr(s.TeacherID), s.Subject, int(s.DayOfWeek), s.StartTime, s.EndTime)
	if err != nil {
		return school.Schedule{}, err
	}
	return s, nil
}

func (repo schoolRepository) CreateClassTeacher(ctx context.Context, ct school.ClassTeacher, exec ...core.DBExecutor) (school.ClassTeacher, error) {
	ct.ID = uuid.New().String()
	err := repo.insert(ctx, exec, "class teacher",
		`INSERT INTO class_teacher (id, class_id, teacher_id, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		ct.ID, ct.ClassID, ct.TeacherID, ct.IsActive, ct.CreatedAt)
	if err != nil {
		return school.ClassTeacher{}, err
	}
	return ct, nil
}

func (repo schoolRepository) CreateEnrollment(ctx context.Context, e school.Enrollment, exec ...core.DBExecutor) (school.Enrollment, error) {
	e.ID = uuid.New().String()
	err := repo.insert(ctx, exec, "enrollment",
		`INSERT INTO class_student (id, class_id, student_id, is_active, enrolled_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ClassID, e.StudentID, e.IsActive, e.EnrolledAt)
	if err != nil {
		return school.Enrollment{}, err
	}
	return e, nil
}

func (repo schoolRepository) GetTeacherByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (school.Teacher, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	exe := repo.getExec(exec)
	var t school.Teacher
	q := exe.Rebind(`SELECT ` + teacherColumns + ` FROM teacher WHERE user_id = ?`)
	if err := exe.QueryRowxContext(ctx, q, userID).Scan(&t.ID, &t.UserID, &t.IsActive, &t.CreatedAt); err != nil {
		return school.Teacher{}, trapNoRowsErr(err, school.ErrTeacherNotFound, "finding teacher")
	}
	return t, nil
}

func (repo schoolRepository) getStudent(ctx context.Context, exec []core.DBExecutor, cond string, arg interface{}) (school.Student, error) {
	exe := repo.getExec(exec)
	var row studentRow
	q := exe.Rebind(`SELECT ` + studentColumns + ` FROM student WHERE ` + cond)
	if err := sqlx.GetContext(ctx, exe, &row, q, arg); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo schoolRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (school.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Student{}, school.ErrStudentNotFound
	}
	return repo.getStudent(ctx, exec, "id = ?", id)
}

func (repo schoolRepository) GetStudentByRegistrationNumber(ctx context.Context, regNumber string, exec ...core.DBExecutor) (school.Student, error) {
	return repo.getStudent(ctx, exec, "registration_number = ?", regNumber)
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Class{}, school.ErrClassNotFound
	}
	exe := repo.getExec(exec)
	var row classRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT `+classColumns+` FROM class WHERE id = ?`), id); err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ErrClassNotFound, "finding class")
	}
	return row.class(), nil
}

func (repo schoolRepository) GetSchedule(ctx context.Context, id string, exec ...core.DBExecutor) (school.Schedule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Schedule{}, school.ErrScheduleNotFound
	}
	exe := repo.getExec(exec)
	var row scheduleRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT `+scheduleColumns+` FROM schedule WHERE id = ?`), id); err != nil {
		return school.Schedule{}, trapNoRowsErr(err, school.ErrScheduleNotFound, "finding schedule")
	}
	return row.schedule(), nil
}

func (repo schoolRepository) exists(ctx context.Context, exec []core.DBExecutor, q string, args ...interface{}) (bool, error) {
	exe := repo.getExec(exec)
	var ok bool
	if err := sqlx.GetContext(ctx, exe, &ok, exe.Rebind(`SELECT EXISTS (`+q+`)`), args...); err != nil {
		return false, err
	}
	return ok, nil
}

func (repo schoolRepository) IsActiveClassTeacher(ctx context.Context, classID, teacherID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := repo.exists(ctx, exec,
		`SELECT 1 FROM class_teacher WHERE class_id = ? AND teacher_id = ? AND is_active`, classID, teacherID)
	return ok, errors.Wrap(err, "checking class teacher")
}

func (repo schoolRepository) IsActivelyEnrolled(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return false, nil
	}
	ok, err := repo.exists(ctx, exec,
		`SELECT 1 FROM class_student WHERE class_id = ? AND student_id = ? AND is_active`, classID, studentID)
	return ok, errors.Wrap(err, "checking enrollment")
}

func (repo schoolRepository) QueryEnrolledStudents(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Student, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return nil, nil
	}
	exe := repo.getExec(exec)
	var rows []studentRow
	q := exe.Rebind(`
		SELECT DISTINCT s.id, s.user_id, s.registration_number, s.first_name, s.middle_name, s.last_name, s.created_at
		FROM student s
		JOIN class_student cs ON cs.student_id = s.id
		WHERE cs.class_id = ? AND cs.is_active
		ORDER BY s.last_name, s.first_name`)
	if err := sqlx.SelectContext(ctx, exe, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}
