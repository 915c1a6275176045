package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateTeacher(_ context.Context, tc school.Teacher, exec ...core.DBExecutor) (school.Teacher, error) {
	err := repo.db.write(exec, func(t *tables) error {
		for _, other := range t.teachers {
			if other.UserID == tc.UserID {
				return core.NewConflictError("this user is already a teacher")
			}
		}
		tc.ID = uuid.New().String()
		t.teachers[tc.ID] = tc
		return nil
	})
	if err != nil {
		return school.Teacher{}, err
	}
	return tc, nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, s school.Student, exec ...core.DBExecutor) (school.Student, error) {
	err := repo.db.write(exec, func(t *tables) error {
		for _, other := range t.students {
			if other.RegistrationNumber == s.RegistrationNumber {
				return core.NewConflictError("a student with this registration number already exists")
			}
		}
		s.ID = uuid.New().String()
		t.students[s.ID] = s
		return nil
	})
	if err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo *schoolRepository) CreateClass(_ context.Context, c school.Class, exec ...core.DBExecutor) (school.Class, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		c.ID = uuid.New().String()
		t.classes[c.ID] = c
		return nil
	})
	return c, nil
}

func (repo *schoolRepository) CreateSchedule(_ context.Context, s school.Schedule, exec ...core.DBExecutor) (school.Schedule, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		s.ID = uuid.New().String()
		t.schedules[s.ID] = s
		return nil
	})
	return s, nil
}

func (repo *schoolRepository) CreateClassTeacher(_ context.Context, ct school.ClassTeacher, exec ...core.DBExecutor) (school.ClassTeacher, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		ct.ID = uuid.New().String()
		t.classTeachers[ct.ID] = ct
		return nil
	})
	return ct, nil
}

func (repo *schoolRepository) CreateEnrollment(_ context.Context, e school.Enrollment, exec ...core.DBExecutor) (school.Enrollment, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		e.ID = uuid.New().String()
		t.enrollments[e.ID] = e
		return nil
	})
	return e, nil
}

func (repo *schoolRepository) GetTeacherByUserID(_ context.Context, userID string, _ ...core.DBExecutor) (school.Teacher, error) {
	var tc school.Teacher
	err := repo.db.read(func(t *tables) error {
		for _, other := range t.teachers {
			if other.UserID == userID {
				tc = other
				return nil
			}
		}
		return school.ErrTeacherNotFound
	})
	return tc, err
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (school.Student, error) {
	var s school.Student
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if s, ok = t.students[id]; !ok {
			return school.ErrStudentNotFound
		}
		return nil
	})
	return s, err
}

func (repo *schoolRepository) GetStudentByRegistrationNumber(_ context.Context, regNumber string, _ ...core.DBExecutor) (school.Student, error) {
	var s school.Student
	err := repo.db.read(func(t *tables) error {
		for _, other := range t.students {
			if other.RegistrationNumber == regNumber {
				s = other
				return nil
			}
		}
		return school.ErrStudentNotFound
	})
	return s, err
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	var c school.Class
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if c, ok = t.classes[id]; !ok {
			return school.ErrClassNotFound
		}
		return nil
	})
	return c, err
}

func (repo *schoolRepository) GetSchedule(_ context.Context, id string, _ ...core.DBExecutor) (school.Schedule, error) {
	var s school.Schedule
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if s, ok = t.schedules[id]; !ok {
			return school.ErrScheduleNotFound
		}
		return nil
	})
	return s, err
}

func (repo *schoolRepository) IsActiveClassTeacher(_ context.Context, classID, teacherID string, _ ...core.DBExecutor) (bool, error) {
	var found bool
	_ = repo.db.read(func(t *tables) error {
		for _, ct := range t.classTeachers {
			if ct.ClassID == classID && ct.TeacherID == teacherID && ct.IsActive {
				found = true
				break
			}
		}
		return nil
	})
	return found, nil
}

func (repo *schoolRepository) IsActivelyEnrolled(_ context.Context, classID, studentID string, _ ...core.DBExecutor) (bool, error) {
	var found bool
	_ = repo.db.read(func(t *tables) error {
		for _, e := range t.enrollments {
			if e.ClassID == classID && e.StudentID == studentID && e.IsActive {
				found = true
				break
			}
		}
		return nil
	})
	return found, nil
}

func (repo *schoolRepository) QueryEnrolledStudents(_ context.Context, classID string, _ ...core.DBExecutor) ([]school.Student, error) {
	var students []school.Student
	_ = repo.db.read(func(t *tables) error {
		seen := make(map[string]bool)
		for _, e := range t.enrollments {
			if e.ClassID != classID || !e.IsActive || seen[e.StudentID] {
				continue
			}
			if s, ok := t.students[e.StudentID]; ok {
				seen[s.ID] = true
				students = append(students, s)
			}
		}
		return nil
	})
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})
	return students, nil
}
