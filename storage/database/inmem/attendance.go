package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertScheduleAttendance(_ context.Context, rec attendance.ScheduleAttendance, exec ...core.DBExecutor) (attendance.ScheduleAttendance, bool, error) {
	var created bool
	err := repo.db.write(exec, func(t *tables) error {
		for id, a := range t.scheduleAtt {
			if a.StudentID != rec.StudentID || a.ScheduleID != rec.ScheduleID || !a.Date.Equal(rec.Date.Time) {
				continue
			}
			if a.IsLocked {
				return attendance.ErrLocked
			}
			a.Status = rec.Status
			if rec.Notes != nil {
				a.Notes = rec.Notes
			}
			a.MarkedBy = rec.MarkedBy
			a.MarkedAt = rec.MarkedAt
			a.IsLocked = true
			a.UpdatedAt = rec.UpdatedAt
			t.scheduleAtt[id] = a
			rec = a
			return nil
		}

		rec.ID = uuid.New().String()
		t.scheduleAtt[rec.ID] = rec
		created = true
		return nil
	})
	if err != nil {
		return attendance.ScheduleAttendance{}, false, err
	}
	return rec, created, nil
}

func (repo *attendanceRepository) UpsertDailyAttendance(_ context.Context, rec attendance.DailyAttendance, exec ...core.DBExecutor) (attendance.DailyAttendance, bool, error) {
	var created bool
	err := repo.db.write(exec, func(t *tables) error {
		for id, a := range t.dailyAtt {
			if a.StudentID != rec.StudentID || a.ClassID != rec.ClassID || !a.Date.Equal(rec.Date.Time) {
				continue
			}
			if a.IsLocked {
				return attendance.ErrLocked
			}
			a.Status = rec.Status
			if rec.Notes != nil {
				a.Notes = rec.Notes
			}
			if a.CheckInTime == nil {
				a.CheckInTime = rec.CheckInTime
			}
			a.MarkedBy = rec.MarkedBy
			a.MarkedAt = rec.MarkedAt
			a.IsLocked = true
			a.UpdatedAt = rec.UpdatedAt
			t.dailyAtt[id] = a
			rec = a
			return nil
		}

		rec.ID = uuid.New().String()
		t.dailyAtt[rec.ID] = rec
		created = true
		return nil
	})
	if err != nil {
		return attendance.DailyAttendance{}, false, err
	}
	return rec, created, nil
}

func (repo *attendanceRepository) GetScheduleAttendance(_ context.Context, id string, _ ...core.DBExecutor) (attendance.ScheduleAttendance, error) {
	var rec attendance.ScheduleAttendance
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if rec, ok = t.scheduleAtt[id]; !ok {
			return attendance.ErrNotFound
		}
		return nil
	})
	return rec, err
}

func (repo *attendanceRepository) GetDailyAttendance(_ context.Context, id string, _ ...core.DBExecutor) (attendance.DailyAttendance, error) {
	var rec attendance.DailyAttendance
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if rec, ok = t.dailyAtt[id]; !ok {
			return attendance.ErrNotFound
		}
		return nil
	})
	return rec, err
}

func (repo *attendanceRepository) UpdateScheduleAttendance(_ context.Context, rec attendance.ScheduleAttendance, exec ...core.DBExecutor) (attendance.ScheduleAttendance, error) {
	err := repo.db.write(exec, func(t *tables) error {
		if _, ok := t.scheduleAtt[rec.ID]; !ok {
			return attendance.ErrNotFound
		}
		t.scheduleAtt[rec.ID] = rec
		return nil
	})
	if err != nil {
		return attendance.ScheduleAttendance{}, err
	}
	return rec, nil
}

func (repo *attendanceRepository) UpdateDailyAttendance(_ context.Context, rec attendance.DailyAttendance, exec ...core.DBExecutor) (attendance.DailyAttendance, error) {
	err := repo.db.write(exec, func(t *tables) error {
		if _, ok := t.dailyAtt[rec.ID]; !ok {
			return attendance.ErrNotFound
		}
		t.dailyAtt[rec.ID] = rec
		return nil
	})
	if err != nil {
		return attendance.DailyAttendance{}, err
	}
	return rec, nil
}

func (repo *attendanceRepository) QueryScheduleAttendance(_ context.Context, filter attendance.RecordFilter, page *core.Pagination, _ ...core.DBExecutor) ([]attendance.ScheduleAttendance, int, error) {
	var recs []attendance.ScheduleAttendance
	_ = repo.db.read(func(t *tables) error {
		for _, a := range t.scheduleAtt {
			if filter.MatchesSchedule(a) {
				recs = append(recs, a)
			}
		}
		return nil
	})
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date.Time) {
			return recs[i].Date.After(recs[j].Date.Time)
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	start, end := bounds(page, len(recs))
	return recs[start:end], len(recs), nil
}

func (repo *attendanceRepository) QueryDailyAttendance(_ context.Context, filter attendance.RecordFilter, page *core.Pagination, _ ...core.DBExecutor) ([]attendance.DailyAttendance, int, error) {
	var recs []attendance.DailyAttendance
	_ = repo.db.read(func(t *tables) error {
		for _, a := range t.dailyAtt {
			if filter.MatchesDaily(a) {
				recs = append(recs, a)
			}
		}
		return nil
	})
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date.Time) {
			return recs[i].Date.After(recs[j].Date.Time)
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	start, end := bounds(page, len(recs))
	return recs[start:end], len(recs), nil
}
