package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	scheduleAttColumns = `id, schedule_id, student_id, session_id, date, status, marked_by, marked_at, notes, is_locked, created_at, updated_at`
	dailyAttColumns    = `id, class_id, student_id, session_id, date, status, check_in_time, check_out_time, marked_by, marked_at, notes, is_locked, created_at, updated_at`
)

type upsertedScheduleRow struct {
	attendance.ScheduleAttendance
	Inserted bool `db:"inserted"`
}

type upsertedDailyRow struct {
	attendance.DailyAttendance
	Inserted bool `db:"inserted"`
}

type attendanceRepository struct {
	base
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{base{db: db}}
}

// The upserts only touch unlocked rows: a conflicting locked row returns nothing.
// xmax is zero on freshly inserted tuples.

func (repo attendanceRepository) UpsertScheduleAttendance(ctx context.Context, rec attendance.ScheduleAttendance, exec ...core.DBExecutor) (attendance.ScheduleAttendance, bool, error) {
	rec.ID = uuid.New().String()
	exe := repo.getExec(exec)
	var row upsertedScheduleRow
	q := exe.Rebind(`
		INSERT INTO schedule_attendance AS t (` + scheduleAttColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, true, ?, ?)
		ON CONFLICT (student_id, schedule_id, date) DO UPDATE
		SET status = EXCLUDED.status,
		    notes = COALESCE(EXCLUDED.notes, t.notes),
		    marked_by = EXCLUDED.marked_by,
		    marked_at = EXCLUDED.marked_at,
		    is_locked = true,
		    updated_at = EXCLUDED.updated_at
		WHERE NOT t.is_locked
		RETURNING ` + scheduleAttColumns + `, (xmax = 0) AS inserted`)
	err := sqlx.GetContext(ctx, exe, &row, q,
		rec.ID, rec.ScheduleID, rec.StudentID, rec.SessionID, rec.Date, string(rec.Status),
		rec.MarkedBy, rec.MarkedAt, rec.Notes, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return attendance.ScheduleAttendance{}, false, trapNoRowsErr(err, attendance.ErrLocked, "upserting schedule attendance")
	}
	return utcSchedule(row.ScheduleAttendance), row.Inserted, nil
}

func (repo attendanceRepository) UpsertDailyAttendance(ctx context.Context, rec attendance.DailyAttendance, exec ...core.DBExecutor) (attendance.DailyAttendance, bool, error) {
	rec.ID = uuid.New().String()
	exe := repo.getExec(exec)
	var row upsertedDailyRow
	q := exe.Rebind(`
		INSERT INTO student_daily_attendance AS t (` + dailyAttColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, true, ?, ?)
		ON CONFLICT (student_id, class_id, date) DO UPDATE
		SET status = EXCLUDED.status,
		    notes = COALESCE(EXCLUDED.notes, t.notes),
		    check_in_time = COALESCE(t.check_in_time, EXCLUDED.check_in_time),
		    marked_by = EXCLUDED.marked_by,
		    marked_at = EXCLUDED.marked_at,
		    is_locked = true,
		    updated_at = EXCLUDED.updated_at
		WHERE NOT t.is_locked
		RETURNING ` + dailyAttColumns + `, (xmax = 0) AS inserted`)
	err := sqlx.GetContext(ctx, exe, &row, q,
		rec.ID, rec.ClassID, rec.StudentID, rec.SessionID, rec.Date, string(rec.Status),
		rec.CheckInTime, rec.CheckOutTime, rec.MarkedBy, rec.MarkedAt, rec.Notes, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return attendance.DailyAttendance{}, false, trapNoRowsErr(err, attendance.ErrLocked, "upserting daily attendance")
	}
	return utcDaily(row.DailyAttendance), row.Inserted, nil
}

func (repo attendanceRepository) GetScheduleAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.ScheduleAttendance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.ScheduleAttendance{}, attendance.ErrNotFound
	}
	exe := repo.getExec(exec)
	var rec attendance.ScheduleAttendance
	q := exe.Rebind(`SELECT ` + scheduleAttColumns + ` FROM schedule_attendance WHERE id = ?` + lockClause(exec))
	if err := sqlx.GetContext(ctx, exe, &rec, q, id); err != nil {
		return attendance.ScheduleAttendance{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding schedule attendance")
	}
	return utcSchedule(rec), nil
}

func (repo attendanceRepository) GetDailyAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.DailyAttendance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.DailyAttendance{}, attendance.ErrNotFound
	}
	exe := repo.getExec(exec)
	var rec attendance.DailyAttendance
	q := exe.Rebind(`SELECT ` + dailyAttColumns + ` FROM student_daily_attendance WHERE id = ?` + lockClause(exec))
	if err := sqlx.GetContext(ctx, exe, &rec, q, id); err != nil {
		return attendance.DailyAttendance{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding daily attendance")
	}
	return utcDaily(rec), nil
}

func (repo attendanceRepository) UpdateScheduleAttendance(ctx context.Context, rec attendance.ScheduleAttendance, exec ...core.DBExecutor) (attendance.ScheduleAttendance, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `
		UPDATE schedule_attendance
		SET status = :status, notes = :notes, marked_by = :marked_by, marked_at = :marked_at,
		    is_locked = :is_locked, updated_at = :updated_at
		WHERE id = :id`,
		rec)
	if err != nil {
		return attendance.ScheduleAttendance{}, errors.Wrap(err, "updating schedule attendance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ScheduleAttendance{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (repo attendanceRepository) UpdateDailyAttendance(ctx context.Context, rec attendance.DailyAttendance, exec ...core.DBExecutor) (attendance.DailyAttendance, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `
		UPDATE student_daily_attendance
		SET status = :status, notes = :notes, check_in_time = :check_in_time, check_out_time = :check_out_time,
		    marked_by = :marked_by, marked_at = :marked_at, is_locked = :is_locked, updated_at = :updated_at
		WHERE id = :id`,
		rec)
	if err != nil {
		return attendance.DailyAttendance{}, errors.Wrap(err, "updating daily attendance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.DailyAttendance{}, attendance.ErrNotFound
	}
	return rec, nil
}

func recordWhere(filter attendance.RecordFilter, scopeCol, scope string) where {
	var w where
	if scope != "" {
		w.add(scopeCol+" = ?", scope)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.SessionID != "" {
		w.add("session_id = ?", filter.SessionID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To)
	}
	return w
}

// validFilterIDs reports whether every id set on filter is a uuid; postgres rejects the others.
func validFilterIDs(ids ...string) bool {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func (repo attendanceRepository) QueryScheduleAttendance(ctx context.Context, filter attendance.RecordFilter, page *core.Pagination, exec ...core.DBExecutor) ([]attendance.ScheduleAttendance, int, error) {
	if !validFilterIDs(filter.ScheduleID, filter.StudentID, filter.SessionID) {
		return []attendance.ScheduleAttendance{}, 0, nil
	}
	exe := repo.getExec(exec)
	w := recordWhere(filter, "schedule_id", filter.ScheduleID)
	total, err := count(ctx, exe, "schedule_attendance", w)
	if err != nil {
		return nil, 0, err
	}

	q, args := paginate(`SELECT `+scheduleAttColumns+` FROM schedule_attendance`+w.String()+` ORDER BY date DESC, created_at DESC`, w.args, page)
	recs := make([]attendance.ScheduleAttendance, 0)
	if err = sqlx.SelectContext(ctx, exe, &recs, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying schedule attendance")
	}
	for i := range recs {
		recs[i] = utcSchedule(recs[i])
	}
	return recs, total, nil
}

func (repo attendanceRepository) QueryDailyAttendance(ctx context.Context, filter attendance.RecordFilter, page *core.Pagination, exec ...core.DBExecutor) ([]attendance.DailyAttendance, int, error) {
	if !validFilterIDs(filter.ClassID, filter.StudentID, filter.SessionID) {
		return []attendance.DailyAttendance{}, 0, nil
	}
	exe := repo.getExec(exec)
	w := recordWhere(filter, "class_id", filter.ClassID)
	total, err := count(ctx, exe, "student_daily_attendance", w)
	if err != nil {
		return nil, 0, err
	}

	q, args := paginate(`SELECT `+dailyAttColumns+` FROM student_daily_attendance`+w.String()+` ORDER BY date DESC, created_at DESC`, w.args, page)
	recs := make([]attendance.DailyAttendance, 0)
	if err = sqlx.SelectContext(ctx, exe, &recs, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying daily attendance")
	}
	for i := range recs {
		recs[i] = utcDaily(recs[i])
	}
	return recs, total, nil
}

func utcSchedule(rec attendance.ScheduleAttendance) attendance.ScheduleAttendance {
	rec.MarkedAt = rec.MarkedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec
}

func utcDaily(rec attendance.DailyAttendance) attendance.DailyAttendance {
	rec.MarkedAt = rec.MarkedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.CheckInTime = utcPtr(rec.CheckInTime)
	rec.CheckOutTime = utcPtr(rec.CheckOutTime)
	return rec
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
