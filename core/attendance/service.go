package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("attendance", "attendance record not found")
	ErrLocked               = core.NewConflictError("attendance record is locked; submit an edit request to change it")
	ErrFutureDate           = core.NewValidationError(errors.New("attendance cannot be marked for a future date"), core.FieldError{Field: "date", Error: "date cannot be in the future"})
	ErrNoStudentsEnrolled   = core.NewNotFoundError("enrollment", "no students enrolled in this class")
	ErrEditRequestNotFound  = core.NewNotFoundError("edit request", "edit request not found")
	ErrNotLocked            = core.NewBadRequestError("attendance record is not locked; edit it directly instead")
	ErrNotMarker            = core.NewForbiddenError("edit requests can only be made by the teacher who marked the attendance")
	ErrPendingRequestExists = core.NewBadRequestError("a pending edit request already exists for this attendance record")
	ErrAlreadyReviewed      = core.NewBadRequestError("edit request has already been reviewed")
	ErrCommentRequired      = core.NewValidationError(errors.New("an admin comment is required to reject a request"), core.FieldError{Field: "admin_comment", Error: "admin_comment is required when rejecting a request"})
	ErrStaleEditRequest     = core.NewBadRequestError("edit request is stale: the attendance record was modified after the request was made")
	ErrEmptyUpdate          = core.NewBadRequestError("no attendance field to update")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// UpsertScheduleAttendance creates the record of (student, schedule, date) or overwrites it while unlocked.
		// created reports whether a row was inserted; a locked row fails with ErrLocked.
		UpsertScheduleAttendance(ctx context.Context, rec ScheduleAttendance, exec ...core.DBExecutor) (a ScheduleAttendance, created bool, err error)
		// UpsertDailyAttendance is UpsertScheduleAttendance for (student, class, date).
		// An update keeps the existing notes and check-in time when rec leaves them empty.
		UpsertDailyAttendance(ctx context.Context, rec DailyAttendance, exec ...core.DBExecutor) (a DailyAttendance, created bool, err error)
		// GetScheduleAttendance locks the row for update when called inside a transaction.
		GetScheduleAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (ScheduleAttendance, error)
		GetDailyAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (DailyAttendance, error)
		UpdateScheduleAttendance(ctx context.Context, rec ScheduleAttendance, exec ...core.DBExecutor) (ScheduleAttendance, error)
		UpdateDailyAttendance(ctx context.Context, rec DailyAttendance, exec ...core.DBExecutor) (DailyAttendance, error)
		// QueryScheduleAttendance returns the matching records, latest date then latest creation first,
		// and their total count. A nil page returns every match.
		QueryScheduleAttendance(ctx context.Context, filter RecordFilter, page *core.Pagination, exec ...core.DBExecutor) ([]ScheduleAttendance, int, error)
		QueryDailyAttendance(ctx context.Context, filter RecordFilter, page *core.Pagination, exec ...core.DBExecutor) ([]DailyAttendance, int, error)

		// CreateEditRequest fails with ErrPendingRequestExists when the record already has a PENDING request.
		CreateEditRequest(ctx context.Context, req EditRequest, exec ...core.DBExecutor) (EditRequest, error)
		GetEditRequest(ctx context.Context, id string, exec ...core.DBExecutor) (EditRequest, error)
		HasPendingEditRequest(ctx context.Context, attendanceID string, typ AttendanceType, exec ...core.DBExecutor) (bool, error)
		// QueryEditRequests returns the matching requests, newest first, with their reviewer, and their total count.
		QueryEditRequests(ctx context.Context, filter EditRequestFilter, page *core.Pagination, exec ...core.DBExecutor) ([]EditRequest, int, error)
		// ReviewEditRequest saves the review fields of req only while the stored request is still PENDING;
		// it fails with ErrAlreadyReviewed otherwise.
		ReviewEditRequest(ctx context.Context, req EditRequest, exec ...core.DBExecutor) (EditRequest, error)
	}

	// Directory resolves the school entities attendance is taken against.
	Directory interface {
		TeacherByUserID(ctx context.Context, userID string) (school.Teacher, error)
		Student(ctx context.Context, id string) (school.Student, error)
		StudentByRegistrationNumber(ctx context.Context, regNumber string) (school.Student, error)
		Class(ctx context.Context, id string) (school.Class, error)
		Schedule(ctx context.Context, id string) (school.Schedule, error)
		IsActiveClassTeacher(ctx context.Context, classID, teacherID string) (bool, error)
		IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
		EnrolledStudents(ctx context.Context, classID string) ([]school.Student, error)
	}

	// Calendar resolves academic sessions and their terms.
	Calendar interface {
		session.Provider
		GetTerm(ctx context.Context, sessionID string, name session.TermName) (session.Term, error)
	}

	// Notifier accepts notifications for asynchronous delivery. Enqueue must not block.
	Notifier interface {
		Enqueue(in notification.Intent)
	}

	Service struct {
		db       core.Transactor
		repo     Repository
		dir      Directory
		cal      Calendar
		notifier Notifier
		loc      *time.Location
		logger   core.Logger
	}
)

// NewService panics when a dependency is nil. Implementations must be pointers (or other nilable kinds).
func NewService(
	db core.Transactor,
	repo Repository,
	dir Directory,
	cal Calendar,
	notifier Notifier,
	conf *core.Config,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(dir, "dir"),
		vala.IsNotNil(cal, "cal"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	loc := conf.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:       db,
		repo:     repo,
		dir:      dir,
		cal:      cal,
		notifier: notifier,
		loc:      loc,
		logger:   logger,
	}
}

func now() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

// today is the current calendar day in the school's timezone.
func (svc *Service) today() core.Date {
	return core.DateOf(nowFunc(), svc.loc)
}

func parseDate(field, s string) (core.Date, error) {
	t, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.NewValidationError(err, core.FieldError{Field: field, Error: field + " must be a date formatted as YYYY-MM-DD"})
	}
	return core.NewDate(t), nil
}

// Mark records a batch of attendances taken by the teacher identified by actorID.
// Every record of the batch is written, and locked, in a single transaction.
func (svc *Service) Mark(ctx context.Context, actorID string, data MarkAttendance) (MarkResult, error) {
	if (data.ScheduleID == "") == (data.ClassID == "") {
		return MarkResult{}, core.NewValidationError(
			errors.New("exactly one of schedule_id and class_id must be provided"),
			core.FieldError{Field: "schedule_id", Error: "provide either schedule_id or class_id, not both"},
		)
	}
	date, err := parseDate("date", data.Date)
	if err != nil {
		return MarkResult{}, err
	}
	if date.After(svc.today().Time) {
		return MarkResult{}, ErrFutureDate
	}

	typ := data.recordType()
	seen := make(map[string]bool, len(data.Records))
	for _, r := range data.Records {
		if !typ.Allows(ParseStatus(r.Status)) {
			return MarkResult{}, invalidStatusError(typ, ParseStatus(r.Status))
		}
		if seen[r.StudentID] {
			return MarkResult{}, core.NewValidationError(
				errors.Errorf("student %s appears more than once", r.StudentID),
				core.FieldError{Field: "attendance_records", Error: "each student may only appear once per batch"},
			)
		}
		seen[r.StudentID] = true
	}

	sess, err := svc.cal.ActiveSession(ctx)
	if err != nil {
		return MarkResult{}, err
	}
	teacher, err := svc.dir.TeacherByUserID(ctx, actorID)
	if err != nil {
		return MarkResult{}, err
	}

	classID := data.ClassID
	if typ == TypeScheduleBased {
		sch, err := svc.dir.Schedule(ctx, data.ScheduleID)
		if err != nil {
			return MarkResult{}, err
		}
		if !sch.IsTaughtBy(teacher.ID) {
			return MarkResult{}, core.NewForbiddenError("you are not the teacher assigned to this schedule")
		}
		classID = sch.ClassID
	} else {
		if _, err = svc.dir.Class(ctx, classID); err != nil {
			return MarkResult{}, err
		}
		ok, err := svc.dir.IsActiveClassTeacher(ctx, classID, teacher.ID)
		if err != nil {
			return MarkResult{}, err
		}
		if !ok {
			return MarkResult{}, core.NewForbiddenError("only the class teacher can mark daily attendance for this class")
		}
	}

	for _, r := range data.Records {
		ok, err := svc.dir.IsEnrolled(ctx, classID, r.StudentID)
		if err != nil {
			return MarkResult{}, err
		}
		if !ok {
			return MarkResult{}, core.NewNotFoundError("enrollment", fmt.Sprintf("student %s is not enrolled in class %s", r.StudentID, classID))
		}
	}

	res := MarkResult{Total: len(data.Records)}
	ts := now()
	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		for _, r := range data.Records {
			var created bool
			var err error
			if typ == TypeScheduleBased {
				_, created, err = svc.repo.UpsertScheduleAttendance(ctx, ScheduleAttendance{
					ScheduleID: data.ScheduleID,
					StudentID:  r.StudentID,
					SessionID:  sess.ID,
					Date:       date,
					Status:     ParseStatus(r.Status),
					MarkedBy:   actorID,
					MarkedAt:   ts,
					Notes:      r.Notes,
					IsLocked:   true,
					CreatedAt:  ts,
					UpdatedAt:  ts,
				}, exec)
			} else {
				checkIn := ts
				_, created, err = svc.repo.UpsertDailyAttendance(ctx, DailyAttendance{
					ClassID:     classID,
					StudentID:   r.StudentID,
					SessionID:   sess.ID,
					Date:        date,
					Status:      ParseStatus(r.Status),
					CheckInTime: &checkIn,
					MarkedBy:    actorID,
					MarkedAt:    ts,
					Notes:       r.Notes,
					IsLocked:    true,
					CreatedAt:   ts,
					UpdatedAt:   ts,
				}, exec)
			}
			if err != nil {
				if errors.Cause(err) == ErrLocked {
					return ErrLocked
				}
				return errors.Wrapf(err, "marking attendance of student %s", r.StudentID)
			}
			if created {
				res.Marked++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return MarkResult{}, err
	}

	target := data.ScheduleID
	if typ == TypeDaily {
		target = classID
	}
	svc.logger.Info(
		fmt.Sprintf("teacher %s marked %s attendance of %s on %s", teacher.ID, typ, target, date),
		map[string]interface{}{"marked": res.Marked, "updated": res.Updated, "total": res.Total},
	)
	return res, nil
}

// updateDirect applies p on an unlocked record, then locks it.
func (svc *Service) updateDirect(ctx context.Context, kind recordKind, id string, p Patch) (lockable, error) {
	if p.IsEmpty() {
		return nil, ErrEmptyUpdate
	}
	var updated lockable
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		rec, err := kind.get(ctx, svc.repo, id, exec)
		if err != nil {
			return err
		}
		if rec.Locked() {
			return ErrLocked
		}
		updated, err = kind.apply(ctx, svc.repo, rec, p, svc.loc, now(), true, exec)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info(fmt.Sprintf("attendance record %s updated", id))
	return updated, nil
}

func (svc *Service) UpdateAttendance(ctx context.Context, id string, ua UpdateAttendance) (ScheduleAttendance, error) {
	rec, err := svc.updateDirect(ctx, scheduleKind{}, id, ua.patch())
	if err != nil {
		return ScheduleAttendance{}, err
	}
	return rec.(ScheduleAttendance), nil
}

func (svc *Service) UpdateDailyAttendance(ctx context.Context, id string, ua UpdateDailyAttendance) (DailyAttendance, error) {
	rec, err := svc.updateDirect(ctx, dailyKind{}, id, ua.patch())
	if err != nil {
		return DailyAttendance{}, err
	}
	return rec.(DailyAttendance), nil
}

// ScheduleAttendance returns the records of scheduleID on date, latest first.
func (svc *Service) ScheduleAttendance(ctx context.Context, scheduleID, date string) ([]ScheduleAttendance, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	recs, _, err := svc.repo.QueryScheduleAttendance(ctx, RecordFilter{ScheduleID: scheduleID, From: d, To: d}, nil)
	return recs, errors.Wrap(err, "querying schedule attendance")
}

func (svc *Service) IsMarked(ctx context.Context, scheduleID, date string) (MarkedStatus, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return MarkedStatus{}, err
	}
	_, total, err := svc.repo.QueryScheduleAttendance(ctx, RecordFilter{ScheduleID: scheduleID, From: d, To: d}, &core.Pagination{Page: 1, PerPage: 1})
	if err != nil {
		return MarkedStatus{}, errors.Wrap(err, "counting schedule attendance")
	}
	return MarkedStatus{IsMarked: total > 0, Count: total}, nil
}

// StudentHistory returns one page of a student's schedule-based attendances.
func (svc *Service) StudentHistory(ctx context.Context, studentID string, q AttendanceQuery, page core.Pagination) (Page, error) {
	filter := q.Filter()
	filter.StudentID = studentID
	return svc.queryPage(ctx, filter, page)
}

func (svc *Service) QueryAttendance(ctx context.Context, q AttendanceQuery, page core.Pagination) (Page, error) {
	return svc.queryPage(ctx, q.Filter(), page)
}

func (svc *Service) queryPage(ctx context.Context, filter RecordFilter, page core.Pagination) (Page, error) {
	page = page.Clean()
	recs, total, err := svc.repo.QueryScheduleAttendance(ctx, filter, &page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []ScheduleAttendance{}
	}
	return Page{Data: recs, Meta: core.NewPageMeta(page, total)}, nil
}
