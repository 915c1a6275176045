package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

// lockable is what the edit workflow needs to know of a record, whatever its kind.
type lockable interface {
	AttendanceID() string
	Locked() bool
	MarkerID() string
	LastModified() time.Time
}

func (a ScheduleAttendance) AttendanceID() string    { return a.ID }
func (a ScheduleAttendance) Locked() bool            { return a.IsLocked }
func (a ScheduleAttendance) MarkerID() string        { return a.MarkedBy }
func (a ScheduleAttendance) LastModified() time.Time { return a.UpdatedAt }

func (a DailyAttendance) AttendanceID() string    { return a.ID }
func (a DailyAttendance) Locked() bool            { return a.IsLocked }
func (a DailyAttendance) MarkerID() string        { return a.MarkedBy }
func (a DailyAttendance) LastModified() time.Time { return a.UpdatedAt }

// recordKind resolves the storage operations of one AttendanceType.
type recordKind interface {
	get(ctx context.Context, repo Repository, id string, exec ...core.DBExecutor) (lockable, error)
	// editableFields lists the keys an edit request may propose.
	editableFields() []string
	// apply writes p on the record. Clock times of p are read in loc.
	// relock marks the write as a direct edit by the record's marker.
	apply(ctx context.Context, repo Repository, rec lockable, p Patch, loc *time.Location, ts time.Time, relock bool, exec ...core.DBExecutor) (lockable, error)
}

func kindFor(t AttendanceType) (recordKind, error) {
	switch t {
	case TypeScheduleBased:
		return scheduleKind{}, nil
	case TypeDaily:
		return dailyKind{}, nil
	}
	return nil, core.NewValidationError(
		errors.Errorf("unknown attendance type %q", t),
		core.FieldError{Field: "attendance_type", Error: "attendance_type must be one of SCHEDULE_BASED, DAILY"},
	)
}

type scheduleKind struct{}

func (scheduleKind) get(ctx context.Context, repo Repository, id string, exec ...core.DBExecutor) (lockable, error) {
	return repo.GetScheduleAttendance(ctx, id, exec...)
}

func (scheduleKind) editableFields() []string { return []string{"status", "notes"} }

func (scheduleKind) apply(ctx context.Context, repo Repository, rec lockable, p Patch, _ *time.Location, ts time.Time, relock bool, exec ...core.DBExecutor) (lockable, error) {
	a := rec.(ScheduleAttendance)
	if p.Status != nil {
		if !TypeScheduleBased.Allows(*p.Status) {
			return nil, invalidStatusError(TypeScheduleBased, *p.Status)
		}
		a.Status = *p.Status
	}
	if p.Notes != nil {
		a.Notes = p.Notes
	}
	if relock {
		a.MarkedAt = ts
		a.IsLocked = true
	}
	a.UpdatedAt = ts
	return repo.UpdateScheduleAttendance(ctx, a, exec...)
}

type dailyKind struct{}

func (dailyKind) get(ctx context.Context, repo Repository, id string, exec ...core.DBExecutor) (lockable, error) {
	return repo.GetDailyAttendance(ctx, id, exec...)
}

func (dailyKind) editableFields() []string {
	return []string{"status", "notes", "check_in_time", "check_out_time"}
}

func (dailyKind) apply(ctx context.Context, repo Repository, rec lockable, p Patch, loc *time.Location, ts time.Time, relock bool, exec ...core.DBExecutor) (lockable, error) {
	a := rec.(DailyAttendance)
	if p.Status != nil {
		if !TypeDaily.Allows(*p.Status) {
			return nil, invalidStatusError(TypeDaily, *p.Status)
		}
		a.Status = *p.Status
	}
	if p.Notes != nil {
		a.Notes = p.Notes
	}
	if p.CheckInTime != nil {
		t, err := core.ParseClock(a.Date.Time, *p.CheckInTime, loc)
		if err != nil {
			return nil, clockError("check_in_time")
		}
		a.CheckInTime = &t
	}
	if p.CheckOutTime != nil {
		t, err := core.ParseClock(a.Date.Time, *p.CheckOutTime, loc)
		if err != nil {
			return nil, clockError("check_out_time")
		}
		a.CheckOutTime = &t
	}
	if relock {
		a.MarkedAt = ts
		a.IsLocked = true
	}
	a.UpdatedAt = ts
	return repo.UpdateDailyAttendance(ctx, a, exec...)
}

func invalidStatusError(t AttendanceType, s Status) error {
	return core.NewValidationError(
		errors.Errorf("%q is not a valid %s attendance status", s, t),
		core.FieldError{Field: "status", Error: fmt.Sprintf("%q is not a valid status for %s attendance", s, t)},
	)
}

func clockError(field string) error {
	return core.NewValidationError(
		errors.Errorf("invalid %s", field),
		core.FieldError{Field: field, Error: field + " must be a time formatted as HH:MM:SS"},
	)
}

// patchFromChanges validates the proposed changes of an edit request against the editable
// fields of kind and converts them into a Patch. Status is normalized to its canonical casing.
func patchFromChanges(t AttendanceType, kind recordKind, changes map[string]interface{}) (Patch, error) {
	if len(changes) == 0 {
		return Patch{}, core.NewValidationError(
			errors.New("no changes proposed"),
			core.FieldError{Field: "proposed_changes", Error: "at least one change must be proposed"},
		)
	}

	allowed := make(map[string]bool)
	for _, f := range kind.editableFields() {
		allowed[f] = true
	}

	var p Patch
	for key, val := range changes {
		if !allowed[key] {
			return Patch{}, core.NewValidationError(
				errors.Errorf("field %q cannot be edited", key),
				core.FieldError{Field: "proposed_changes", Error: fmt.Sprintf("%q is not an editable field of %s attendance", key, t)},
			)
		}
		s, ok := val.(string)
		if !ok {
			return Patch{}, core.NewValidationError(
				errors.Errorf("field %q must be a string", key),
				core.FieldError{Field: "proposed_changes", Error: fmt.Sprintf("%q must be a string", key)},
			)
		}

		switch key {
		case "status":
			st := ParseStatus(s)
			if !t.Allows(st) {
				return Patch{}, invalidStatusError(t, st)
			}
			p.Status = &st
		case "notes":
			p.Notes = &s
		case "check_in_time":
			if _, err := core.ParseClock(time.Time{}, s, nil); err != nil {
				return Patch{}, clockError(key)
			}
			p.CheckInTime = &s
		case "check_out_time":
			if _, err := core.ParseClock(time.Time{}, s, nil); err != nil {
				return Patch{}, clockError(key)
			}
			p.CheckOutTime = &s
		}
	}
	return p, nil
}
