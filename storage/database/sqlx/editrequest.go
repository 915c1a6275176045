package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const editRequestColumns = `er.id, er.attendance_id, er.attendance_type, er.requested_by, er.proposed_changes, er.reason, er.status,
	er.reviewed_by, er.reviewed_at, er.admin_comment, er.created_at, er.updated_at,
	rv.name AS reviewer_name, rv.email AS reviewer_email`

const editRequestFrom = ` FROM attendance_edit_request er LEFT JOIN "user" rv ON rv.id = er.reviewed_by`

type editRequestRow struct {
	ID              string      `db:"id"`
	AttendanceID    string      `db:"attendance_id"`
	AttendanceType  string      `db:"attendance_type"`
	RequestedBy     string      `db:"requested_by"`
	ProposedChanges types.JSON  `db:"proposed_changes"`
	Reason          string      `db:"reason"`
	Status          string      `db:"status"`
	ReviewedBy      null.String `db:"reviewed_by"`
	ReviewedAt      null.Time   `db:"reviewed_at"`
	AdminComment    null.String `db:"admin_comment"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
	ReviewerName    null.String `db:"reviewer_name"`
	ReviewerEmail   null.String `db:"reviewer_email"`
}

func (r editRequestRow) editRequest() (attendance.EditRequest, error) {
	req := attendance.EditRequest{
		ID:             r.ID,
		AttendanceID:   r.AttendanceID,
		AttendanceType: attendance.AttendanceType(r.AttendanceType),
		RequestedBy:    r.RequestedBy,
		Reason:         r.Reason,
		Status:         attendance.RequestStatus(r.Status),
		ReviewedBy:     r.ReviewedBy.Ptr(),
		AdminComment:   r.AdminComment.Ptr(),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.ReviewedAt.Valid {
		at := r.ReviewedAt.Time.UTC()
		req.ReviewedAt = &at
	}
	if err := r.ProposedChanges.Unmarshal(&req.ProposedChanges); err != nil {
		return attendance.EditRequest{}, errors.Wrap(err, "decoding proposed changes")
	}
	if r.ReviewedBy.Valid {
		req.Reviewer = &attendance.Reviewer{ID: r.ReviewedBy.String, Name: r.ReviewerName.String, Email: r.ReviewerEmail.String}
	}
	return req, nil
}

func (repo attendanceRepository) CreateEditRequest(ctx context.Context, req attendance.EditRequest, exec ...core.DBExecutor) (attendance.EditRequest, error) {
	var proposed types.JSON
	if err := proposed.Marshal(req.ProposedChanges); err != nil {
		return attendance.EditRequest{}, errors.Wrap(err, "encoding proposed changes")
	}

	req.ID = uuid.New().String()
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO attendance_edit_request
		    (id, attendance_id, attendance_type, requested_by, proposed_changes, reason, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := exe.ExecContext(ctx, q,
		req.ID, req.AttendanceID, string(req.AttendanceType), req.RequestedBy, proposed, req.Reason, string(req.Status), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.EditRequest{}, attendance.ErrPendingRequestExists
		}
		return attendance.EditRequest{}, errors.Wrap(err, "inserting edit request")
	}
	return req, nil
}

func (repo attendanceRepository) GetEditRequest(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.EditRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.EditRequest{}, attendance.ErrEditRequestNotFound
	}
	exe := repo.getExec(exec)
	var row editRequestRow
	q := `SELECT ` + editRequestColumns + editRequestFrom + ` WHERE er.id = ?`
	if len(exec) > 0 && exec[0] != nil {
		q += " FOR UPDATE OF er"
	}
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), id); err != nil {
		return attendance.EditRequest{}, trapNoRowsErr(err, attendance.ErrEditRequestNotFound, "finding edit request")
	}
	return row.editRequest()
}

func (repo attendanceRepository) HasPendingEditRequest(ctx context.Context, attendanceID string, typ attendance.AttendanceType, exec ...core.DBExecutor) (bool, error) {
	exe := repo.getExec(exec)
	var ok bool
	q := exe.Rebind(`
		SELECT EXISTS (
		    SELECT 1 FROM attendance_edit_request
		    WHERE attendance_id = ? AND attendance_type = ? AND status = ?
		)`)
	if err := sqlx.GetContext(ctx, exe, &ok, q, attendanceID, string(typ), string(attendance.RequestPending)); err != nil {
		return false, errors.Wrap(err, "checking pending edit requests")
	}
	return ok, nil
}

func (repo attendanceRepository) QueryEditRequests(ctx context.Context, filter attendance.EditRequestFilter, page *core.Pagination, exec ...core.DBExecutor) ([]attendance.EditRequest, int, error) {
	if !validFilterIDs(filter.RequestedBy) {
		return []attendance.EditRequest{}, 0, nil
	}
	var w where
	if filter.RequestedBy != "" {
		w.add("er.requested_by = ?", filter.RequestedBy)
	}
	if filter.Status != "" {
		w.add("er.status = ?", filter.Status)
	}
	if filter.AttendanceType != "" {
		w.add("er.attendance_type = ?", filter.AttendanceType)
	}

	exe := repo.getExec(exec)
	total, err := count(ctx, exe, "attendance_edit_request er", w)
	if err != nil {
		return nil, 0, err
	}

	q, args := paginate(`SELECT `+editRequestColumns+editRequestFrom+w.String()+` ORDER BY er.created_at DESC`, w.args, page)
	var rows []editRequestRow
	if err = sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying edit requests")
	}
	reqs := make([]attendance.EditRequest, 0, len(rows))
	for _, r := range rows {
		req, err := r.editRequest()
		if err != nil {
			return nil, 0, err
		}
		reqs = append(reqs, req)
	}
	return reqs, total, nil
}

func (repo attendanceRepository) ReviewEditRequest(ctx context.Context, req attendance.EditRequest, exec ...core.DBExecutor) (attendance.EditRequest, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		UPDATE attendance_edit_request
		SET status = ?, reviewed_by = ?, reviewed_at = ?, admin_comment = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	res, err := exe.ExecContext(ctx, q,
		string(req.Status), null.StringFromPtr(req.ReviewedBy), null.TimeFromPtr(req.ReviewedAt), null.StringFromPtr(req.AdminComment),
		req.UpdatedAt, req.ID, string(attendance.RequestPending))
	if err != nil {
		return attendance.EditRequest{}, errors.Wrap(err, "reviewing edit request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.EditRequest{}, attendance.ErrAlreadyReviewed
	}
	return repo.GetEditRequest(ctx, req.ID, exec...)
}
