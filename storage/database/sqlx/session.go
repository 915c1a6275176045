package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
)

const (
	sessionColumns = `id, name, status, start_date, end_date, created_at, updated_at`
	termColumns    = `id, session_id, name, start_date, end_date`
)

type sessionRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	StartDate core.Date `db:"start_date"`
	EndDate   core.Date `db:"end_date"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r sessionRow) session() session.Session {
	return session.Session{
		ID:        r.ID,
		Name:      r.Name,
		Status:    session.Status(r.Status),
		StartDate: r.StartDate.Time,
		EndDate:   r.EndDate.Time,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type termRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Name      string    `db:"name"`
	StartDate core.Date `db:"start_date"`
	EndDate   core.Date `db:"end_date"`
}

func (r termRow) term() session.Term {
	return session.Term{
		ID:        r.ID,
		SessionID: r.SessionID,
		Name:      session.TermName(r.Name),
		StartDate: r.StartDate.Time,
		EndDate:   r.EndDate.Time,
	}
}

type sessionRepository struct {
	base
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{base{db: db}}
}

func (repo sessionRepository) CreateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	s.ID = uuid.New().String()
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO academic_session (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := exe.ExecContext(ctx, q, s.ID, s.Name, string(s.Status), core.NewDate(s.StartDate), core.NewDate(s.EndDate), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return session.Session{}, core.NewConflictError("a session with this name already exists")
		}
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo sessionRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (session.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return session.Session{}, session.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row sessionRow
	q := exe.Rebind(`SELECT ` + sessionColumns + ` FROM academic_session WHERE id = ?` + lockClause(exec))
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "finding session")
	}
	return row.session(), nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, status session.Status, exec ...core.DBExecutor) ([]session.Session, error) {
	var w where
	if status != "" {
		w.add("status = ?", string(status))
	}
	exe := repo.getExec(exec)
	var rows []sessionRow
	q := exe.Rebind(`SELECT ` + sessionColumns + ` FROM academic_session` + w.String() + ` ORDER BY start_date DESC`)
	if err := sqlx.SelectContext(ctx, exe, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.session())
	}
	return sessions, nil
}

func (repo sessionRepository) SetSessionsStatus(ctx context.Context, status session.Status, updatedAt time.Time, ids []string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`UPDATE academic_session SET status = ?, updated_at = ? WHERE id::text = ANY(?)`)
	if _, err := exe.ExecContext(ctx, q, string(status), updatedAt, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "updating sessions status")
	}
	return nil
}

func (repo sessionRepository) CreateTerm(ctx context.Context, t session.Term, exec ...core.DBExecutor) (session.Term, error) {
	t.ID = uuid.New().String()
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO term (` + termColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := exe.ExecContext(ctx, q, t.ID, t.SessionID, string(t.Name), core.NewDate(t.StartDate), core.NewDate(t.EndDate)); err != nil {
		if isUniqueViolation(err) {
			return session.Term{}, core.NewConflictError("this term already exists in the session")
		}
		return session.Term{}, errors.Wrap(err, "inserting term")
	}
	return t, nil
}

func (repo sessionRepository) GetTerm(ctx context.Context, sessionID string, name session.TermName, exec ...core.DBExecutor) (session.Term, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return session.Term{}, session.ErrTermNotFound
	}
	exe := repo.getExec(exec)
	var row termRow
	q := exe.Rebind(`SELECT ` + termColumns + ` FROM term WHERE session_id = ? AND name = ?`)
	if err := sqlx.GetContext(ctx, exe, &row, q, sessionID, string(name)); err != nil {
		return session.Term{}, trapNoRowsErr(err, session.ErrTermNotFound, "finding term")
	}
	return row.term(), nil
}
