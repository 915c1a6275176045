package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("session", "academic session not found")
	ErrNoActiveSession = core.NewNotFoundError("session", "no active academic session")
	ErrTermNotFound    = core.NewNotFoundError("term", "term not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// QuerySessions returns the sessions with the given status, all sessions when status is empty.
		QuerySessions(ctx context.Context, status Status, exec ...core.DBExecutor) ([]Session, error)
		// SetSessionsStatus sets status on every session in ids.
		SetSessionsStatus(ctx context.Context, status Status, updatedAt time.Time, ids []string, exec ...core.DBExecutor) error
		CreateTerm(ctx context.Context, t Term, exec ...core.DBExecutor) (Term, error)
		GetTerm(ctx context.Context, sessionID string, name TermName, exec ...core.DBExecutor) (Term, error)
	}

	// Provider resolves the academic session currently in effect.
	Provider interface {
		ActiveSession(ctx context.Context) (Session, error)
	}

	Service struct {
		db   core.Transactor
		repo Repository
	}
)

var _ Provider = (*Service)(nil)

func NewService(db core.Transactor, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

// ActiveSession fails with a NotFoundError when no session is ACTIVE
// and with a ConflictError when more than one is.
func (svc *Service) ActiveSession(ctx context.Context) (Session, error) {
	sessions, err := svc.repo.QuerySessions(ctx, StatusActive)
	if err != nil {
		return Session{}, errors.Wrap(err, "querying active sessions")
	}
	switch len(sessions) {
	case 0:
		return Session{}, ErrNoActiveSession
	case 1:
		return sessions[0], nil
	default:
		return Session{}, core.NewConflictError(fmt.Sprintf("%d academic sessions are active; exactly one must be", len(sessions)))
	}
}

func (svc *Service) Create(ctx context.Context, name string, start, end time.Time) (Session, error) {
	if !end.After(start) {
		return Session{}, core.NewBadRequestError("session end date must be after its start date")
	}
	ts := nowFunc().UTC()
	return svc.repo.CreateSession(ctx, Session{
		Name:      core.CleanString(name),
		Status:    StatusInactive,
		StartDate: core.TruncateDate(start),
		EndDate:   core.TruncateDate(end),
		CreatedAt: ts,
		UpdatedAt: ts,
	})
}

func (svc *Service) AddTerm(ctx context.Context, sessionID string, name TermName, start, end time.Time) (Term, error) {
	if !end.After(start) {
		return Term{}, core.NewBadRequestError("term end date must be after its start date")
	}
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return Term{}, err
	}
	return svc.repo.CreateTerm(ctx, Term{
		SessionID: sessionID,
		Name:      name,
		StartDate: core.TruncateDate(start),
		EndDate:   core.TruncateDate(end),
	})
}

func (svc *Service) GetTerm(ctx context.Context, sessionID string, name TermName) (Term, error) {
	return svc.repo.GetTerm(ctx, sessionID, name)
}

// Activate makes id the only ACTIVE session; every other ACTIVE session becomes INACTIVE.
func (svc *Service) Activate(ctx context.Context, id string) (Session, error) {
	var activated Session
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		s, err := svc.repo.GetSession(ctx, id, exec)
		if err != nil {
			return err
		}
		if s.Status == StatusArchived {
			return core.NewBadRequestError("an archived session cannot be activated")
		}

		active, err := svc.repo.QuerySessions(ctx, StatusActive, exec)
		if err != nil {
			return errors.Wrap(err, "querying active sessions")
		}
		ts := nowFunc().UTC()
		others := make([]string, 0, len(active))
		for _, a := range active {
			if a.ID != id {
				others = append(others, a.ID)
			}
		}
		if len(others) > 0 {
			if err = svc.repo.SetSessionsStatus(ctx, StatusInactive, ts, others, exec); err != nil {
				return errors.Wrap(err, "deactivating sessions")
			}
		}
		if err = svc.repo.SetSessionsStatus(ctx, StatusActive, ts, []string{id}, exec); err != nil {
			return errors.Wrap(err, "activating session")
		}
		s.Status = StatusActive
		s.UpdatedAt = ts
		activated = s
		return nil
	})
	return activated, err
}

// Fixed is a Provider always resolving to the same session.
type Fixed Session

func (f Fixed) ActiveSession(context.Context) (Session, error) { return Session(f), nil }
