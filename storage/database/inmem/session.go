package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	_ = repo.db.write(exec, func(t *tables) error {
		s.ID = uuid.New().String()
		t.sessions[s.ID] = s
		return nil
	})
	return s, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string, _ ...core.DBExecutor) (session.Session, error) {
	var s session.Session
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if s, ok = t.sessions[id]; !ok {
			return session.ErrNotFound
		}
		return nil
	})
	return s, err
}

func (repo *sessionRepository) QuerySessions(_ context.Context, status session.Status, _ ...core.DBExecutor) ([]session.Session, error) {
	var sessions []session.Session
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.sessions {
			if status == "" || s.Status == status {
				sessions = append(sessions, s)
			}
		}
		return nil
	})
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartDate.After(sessions[j].StartDate) })
	return sessions, nil
}

func (repo *sessionRepository) SetSessionsStatus(_ context.Context, status session.Status, updatedAt time.Time, ids []string, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func(t *tables) error {
		for _, id := range ids {
			if s, ok := t.sessions[id]; ok {
				s.Status = status
				s.UpdatedAt = updatedAt
				t.sessions[id] = s
			}
		}
		return nil
	})
}

func (repo *sessionRepository) CreateTerm(_ context.Context, term session.Term, exec ...core.DBExecutor) (session.Term, error) {
	err := repo.db.write(exec, func(t *tables) error {
		for _, tm := range t.terms {
			if tm.SessionID == term.SessionID && tm.Name == term.Name {
				return core.NewConflictError("this term already exists in the session")
			}
		}
		term.ID = uuid.New().String()
		t.terms[term.ID] = term
		return nil
	})
	if err != nil {
		return session.Term{}, err
	}
	return term, nil
}

func (repo *sessionRepository) GetTerm(_ context.Context, sessionID string, name session.TermName, _ ...core.DBExecutor) (session.Term, error) {
	var term session.Term
	err := repo.db.read(func(t *tables) error {
		for _, tm := range t.terms {
			if tm.SessionID == sessionID && tm.Name == name {
				term = tm
				return nil
			}
		}
		return session.ErrTermNotFound
	})
	return term, err
}
