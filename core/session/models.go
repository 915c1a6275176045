package session

import (
	"strings"
	"time"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusArchived Status = "ARCHIVED"
)

type TermName string

const (
	FirstTerm  TermName = "FIRST"
	SecondTerm TermName = "SECOND"
	ThirdTerm  TermName = "THIRD"
)

var TermNames = []TermName{FirstTerm, SecondTerm, ThirdTerm}

// ParseTermName accepts any casing of a term name.
func ParseTermName(s string) (TermName, bool) {
	tn := TermName(strings.ToUpper(strings.TrimSpace(s)))
	for _, name := range TermNames {
		if tn == name {
			return tn, true
		}
	}
	return "", false
}

// Session is an academic year.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Session) IsActive() bool { return s.Status == StatusActive }

type Term struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      TermName  `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}
