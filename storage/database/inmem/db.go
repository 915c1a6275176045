package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	// DB is an in-memory store. Transactions are serialized and rolled back by restoring a snapshot
	// of every table; writes made outside a transaction wait for the running one to finish.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex
		t    tables
	}

	tables struct {
		users         map[string]user.User
		sessions      map[string]session.Session
		terms         map[string]session.Term
		teachers      map[string]school.Teacher
		students      map[string]school.Student
		classes       map[string]school.Class
		schedules     map[string]school.Schedule
		classTeachers map[string]school.ClassTeacher
		enrollments   map[string]school.Enrollment
		scheduleAtt   map[string]attendance.ScheduleAttendance
		dailyAtt      map[string]attendance.DailyAttendance
		editRequests  map[string]attendance.EditRequest
		notifications map[string]notification.Notification
		notifPrefs    map[string]notification.Preference
	}

	// txExec marks repository calls made inside RunInTx.
	txExec struct {
		core.DBExecutor
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	return &DB{t: newTables()}, nil
}

func newTables() tables {
	return tables{
		users:         make(map[string]user.User),
		sessions:      make(map[string]session.Session),
		terms:         make(map[string]session.Term),
		teachers:      make(map[string]school.Teacher),
		students:      make(map[string]school.Student),
		classes:       make(map[string]school.Class),
		schedules:     make(map[string]school.Schedule),
		classTeachers: make(map[string]school.ClassTeacher),
		enrollments:   make(map[string]school.Enrollment),
		scheduleAtt:   make(map[string]attendance.ScheduleAttendance),
		dailyAtt:      make(map[string]attendance.DailyAttendance),
		editRequests:  make(map[string]attendance.EditRequest),
		notifications: make(map[string]notification.Notification),
		notifPrefs:    make(map[string]notification.Preference),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.terms {
		c.terms[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.classes {
		c.classes[k] = v
	}
	for k, v := range t.schedules {
		c.schedules[k] = v
	}
	for k, v := range t.classTeachers {
		c.classTeachers[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.scheduleAtt {
		c.scheduleAtt[k] = v
	}
	for k, v := range t.dailyAtt {
		c.dailyAtt[k] = v
	}
	for k, v := range t.editRequests {
		c.editRequests[k] = v
	}
	for k, v := range t.notifications {
		c.notifications[k] = v
	}
	for k, v := range t.notifPrefs {
		c.notifPrefs[k] = v
	}
	return c
}

// RunInTx runs fn with exclusive write access to the store. Every write fn made is undone when it fails.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	if err := fn(txExec{}); err != nil {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Flush empties every table.
func (db *DB) Flush() {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = newTables()
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) == 0 {
		return false
	}
	_, ok := exec[0].(txExec)
	return ok
}

func (db *DB) write(exec []core.DBExecutor, fn func(t *tables) error) error {
	if !inTx(exec) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&db.t)
}

func (db *DB) read(fn func(t *tables) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&db.t)
}
