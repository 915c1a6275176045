package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

func (repo *attendanceRepository) CreateEditRequest(_ context.Context, req attendance.EditRequest, exec ...core.DBExecutor) (attendance.EditRequest, error) {
	err := repo.db.write(exec, func(t *tables) error {
		if hasPending(t, req.AttendanceID, req.AttendanceType) {
			return attendance.ErrPendingRequestExists
		}
		req.ID = uuid.New().String()
		t.editRequests[req.ID] = req
		return nil
	})
	if err != nil {
		return attendance.EditRequest{}, err
	}
	return req, nil
}

func (repo *attendanceRepository) GetEditRequest(_ context.Context, id string, _ ...core.DBExecutor) (attendance.EditRequest, error) {
	var req attendance.EditRequest
	err := repo.db.read(func(t *tables) error {
		var ok bool
		if req, ok = t.editRequests[id]; !ok {
			return attendance.ErrEditRequestNotFound
		}
		req.Reviewer = reviewerOf(t, req)
		return nil
	})
	return req, err
}

func (repo *attendanceRepository) HasPendingEditRequest(_ context.Context, attendanceID string, typ attendance.AttendanceType, _ ...core.DBExecutor) (bool, error) {
	var pending bool
	_ = repo.db.read(func(t *tables) error {
		pending = hasPending(t, attendanceID, typ)
		return nil
	})
	return pending, nil
}

func hasPending(t *tables, attendanceID string, typ attendance.AttendanceType) bool {
	for _, r := range t.editRequests {
		if r.AttendanceID == attendanceID && r.AttendanceType == typ && r.Status == attendance.RequestPending {
			return true
		}
	}
	return false
}

func reviewerOf(t *tables, req attendance.EditRequest) *attendance.Reviewer {
	if req.ReviewedBy == nil {
		return nil
	}
	usr, ok := t.users[*req.ReviewedBy]
	if !ok {
		return nil
	}
	return &attendance.Reviewer{ID: usr.ID, Name: usr.Name, Email: usr.Email}
}

func (repo *attendanceRepository) QueryEditRequests(_ context.Context, filter attendance.EditRequestFilter, page *core.Pagination, _ ...core.DBExecutor) ([]attendance.EditRequest, int, error) {
	var reqs []attendance.EditRequest
	_ = repo.db.read(func(t *tables) error {
		for _, r := range t.editRequests {
			if filter.Matches(r) {
				r.Reviewer = reviewerOf(t, r)
				reqs = append(reqs, r)
			}
		}
		return nil
	})
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	start, end := bounds(page, len(reqs))
	return reqs[start:end], len(reqs), nil
}

func (repo *attendanceRepository) ReviewEditRequest(_ context.Context, req attendance.EditRequest, exec ...core.DBExecutor) (attendance.EditRequest, error) {
	var saved attendance.EditRequest
	err := repo.db.write(exec, func(t *tables) error {
		stored, ok := t.editRequests[req.ID]
		if !ok {
			return attendance.ErrEditRequestNotFound
		}
		if stored.Status != attendance.RequestPending {
			return attendance.ErrAlreadyReviewed
		}
		stored.Status = req.Status
		stored.ReviewedBy = req.ReviewedBy
		stored.ReviewedAt = req.ReviewedAt
		stored.AdminComment = req.AdminComment
		stored.UpdatedAt = req.UpdatedAt
		t.editRequests[req.ID] = stored
		saved = stored
		saved.Reviewer = reviewerOf(t, stored)
		return nil
	})
	return saved, err
}
