package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/user"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// Reviewer identifies the admin who reviewed an EditRequest.
type Reviewer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EditRequest proposes changes to a locked attendance record, pending an admin's review.
type EditRequest struct {
	ID              string                 `json:"id"`
	AttendanceID    string                 `json:"attendance_id"`
	AttendanceType  AttendanceType         `json:"attendance_type"`
	RequestedBy     string                 `json:"requested_by"`
	ProposedChanges map[string]interface{} `json:"proposed_changes"`
	Reason          string                 `json:"reason"`
	Status          RequestStatus          `json:"status"`
	ReviewedBy      *string                `json:"reviewed_by"`
	ReviewedAt      *time.Time             `json:"reviewed_at"`
	AdminComment    *string                `json:"admin_comment"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Reviewer        *Reviewer              `json:"reviewer,omitempty"` // read-only
}

type NewEditRequest struct {
	AttendanceID    string                 `json:"attendance_id" validate:"required,uuid"`
	AttendanceType  string                 `json:"attendance_type" validate:"required,attendance_type"`
	ProposedChanges map[string]interface{} `json:"proposed_changes" validate:"required"`
	Reason          string                 `json:"reason" validate:"required"`
}

func (ner *NewEditRequest) Validate(validate *validator.Validate) error {
	ner.AttendanceID = core.CleanString(ner.AttendanceID, true /* lower */)
	ner.AttendanceType = strings.ToUpper(core.CleanString(ner.AttendanceType))
	ner.Reason = core.CleanString(ner.Reason)
	return validate.Struct(ner)
}

type ReviewEditRequest struct {
	Status       string  `json:"status" validate:"required,review_status"`
	AdminComment *string `json:"admin_comment"`
}

func (rer *ReviewEditRequest) Validate(validate *validator.Validate) error {
	rer.Status = strings.ToUpper(core.CleanString(rer.Status))
	return validate.Struct(rer)
}

type ReviewResult struct {
	RequestID string        `json:"request_id"`
	Status    RequestStatus `json:"status"`
}

// EditRequestFilter selects edit requests; empty fields do not filter.
type EditRequestFilter struct {
	RequestedBy    string `query:"requested_by"`
	Status         string `query:"status"`
	AttendanceType string `query:"attendance_type"`
}

func (f *EditRequestFilter) Clean() {
	f.RequestedBy = core.CleanString(f.RequestedBy, true /* lower */)
	f.Status = strings.ToUpper(core.CleanString(f.Status))
	f.AttendanceType = strings.ToUpper(core.CleanString(f.AttendanceType))
}

func (f EditRequestFilter) Matches(req EditRequest) bool {
	return (f.RequestedBy == "" || req.RequestedBy == f.RequestedBy) &&
		(f.Status == "" || string(req.Status) == f.Status) &&
		(f.AttendanceType == "" || string(req.AttendanceType) == f.AttendanceType)
}

// CreateEditRequest files a PENDING request to change a locked record marked by userID.
func (svc *Service) CreateEditRequest(ctx context.Context, userID string, ner NewEditRequest) (EditRequest, error) {
	typ, ok := ParseType(ner.AttendanceType)
	if !ok {
		typ = AttendanceType(ner.AttendanceType)
	}
	kind, err := kindFor(typ)
	if err != nil {
		return EditRequest{}, err
	}

	rec, err := kind.get(ctx, svc.repo, ner.AttendanceID)
	if err != nil {
		return EditRequest{}, err
	}
	if !rec.Locked() {
		return EditRequest{}, ErrNotLocked
	}
	if rec.MarkerID() != userID {
		return EditRequest{}, ErrNotMarker
	}
	pending, err := svc.repo.HasPendingEditRequest(ctx, rec.AttendanceID(), typ)
	if err != nil {
		return EditRequest{}, errors.Wrap(err, "checking pending edit requests")
	}
	if pending {
		return EditRequest{}, ErrPendingRequestExists
	}
	if _, err = patchFromChanges(typ, kind, ner.ProposedChanges); err != nil {
		return EditRequest{}, err
	}

	ts := now()
	req, err := svc.repo.CreateEditRequest(ctx, EditRequest{
		AttendanceID:    rec.AttendanceID(),
		AttendanceType:  typ,
		RequestedBy:     userID,
		ProposedChanges: ner.ProposedChanges,
		Reason:          core.CleanString(ner.Reason),
		Status:          RequestPending,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	})
	if err != nil {
		if errors.Cause(err) == ErrPendingRequestExists {
			return EditRequest{}, ErrPendingRequestExists
		}
		return EditRequest{}, errors.Wrap(err, "creating edit request")
	}

	svc.logger.Info(
		fmt.Sprintf("edit request %s created for %s attendance %s", req.ID, typ, req.AttendanceID),
		map[string]interface{}{"requested_by": userID},
	)
	svc.notifier.Enqueue(notification.Intent{
		RecipientRoles: []string{user.RoleAdmin},
		Type:           notification.TypeEditRequestCreated,
		Title:          "New attendance edit request",
		Message:        fmt.Sprintf("An edit has been requested on a %s attendance record: %s", strings.ToLower(string(typ)), req.Reason),
		Metadata:       requestMetadata(req),
	})
	return req, nil
}

// ReviewEditRequest approves or rejects a PENDING request. An approval applies the proposed changes
// to the record, unless the record was modified after the request was made.
func (svc *Service) ReviewEditRequest(ctx context.Context, requestID, adminID string, rer ReviewEditRequest) (ReviewResult, error) {
	status := RequestStatus(strings.ToUpper(core.CleanString(rer.Status)))
	if status != RequestApproved && status != RequestRejected {
		return ReviewResult{}, core.NewValidationError(
			errors.Errorf("invalid review status %q", rer.Status),
			core.FieldError{Field: "status", Error: "status must be one of APPROVED, REJECTED"},
		)
	}
	var comment *string
	if rer.AdminComment != nil {
		if c := core.CleanString(*rer.AdminComment); c != "" {
			comment = &c
		}
	}

	var reviewed EditRequest
	ts := now()
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		req, err := svc.repo.GetEditRequest(ctx, requestID, exec)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return core.NewBadRequestError(fmt.Sprintf("cannot review a request with status %s", req.Status))
		}
		if status == RequestRejected && comment == nil {
			return ErrCommentRequired
		}

		if status == RequestApproved {
			kind, err := kindFor(req.AttendanceType)
			if err != nil {
				return err
			}
			rec, err := kind.get(ctx, svc.repo, req.AttendanceID, exec)
			if err != nil {
				return err
			}
			if rec.LastModified().After(req.CreatedAt) {
				svc.logger.Warn(fmt.Sprintf("edit request %s is stale: attendance %s was modified after it was made", req.ID, req.AttendanceID))
				return ErrStaleEditRequest
			}
			p, err := patchFromChanges(req.AttendanceType, kind, req.ProposedChanges)
			if err != nil {
				return err
			}
			if _, err = kind.apply(ctx, svc.repo, rec, p, svc.loc, ts, false, exec); err != nil {
				return errors.Wrap(err, "applying proposed changes")
			}
		}

		req.Status = status
		req.ReviewedBy = &adminID
		req.ReviewedAt = &ts
		req.AdminComment = comment
		req.UpdatedAt = ts
		reviewed, err = svc.repo.ReviewEditRequest(ctx, req, exec)
		return err
	})
	if err != nil {
		return ReviewResult{}, err
	}

	svc.logger.Info(
		fmt.Sprintf("edit request %s %s", reviewed.ID, strings.ToLower(string(status))),
		map[string]interface{}{"reviewed_by": adminID, "attendance_id": reviewed.AttendanceID, "requested_by": reviewed.RequestedBy},
	)
	msg := fmt.Sprintf("Your attendance edit request was %s.", strings.ToLower(string(status)))
	if comment != nil {
		msg += " Comment: " + *comment
	}
	svc.notifier.Enqueue(notification.Intent{
		RecipientIDs: []string{reviewed.RequestedBy},
		Type:         notification.TypeEditRequestReviewed,
		Title:        "Attendance edit request " + strings.ToLower(string(status)),
		Message:      msg,
		Metadata:     requestMetadata(reviewed),
	})
	return ReviewResult{RequestID: reviewed.ID, Status: reviewed.Status}, nil
}

func requestMetadata(req EditRequest) map[string]interface{} {
	return map[string]interface{}{
		"request_id":      req.ID,
		"attendance_id":   req.AttendanceID,
		"attendance_type": string(req.AttendanceType),
		"status":          string(req.Status),
	}
}

// ListMyEditRequests returns the requests made by userID, newest first.
func (svc *Service) ListMyEditRequests(ctx context.Context, userID string) ([]EditRequest, error) {
	reqs, _, err := svc.repo.QueryEditRequests(ctx, EditRequestFilter{RequestedBy: userID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying edit requests")
	}
	if reqs == nil {
		reqs = []EditRequest{}
	}
	return reqs, nil
}

func (svc *Service) QueryEditRequests(ctx context.Context, filter EditRequestFilter, page core.Pagination) ([]EditRequest, core.PageMeta, error) {
	filter.Clean()
	page = page.Clean()
	reqs, total, err := svc.repo.QueryEditRequests(ctx, filter, &page)
	if err != nil {
		return nil, core.PageMeta{}, errors.Wrap(err, "querying edit requests")
	}
	if reqs == nil {
		reqs = []EditRequest{}
	}
	return reqs, core.NewPageMeta(page, total), nil
}

func (svc *Service) GetEditRequest(ctx context.Context, id string) (EditRequest, error) {
	return svc.repo.GetEditRequest(ctx, id)
}
