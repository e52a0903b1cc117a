package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/blob"
	pkgerrors "praxihub/backend/pkg/errors"
)

var (
	ErrInternshipNotFound = errors.New("internship not found")
	ErrStorageUnavailable = errors.New("file storage is not configured")
	ErrContractMissing    = errors.New("internship has no contract attached")
	ErrInvalidCreateState = errors.New("internships can only be created as UPLOADED or ANALYZING")
	ErrNotRatable         = errors.New("only approved internships can be rated")
	ErrEmptyFile          = errors.New("uploaded file is empty")
	ErrForeignContractURL = errors.New("contract URL must point to the file storage or an allowed host")
	ErrStatusConflict     = pkgerrors.ErrStatusConflict
)

// UploadFile a contract received over multipart
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
	Source      string
}

// InternshipService internship lifecycle
type InternshipService interface {
	Create(ctx context.Context, caller Caller, req *dto.CreateInternshipRequest) (*dto.InternshipResponse, error)
	Upload(ctx context.Context, caller Caller, file UploadFile) (*dto.InternshipResponse, error)
	RequestOrg(ctx context.Context, caller Caller, req *dto.OrgRequest) (*dto.InternshipResponse, error)
	AttachContract(ctx context.Context, caller Caller, id string, file UploadFile) (*dto.InternshipResponse, error)
	Reanalyze(ctx context.Context, caller Caller, id string) (*dto.InternshipResponse, error)
	Confirm(ctx context.Context, caller Caller, id string, req *dto.ConfirmInternshipRequest) (*dto.InternshipResponse, error)
	Approve(ctx context.Context, caller Caller, id string) (*dto.InternshipResponse, error)
	Reject(ctx context.Context, caller Caller, id, reason string) (*dto.InternshipResponse, error)
	Rate(ctx context.Context, caller Caller, id string, req *dto.RatingRequest) (*dto.InternshipResponse, error)

	Latest(ctx context.Context, caller Caller) (*dto.InternshipResponse, error)
	Get(ctx context.Context, caller Caller, id string) (*dto.InternshipResponse, error)
	List(ctx context.Context, caller Caller, req *dto.InternshipListRequest) ([]dto.InternshipResponse, int64, error)
	Calendar(ctx context.Context, caller Caller, id string) ([]byte, string, error)
	Stream(ctx context.Context, caller Caller, buffer int) (<-chan dto.ChangeEvent, func(), error)

	// Transition CAS status change followed by a change event
	Transition(ctx context.Context, rec *model.Internship, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error)
	// CreateRecord inserts a prepared record and publishes it
	CreateRecord(ctx context.Context, rec *model.Internship) error
}

type internshipService struct {
	repo   *repository.Repository
	store  blob.Store
	hosts  blob.HostAllowlist
	bus    events.Bus
	logger *zap.Logger
}

// NewInternshipService creates an InternshipService. store may be nil;
// hosts lists the foreign hosts contract URLs may point to.
func NewInternshipService(
	repo *repository.Repository,
	store blob.Store,
	hosts blob.HostAllowlist,
	bus events.Bus,
	logger *zap.Logger,
) InternshipService {
	return &internshipService{
		repo:   repo,
		store:  store,
		hosts:  hosts,
		bus:    bus,
		logger: logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Creation
// ═══════════════════════════════════════════════════════════

func (s *internshipService) Create(ctx context.Context, caller Caller, req *dto.CreateInternshipRequest) (*dto.InternshipResponse, error) {
	if caller.Role != model.RoleStudent {
		return nil, ErrWrongRole
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil || (status != model.StatusUploaded && status != model.StatusAnalyzing) {
		return nil, ErrInvalidCreateState
	}

	contractURL := strings.TrimSpace(req.ContractURL)
	key, err := blob.Resolve(s.store, s.hosts, contractURL)
	if err != nil {
		return nil, ErrForeignContractURL
	}

	rec, err := s.newRecord(ctx, caller)
	if err != nil {
		return nil, err
	}
	rec.ContractURL = contractURL
	rec.ContractKey = key
	rec.FileName = req.FileName
	if rec.FileName == "" {
		rec.FileName = path.Base(rec.ContractURL)
	}
	if req.Source != "" {
		rec.Source = req.Source
	}
	rec.Status = status
	if status == model.StatusAnalyzing {
		rec.AnalysisToken = newToken()
	}

	if err := s.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return toInternshipResponse(rec), nil
}

func (s *internshipService) Upload(ctx context.Context, caller Caller, file UploadFile) (*dto.InternshipResponse, error) {
	if caller.Role != model.RoleStudent {
		return nil, ErrWrongRole
	}
	rec, err := s.newRecord(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.storeContract(ctx, caller.UserID, file, rec); err != nil {
		return nil, err
	}
	rec.Source = sourceOrDefault(file.Source)
	rec.Status = model.StatusAnalyzing
	rec.AnalysisToken = newToken()

	if err := s.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return toInternshipResponse(rec), nil
}

func (s *internshipService) RequestOrg(ctx context.Context, caller Caller, req *dto.OrgRequest) (*dto.InternshipResponse, error) {
	if caller.Role != model.RoleStudent {
		return nil, ErrWrongRole
	}
	rec, err := s.newRecord(ctx, caller)
	if err != nil {
		return nil, err
	}
	rec.OrganizationName = strings.TrimSpace(req.OrganizationName)
	rec.OrganizationICO = strings.TrimSpace(req.OrganizationICO)
	rec.OrganizationWeb = strings.TrimSpace(req.OrganizationWeb)
	rec.OrganizationEmail = strings.TrimSpace(req.OrganizationEmail)
	rec.Position = strings.TrimSpace(req.Position)
	rec.Description = req.Description
	rec.StartDate = strings.TrimSpace(req.StartDate)
	rec.EndDate = strings.TrimSpace(req.EndDate)
	rec.Status = model.StatusPendingOrgApproval

	if err := s.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return toInternshipResponse(rec), nil
}

// CreateRecord inserts rec after checking its initial status
func (s *internshipService) CreateRecord(ctx context.Context, rec *model.Internship) error {
	if !model.CanCreateWith(rec.Status) {
		return fmt.Errorf("%w: cannot create in %s", model.ErrInvalidTransition, rec.Status)
	}
	if err := s.repo.Internship.Create(ctx, rec); err != nil {
		s.logger.Error("create internship failed", zap.String("student_id", rec.StudentID), zap.Error(err))
		return err
	}
	s.logger.Info("internship created",
		zap.String("internship_id", rec.InternshipID),
		zap.String("status", string(rec.Status)),
	)
	s.publish(ctx, nil, rec)
	return nil
}

// ═══════════════════════════════════════════════════════════
// Student actions
// ═══════════════════════════════════════════════════════════

func (s *internshipService) AttachContract(ctx context.Context, caller Caller, id string, file UploadFile) (*dto.InternshipResponse, error) {
	rec, err := s.ownRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case model.StatusOrgApproved, model.StatusRejected, model.StatusUploaded:
	default:
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, rec.Status, model.StatusAnalyzing)
	}

	staged := rec.Clone()
	if err := s.storeContract(ctx, caller.UserID, file, staged); err != nil {
		return nil, err
	}

	out, err := s.Transition(ctx, rec, model.StatusAnalyzing, map[string]interface{}{
		"contract_url":        staged.ContractURL,
		"contract_key":        staged.ContractKey,
		"file_name":           staged.FileName,
		"source":              sourceOrDefault(file.Source),
		"analysis_token":      *newToken(),
		"analysis_claimed_at": nil,
		"ai_error_message":    "",
		"is_verified":         false,
	})
	if err != nil {
		return nil, err
	}
	return toInternshipResponse(out), nil
}

func (s *internshipService) Reanalyze(ctx context.Context, caller Caller, id string) (*dto.InternshipResponse, error) {
	rec, err := s.ownRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.ContractURL) == "" {
		return nil, ErrContractMissing
	}

	out, err := s.Transition(ctx, rec, model.StatusAnalyzing, map[string]interface{}{
		"analysis_token":      *newToken(),
		"analysis_claimed_at": nil,
		"ai_error_message":    "",
		"is_verified":         false,
	})
	if err != nil {
		return nil, err
	}
	return toInternshipResponse(out), nil
}

func (s *internshipService) Confirm(ctx context.Context, caller Caller, id string, req *dto.ConfirmInternshipRequest) (*dto.InternshipResponse, error) {
	rec, err := s.ownRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusNeedsReview {
		return nil, fmt.Errorf("%w: confirm requires %s", model.ErrInvalidTransition, model.StatusNeedsReview)
	}

	before := rec.Clone()
	rec.OrganizationName = strings.TrimSpace(req.OrganizationName)
	if ico := strings.TrimSpace(req.OrganizationICO); ico != "" {
		rec.OrganizationICO = ico
	}
	if pos := strings.TrimSpace(req.Position); pos != "" {
		rec.Position = pos
	}
	rec.StartDate = strings.TrimSpace(req.StartDate)
	rec.EndDate = strings.TrimSpace(req.EndDate)
	rec.IsVerified = true

	if err := s.repo.Internship.Update(ctx, rec); err != nil {
		s.logger.Error("confirm internship failed", zap.String("internship_id", id), zap.Error(err))
		return nil, err
	}
	s.publish(ctx, before, rec)
	return toInternshipResponse(rec), nil
}

// ═══════════════════════════════════════════════════════════
// Coordinator actions
// ═══════════════════════════════════════════════════════════

func (s *internshipService) Approve(ctx context.Context, caller Caller, id string) (*dto.InternshipResponse, error) {
	if !model.IsCoordinator(caller.Role) {
		return nil, ErrNoPermission
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var out *model.Internship
	switch rec.Status {
	case model.StatusPendingOrgApproval:
		out, err = s.Transition(ctx, rec, model.StatusOrgApproved, nil)
	case model.StatusNeedsReview:
		now := time.Now().UTC()
		out, err = s.Transition(ctx, rec, model.StatusApproved, map[string]interface{}{
			"approved_at": now,
			"approved_by": caller.UserID,
		})
	default:
		return nil, fmt.Errorf("%w: nothing to approve in %s", model.ErrInvalidTransition, rec.Status)
	}
	if err != nil {
		return nil, err
	}
	return toInternshipResponse(out), nil
}

func (s *internshipService) Reject(ctx context.Context, caller Caller, id, reason string) (*dto.InternshipResponse, error) {
	if !model.IsCoordinator(caller.Role) {
		return nil, ErrNoPermission
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.Transition(ctx, rec, model.StatusRejected, map[string]interface{}{
		"ai_error_message": strings.TrimSpace(reason),
	})
	if err != nil {
		return nil, err
	}
	return toInternshipResponse(out), nil
}

// ═══════════════════════════════════════════════════════════
// Ratings
// ═══════════════════════════════════════════════════════════

func (s *internshipService) Rate(ctx context.Context, caller Caller, id string, req *dto.RatingRequest) (*dto.InternshipResponse, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusApproved {
		return nil, ErrNotRatable
	}

	before := rec.Clone()
	rating := req.Rating
	switch caller.Role {
	case model.RoleStudent:
		if rec.StudentID != caller.UserID {
			return nil, ErrNoPermission
		}
		rec.StudentRating = &rating
		rec.StudentReview = strings.TrimSpace(req.Review)
	case model.RoleCompany:
		ico, err := s.companyICO(ctx, caller)
		if err != nil {
			return nil, err
		}
		if ico == "" || ico != rec.OrganizationICO {
			return nil, ErrNoPermission
		}
		rec.CompanyRating = &rating
		rec.CompanyReview = strings.TrimSpace(req.Review)
	default:
		return nil, ErrWrongRole
	}

	if err := s.repo.Internship.Update(ctx, rec); err != nil {
		s.logger.Error("rate internship failed", zap.String("internship_id", id), zap.Error(err))
		return nil, err
	}
	s.publish(ctx, before, rec)
	return toInternshipResponse(rec), nil
}

// ═══════════════════════════════════════════════════════════
// Reads
// ═══════════════════════════════════════════════════════════

func (s *internshipService) Latest(ctx context.Context, caller Caller) (*dto.InternshipResponse, error) {
	rec, err := s.repo.Internship.GetLatestByStudent(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInternshipNotFound
		}
		return nil, err
	}
	return toInternshipResponse(rec), nil
}

func (s *internshipService) Get(ctx context.Context, caller Caller, id string) (*dto.InternshipResponse, error) {
	rec, err := s.visibleRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return toInternshipResponse(rec), nil
}

func (s *internshipService) List(ctx context.Context, caller Caller, req *dto.InternshipListRequest) ([]dto.InternshipResponse, int64, error) {
	var filter repository.InternshipFilter
	if req.Status != "" {
		st, err := model.ParseStatus(req.Status)
		if err != nil {
			return nil, 0, err
		}
		filter.Status = st
	}

	switch {
	case model.IsCoordinator(caller.Role):
	case caller.Role == model.RoleCompany:
		ico, err := s.companyICO(ctx, caller)
		if err != nil {
			return nil, 0, err
		}
		if ico == "" {
			return []dto.InternshipResponse{}, 0, nil
		}
		filter.OrganizationICO = ico
	case caller.Role == model.RoleStudent:
		filter.StudentID = caller.UserID
	default:
		return nil, 0, ErrNoPermission
	}

	list, total, err := s.repo.Internship.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list internships failed", zap.Error(err))
		return nil, 0, err
	}

	out := make([]dto.InternshipResponse, 0, len(list))
	for i := range list {
		out = append(out, *toInternshipResponse(&list[i]))
	}
	return out, total, nil
}

// Stream subscribes to change events the caller may see
func (s *internshipService) Stream(ctx context.Context, caller Caller, buffer int) (<-chan dto.ChangeEvent, func(), error) {
	visible, err := s.visibility(ctx, caller)
	if err != nil {
		return nil, nil, err
	}

	changes, unsubscribe := s.bus.Subscribe(buffer)
	out := make(chan dto.ChangeEvent, buffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-changes:
				if !ok {
					return
				}
				if ch.After == nil || !visible(ch.After) {
					continue
				}
				ev := toChangeEvent(ch)
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, unsubscribe, nil
}

// ═══════════════════════════════════════════════════════════
// Status writes
// ═══════════════════════════════════════════════════════════

// Transition validates rec.Status -> to, applies it with a CAS on the
// current status and publishes the change
func (s *internshipService) Transition(ctx context.Context, rec *model.Internship, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error) {
	reason, _ := fields["ai_error_message"].(string)
	if err := model.ValidateTransition(rec.Status, to, reason); err != nil {
		return nil, err
	}

	out, err := s.repo.Internship.TransitionStatus(ctx, rec.InternshipID, rec.Status, to, fields)
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrStatusConflict) {
			s.logger.Error("status transition failed",
				zap.String("internship_id", rec.InternshipID),
				zap.String("from", string(rec.Status)),
				zap.String("to", string(to)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("internship status changed",
		zap.String("internship_id", rec.InternshipID),
		zap.String("from", string(rec.Status)),
		zap.String("status", string(to)),
	)
	s.publish(ctx, rec, out)
	return out, nil
}

// ── helpers ──

func (s *internshipService) publish(ctx context.Context, before, after *model.Internship) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.NewChange(before, after)); err != nil {
		s.logger.Warn("publish internship change failed", zap.String("internship_id", after.InternshipID), zap.Error(err))
	}
}

func (s *internshipService) newRecord(ctx context.Context, caller Caller) (*model.Internship, error) {
	user, err := s.repo.User.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &model.Internship{
		StudentID:    user.UserID,
		StudentEmail: user.Email,
		StudentName:  user.DisplayName,
		Source:       model.SourceWeb,
	}, nil
}

func (s *internshipService) storeContract(ctx context.Context, userID string, file UploadFile, rec *model.Internship) error {
	if s.store == nil {
		return ErrStorageUnavailable
	}
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}
	name := blob.SafePart(file.Name)
	key := blob.ContractKey(userID, fmt.Sprintf("%d_%s", time.Now().Unix(), name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := s.store.Put(ctx, key, bytes.NewReader(file.Data), contentType)
	if err != nil {
		s.logger.Error("store contract failed", zap.String("key", key), zap.Error(err))
		return err
	}
	rec.ContractURL = url
	rec.ContractKey = key
	rec.FileName = name
	return nil
}

func (s *internshipService) load(ctx context.Context, id string) (*model.Internship, error) {
	rec, err := s.repo.Internship.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInternshipNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *internshipService) ownRecord(ctx context.Context, caller Caller, id string) (*model.Internship, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.StudentID != caller.UserID {
		return nil, ErrNoPermission
	}
	return rec, nil
}

func (s *internshipService) visibleRecord(ctx context.Context, caller Caller, id string) (*model.Internship, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.visibility(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !visible(rec) {
		return nil, ErrNoPermission
	}
	return rec, nil
}

// visibility owner, coordinator, or the company whose ICO the record names
func (s *internshipService) visibility(ctx context.Context, caller Caller) (func(*model.Internship) bool, error) {
	switch {
	case model.IsCoordinator(caller.Role):
		return func(*model.Internship) bool { return true }, nil
	case caller.Role == model.RoleCompany:
		ico, err := s.companyICO(ctx, caller)
		if err != nil {
			return nil, err
		}
		return func(rec *model.Internship) bool {
			return ico != "" && rec.OrganizationICO == ico
		}, nil
	default:
		return func(rec *model.Internship) bool { return rec.StudentID == caller.UserID }, nil
	}
}

func (s *internshipService) companyICO(ctx context.Context, caller Caller) (string, error) {
	user, err := s.repo.User.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return strings.TrimSpace(user.CompanyICO), nil
}

func newToken() *string {
	t := uuid.New().String()
	return &t
}

func sourceOrDefault(src string) string {
	if src == model.SourceMobile {
		return src
	}
	return model.SourceWeb
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toInternshipResponse(rec *model.Internship) *dto.InternshipResponse {
	status := rec.Status
	if st, err := model.ParseStatus(string(rec.Status)); err == nil {
		status = st
	}
	normalized := rec
	if status != rec.Status {
		normalized = rec.Clone()
		normalized.Status = status
	}

	resp := &dto.InternshipResponse{
		ID:                rec.InternshipID,
		StudentID:         rec.StudentID,
		StudentEmail:      rec.StudentEmail,
		StudentName:       rec.StudentName,
		ContractURL:       rec.ContractURL,
		FileName:          rec.FileName,
		Source:            rec.Source,
		Generated:         rec.Generated,
		OrganizationName:  rec.OrganizationName,
		OrganizationICO:   rec.OrganizationICO,
		OrganizationWeb:   rec.OrganizationWeb,
		OrganizationEmail: rec.OrganizationEmail,
		Position:          rec.Position,
		StartDate:         rec.StartDate,
		EndDate:           rec.EndDate,
		Status:            status,
		Stage:             model.StageOf(normalized),
		IsVerified:        rec.IsVerified,
		AIErrorMessage:    rec.AIErrorMessage,
		ApprovedAt:        formatTime(rec.ApprovedAt),
		StudentRating:     rec.StudentRating,
		StudentReview:     rec.StudentReview,
		CompanyRating:     rec.CompanyRating,
		CompanyReview:     rec.CompanyReview,
		Version:           rec.Version,
		CreatedAt:         rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         rec.UpdatedAt.Format(time.RFC3339),
	}
	if len(rec.AIAnalysisResult) > 0 {
		resp.AIAnalysisResult = json.RawMessage(rec.AIAnalysisResult)
	}
	return resp
}

func toChangeEvent(ch events.Change) dto.ChangeEvent {
	ev := dto.ChangeEvent{
		ID:         ch.After.InternshipID,
		Status:     ch.After.Status,
		Internship: *toInternshipResponse(ch.After),
		At:         ch.At.Format(time.RFC3339Nano),
	}
	if ch.Before != nil {
		ev.PreviousStatus = ch.Before.Status
	}
	return ev
}
