package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"praxihub/backend/internal/model"
	pkgerrors "praxihub/backend/pkg/errors"
)

// InternshipFilter list filter; empty fields are ignored
type InternshipFilter struct {
	Status          model.InternshipStatus
	StudentID       string
	OrganizationICO string
}

// InternshipRepository internship data access.
// Status only changes through TransitionStatus.
type InternshipRepository interface {
	Create(ctx context.Context, rec *model.Internship) error
	GetByID(ctx context.Context, id string) (*model.Internship, error)
	GetLatestByStudent(ctx context.Context, studentID string) (*model.Internship, error)
	List(ctx context.Context, filter InternshipFilter, offset, limit int) ([]model.Internship, int64, error)
	ListAll(ctx context.Context) ([]model.Internship, error)
	Update(ctx context.Context, rec *model.Internship) error
	TransitionStatus(ctx context.Context, id string, from, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error)
	Claim(ctx context.Context, id, token string) (bool, error)
	CompleteAnalysis(ctx context.Context, id, token string, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error)
	ListUnclaimedAnalyzing(ctx context.Context, olderThan time.Time, limit int) ([]model.Internship, error)
	ListStaleClaims(ctx context.Context, claimedBefore time.Time, limit int) ([]model.Internship, error)
	MarkNotified(ctx context.Context, id string, status model.InternshipStatus, version int) error
	ListUnnotified(ctx context.Context, olderThan time.Time, limit int) ([]model.Internship, error)
}

type internshipRepo struct {
	db *gorm.DB
}

// NewInternshipRepo creates an InternshipRepository
func NewInternshipRepo(db *gorm.DB) InternshipRepository {
	return &internshipRepo{db: db}
}

func (r *internshipRepo) Create(ctx context.Context, rec *model.Internship) error {
	if rec.Status == model.StatusRejected && strings.TrimSpace(rec.AIErrorMessage) == "" {
		return model.ErrRejectReasonRequired
	}
	// creation itself is not a status change
	if rec.NotifiedStatus == "" {
		rec.NotifiedStatus = rec.Status
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *internshipRepo) GetByID(ctx context.Context, id string) (*model.Internship, error) {
	var rec model.Internship
	err := r.db.WithContext(ctx).
		Where("internship_id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *internshipRepo) GetLatestByStudent(ctx context.Context, studentID string) (*model.Internship, error) {
	var rec model.Internship
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *internshipRepo) List(ctx context.Context, filter InternshipFilter, offset, limit int) ([]model.Internship, int64, error) {
	var list []model.Internship
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Internship{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.StudentID != "" {
		db = db.Where("student_id = ?", filter.StudentID)
	}
	if filter.OrganizationICO != "" {
		db = db.Where("organization_ico = ?", filter.OrganizationICO)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *internshipRepo) ListAll(ctx context.Context) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Order("organization_name ASC, created_at ASC").
		Find(&list).Error
	return list, err
}

// Update writes the editable, non-status columns under the optimistic lock
func (r *internshipRepo) Update(ctx context.Context, rec *model.Internship) error {
	oldVersion := rec.Version
	result := r.db.WithContext(ctx).
		Model(&model.Internship{}).
		Where("internship_id = ? AND version = ?", rec.InternshipID, oldVersion).
		Updates(map[string]interface{}{
			"organization_name":  rec.OrganizationName,
			"organization_ico":   rec.OrganizationICO,
			"organization_web":   rec.OrganizationWeb,
			"organization_email": rec.OrganizationEmail,
			"position":           rec.Position,
			"description":        rec.Description,
			"start_date":         rec.StartDate,
			"end_date":           rec.EndDate,
			"is_verified":        rec.IsVerified,
			"student_rating":     rec.StudentRating,
			"student_review":     rec.StudentReview,
			"company_rating":     rec.CompanyRating,
			"company_review":     rec.CompanyReview,
			"version":            oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	rec.Version = oldVersion + 1
	return nil
}

// TransitionStatus compare-and-set on status: the row only moves when it
// is still in from. Returns the row as written.
func (r *internshipRepo) TransitionStatus(ctx context.Context, id string, from, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error) {
	if to == model.StatusRejected && strings.TrimSpace(stringField(fields, "ai_error_message")) == "" {
		return nil, model.ErrRejectReasonRequired
	}

	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["version"] = gorm.Expr("version + 1")

	var out model.Internship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Internship{}).
			Where("internship_id = ? AND status = ?", id, from).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrStatusConflict
		}
		return tx.Where("internship_id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim marks an ANALYZING record as taken by the analysis carrying token.
// Only the first caller wins.
func (r *internshipRepo) Claim(ctx context.Context, id, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Internship{}).
		Where("internship_id = ? AND status = ? AND analysis_token = ? AND analysis_claimed_at IS NULL",
			id, model.StatusAnalyzing, token).
		UpdateColumn("analysis_claimed_at", time.Now().UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompleteAnalysis moves a claimed ANALYZING record out of analysis. The
// token must still match, so a restarted analysis is never overwritten by
// a stale one.
func (r *internshipRepo) CompleteAnalysis(ctx context.Context, id, token string, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error) {
	if err := model.ValidateTransition(model.StatusAnalyzing, to, stringField(fields, "ai_error_message")); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["version"] = gorm.Expr("version + 1")

	var out model.Internship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Internship{}).
			Where("internship_id = ? AND status = ? AND analysis_token = ?", id, model.StatusAnalyzing, token).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrStatusConflict
		}
		return tx.Where("internship_id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func (r *internshipRepo) ListUnclaimedAnalyzing(ctx context.Context, olderThan time.Time, limit int) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Where("status = ? AND analysis_claimed_at IS NULL AND updated_at <= ?", model.StatusAnalyzing, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListStaleClaims ANALYZING records whose analysis was claimed before
// claimedBefore and never finished
func (r *internshipRepo) ListStaleClaims(ctx context.Context, claimedBefore time.Time, limit int) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Where("status = ? AND analysis_claimed_at IS NOT NULL AND analysis_claimed_at <= ?", model.StatusAnalyzing, claimedBefore).
		Order("analysis_claimed_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// MarkNotified records that the student has been told about the change that
// produced version. An older version never overwrites a newer one.
func (r *internshipRepo) MarkNotified(ctx context.Context, id string, status model.InternshipStatus, version int) error {
	return r.db.WithContext(ctx).
		Model(&model.Internship{}).
		Where("internship_id = ? AND notified_version < ?", id, version).
		UpdateColumns(map[string]interface{}{
			"notified_status":  status,
			"notified_version": version,
		}).Error
}

// ListUnnotified records whose current status the student has not been
// notified about and that have been quiet since olderThan
func (r *internshipRepo) ListUnnotified(ctx context.Context, olderThan time.Time, limit int) ([]model.Internship, error) {
	var list []model.Internship
	err := r.db.WithContext(ctx).
		Where("notified_status <> status AND updated_at <= ?", olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
