package model

import (
	"time"

	"gorm.io/datatypes"
)

// Contract sources
const (
	SourceWeb       = "web"
	SourceMobile    = "mobile_app"
	SourceGenerated = "generated"
)

// Internship internships table: one per contract attempt
type Internship struct {
	InternshipID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"internship_id"`

	// ownership, immutable after creation
	StudentID    string `gorm:"type:uuid;not null;<-:create"         json:"student_id"`
	StudentEmail string `gorm:"type:varchar(255);not null;default:''" json:"student_email"`
	StudentName  string `gorm:"type:varchar(255);not null;default:''" json:"student_name"`

	ContractURL string `gorm:"type:text;not null;default:''"         json:"contract_url"`
	ContractKey string `gorm:"type:text;not null;default:''"         json:"-"`
	FileName    string `gorm:"type:varchar(255);not null;default:''" json:"file_name"`
	Source      string `gorm:"type:varchar(32);not null;default:'web'" json:"source"`
	Generated   bool   `gorm:"not null;default:false"                json:"generated"`

	OrganizationName  string `gorm:"type:text;not null;default:''"         json:"organization_name"`
	OrganizationICO   string `gorm:"column:organization_ico;type:text;not null;default:''" json:"organization_ico"`
	OrganizationWeb   string `gorm:"type:varchar(255);not null;default:''" json:"organization_web"`
	OrganizationEmail string `gorm:"type:varchar(255);not null;default:''" json:"organization_email"`
	Position          string `gorm:"type:varchar(255);not null;default:''" json:"position"`
	Description       string `gorm:"type:text;not null;default:''"         json:"description"`

	// free text, format not enforced
	StartDate string `gorm:"type:text;not null;default:''" json:"start_date"`
	EndDate   string `gorm:"type:text;not null;default:''" json:"end_date"`

	Status            InternshipStatus `gorm:"type:varchar(32);not null" json:"status"`
	AnalysisToken     *string          `gorm:"type:uuid"                 json:"-"`
	AnalysisClaimedAt *time.Time       `json:"-"`

	// last status change the student was notified about
	NotifiedStatus  InternshipStatus `gorm:"type:varchar(32);not null;default:''" json:"-"`
	NotifiedVersion int              `gorm:"not null;default:0"                   json:"-"`

	IsVerified       bool           `gorm:"not null;default:false"        json:"is_verified"`
	AIAnalysisResult datatypes.JSON `gorm:"column:ai_analysis_result;type:jsonb" json:"ai_analysis_result,omitempty"`
	AIErrorMessage   string         `gorm:"column:ai_error_message;type:text;not null;default:''" json:"ai_error_message"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy       *string        `gorm:"type:uuid" json:"approved_by,omitempty"`

	// company rated by student, student rated by company
	StudentRating *int   `gorm:"type:smallint"                 json:"student_rating,omitempty"`
	StudentReview string `gorm:"type:text;not null;default:''" json:"student_review"`
	CompanyRating *int   `gorm:"type:smallint"                 json:"company_rating,omitempty"`
	CompanyReview string `gorm:"type:text;not null;default:''" json:"company_review"`

	VersionedModel
}

// TableName internships
func (Internship) TableName() string { return "internships" }

// Clone returns a copy that shares no pointers with i
func (i *Internship) Clone() *Internship {
	if i == nil {
		return nil
	}
	c := *i
	if i.AnalysisToken != nil {
		v := *i.AnalysisToken
		c.AnalysisToken = &v
	}
	if i.AnalysisClaimedAt != nil {
		v := *i.AnalysisClaimedAt
		c.AnalysisClaimedAt = &v
	}
	if i.ApprovedAt != nil {
		v := *i.ApprovedAt
		c.ApprovedAt = &v
	}
	if i.ApprovedBy != nil {
		v := *i.ApprovedBy
		c.ApprovedBy = &v
	}
	if i.StudentRating != nil {
		v := *i.StudentRating
		c.StudentRating = &v
	}
	if i.CompanyRating != nil {
		v := *i.CompanyRating
		c.CompanyRating = &v
	}
	if i.AIAnalysisResult != nil {
		c.AIAnalysisResult = append(datatypes.JSON(nil), i.AIAnalysisResult...)
	}
	return &c
}
