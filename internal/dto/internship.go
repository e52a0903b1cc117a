package dto

import (
	"encoding/json"

	"praxihub/backend/internal/model"
)

// ── internships ──

// CreateInternshipRequest POST /internships, contract already stored
type CreateInternshipRequest struct {
	ContractURL string `json:"contract_url" binding:"required,url,max=2048"`
	FileName    string `json:"file_name"    binding:"omitempty,max=255"`
	Status      string `json:"status"       binding:"required,oneof=UPLOADED ANALYZING"`
	Source      string `json:"source"       binding:"omitempty,oneof=web mobile_app"`
}

// OrgRequest POST /internships/org-request
type OrgRequest struct {
	OrganizationName  string `json:"organization_name"  binding:"required,max=255"`
	OrganizationICO   string `json:"organization_ico"   binding:"required,max=32"`
	OrganizationWeb   string `json:"organization_web"   binding:"omitempty,max=255"`
	OrganizationEmail string `json:"organization_email" binding:"omitempty,email"`
	Position          string `json:"position"           binding:"omitempty,max=255"`
	Description       string `json:"description"        binding:"omitempty,max=4000"`
	StartDate         string `json:"start_date"         binding:"omitempty,max=64"`
	EndDate           string `json:"end_date"           binding:"omitempty,max=64"`
}

// ConfirmInternshipRequest student confirms or corrects extracted fields
type ConfirmInternshipRequest struct {
	OrganizationName string `json:"organization_name" binding:"required,max=255"`
	OrganizationICO  string `json:"organization_ico"  binding:"omitempty,max=32"`
	Position         string `json:"position"          binding:"omitempty,max=255"`
	StartDate        string `json:"start_date"        binding:"required,max=64"`
	EndDate          string `json:"end_date"          binding:"required,max=64"`
}

// RejectInternshipRequest coordinator rejection
type RejectInternshipRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=2000"`
}

// RatingRequest POST /internships/:id/rating
type RatingRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"omitempty,max=2000"`
}

// InternshipListRequest GET /internships
type InternshipListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,internship_status"`
}

// InternshipResponse internship with its stage view
type InternshipResponse struct {
	ID                string                 `json:"id"`
	StudentID         string                 `json:"student_id"`
	StudentEmail      string                 `json:"student_email"`
	StudentName       string                 `json:"student_name"`
	ContractURL       string                 `json:"contract_url,omitempty"`
	FileName          string                 `json:"file_name,omitempty"`
	Source            string                 `json:"source"`
	Generated         bool                   `json:"generated"`
	OrganizationName  string                 `json:"organization_name"`
	OrganizationICO   string                 `json:"organization_ico"`
	OrganizationWeb   string                 `json:"organization_web,omitempty"`
	OrganizationEmail string                 `json:"organization_email,omitempty"`
	Position          string                 `json:"position,omitempty"`
	StartDate         string                 `json:"start_date"`
	EndDate           string                 `json:"end_date"`
	Status            model.InternshipStatus `json:"status"`
	Stage             model.Stage            `json:"stage"`
	IsVerified        bool                   `json:"is_verified"`
	AIAnalysisResult  json.RawMessage        `json:"ai_analysis_result,omitempty"`
	AIErrorMessage    string                 `json:"ai_error_message,omitempty"`
	ApprovedAt        string                 `json:"approved_at,omitempty"`
	StudentRating     *int                   `json:"student_rating,omitempty"`
	StudentReview     string                 `json:"student_review,omitempty"`
	CompanyRating     *int                   `json:"company_rating,omitempty"`
	CompanyReview     string                 `json:"company_review,omitempty"`
	Version           int                    `json:"version"`
	CreatedAt         string                 `json:"created_at"`
	UpdatedAt         string                 `json:"updated_at"`
}

// ChangeEvent one SSE message on /internships/stream
type ChangeEvent struct {
	ID             string                 `json:"id"`
	PreviousStatus model.InternshipStatus `json:"previous_status,omitempty"`
	Status         model.InternshipStatus `json:"status"`
	Internship     InternshipResponse     `json:"internship"`
	At             string                 `json:"at"`
}
