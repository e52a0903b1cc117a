package model

import (
	"encoding/json"
	"time"
)

// Stage typed view of an internship: each variant carries only the
// fields that are meaningful in its status
type Stage interface {
	Status() InternshipStatus
}

// Requested the student asked for organization approval
type Requested struct {
	Kind             InternshipStatus `json:"kind"`
	OrganizationName string           `json:"organization_name"`
	OrganizationICO  string           `json:"organization_ico"`
	OrganizationWeb  string           `json:"organization_web"`
}

// OrgApproved the coordinator accepted the organization, contract pending
type OrgApproved struct {
	Kind             InternshipStatus `json:"kind"`
	OrganizationName string           `json:"organization_name"`
	OrganizationICO  string           `json:"organization_ico"`
}

// Uploaded a contract file is attached but not yet sent to analysis
type Uploaded struct {
	Kind        InternshipStatus `json:"kind"`
	ContractURL string           `json:"contract_url"`
	FileName    string           `json:"file_name"`
}

// Analyzing the intake trigger owns the record
type Analyzing struct {
	Kind        InternshipStatus `json:"kind"`
	ContractURL string           `json:"contract_url"`
	FileName    string           `json:"file_name"`
	Claimed     bool             `json:"claimed"`
}

// NeedsReview extracted fields wait for human confirmation
type NeedsReview struct {
	Kind             InternshipStatus `json:"kind"`
	ContractURL      string           `json:"contract_url"`
	OrganizationName string           `json:"organization_name"`
	OrganizationICO  string           `json:"organization_ico"`
	StartDate        string           `json:"start_date"`
	EndDate          string           `json:"end_date"`
	IsVerified       bool             `json:"is_verified"`
	AnalysisResult   json.RawMessage  `json:"analysis_result,omitempty"`
}

// Approved terminal success; only ratings may still change
type Approved struct {
	Kind             InternshipStatus `json:"kind"`
	OrganizationName string           `json:"organization_name"`
	OrganizationICO  string           `json:"organization_ico"`
	StartDate        string           `json:"start_date"`
	EndDate          string           `json:"end_date"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	StudentRating    *int             `json:"student_rating,omitempty"`
	CompanyRating    *int             `json:"company_rating,omitempty"`
}

// Rejected carries the reason shown to the student
type Rejected struct {
	Kind   InternshipStatus `json:"kind"`
	Reason string           `json:"reason"`
}

func (Requested) Status() InternshipStatus   { return StatusPendingOrgApproval }
func (OrgApproved) Status() InternshipStatus { return StatusOrgApproved }
func (Uploaded) Status() InternshipStatus    { return StatusUploaded }
func (Analyzing) Status() InternshipStatus   { return StatusAnalyzing }
func (NeedsReview) Status() InternshipStatus { return StatusNeedsReview }
func (Approved) Status() InternshipStatus    { return StatusApproved }
func (Rejected) Status() InternshipStatus    { return StatusRejected }

// StageOf projects a row onto its stage variant. Unknown statuses yield nil.
func StageOf(i *Internship) Stage {
	if i == nil {
		return nil
	}
	switch i.Status {
	case StatusPendingOrgApproval:
		return Requested{Kind: i.Status, OrganizationName: i.OrganizationName, OrganizationICO: i.OrganizationICO, OrganizationWeb: i.OrganizationWeb}
	case StatusOrgApproved:
		return OrgApproved{Kind: i.Status, OrganizationName: i.OrganizationName, OrganizationICO: i.OrganizationICO}
	case StatusUploaded:
		return Uploaded{Kind: i.Status, ContractURL: i.ContractURL, FileName: i.FileName}
	case StatusAnalyzing:
		return Analyzing{Kind: i.Status, ContractURL: i.ContractURL, FileName: i.FileName, Claimed: i.AnalysisClaimedAt != nil}
	case StatusNeedsReview:
		return NeedsReview{
			Kind:             i.Status,
			ContractURL:      i.ContractURL,
			OrganizationName: i.OrganizationName,
			OrganizationICO:  i.OrganizationICO,
			StartDate:        i.StartDate,
			EndDate:          i.EndDate,
			IsVerified:       i.IsVerified,
			AnalysisResult:   json.RawMessage(i.AIAnalysisResult),
		}
	case StatusApproved:
		return Approved{
			Kind:             i.Status,
			OrganizationName: i.OrganizationName,
			OrganizationICO:  i.OrganizationICO,
			StartDate:        i.StartDate,
			EndDate:          i.EndDate,
			ApprovedAt:       i.ApprovedAt,
			StudentRating:    i.StudentRating,
			CompanyRating:    i.CompanyRating,
		}
	case StatusRejected:
		return Rejected{Kind: i.Status, Reason: i.AIErrorMessage}
	}
	return nil
}
