package model

import (
	"errors"
	"fmt"
	"strings"
)

// InternshipStatus workflow state of an internship record
type InternshipStatus string

const (
	StatusPendingOrgApproval InternshipStatus = "PENDING_ORG_APPROVAL"
	StatusOrgApproved        InternshipStatus = "ORG_APPROVED"
	StatusUploaded           InternshipStatus = "UPLOADED"
	StatusAnalyzing          InternshipStatus = "ANALYZING"
	StatusNeedsReview        InternshipStatus = "NEEDS_REVIEW"
	StatusApproved           InternshipStatus = "APPROVED"
	StatusRejected           InternshipStatus = "REJECTED"
)

var (
	// ErrInvalidStatus unknown status string
	ErrInvalidStatus = errors.New("invalid internship status")
	// ErrInvalidTransition the state machine forbids the move
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrRejectReasonRequired REJECTED must carry a reason
	ErrRejectReasonRequired = errors.New("rejection requires a reason")
)

// AllStatuses in workflow order
var AllStatuses = []InternshipStatus{
	StatusPendingOrgApproval,
	StatusOrgApproved,
	StatusUploaded,
	StatusAnalyzing,
	StatusNeedsReview,
	StatusApproved,
	StatusRejected,
}

// legacy spellings still found in old records and clients
var legacyStatuses = map[string]InternshipStatus{
	"COMPLETED":      StatusApproved,
	"ERROR_ANALYSIS": StatusRejected,
}

var initialStatuses = map[InternshipStatus]bool{
	StatusPendingOrgApproval: true,
	StatusUploaded:           true,
	StatusAnalyzing:          true,
	StatusNeedsReview:        true,
}

var transitions = map[InternshipStatus][]InternshipStatus{
	StatusPendingOrgApproval: {StatusOrgApproved, StatusRejected},
	StatusOrgApproved:        {StatusUploaded, StatusAnalyzing},
	StatusUploaded:           {StatusAnalyzing, StatusRejected},
	StatusAnalyzing:          {StatusNeedsReview, StatusRejected},
	StatusNeedsReview:        {StatusApproved, StatusRejected, StatusAnalyzing},
	StatusRejected:           {StatusAnalyzing},
	StatusApproved:           nil,
}

// ParseStatus normalizes s, mapping legacy spellings onto the canonical set
func ParseStatus(s string) (InternshipStatus, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if st, ok := legacyStatuses[s]; ok {
		return st, nil
	}
	st := InternshipStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a canonical status
func (s InternshipStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal no further status changes are possible
func (s InternshipStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanCreateWith statuses a new record may start in
func CanCreateWith(s InternshipStatus) bool {
	return initialStatuses[s]
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to InternshipStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition CanTransition with the rejection-reason rule applied
func ValidateTransition(from, to InternshipStatus, reason string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StatusRejected && strings.TrimSpace(reason) == "" {
		return ErrRejectReasonRequired
	}
	return nil
}
