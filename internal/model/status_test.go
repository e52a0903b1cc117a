package model

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    InternshipStatus
		wantErr bool
	}{
		{"ANALYZING", StatusAnalyzing, false},
		{" needs_review ", StatusNeedsReview, false},
		{"COMPLETED", StatusApproved, false},
		{"ERROR_ANALYSIS", StatusRejected, false},
		{"DONE", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]InternshipStatus{
		{StatusPendingOrgApproval, StatusOrgApproved},
		{StatusPendingOrgApproval, StatusRejected},
		{StatusOrgApproved, StatusAnalyzing},
		{StatusUploaded, StatusAnalyzing},
		{StatusAnalyzing, StatusNeedsReview},
		{StatusAnalyzing, StatusRejected},
		{StatusNeedsReview, StatusApproved},
		{StatusNeedsReview, StatusAnalyzing},
		{StatusRejected, StatusAnalyzing},
	}
	for _, p := range allowed {
		if !CanTransition(p[0], p[1]) {
			t.Errorf("expected %s -> %s to be allowed", p[0], p[1])
		}
	}

	forbidden := [][2]InternshipStatus{
		{StatusAnalyzing, StatusApproved},
		{StatusAnalyzing, StatusAnalyzing},
		{StatusApproved, StatusRejected},
		{StatusApproved, StatusAnalyzing},
		{StatusPendingOrgApproval, StatusAnalyzing},
		{StatusUploaded, StatusApproved},
	}
	for _, p := range forbidden {
		if CanTransition(p[0], p[1]) {
			t.Errorf("expected %s -> %s to be forbidden", p[0], p[1])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		if got := s.IsTerminal(); got != (s == StatusApproved) {
			t.Errorf("%s.IsTerminal() = %v", s, got)
		}
	}
}

func TestValidateTransition_RejectNeedsReason(t *testing.T) {
	if err := ValidateTransition(StatusAnalyzing, StatusRejected, " "); !errors.Is(err, ErrRejectReasonRequired) {
		t.Errorf("expected ErrRejectReasonRequired, got %v", err)
	}
	if err := ValidateTransition(StatusAnalyzing, StatusRejected, "unreadable scan"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateTransition(StatusApproved, StatusRejected, "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCanCreateWith(t *testing.T) {
	if !CanCreateWith(StatusAnalyzing) || !CanCreateWith(StatusPendingOrgApproval) {
		t.Error("ANALYZING and PENDING_ORG_APPROVAL must be valid initial statuses")
	}
	if CanCreateWith(StatusApproved) || CanCreateWith(StatusRejected) {
		t.Error("APPROVED and REJECTED must not be initial statuses")
	}
}

func TestStageOf(t *testing.T) {
	rec := &Internship{Status: StatusRejected, AIErrorMessage: "missing contract URL"}
	st, ok := StageOf(rec).(Rejected)
	if !ok {
		t.Fatalf("expected Rejected stage, got %T", StageOf(rec))
	}
	if st.Reason != "missing contract URL" || st.Status() != StatusRejected {
		t.Errorf("unexpected stage %+v", st)
	}

	for _, s := range AllStatuses {
		if got := StageOf(&Internship{Status: s}); got == nil || got.Status() != s {
			t.Errorf("StageOf(%s) returned %v", s, got)
		}
	}

	if StageOf(&Internship{Status: "BOGUS"}) != nil {
		t.Error("unknown status should have no stage")
	}
}

func TestInternshipClone(t *testing.T) {
	tok := "t1"
	r := 4
	orig := &Internship{InternshipID: "a", AnalysisToken: &tok, StudentRating: &r}
	c := orig.Clone()
	*c.AnalysisToken = "t2"
	*c.StudentRating = 1
	if *orig.AnalysisToken != "t1" || *orig.StudentRating != 4 {
		t.Error("clone must not share pointers with the original")
	}
}
