package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"praxihub/backend/internal/model"
)

func intPtr(v int) *int { return &v }

func TestExportService_ExportInternships_Empty(t *testing.T) {
	f := newFixture()
	svc := NewExportService(f.repo, zap.NewNop())

	_, _, err := svc.ExportInternships(context.Background())
	if !errors.Is(err, ErrExportEmpty) {
		t.Errorf("expected ErrExportEmpty, got %v", err)
	}
}

func TestExportService_ExportInternships_Success(t *testing.T) {
	f := newFixture()
	svc := NewExportService(f.repo, zap.NewNop())
	f.addRecord(&model.Internship{
		StudentID: "s1", StudentName: "Jana", OrganizationName: "ACME", OrganizationICO: "12345678",
		Status: model.StatusApproved, StudentRating: intPtr(5), CompanyRating: intPtr(4),
	})
	f.addRecord(&model.Internship{
		StudentID: "s2", StudentName: "Petr", OrganizationName: "ACME", OrganizationICO: "12345678",
		Status: "COMPLETED", StudentRating: intPtr(2),
	})
	f.addRecord(&model.Internship{StudentID: "s3", StudentName: "Eva", OrganizationName: "Beta", Status: model.StatusUploaded})

	buf, filename, err := svc.ExportInternships(context.Background())
	if err != nil {
		t.Fatalf("ExportInternships failed: %v", err)
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("unexpected filename %s", filename)
	}
	// xlsx is a zip archive
	if buf.Len() < 2 || string(buf.Bytes()[:2]) != "PK" {
		t.Fatal("output is not an xlsx file")
	}

	wb, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, _ := wb.GetRows(sheetInternships)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[2][7] != string(model.StatusApproved) {
		t.Errorf("legacy status should export as APPROVED, got %s", rows[2][7])
	}

	orgs, _ := wb.GetRows(sheetOrganizations)
	if len(orgs) != 3 {
		t.Fatalf("expected header + 2 organizations, got %d", len(orgs))
	}
	acme := orgs[1]
	if acme[0] != "ACME" || acme[2] != "2" || acme[3] != "2" || acme[4] != "3.5" || acme[5] != "4" {
		t.Errorf("unexpected ACME aggregate %v", acme)
	}
}
