package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
)

// ── export errors ──

var (
	ErrExportEmpty        = errors.New("no internships to export")
	ErrExportGenerateFail = errors.New("failed to generate Excel file")
)

const (
	sheetInternships   = "Internships"
	sheetOrganizations = "Organizations"
)

// ExportService spreadsheet exports for coordinators.
// The workbook is returned as a buffer; the handler sets the download headers.
type ExportService interface {
	// ExportInternships all records plus average ratings per organization
	ExportInternships(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService creates an ExportService
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportInternships
// ═══════════════════════════════════════════════════════════
//
// Sheet "Internships": one row per record.
// Sheet "Organizations": per ICO (name when no ICO) the record count,
// approved count and average student/company ratings.

func (s *exportService) ExportInternships(ctx context.Context) (*bytes.Buffer, string, error) {
	list, err := s.repo.Internship.ListAll(ctx)
	if err != nil {
		s.logger.Error("load internships for export failed", zap.Error(err))
		return nil, "", err
	}
	if len(list) == 0 {
		return nil, "", ErrExportEmpty
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(sheetInternships)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{
		"Student", "Student email", "Organization", "ICO", "Position",
		"Start", "End", "Status", "Verified", "Source",
		"Student rating", "Student review", "Company rating", "Company review",
		"Approved at", "Created at",
	}
	widths := []float64{22, 28, 28, 12, 22, 12, 12, 22, 10, 12, 14, 36, 14, 36, 20, 20}
	writeHeader(f, sheetInternships, headers, widths, headerStyle)

	row := 2
	for i := range list {
		rec := &list[i]
		status := rec.Status
		if st, err := model.ParseStatus(string(rec.Status)); err == nil {
			status = st
		}
		values := []interface{}{
			rec.StudentName,
			rec.StudentEmail,
			rec.OrganizationName,
			rec.OrganizationICO,
			rec.Position,
			rec.StartDate,
			rec.EndDate,
			string(status),
			yesNo(rec.IsVerified),
			rec.Source,
			ratingCell(rec.StudentRating),
			rec.StudentReview,
			ratingCell(rec.CompanyRating),
			rec.CompanyReview,
			formatTime(rec.ApprovedAt),
			rec.CreatedAt.Format(time.RFC3339),
		}
		for c, v := range values {
			f.SetCellValue(sheetInternships, cell(colName(c), row), v)
		}
		row++
	}

	// ── organizations ──
	f.NewSheet(sheetOrganizations)
	writeHeader(f, sheetOrganizations,
		[]string{"Organization", "ICO", "Internships", "Approved", "Avg student rating", "Avg company rating"},
		[]float64{30, 12, 12, 12, 20, 20},
		headerStyle,
	)
	for i, agg := range aggregateOrganizations(list) {
		r := i + 2
		f.SetCellValue(sheetOrganizations, cell("A", r), agg.name)
		f.SetCellValue(sheetOrganizations, cell("B", r), agg.ico)
		f.SetCellValue(sheetOrganizations, cell("C", r), agg.total)
		f.SetCellValue(sheetOrganizations, cell("D", r), agg.approved)
		f.SetCellValue(sheetOrganizations, cell("E", r), averageCell(agg.studentSum, agg.studentN))
		f.SetCellValue(sheetOrganizations, cell("F", r), averageCell(agg.companySum, agg.companyN))
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write Excel failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("internships_%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	return buf, filename, nil
}

// ── helpers ──

type orgAggregate struct {
	name       string
	ico        string
	total      int
	approved   int
	studentSum int
	studentN   int
	companySum int
	companyN   int
}

func aggregateOrganizations(list []model.Internship) []*orgAggregate {
	byKey := make(map[string]*orgAggregate)
	var keys []string
	for i := range list {
		rec := &list[i]
		key := rec.OrganizationICO
		if key == "" {
			key = "name:" + rec.OrganizationName
		}
		agg, ok := byKey[key]
		if !ok {
			agg = &orgAggregate{name: rec.OrganizationName, ico: rec.OrganizationICO}
			byKey[key] = agg
			keys = append(keys, key)
		}
		if agg.name == "" {
			agg.name = rec.OrganizationName
		}
		agg.total++
		if st, _ := model.ParseStatus(string(rec.Status)); st == model.StatusApproved {
			agg.approved++
		}
		if rec.StudentRating != nil {
			agg.studentSum += *rec.StudentRating
			agg.studentN++
		}
		if rec.CompanyRating != nil {
			agg.companySum += *rec.CompanyRating
			agg.companyN++
		}
	}

	out := make([]*orgAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func writeHeader(f *excelize.File, sheet string, headers []string, widths []float64, style int) {
	for i, h := range headers {
		col := colName(i)
		f.SetCellValue(sheet, cell(col, 1), h)
		if i < len(widths) {
			f.SetColWidth(sheet, col, col, widths[i])
		}
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), style)
}

func ratingCell(r *int) interface{} {
	if r == nil {
		return ""
	}
	return *r
}

func averageCell(sum, n int) interface{} {
	if n == 0 {
		return ""
	}
	return float64(int(float64(sum)/float64(n)*100+0.5)) / 100
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
