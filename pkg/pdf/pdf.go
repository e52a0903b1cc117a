// Package pdf renders the internship contract template.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// ErrFontUnavailable the contract font could not be fetched
var ErrFontUnavailable = errors.New("pdf: font unavailable")

const fontFamily = "Roboto"

// ContractFields values printed into the contract
type ContractFields struct {
	StudentName string
	CompanyName string
	ICO         string
	Position    string
	StartDate   string
	EndDate     string
}

// Missing names of empty required fields
func (f ContractFields) Missing() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("studentName", f.StudentName)
	check("companyName", f.CompanyName)
	check("ico", f.ICO)
	check("position", f.Position)
	check("startDate", f.StartDate)
	check("endDate", f.EndDate)
	return missing
}

// FontFetcher downloads the TTF used for non-ASCII text
type FontFetcher struct {
	url    string
	client *http.Client
}

// NewFontFetcher creates a FontFetcher
func NewFontFetcher(url string, timeout time.Duration) *FontFetcher {
	return &FontFetcher{url: url, client: &http.Client{Timeout: timeout}}
}

// Fetch returns the font bytes
func (f *FontFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFontUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFontUnavailable)
	}
	return data, nil
}

// RenderContract lays out the contract on one A4 page.
// A nil font falls back to the core Helvetica face, which is ASCII only.
func RenderContract(fields ContractFields, font []byte, issued time.Time) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	doc.SetCreationDate(issued)
	doc.SetTitle("Internship agreement", true)

	family := "Helvetica"
	if font != nil {
		doc.AddUTF8FontFromBytes(fontFamily, "", font)
		family = fontFamily
	}

	doc.AddPage()

	doc.SetFont(family, "", 20)
	doc.CellFormat(0, 12, "Internship Agreement", "", 1, "C", false, 0, "")
	doc.SetFont(family, "", 10)
	doc.CellFormat(0, 6, "Issued "+issued.Format("2006-01-02"), "", 1, "C", false, 0, "")
	doc.Ln(10)

	section := func(title string) {
		doc.SetFont(family, "", 13)
		doc.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
		doc.Ln(2)
		doc.SetFont(family, "", 11)
	}
	row := func(label, value string) {
		doc.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		doc.MultiCell(0, 7, value, "", "L", false)
	}

	section("1. Parties")
	row("Student:", fields.StudentName)
	row("Organization:", fields.CompanyName)
	row("Company ID (ICO):", fields.ICO)
	doc.Ln(4)

	section("2. Subject")
	row("Position:", fields.Position)
	doc.MultiCell(0, 6, "The organization agrees to provide the student with a professional "+
		"internship in the position stated above and to appoint a supervisor who will "+
		"confirm the completion of the internship.", "", "J", false)
	doc.Ln(4)

	section("3. Period")
	row("Start:", fields.StartDate)
	row("End:", fields.EndDate)
	doc.Ln(20)

	y := doc.GetY()
	doc.Line(20, y, 90, y)
	doc.Line(120, y, 190, y)
	doc.SetY(y + 2)
	doc.CellFormat(85, 6, "Student signature", "", 0, "L", false, 0, "")
	doc.CellFormat(0, 6, "Organization signature and stamp", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render contract: %w", err)
	}
	return buf.Bytes(), nil
}
