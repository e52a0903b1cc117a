package pdf

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func validFields() ContractFields {
	return ContractFields{
		StudentName: "Jan Novak",
		CompanyName: "Acme s.r.o.",
		ICO:         "12345678",
		Position:    "Backend developer",
		StartDate:   "2026-07-01",
		EndDate:     "2026-08-31",
	}
}

func TestMissing(t *testing.T) {
	if m := validFields().Missing(); len(m) != 0 {
		t.Errorf("expected no missing fields, got %v", m)
	}

	f := validFields()
	f.ICO = "  "
	f.EndDate = ""
	m := f.Missing()
	if len(m) != 2 || m[0] != "ico" || m[1] != "endDate" {
		t.Errorf("unexpected missing list %v", m)
	}
}

func TestRenderContract_CoreFont(t *testing.T) {
	data, err := RenderContract(validFields(), nil, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RenderContract failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestFontFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ttf"))
	}))
	defer srv.Close()

	data, err := NewFontFetcher(srv.URL+"/font.ttf", time.Second).Fetch(context.Background())
	if err != nil || string(data) != "ttf" {
		t.Fatalf("unexpected result %q, %v", data, err)
	}

	_, err = NewFontFetcher(srv.URL+"/broken", time.Second).Fetch(context.Background())
	if !errors.Is(err, ErrFontUnavailable) {
		t.Errorf("expected ErrFontUnavailable, got %v", err)
	}
}
