package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/config"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/ai"
)

const contractURL = "https://bucket.test/contracts/stu-1/contract.pdf"

const goodReply = "```json\n{\"organization_name\": \"Acme s.r.o.\", \"organization_ico\": 12345678, \"start_date\": \"1. 7. 2026\", \"end_date\": \"31. 8. 2026\"}\n```"

func intakeConfig() *config.Config {
	return &config.Config{
		AI:     config.AIConfig{ExtractionModel: "extract-model"},
		Intake: config.IntakeConfig{Workers: 2, ClaimTimeout: 10 * time.Minute},
	}
}

type intakeFixture struct {
	repo    *mockInternshipRepo
	model   *fakeModel
	bus     *capturingBus
	fetcher *fakeFetcher
	handler *Intake
}

func newIntakeFixture(recs ...*model.Internship) *intakeFixture {
	f := &intakeFixture{
		repo:  newMockInternshipRepo(recs...),
		model: &fakeModel{reply: goodReply},
		bus:   &capturingBus{},
	}
	f.fetcher = &fakeFetcher{data: map[string][]byte{contractURL: []byte("%PDF-1.7 contract")}}
	f.handler = NewIntake(&repository.Repository{Internship: f.repo}, f.fetcher, f.model, f.bus, intakeConfig(), zap.NewNop())
	return f
}

func enterAnalyzing(rec *model.Internship) events.Change {
	before := rec.Clone()
	before.Status = model.StatusUploaded
	return events.NewChange(before, rec)
}

func TestIntake_Match(t *testing.T) {
	h := &Intake{}
	rec := analyzingRecord("i1", contractURL)

	if !h.Match(events.NewChange(nil, rec)) {
		t.Error("creation in ANALYZING should match")
	}
	if !h.Match(enterAnalyzing(rec)) {
		t.Error("UPLOADED -> ANALYZING should match")
	}
	if h.Match(events.NewChange(rec, rec)) {
		t.Error("ANALYZING -> ANALYZING should not match")
	}
}

func TestIntake_Success(t *testing.T) {
	rec := analyzingRecord("i1", contractURL)
	f := newIntakeFixture(rec)

	if err := f.handler.Handle(context.Background(), enterAnalyzing(rec)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got := f.repo.get("i1")
	if got.Status != model.StatusNeedsReview {
		t.Fatalf("expected NEEDS_REVIEW, got %s (error %q)", got.Status, got.AIErrorMessage)
	}
	if got.OrganizationName != "Acme s.r.o." {
		t.Errorf("unexpected organization: %q", got.OrganizationName)
	}
	if got.OrganizationICO != "12345678" {
		t.Errorf("numeric ICO should be kept as text, got %q", got.OrganizationICO)
	}
	if got.StartDate != "1. 7. 2026" || got.EndDate != "31. 8. 2026" {
		t.Errorf("dates must be copied verbatim, got %q / %q", got.StartDate, got.EndDate)
	}
	if got.IsVerified {
		t.Error("analysis result must not be verified")
	}
	if !strings.HasPrefix(string(got.AIAnalysisResult), "{") {
		t.Errorf("analysis result should be the cleaned JSON, got %s", got.AIAnalysisResult)
	}

	if f.model.last.Model != "extract-model" {
		t.Errorf("expected extraction model, got %q", f.model.last.Model)
	}
	if len(f.model.last.Attachments) != 1 || f.model.last.Attachments[0].MIMEType != "application/pdf" {
		t.Errorf("expected one PDF attachment, got %+v", f.model.last.Attachments)
	}
	if f.bus.count() != 1 {
		t.Fatalf("expected the outcome to be published once, got %d", f.bus.count())
	}
	out := f.bus.changes[0]
	if !out.StatusChanged() || out.After.Status != model.StatusNeedsReview {
		t.Errorf("published change should be ANALYZING -> NEEDS_REVIEW, got %+v", out)
	}
}

func TestIntake_FreeTextFieldsKeptVerbatim(t *testing.T) {
	rec := analyzingRecord("i1", contractURL)
	f := newIntakeFixture(rec)
	longDate := "od 1. července 2026 do konce letního semestru, nejpozději však do 30. září 2026"
	ico := "CZ12345678 / DIČ CZ12345678, zapsaná v OR vedeném Městským soudem v Praze"
	f.model.reply = `{"organization_name": "Acme s.r.o.", "organization_ico": "` + ico +
		`", "start_date": "` + longDate + `", "end_date": "` + longDate + `"}`

	if err := f.handler.Handle(context.Background(), enterAnalyzing(rec)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got := f.repo.get("i1")
	if got.Status != model.StatusNeedsReview {
		t.Fatalf("expected NEEDS_REVIEW, got %s (error %q)", got.Status, got.AIErrorMessage)
	}
	if got.OrganizationICO != ico {
		t.Errorf("ICO must be kept verbatim, got %q", got.OrganizationICO)
	}
	if got.StartDate != longDate || got.EndDate != longDate {
		t.Errorf("dates must be kept verbatim, got %q / %q", got.StartDate, got.EndDate)
	}
}

func TestIntake_PrefersStoredKey(t *testing.T) {
	rec := analyzingRecord("i1", "https://bucket.test/contracts/stu-1/expired-signature.pdf")
	rec.ContractKey = "contracts/stu-1/contract.pdf"
	f := newIntakeFixture(rec)
	f.fetcher.data = map[string][]byte{rec.ContractKey: []byte("%PDF-1.7 contract")}

	if err := f.handler.Handle(context.Background(), enterAnalyzing(rec)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := f.repo.get("i1"); got.Status != model.StatusNeedsReview {
		t.Fatalf("expected NEEDS_REVIEW via stored key, got %s (error %q)", got.Status, got.AIErrorMessage)
	}
}

func TestIntake_MissingOrganizationName(t *testing.T) {
	rec := analyzingRecord("i1", contractURL)
	f := newIntakeFixture(rec)
	f.model.reply = `{"organization_name": null, "organization_ico": null, "start_date": null, "end_date": null}`

	if err := f.handler.Handle(context.Background(), enterAnalyzing(rec)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	got := f.repo.get("i1")
	if got.Status != model.StatusNeedsReview {
		t.Fatalf("expected NEEDS_REVIEW, got %s", got.Status)
	}
	if got.OrganizationName != unknownOrganization {
		t.Errorf("expected placeholder organization, got %q", got.OrganizationName)
	}
}

func TestIntake_DuplicateEventCallsModelOnce(t *testing.T) {
	rec := analyzingRecord("i1", contractURL)
	f := newIntakeFixture(rec)
	f.model.block = make(chan struct{})
	change := enterAnalyzing(rec)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.handler.Handle(context.Background(), change)
		}()
	}
	// let the claim race settle before releasing the model
	time.Sleep(50 * time.Millisecond)
	close(f.model.block)
	wg.Wait()

	// a late redelivery after completion is a no-op as well
	if err := f.handler.Handle(context.Background(), change); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	if n := f.model.callCount(); n != 1 {
		t.Errorf("expected exactly one model call, got %d", n)
	}
	if f.bus.count() != 1 {
		t.Errorf("expected one published outcome, got %d", f.bus.count())
	}
}

func TestIntake_MissingContractURL(t *testing.T) {
	rec := analyzingRecord("i1", "")
	f := newIntakeFixture(rec)

	if err := f.handler.Handle(context.Background(), enterAnalyzing(rec)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	got := f.repo.get("i1")
	if got.Status != model.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", got.Status)
	}
	if got.AIErrorMessage != "missing contract URL" {
		t.Errorf("unexpected reason %q", got.AIErrorMessage)
	}
	if f.model.callCount() != 0 {
		t.Error("model must not be called without a contract")
	}
}

func TestIntake_FailuresReject(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		reply   string
		err     error
		noModel bool
		reason  string
	}{
		{name: "download fails", url: "https://elsewhere.test/missing.pdf", reason: "download contract"},
		{name: "model error", url: contractURL, err: errors.New("quota exceeded"), reason: "quota exceeded"},
		{name: "not json", url: contractURL, reply: "Sorry, I cannot read this.", reason: "not a JSON object"},
		{name: "json array", url: contractURL, reply: "[1,2]", reason: "not a JSON object"},
		{name: "no model", url: contractURL, noModel: true, reason: ai.ErrNotConfigured.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := analyzingRecord("i1", tt.url)
			f := newIntakeFixture(rec)
			f.model.reply = tt.reply
			f.model.err = tt.err
			if tt.noModel {
				f.handler.model = nil
			}

			if err := f.handler.Handle(context.Background(), enterAnalyzing(rec)); err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			got := f.repo.get("i1")
			if got.Status != model.StatusRejected {
				t.Fatalf("expected REJECTED, got %s", got.Status)
			}
			if !strings.Contains(got.AIErrorMessage, tt.reason) {
				t.Errorf("reason %q should contain %q", got.AIErrorMessage, tt.reason)
			}
			if f.bus.count() != 1 {
				t.Errorf("rejection should be published, got %d changes", f.bus.count())
			}
		})
	}
}

func TestIntake_SupersededResultDropped(t *testing.T) {
	rec := analyzingRecord("i1", contractURL)
	f := newIntakeFixture(rec)
	f.model.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.handler.Handle(context.Background(), enterAnalyzing(rec)) }()

	// wait for the model call, then restart the analysis under a new token
	deadline := time.Now().Add(2 * time.Second)
	for f.model.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	f.repo.mu.Lock()
	fresh := "tok-restarted"
	f.repo.records["i1"].AnalysisToken = &fresh
	f.repo.records["i1"].AnalysisClaimedAt = nil
	f.repo.mu.Unlock()
	close(f.model.block)

	if err := <-done; err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	got := f.repo.get("i1")
	if got.Status != model.StatusAnalyzing || *got.AnalysisToken != fresh {
		t.Errorf("restarted analysis must be left alone, got %s", got.Status)
	}
	if f.bus.count() != 0 {
		t.Errorf("dropped result must not be published, got %d", f.bus.count())
	}
}

func TestIntake_Sweep(t *testing.T) {
	old := time.Now().Add(-time.Hour)

	unclaimed := analyzingRecord("unclaimed", contractURL)
	unclaimed.UpdatedAt = old

	fresh := analyzingRecord("fresh", contractURL)
	fresh.UpdatedAt = time.Now()

	stale := analyzingRecord("stale", contractURL)
	stale.UpdatedAt = old
	stale.AnalysisClaimedAt = &old

	f := newIntakeFixture(unclaimed, fresh, stale)

	changes, err := f.handler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(changes) != 1 || changes[0].After.InternshipID != "unclaimed" {
		t.Fatalf("expected only the old unclaimed record, got %+v", changes)
	}
	if changes[0].Before != nil || !f.handler.Match(changes[0]) {
		t.Error("swept change should look like a creation and match the intake")
	}

	got := f.repo.get("stale")
	if got.Status != model.StatusRejected || got.AIErrorMessage != msgClaimExpired {
		t.Errorf("expired claim should be rejected, got %s %q", got.Status, got.AIErrorMessage)
	}
	if f.repo.get("fresh").Status != model.StatusAnalyzing {
		t.Error("fresh record must be left for its live event")
	}
}

func TestParseExtraction_FencedEqualsPlain(t *testing.T) {
	plain := `{"organization_name":"Acme","organization_ico":"123","start_date":"2026-07-01","end_date":"2026-08-31"}`
	fenced := "```json\n" + plain + "\n```\n"

	a, cleanA, err := ParseExtraction(plain)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	b, cleanB, err := ParseExtraction(fenced)
	if err != nil {
		t.Fatalf("fenced: %v", err)
	}
	if *a != *b {
		t.Errorf("fenced reply parsed differently: %+v vs %+v", a, b)
	}
	if cleanA != cleanB {
		t.Errorf("cleaned text differs: %q vs %q", cleanA, cleanB)
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name string
		url  string
		file string
		data []byte
		want string
	}{
		{"pdf url", "https://x.test/a.PDF?sig=1", "", []byte("xx"), "application/pdf"},
		{"pdf file name", "https://x.test/a", "scan.pdf", []byte("xx"), "application/pdf"},
		{"pdf magic", "https://x.test/a", "", []byte("%PDF-1.4"), "application/pdf"},
		{"png magic", "https://x.test/a", "", []byte("\x89PNG\r\n\x1a\nrest"), "image/png"},
		{"fallback jpeg", "https://x.test/a.jpg", "a.jpg", []byte{0xff, 0xd8}, "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIME(tt.url, tt.file, tt.data); got != tt.want {
				t.Errorf("DetectMIME = %s, want %s", got, tt.want)
			}
		})
	}
}
