package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"praxihub/backend/config"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/ai"
	pkgerrors "praxihub/backend/pkg/errors"
)

const (
	unknownOrganization = "Unknown organization"
	msgMissingContract  = "missing contract URL"
	msgClaimExpired     = "contract analysis was interrupted, please start it again"

	// unclaimed records younger than this are still expected to arrive as live events
	sweepGrace = 30 * time.Second
	sweepLimit = 100
)

const extractionPrompt = `You are reading an internship contract between a university student and a host organization.
Extract the following fields and answer with a single JSON object, nothing else:
{
  "organization_name": "legal name of the host organization",
  "organization_ico": "company identification number (ICO), digits only",
  "start_date": "internship start date as written in the contract",
  "end_date": "internship end date as written in the contract"
}
Use null for any field that does not appear in the document.`

// Fetcher downloads contract bytes, by storage key when known, else by URL
type Fetcher interface {
	Fetch(ctx context.Context, key, url string) ([]byte, error)
}

// Extraction fields read from a contract by the model
type Extraction struct {
	OrganizationName flexString `json:"organization_name"`
	OrganizationICO  flexString `json:"organization_ico"`
	StartDate        flexString `json:"start_date"`
	EndDate          flexString `json:"end_date"`
}

// flexString accepts a JSON string, number or null
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("expected a string, got %s", b)
}

// ParseExtraction cleans a model reply and decodes it. Returns the decoded
// fields and the cleaned JSON text.
func ParseExtraction(reply string) (*Extraction, string, error) {
	cleaned := ai.StripCodeFences(reply)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, "", fmt.Errorf("model reply is not a JSON object: %q", truncate(cleaned, 200))
	}
	var ex Extraction
	if err := json.Unmarshal([]byte(cleaned), &ex); err != nil {
		return nil, "", fmt.Errorf("decode model reply: %w", err)
	}
	return &ex, cleaned, nil
}

// Fields converts the extraction into the columns written on success
func (e *Extraction) Fields(cleaned string) map[string]interface{} {
	name := string(e.OrganizationName)
	if name == "" {
		name = unknownOrganization
	}
	fields := map[string]interface{}{
		"organization_name":  name,
		"start_date":         string(e.StartDate),
		"end_date":           string(e.EndDate),
		"ai_analysis_result": datatypes.JSON(cleaned),
		"ai_error_message":   "",
		"is_verified":        false,
	}
	if e.OrganizationICO != "" {
		fields["organization_ico"] = string(e.OrganizationICO)
	}
	return fields
}

// Intake analyzes a contract when its record enters ANALYZING
type Intake struct {
	repo    *repository.Repository
	fetcher Fetcher
	model   ai.Model
	bus     events.Bus
	cfg     *config.Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewIntake creates the intake handler. model may be nil, every analysis
// is then rejected with the configuration error.
func NewIntake(repo *repository.Repository, fetcher Fetcher, m ai.Model, bus events.Bus, cfg *config.Config, logger *zap.Logger) *Intake {
	return &Intake{
		repo:    repo,
		fetcher: fetcher,
		model:   m,
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Intake) Name() string { return "intake" }

func (h *Intake) Match(ch events.Change) bool {
	return ch.EnteredStatus(model.StatusAnalyzing)
}

// Handle claims the record, runs the analysis and writes the outcome
func (h *Intake) Handle(ctx context.Context, ch events.Change) error {
	id := changeID(ch)

	// the token never travels in the event, reload it
	rec, err := h.repo.Internship.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Warn("intake: record vanished", zap.String("internship_id", id))
			return nil
		}
		return fmt.Errorf("load internship: %w", err)
	}
	if rec.Status != model.StatusAnalyzing || rec.AnalysisToken == nil {
		h.logger.Debug("intake: record no longer analyzing", zap.String("internship_id", id), zap.String("status", string(rec.Status)))
		return nil
	}
	token := *rec.AnalysisToken

	won, err := h.repo.Internship.Claim(ctx, id, token)
	if err != nil {
		return fmt.Errorf("claim internship: %w", err)
	}
	if !won {
		h.logger.Info("intake: analysis already claimed, skipping", zap.String("internship_id", id))
		return nil
	}

	fields, analyzeErr := h.analyze(ctx, rec)
	if analyzeErr != nil {
		h.logger.Warn("intake: analysis failed", zap.String("internship_id", id), zap.Error(analyzeErr))
		return h.complete(ctx, rec, token, model.StatusRejected, rejectFields(analyzeErr.Error()))
	}

	if err := h.complete(ctx, rec, token, model.StatusNeedsReview, fields); err != nil {
		h.logger.Error("intake: writing analysis failed, rejecting", zap.String("internship_id", id), zap.Error(err))
		return h.complete(ctx, rec, token, model.StatusRejected, rejectFields(err.Error()))
	}
	return nil
}

func (h *Intake) complete(ctx context.Context, before *model.Internship, token string, to model.InternshipStatus, fields map[string]interface{}) error {
	out, err := h.repo.Internship.CompleteAnalysis(ctx, before.InternshipID, token, to, fields)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrStatusConflict) {
			h.logger.Info("intake: analysis superseded, result dropped",
				zap.String("internship_id", before.InternshipID),
				zap.String("outcome", string(to)))
			return nil
		}
		return err
	}

	h.logger.Info("intake: analysis finished",
		zap.String("internship_id", out.InternshipID),
		zap.String("status", string(out.Status)))

	if h.bus != nil {
		if err := h.bus.Publish(ctx, events.NewChange(before, out)); err != nil {
			h.logger.Warn("intake: publish change failed", zap.String("internship_id", out.InternshipID), zap.Error(err))
		}
	}
	return nil
}

func (h *Intake) analyze(ctx context.Context, rec *model.Internship) (map[string]interface{}, error) {
	if strings.TrimSpace(rec.ContractURL) == "" && rec.ContractKey == "" {
		return nil, errors.New(msgMissingContract)
	}
	if h.model == nil {
		return nil, ai.ErrNotConfigured
	}

	data, err := h.fetcher.Fetch(ctx, rec.ContractKey, rec.ContractURL)
	if err != nil {
		return nil, fmt.Errorf("download contract: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("download contract: empty file")
	}

	reply, err := h.model.Generate(ctx, ai.Request{
		Model:  h.cfg.AI.ExtractionModel,
		Prompt: extractionPrompt,
		Attachments: []ai.Attachment{
			{MIMEType: DetectMIME(rec.ContractURL, rec.FileName, data), Data: data},
		},
		JSON: true,
	})
	if err != nil {
		return nil, fmt.Errorf("contract analysis: %w", err)
	}

	ex, cleaned, err := ParseExtraction(reply)
	if err != nil {
		return nil, err
	}
	return ex.Fields(cleaned), nil
}

// Sweep re-dispatches ANALYZING records that were never claimed and
// rejects claims that outlived the claim timeout
func (h *Intake) Sweep(ctx context.Context) ([]events.Change, error) {
	now := h.now().UTC()

	pending, err := h.repo.Internship.ListUnclaimedAnalyzing(ctx, now.Add(-sweepGrace), sweepLimit)
	if err != nil {
		return nil, fmt.Errorf("list unclaimed analyses: %w", err)
	}
	changes := make([]events.Change, 0, len(pending))
	for i := range pending {
		changes = append(changes, events.Change{After: &pending[i], At: now})
	}

	if h.cfg.Intake.ClaimTimeout > 0 {
		stale, err := h.repo.Internship.ListStaleClaims(ctx, now.Add(-h.cfg.Intake.ClaimTimeout), sweepLimit)
		if err != nil {
			return changes, fmt.Errorf("list stale claims: %w", err)
		}
		for i := range stale {
			rec := &stale[i]
			if rec.AnalysisToken == nil {
				continue
			}
			h.logger.Warn("intake: claim expired", zap.String("internship_id", rec.InternshipID))
			if err := h.complete(ctx, rec, *rec.AnalysisToken, model.StatusRejected, rejectFields(msgClaimExpired)); err != nil {
				h.logger.Error("intake: reject expired claim failed", zap.String("internship_id", rec.InternshipID), zap.Error(err))
			}
		}
	}
	return changes, nil
}

func rejectFields(msg string) map[string]interface{} {
	return map[string]interface{}{"ai_error_message": msg}
}

// DetectMIME picks the attachment type sent to the model
func DetectMIME(url, fileName string, data []byte) string {
	if hasPDFExt(url) || hasPDFExt(fileName) || bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}
	if bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return "image/png"
	}
	return "image/jpeg"
}

func hasPDFExt(s string) bool {
	s = strings.ToLower(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.HasSuffix(s, ".pdf")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
