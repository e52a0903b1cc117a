package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/ai"
	pkgerrors "praxihub/backend/pkg/errors"
	"praxihub/backend/pkg/mailer"
)

// ── Mock InternshipRepository ──
// Only the methods the triggers call are implemented; the embedded
// interface panics on anything else.

type mockInternshipRepo struct {
	repository.InternshipRepository

	mu      sync.Mutex
	records map[string]*model.Internship
}

func newMockInternshipRepo(recs ...*model.Internship) *mockInternshipRepo {
	m := &mockInternshipRepo{records: make(map[string]*model.Internship)}
	for _, r := range recs {
		if r.Version == 0 {
			r.Version = 1
		}
		m.records[r.InternshipID] = r.Clone()
	}
	return m
}

func (m *mockInternshipRepo) get(id string) *model.Internship {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Clone()
}

func (m *mockInternshipRepo) GetByID(_ context.Context, id string) (*model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Clone(), nil
}

func (m *mockInternshipRepo) Claim(_ context.Context, id, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != model.StatusAnalyzing || r.AnalysisToken == nil ||
		*r.AnalysisToken != token || r.AnalysisClaimedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	r.AnalysisClaimedAt = &now
	return true, nil
}

func (m *mockInternshipRepo) CompleteAnalysis(_ context.Context, id, token string, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error) {
	reason, _ := fields["ai_error_message"].(string)
	if err := model.ValidateTransition(model.StatusAnalyzing, to, reason); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != model.StatusAnalyzing || r.AnalysisToken == nil || *r.AnalysisToken != token {
		return nil, pkgerrors.ErrStatusConflict
	}
	for k, v := range fields {
		switch k {
		case "organization_name":
			r.OrganizationName = v.(string)
		case "organization_ico":
			r.OrganizationICO = v.(string)
		case "start_date":
			r.StartDate = v.(string)
		case "end_date":
			r.EndDate = v.(string)
		case "ai_analysis_result":
			r.AIAnalysisResult = v.(datatypes.JSON)
		case "ai_error_message":
			r.AIErrorMessage = v.(string)
		case "is_verified":
			r.IsVerified = v.(bool)
		}
	}
	r.Status = to
	r.Version++
	return r.Clone(), nil
}

func (m *mockInternshipRepo) ListUnclaimedAnalyzing(_ context.Context, olderThan time.Time, limit int) ([]model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Internship
	for _, r := range m.records {
		if r.Status == model.StatusAnalyzing && r.AnalysisClaimedAt == nil && !r.UpdatedAt.After(olderThan) {
			out = append(out, *r.Clone())
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockInternshipRepo) ListStaleClaims(_ context.Context, claimedBefore time.Time, limit int) ([]model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Internship
	for _, r := range m.records {
		if r.Status == model.StatusAnalyzing && r.AnalysisClaimedAt != nil && !r.AnalysisClaimedAt.After(claimedBefore) {
			out = append(out, *r.Clone())
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockInternshipRepo) MarkNotified(_ context.Context, id string, status model.InternshipStatus, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if ok && r.NotifiedVersion < version {
		r.NotifiedStatus = status
		r.NotifiedVersion = version
	}
	return nil
}

func (m *mockInternshipRepo) ListUnnotified(_ context.Context, olderThan time.Time, limit int) ([]model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Internship
	for _, r := range m.records {
		if r.NotifiedStatus != r.Status && !r.UpdatedAt.After(olderThan) {
			out = append(out, *r.Clone())
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Mock OutboxRepository ──

type mockOutboxRepo struct {
	mu      sync.Mutex
	mails   []*model.MailOutbox
	keys    map[string]bool
	sent    []string
	failed  map[string]bool // id -> final
	lastErr map[string]string

	lastLease time.Duration
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{keys: map[string]bool{}, failed: map[string]bool{}, lastErr: map[string]string{}}
}

func (m *mockOutboxRepo) Create(_ context.Context, mail *model.MailOutbox) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mail.EventKey != nil {
		if m.keys[*mail.EventKey] {
			return false, nil
		}
		m.keys[*mail.EventKey] = true
	}
	if mail.MailID == "" {
		mail.MailID = "mail-" + string(rune('a'+len(m.mails)))
	}
	if mail.Status == "" {
		mail.Status = model.MailPending
	}
	c := *mail
	m.mails = append(m.mails, &c)
	return true, nil
}

func (m *mockOutboxRepo) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]model.MailOutbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastLease = lease
	var out []model.MailOutbox
	for _, mail := range m.mails {
		if mail.Status != model.MailPending || len(out) == limit {
			continue
		}
		if mail.LockedUntil != nil && mail.LockedUntil.After(now) {
			continue
		}
		until := now.Add(lease)
		mail.LockedUntil = &until
		mail.Attempts++
		out = append(out, *mail)
	}
	return out, nil
}

func (m *mockOutboxRepo) find(id string) *model.MailOutbox {
	for _, mail := range m.mails {
		if mail.MailID == id {
			return mail
		}
	}
	return nil
}

func (m *mockOutboxRepo) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mail := m.find(id)
	if mail == nil {
		return gorm.ErrRecordNotFound
	}
	mail.Status = model.MailSent
	mail.LockedUntil = nil
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockOutboxRepo) MarkFailed(_ context.Context, id, errMsg string, final bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mail := m.find(id)
	if mail == nil {
		return gorm.ErrRecordNotFound
	}
	if final {
		mail.Status = model.MailError
	}
	mail.LastError = errMsg
	mail.LockedUntil = nil
	m.failed[id] = final
	m.lastErr[id] = errMsg
	return nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	repository.NotificationRepository

	mu    sync.Mutex
	items []*model.Notification
	keys  map[string]bool
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.EventKey != nil {
		if m.keys == nil {
			m.keys = map[string]bool{}
		}
		if m.keys[*n.EventKey] {
			return false, nil
		}
		m.keys[*n.EventKey] = true
	}
	c := *n
	m.items = append(m.items, &c)
	return true, nil
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// ── Fakes ──

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  ai.Request
	// block, when set, holds Generate until closed
	block chan struct{}
}

func (f *fakeModel) Generate(ctx context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFetcher struct {
	data map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, key, url string) ([]byte, error) {
	if b, ok := f.data[key]; ok && key != "" {
		return b, nil
	}
	b, ok := f.data[url]
	if !ok {
		return nil, errors.New("blob: object not found")
	}
	return b, nil
}

type fakeSender struct {
	mu   sync.Mutex
	fail map[string]error // recipient -> error
	got  []mailer.Message
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[msg.To]; err != nil {
		return err
	}
	f.got = append(f.got, msg)
	return nil
}

// capturingBus records published changes
type capturingBus struct {
	mu      sync.Mutex
	changes []events.Change
}

func (b *capturingBus) Publish(_ context.Context, ch events.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, ch)
	return nil
}

func (b *capturingBus) Subscribe(buffer int) (<-chan events.Change, func()) {
	c := make(chan events.Change, buffer)
	return c, func() {}
}

func (b *capturingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}

func analyzingRecord(id, url string) *model.Internship {
	token := "tok-" + id
	rec := &model.Internship{
		InternshipID:  id,
		StudentID:     "stu-1",
		StudentEmail:  "student@uni.cz",
		StudentName:   "Jana Novak",
		ContractURL:   url,
		FileName:      "contract.pdf",
		Status:        model.StatusAnalyzing,
		AnalysisToken: &token,
	}
	rec.Version = 2
	return rec
}
