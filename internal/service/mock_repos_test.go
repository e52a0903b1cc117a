package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/ai"
	pkgerrors "praxihub/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) ListByRole(_ context.Context, role string) ([]model.User, error) {
	var out []model.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ── Mock InternshipRepository ──

type mockInternshipRepo struct {
	mu      sync.Mutex
	records map[string]*model.Internship
	seq     int
}

func newMockInternshipRepo() *mockInternshipRepo {
	return &mockInternshipRepo{records: make(map[string]*model.Internship)}
}

func (m *mockInternshipRepo) Create(_ context.Context, rec *model.Internship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Status == model.StatusRejected && strings.TrimSpace(rec.AIErrorMessage) == "" {
		return model.ErrRejectReasonRequired
	}
	if rec.InternshipID == "" {
		m.seq++
		rec.InternshipID = fmt.Sprintf("intern-%d", m.seq)
	}
	now := time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.Version = 1
	m.records[rec.InternshipID] = rec.Clone()
	return nil
}

func (m *mockInternshipRepo) GetByID(_ context.Context, id string) (*model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return r.Clone(), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInternshipRepo) GetLatestByStudent(_ context.Context, studentID string) (*model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Internship
	for _, r := range m.records {
		if r.StudentID != studentID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest.Clone(), nil
}

func (m *mockInternshipRepo) List(_ context.Context, f repository.InternshipFilter, offset, limit int) ([]model.Internship, int64, error) {
	all, _ := m.ListAll(context.Background())
	var out []model.Internship
	for _, r := range all {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if f.OrganizationICO != "" && r.OrganizationICO != f.OrganizationICO {
			continue
		}
		out = append(out, r)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.Internship{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockInternshipRepo) ListAll(_ context.Context) ([]model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Internship, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockInternshipRepo) Update(_ context.Context, rec *model.Internship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.InternshipID]
	if !ok || cur.Version != rec.Version {
		return pkgerrors.ErrOptimisticLock
	}
	next := rec.Clone()
	next.StudentID = cur.StudentID
	next.Status = cur.Status
	next.Version = cur.Version + 1
	m.records[rec.InternshipID] = next
	rec.Version = next.Version
	return nil
}

func (m *mockInternshipRepo) TransitionStatus(_ context.Context, id string, from, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to == model.StatusRejected {
		if reason, _ := fields["ai_error_message"].(string); strings.TrimSpace(reason) == "" {
			return nil, model.ErrRejectReasonRequired
		}
	}
	cur, ok := m.records[id]
	if !ok || cur.Status != from {
		return nil, pkgerrors.ErrStatusConflict
	}
	next := cur.Clone()
	applyFields(next, fields)
	next.Status = to
	next.Version++
	next.UpdatedAt = time.Now()
	m.records[id] = next
	return next.Clone(), nil
}

func (m *mockInternshipRepo) Claim(_ context.Context, id, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[id]
	if !ok || cur.Status != model.StatusAnalyzing || cur.AnalysisClaimedAt != nil ||
		cur.AnalysisToken == nil || *cur.AnalysisToken != token {
		return false, nil
	}
	now := time.Now()
	cur.AnalysisClaimedAt = &now
	return true, nil
}

func (m *mockInternshipRepo) CompleteAnalysis(_ context.Context, id, token string, to model.InternshipStatus, fields map[string]interface{}) (*model.Internship, error) {
	reason, _ := fields["ai_error_message"].(string)
	if err := model.ValidateTransition(model.StatusAnalyzing, to, reason); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[id]
	if !ok || cur.Status != model.StatusAnalyzing || cur.AnalysisToken == nil || *cur.AnalysisToken != token {
		return nil, pkgerrors.ErrStatusConflict
	}
	next := cur.Clone()
	applyFields(next, fields)
	next.Status = to
	next.Version++
	next.UpdatedAt = time.Now()
	m.records[id] = next
	return next.Clone(), nil
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
	if r, ok := m.records[id]; ok && r.NotifiedVersion < version {
		r.NotifiedStatus = status
		r.NotifiedVersion = version
	}
	return nil
}

func (m *mockInternshipRepo) ListUnnotified(context.Context, time.Time, int) ([]model.Internship, error) {
	return nil, nil
}

// applyFields mirrors the column updates the services send through TransitionStatus
func applyFields(r *model.Internship, fields map[string]interface{}) {
	str := func(v interface{}) string { s, _ := v.(string); return s }
	for k, v := range fields {
		switch k {
		case "contract_url":
			r.ContractURL = str(v)
		case "contract_key":
			r.ContractKey = str(v)
		case "file_name":
			r.FileName = str(v)
		case "source":
			r.Source = str(v)
		case "analysis_token":
			if v == nil {
				r.AnalysisToken = nil
			} else {
				t := str(v)
				r.AnalysisToken = &t
			}
		case "analysis_claimed_at":
			r.AnalysisClaimedAt = nil
		case "ai_error_message":
			r.AIErrorMessage = str(v)
		case "is_verified":
			r.IsVerified, _ = v.(bool)
		case "organization_name":
			r.OrganizationName = str(v)
		case "organization_ico":
			r.OrganizationICO = str(v)
		case "start_date":
			r.StartDate = str(v)
		case "end_date":
			r.EndDate = str(v)
		case "ai_analysis_result":
			r.AIAnalysisResult, _ = v.(datatypes.JSON)
		case "approved_at":
			if t, ok := v.(time.Time); ok {
				r.ApprovedAt = &t
			}
		case "approved_by":
			by := str(v)
			r.ApprovedBy = &by
		}
	}
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []*model.Notification
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) (bool, error) {
	if n.NotificationID == "" {
		n.NotificationID = fmt.Sprintf("notif-%d", len(m.items)+1)
	}
	n.CreatedAt = time.Now()
	m.items = append(m.items, n)
	return true, nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.Notification, int64, error) {
	var out []model.Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.Notification{}, total, nil
	}
	if end := offset + limit; end < len(out) {
		out = out[:end]
	}
	return out[offset:], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	for _, n := range m.items {
		if n.NotificationID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── fakes for external clients ──

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastReq ai.Request
}

func (f *fakeModel) Generate(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	return f.reply, f.err
}

type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

const fakeStoreBase = "https://bucket.test/"

func (s *fakeStore) Put(_ context.Context, key string, r io.Reader, contentType string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.objects[key] = buf.Bytes()
	s.types[key] = contentType
	return fakeStoreBase + key, nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if b, ok := s.objects[key]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("no object %s", key)
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) KeyFromURL(url string) (string, bool) {
	if strings.HasPrefix(url, fakeStoreBase) {
		return strings.TrimPrefix(url, fakeStoreBase), true
	}
	return "", false
}

type fakeFonts struct {
	font []byte
	err  error
}

func (f *fakeFonts) Fetch(context.Context) ([]byte, error) { return f.font, f.err }

type recordingBus struct {
	*events.Memory
	mu      sync.Mutex
	changes []events.Change
}

func newRecordingBus() *recordingBus {
	return &recordingBus{Memory: events.NewMemory(zap.NewNop())}
}

func (b *recordingBus) Publish(ctx context.Context, ch events.Change) error {
	b.mu.Lock()
	b.changes = append(b.changes, ch)
	b.mu.Unlock()
	return b.Memory.Publish(ctx, ch)
}

func (b *recordingBus) last() events.Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changes[len(b.changes)-1]
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}

type fakeTokens struct {
	revoked map[string]time.Duration
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{revoked: make(map[string]time.Duration)}
}

func (f *fakeTokens) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeTokens) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := f.revoked[jti]
	return ok, nil
}

// ── fixture ──

type fixture struct {
	users         *mockUserRepo
	internships   *mockInternshipRepo
	notifications *mockNotificationRepo
	repo          *repository.Repository
	store         *fakeStore
	bus           *recordingBus
	model         *fakeModel
}

func newFixture() *fixture {
	f := &fixture{
		users:         newMockUserRepo(),
		internships:   newMockInternshipRepo(),
		notifications: &mockNotificationRepo{},
		store:         newFakeStore(),
		bus:           newRecordingBus(),
		model:         &fakeModel{},
	}
	f.repo = &repository.Repository{
		User:         f.users,
		Internship:   f.internships,
		Notification: f.notifications,
	}
	return f
}

func (f *fixture) addUser(id, role, email string) *model.User {
	u := &model.User{UserID: id, Role: role, Email: email, DisplayName: "User " + id}
	_ = f.users.Create(context.Background(), u)
	return u
}

func (f *fixture) addRecord(rec *model.Internship) *model.Internship {
	_ = f.internships.Create(context.Background(), rec)
	return rec
}
