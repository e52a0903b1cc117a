package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/config"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
)

type countingHandler struct {
	mu      sync.Mutex
	handled []string
	swept   chan struct{}
	resume  []events.Change
	panicOn string
}

func (h *countingHandler) Name() string { return "counting" }

func (h *countingHandler) Match(ch events.Change) bool {
	return ch.After != nil && ch.After.Status == model.StatusAnalyzing
}

func (h *countingHandler) Handle(_ context.Context, ch events.Change) error {
	if ch.After.InternshipID == h.panicOn {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, ch.After.InternshipID)
	return nil
}

func (h *countingHandler) Sweep(_ context.Context) ([]events.Change, error) {
	if h.swept != nil {
		close(h.swept)
		h.swept = nil
	}
	return h.resume, nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

type failingHandler struct{ calls int }

func (h *failingHandler) Name() string             { return "failing" }
func (h *failingHandler) Match(events.Change) bool { return true }

func (h *failingHandler) Handle(context.Context, events.Change) error {
	h.calls++
	return errors.New("handler failed")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_RunDeliversAndResumes(t *testing.T) {
	bus := events.NewMemory(zap.NewNop())
	swept := make(chan struct{})
	h := &countingHandler{
		swept:  swept,
		resume: []events.Change{{After: &model.Internship{InternshipID: "resumed", Status: model.StatusAnalyzing}}},
	}
	cfg := &config.IntakeConfig{Workers: 2, ResumeOnStart: true, EventBuffer: 8}
	d := NewDispatcher(bus, cfg, zap.NewNop(), h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// the resume sweep runs after the subscription is in place
	<-swept

	rec := &model.Internship{InternshipID: "live", Status: model.StatusAnalyzing}
	_ = bus.Publish(context.Background(), events.NewChange(nil, rec))
	other := &model.Internship{InternshipID: "ignored", Status: model.StatusApproved}
	_ = bus.Publish(context.Background(), events.NewChange(nil, other))

	waitFor(t, func() bool { return h.count() == 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	seen := map[string]bool{}
	for _, id := range h.handled {
		seen[id] = true
	}
	if !seen["resumed"] || !seen["live"] || seen["ignored"] {
		t.Errorf("unexpected deliveries %v", h.handled)
	}
}

func TestDispatcher_PanicAndErrorContained(t *testing.T) {
	h := &countingHandler{panicOn: "bad"}
	f := &failingHandler{}
	d := NewDispatcher(events.NewMemory(zap.NewNop()), &config.IntakeConfig{Workers: 1}, zap.NewNop(), h, f)

	d.Dispatch(context.Background(), events.NewChange(nil, &model.Internship{InternshipID: "bad", Status: model.StatusAnalyzing}))
	d.Dispatch(context.Background(), events.NewChange(nil, &model.Internship{InternshipID: "good", Status: model.StatusAnalyzing}))

	if h.count() != 1 {
		t.Errorf("handler should keep working after a panic, handled %d", h.count())
	}
	if f.calls != 2 {
		t.Errorf("failing handler should see every event, got %d", f.calls)
	}
}

// slowHandler holds every ANALYZING change until release is closed
type slowHandler struct {
	release chan struct{}
	mu      sync.Mutex
	started int
}

func (h *slowHandler) Name() string { return "slow" }

func (h *slowHandler) Match(ch events.Change) bool {
	return ch.EnteredStatus(model.StatusAnalyzing)
}

func (h *slowHandler) Handle(context.Context, events.Change) error {
	h.mu.Lock()
	h.started++
	h.mu.Unlock()
	<-h.release
	return nil
}

func (h *slowHandler) running() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

type statusHandler struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (h *statusHandler) Name() string { return "status" }

func (h *statusHandler) Match(ch events.Change) bool { return ch.StatusChanged() }

func (h *statusHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func (h *statusHandler) Handle(_ context.Context, ch events.Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[eventKey(ch)] = true
	return nil
}

func TestDispatcher_SlowHandlerDoesNotStarveOthers(t *testing.T) {
	bus := events.NewMemory(zap.NewNop())
	slow := &slowHandler{release: make(chan struct{})}
	status := &statusHandler{seen: map[string]bool{}}
	d := NewDispatcher(bus, &config.IntakeConfig{Workers: 2, EventBuffer: 8}, zap.NewNop(), slow, status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	defer func() {
		close(slow.release)
		cancel()
		<-done
	}()

	// wait until both lanes are subscribed
	warmAnalysis := &model.Internship{InternshipID: "warm-a", Status: model.StatusAnalyzing}
	warmBefore := &model.Internship{InternshipID: "warm-s", Status: model.StatusUploaded}
	warmAfter := &model.Internship{InternshipID: "warm-s", Status: model.StatusAnalyzing}
	waitFor(t, func() bool {
		if slow.running() == 0 {
			_ = bus.Publish(context.Background(), events.NewChange(nil, warmAnalysis))
		}
		if status.count() == 0 {
			_ = bus.Publish(context.Background(), events.NewChange(warmBefore, warmAfter))
		}
		return slow.running() > 0 && status.count() > 0
	})

	// both slow workers busy and a third analysis waiting for a slot
	for i := 0; i < 3; i++ {
		rec := &model.Internship{InternshipID: fmt.Sprintf("a%d", i), Status: model.StatusAnalyzing}
		_ = bus.Publish(context.Background(), events.NewChange(nil, rec))
	}
	waitFor(t, func() bool { return slow.running() >= 2 })

	const changes = 50
	for i := 0; i < changes; i += 5 {
		for j := i; j < i+5; j++ {
			before := &model.Internship{InternshipID: fmt.Sprintf("s%d", j), Status: model.StatusNeedsReview}
			after := before.Clone()
			after.Status = model.StatusApproved
			after.Version = 2
			_ = bus.Publish(context.Background(), events.NewChange(before, after))
		}
		want := 1 + i + 5
		waitFor(t, func() bool { return status.count() == want })
	}
}
