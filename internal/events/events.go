// Package events carries internship change notifications from the service
// layer to the triggers and the realtime stream.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/internal/model"
)

// Change one committed write to an internship record.
// Before is nil on creation.
type Change struct {
	Before *model.Internship `json:"before,omitempty"`
	After  *model.Internship `json:"after"`
	At     time.Time         `json:"at"`
}

// NewChange snapshots before and after
func NewChange(before, after *model.Internship) Change {
	return Change{Before: before.Clone(), After: after.Clone(), At: time.Now().UTC()}
}

// StatusChanged reports an update that moved the status
func (c Change) StatusChanged() bool {
	return c.Before != nil && c.After != nil && c.Before.Status != c.After.Status
}

// EnteredStatus reports that After is in s and Before was not
func (c Change) EnteredStatus(s model.InternshipStatus) bool {
	if c.After == nil || c.After.Status != s {
		return false
	}
	return c.Before == nil || c.Before.Status != s
}

// Bus publishes changes to subscribers
type Bus interface {
	Publish(ctx context.Context, ch Change) error
	Subscribe(buffer int) (<-chan Change, func())
}

// Memory in-process fan-out. A subscriber whose buffer is full misses
// the event; the trigger sweeps recover those from the database.
type Memory struct {
	mu      sync.RWMutex
	subs    map[int]chan Change
	nextID  int
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewMemory creates an empty bus
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{subs: make(map[int]chan Change), logger: logger}
}

// Publish implements Bus
func (m *Memory) Publish(_ context.Context, ch Change) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, sub := range m.subs {
		select {
		case sub <- ch:
		default:
			m.dropped.Add(1)
			m.logger.Warn("change event dropped, subscriber buffer full", zap.Int("subscriber", id))
		}
	}
	return nil
}

// Subscribe implements Bus. The returned func unsubscribes and closes the channel.
func (m *Memory) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped number of events lost to full buffers
func (m *Memory) Dropped() int64 {
	return m.dropped.Load()
}
