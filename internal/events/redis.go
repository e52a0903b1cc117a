package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Channel Redis pub/sub channel for internship changes
const Channel = "praxihub:internships:changes"

// PubSub the part of pkg/redis.Client the bus needs
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handle func([]byte)) error
}

// Redis shares changes between service instances. Local subscribers are
// served from the Redis channel, so every instance sees every change once.
type Redis struct {
	ps     PubSub
	local  *Memory
	logger *zap.Logger
}

// NewRedis creates the bus; call Run to start receiving
func NewRedis(ps PubSub, logger *zap.Logger) *Redis {
	return &Redis{ps: ps, local: NewMemory(logger), logger: logger}
}

// Publish implements Bus. If Redis is unreachable the change is still
// delivered to local subscribers.
func (r *Redis) Publish(ctx context.Context, ch Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("events: encode change: %w", err)
	}
	if err := r.ps.Publish(ctx, Channel, payload); err != nil {
		r.logger.Warn("redis publish failed, delivering locally", zap.Error(err))
		return r.local.Publish(ctx, ch)
	}
	return nil
}

// Subscribe implements Bus
func (r *Redis) Subscribe(buffer int) (<-chan Change, func()) {
	return r.local.Subscribe(buffer)
}

// Run forwards Redis messages to local subscribers until ctx ends
func (r *Redis) Run(ctx context.Context) error {
	return r.ps.Subscribe(ctx, Channel, func(payload []byte) {
		var ch Change
		if err := json.Unmarshal(payload, &ch); err != nil {
			r.logger.Warn("discarding malformed change event", zap.Error(err))
			return
		}
		_ = r.local.Publish(ctx, ch)
	})
}
