// Package trigger runs the background reactions to internship changes:
// contract analysis when a record enters ANALYZING and student
// notifications on every status change. Both handlers sweep the database
// for changes whose events were lost.
package trigger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"praxihub/backend/config"
	"praxihub/backend/internal/events"
)

// Handler reacts to one kind of change
type Handler interface {
	Name() string
	Match(ch events.Change) bool
	Handle(ctx context.Context, ch events.Change) error
}

// Sweeper finds work whose change event was lost.
// Returned changes are fed through the handlers like live events.
type Sweeper interface {
	Sweep(ctx context.Context) ([]events.Change, error)
}

// Dispatcher fans change events out to handlers. Each handler runs in its
// own lane with a private subscription and worker pool, so a slow lane
// (contract analysis waiting on the model) never holds back another.
type Dispatcher struct {
	bus      events.Bus
	cfg      *config.IntakeConfig
	handlers []Handler
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(bus events.Bus, cfg *config.IntakeConfig, logger *zap.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{bus: bus, cfg: cfg, handlers: handlers, logger: logger}
}

// Run consumes events until ctx is cancelled, then waits for running
// handlers to finish
func (d *Dispatcher) Run(ctx context.Context) error {
	workers := d.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	d.logger.Info("trigger dispatcher started",
		zap.Int("workers_per_handler", workers),
		zap.Int("handlers", len(d.handlers)))

	var lanes errgroup.Group
	for _, h := range d.handlers {
		h := h
		lanes.Go(func() error {
			return d.runLane(ctx, h, workers)
		})
	}
	err := lanes.Wait()
	d.logger.Info("trigger dispatcher stopped")
	return err
}

func (d *Dispatcher) runLane(ctx context.Context, h Handler, workers int) error {
	ch, unsubscribe := d.bus.Subscribe(d.cfg.EventBuffer)
	defer unsubscribe()

	var g errgroup.Group
	g.SetLimit(workers)

	// in-flight handlers finish even when shutdown cancels ctx
	work := context.WithoutCancel(ctx)

	sw, _ := h.(Sweeper)
	if sw != nil && d.cfg.ResumeOnStart {
		d.sweep(ctx, work, &g, h, sw)
	}

	var tick <-chan time.Time
	if sw != nil && d.cfg.SweepInterval > 0 {
		ticker := time.NewTicker(d.cfg.SweepInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case change, ok := <-ch:
			if !ok {
				return g.Wait()
			}
			d.dispatch(work, &g, h, change)
		case <-tick:
			d.sweep(ctx, work, &g, h, sw)
		}
	}
}

// Dispatch runs the matching handlers for one change synchronously
func (d *Dispatcher) Dispatch(ctx context.Context, change events.Change) {
	for _, h := range d.handlers {
		if h.Match(change) {
			d.run(ctx, h, change)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, g *errgroup.Group, h Handler, change events.Change) {
	if !h.Match(change) {
		return
	}
	g.Go(func() error {
		d.run(ctx, h, change)
		return nil
	})
}

func (d *Dispatcher) sweep(ctx, work context.Context, g *errgroup.Group, h Handler, sw Sweeper) {
	changes, err := sw.Sweep(ctx)
	if err != nil {
		d.logger.Error("trigger sweep failed", zap.String("handler", h.Name()), zap.Error(err))
		return
	}
	if len(changes) > 0 {
		d.logger.Info("trigger sweep resumed work", zap.String("handler", h.Name()), zap.Int("count", len(changes)))
	}
	for _, change := range changes {
		d.dispatch(work, g, h, change)
	}
}

// run invokes h and turns a panic into a logged error
func (d *Dispatcher) run(ctx context.Context, h Handler, change events.Change) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("trigger handler panicked",
				zap.String("handler", h.Name()),
				zap.String("internship_id", changeID(change)),
				zap.Any("panic", r))
		}
	}()

	if err := h.Handle(ctx, change); err != nil {
		d.logger.Error("trigger handler failed",
			zap.String("handler", h.Name()),
			zap.String("internship_id", changeID(change)),
			zap.Error(err))
	}
}

func changeID(ch events.Change) string {
	if ch.After == nil {
		return ""
	}
	return ch.After.InternshipID
}

// eventKey identifies one committed write of a record
func eventKey(ch events.Change) string {
	return fmt.Sprintf("%s:%d", ch.After.InternshipID, ch.After.Version)
}
