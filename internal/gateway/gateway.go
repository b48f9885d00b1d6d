// Package gateway is the only path from reminder logic to the notification facility.
//
// Every call is best-effort: facility errors (and panics) are logged and
// swallowed so a failing facility never reaches the task mutation that
// triggered the call. When Native is false every operation returns at once.
package gateway

import (
	"context"
	"fmt"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/metrics"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

type Gateway struct {
	facility Facility
	native   bool
	log      logx.Logger
	bus      eventbus.Bus
	metrics  *metrics.Metrics
}

type Option func(*Gateway)

func WithLogger(log logx.Logger) Option     { return func(g *Gateway) { g.log = log } }
func WithBus(bus eventbus.Bus) Option       { return func(g *Gateway) { g.bus = bus } }
func WithMetrics(m *metrics.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

// New builds a gateway. A nil facility behaves like a non-native host.
func New(f Facility, native bool, opts ...Option) *Gateway {
	g := &Gateway{facility: f, native: native && f != nil, log: logx.Nop()}
	for _, o := range opts {
		o(g)
	}
	if g.log.IsZero() {
		g.log = logx.Nop()
	}
	return g
}

// Native reports whether calls reach a facility at all.
func (g *Gateway) Native() bool { return g != nil && g.native }

// CheckAndRequestPermission requests permission only while it is undecided.
// A denial is final and silent. Non-native hosts report granted.
func (g *Gateway) CheckAndRequestPermission(ctx context.Context) Permission {
	if !g.Native() {
		return PermissionGranted
	}
	var p Permission
	err := g.guard("permission", func() error {
		cur, err := g.facility.CheckPermission(ctx)
		if err != nil {
			return err
		}
		p = cur
		if !cur.Undecided() {
			return nil
		}
		next, err := g.facility.RequestPermission(ctx)
		if err != nil {
			return err
		}
		p = next
		return nil
	})
	if err != nil {
		if p == "" {
			p = PermissionPrompt
		}
		return p
	}
	if p == PermissionDenied {
		g.log.Warn("notification permission denied; reminders will not be shown")
	}
	g.publish(eventbus.TypePermission, map[string]string{"state": string(p)})
	return p
}

// Schedule requests one one-shot notification.
func (g *Gateway) Schedule(ctx context.Context, s reminder.Scheduled) {
	if !g.Native() {
		return
	}
	err := g.guard("schedule", func() error {
		return g.facility.Schedule(ctx, EntryFrom(s))
	})
	if err != nil {
		return
	}
	g.metrics.Scheduled(string(s.Kind))
	g.log.Debug("reminder scheduled",
		logx.Int32("handle", s.Handle),
		logx.String("kind", string(s.Kind)),
		logx.Time("fire_at", s.FireAt),
		logx.String("title", s.Title),
	)
	g.publish(eventbus.TypeScheduled, EntryFrom(s))
}

// Cancel removes one entry; unknown handles are fine.
func (g *Gateway) Cancel(ctx context.Context, handle int32) {
	g.CancelAll(ctx, []int32{handle})
}

// CancelAll removes entries in bulk.
func (g *Gateway) CancelAll(ctx context.Context, handles []int32) {
	if !g.Native() || len(handles) == 0 {
		return
	}
	err := g.guard("cancel", func() error {
		return g.facility.Cancel(ctx, handles...)
	})
	if err != nil {
		return
	}
	g.metrics.Canceled(len(handles))
	g.log.Debug("reminders canceled", logx.Any("handles", handles))
	g.publish(eventbus.TypeCanceled, handles)
}

// ListPending returns what the facility still holds. Empty on failure.
func (g *Gateway) ListPending(ctx context.Context) []Entry {
	if !g.Native() {
		return nil
	}
	var out []Entry
	err := g.guard("pending", func() error {
		p, err := g.facility.Pending(ctx)
		out = p
		return err
	})
	if err != nil {
		return nil
	}
	g.log.Debug("pending reminders", logx.Int("count", len(out)))
	for _, e := range out {
		g.log.Trace("pending reminder",
			logx.Int32("handle", e.Handle),
			logx.String("title", e.Title),
			logx.Time("fire_at", e.FireAt),
		)
	}
	return out
}

// ClearPending cancels everything the facility holds and returns how many entries it saw.
func (g *Gateway) ClearPending(ctx context.Context) int {
	pending := g.ListPending(ctx)
	if len(pending) == 0 {
		return 0
	}
	handles := make([]int32, 0, len(pending))
	for _, e := range pending {
		handles = append(handles, e.Handle)
	}
	g.CancelAll(ctx, handles)
	g.log.Info("pending reminders cleared", logx.Int("count", len(handles)))
	return len(handles)
}

// guard runs fn, converting a panic into an error, and logs any failure.
func (g *Gateway) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("facility panic: %v", r)
		}
		if err != nil {
			g.metrics.Failed(op)
			g.log.Error("notification facility call failed", logx.String("op", op), logx.Err(err))
		}
	}()
	return fn()
}

func (g *Gateway) publish(typ string, data any) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
