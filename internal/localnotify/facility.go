package localnotify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/gateway"
	"remindd/internal/metrics"
	"remindd/internal/storage"
	"remindd/internal/transport"
	logx "remindd/pkg/logx"
)

var ErrStopped = errors.New("facility stopped")

type Config struct {
	// Permission is the state reported before any request. Empty means prompt.
	Permission gateway.Permission
	// GrantOnRequest resolves a prompt to granted (true) or denied (false).
	GrantOnRequest bool
}

// Deliverer receives reminders whose fire time was reached.
type Deliverer interface {
	Deliver(ctx context.Context, m transport.Message) error
}

type DelivererFunc func(ctx context.Context, m transport.Message) error

func (f DelivererFunc) Deliver(ctx context.Context, m transport.Message) error { return f(ctx, m) }

type entry struct {
	gateway.Entry
	timer   *time.Timer
	version uint64
}

type Facility struct {
	log     logx.Logger
	store   storage.Store
	deliver Deliverer
	bus     eventbus.Bus
	metrics *metrics.Metrics

	// mu also serializes store writes.
	mu      sync.Mutex
	cfg     Config
	perm    gateway.Permission
	entries map[int32]*entry
	seq     uint64 // version source; a callback fires only if its version is current
	ctx     context.Context
	stopped bool
}

func New(cfg Config, store storage.Store, d Deliverer, log logx.Logger, bus eventbus.Bus, m *metrics.Metrics) *Facility {
	if log.IsZero() {
		log = logx.Nop()
	}
	perm := cfg.Permission
	if perm == "" {
		perm = gateway.PermissionPrompt
	}
	return &Facility{
		log:     log,
		store:   store,
		deliver: d,
		bus:     bus,
		metrics: m,
		cfg:     cfg,
		perm:    perm,
		entries: map[int32]*entry{},
		ctx:     context.Background(),
	}
}

// Apply updates the request policy. The current permission state is kept.
func (f *Facility) Apply(cfg Config) {
	f.mu.Lock()
	f.cfg.GrantOnRequest = cfg.GrantOnRequest
	f.mu.Unlock()
}

// Start restores persisted entries and arms their timers. Entries already
// past due fire right away. ctx bounds deliveries made by timers.
func (f *Facility) Start(ctx context.Context) error {
	f.mu.Lock()
	f.ctx = ctx
	f.stopped = false
	f.mu.Unlock()

	if f.store == nil {
		return nil
	}
	recs, err := f.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("restore pending: %w", err)
	}
	f.mu.Lock()
	for _, r := range recs {
		f.armLocked(gateway.Entry(r))
	}
	n := len(f.entries)
	f.mu.Unlock()
	f.metrics.SetPending(n)
	if n > 0 {
		f.log.Info("pending reminders restored", logx.Int("count", n))
	}
	return nil
}

// Stop disarms every timer. Persisted entries stay for the next Start.
func (f *Facility) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	for h, e := range f.entries {
		e.timer.Stop()
		delete(f.entries, h)
	}
}

func (f *Facility) CheckPermission(ctx context.Context) (gateway.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm, nil
}

func (f *Facility) RequestPermission(ctx context.Context) (gateway.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.perm.Undecided() {
		if f.cfg.GrantOnRequest {
			f.perm = gateway.PermissionGranted
		} else {
			f.perm = gateway.PermissionDenied
		}
		f.log.Info("notification permission resolved", logx.String("permission", string(f.perm)))
	}
	return f.perm, nil
}

// Schedule persists e, then arms it. Store writes happen under f.mu so a
// timer firing at once cannot delete the record before it is written.
func (f *Facility) Schedule(ctx context.Context, e gateway.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return ErrStopped
	}
	if f.perm == gateway.PermissionDenied {
		f.log.Debug("notification dropped, permission denied", logx.Int32("handle", e.Handle))
		return nil
	}
	if f.store != nil {
		if err := f.store.PutPending(ctx, storage.PendingRecord(e)); err != nil {
			return fmt.Errorf("persist pending %d: %w", e.Handle, err)
		}
	}
	f.armLocked(e)
	f.metrics.SetPending(len(f.entries))
	return nil
}

// armLocked upserts e and starts its timer. Caller holds f.mu.
func (f *Facility) armLocked(e gateway.Entry) {
	if old, ok := f.entries[e.Handle]; ok {
		old.timer.Stop()
	}
	f.seq++
	ver := f.seq

	delay := time.Until(e.FireAt)
	if delay < 0 {
		delay = 0
	}
	handle := e.Handle
	f.entries[handle] = &entry{
		Entry:   e,
		version: ver,
		timer:   time.AfterFunc(delay, func() { f.fire(handle, ver) }),
	}
}

// Cancel drops the persisted records first. When that fails the entries
// stay armed so a restart cannot resurrect a reminder reported as canceled.
func (f *Facility) Cancel(ctx context.Context, handles ...int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store != nil && len(handles) > 0 {
		if err := f.store.DeletePending(ctx, handles...); err != nil {
			return fmt.Errorf("delete pending: %w", err)
		}
	}
	for _, h := range handles {
		if e, ok := f.entries[h]; ok {
			e.timer.Stop()
			delete(f.entries, h)
		}
	}
	f.metrics.SetPending(len(f.entries))
	return nil
}

// Pending lists entries ordered by fire time, then handle.
func (f *Facility) Pending(ctx context.Context) ([]gateway.Entry, error) {
	f.mu.Lock()
	out := make([]gateway.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Entry)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Handle < out[j].Handle
	})
	return out, nil
}

func (f *Facility) fire(handle int32, ver uint64) {
	f.mu.Lock()
	e, ok := f.entries[handle]
	if !ok || e.version != ver || f.stopped {
		f.mu.Unlock()
		return
	}
	// Remove before delivery so a restart never fires it twice.
	delete(f.entries, handle)
	ctx := f.ctx
	if f.store != nil {
		if err := f.store.DeletePending(ctx, handle); err != nil {
			f.log.Warn("drop fired reminder from store failed", logx.Int32("handle", handle), logx.Err(err))
		}
	}
	f.metrics.SetPending(len(f.entries))
	f.mu.Unlock()

	f.metrics.Fired(string(e.Payload.Type))
	msg := transport.Message(e.Entry)
	if f.bus != nil {
		f.bus.Publish(eventbus.Event{Type: eventbus.TypeFired, Time: time.Now(), Data: msg})
	}
	if f.deliver == nil {
		return
	}
	if err := f.deliver.Deliver(ctx, msg); err != nil {
		f.log.Warn("reminder delivery rejected", logx.Int32("handle", handle), logx.String("kind", string(e.Payload.Type)), logx.Err(err))
	}
}
