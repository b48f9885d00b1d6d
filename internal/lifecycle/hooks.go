// Package lifecycle keeps a task's scheduled reminders consistent with the task.
//
// Hooks hold no state of their own. Every event recomputes the reminder set
// from the task, and cancellation walks the full kind enumeration by
// recomputed handle, so repeating a hook is harmless. Hooks never return
// errors: a reminder is a side channel and must not fail the task mutation
// that triggered it.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/gateway"
	"remindd/internal/metrics"
	"remindd/internal/reminder"
	"remindd/internal/storage"
	logx "remindd/pkg/logx"
)

// Event names, as reported by the data layer.
const (
	EventCreated        = "created"
	EventUpdated        = "updated"
	EventDueDateChanged = "due_date_changed"
	EventCompleted      = "completed"
	EventDeleted        = "deleted"
	EventAssigned       = "assigned"
	EventDailySummary   = "daily_summary"
)

// TaskEvent is published on the bus after each hook.
type TaskEvent struct {
	Event     string `json:"event"`
	TaskID    string `json:"task_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Scheduled int    `json:"scheduled"`
	Canceled  int    `json:"canceled"`
}

type Hooks struct {
	mu      sync.RWMutex
	engine  reminder.Engine
	gw      *gateway.Gateway
	audit   storage.Store
	bus     eventbus.Bus
	metrics *metrics.Metrics
	log     logx.Logger
}

type Option func(*Hooks)

func WithLogger(log logx.Logger) Option     { return func(h *Hooks) { h.log = log } }
func WithBus(bus eventbus.Bus) Option       { return func(h *Hooks) { h.bus = bus } }
func WithMetrics(m *metrics.Metrics) Option { return func(h *Hooks) { h.metrics = m } }

// WithAudit records one audit row per hook. Failures are logged only.
func WithAudit(st storage.Store) Option { return func(h *Hooks) { h.audit = st } }

func New(engine reminder.Engine, gw *gateway.Gateway, opts ...Option) *Hooks {
	h := &Hooks{engine: engine, gw: gw}
	for _, o := range opts {
		o(h)
	}
	if h.log.IsZero() {
		h.log = logx.Nop()
	}
	return h
}

// SetLocation swaps the engine's local time zone (config hot reload).
func (h *Hooks) SetLocation(loc *time.Location) {
	h.mu.Lock()
	h.engine.Location = loc
	h.mu.Unlock()
}

func (h *Hooks) rules() reminder.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// OnCreated schedules deadline reminders and, for repeating tasks, the next
// recurrence reminder.
func (h *Hooks) OnCreated(ctx context.Context, t reminder.Task) {
	n := h.scheduleDeadlines(ctx, t)
	n += h.scheduleRecurrence(ctx, t)
	h.done(ctx, TaskEvent{Event: EventCreated, TaskID: t.ID, Scheduled: n})
}

// OnDueDateChanged cancels every kind for the task, then reschedules the
// deadline reminders for the new due date.
func (h *Hooks) OnDueDateChanged(ctx context.Context, t reminder.Task) {
	canceled := h.cancelTask(ctx, t.ID)
	n := h.scheduleDeadlines(ctx, t)
	h.done(ctx, TaskEvent{Event: EventDueDateChanged, TaskID: t.ID, Scheduled: n, Canceled: canceled})
}

// OnUpdated compares the stored and the new task. A due date change takes the
// OnDueDateChanged path; when the task repeats, its recurrence reminder is
// armed again since that path cancels it. A repeat-type change alone swaps the
// recurrence reminder. Other edits leave reminders alone.
func (h *Hooks) OnUpdated(ctx context.Context, prev, next reminder.Task) {
	dueChanged := !reminder.SameDue(prev.DueDate, next.DueDate)
	repeatChanged := prev.RepeatType != next.RepeatType

	ev := TaskEvent{Event: EventUpdated, TaskID: next.ID}
	switch {
	case dueChanged:
		ev.Canceled = h.cancelTask(ctx, next.ID)
		ev.Scheduled = h.scheduleDeadlines(ctx, next)
		ev.Scheduled += h.scheduleRecurrence(ctx, next)
	case repeatChanged:
		handle := reminder.Handle(next.ID, reminder.KindTaskReminder)
		h.gw.Cancel(ctx, handle)
		ev.Canceled = 1
		ev.Scheduled = h.scheduleRecurrence(ctx, next)
	}
	h.done(ctx, ev)
}

func (h *Hooks) OnCompleted(ctx context.Context, taskID string) {
	n := h.cancelTask(ctx, taskID)
	h.done(ctx, TaskEvent{Event: EventCompleted, TaskID: taskID, Canceled: n})
}

func (h *Hooks) OnDeleted(ctx context.Context, taskID string) {
	n := h.cancelTask(ctx, taskID)
	h.done(ctx, TaskEvent{Event: EventDeleted, TaskID: taskID, Canceled: n})
}

// OnAssigned notifies the assignee right away.
func (h *Hooks) OnAssigned(ctx context.Context, t reminder.Task, assignee string) {
	h.gw.Schedule(ctx, h.rules().AssignmentReminder(t, assignee))
	h.done(ctx, TaskEvent{Event: EventAssigned, TaskID: t.ID, UserID: assignee, Scheduled: 1})
}

// ScheduleDailySummary arms tomorrow's 20:00 summary for userID, replacing any earlier one.
func (h *Hooks) ScheduleDailySummary(ctx context.Context, userID string, completed, points int) {
	h.gw.Schedule(ctx, h.rules().DailySummary(userID, completed, points))
	h.done(ctx, TaskEvent{Event: EventDailySummary, UserID: userID, Scheduled: 1})
}

func (h *Hooks) scheduleDeadlines(ctx context.Context, t reminder.Task) int {
	rs := h.rules().DeadlineReminders(t)
	for _, r := range rs {
		h.gw.Schedule(ctx, r)
	}
	return len(rs)
}

func (h *Hooks) scheduleRecurrence(ctx context.Context, t reminder.Task) int {
	r, ok := h.rules().RecurrenceReminder(t)
	if !ok {
		return 0
	}
	h.gw.Schedule(ctx, r)
	return 1
}

// cancelTask cancels the handle of every known kind for id, scheduled or not.
func (h *Hooks) cancelTask(ctx context.Context, id string) int {
	handles := reminder.TaskHandles(id)
	h.gw.CancelAll(ctx, handles)
	return len(handles)
}

func (h *Hooks) done(ctx context.Context, ev TaskEvent) {
	h.metrics.TaskEvent(ev.Event)
	h.log.Debug("task event handled",
		logx.String("event", ev.Event),
		logx.String("task_id", ev.TaskID),
		logx.Int("scheduled", ev.Scheduled),
		logx.Int("canceled", ev.Canceled),
	)
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskEvent, Time: time.Now(), Data: ev})
	}
	if h.audit != nil {
		err := h.audit.AppendAudit(ctx, storage.AuditEntry{
			Event:     ev.Event,
			TaskID:    ev.TaskID,
			Scheduled: ev.Scheduled,
			Canceled:  ev.Canceled,
			Detail:    ev.UserID,
		})
		if err != nil {
			h.log.Warn("audit append failed", logx.String("event", ev.Event), logx.Err(err))
		}
	}
}
