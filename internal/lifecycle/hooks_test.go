package lifecycle

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/gateway"
	"remindd/internal/localnotify"
	"remindd/internal/reminder"
	"remindd/internal/storage"
	logx "remindd/pkg/logx"
)

type harness struct {
	now   time.Time
	fac   *localnotify.Facility
	gw    *gateway.Gateway
	hooks *Hooks
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	fac := localnotify.New(localnotify.Config{Permission: gateway.PermissionGranted}, nil, nil, logx.Nop(), nil, nil)
	if err := fac.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(fac.Stop)
	gw := gateway.New(fac, true)
	engine := reminder.Engine{Now: func() time.Time { return now }, Location: time.UTC}
	return &harness{now: now, fac: fac, gw: gw, hooks: New(engine, gw, opts...)}
}

func (h *harness) pendingFor(id string) []gateway.Entry {
	want := map[int32]bool{}
	for _, hd := range reminder.TaskHandles(id) {
		want[hd] = true
	}
	var out []gateway.Entry
	for _, e := range h.gw.ListPending(context.Background()) {
		if want[e.Handle] {
			out = append(out, e)
		}
	}
	return out
}

func ptr(t time.Time) *time.Time { return &t }

func TestCreateSchedulesDeadlines(t *testing.T) {
	h := newHarness(t)
	task := reminder.Task{ID: "t1", Title: "Clean room", DueDate: ptr(h.now.Add(25 * time.Hour)), RepeatType: reminder.RepeatNone}
	h.hooks.OnCreated(context.Background(), task)

	got := h.pendingFor("t1")
	want := []time.Time{h.now.Add(time.Hour), h.now.Add(23 * time.Hour), h.now.Add(24*time.Hour + 30*time.Minute)}
	if len(got) != len(want) {
		t.Fatalf("pending = %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if !e.FireAt.Equal(want[i]) {
			t.Errorf("reminder %d fires at %v, want %v", i, e.FireAt, want[i])
		}
		if !strings.Contains(e.Body, "Clean room") {
			t.Errorf("reminder %d body %q does not name the task", i, e.Body)
		}
	}
}

func TestCreateWeeklySchedulesRecurrence(t *testing.T) {
	h := newHarness(t)
	h.hooks.OnCreated(context.Background(), reminder.Task{ID: "t2", Title: "Water plants", RepeatType: reminder.RepeatWeekly})

	got := h.pendingFor("t2")
	if len(got) != 1 {
		t.Fatalf("pending = %d, want 1", len(got))
	}
	y, m, d := h.now.UTC().Date()
	want := time.Date(y, m, d+7, 8, 0, 0, 0, time.UTC)
	if !got[0].FireAt.Equal(want) || got[0].Payload.Type != reminder.KindTaskReminder {
		t.Fatalf("recurrence = %+v, want fire at %v", got[0], want)
	}
}

func TestDueDateMovedInsideWindowKeepsFinalWarning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	task := reminder.Task{ID: "t1", Title: "Clean room", DueDate: ptr(h.now.Add(25 * time.Hour))}
	h.hooks.OnCreated(ctx, task)
	before := h.pendingFor("t1")
	if len(before) != 3 {
		t.Fatalf("after create pending = %d, want 3", len(before))
	}

	task.DueDate = ptr(h.now.Add(time.Hour))
	h.hooks.OnDueDateChanged(ctx, task)

	// 24h and 2h offsets have elapsed; only the 30min warning is still ahead.
	got := h.pendingFor("t1")
	if len(got) != 1 {
		t.Fatalf("pending = %+v, want only the 30min warning", got)
	}
	if got[0].Payload.Type != reminder.KindDeadline30Min || got[0].Handle != reminder.Handle("t1", reminder.KindDeadline30Min) {
		t.Fatalf("kept %+v", got[0])
	}
	if !got[0].FireAt.Equal(h.now.Add(30 * time.Minute)) {
		t.Fatalf("fire at %v, want %v", got[0].FireAt, h.now.Add(30*time.Minute))
	}
	for _, e := range before {
		if e.Handle == got[0].Handle && e.FireAt.Equal(got[0].FireAt) {
			t.Fatalf("old entry %d was not replaced", e.Handle)
		}
	}
}

func TestDueDateMovedLaterReschedules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	task := reminder.Task{ID: "t1", Title: "Clean room", DueDate: ptr(h.now.Add(25 * time.Hour))}
	h.hooks.OnCreated(ctx, task)

	task.DueDate = ptr(h.now.Add(3 * time.Hour))
	h.hooks.OnDueDateChanged(ctx, task)

	got := h.pendingFor("t1")
	if len(got) != 2 {
		t.Fatalf("pending = %d, want 2 (2h and 30min)", len(got))
	}
	if !got[0].FireAt.Equal(h.now.Add(time.Hour)) {
		t.Fatalf("first fire = %v", got[0].FireAt)
	}
}

func TestCompleteAndDeleteCancelEverything(t *testing.T) {
	for _, name := range []string{"completed", "deleted", "completed twice", "deleted then completed"} {
		name := name
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.hooks.OnCreated(ctx, reminder.Task{ID: "t3", Title: "Homework", DueDate: ptr(h.now.Add(48 * time.Hour)), RepeatType: reminder.RepeatDaily})
			h.hooks.OnAssigned(ctx, reminder.Task{ID: "t3", Title: "Homework"}, "kid")
			if len(h.pendingFor("t3")) == 0 {
				t.Fatal("nothing scheduled")
			}
			switch name {
			case "completed":
				h.hooks.OnCompleted(ctx, "t3")
			case "deleted":
				h.hooks.OnDeleted(ctx, "t3")
			case "completed twice":
				h.hooks.OnCompleted(ctx, "t3")
				h.hooks.OnCompleted(ctx, "t3")
			case "deleted then completed":
				h.hooks.OnDeleted(ctx, "t3")
				h.hooks.OnCompleted(ctx, "t3")
			}
			if got := h.pendingFor("t3"); len(got) != 0 {
				t.Fatalf("pending after %s = %+v", name, got)
			}
		})
	}
}

func TestUpdatedDispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prev := reminder.Task{ID: "t4", Title: "Laundry", DueDate: ptr(h.now.Add(30 * time.Hour)), RepeatType: reminder.RepeatWeekly}
	h.hooks.OnCreated(ctx, prev)
	if n := len(h.pendingFor("t4")); n != 4 {
		t.Fatalf("after create pending = %d, want 4", n)
	}

	// Title only: nothing changes.
	next := prev
	next.Title = "Laundry (whites)"
	h.hooks.OnUpdated(ctx, prev, next)
	if n := len(h.pendingFor("t4")); n != 4 {
		t.Fatalf("after title edit pending = %d, want 4", n)
	}

	// Repeat type off: recurrence reminder goes, deadlines stay.
	prev = next
	next.RepeatType = reminder.RepeatNone
	h.hooks.OnUpdated(ctx, prev, next)
	if n := len(h.pendingFor("t4")); n != 3 {
		t.Fatalf("after repeat change pending = %d, want 3", n)
	}

	// Due date cleared: everything canceled.
	prev = next
	next.DueDate = nil
	h.hooks.OnUpdated(ctx, prev, next)
	if n := len(h.pendingFor("t4")); n != 0 {
		t.Fatalf("after due cleared pending = %d, want 0", n)
	}
}

func TestDailySummaryIsUserKeyed(t *testing.T) {
	h := newHarness(t)
	h.hooks.ScheduleDailySummary(context.Background(), "u1", 3, 40)
	h.hooks.ScheduleDailySummary(context.Background(), "u1", 4, 55)

	got := h.gw.ListPending(context.Background())
	if len(got) != 1 {
		t.Fatalf("pending = %d, want 1", len(got))
	}
	if got[0].Handle != reminder.Handle("u1", reminder.KindDailySummary) || !strings.Contains(got[0].Body, "55") {
		t.Fatalf("summary = %+v", got[0])
	}
}

func TestNonNativeHooksAreNoops(t *testing.T) {
	now := time.Now()
	fac := localnotify.New(localnotify.Config{Permission: gateway.PermissionGranted}, nil, nil, logx.Nop(), nil, nil)
	gw := gateway.New(fac, false)
	hooks := New(reminder.Engine{Now: func() time.Time { return now }}, gw)
	hooks.OnCreated(context.Background(), reminder.Task{ID: "t5", DueDate: ptr(now.Add(48 * time.Hour))})

	if got, _ := fac.Pending(context.Background()); len(got) != 0 {
		t.Fatalf("non-native host reached the facility: %+v", got)
	}
}

func TestHooksPublishAndAudit(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4, eventbus.TypeTaskEvent)
	defer unsub()

	h := newHarness(t, WithBus(bus), WithAudit(st))
	h.hooks.OnDeleted(context.Background(), "t6")

	select {
	case ev := <-events:
		te, ok := ev.Data.(TaskEvent)
		if !ok || te.Event != EventDeleted || te.Canceled != len(reminder.AllKinds()) {
			t.Fatalf("event = %+v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no task event published")
	}
	n, err := st.PruneAudit(context.Background(), time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("audit rows = %d, %v; want 1", n, err)
	}
}
