package gateway

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/reminder"
)

type fakeFacility struct {
	mu        sync.Mutex
	perm      Permission
	grantTo   Permission
	requested int
	entries   map[int32]Entry
	failAll   error
	panicOn   string
}

func newFake() *fakeFacility {
	return &fakeFacility{perm: PermissionGranted, grantTo: PermissionGranted, entries: map[int32]Entry{}}
}

func (f *fakeFacility) CheckPermission(ctx context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm, f.failAll
}

func (f *fakeFacility) RequestPermission(ctx context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested++
	f.perm = f.grantTo
	return f.perm, f.failAll
}

func (f *fakeFacility) Schedule(ctx context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "schedule" {
		panic("native bridge crashed")
	}
	if f.failAll != nil {
		return f.failAll
	}
	f.entries[e.Handle] = e
	return nil
}

func (f *fakeFacility) Cancel(ctx context.Context, handles ...int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	for _, h := range handles {
		delete(f.entries, h)
	}
	return nil
}

func (f *fakeFacility) Pending(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	out := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func sample(id string, kind reminder.Kind, in time.Duration) reminder.Scheduled {
	return reminder.Scheduled{
		Handle: reminder.Handle(id, kind),
		Kind:   kind,
		FireAt: time.Now().Add(in),
		Title:  "t",
		Body:   "b",
		Payload: reminder.Payload{
			TaskID: id, Type: kind, Route: "/tasks/" + id,
		},
	}
}

func TestScheduleCancelAndList(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	g := New(f, true)

	g.Schedule(ctx, sample("t1", reminder.KindDeadline24h, time.Hour))
	g.Schedule(ctx, sample("t1", reminder.KindDeadline2h, 2*time.Hour))
	// same handle replaces
	g.Schedule(ctx, sample("t1", reminder.KindDeadline2h, 3*time.Hour))

	p := g.ListPending(ctx)
	if len(p) != 2 {
		t.Fatalf("pending = %d, want 2", len(p))
	}

	g.Cancel(ctx, reminder.Handle("t1", reminder.KindDeadline24h))
	g.Cancel(ctx, reminder.Handle("nope", reminder.KindTaskReminder))
	if p := g.ListPending(ctx); len(p) != 1 || p[0].Payload.Type != reminder.KindDeadline2h {
		t.Fatalf("unexpected pending after cancel: %+v", p)
	}

	if n := g.ClearPending(ctx); n != 1 {
		t.Fatalf("ClearPending = %d, want 1", n)
	}
	if p := g.ListPending(ctx); len(p) != 0 {
		t.Fatalf("pending after clear = %d", len(p))
	}
}

func TestNonNativeIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.perm = PermissionPrompt
	g := New(f, false)

	g.Schedule(ctx, sample("t1", reminder.KindDeadline24h, time.Hour))
	g.CancelAll(ctx, []int32{1, 2, 3})
	if got := g.CheckAndRequestPermission(ctx); got != PermissionGranted {
		t.Fatalf("permission = %q", got)
	}
	if p := g.ListPending(ctx); p != nil {
		t.Fatalf("pending = %v, want nil", p)
	}
	if len(f.entries) != 0 || f.requested != 0 {
		t.Fatal("facility must not be touched on non-native hosts")
	}
	if New(nil, true).Native() {
		t.Fatal("nil facility cannot be native")
	}
}

func TestFacilityErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.failAll = errors.New("bridge unavailable")
	g := New(f, true)

	g.Schedule(ctx, sample("t1", reminder.KindDeadline24h, time.Hour))
	g.CancelAll(ctx, reminder.TaskHandles("t1"))
	if p := g.ListPending(ctx); p != nil {
		t.Fatalf("pending on failure = %v", p)
	}
	if got := g.CheckAndRequestPermission(ctx); got != PermissionPrompt {
		t.Fatalf("permission after failed check = %q, want undecided", got)
	}
}

func TestFacilityPanicIsRecovered(t *testing.T) {
	f := newFake()
	f.panicOn = "schedule"
	g := New(f, true)
	g.Schedule(context.Background(), sample("t1", reminder.KindDeadline24h, time.Hour))
}

func TestPermissionFlow(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		start     Permission
		grantTo   Permission
		want      Permission
		requested int
	}{
		{"granted", PermissionGranted, PermissionGranted, PermissionGranted, 0},
		{"prompt", PermissionPrompt, PermissionGranted, PermissionGranted, 1},
		{"rationale", PermissionPromptWithRationale, PermissionGranted, PermissionGranted, 1},
		{"prompt denied", PermissionPrompt, PermissionDenied, PermissionDenied, 1},
		{"denied is final", PermissionDenied, PermissionGranted, PermissionDenied, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			f.perm, f.grantTo = tt.start, tt.grantTo
			bus := eventbus.New()
			ch, unsub := bus.Subscribe(4, eventbus.TypePermission)
			defer unsub()

			got := New(f, true, WithBus(bus)).CheckAndRequestPermission(ctx)
			if got != tt.want {
				t.Fatalf("permission = %q, want %q", got, tt.want)
			}
			if f.requested != tt.requested {
				t.Fatalf("requested = %d, want %d", f.requested, tt.requested)
			}
			if len(ch) != 1 {
				t.Fatalf("permission events = %d, want 1", len(ch))
			}
		})
	}
}
