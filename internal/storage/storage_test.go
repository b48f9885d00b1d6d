package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

func openDriver(t *testing.T, driver string) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remindd.db")
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func record(id string, kind reminder.Kind, at time.Time) PendingRecord {
	return PendingRecord{
		Handle:  reminder.Handle(id, kind),
		Title:   "title " + string(kind),
		Body:    "body",
		FireAt:  at.Truncate(time.Millisecond),
		Payload: reminder.Payload{TaskID: id, Type: kind, Route: "/tasks/" + id},
	}
}

func TestPendingRoundTripAllDrivers(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, driver := range []string{"file", "sqlite", "bolt"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)

			late := record("t1", reminder.KindDeadline30Min, base.Add(2*time.Hour))
			early := record("t1", reminder.KindDeadline24h, base)
			other := record("t2", reminder.KindTaskReminder, base.Add(time.Hour))
			for _, r := range []PendingRecord{late, early, other} {
				if err := st.PutPending(ctx, r); err != nil {
					t.Fatalf("PutPending: %v", err)
				}
			}
			// upsert by handle
			moved := early
			moved.FireAt = base.Add(30 * time.Minute)
			if err := st.PutPending(ctx, moved); err != nil {
				t.Fatalf("PutPending upsert: %v", err)
			}

			got, err := st.ListPending(ctx)
			if err != nil {
				t.Fatalf("ListPending: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("pending = %d, want 3", len(got))
			}
			if got[0].Handle != moved.Handle || !got[0].FireAt.Equal(moved.FireAt) {
				t.Fatalf("first = %+v, want upserted early record", got[0])
			}
			if got[2].Payload.Type != reminder.KindDeadline30Min || got[2].Payload.Route != "/tasks/t1" {
				t.Fatalf("payload not preserved: %+v", got[2].Payload)
			}

			if err := st.DeletePending(ctx, reminder.TaskHandles("t1")...); err != nil {
				t.Fatalf("DeletePending: %v", err)
			}
			got, _ = st.ListPending(ctx)
			if len(got) != 1 || got[0].Payload.TaskID != "t2" {
				t.Fatalf("after delete: %+v", got)
			}
		})
	}
}

func TestAuditPruneAllDrivers(t *testing.T) {
	now := time.Now()
	for _, driver := range []string{"file", "sqlite", "bolt"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)
			for i, at := range []time.Time{now.Add(-72 * time.Hour), now.Add(-48 * time.Hour), now} {
				if err := st.AppendAudit(ctx, AuditEntry{At: at, Event: "created", TaskID: "t", Scheduled: i}); err != nil {
					t.Fatalf("AppendAudit: %v", err)
				}
			}
			n, err := st.PruneAudit(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("PruneAudit: %v", err)
			}
			if n != 2 {
				t.Fatalf("pruned = %d, want 2", n)
			}
			if n, _ := st.PruneAudit(ctx, now.Add(-24*time.Hour)); n != 0 {
				t.Fatalf("second prune = %d, want 0", n)
			}
			if err := st.AppendAudit(ctx, AuditEntry{Event: "deleted"}); err != nil {
				t.Fatalf("AppendAudit after prune: %v", err)
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	_ = st.PutPending(ctx, record("a", reminder.KindDeadline2h, at))
	_ = st.PutPending(ctx, record("b", reminder.KindDeadline2h, at))
	_ = st.DeletePending(ctx, reminder.Handle("a", reminder.KindDeadline2h))
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	got, _ := st.ListPending(ctx)
	if len(got) != 1 || got[0].Payload.TaskID != "b" {
		t.Fatalf("after reopen: %+v", got)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if st != nil || err != nil {
		t.Fatalf("disabled storage = %v, %v", st, err)
	}
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}
