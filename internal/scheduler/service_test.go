package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "remindd/pkg/logx"
)

func TestAddScheduleReplacesByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddSchedule("report", "1h", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("report", "0 9 * * *", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDaily("prune", "03:30", 0, noop); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 2 {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if snap.Schedules[0].Spec != "0 9 * * *" || snap.Schedules[1].Spec != "30 3 * * *" {
		t.Fatalf("specs = %q, %q", snap.Schedules[0].Spec, snap.Schedules[1].Spec)
	}
	if !s.Remove("report") || s.Remove("report") {
		t.Fatal("Remove should report existence once")
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }
	if err := s.AddSchedule("", "1h", 0, noop); err == nil {
		t.Fatal("expected name error")
	}
	if err := s.AddSchedule("x", "61 * * * *", 0, noop); err == nil {
		t.Fatal("expected cron parse error")
	}
	if err := s.AddDaily("x", "25:00", 0, noop); err == nil {
		t.Fatal("expected HH:MM error")
	}
	if err := s.AddSchedule("x", "1h", 0, nil); err == nil {
		t.Fatal("expected job error")
	}
}

func TestIntervalJobRuns(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	var runs int32
	if err := s.AddSchedule("tick", "@every 1s", time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if atomic.LoadInt32(&runs) == 0 {
		t.Fatal("interval job never ran")
	}
	if snap := s.Snapshot(); snap.Schedules[0].Next.IsZero() {
		t.Fatal("running schedule should report next run")
	}
}

func TestRunNowRecordsErrorsAndPanics(t *testing.T) {
	t.Parallel()
	s := New(Config{DefaultTimeout: time.Second}, logx.Nop())
	_ = s.AddSchedule("fail", "1h", 0, func(ctx context.Context) error { return errors.New("disk full") })
	_ = s.AddSchedule("panic", "1h", 0, func(ctx context.Context) error { panic("oops") })

	if err := s.RunNow("fail"); err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow("panic"); err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow("missing"); err == nil {
		t.Fatal("expected not found error")
	}
	snap := s.Snapshot()
	if snap.Schedules[0].LastErr != "disk full" || snap.Schedules[0].Runs != 1 {
		t.Fatalf("fail stats = %+v", snap.Schedules[0])
	}
	if snap.Schedules[1].LastErr != "panic: oops" {
		t.Fatalf("panic stats = %+v", snap.Schedules[1])
	}
}

func TestJobTimeoutApplies(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	_ = s.AddSchedule("slow", "1h", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	done := make(chan struct{})
	go func() {
		_ = s.RunNow("slow")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout not applied")
	}
	if got := s.Snapshot().Schedules[0].LastErr; got != context.DeadlineExceeded.Error() {
		t.Fatalf("last err = %q", got)
	}
}

func TestDisabledStartIsNoop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, logx.Nop())
	s.Start(context.Background())
	s.Stop(context.Background())
	if s.Enabled() {
		t.Fatal("should be disabled")
	}
}
