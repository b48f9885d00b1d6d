package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"remindd/internal/reminder"
	"remindd/internal/transport"
)

func TestSendWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, time.UTC)
	err := s.Send(context.Background(), transport.Message{
		Handle:  7,
		Title:   "⏰ Deadline approaching",
		Body:    `"Clean room" has 24 hours left`,
		FireAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Payload: reminder.Payload{TaskID: "t1", Route: "/tasks/t1"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := "[2026-03-10 09:00] #7 ⏰ Deadline approaching: \"Clean room\" has 24 hours left (/tasks/t1)\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestSendHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := New(&buf, nil).Send(ctx, transport.Message{}); err == nil {
		t.Fatal("expected context error")
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written")
	}
}
