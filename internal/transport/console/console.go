// Package console prints fired reminders to a writer (stdout by default).
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"remindd/internal/transport"
)

type Sender struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location
}

func New(w io.Writer, loc *time.Location) *Sender {
	if w == nil {
		w = os.Stdout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Sender{w: w, loc: loc}
}

func (s *Sender) Name() string { return "console" }

func (s *Sender) Send(ctx context.Context, m transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] #%d %s: %s (%s)\n",
		m.FireAt.In(s.loc).Format("2006-01-02 15:04"), m.Handle, m.Title, m.Body, m.Payload.Route)
	return err
}
