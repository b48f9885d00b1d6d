// Package transport defines where fired reminders end up.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindd/internal/reminder"
)

// Message is one fired reminder on its way to a user.
type Message struct {
	Handle  int32            `json:"handle"`
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	FireAt  time.Time        `json:"fire_at"`
	Payload reminder.Payload `json:"payload"`
}

// Text renders the message the way chat transports display it.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString(m.Title)
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(m.Body)
	}
	if m.Payload.Route != "" {
		fmt.Fprintf(&b, "\n→ %s", m.Payload.Route)
	}
	return b.String()
}

type Sender interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// Fanout sends to every sender and joins their errors.
type Fanout []Sender

func (f Fanout) Name() string {
	names := make([]string, 0, len(f))
	for _, s := range f {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (f Fanout) Send(ctx context.Context, m Message) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
