package reminder

import (
	"fmt"
	"time"
)

const (
	recurrenceHour = 8
	summaryHour    = 20
)

type deadlineRule struct {
	kind   Kind
	offset time.Duration
	title  string
	body   string // fmt verb receives the task title
}

var deadlineRules = [...]deadlineRule{
	{KindDeadline24h, 24 * time.Hour, "⏰ Deadline approaching", "%q has 24 hours left"},
	{KindDeadline2h, 2 * time.Hour, "🔔 Urgent task!", "%q has only 2 hours left"},
	{KindDeadline30Min, 30 * time.Minute, "🚨 Final warning!", "%q has 30 minutes left"},
}

// Engine computes reminder sets. The zero value uses time.Now and time.Local.
type Engine struct {
	Now      func() time.Time
	Location *time.Location
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) loc() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

// DeadlineReminders returns the deadline reminders whose fire time is still
// strictly in the future. A task without a due date, or due in the past,
// yields none; a task due within 30 minutes yields none as well.
func (e Engine) DeadlineReminders(t Task) []Scheduled {
	if t.DueDate == nil {
		return nil
	}
	now := e.now()
	due := *t.DueDate
	if !due.After(now) {
		return nil
	}
	out := make([]Scheduled, 0, len(deadlineRules))
	for _, r := range deadlineRules {
		at := due.Add(-r.offset)
		if !at.After(now) {
			continue
		}
		out = append(out, Scheduled{
			Handle: Handle(t.ID, r.kind),
			Kind:   r.kind,
			FireAt: at,
			Title:  r.title,
			Body:   fmt.Sprintf(r.body, t.Title),
			Payload: Payload{
				TaskID: t.ID,
				Type:   r.kind,
				Route:  taskRoute(t.ID),
			},
		})
	}
	return out
}

// RecurrenceReminder returns the next occurrence nudge of a repeating task.
// Only one occurrence is computed; nothing re-arms it after it fires.
func (e Engine) RecurrenceReminder(t Task) (Scheduled, bool) {
	at, ok := e.NextRecurrence(t.RepeatType)
	if !ok {
		return Scheduled{}, false
	}
	return Scheduled{
		Handle: Handle(t.ID, KindTaskReminder),
		Kind:   KindTaskReminder,
		FireAt: at,
		Title:  "🔄 Recurring task",
		Body:   fmt.Sprintf("%q is waiting for you", t.Title),
		Payload: Payload{
			TaskID: t.ID,
			Type:   KindTaskReminder,
			Route:  taskRoute(t.ID),
		},
	}, true
}

// NextRecurrence maps a cadence to its next fire time, 08:00 in the engine location:
//   - daily: the next calendar day
//   - weekly: seven days out
//   - monthly: the 1st of the next calendar month
func (e Engine) NextRecurrence(r RepeatType) (time.Time, bool) {
	now := e.now().In(e.loc())
	y, m, d := now.Date()
	switch r {
	case RepeatDaily:
		return time.Date(y, m, d+1, recurrenceHour, 0, 0, 0, now.Location()), true
	case RepeatWeekly:
		return time.Date(y, m, d+7, recurrenceHour, 0, 0, 0, now.Location()), true
	case RepeatMonthly:
		return time.Date(y, m+1, 1, recurrenceHour, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// DailySummary builds the end-of-day recap for a user: tomorrow at 20:00.
func (e Engine) DailySummary(userID string, completed, points int) Scheduled {
	now := e.now().In(e.loc())
	y, m, d := now.Date()
	return Scheduled{
		Handle: Handle(userID, KindDailySummary),
		Kind:   KindDailySummary,
		FireAt: time.Date(y, m, d+1, summaryHour, 0, 0, 0, now.Location()),
		Title:  "📊 Daily summary",
		Body:   fmt.Sprintf("You completed %d tasks today! 🎉 You earned %d points in total.", completed, points),
		Payload: Payload{
			UserID: userID,
			Type:   KindDailySummary,
			Route:  "/dashboard",
		},
	}
}

// AssignmentReminder tells an assignee about a task right away.
func (e Engine) AssignmentReminder(t Task, assignee string) Scheduled {
	return Scheduled{
		Handle: Handle(t.ID, KindTaskAssigned),
		Kind:   KindTaskAssigned,
		FireAt: e.now(),
		Title:  "📌 New task assigned",
		Body:   fmt.Sprintf("%q was assigned to you", t.Title),
		Payload: Payload{
			TaskID: t.ID,
			UserID: assignee,
			Type:   KindTaskAssigned,
			Route:  taskRoute(t.ID),
		},
	}
}
