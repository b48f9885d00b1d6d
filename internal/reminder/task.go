package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RepeatType is a task's recurrence cadence.
type RepeatType string

const (
	RepeatNone    RepeatType = "none"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
)

var ErrUnknownRepeat = errors.New("unknown repeat type")

// ParseRepeatType accepts the four cadences; empty means none.
func ParseRepeatType(s string) (RepeatType, error) {
	switch r := RepeatType(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RepeatNone, nil
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRepeat, s)
	}
}

// Task is the read-only view of a task record owned by the data layer.
type Task struct {
	ID         string     `json:"id"`
	FamilyID   string     `json:"family_id,omitempty"`
	Title      string     `json:"title"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	RepeatType RepeatType `json:"repeat_type"`
	Status     string     `json:"status,omitempty"`
	Points     int        `json:"points,omitempty"`
	AssignedTo []string   `json:"assigned_to,omitempty"`
}

// Repeats reports whether the task has a cadence other than none.
func (t Task) Repeats() bool {
	return t.RepeatType != "" && t.RepeatType != RepeatNone
}

// SameDue reports whether a and b carry the same due instant (both absent counts as same).
func SameDue(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Payload is echoed back by the platform when the user taps a notification.
type Payload struct {
	TaskID string `json:"task_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Type   Kind   `json:"type"`
	Route  string `json:"route"`
}

// Scheduled is one reminder ready to hand to a gateway.
type Scheduled struct {
	Handle  int32     `json:"handle"`
	Kind    Kind      `json:"kind"`
	FireAt  time.Time `json:"fire_at"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Payload Payload   `json:"payload"`
}

func taskRoute(id string) string { return "/tasks/" + id }
