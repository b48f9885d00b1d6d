package gateway

import (
	"context"
	"time"

	"remindd/internal/reminder"
)

// Permission is the display permission state reported by a facility.
type Permission string

const (
	PermissionGranted             Permission = "granted"
	PermissionDenied              Permission = "denied"
	PermissionPrompt              Permission = "prompt"
	PermissionPromptWithRationale Permission = "prompt-with-rationale"
)

// Undecided reports whether the user has not answered the permission prompt yet.
func (p Permission) Undecided() bool {
	return p == PermissionPrompt || p == PermissionPromptWithRationale
}

// Entry is one notification as the facility stores it.
type Entry struct {
	Handle  int32            `json:"handle"`
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	FireAt  time.Time        `json:"fire_at"`
	Payload reminder.Payload `json:"payload"`
}

// EntryFrom converts a computed reminder into a facility entry.
func EntryFrom(s reminder.Scheduled) Entry {
	return Entry{Handle: s.Handle, Title: s.Title, Body: s.Body, FireAt: s.FireAt, Payload: s.Payload}
}

// Facility is the host's local-notification service.
//
// Schedule with an existing handle replaces the previous entry.
// Cancel of an unknown handle is not an error.
type Facility interface {
	CheckPermission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	Schedule(ctx context.Context, e Entry) error
	Cancel(ctx context.Context, handles ...int32) error
	Pending(ctx context.Context) ([]Entry, error)
}
