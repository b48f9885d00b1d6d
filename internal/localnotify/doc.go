// Package localnotify is the host's local notification facility.
//
// It holds one-shot timers keyed by notification handle, persists the pending
// set through storage so reminders survive restarts, and hands each reminder
// to a Deliverer when its fire time is reached. Scheduling an existing handle
// replaces it. A stale timer callback from a replaced or canceled entry is
// ignored by comparing versions.
//
// The display permission is a small state machine seeded from config:
// prompt states resolve on request, denied is terminal and turns scheduling
// into a silent no-op.
package localnotify
