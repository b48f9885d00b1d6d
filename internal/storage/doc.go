// Package storage persists what the local notification facility must keep
// across restarts.
//
// It holds:
//   - Pending reminders (handle -> entry), so timers can be re-armed on boot
//   - An append-only audit of task lifecycle events handled by remindd
package storage
