// Package reminder computes the reminder set of a task.
//
// Nothing here talks to a notification facility. Given a task (and a clock)
// the engine returns the reminders that should exist right now; callers hand
// them to a gateway. Handles are derived from (entity id, kind) so the same
// reminder can always be addressed again without bookkeeping.
package reminder
