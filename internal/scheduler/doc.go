// Package scheduler runs the daemon's periodic maintenance jobs on cron
// (robfig/cron): the pending-reminder report and the audit prune.
//
// Reminders themselves are one-shot and live in the notification facility;
// this package only handles recurring housekeeping. A job never overlaps
// with its own previous run and always runs under a timeout.
package scheduler
