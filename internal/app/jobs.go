package app

import (
	"context"
	"strings"
	"time"

	"remindd/internal/config"
	logx "remindd/pkg/logx"
)

const (
	jobPendingReport = "pending.report"
	jobAuditPrune    = "audit.prune"

	defaultAuditRetention = 30 * 24 * time.Hour
)

// registerJobs (re)declares the maintenance schedules from cfg. An empty
// spec removes the job.
func (a *App) registerJobs(cfg *config.Config) {
	sc := cfg.Scheduler

	if spec := strings.TrimSpace(sc.PendingReport); spec != "" {
		if err := a.sched.AddSchedule(jobPendingReport, spec, 0, a.reportPending); err != nil {
			a.log.Warn("pending report schedule rejected", logx.String("spec", spec), logx.Err(err))
		}
	} else {
		a.sched.Remove(jobPendingReport)
	}

	spec := strings.TrimSpace(sc.AuditPrune)
	if spec == "" || a.store == nil {
		a.sched.Remove(jobAuditPrune)
		return
	}
	retention := config.DurationOr(sc.AuditRetention, defaultAuditRetention)
	job := func(ctx context.Context) error { return a.pruneAudit(ctx, retention) }
	var err error
	if isClock(spec) {
		err = a.sched.AddDaily(jobAuditPrune, spec, 0, job)
	} else {
		err = a.sched.AddSchedule(jobAuditPrune, spec, 0, job)
	}
	if err != nil {
		a.log.Warn("audit prune schedule rejected", logx.String("spec", spec), logx.Err(err))
	}
}

// reportPending logs the pending set; the gateway adds one line per entry.
func (a *App) reportPending(ctx context.Context) error {
	pending := a.gw.ListPending(ctx)
	a.log.Info("pending reminders", logx.Int("count", len(pending)))
	return nil
}

func (a *App) pruneAudit(ctx context.Context, retention time.Duration) error {
	n, err := a.store.PruneAudit(ctx, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info("audit log pruned", logx.Int("rows", n), logx.Duration("retention", retention))
	}
	return nil
}

// isClock reports whether spec is an "HH:MM" daily time.
func isClock(spec string) bool {
	if len(spec) != 5 || spec[2] != ':' {
		return false
	}
	for i, c := range spec {
		if i != 2 && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
