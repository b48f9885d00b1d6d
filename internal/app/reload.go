package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"remindd/internal/config"
	logx "remindd/pkg/logx"
)

// restartOnly lists sections whose changes are logged but need a restart.
var restartOnly = []string{"storage", "transport", "http"}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts, keep the newest
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogging(cfg))

	for _, s := range sections {
		if slices.Contains(restartOnly, s) {
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}
	if prev != nil && prev.Reminders.IsNative() != cfg.Reminders.IsNative() {
		a.log.Warn("reminders.native changed; restart required")
	}

	a.hooks.SetLocation(config.Location(cfg.Reminders.Timezone))
	a.facility.Apply(mapFacility(cfg))

	ncfg := mapNotifier(cfg)
	wasOn := a.notif.Enabled()
	a.notif.Apply(ncfg)
	switch {
	case wasOn && !ncfg.Enabled:
		a.log.Info("notifier disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	case !wasOn && ncfg.Enabled:
		a.log.Info("notifier enabled via config")
		a.notif.Start(ctx)
	}

	scfg := mapScheduler(cfg)
	wasOn = a.sched.Enabled()
	if wasOn && !scfg.Enabled {
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	}
	a.sched.Apply(scfg)
	a.registerJobs(cfg)
	if !wasOn && scfg.Enabled {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
