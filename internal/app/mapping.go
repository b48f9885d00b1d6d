package app

import (
	"io"
	"strings"
	"time"

	"remindd/internal/config"
	"remindd/internal/gateway"
	"remindd/internal/httpapi"
	"remindd/internal/localnotify"
	"remindd/internal/notifier"
	"remindd/internal/scheduler"
	"remindd/internal/storage"
	"remindd/internal/transport"
	"remindd/internal/transport/console"
	"remindd/internal/transport/telegram"
	logx "remindd/pkg/logx"
)

// Durations below have already passed config.Validate, so parse errors
// cannot happen here and zero values fall through to component defaults.

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorage(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, time.Second),
	}
}

func mapNotifier(cfg *config.Config) notifier.Config {
	n := config.DefaultNotifier()
	if cfg.Notifier != nil {
		n = *cfg.Notifier
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       config.DurationOr(n.RetryBase, 0),
		RetryMaxDelay:   config.DurationOr(n.RetryMaxDelay, 0),
		SendTimeout:     config.DurationOr(n.SendTimeout, 0),
		DedupWindow:     config.DurationOr(n.DedupWindow, 0),
		DedupMaxEntries: n.DedupMaxEntries,
	}
}

func mapFacility(cfg *config.Config) localnotify.Config {
	return localnotify.Config{
		Permission:     gateway.Permission(strings.TrimSpace(cfg.Facility.Permission)),
		GrantOnRequest: cfg.Facility.Grants(),
	}
}

// mapScheduler falls back to the reminders timezone so maintenance jobs and
// reminder rules agree on "03:30".
func mapScheduler(cfg *config.Config) scheduler.Config {
	tz := strings.TrimSpace(cfg.Scheduler.Timezone)
	if tz == "" {
		tz = strings.TrimSpace(cfg.Reminders.Timezone)
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       tz,
		DefaultTimeout: config.DurationOr(cfg.Scheduler.DefaultTimeout, time.Minute),
	}
}

func mapHTTP(cfg *config.Config) httpapi.Config {
	return httpapi.Config{
		Addr:         strings.TrimSpace(cfg.HTTP.Addr),
		RatePerSec:   cfg.HTTP.RatePerSec,
		Burst:        cfg.HTTP.Burst,
		ReadTimeout:  config.DurationOr(cfg.HTTP.ReadTimeout, 10*time.Second),
		WriteTimeout: config.DurationOr(cfg.HTTP.WriteTimeout, 10*time.Second),
		Metrics:      cfg.HTTP.MetricsEnabled(),
		Pprof:        cfg.HTTP.Pprof,
	}
}

// buildSender assembles the delivery channels. With none configured,
// reminders print to out.
func buildSender(cfg *config.Config, out io.Writer, log logx.Logger) (transport.Sender, error) {
	loc := config.Location(cfg.Reminders.Timezone)
	var senders transport.Fanout
	if tg := cfg.Transport.Telegram; tg != nil {
		s, err := telegram.New(telegram.Config{
			Token:    tg.Token,
			ChatID:   tg.ChatID,
			ThreadID: tg.ThreadID,
			Timeout:  config.DurationOr(tg.Timeout, 0),
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.Transport.Console || len(senders) == 0 {
		senders = append(senders, console.New(out, loc))
	}
	if len(senders) == 1 {
		return senders[0], nil
	}
	return senders, nil
}
