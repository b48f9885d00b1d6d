package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks values the strict decoder cannot: enums, durations,
// time zones and cross-field requirements.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(checkZone("reminders.timezone", cfg.Reminders.Timezone))
	add(checkZone("scheduler.timezone", cfg.Scheduler.Timezone))

	switch strings.TrimSpace(cfg.Facility.Permission) {
	case "", "granted", "denied", "prompt", "prompt-with-rationale":
	default:
		add(fmt.Errorf("facility.permission: unknown state %q", cfg.Facility.Permission))
	}

	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.send_timeout":    n.SendTimeout,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			_, err := ParseDurationField(path, raw)
			add(err)
		}
		if n.RetryMax < 0 {
			add(errors.New("notifier.retry_max: must be >= 0"))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3", "bolt", "bbolt":
			if strings.TrimSpace(s.Path) == "" {
				add(fmt.Errorf("storage.path: required for driver %q", s.Driver))
			}
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}

	_, err := ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	add(err)
	_, err = ParseDurationField("scheduler.audit_retention", cfg.Scheduler.AuditRetention)
	add(err)
	_, err = ParseDurationField("http.read_timeout", cfg.HTTP.ReadTimeout)
	add(err)
	_, err = ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
	add(err)
	if cfg.HTTP.RatePerSec < 0 || cfg.HTTP.Burst < 0 {
		add(errors.New("http.rate_per_sec/burst: must be >= 0"))
	}

	if tg := cfg.Transport.Telegram; tg != nil {
		if strings.TrimSpace(tg.Token) == "" {
			add(errors.New("transport.telegram.token: required"))
		}
		if tg.ChatID == 0 {
			add(errors.New("transport.telegram.chat_id: required"))
		}
		_, err := ParseDurationField("transport.telegram.timeout", tg.Timeout)
		add(err)
	}
	return errors.Join(errs...)
}

func checkZone(path, tz string) error {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Location resolves an IANA zone name; empty or invalid names give time.Local.
func Location(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
