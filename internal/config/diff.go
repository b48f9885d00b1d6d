package config

import (
	"reflect"
	"sort"
	"strings"

	logx "remindd/pkg/logx"
)

// SummarizeConfigChange lists changed sections plus safe log fields.
// Secrets (the telegram token) are only reported as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Reminders.Timezone) != strings.TrimSpace(newCfg.Reminders.Timezone) ||
		oldCfg.Reminders.IsNative() != newCfg.Reminders.IsNative() {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.timezone", strings.TrimSpace(newCfg.Reminders.Timezone)),
			logx.Bool("reminders.native", newCfg.Reminders.IsNative()),
		)
	}

	if oldCfg.Facility.Permission != newCfg.Facility.Permission || oldCfg.Facility.Grants() != newCfg.Facility.Grants() {
		changed = append(changed, "facility")
		attrs = append(attrs,
			logx.String("facility.permission", newCfg.Facility.Permission),
			logx.Bool("facility.grant_on_request", newCfg.Facility.Grants()),
		)
	}

	oldN, newN := DefaultNotifier(), DefaultNotifier()
	if oldCfg.Notifier != nil {
		oldN = *oldCfg.Notifier
	}
	if newCfg.Notifier != nil {
		newN = *newCfg.Notifier
	}
	if oldN != newN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
		)
	}

	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		changed = append(changed, "http")
		attrs = append(attrs, logx.String("http.addr", newCfg.HTTP.Addr), logx.Int("http.rate_per_sec", newCfg.HTTP.RatePerSec))
	}

	oldT, newT := oldCfg.Transport, newCfg.Transport
	if oldT.Console != newT.Console || !reflect.DeepEqual(oldT.Telegram, newT.Telegram) {
		changed = append(changed, "transport")
		attrs = append(attrs,
			logx.Bool("transport.console", newT.Console),
			logx.Bool("transport.telegram", newT.Telegram != nil),
		)
		if newT.Telegram != nil {
			attrs = append(attrs,
				logx.Int64("transport.telegram.chat_id", newT.Telegram.ChatID),
				logx.Bool("transport.telegram.token_set", strings.TrimSpace(newT.Telegram.Token) != ""),
			)
		}
	}

	sort.Strings(changed)
	return changed, attrs
}
