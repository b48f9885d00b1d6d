package config

// Config is the daemon configuration file (JSON or YAML).
//
// Durations are Go duration strings ("500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`
	Facility  FacilityConfig  `json:"facility"`
	Scheduler SchedulerConfig `json:"scheduler"`
	HTTP      HTTPConfig      `json:"http"`
	Transport TransportConfig `json:"transport"`

	// Notifier may be omitted; it then runs enabled with defaults.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	// Storage may be omitted; pending reminders then live in memory only.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RemindersConfig controls the rule engine and the gateway.
//
// Native is a pointer so an omitted key means true.
type RemindersConfig struct {
	Timezone string `json:"timezone,omitempty"` // IANA name; empty means local
	Native   *bool  `json:"native,omitempty"`
}

func (r RemindersConfig) IsNative() bool { return r.Native == nil || *r.Native }

// FacilityConfig seeds the local notification facility.
//
// Permission is one of granted, denied, prompt, prompt-with-rationale
// (default prompt). GrantOnRequest decides how a prompt resolves (default true).
type FacilityConfig struct {
	Permission     string `json:"permission,omitempty"`
	GrantOnRequest *bool  `json:"grant_on_request,omitempty"`
}

func (f FacilityConfig) Grants() bool { return f.GrantOnRequest == nil || *f.GrantOnRequest }

// NotifierConfig controls delivery of fired reminders.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 512
//   - rate_per_sec: 3
//   - retry_base: "500ms", retry_max_delay: "10s"
//   - send_timeout: "10s"
//   - dedup_max_entries: 2000
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// DefaultNotifier is used when the notifier section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "1m",
		DedupMaxEntries: 2000,
	}
}

// StorageConfig selects where pending reminders and the audit log persist.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./remindd.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | bolt | none
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig controls maintenance jobs. Empty specs disable a job.
type SchedulerConfig struct {
	Enabled        bool   `json:"enabled"`
	Timezone       string `json:"timezone,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	// PendingReport logs the pending reminder set, e.g. "0 * * * *" or "30m".
	PendingReport string `json:"pending_report,omitempty"`
	// AuditPrune drops audit rows older than AuditRetention, e.g. "03:30" daily.
	AuditPrune     string `json:"audit_prune,omitempty"`
	AuditRetention string `json:"audit_retention,omitempty"`
}

// HTTPConfig controls the ingest API. An empty Addr disables it.
type HTTPConfig struct {
	Addr         string `json:"addr,omitempty"`
	RatePerSec   int    `json:"rate_per_sec,omitempty"`
	Burst        int    `json:"burst,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	Metrics      *bool  `json:"metrics,omitempty"`
	Pprof        bool   `json:"pprof,omitempty"`
}

func (h HTTPConfig) MetricsEnabled() bool { return h.Metrics == nil || *h.Metrics }

type TransportConfig struct {
	Console  bool            `json:"console"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}
