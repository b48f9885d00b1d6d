package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "remindd/pkg/logx"
)

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		path    string
		body    string
		wantErr string
	}{
		{"json", "c.json", `{"reminders":{"timezone":"UTC"},"transport":{"console":true}}`, ""},
		{"yaml", "c.yaml", "reminders:\n  timezone: UTC\ntransport:\n  console: true\n", ""},
		{"empty yaml", "c.yml", "", ""},
		{"unknown json key", "c.json", `{"remindrs":{}}`, "unknown field"},
		{"unknown yaml key", "c.yaml", "bogus: 1\n", "unknown field"},
		{"trailing data", "c.json", `{} {}`, "trailing data"},
		{"bad yaml", "c.yaml", "a: [\n", "yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Decode(tc.path, []byte(tc.body))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tc.body != "" && (cfg.Reminders.Timezone != "UTC" || !cfg.Transport.Console) {
				t.Fatalf("decoded = %+v", cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{name: "zero", cfg: Config{}},
		{name: "bad zone", cfg: Config{Reminders: RemindersConfig{Timezone: "Mars/Olympus"}}, want: []string{"reminders.timezone"}},
		{name: "bad permission", cfg: Config{Facility: FacilityConfig{Permission: "maybe"}}, want: []string{"facility.permission"}},
		{
			name: "storage needs path",
			cfg:  Config{Storage: &StorageConfig{Driver: "sqlite"}},
			want: []string{"storage.path"},
		},
		{
			name: "unknown driver",
			cfg:  Config{Storage: &StorageConfig{Driver: "redis", Path: "x"}},
			want: []string{"storage.driver"},
		},
		{
			name: "telegram and notifier",
			cfg: Config{
				Transport: TransportConfig{Telegram: &TelegramConfig{}},
				Notifier:  &NotifierConfig{RetryBase: "soon", RetryMax: -1},
			},
			want: []string{"transport.telegram.token", "transport.telegram.chat_id", "notifier.retry_base", "notifier.retry_max"},
		},
		{name: "negative duration", cfg: Config{HTTP: HTTPConfig{ReadTimeout: "-1s"}}, want: []string{"http.read_timeout"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.cfg)
			if len(tc.want) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected errors %v", tc.want)
			}
			for _, w := range tc.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %s", err, w)
				}
			}
		})
	}
}

func TestDurationOr(t *testing.T) {
	t.Parallel()
	if got := DurationOr("", time.Second); got != time.Second {
		t.Fatalf("empty = %v", got)
	}
	if got := DurationOr("2m", time.Second); got != 2*time.Minute {
		t.Fatalf("2m = %v", got)
	}
	if got := DurationOr("junk", time.Second); got != time.Second {
		t.Fatalf("junk = %v", got)
	}
}

func TestSummarizeConfigChangeHidesToken(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Transport: TransportConfig{Telegram: &TelegramConfig{Token: "old-secret", ChatID: 1}}}
	newCfg := &Config{
		Logging:   LoggingConfig{Level: "debug"},
		Transport: TransportConfig{Telegram: &TelegramConfig{Token: "new-secret", ChatID: 1}},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "logging,transport" {
		t.Fatalf("changed = %v", changed)
	}
	var buf bytes.Buffer
	logx.NewWriter(&buf, "info").Info("config changed", attrs...)
	if strings.Contains(buf.String(), "secret") {
		t.Fatalf("token leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "token_set") {
		t.Fatalf("missing token_set field: %s", buf.String())
	}

	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
	// An omitted notifier equals an explicit default one.
	d := DefaultNotifier()
	if changed, _ := SummarizeConfigChange(&Config{}, &Config{Notifier: &d}); len(changed) != 0 {
		t.Fatalf("default notifier reported %v", changed)
	}
}

func TestManagerLoadAndWatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "remindd.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("logging:\n  level: info\n")

	m := NewManager(path, logx.Nop())
	m.debounce = 10 * time.Millisecond
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "info" || m.Get() != cfg {
		t.Fatalf("loaded = %+v", cfg)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		write("logging:\n  level: debug\n")
		select {
		case got := <-ch:
			if got.Logging.Level != "debug" {
				t.Fatalf("published level = %q", got.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatal("published config not committed")
			}
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
	t.Fatal("no reload published")
}

func TestManagerRejectsInvalidReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(path, []byte(`{"facility":{"permission":"granted"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	if err := os.WriteFile(path, []byte(`{"facility":{"permission":"sometimes"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	select {
	case cfg := <-ch:
		t.Fatalf("invalid config published: %+v", cfg)
	default:
	}
	if m.Get().Facility.Permission != "granted" {
		t.Fatal("invalid reload replaced committed config")
	}

	// unchanged content is not republished
	if err := os.WriteFile(path, []byte(`{"facility":{"permission":"granted"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("unchanged config republished")
	default:
	}
}
