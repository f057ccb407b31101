package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SYSWATCH_LOG_DIR", "SYSWATCH_EVENT_LOG", "SYSWATCH_POLL_INTERVAL",
		"SYSWATCH_CPU_THRESHOLD", "SYSWATCH_CPU_COOLDOWN", "SYSWATCH_NET_STATES",
		"SYSWATCH_NET_INCLUDE_LOOPBACK", "SYSWATCH_SAMPLE_TIMEOUT", "SYSWATCH_TIMEZONE",
		"SYSWATCH_REDIS_ADDR", "SYSWATCH_REDIS_KEY", "SYSWATCH_REDIS_PASSWORD",
		"SYSWATCH_METRICS_LISTEN", "SYSWATCH_RULES_PATH", "SYSWATCH_LOG_LEVEL", "SYSWATCH_LOG_FILE",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "absent.yml"), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	sw := cfg.SysWatch
	if sw.PollInterval != 10*time.Second || sw.CPU.Threshold != 20 || sw.CPU.Cooldown != 60*time.Second {
		t.Fatalf("unexpected loop defaults: %+v", sw)
	}
	if sw.Output.File.Path != filepath.Join("log", "syswatcher.jsonl") {
		t.Fatalf("expected default event log path, got %s", sw.Output.File.Path)
	}
	if len(sw.Network.States) != 3 || sw.Network.States[0] != "ESTAB" || sw.Network.IncludeLoopback {
		t.Fatalf("unexpected network defaults: %+v", sw.Network)
	}
	if sw.Sampler.Timeout != 30*time.Second {
		t.Fatalf("expected 30s sampler timeout, got %s", sw.Sampler.Timeout)
	}
	if sw.Output.Redis.Enabled || sw.Metrics.Enabled || sw.Rules.Enabled {
		t.Fatalf("expected optional sinks disabled by default")
	}
	if !*sw.Output.Echo || !*sw.Logging.Enabled {
		t.Fatalf("expected echo and logging enabled by default")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "syswatch.yml")
	body := `syswatch:
  poll_interval: 5s
  cpu:
    threshold: 50
    cooldown: 2m
  network:
    states: [ESTAB]
    include_loopback: true
  output:
    echo: false
    redis:
      enabled: true
      addr: 10.0.0.5:6379
      key: host_events
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sw := cfg.SysWatch
	if sw.PollInterval != 5*time.Second || sw.CPU.Threshold != 50 || sw.CPU.Cooldown != 2*time.Minute {
		t.Fatalf("unexpected loop settings: %+v", sw)
	}
	if len(sw.Network.States) != 1 || !sw.Network.IncludeLoopback {
		t.Fatalf("unexpected network settings: %+v", sw.Network)
	}
	if *sw.Output.Echo {
		t.Fatalf("expected echo disabled by file")
	}
	if !sw.Output.Redis.Enabled || sw.Output.Redis.Addr != "10.0.0.5:6379" || sw.Output.Redis.Key != "host_events" {
		t.Fatalf("unexpected redis settings: %+v", sw.Output.Redis)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "syswatch.yml")
	if err := os.WriteFile(path, []byte("syswatch:\n  poll_interval: 5s\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SYSWATCH_POLL_INTERVAL", "2.5")
	t.Setenv("SYSWATCH_LOG_DIR", filepath.Join(dir, "out"))
	t.Setenv("SYSWATCH_NET_STATES", "estab, listen")
	t.Setenv("SYSWATCH_NET_INCLUDE_LOOPBACK", "yes")
	t.Setenv("SYSWATCH_METRICS_LISTEN", "127.0.0.1:9999")

	cfg, _, err := Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sw := cfg.SysWatch
	if sw.PollInterval != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s poll interval, got %s", sw.PollInterval)
	}
	if sw.Output.File.Path != filepath.Join(dir, "out", "syswatcher.jsonl") {
		t.Fatalf("expected event log under SYSWATCH_LOG_DIR, got %s", sw.Output.File.Path)
	}
	if len(sw.Network.States) != 2 || sw.Network.States[0] != "ESTAB" || sw.Network.States[1] != "LISTEN" {
		t.Fatalf("unexpected states: %v", sw.Network.States)
	}
	if !sw.Network.IncludeLoopback {
		t.Fatalf("expected loopback included")
	}
	if !sw.Metrics.Enabled || sw.Metrics.Listen != "127.0.0.1:9999" {
		t.Fatalf("unexpected metrics settings: %+v", sw.Metrics)
	}
}

func TestUnparsableEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYSWATCH_CPU_THRESHOLD", "lots")
	t.Setenv("SYSWATCH_CPU_COOLDOWN", "1m")

	cfg, warnings, err := Load("", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if cfg.SysWatch.CPU.Threshold != 20 || cfg.SysWatch.CPU.Cooldown != 60*time.Second {
		t.Fatalf("expected defaults kept, got %+v", cfg.SysWatch.CPU)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("SYSWATCH_CPU_THRESHOLD=35\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SYSWATCH_CPU_THRESHOLD") })

	cfg, _, err := Load("", envFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SysWatch.CPU.Threshold != 35 {
		t.Fatalf("expected threshold from .env, got %v", cfg.SysWatch.CPU.Threshold)
	}

	if _, _, err := Load("", filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"negative poll", func(c *Config) { c.SysWatch.PollInterval = -time.Second }},
		{"negative cooldown", func(c *Config) { c.SysWatch.CPU.Cooldown = -time.Second }},
		{"rules without path", func(c *Config) { c.SysWatch.Rules.Enabled = true }},
		{"bad timezone", func(c *Config) { c.SysWatch.Timezone = "Mars/Olympus" }},
	}
	for _, tc := range cases {
		cfg := NewConfig()
		ApplyDefaults(cfg)
		tc.mut(cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestResolveLocation(t *testing.T) {
	loc, err := SysWatchConfig{Timezone: "UTC"}.ResolveLocation()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
	loc, err = SysWatchConfig{}.ResolveLocation()
	if err != nil || loc != time.Local {
		t.Fatalf("expected local zone, got %v (%v)", loc, err)
	}
}

func TestExplicitZeroCPUSettingsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYSWATCH_CPU_COOLDOWN", "0")
	t.Setenv("SYSWATCH_CPU_THRESHOLD", "0")

	cfg, warnings, err := Load("", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if cfg.SysWatch.CPU.Cooldown != 0 || cfg.SysWatch.CPU.Threshold != 0 {
		t.Fatalf("expected zero cooldown and threshold, got %+v", cfg.SysWatch.CPU)
	}
}

func TestExplicitZeroCPUSettingsFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "syswatch.yml")
	if err := os.WriteFile(path, []byte("syswatch:\n  cpu:\n    threshold: 0\n    cooldown: 0s\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SysWatch.CPU.Cooldown != 0 || cfg.SysWatch.CPU.Threshold != 0 {
		t.Fatalf("expected zero cooldown and threshold, got %+v", cfg.SysWatch.CPU)
	}
}

func TestPartialCPUSectionKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "syswatch.yml")
	if err := os.WriteFile(path, []byte("syswatch:\n  cpu:\n    threshold: 75\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SysWatch.CPU.Threshold != 75 || cfg.SysWatch.CPU.Cooldown != 60*time.Second {
		t.Fatalf("expected threshold 75 with default cooldown, got %+v", cfg.SysWatch.CPU)
	}
}
