package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SysWatch SysWatchConfig `yaml:"syswatch"`
}

// SysWatchConfig is the project configuration.
type SysWatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timezone     string        `yaml:"timezone"`
	CPU          CPUConfig     `yaml:"cpu"`
	Network      NetworkConfig `yaml:"network"`
	Sampler      SamplerConfig `yaml:"sampler"`
	Output       OutputConfig  `yaml:"output"`
	Rules        RulesConfig   `yaml:"rules"`
	Metrics      MetricsConfig `yaml:"metrics"`
	Logging      LoggingConfig `yaml:"logging"`
}

// CPUConfig controls CPU alerting.
type CPUConfig struct {
	Threshold float64       `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// NetworkConfig controls connection filtering.
type NetworkConfig struct {
	States          []string `yaml:"states"`
	IncludeLoopback bool     `yaml:"include_loopback"`
}

// SamplerConfig controls the external tools.
type SamplerConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	PSCommand []string      `yaml:"ps_command"`
	SSCommand []string      `yaml:"ss_command"`
}

// OutputConfig controls event sinks.
type OutputConfig struct {
	File  FileOutputConfig  `yaml:"file"`
	Echo  *bool             `yaml:"echo"`
	Redis RedisOutputConfig `yaml:"redis"`
}

// FileOutputConfig config for the local JSONL event file.
type FileOutputConfig struct {
	Dir  string `yaml:"dir"`
	Path string `yaml:"path"`
}

// RedisOutputConfig config for the optional Redis list sink.
type RedisOutputConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	MaxLen   int64         `yaml:"max_len"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RulesConfig controls Sigma tagging.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console *bool  `yaml:"console"`
}

// Default state allow-list for connections.
var DefaultNetStates = []string{"ESTAB", "SYN-SENT", "SYN-RECV"}

// NewConfig returns a config seeded with defaults whose zero value is a valid
// setting: threshold 0 alerts on every process, cooldown 0 disables
// suppression.
func NewConfig() *Config {
	return &Config{SysWatch: SysWatchConfig{
		CPU: CPUConfig{
			Threshold: 20,
			Cooldown:  60 * time.Second,
		},
	}}
}

// LoadConfig reads and parses a YAML config file over NewConfig. Keys absent
// from the file keep their seeded values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load builds the effective configuration: the YAML file at path if it
// exists, then variables from envFile (if present) and the process
// environment, then defaults. The returned warnings list ignored values.
func Load(path, envFile string) (*Config, []string, error) {
	cfg := NewConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	warnings := ApplyEnv(cfg, os.LookupEnv)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// ApplyEnv overlays SYSWATCH_* variables. Numeric values that do not parse
// are skipped and reported.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) []string {
	sw := &cfg.SysWatch
	var warnings []string

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	seconds := func(name string, dst *time.Duration) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s=%q is not a number of seconds", name, v))
			return
		}
		*dst = time.Duration(f * float64(time.Second))
	}

	str("SYSWATCH_LOG_DIR", &sw.Output.File.Dir)
	str("SYSWATCH_EVENT_LOG", &sw.Output.File.Path)
	seconds("SYSWATCH_POLL_INTERVAL", &sw.PollInterval)
	seconds("SYSWATCH_CPU_COOLDOWN", &sw.CPU.Cooldown)
	seconds("SYSWATCH_SAMPLE_TIMEOUT", &sw.Sampler.Timeout)
	str("SYSWATCH_TIMEZONE", &sw.Timezone)

	if v, ok := lookup("SYSWATCH_CPU_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("SYSWATCH_CPU_THRESHOLD=%q is not a number", v))
		} else {
			sw.CPU.Threshold = f
		}
	}
	if v, ok := lookup("SYSWATCH_NET_STATES"); ok {
		sw.Network.States = splitList(v)
		if sw.Network.States == nil {
			sw.Network.States = []string{}
		}
	}
	if v, ok := lookup("SYSWATCH_NET_INCLUDE_LOOPBACK"); ok {
		sw.Network.IncludeLoopback = parseFlag(v)
	}

	if v, ok := lookup("SYSWATCH_REDIS_ADDR"); ok && strings.TrimSpace(v) != "" {
		sw.Output.Redis.Addr = strings.TrimSpace(v)
		sw.Output.Redis.Enabled = true
	}
	str("SYSWATCH_REDIS_KEY", &sw.Output.Redis.Key)
	str("SYSWATCH_REDIS_PASSWORD", &sw.Output.Redis.Password)

	if v, ok := lookup("SYSWATCH_METRICS_LISTEN"); ok && strings.TrimSpace(v) != "" {
		sw.Metrics.Listen = strings.TrimSpace(v)
		sw.Metrics.Enabled = true
	}
	if v, ok := lookup("SYSWATCH_RULES_PATH"); ok && strings.TrimSpace(v) != "" {
		sw.Rules.Path = strings.TrimSpace(v)
		sw.Rules.Enabled = true
	}
	str("SYSWATCH_LOG_LEVEL", &sw.Logging.Level)
	str("SYSWATCH_LOG_FILE", &sw.Logging.File)

	return warnings
}

// ApplyDefaults fills unset values. CPU settings are seeded by NewConfig
// and left alone here.
func ApplyDefaults(cfg *Config) {
	sw := &cfg.SysWatch
	if sw.PollInterval == 0 {
		sw.PollInterval = 10 * time.Second
	}
	if sw.Network.States == nil {
		sw.Network.States = append([]string(nil), DefaultNetStates...)
	}
	if sw.Sampler.Timeout == 0 {
		sw.Sampler.Timeout = 30 * time.Second
	}

	if sw.Output.File.Dir == "" {
		sw.Output.File.Dir = "log"
	}
	if sw.Output.File.Path == "" {
		sw.Output.File.Path = filepath.Join(sw.Output.File.Dir, "syswatcher.jsonl")
	}
	if sw.Output.Echo == nil {
		echo := true
		sw.Output.Echo = &echo
	}
	if sw.Output.Redis.Addr == "" {
		sw.Output.Redis.Addr = "127.0.0.1:6379"
	}
	if sw.Output.Redis.Key == "" {
		sw.Output.Redis.Key = "syswatch_events"
	}
	if sw.Output.Redis.Timeout == 0 {
		sw.Output.Redis.Timeout = 5 * time.Second
	}

	if sw.Metrics.Listen == "" {
		sw.Metrics.Listen = ":9310"
	}

	if sw.Logging.Enabled == nil {
		enabled := true
		sw.Logging.Enabled = &enabled
	}
	if sw.Logging.Console == nil {
		console := true
		sw.Logging.Console = &console
	}
	if sw.Logging.Level == "" {
		sw.Logging.Level = "info"
	}
}

// Validate rejects settings the loop cannot run with.
func Validate(cfg *Config) error {
	sw := cfg.SysWatch
	if sw.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", sw.PollInterval)
	}
	if sw.CPU.Cooldown < 0 {
		return fmt.Errorf("cpu cooldown must not be negative, got %s", sw.CPU.Cooldown)
	}
	if sw.Sampler.Timeout < 0 {
		return fmt.Errorf("sampler timeout must not be negative, got %s", sw.Sampler.Timeout)
	}
	if sw.Rules.Enabled && strings.TrimSpace(sw.Rules.Path) == "" {
		return fmt.Errorf("rules enabled but rules.path is empty")
	}
	if _, err := sw.ResolveLocation(); err != nil {
		return err
	}
	return nil
}

// ResolveLocation returns the zone used for local timestamps.
func (c SysWatchConfig) ResolveLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("resolve timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.ToUpper(strings.TrimSpace(p)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
