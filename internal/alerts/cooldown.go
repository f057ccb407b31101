package alerts

import (
	"time"

	"syswatch/pkg/models"
)

// Config controls CPU alert gating.
type Config struct {
	Threshold    float64
	Cooldown     time.Duration
	PollInterval time.Duration
}

// Key identifies an alertable process. PID reuse with an identical command
// is indistinguishable from the original process.
type Key struct {
	PID     int
	Command string
}

// KeyOf returns the alert key of a sample.
func KeyOf(s models.ProcessSample) Key {
	return Key{PID: s.PID, Command: s.Command}
}

// Table holds the last alert time per key. It is owned by the caller and
// mutated only through Engine.Decide.
type Table struct {
	lastAlert   map[Key]time.Time
	lastCleanup time.Time
}

// NewTable creates an empty table whose cleanup clock starts at start.
func NewTable(start time.Time) *Table {
	return &Table{
		lastAlert:   make(map[Key]time.Time),
		lastCleanup: start,
	}
}

// Len returns the number of tracked keys.
func (t *Table) Len() int {
	return len(t.lastAlert)
}

// LastAlert returns when key last alerted.
func (t *Table) LastAlert(key Key) (time.Time, bool) {
	ts, ok := t.lastAlert[key]
	return ts, ok
}

// Decision is a sample cleared to alert now.
type Decision struct {
	Sample models.ProcessSample
	Key    Key
}

// Result is the outcome of one Decide call.
type Result struct {
	Alerts     []Decision
	Suppressed int
	Evicted    int
}

// Engine applies threshold and cooldown rules to CPU samples.
type Engine struct {
	cfg       Config
	retention time.Duration
}

// NewEngine creates a new engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	return &Engine{
		cfg:       cfg,
		retention: RetentionWindow(cfg.Cooldown, cfg.PollInterval),
	}
}

// RetentionWindow is how long an idle key is kept, and how often the table
// is swept: max(3*cooldown, 6*poll).
func RetentionWindow(cooldown, poll time.Duration) time.Duration {
	return max(3*cooldown, 6*poll)
}

// Threshold returns the configured CPU threshold.
func (e *Engine) Threshold() float64 {
	return e.cfg.Threshold
}

// Retention returns the derived retention window.
func (e *Engine) Retention() time.Duration {
	return e.retention
}

// Decide returns the samples that may alert at now, in input order, and
// records their alert time in table.
func (e *Engine) Decide(table *Table, samples []models.ProcessSample, now time.Time) Result {
	var res Result
	active := make(map[Key]struct{})

	for _, s := range samples {
		if s.CPUPercent < e.cfg.Threshold {
			continue
		}
		key := KeyOf(s)
		active[key] = struct{}{}

		if last, ok := table.lastAlert[key]; ok && now.Sub(last) < e.cfg.Cooldown {
			res.Suppressed++
			continue
		}
		table.lastAlert[key] = now
		res.Alerts = append(res.Alerts, Decision{Sample: s, Key: key})
	}

	if now.Sub(table.lastCleanup) >= e.retention {
		res.Evicted = e.cleanup(table, active, now)
		table.lastCleanup = now
	}
	return res
}

func (e *Engine) cleanup(table *Table, active map[Key]struct{}, now time.Time) int {
	evicted := 0
	for key, last := range table.lastAlert {
		if _, ok := active[key]; ok {
			continue
		}
		if now.Sub(last) >= e.retention {
			delete(table.lastAlert, key)
			evicted++
		}
	}
	return evicted
}
