package pipeline

import (
	"context"
	"errors"
	"time"

	"syswatch/internal/alerts"
	"syswatch/internal/enrich"
	"syswatch/internal/logger"
	"syswatch/internal/metrics"
	"syswatch/internal/novelty"
	"syswatch/internal/rules"
	"syswatch/internal/sampler"
	"syswatch/pkg/models"
)

// Sampler captures the two snapshots an iteration works on.
type Sampler interface {
	SampleProcesses(ctx context.Context) ([]models.ProcessSample, error)
	SampleConnections(ctx context.Context) ([]models.ConnectionSample, error)
}

// Config controls the loop.
type Config struct {
	PollInterval time.Duration
	// Location renders ts_local and the tz fields. Nil means time.Local.
	Location *time.Location
}

// Monitor runs fixed-interval sampling iterations on a single goroutine.
// It owns the cooldown table and the known connection set.
type Monitor struct {
	sampler  Sampler
	engine   *alerts.Engine
	lookup   enrich.Lookup
	rules    rules.Engine
	writer   EventWriter
	metrics  *metrics.Metrics
	interval time.Duration
	location *time.Location

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	cooldown *alerts.Table
	known    *novelty.Set
}

// NewMonitor creates a monitor. lookup, ruleEngine and m may be nil.
func NewMonitor(cfg Config, s Sampler, engine *alerts.Engine, lookup enrich.Lookup, ruleEngine rules.Engine, writer EventWriter, m *metrics.Metrics) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if lookup == nil {
		lookup = enrich.NoopLookup{}
	}
	if ruleEngine == nil {
		ruleEngine = &rules.NoopEngine{}
	}
	return &Monitor{
		sampler:  s,
		engine:   engine,
		lookup:   lookup,
		rules:    ruleEngine,
		writer:   writer,
		metrics:  m,
		interval: cfg.PollInterval,
		location: cfg.Location,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// SleepFor is the pause after an iteration that took elapsed.
func SleepFor(interval, elapsed time.Duration) time.Duration {
	return max(0, interval-elapsed)
}

// Run emits the startup record and iterates until ctx is cancelled.
// It returns ctx.Err().
func (p *Monitor) Run(ctx context.Context) error {
	start := p.now()
	p.cooldown = alerts.NewTable(start)
	p.known = novelty.NewSet()

	logger.Infof("Monitor started: poll_interval=%s cpu_threshold=%.2f retention=%s", p.interval, p.engine.Threshold(), p.engine.Retention())
	p.emit([]*models.Event{models.NewStartEvent(models.NewStamp(start, p.location), p.interval)})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := p.now()
		if err := p.iterate(ctx, started); err != nil {
			return err
		}
		elapsed := p.now().Sub(started)
		p.metrics.ObserveIteration(elapsed, p.cooldown.Len(), p.known.Len())

		if err := p.sleep(ctx, SleepFor(p.interval, elapsed)); err != nil {
			return err
		}
	}
}

// Close releases the writer.
func (p *Monitor) Close() error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close event writer: %v", err)
			return err
		}
	}
	return nil
}

func (p *Monitor) iterate(ctx context.Context, started time.Time) error {
	stamp := models.NewStamp(started, p.location)

	procs, err := p.sampler.SampleProcesses(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.samplingFailed(stamp, sampler.SourceCPU, err)
		procs = nil
	}
	p.metrics.AddSamples(sampler.SourceCPU, len(procs))

	res := p.engine.Decide(p.cooldown, procs, started)
	p.metrics.CooldownOutcome(res.Suppressed, res.Evicted)
	if res.Evicted > 0 {
		logger.Debugf("Cooldown cleanup evicted %d entries", res.Evicted)
	}
	cpuEvents := make([]*models.Event, 0, len(res.Alerts))
	for _, d := range res.Alerts {
		cpuEvents = append(cpuEvents, models.NewCPUEvent(stamp, d.Sample, p.engine.Threshold(), p.lookup.Lookup(d.Sample.PID)))
	}
	p.emit(cpuEvents)

	conns, err := p.sampler.SampleConnections(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.samplingFailed(stamp, sampler.SourceNetwork, err)
		conns = nil
	}
	p.metrics.AddSamples(sampler.SourceNetwork, len(conns))

	fresh := novelty.Decide(p.known, conns)
	connEvents := make([]*models.Event, 0, len(fresh))
	for _, c := range fresh {
		var pctx models.ProcessContext
		if c.PID != nil {
			pctx = p.lookup.Lookup(*c.PID)
		}
		connEvents = append(connEvents, models.NewConnectionEvent(stamp, c, pctx))
	}
	p.emit(connEvents)
	return nil
}

func (p *Monitor) samplingFailed(stamp models.Stamp, source string, err error) {
	message := err.Error()
	var serr *sampler.SamplingError
	if errors.As(err, &serr) {
		source = serr.Source
		message = serr.Message
	}
	logger.Warnf("Sampling %s failed: %s", source, message)
	p.metrics.SamplingFailed(source)
	p.emit([]*models.Event{models.NewErrorEvent(stamp, source, message)})
}

func (p *Monitor) emit(events []*models.Event) {
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		event.RuleTags = p.rules.Apply(event)
		p.metrics.EventEmitted(event.Kind)
		logger.Debugf("Emit %s", event)
	}
	if p.writer == nil {
		return
	}
	if err := p.writer.WriteEvents(events); err != nil {
		p.metrics.WriteFailed()
		logger.Errorf("Failed to write %d events: %v", len(events), err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
