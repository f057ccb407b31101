package sampler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"syswatch/pkg/models"
)

// Sample sources, as reported in error records.
const (
	SourceCPU     = "cpu"
	SourceNetwork = "network"
)

// SamplingError reports that an introspection tool could not produce output.
type SamplingError struct {
	Source  string
	Message string
}

func (e *SamplingError) Error() string {
	return e.Source + ": " + e.Message
}

// Config configures a Sampler.
type Config struct {
	PSCommand []string
	SSCommand []string
	Filter    ConnectionFilter
	Timeout   time.Duration
}

// Sampler captures process and socket snapshots.
type Sampler struct {
	runner Runner
	ps     []string
	ss     []string
	filter ConnectionFilter
}

// New creates a Sampler. A nil runner uses ExecRunner with cfg.Timeout.
func New(cfg Config, runner Runner) *Sampler {
	if len(cfg.PSCommand) == 0 {
		cfg.PSCommand = DefaultPSCommand
	}
	if len(cfg.SSCommand) == 0 {
		cfg.SSCommand = DefaultSSCommand
	}
	if runner == nil {
		runner = ExecRunner{Timeout: cfg.Timeout}
	}
	return &Sampler{
		runner: runner,
		ps:     cfg.PSCommand,
		ss:     cfg.SSCommand,
		filter: cfg.Filter,
	}
}

// SampleProcesses returns every parsable process row.
func (s *Sampler) SampleProcesses(ctx context.Context) ([]models.ProcessSample, error) {
	out, err := s.invoke(ctx, SourceCPU, s.ps)
	if err != nil {
		return nil, err
	}
	return slices.Collect(ParseProcesses(out)), nil
}

// SampleConnections returns every socket row admitted by the filter.
func (s *Sampler) SampleConnections(ctx context.Context) ([]models.ConnectionSample, error) {
	out, err := s.invoke(ctx, SourceNetwork, s.ss)
	if err != nil {
		return nil, err
	}
	return slices.Collect(ParseConnections(out, s.filter)), nil
}

func (s *Sampler) invoke(ctx context.Context, source string, argv []string) ([]byte, error) {
	res, err := s.runner.Run(ctx, argv)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &SamplingError{Source: source, Message: err.Error()}
	}
	if res.ExitCode != 0 {
		return nil, &SamplingError{
			Source:  source,
			Message: fmt.Sprintf("%s failed rc=%d: %s", argv[0], res.ExitCode, strings.TrimSpace(string(res.Stderr))),
		}
	}
	return res.Stdout, nil
}
