package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"syswatch/config"
	"syswatch/internal/alerts"
	"syswatch/internal/enrich"
	"syswatch/internal/logger"
	"syswatch/internal/metrics"
	"syswatch/internal/output/eventjson"
	"syswatch/internal/output/eventredis"
	"syswatch/internal/pipeline"
	"syswatch/internal/rules"
	"syswatch/internal/sampler"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("syswatch.yml"); err == nil {
		return "syswatch.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "syswatch.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "syswatch.yml"
}

func loadRules(rc config.RulesConfig) rules.Engine {
	if !rc.Enabled {
		return nil
	}
	sigmaEngine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		logger.Errorf("Failed to load Sigma rules from %s: %v", rc.Path, err)
		log.Fatalf("Failed to load Sigma rules: %v", err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; rule tagging is effectively disabled")
	}
	return sigmaEngine
}

func runMonitor(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)

	cfg, warnings, err := config.Load(configPath, ".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	sw := cfg.SysWatch

	if err := logger.Init(*sw.Logging.Enabled, sw.Logging.Level, sw.Logging.File, *sw.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Infof("SysWatch starting")
	logger.Infof("Config loaded from: %s", configPath)
	for _, w := range warnings {
		logger.Warnf("Ignoring environment value: %s", w)
	}

	location, err := sw.ResolveLocation()
	if err != nil {
		log.Fatalf("Failed to resolve timezone: %v", err)
	}

	smp := sampler.New(sampler.Config{
		PSCommand: sw.Sampler.PSCommand,
		SSCommand: sw.Sampler.SSCommand,
		Filter:    sampler.NewConnectionFilter(sw.Network.States, sw.Network.IncludeLoopback),
		Timeout:   sw.Sampler.Timeout,
	}, nil)

	engine := alerts.NewEngine(alerts.Config{
		Threshold:    sw.CPU.Threshold,
		Cooldown:     sw.CPU.Cooldown,
		PollInterval: sw.PollInterval,
	})

	var echo io.Writer
	if *sw.Output.Echo {
		echo = os.Stdout
	}
	fileWriter, err := eventjson.NewWriter(sw.Output.File.Path, echo)
	if err != nil {
		logger.Errorf("Failed to create event file writer: %v", err)
		log.Fatalf("Failed to create event file writer: %v", err)
	}
	writers := pipeline.MultiWriter{fileWriter}
	logger.Infof("Event output: file (%s) echo=%t", sw.Output.File.Path, *sw.Output.Echo)

	if sw.Output.Redis.Enabled {
		rw, err := eventredis.NewWriter(eventredis.Config{
			Addr:     sw.Output.Redis.Addr,
			Password: sw.Output.Redis.Password,
			DB:       sw.Output.Redis.DB,
			Key:      sw.Output.Redis.Key,
			MaxLen:   sw.Output.Redis.MaxLen,
			Timeout:  sw.Output.Redis.Timeout,
		})
		if err != nil {
			logger.Errorf("Failed to create Redis event writer: %v", err)
			log.Fatalf("Failed to create Redis event writer: %v", err)
		}
		writers = append(writers, rw)
		logger.Infof("Event output: redis (%s key=%s)", sw.Output.Redis.Addr, sw.Output.Redis.Key)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if sw.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, sw.Metrics.Listen); err != nil {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	monitor := pipeline.NewMonitor(
		pipeline.Config{PollInterval: sw.PollInterval, Location: location},
		smp,
		engine,
		enrich.ProcLookup{},
		loadRules(sw.Rules),
		writers,
		m,
	)

	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Monitor error: %v", err)
	}

	logger.Infof("Shutting down")
	if err := monitor.Close(); err != nil {
		logger.Errorf("Error closing monitor: %v", err)
	}

	logger.Infof("SysWatch stopped")
}

// runTag re-applies Sigma rules to a recorded event file.
func runTag(args []string) int {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	input := fs.String("input", "log/syswatcher.jsonl", "Event JSONL input path")
	output := fs.String("output", "log/syswatcher_tagged.jsonl", "Tagged JSONL output path")
	rulesPath := fs.String("rules", "", "Sigma rule file or directory")
	matchedOnly := fs.Bool("matched-only", false, "Only write records with at least one rule tag")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*rulesPath) == "" {
		fmt.Fprintln(os.Stderr, "-rules is required")
		return 2
	}

	events, err := eventjson.ReadEvents(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load events: %v\n", err)
		return 1
	}

	engine, stats, err := rules.NewSigmaEngine(*rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load rules: %v\n", err)
		return 1
	}

	tagged := 0
	out := events[:0]
	for _, event := range events {
		event.RuleTags = engine.Apply(event)
		if len(event.RuleTags) > 0 {
			tagged++
		} else if *matchedOnly {
			continue
		}
		out = append(out, event)
	}

	if err := writeJSONLines(*output, out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write events: %v\n", err)
		return 1
	}

	fmt.Printf("tagged events=%d matched=%d rules=%d output=%s\n", len(events), tagged, stats.Loaded, *output)
	return 0
}

func writeJSONLines[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, item := range rows {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runMonitor(os.Args[2:])
			return
		case "tag":
			os.Exit(runTag(os.Args[2:]))
		default:
			// First arg is the config path.
			runMonitor(os.Args[1:])
			return
		}
	}

	runMonitor(nil)
}
