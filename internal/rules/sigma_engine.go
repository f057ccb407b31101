package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"syswatch/pkg/models"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	eval  *sigmaevaluator.RuleEvaluator
	label models.RuleTag
	// kind restricts the rule to one record kind; empty matches all.
	kind string
}

// sysmonFields maps Sysmon for Linux field names, as used by the public
// Sigma linux rules, onto record fields.
var sysmonFields = sigma.Config{
	Title: "syswatch records",
	FieldMappings: map[string]sigma.FieldMapping{
		"Image":            {TargetNames: []string{"exe"}},
		"CommandLine":      {TargetNames: []string{"cmdline"}},
		"CurrentDirectory": {TargetNames: []string{"cwd"}},
		"ProcessId":        {TargetNames: []string{"pid"}},
		"ParentProcessId":  {TargetNames: []string{"ppid"}},
		"Protocol":         {TargetNames: []string{"proto"}},
		"SourceIp":         {TargetNames: []string{"local_addr"}},
		"SourcePort":       {TargetNames: []string{"local_port"}},
		"DestinationIp":    {TargetNames: []string{"remote_addr"}},
		"DestinationPort":  {TargetNames: []string{"remote_port"}},
	},
}

// categoryKinds pins logsource categories to the record kind they describe.
var categoryKinds = map[string]string{
	"network_connection": models.KindNetworkConnection,
}

// SigmaEngine evaluates single-event Sigma rules against emitted records.
// Rule fields address the record's JSON names (process, cmdline, exe,
// remote_addr, remote_port, ...) or their Sysmon for Linux names.
type SigmaEngine struct {
	rules []compiledSigmaRule
	ctx   context.Context
}

// NewSigmaEngine loads Sigma rules from a file or directory and compiles evaluators.
// Unsupported or complex rules are skipped and included in stats.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !entry.IsDir() && isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !isHostCompatible(rule) {
			stats.SkippedDatasource++
			continue
		}
		if !isSimpleSingleEventRule(rule) {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledSigmaRule{
			eval:  sigmaevaluator.ForRule(rule, sigmaevaluator.WithConfig(sysmonFields)),
			label: tagFromRule(rule),
			kind:  categoryKinds[strings.ToLower(strings.TrimSpace(rule.Logsource.Category))],
		})
		stats.Loaded++
	}

	return &SigmaEngine{rules: compiled, ctx: context.Background()}, stats, nil
}

// Apply evaluates all loaded rules and returns tags for the matches.
func (e *SigmaEngine) Apply(event *models.Event) []models.RuleTag {
	if e == nil || event == nil || len(e.rules) == 0 {
		return nil
	}

	fields := event.Fields()
	var out []models.RuleTag
	for _, rule := range e.rules {
		if rule.kind != "" && rule.kind != event.Kind {
			continue
		}
		res, err := rule.eval.Matches(e.ctx, fields)
		if err != nil {
			continue
		}
		if res.Match {
			out = append(out, rule.label)
		}
	}
	return out
}

// Len returns the number of compiled rules.
func (e *SigmaEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// isHostCompatible admits rules written for linux hosts or with no product.
func isHostCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	return product == "" || product == "linux"
}

func isSimpleSingleEventRule(rule sigma.Rule) bool {
	if rule.Detection.Timeframe > 0 {
		return false
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil || !isSimpleSearchExpression(cond.Search) {
			return false
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 || len(search.EventMatchers) == 0 {
			return false
		}
	}
	return true
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func tagFromRule(rule sigma.Rule) models.RuleTag {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}

	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}

	tactic, technique := parseAttackTags(rule.Tags)
	return models.RuleTag{
		ID:        id,
		Name:      strings.TrimSpace(rule.Title),
		Severity:  level,
		Tactic:    tactic,
		Technique: technique,
	}
}

func parseAttackTags(tags []string) (string, string) {
	var tactic, technique string
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(strings.ReplaceAll(suffix, ".", "/"))
			continue
		}
		if tactic == "" && !strings.HasPrefix(suffix, "t") {
			tactic = strings.ReplaceAll(suffix, "_", "-")
		}
	}
	return tactic, technique
}
