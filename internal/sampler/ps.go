package sampler

import (
	"bufio"
	"bytes"
	"iter"
	"strconv"
	"strings"
	"unicode"

	"syswatch/pkg/models"
)

// DefaultPSCommand lists every process without a header.
var DefaultPSCommand = []string{"ps", "-eo", "pid=,ppid=,%cpu=,%mem=,command="}

// ParseProcesses yields one sample per well-formed line of ps output.
// The sequence can be ranged over any number of times.
func ParseProcesses(out []byte) iter.Seq[models.ProcessSample] {
	return func(yield func(models.ProcessSample) bool) {
		for line := range lines(out) {
			sample, ok := parsePSLine(line)
			if !ok {
				continue
			}
			if !yield(sample) {
				return
			}
		}
	}
}

func parsePSLine(line string) (models.ProcessSample, bool) {
	parts := splitFieldsN(strings.TrimSpace(line), 5)
	if len(parts) < 5 {
		return models.ProcessSample{}, false
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return models.ProcessSample{}, false
	}
	ppid, err := strconv.Atoi(parts[1])
	if err != nil {
		return models.ProcessSample{}, false
	}
	cpu, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return models.ProcessSample{}, false
	}
	mem, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return models.ProcessSample{}, false
	}
	return models.ProcessSample{
		PID:        pid,
		ParentPID:  ppid,
		CPUPercent: cpu,
		MemPercent: mem,
		Command:    parts[4],
	}, true
}

// splitFieldsN splits s on runs of whitespace into at most n fields; the last
// field keeps the remainder of s verbatim.
func splitFieldsN(s string, n int) []string {
	out := make([]string, 0, n)
	for len(s) > 0 && len(out) < n-1 {
		idx := strings.IndexFunc(s, unicode.IsSpace)
		if idx < 0 {
			break
		}
		out = append(out, s[:idx])
		s = strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func lines(out []byte) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(bytes.NewReader(out))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}
