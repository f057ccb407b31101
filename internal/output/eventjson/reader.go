package eventjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"syswatch/pkg/models"
)

// ReadEvents loads records from a JSON lines file. Blank and malformed
// lines are skipped.
func ReadEvents(path string) ([]*models.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	events := make([]*models.Event, 0, 1024)
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 4*1024*1024)

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var event models.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Kind == "" {
			continue
		}
		events = append(events, &event)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return events, nil
}
