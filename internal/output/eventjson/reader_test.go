package eventjson

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"syswatch/pkg/models"
)

func TestReadEventsSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	stamp := models.NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)

	w, err := NewWriter(path, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	cpu := models.NewCPUEvent(stamp, models.ProcessSample{PID: 9, ParentPID: 1, CPUPercent: 75, Command: "xmrig"}, 20, models.ProcessContext{})
	if err := w.WriteEvents([]*models.Event{models.NewStartEvent(stamp, 10*time.Second), cpu}); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.WriteString("not json\n\n{\"foo\":1}\n")
	f.Close()

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Kind != models.KindCPUHigh || events[1].PID == nil || *events[1].PID != 9 || events[1].Process != "xmrig" {
		t.Fatalf("unexpected cpu event: %+v", events[1])
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	if _, err := ReadEvents(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
