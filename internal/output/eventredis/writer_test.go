package eventredis

import (
	"encoding/json"
	"testing"
	"time"

	"syswatch/pkg/models"
)

func TestNewWriterRequiresKey(t *testing.T) {
	if _, err := NewWriter(Config{Addr: "127.0.0.1:6379"}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestEmptyBatchSkipsRoundTrip(t *testing.T) {
	// Nothing listens on this port; an empty batch must not dial.
	w, err := NewWriter(Config{Addr: "127.0.0.1:1", Key: "syswatch:events", Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	if err := w.WriteEvents(nil); err != nil {
		t.Fatalf("expected empty batch to succeed, got %v", err)
	}
	if err := w.WriteEvents([]*models.Event{nil}); err != nil {
		t.Fatalf("expected nil-only batch to succeed, got %v", err)
	}
}

func TestWriteEventsReportsUnreachableServer(t *testing.T) {
	w, err := NewWriter(Config{Addr: "127.0.0.1:1", Key: "syswatch:events", Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	stamp := models.NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	if err := w.WriteEvents([]*models.Event{models.NewStartEvent(stamp, time.Second)}); err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
}

func TestEncodePayloads(t *testing.T) {
	stamp := models.NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	payloads, err := encodePayloads([]*models.Event{
		models.NewErrorEvent(stamp, "cpu", "boom"),
		nil,
		models.NewStartEvent(stamp, 10*time.Second),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(payloads))
	}
	var row map[string]interface{}
	if err := json.Unmarshal([]byte(payloads[0].(string)), &row); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if row["kind"] != models.KindError || row["source"] != "cpu" {
		t.Fatalf("unexpected payload: %v", row)
	}
}
