package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewStampFormats(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	s := NewStamp(time.Date(2026, 3, 4, 5, 6, 7, 890000000, time.UTC), loc)

	if s.UTC != "2026-03-04T05:06:07Z" {
		t.Fatalf("expected second-precision utc ts, got %s", s.UTC)
	}
	if s.Local != "2026-03-04T06:06:07.89+01:00" {
		t.Fatalf("unexpected local ts: %s", s.Local)
	}
	if s.TZOffset != "+0100" || s.TZName != "CET" {
		t.Fatalf("unexpected zone fields: %s %s", s.TZOffset, s.TZName)
	}
}

func TestConnectionEventWithoutPIDOmitsProcessFields(t *testing.T) {
	s := NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	c := ConnectionSample{Protocol: ProtocolUDP, State: "UNCONN", LocalAddr: "0.0.0.0", LocalPort: "68", RemoteAddr: "*", RemotePort: "*"}
	e := NewConnectionEvent(s, c, ProcessContext{WorkingDirectory: "/ignored"})

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	line := string(data)
	for _, field := range []string{`"pid"`, `"cwd"`, `"process"`, `"cpu"`} {
		if strings.Contains(line, field) {
			t.Fatalf("expected %s to be omitted, got %s", field, line)
		}
	}
	if !strings.HasPrefix(line, `{"ts":"2026-01-02T03:04:05Z","kind":"network_connection"`) {
		t.Fatalf("expected ts and kind first, got %s", line)
	}
}

func TestCPUEventKeepsZeroValues(t *testing.T) {
	s := NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	e := NewCPUEvent(s, ProcessSample{PID: 10, ParentPID: 0, CPUPercent: 25, MemPercent: 0, Command: "dd"}, 20, ProcessContext{})

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"ppid":0`) || !strings.Contains(line, `"mem":0`) {
		t.Fatalf("expected zero ppid and mem to be present, got %s", line)
	}
	if strings.Contains(line, `"cwd"`) {
		t.Fatalf("expected empty context to be omitted, got %s", line)
	}
}

func TestEventFields(t *testing.T) {
	s := NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	pid := 7
	e := NewConnectionEvent(s, ConnectionSample{Protocol: ProtocolTCP, State: "ESTAB", RemoteAddr: "203.0.113.9", RemotePort: "4444", ProcessName: "nc", PID: &pid}, ProcessContext{ExecutablePath: "/usr/bin/nc"})

	fields := e.Fields()
	if fields["kind"] != KindNetworkConnection || fields["pid"] != 7 || fields["remote_port"] != "4444" || fields["exe"] != "/usr/bin/nc" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if _, ok := fields["cwd"]; ok {
		t.Fatalf("expected empty cwd to be absent")
	}
	if got := e.String(); got != "network_connection tcp : -> 203.0.113.9:4444" {
		t.Fatalf("unexpected string: %q", got)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(12.345678); got != 12.35 {
		t.Fatalf("expected 12.35, got %v", got)
	}
}

func TestCPUEventRoundsForRecord(t *testing.T) {
	s := NewStamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	e := NewCPUEvent(s, ProcessSample{PID: 7, CPUPercent: 97.456, MemPercent: 12.301, Command: "busy"}, 20, ProcessContext{})
	if *e.CPU != 97.46 || *e.Mem != 12.3 {
		t.Fatalf("expected rounded cpu/mem 97.46/12.3, got %v/%v", *e.CPU, *e.Mem)
	}
}
