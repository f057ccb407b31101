package models

import (
	"fmt"
	"math"
	"time"
)

// Event kinds.
const (
	KindStart             = "syswatcher_start"
	KindCPUHigh           = "cpu_high"
	KindNetworkConnection = "network_connection"
	KindError             = "error"
)

// Event is one emitted record of the event stream.
type Event struct {
	Timestamp string `json:"ts"`
	Kind      string `json:"kind"`

	PollInterval *float64 `json:"poll_interval,omitempty"`

	PID       *int     `json:"pid,omitempty"`
	PPID      *int     `json:"ppid,omitempty"`
	Process   string   `json:"process,omitempty"`
	CPU       *float64 `json:"cpu,omitempty"`
	Mem       *float64 `json:"mem,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`

	Proto      string `json:"proto,omitempty"`
	State      string `json:"state,omitempty"`
	LocalAddr  string `json:"local_addr,omitempty"`
	LocalPort  string `json:"local_port,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	RemotePort string `json:"remote_port,omitempty"`

	Cwd     string `json:"cwd,omitempty"`
	Cmdline string `json:"cmdline,omitempty"`
	Exe     string `json:"exe,omitempty"`

	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`

	RuleTags []RuleTag `json:"rule_tags,omitempty"`

	TSLocal  string `json:"ts_local,omitempty"`
	TZOffset string `json:"tz_offset,omitempty"`
	TZName   string `json:"tz_name,omitempty"`
}

// RuleTag represents a rule match annotation.
type RuleTag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// Stamp is the time context shared by every record of one iteration.
type Stamp struct {
	UTC      string
	Local    string
	TZOffset string
	TZName   string
}

// NewStamp renders t in UTC for ts and in loc for the local fields.
func NewStamp(t time.Time, loc *time.Location) Stamp {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	name, _ := local.Zone()
	return Stamp{
		UTC:      t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"),
		Local:    local.Format(time.RFC3339Nano),
		TZOffset: local.Format("-0700"),
		TZName:   name,
	}
}

func (s Stamp) apply(e *Event) *Event {
	e.Timestamp = s.UTC
	e.TSLocal = s.Local
	e.TZOffset = s.TZOffset
	e.TZName = s.TZName
	return e
}

// NewStartEvent builds the one-off startup record.
func NewStartEvent(s Stamp, pollInterval time.Duration) *Event {
	secs := pollInterval.Seconds()
	return s.apply(&Event{Kind: KindStart, PollInterval: &secs})
}

// NewCPUEvent builds a cpu_high record. cpu and mem are rounded to two
// decimals; the threshold comparison happens on the raw sample.
func NewCPUEvent(s Stamp, p ProcessSample, threshold float64, ctx ProcessContext) *Event {
	pid, ppid := p.PID, p.ParentPID
	cpu, mem := Round2(p.CPUPercent), Round2(p.MemPercent)
	e := &Event{
		Kind:      KindCPUHigh,
		PID:       &pid,
		PPID:      &ppid,
		Process:   p.Command,
		CPU:       &cpu,
		Mem:       &mem,
		Threshold: &threshold,
	}
	e.setContext(ctx)
	return s.apply(e)
}

// NewConnectionEvent builds a network_connection record. ctx is ignored when
// the connection has no known pid.
func NewConnectionEvent(s Stamp, c ConnectionSample, ctx ProcessContext) *Event {
	e := &Event{
		Kind:       KindNetworkConnection,
		Proto:      string(c.Protocol),
		State:      c.State,
		LocalAddr:  c.LocalAddr,
		LocalPort:  c.LocalPort,
		RemoteAddr: c.RemoteAddr,
		RemotePort: c.RemotePort,
		Process:    c.ProcessName,
	}
	if c.PID != nil {
		pid := *c.PID
		e.PID = &pid
		e.setContext(ctx)
	}
	return s.apply(e)
}

// NewErrorEvent builds an error record for a failed source.
func NewErrorEvent(s Stamp, source, message string) *Event {
	return s.apply(&Event{Kind: KindError, Source: source, Message: message})
}

func (e *Event) setContext(ctx ProcessContext) {
	e.Cwd = ctx.WorkingDirectory
	e.Cmdline = ctx.CommandLine
	e.Exe = ctx.ExecutablePath
}

// Fields flattens the populated fields of the event into a map keyed by
// their JSON names.
func (e *Event) Fields() map[string]interface{} {
	if e == nil {
		return nil
	}
	out := make(map[string]interface{}, 16)
	out["kind"] = e.Kind
	putString := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	if e.PID != nil {
		out["pid"] = *e.PID
	}
	if e.PPID != nil {
		out["ppid"] = *e.PPID
	}
	if e.CPU != nil {
		out["cpu"] = *e.CPU
	}
	if e.Mem != nil {
		out["mem"] = *e.Mem
	}
	putString("process", e.Process)
	putString("proto", e.Proto)
	putString("state", e.State)
	putString("local_addr", e.LocalAddr)
	putString("local_port", e.LocalPort)
	putString("remote_addr", e.RemoteAddr)
	putString("remote_port", e.RemotePort)
	putString("cwd", e.Cwd)
	putString("cmdline", e.Cmdline)
	putString("exe", e.Exe)
	putString("source", e.Source)
	putString("message", e.Message)
	return out
}

// String returns a compact description for diagnostics.
func (e *Event) String() string {
	switch e.Kind {
	case KindCPUHigh:
		return fmt.Sprintf("%s pid=%d cpu=%.2f", e.Kind, derefInt(e.PID), derefFloat(e.CPU))
	case KindNetworkConnection:
		return fmt.Sprintf("%s %s %s:%s -> %s:%s", e.Kind, e.Proto, e.LocalAddr, e.LocalPort, e.RemoteAddr, e.RemotePort)
	case KindError:
		return fmt.Sprintf("%s source=%s: %s", e.Kind, e.Source, e.Message)
	default:
		return e.Kind
	}
}

// Round2 rounds v to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
