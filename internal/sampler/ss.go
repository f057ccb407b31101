package sampler

import (
	"iter"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"syswatch/pkg/models"
)

// DefaultSSCommand dumps tcp and udp sockets with owning processes, no header.
var DefaultSSCommand = []string{"ss", "-tunapH"}

var (
	usersRegex   = regexp.MustCompile(`users:\(\(([^\)]+)\)\)`)
	processRegex = regexp.MustCompile(`"(?P<name>[^"]+)",pid=(?P<pid>\d+)`)
)

// ConnectionFilter decides which socket rows are worth reporting.
type ConnectionFilter struct {
	// States is the upper-case state allow-list. Empty admits every state.
	States          map[string]struct{}
	IncludeLoopback bool
}

// NewConnectionFilter builds a filter from a state list.
func NewConnectionFilter(states []string, includeLoopback bool) ConnectionFilter {
	f := ConnectionFilter{IncludeLoopback: includeLoopback}
	for _, s := range states {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if f.States == nil {
			f.States = make(map[string]struct{}, len(states))
		}
		f.States[s] = struct{}{}
	}
	return f
}

// ParseConnections yields one sample per admitted line of ss output.
func ParseConnections(out []byte, filter ConnectionFilter) iter.Seq[models.ConnectionSample] {
	return func(yield func(models.ConnectionSample) bool) {
		for line := range lines(out) {
			conn, ok := parseSSLine(line, filter)
			if !ok {
				continue
			}
			if !yield(conn) {
				return
			}
		}
	}
}

func parseSSLine(line string, filter ConnectionFilter) (models.ConnectionSample, bool) {
	if !strings.Contains(line, " ") || strings.HasPrefix(line, "Cannot open") {
		return models.ConnectionSample{}, false
	}
	parts := strings.Fields(line)
	if len(parts) < 6 {
		return models.ConnectionSample{}, false
	}

	proto := models.Protocol(strings.ToLower(parts[0]))
	if proto != models.ProtocolTCP && proto != models.ProtocolUDP {
		return models.ConnectionSample{}, false
	}
	state := strings.ToUpper(parts[1])
	localHost, localPort := SplitHostPort(parts[4])
	remoteHost, remotePort := SplitHostPort(parts[5])

	if remoteHost == "" || remotePort == "" || remotePort == "*" {
		return models.ConnectionSample{}, false
	}
	if !filter.IncludeLoopback && IsLoopback(remoteHost) {
		return models.ConnectionSample{}, false
	}
	if len(filter.States) > 0 {
		if _, ok := filter.States[state]; !ok {
			return models.ConnectionSample{}, false
		}
	}

	conn := models.ConnectionSample{
		Protocol:   proto,
		State:      state,
		LocalAddr:  localHost,
		LocalPort:  localPort,
		RemoteAddr: remoteHost,
		RemotePort: remotePort,
	}
	if m := usersRegex.FindStringSubmatch(line); m != nil {
		if pm := processRegex.FindStringSubmatch(m[1]); pm != nil {
			if pid, err := strconv.Atoi(pm[2]); err == nil {
				conn.ProcessName = pm[1]
				conn.PID = &pid
			}
		}
	}
	return conn, true
}

// SplitHostPort splits an ss address column. It accepts "[v6]:port",
// bare IPv6 literals ("fe80::1:443", split at the last colon) and "host:port".
// Missing parts come back empty.
func SplitHostPort(value string) (string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ""
	}
	if strings.HasPrefix(value, "[") {
		host, rest, _ := strings.Cut(value, "]")
		host = strings.TrimLeft(host, "[")
		port := ""
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return host, port
	}
	if strings.Count(value, ":") > 1 {
		idx := strings.LastIndex(value, ":")
		return value[:idx], value[idx+1:]
	}
	host, port, _ := strings.Cut(value, ":")
	return host, port
}

// IsLoopback reports whether addr refers to the local host or is unspecified.
func IsLoopback(addr string) bool {
	switch addr {
	case "::", "::1", "0.0.0.0", "*":
		return true
	}
	if strings.HasPrefix(addr, "127.") {
		return true
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	return ip.IsLoopback() || ip.IsUnspecified()
}
