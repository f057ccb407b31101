package models

// Protocol is the transport of a sampled socket.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// ProcessSample is one row of the process listing.
type ProcessSample struct {
	PID        int
	ParentPID  int
	CPUPercent float64
	MemPercent float64
	Command    string
}

// ConnectionSample is one row of the socket table.
type ConnectionSample struct {
	Protocol    Protocol
	State       string
	LocalAddr   string
	LocalPort   string
	RemoteAddr  string
	RemotePort  string
	ProcessName string // empty when the socket table did not expose an owner
	PID         *int
}

// ProcessContext is best-effort metadata for a pid. Empty fields were unreadable.
type ProcessContext struct {
	WorkingDirectory string
	CommandLine      string
	ExecutablePath   string
}
