package enrich

import (
	"github.com/shirou/gopsutil/v3/process"

	"syswatch/pkg/models"
)

// Lookup resolves process metadata for a pid.
type Lookup interface {
	Lookup(pid int) models.ProcessContext
}

// ProcLookup reads process metadata through gopsutil. Empty fields were
// unreadable: the process exited, access was denied or the field was blank.
type ProcLookup struct{}

// Lookup never fails; unreadable fields are left empty.
func (ProcLookup) Lookup(pid int) models.ProcessContext {
	var ctx models.ProcessContext
	if pid <= 0 {
		return ctx
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ctx
	}
	if cwd, err := p.Cwd(); err == nil {
		ctx.WorkingDirectory = cwd
	}
	if cmdline, err := p.Cmdline(); err == nil {
		ctx.CommandLine = cmdline
	}
	if exe, err := p.Exe(); err == nil {
		ctx.ExecutablePath = exe
	}
	return ctx
}

// NoopLookup returns empty contexts.
type NoopLookup struct{}

// Lookup returns an empty context.
func (NoopLookup) Lookup(int) models.ProcessContext {
	return models.ProcessContext{}
}
