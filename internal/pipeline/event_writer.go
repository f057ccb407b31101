package pipeline

import "syswatch/pkg/models"

// EventWriter writes emitted records.
type EventWriter interface {
	WriteEvents(events []*models.Event) error
	Close() error
}
