package pipeline

import (
	"errors"

	"syswatch/pkg/models"
)

// MultiWriter fans a batch out to every writer. A failing writer does not
// keep the others from receiving the batch.
type MultiWriter []EventWriter

// WriteEvents writes to all writers and joins their errors.
func (m MultiWriter) WriteEvents(events []*models.Event) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteEvents(events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all writers and joins their errors.
func (m MultiWriter) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
