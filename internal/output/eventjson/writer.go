package eventjson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"syswatch/internal/logger"
	"syswatch/pkg/models"
)

// Writer appends events to a JSON lines file, optionally echoing each line.
// The file is opened with O_APPEND so an external truncation between writes
// never leaves a hole or a partial line.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	echo    *json.Encoder
	mu      sync.Mutex
}

// NewWriter opens path for appending. A nil echo disables echoing.
func NewWriter(path string, echo io.Writer) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Event JSON writer initialized: %s", path)
	w := &Writer{file: f, encoder: newEncoder(f)}
	if echo != nil {
		w.echo = newEncoder(echo)
	}
	return w, nil
}

func newEncoder(out io.Writer) *json.Encoder {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return enc
}

// WriteEvents writes a batch of events, one line each.
func (w *Writer) WriteEvents(events []*models.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, event := range events {
		if err := w.encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		if w.echo != nil {
			if err := w.echo.Encode(event); err != nil {
				logger.Warnf("Failed to echo event: %v", err)
			}
		}
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
