package eventredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"syswatch/pkg/models"
)

// Config configures the Redis event writer.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// MaxLen caps the list length after each push. Zero leaves it unbounded.
	MaxLen  int64
	Timeout time.Duration
}

// Writer pushes events onto a Redis list, oldest first, for list-based
// consumers that BLPOP from the head.
type Writer struct {
	client  *redis.Client
	key     string
	maxLen  int64
	timeout time.Duration
}

// NewWriter creates a Redis list writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Writer{
		client:  client,
		key:     cfg.Key,
		maxLen:  cfg.MaxLen,
		timeout: cfg.Timeout,
	}, nil
}

// WriteEvents pushes a batch of events in one round trip.
func (w *Writer) WriteEvents(events []*models.Event) error {
	payloads, err := encodePayloads(events)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	pipe := w.client.Pipeline()
	pipe.RPush(ctx, w.key, payloads...)
	if w.maxLen > 0 {
		pipe.LTrim(ctx, w.key, -w.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push events to redis list %s: %w", w.key, err)
	}
	return nil
}

// Close closes the client.
func (w *Writer) Close() error {
	if w == nil || w.client == nil {
		return nil
	}
	return w.client.Close()
}

func encodePayloads(events []*models.Event) ([]interface{}, error) {
	out := make([]interface{}, 0, len(events))
	for _, event := range events {
		if event == nil {
			continue
		}
		raw, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}
