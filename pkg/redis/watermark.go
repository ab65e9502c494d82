package redis

import (
	"context"
	"errors"
)

// Watermarks stores the encoded poll watermark of each table
type Watermarks struct {
	client    *Client
	keyPrefix string
}

// NewWatermarks creates a watermark store
func NewWatermarks(client *Client, keyPrefix string) *Watermarks {
	if keyPrefix == "" {
		keyPrefix = "fern:watermark:"
	}
	return &Watermarks{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the watermark of a table, or "" when none is stored
func (w *Watermarks) Get(ctx context.Context, table string) (string, error) {
	value, err := w.client.Get(ctx, w.keyPrefix+table)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}

// Set stores the watermark of a table
func (w *Watermarks) Set(ctx context.Context, table, watermark string) error {
	return w.client.Set(ctx, w.keyPrefix+table, watermark, 0)
}
