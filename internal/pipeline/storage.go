package pipeline

import (
	"context"
	"time"
)

// ObjectStore is the slice of the blob layer the stages need: whole-object
// writes and reads plus a latest-under-prefix lookup.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Latest(ctx context.Context, prefix string) (string, error)
}

// keyTimestamp formats t the way storage keys encode it.
func keyTimestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
