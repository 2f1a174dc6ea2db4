package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Nop is used when no Redis URL is configured. Counters never grow, so rate
// limiting always passes.
type Nop struct{}

func (Nop) Ping(_ context.Context) error { return nil }

func (Nop) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}

func (Nop) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

var _ Cache = Nop{}
