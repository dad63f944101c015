// README: Sequential reference codes backed by a Redis counter.
package request

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const refSeqKey = "requests:refseq"

// RefCounter hands out the human-facing reference codes (CB-000042). The
// sequence lives in Redis so every instance of the service draws from the same
// counter.
type RefCounter struct {
	redis *redis.Client
}

func NewRefCounter(client *redis.Client) *RefCounter {
	return &RefCounter{redis: client}
}

func (c *RefCounter) NextReference(ctx context.Context) (string, error) {
	n, err := c.redis.Incr(ctx, refSeqKey).Result()
	if err != nil {
		return "", fmt.Errorf("reference sequence: %w", err)
	}
	return fmt.Sprintf("CB-%06d", n), nil
}
