// README: Redis-backed dedupe for assignment notifications.
package interest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"camionback/internal/types"
)

// TTL for assignment marks (requests resolve well within 7 days).
const assignMarkTTL = 7 * 24 * time.Hour

// AssignMarks records, across service instances, that a request's assignment
// notification has gone out. Losing a mark only risks a duplicate message.
type AssignMarks struct {
	redis *redis.Client
}

func NewAssignMarks(client *redis.Client) *AssignMarks {
	return &AssignMarks{redis: client}
}

// FirstAssign reports whether this caller is the first to mark the request
// assigned. On Redis errors it answers true: better a duplicate notification
// than none.
func (m *AssignMarks) FirstAssign(ctx context.Context, requestID types.ID) bool {
	ok, err := m.redis.SetNX(ctx, assignMarkKey(requestID), "1", assignMarkTTL).Result()
	if err != nil {
		return true
	}
	return ok
}

func assignMarkKey(requestID types.ID) string {
	return fmt.Sprintf("assign:request:%s:notified", string(requestID))
}
