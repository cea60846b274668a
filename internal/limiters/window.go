package limiters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementWindow bumps key and starts its expiry on the first hit of a window.
// unavailable wraps any Redis failure so callers can tell backend errors from throttling.
func incrementWindow(ctx context.Context, rdb redis.UniversalClient, key string, window time.Duration, unavailable error) (int64, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", unavailable, err)
	}

	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", unavailable, err)
		}
	}

	return count, nil
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
