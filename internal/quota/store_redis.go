package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "quota:"

// allowScript performs the read-modify-write in one atomic step on the
// server: reset the counter when the stored day is not today, increment, and
// refresh the TTL so stale buckets expire on their own.
var allowScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'date')
local count
if stored == ARGV[1] then
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
else
	redis.call('HSET', KEYS[1], 'date', ARGV[1], 'count', 1)
	count = 1
end
redis.call('EXPIRE', KEYS[1], ARGV[2])
return count
`)

// RedisLedger is the production Ledger: atomic under concurrent submissions
// from the same source across all server instances, with passive expiry.
type RedisLedger struct {
	client redis.Scripter
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisLedger(client redis.Scripter) *RedisLedger {
	return &RedisLedger{
		client: client,
		// Two days covers the UTC-day reset window; after that the entry is
		// dead weight either way.
		ttl: 48 * time.Hour,
		now: time.Now,
	}
}

func (l *RedisLedger) Allow(ctx context.Context, bucket, source string, limit int) (bool, error) {
	today := l.now().UTC().Format("2006-01-02")
	key := redisKeyPrefix + Key(bucket, source)

	count, err := allowScript.Run(ctx, l.client, []string{key}, today, int(l.ttl.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("quota increment: %w", err)
	}
	return count <= limit, nil
}
