package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis 分散式滑動視窗限流器
//
// 每個 key 一個 Sorted Set：score 為請求時間（毫秒），member 為請求 ID。
// 所有實例共用同一個視窗，連線數限制才不會隨實例數放大。
type Redis struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	script *redis.Script
}

// KEYS[1]: Sorted Set 的 key
// ARGV[1]: 視窗大小（毫秒）
// ARGV[2]: 限制數量
// ARGV[3]: 當前時間（毫秒）
// ARGV[4]: 請求 ID
var slidingWindowScript = `
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local request_id = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, request_id)
    redis.call('PEXPIRE', key, window + 60000)
    return 1
end
return 0
`

// NewRedis 建立分散式限流器
func NewRedis(client *redis.Client, prefix string, limit int64, window time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		script: redis.NewScript(slidingWindowScript),
	}
}

// Allow 實作 Limiter
//
// Redis 出錯時返回 (true, err)：可用性優先於精確限流。
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	result, err := r.script.Run(
		ctx,
		r.client,
		[]string{r.prefix + key},
		r.window.Milliseconds(),
		r.limit,
		time.Now().UnixMilli(),
		uuid.NewString(),
	).Int()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	return result == 1, nil
}
