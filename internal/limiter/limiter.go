// Package limiter 限制單一 IP 建立 WebSocket 連線的頻率。
//
// 兩種實作：
//   - Local：單機，每個 key 一個 token bucket（golang.org/x/time/rate）
//   - Redis：多實例共享，Redis Sorted Set + Lua 滑動視窗
package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 限流器介面
type Limiter interface {
	// Allow 檢查 key 是否還能通過；出錯時由呼叫方決定是否放行
	Allow(ctx context.Context, key string) (bool, error)
}

// Local 單機限流器
type Local struct {
	perMinute int
	idleTTL   time.Duration
	buckets   map[string]*bucket
	mu        sync.Mutex
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal 建立單機限流器，每個 key 每分鐘最多 perMinute 次，允許一次用完
func NewLocal(perMinute int) *Local {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Local{
		perMinute: perMinute,
		idleTTL:   10 * time.Minute,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Allow 實作 Limiter
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// Prune 移除閒置超過 idleTTL 的 key，返回移除數量
func (l *Local) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len 追蹤中的 key 數量
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
