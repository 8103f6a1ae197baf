package limiter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Middleware 依客戶端 IP 限制請求
//
// 限流器出錯時記錄並放行。
func Middleware(l Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 100*time.Millisecond)
			defer cancel()

			key := "ip:" + ClientIP(r)
			allowed, err := l.Allow(ctx, key)
			if err != nil {
				logger.Warn("限流器錯誤，放行請求", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logger.Warn("連線過於頻繁", "key", key)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many connections"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP 取出請求來源 IP（不含埠）
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
