// Package logger 提供結構化日誌功能
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey 用於上下文的鍵類型
type contextKey string

const (
	// SessionIDKey 遊戲連線 ID 的上下文鍵
	SessionIDKey contextKey = "session_id"
	// ConnIDKey 傳輸層連線 ID 的上下文鍵
	ConnIDKey contextKey = "conn_id"
)

// New 建立日誌記錄器
//
// output 可為 stdout、stderr 或檔案路徑；debug 級別會附帶源碼位置。
func New(level, format, output string) (*slog.Logger, error) {
	w, err := openOutput(output)
	if err != nil {
		return nil, err
	}
	return NewWithWriter(w, level, format), nil
}

// NewWithWriter 以指定 writer 建立日誌記錄器
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	logLevel := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(&contextHandler{Handler: handler})
}

func openOutput(path string) (io.Writer, error) {
	switch path {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		// #nosec G304 - 路徑來自配置檔
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	}
}

// ParseLevel 解析日誌級別
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler 從上下文中提取資訊的處理器
type contextHandler struct {
	slog.Handler
}

// Handle 處理日誌記錄
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sessionID, ok := ctx.Value(SessionIDKey).(int); ok && sessionID > 0 {
		r.AddAttrs(slog.Int("session_id", sessionID))
	}

	if connID, ok := ctx.Value(ConnIDKey).(string); ok && connID != "" {
		r.AddAttrs(slog.String("conn_id", connID))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs 保留上下文處理器包裝
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup 保留上下文處理器包裝
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithSessionID 添加遊戲連線 ID 到上下文
func WithSessionID(ctx context.Context, sessionID int) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithConnID 添加傳輸層連線 ID 到上下文
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ConnIDKey, connID)
}
