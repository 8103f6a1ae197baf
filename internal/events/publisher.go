// Package events 將對局事件發布到 NATS，供外部服務（統計、通知）訂閱。
//
// 主題格式：<prefix>.<事件名稱>，例如 seabattle.match.finished。
// 發布採 fire-and-forget：失敗只記錄，不影響對局流程。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// 事件名稱
const (
	MatchCreated   = "match.created"
	MatchStarted   = "match.started"
	MatchFinished  = "match.finished"
	WinnersUpdated = "winners.updated"
)

// Event 發布到 NATS 的事件
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Publisher 事件發布介面
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

// Config NATS 連線設定
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
}

// DefaultConfig 返回默認配置
func DefaultConfig() *Config {
	return &Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "seabattle",
		Name:          "sea-battle",
	}
}

// NATSPublisher 以 core NATS 發布事件
//
// 不使用 JetStream：對局狀態只存在記憶體，事件只是通知，不需要持久化。
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher 連接 NATS
func NewNATSPublisher(cfg *Config, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連線中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重新連線", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	return &NATSPublisher{
		conn:   conn,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}, nil
}

// Subject 事件對應的主題
func (p *NATSPublisher) Subject(eventType string) string {
	return Subject(p.prefix, eventType)
}

// Publish 發布事件
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}

	if err := p.conn.Publish(p.Subject(eventType), payload); err != nil {
		return fmt.Errorf("發布事件失敗: %w", err)
	}
	return nil
}

// Close 送出緩衝中的訊息後關閉連線
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Subject 組合主題名稱
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Nop 未配置 NATS 時使用
type Nop struct{}

// Publish 丟棄事件
func (Nop) Publish(context.Context, string, any) error { return nil }

// Close 無資源需要釋放
func (Nop) Close() error { return nil }
