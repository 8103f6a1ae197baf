package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服務器配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Game      GameConfig      `yaml:"game"`
	Limits    LimitsConfig    `yaml:"limits"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP 服務器配置
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// WebSocketConfig 連線與心跳配置
type WebSocketConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// GameConfig 遊戲配置
type GameConfig struct {
	BotName                string        `yaml:"bot_name"`
	BotTurnDelay           time.Duration `yaml:"bot_turn_delay"`
	InboxSize              int           `yaml:"inbox_size"`
	FinishedMatchRetention time.Duration `yaml:"finished_match_retention"`
	SweepInterval          time.Duration `yaml:"sweep_interval"`
}

// LimitsConfig 限流配置
type LimitsConfig struct {
	MessagesPerSecond    float64 `yaml:"messages_per_second"`
	MessageBurst         int     `yaml:"message_burst"`
	ConnectionsPerMinute int     `yaml:"connections_per_minute"`
	RedisAddr            string  `yaml:"redis_addr"`
}

// EventsConfig 事件發布配置；NATSURL 為空時不發布
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig 日誌配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig 返回默認配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval:   54 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			SendBuffer:     256,
			MaxMessageSize: 8192,
		},
		Game: GameConfig{
			BotName:                "bot",
			BotTurnDelay:           500 * time.Millisecond,
			InboxSize:              1024,
			FinishedMatchRetention: 10 * time.Minute,
			SweepInterval:          time.Minute,
		},
		Limits: LimitsConfig{
			MessagesPerSecond:    20,
			MessageBurst:         40,
			ConnectionsPerMinute: 60,
		},
		Events: EventsConfig{
			SubjectPrefix: "seabattle",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// LoadConfig 從 YAML 檔案載入配置，未設定的欄位保留默認值
//
// path 為空時只使用默認值與環境變數。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置檔失敗: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 環境變數覆蓋
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("無效的 PORT: %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Limits.RedisAddr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate 驗證配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("端口必須在 1-65535 之間: %d", c.Server.Port)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer 必須大於 0")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PongWait <= 0 || c.WebSocket.WriteWait <= 0 {
		return fmt.Errorf("心跳時間必須大於 0")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("ping_interval (%s) 必須小於 pong_wait (%s)", c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	if c.Game.BotTurnDelay <= 0 {
		return fmt.Errorf("bot_turn_delay 必須大於 0")
	}
	if c.Game.InboxSize <= 0 {
		return fmt.Errorf("inbox_size 必須大於 0")
	}
	if c.Game.BotName == "" {
		return fmt.Errorf("bot_name 不能為空")
	}
	if c.Limits.MessagesPerSecond <= 0 || c.Limits.MessageBurst <= 0 {
		return fmt.Errorf("訊息限流參數必須大於 0")
	}
	if c.Limits.ConnectionsPerMinute <= 0 {
		return fmt.Errorf("connections_per_minute 必須大於 0")
	}
	return nil
}
