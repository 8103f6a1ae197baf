package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-sea-battle/internal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadConfig 測試 YAML 載入與默認值
func TestLoadConfig(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_ADDR", "NATS_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	tests := []struct {
		name     string
		content  string
		wantErr  bool
		validate func(t *testing.T, cfg *internal.Config)
	}{
		{
			name:    "partial file keeps defaults",
			content: "server:\n  port: 4000\ngame:\n  bot_turn_delay: 250ms\n",
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 4000, cfg.Server.Port)
				assert.Equal(t, 250*time.Millisecond, cfg.Game.BotTurnDelay)
				assert.Equal(t, "bot", cfg.Game.BotName)
				assert.Equal(t, 54*time.Second, cfg.WebSocket.PingInterval)
			},
		},
		{
			name:    "events and limits",
			content: "events:\n  nats_url: nats://localhost:4222\n  subject_prefix: games\nlimits:\n  redis_addr: localhost:6379\n  connections_per_minute: 5\n",
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
				assert.Equal(t, "games", cfg.Events.SubjectPrefix)
				assert.Equal(t, "localhost:6379", cfg.Limits.RedisAddr)
				assert.Equal(t, 5, cfg.Limits.ConnectionsPerMinute)
			},
		},
		{
			name:    "invalid yaml",
			content: "server: [",
			wantErr: true,
		},
		{
			name:    "ping slower than pong wait",
			content: "websocket:\n  ping_interval: 90s\n  pong_wait: 60s\n",
			wantErr: true,
		},
		{
			name:    "zero bot delay",
			content: "game:\n  bot_turn_delay: 0s\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := internal.LoadConfig(writeConfig(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

// TestLoadConfig_Env 環境變數覆蓋配置檔
func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := internal.LoadConfig(writeConfig(t, "server:\n  port: 4000\n"))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Limits.RedisAddr)
	assert.Equal(t, "nats://nats:4222", cfg.Events.NATSURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoadConfig_Errors 測試錯誤情況
func TestLoadConfig_Errors(t *testing.T) {
	_, err := internal.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("PORT", "abc")
	_, err = internal.LoadConfig("")
	assert.Error(t, err)
}

// TestDefaultConfig 默認配置必須通過驗證
func TestDefaultConfig(t *testing.T) {
	cfg := internal.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.BotTurnDelay)
	assert.Empty(t, cfg.Events.NATSURL)
}
