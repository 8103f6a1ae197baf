package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-sea-battle/internal/events"
	"github.com/koopa0/system-design/14-sea-battle/internal/testutils"
)

// TestSubject 測試主題組合
func TestSubject(t *testing.T) {
	assert.Equal(t, "seabattle.match.finished", events.Subject("seabattle", events.MatchFinished))
	assert.Equal(t, "winners.updated", events.Subject("", events.WinnersUpdated))
}

// TestNop 未配置時發布不做任何事
func TestNop(t *testing.T) {
	var p events.Publisher = events.Nop{}
	assert.NoError(t, p.Publish(context.Background(), events.MatchCreated, nil))
	assert.NoError(t, p.Close())
}

// TestNewNATSPublisher_Unreachable 連不上時返回錯誤
func TestNewNATSPublisher_Unreachable(t *testing.T) {
	cfg := events.DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"

	_, err := events.NewNATSPublisher(cfg, testutils.Logger())
	assert.Error(t, err)
}

// TestNATSPublisher_Publish 訂閱者收到完整事件
func TestNATSPublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := testutils.StartNATS(t)

	cfg := events.DefaultConfig()
	cfg.URL = url
	publisher, err := events.NewNATSPublisher(cfg, testutils.Logger())
	require.NoError(t, err)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("seabattle.>", received)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	data := events.FinishedPayload{MatchID: 3, WinnerID: 1, WinnerName: "alice", LoserID: 2}
	require.NoError(t, publisher.Publish(context.Background(), events.MatchFinished, data))

	select {
	case msg := <-received:
		assert.Equal(t, "seabattle.match.finished", msg.Subject)

		var ev struct {
			ID        string                 `json:"id"`
			Type      string                 `json:"type"`
			Timestamp time.Time              `json:"timestamp"`
			Data      events.FinishedPayload `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, events.MatchFinished, ev.Type)
		assert.False(t, ev.Timestamp.IsZero())
		assert.Equal(t, data, ev.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	require.NoError(t, publisher.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, publisher.Publish(ctx, events.MatchStarted, nil))
}
