package internal

import (
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-sea-battle/internal/battle"
	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// outbox 記錄機器人送出的入站訊息
type outbox struct {
	frames []protocol.Envelope
	ids    []int
	mu     sync.Mutex
}

func (o *outbox) dispatch(sessionID int, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = append(o.frames, env)
	o.ids = append(o.ids, sessionID)
}

func (o *outbox) types() []protocol.Type {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]protocol.Type, len(o.frames))
	for i, f := range o.frames {
		out[i] = f.Type
	}
	return out
}

func (o *outbox) first() (protocol.Envelope, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames[0], o.ids[0]
}

func newTestBot(delay time.Duration) (*Bot, *outbox) {
	out := &outbox{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	b := NewBot(delay, rand.New(rand.NewPCG(3, 4)), out.dispatch, logger)
	b.bind(7)
	return b, out
}

func encode(t *testing.T, typ protocol.Type, v any) []byte {
	t.Helper()
	frame, err := protocol.Encode(typ, v)
	require.NoError(t, err)
	return frame
}

// TestBot_PlacesFleetOnCreateGame 收到 create_game 立即佈陣
func TestBot_PlacesFleetOnCreateGame(t *testing.T) {
	b, out := newTestBot(time.Hour)

	require.NoError(t, b.Send(encode(t, protocol.TypeCreateGame, protocol.CreateGame{IDGame: 3, IDPlayer: 7})))

	require.Eventually(t, func() bool { return len(out.types()) == 1 }, time.Second, time.Millisecond)
	env, sessionID := out.first()
	assert.Equal(t, 7, sessionID)
	assert.Equal(t, protocol.TypeAddShips, env.Type)

	var req protocol.AddShipsRequest
	require.NoError(t, env.Unmarshal(&req))
	assert.Equal(t, 3, req.GameID)
	assert.Equal(t, 7, req.IndexPlayer)
	assert.Len(t, req.Ships, battle.FleetSize)
}

// TestBot_AttacksOnItsTurn 只在輪到自己時延遲攻擊
func TestBot_AttacksOnItsTurn(t *testing.T) {
	b, out := newTestBot(5 * time.Millisecond)
	require.NoError(t, b.Send(encode(t, protocol.TypeCreateGame, protocol.CreateGame{IDGame: 3, IDPlayer: 7})))
	require.Eventually(t, func() bool { return len(out.types()) == 1 }, time.Second, time.Millisecond)

	// 別人的回合與攻擊結果不處理
	require.NoError(t, b.Send(encode(t, protocol.TypeTurn, protocol.Turn{CurrentPlayer: 1})))
	require.NoError(t, b.Send(encode(t, protocol.TypeAttack, protocol.AttackResult{CurrentPlayer: 1, Status: battle.StatusMiss})))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, out.types(), 1)

	require.NoError(t, b.Send(encode(t, protocol.TypeTurn, protocol.Turn{CurrentPlayer: 7})))
	require.Eventually(t, func() bool { return len(out.types()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, protocol.TypeRandomAttack, out.types()[1])
}

// TestBot_CloseCancelsPendingAttack 關閉後排定的攻擊不再送出
func TestBot_CloseCancelsPendingAttack(t *testing.T) {
	b, out := newTestBot(20 * time.Millisecond)

	require.NoError(t, b.Send(encode(t, protocol.TypeTurn, protocol.Turn{CurrentPlayer: 7})))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, out.types())

	err := b.Send(encode(t, protocol.TypeTurn, protocol.Turn{CurrentPlayer: 7}))
	require.ErrorIs(t, err, apperrors.ErrConnClosed)
}

// TestBot_ClosesOnFinish 自己的對局結束時要求關閉，並取消排定的攻擊
func TestBot_ClosesOnFinish(t *testing.T) {
	tests := []struct {
		name   string
		winner int
	}{
		{name: "bot won", winner: 7},
		{name: "opponent won", winner: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, out := newTestBot(20 * time.Millisecond)

			// 對手的攻擊結果讓機器人認得對手
			require.NoError(t, b.Send(encode(t, protocol.TypeAttack, protocol.AttackResult{CurrentPlayer: 1, Status: battle.StatusMiss})))
			require.NoError(t, b.Send(encode(t, protocol.TypeTurn, protocol.Turn{CurrentPlayer: 7})))
			require.NoError(t, b.Send(encode(t, protocol.TypeFinish, protocol.Finish{WinPlayer: tt.winner})))

			require.Eventually(t, func() bool { return len(out.types()) == 1 }, time.Second, time.Millisecond)
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, []protocol.Type{protocol.TypeBotClose}, out.types())
		})
	}
}

// TestBot_ForeignFinishKeepsTurn 別人的對局結束不取消自己的攻擊
func TestBot_ForeignFinishKeepsTurn(t *testing.T) {
	b, out := newTestBot(20 * time.Millisecond)

	require.NoError(t, b.Send(encode(t, protocol.TypeAttack, protocol.AttackResult{CurrentPlayer: 1, Status: battle.StatusMiss})))
	require.NoError(t, b.Send(encode(t, protocol.TypeTurn, protocol.Turn{CurrentPlayer: 7})))
	require.NoError(t, b.Send(encode(t, protocol.TypeFinish, protocol.Finish{WinPlayer: 42})))

	require.Eventually(t, func() bool { return len(out.types()) == 2 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t, []protocol.Type{protocol.TypeBotClose, protocol.TypeRandomAttack}, out.types())
}
