package internal

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/koopa0/system-design/14-sea-battle/internal/battle"
	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// dispatchFunc 將一則入站訊息送進協調器
type dispatchFunc func(sessionID int, raw []byte)

// Bot 自動對手
//
// 與真人連線實作同一個 Conn 介面：收到出站訊息後，
// 以入站訊息回應，走和真人完全相同的分派路徑。
//
//   - create_game：立即以隨機模板佈陣
//   - turn（輪到自己）：延遲 delay 後隨機攻擊
//   - finish：要求關閉；是自己的對局才取消排定的攻擊
//
// Send 由協調器迴圈呼叫，回應必須非同步送出，否則會卡住迴圈自己。
type Bot struct {
	sessionID int
	gameID    int
	opponent  int
	delay     time.Duration
	rng       *rand.Rand
	dispatch  dispatchFunc
	timer     *time.Timer
	closed    bool
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewBot 創建機器人
func NewBot(delay time.Duration, rng *rand.Rand, dispatch dispatchFunc, logger *slog.Logger) *Bot {
	return &Bot{
		delay:    delay,
		rng:      rng,
		dispatch: dispatch,
		logger:   logger,
	}
}

// bind 註冊完成後綁定連線 ID
func (b *Bot) bind(sessionID int) {
	b.mu.Lock()
	b.sessionID = sessionID
	b.mu.Unlock()
}

// Send 實作 Conn
func (b *Bot) Send(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return apperrors.ErrConnClosed
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}

	switch env.Type {
	case protocol.TypeCreateGame:
		var game protocol.CreateGame
		if err := env.Unmarshal(&game); err != nil {
			return err
		}
		b.gameID = game.IDGame
		b.opponent = 0
		b.emit(protocol.TypeAddShips, protocol.AddShipsRequest{
			GameID:      game.IDGame,
			IndexPlayer: b.sessionID,
			Ships:       battle.RandomFleet(b.rng),
		})

	case protocol.TypeTurn:
		var turn protocol.Turn
		if err := env.Unmarshal(&turn); err != nil {
			return err
		}
		if turn.CurrentPlayer == b.sessionID {
			b.scheduleAttack()
		}

	case protocol.TypeAttack:
		// 攻擊結果只發給對局雙方，藉此認得對手
		var result protocol.AttackResult
		if err := env.Unmarshal(&result); err != nil {
			return err
		}
		if result.CurrentPlayer != b.sessionID {
			b.opponent = result.CurrentPlayer
		}

	case protocol.TypeFinish:
		// finish 廣播給所有人，別人的對局結束不影響自己的回合
		var finish protocol.Finish
		if err := env.Unmarshal(&finish); err != nil {
			return err
		}
		if finish.WinPlayer == b.sessionID || (b.opponent != 0 && finish.WinPlayer == b.opponent) {
			b.stopTimer()
		}
		b.emit(protocol.TypeBotClose, protocol.EmptyRequest{})
	}
	return nil
}

// scheduleAttack 延遲後送出隨機攻擊
//
// 觸發時若對局已結束或機器人已被移除，協調器會把這則訊息當作無效動作丟棄。
func (b *Bot) scheduleAttack() {
	b.stopTimer()

	frame, err := protocol.Encode(protocol.TypeRandomAttack, protocol.RandomAttackRequest{
		GameID:      b.gameID,
		IndexPlayer: b.sessionID,
	})
	if err != nil {
		b.logger.Error("編碼攻擊訊息失敗", "error", err)
		return
	}

	sessionID := b.sessionID
	b.timer = time.AfterFunc(b.delay, func() {
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return
		}
		b.dispatch(sessionID, frame)
	})
}

func (b *Bot) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// emit 非同步送出入站訊息
func (b *Bot) emit(t protocol.Type, payload any) {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		b.logger.Error("編碼機器人訊息失敗", "type", t, "error", err)
		return
	}
	go b.dispatch(b.sessionID, frame)
}

// Close 實作 Conn，取消尚未觸發的攻擊
func (b *Bot) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.stopTimer()
	return nil
}
