package internal_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-sea-battle/internal/battle"
	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
)

// finishedFor 回報是否收到由指定玩家之一獲勝的 finish，其他對局的廣播不算
func finishedFor(rec *recorder, players ...int) bool {
	for _, env := range rec.ofType(protocol.TypeFinish) {
		var finish protocol.Finish
		if env.Unmarshal(&finish) != nil {
			continue
		}
		for _, p := range players {
			if p == finish.WinPlayer {
				return true
			}
		}
	}
	return false
}

// attackersOf 從攻擊結果中找出 self 以外的攻擊者
func attackersOf(rec *recorder, self int) []int {
	var out []int
	for _, env := range rec.ofType(protocol.TypeAttack) {
		var result protocol.AttackResult
		if env.Unmarshal(&result) == nil && result.CurrentPlayer != self {
			out = append(out, result.CurrentPlayer)
		}
	}
	return out
}

// playOut 持續由回合持有者隨機攻擊，直到本場對局結束
func playOut(h *harness, matchID int, rec *recorder, players ...int) bool {
	for i := 0; i < 400; i++ {
		if finishedFor(rec, players...) {
			return true
		}
		env, ok := rec.last(protocol.TypeTurn)
		if !ok {
			return false
		}
		var turn protocol.Turn
		if err := env.Unmarshal(&turn); err != nil {
			return false
		}
		for _, p := range players {
			if p == turn.CurrentPlayer {
				h.send(p, protocol.TypeRandomAttack, protocol.RandomAttackRequest{GameID: matchID, IndexPlayer: p})
			}
		}
	}
	return finishedFor(rec, players...)
}

// TestStress_ConcurrentMatches 測試多場對局並發進行
func TestStress_ConcurrentMatches(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	h := newHarness(t)

	const numMatches = 40

	var (
		wg        sync.WaitGroup
		finished  int32
		abandoned int32
	)

	start := time.Now()

	for i := 0; i < numMatches; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			a, recA := h.connect(fmt.Sprintf("host_%d", n))
			b, _ := h.connect(fmt.Sprintf("guest_%d", n))
			matchID := h.pair(a, recA, b)

			for _, id := range []int{a, b} {
				h.send(id, protocol.TypeAddShips, protocol.AddShipsRequest{
					GameID:      matchID,
					IndexPlayer: id,
					Ships:       battle.Templates()[n%len(battle.Templates())],
				})
			}

			if playOut(h, matchID, recA, a, b) {
				atomic.AddInt32(&finished, 1)
			} else {
				atomic.AddInt32(&abandoned, 1)
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	t.Logf("並發對局壓力測試結果:")
	t.Logf("  對局數: %d", numMatches)
	t.Logf("  完成: %d", finished)
	t.Logf("  未完成: %d", abandoned)
	t.Logf("  耗時: %v", duration)

	assert.Equal(t, int32(numMatches), finished)

	stats := h.c.Stats()
	assert.Equal(t, numMatches, stats.Matches["finished"])
	assert.Equal(t, numMatches, stats.Winners)
	assert.Zero(t, stats.Rooms)

	total := 0
	for _, w := range h.c.Leaderboard() {
		total += w.Wins
	}
	assert.Equal(t, numMatches, total)
}

// TestStress_ConcurrentSinglePlay 測試多位玩家同時與機器人對戰
func TestStress_ConcurrentSinglePlay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	h := newHarness(t)

	const numPlayers = 20

	var (
		wg       sync.WaitGroup
		finished int32
	)
	for i := 0; i < numPlayers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			id, rec := h.connect(fmt.Sprintf("solo_%d", n))
			h.send(id, protocol.TypeSinglePlay, protocol.EmptyRequest{})

			env, ok := rec.last(protocol.TypeCreateGame)
			if !ok {
				return
			}
			var game protocol.CreateGame
			if err := env.Unmarshal(&game); err != nil {
				return
			}
			h.send(id, protocol.TypeAddShips, protocol.AddShipsRequest{GameID: game.IDGame, IndexPlayer: id, Ships: fleet()})

			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				// 機器人贏之前必定攻擊過，其編號可從攻擊結果取得
				if finishedFor(rec, append(attackersOf(rec, id), id)...) {
					atomic.AddInt32(&finished, 1)
					return
				}
				if env, ok := rec.last(protocol.TypeTurn); ok {
					var turn protocol.Turn
					if env.Unmarshal(&turn) == nil && turn.CurrentPlayer == id {
						h.send(id, protocol.TypeRandomAttack, protocol.RandomAttackRequest{GameID: game.IDGame, IndexPlayer: id})
						continue
					}
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(numPlayers), finished)

	// 對局結束後機器人自行離開
	require.Eventually(t, func() bool {
		stats := h.c.Stats()
		return stats.Matches["finished"] == numPlayers && stats.Sessions == numPlayers
	}, 10*time.Second, 10*time.Millisecond)
}
