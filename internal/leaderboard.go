package internal

import (
	"sync"

	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
)

// Leaderboard 勝場排行，依名稱累計，保留首次獲勝的順序
type Leaderboard struct {
	entries []protocol.Winner
	index   map[string]int // name -> entries 索引
	mu      sync.RWMutex
}

// NewLeaderboard 創建排行榜
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{index: make(map[string]int)}
}

// RecordWin 勝場加一，返回更新後的完整列表
func (l *Leaderboard) RecordWin(name string) []protocol.Winner {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.index[name]; ok {
		l.entries[i].Wins++
	} else {
		l.index[name] = len(l.entries)
		l.entries = append(l.entries, protocol.Winner{Name: name, Wins: 1})
	}
	return l.snapshotLocked()
}

// Snapshot 目前的排行
func (l *Leaderboard) Snapshot() []protocol.Winner {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Wins 單一玩家的勝場
func (l *Leaderboard) Wins(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i, ok := l.index[name]; ok {
		return l.entries[i].Wins
	}
	return 0
}

func (l *Leaderboard) snapshotLocked() []protocol.Winner {
	out := make([]protocol.Winner, len(l.entries))
	copy(out, l.entries)
	return out
}
