package internal

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/koopa0/system-design/14-sea-battle/internal/battle"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// MatchState 對局狀態
type MatchState int

const (
	StateAwaitingFleets MatchState = iota // 等待雙方佈陣
	StateInProgress                       // 交戰中
	StateFinished                         // 已結束（終態）
)

func (s MatchState) String() string {
	switch s {
	case StateAwaitingFleets:
		return "awaiting_fleets"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// player 對局中單方的狀態
type player struct {
	Participant
	fleet     battle.Fleet
	grid      battle.Grid // 本方棋盤上已被判定的格子
	shipsSunk int         // 本方擊沉對手的船數
}

// Match 一場對局
type Match struct {
	ID         int
	State      MatchState
	TurnHolder int // 0 表示尚無
	CreatedAt  time.Time
	FinishedAt time.Time

	players [2]*player
}

// PlayerView 對外可見的單方狀態
type PlayerView struct {
	SessionID int
	Name      string
	Fleet     battle.Fleet
	ShipsSunk int
}

// MatchView 對局快照
type MatchView struct {
	ID         int
	State      MatchState
	TurnHolder int
	Players    [2]PlayerView
}

// AttackReport 一次攻擊的結果
//
// Outcomes 為空表示重複攻擊同一格，狀態沒有任何改變。
type AttackReport struct {
	MatchID    int
	Attacker   Participant
	Defender   Participant
	Outcomes   []battle.Outcome
	TurnHolder int
	Finished   bool
}

// MatchEngine 對局狀態機
//
// 狀態轉換：
//
//	AwaitingFleets --雙方佈陣完成--> InProgress --擊沉 10 艘--> Finished
//
// 所有修改都由協調器的單一寫入迴圈呼叫；鎖只保護 HTTP 統計讀取。
type MatchEngine struct {
	matches map[int]*Match
	nextID  int
	rng     *rand.Rand
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewMatchEngine 創建對局引擎
func NewMatchEngine(rng *rand.Rand, logger *slog.Logger) *MatchEngine {
	return &MatchEngine{
		matches: make(map[int]*Match),
		rng:     rng,
		logger:  logger,
	}
}

// Create 為一組配對建立對局，對局 ID 獨立分配
func (e *MatchEngine) Create(a, b Participant) MatchView {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	m := &Match{
		ID:        e.nextID,
		State:     StateAwaitingFleets,
		CreatedAt: time.Now(),
		players:   [2]*player{{Participant: a}, {Participant: b}},
	}
	e.matches[m.ID] = m

	e.logger.Info("對局已建立",
		"match_id", m.ID,
		"player_a", a.SessionID,
		"player_b", b.SessionID)

	return m.view()
}

// SubmitFleet 提交艦隊
//
// 雙方都提交後對局開始，回合交給觸發開始的這一方。
// started 為 true 表示這次提交讓對局進入 InProgress。
func (e *MatchEngine) SubmitFleet(matchID, sessionID int, fleet battle.Fleet) (view MatchView, started bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.lookup(matchID)
	if err != nil {
		return MatchView{}, false, err
	}

	switch m.State {
	case StateFinished:
		return MatchView{}, false, apperrors.ErrMatchFinished
	case StateInProgress:
		return MatchView{}, false, apperrors.ErrFleetPlaced
	}

	self, _, err := m.sides(sessionID)
	if err != nil {
		return MatchView{}, false, err
	}
	if len(fleet) == 0 {
		return MatchView{}, false, apperrors.ErrInvalidPayload.WithDetails("empty fleet")
	}
	self.fleet = fleet.Clone()

	if len(m.players[0].fleet) == 0 || len(m.players[1].fleet) == 0 {
		return m.view(), false, nil
	}

	m.State = StateInProgress
	m.TurnHolder = sessionID

	e.logger.Info("對局開始", "match_id", m.ID, "first_turn", sessionID)
	return m.view(), true, nil
}

// Attack 對指定格攻擊
//
// 非回合方、未開始或已結束的對局一律拒絕且不改變狀態。
func (e *MatchEngine) Attack(matchID, sessionID int, target battle.Position) (AttackReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, self, enemy, err := e.prepareAttack(matchID, sessionID)
	if err != nil {
		return AttackReport{}, err
	}
	return e.resolve(m, self, enemy, target), nil
}

// RandomAttack 均勻隨機挑選對手棋盤上尚未判定的一格攻擊
func (e *MatchEngine) RandomAttack(matchID, sessionID int) (AttackReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, self, enemy, err := e.prepareAttack(matchID, sessionID)
	if err != nil {
		return AttackReport{}, err
	}

	target, ok := enemy.grid.RandomFree(e.rng)
	if !ok {
		return AttackReport{MatchID: m.ID, Attacker: self.Participant, Defender: enemy.Participant, TurnHolder: m.TurnHolder}, nil
	}
	return e.resolve(m, self, enemy, target), nil
}

func (e *MatchEngine) prepareAttack(matchID, sessionID int) (*Match, *player, *player, error) {
	m, err := e.lookup(matchID)
	if err != nil {
		return nil, nil, nil, err
	}

	switch m.State {
	case StateAwaitingFleets:
		return nil, nil, nil, apperrors.ErrMatchNotStarted
	case StateFinished:
		return nil, nil, nil, apperrors.ErrMatchFinished
	}

	self, enemy, err := m.sides(sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if m.TurnHolder != sessionID {
		return nil, nil, nil, apperrors.ErrNotYourTurn
	}
	return m, self, enemy, nil
}

// resolve 判定並套用攻擊結果，決定下一回合或結束對局
func (e *MatchEngine) resolve(m *Match, self, enemy *player, target battle.Position) AttackReport {
	report := AttackReport{
		MatchID:    m.ID,
		Attacker:   self.Participant,
		Defender:   enemy.Participant,
		TurnHolder: m.TurnHolder,
	}

	outcomes := battle.Resolve(target, enemy.fleet, &enemy.grid)
	if len(outcomes) == 0 {
		return report
	}
	enemy.grid.Apply(outcomes)
	report.Outcomes = outcomes

	if battle.Sunk(outcomes) {
		self.shipsSunk++
	}

	if self.shipsSunk >= battle.FleetSize {
		m.State = StateFinished
		m.FinishedAt = time.Now()
		report.Finished = true

		e.logger.Info("對局結束", "match_id", m.ID, "winner", self.SessionID)
		return report
	}

	if !battle.Successful(outcomes) {
		m.TurnHolder = enemy.SessionID
	}
	report.TurnHolder = m.TurnHolder
	return report
}

// Get 對局快照
func (e *MatchEngine) Get(matchID int) (MatchView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.lookup(matchID)
	if err != nil {
		return MatchView{}, err
	}
	return m.view(), nil
}

// UnfinishedFor 該連線參與且尚未結束的對局
func (e *MatchEngine) UnfinishedFor(sessionID int) []MatchView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var views []MatchView
	for _, m := range e.matches {
		if m.State == StateFinished {
			continue
		}
		if _, _, err := m.sides(sessionID); err == nil {
			views = append(views, m.view())
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Sweep 移除結束超過 retention 的對局，返回移除數量
func (e *MatchEngine) Sweep(now time.Time, retention time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for id, m := range e.matches {
		if m.State == StateFinished && now.Sub(m.FinishedAt) > retention {
			delete(e.matches, id)
			removed++
		}
	}
	return removed
}

// Stats 各狀態的對局數量
func (e *MatchEngine) Stats() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := map[string]int{
		StateAwaitingFleets.String(): 0,
		StateInProgress.String():     0,
		StateFinished.String():       0,
	}
	for _, m := range e.matches {
		stats[m.State.String()]++
	}
	return stats
}

func (e *MatchEngine) lookup(matchID int) (*Match, error) {
	m, ok := e.matches[matchID]
	if !ok {
		return nil, apperrors.ErrMatchNotFound.WithDetails(fmt.Sprintf("match_id=%d", matchID))
	}
	return m, nil
}

// sides 返回 (自己, 對手)
func (m *Match) sides(sessionID int) (*player, *player, error) {
	switch sessionID {
	case m.players[0].SessionID:
		return m.players[0], m.players[1], nil
	case m.players[1].SessionID:
		return m.players[1], m.players[0], nil
	default:
		return nil, nil, apperrors.ErrNotParticipant
	}
}

func (m *Match) view() MatchView {
	v := MatchView{ID: m.ID, State: m.State, TurnHolder: m.TurnHolder}
	for i, p := range m.players {
		v.Players[i] = PlayerView{
			SessionID: p.SessionID,
			Name:      p.Name,
			Fleet:     p.fleet.Clone(),
			ShipsSunk: p.shipsSunk,
		}
	}
	return v
}
