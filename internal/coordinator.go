package internal

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/koopa0/system-design/14-sea-battle/internal/battle"
	"github.com/koopa0/system-design/14-sea-battle/internal/events"
	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
	"github.com/koopa0/system-design/14-sea-battle/pkg/logger"
)

// 系統設計問題：
//   兩位玩家同時送出攻擊，如何保證回合判定不出現競態？
//
// 設計方案：
//   單一寫入者。所有連線（包括機器人）的入站訊息都進入同一個 inbox，
//   由一個 goroutine 依序處理；每則訊息連同它產生的所有出站訊息處理完，
//   才處理下一則。機器人的延遲攻擊只是稍後到達的另一則入站訊息。

type eventKind int

const (
	eventConnect eventKind = iota
	eventMessage
	eventDisconnect
	eventSweep
)

type event struct {
	kind      eventKind
	sessionID int
	conn      Conn
	raw       []byte
	reply     chan int // 處理完成後回傳連線 ID
}

type handlerFunc func(sessionID int, env protocol.Envelope) error

// Stats 服務統計
type Stats struct {
	Sessions   int            `json:"sessions"`
	Registered int            `json:"registered"`
	Rooms      int            `json:"rooms"`
	Matches    map[string]int `json:"matches"`
	Winners    int            `json:"winners"`
}

// Coordinator 會話協調器
type Coordinator struct {
	cfg         GameConfig
	registry    *Registry
	rooms       *RoomManager
	matches     *MatchEngine
	leaderboard *Leaderboard
	publisher   events.Publisher
	handlers    map[protocol.Type]handlerFunc
	rng         *rand.Rand // 只在迴圈內使用
	logger      *slog.Logger

	inbox    chan event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCoordinator 創建協調器並啟動處理迴圈
func NewCoordinator(cfg GameConfig, publisher events.Publisher, rng *rand.Rand, logger *slog.Logger) *Coordinator {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	c := &Coordinator{
		cfg:         cfg,
		registry:    NewRegistry(logger.With("component", "registry"), cfg.BotName),
		rooms:       NewRoomManager(logger.With("component", "rooms")),
		matches:     NewMatchEngine(rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())), logger.With("component", "matches")),
		leaderboard: NewLeaderboard(),
		publisher:   publisher,
		rng:         rng,
		logger:      logger.With("component", "coordinator"),
		inbox:       make(chan event, cfg.InboxSize),
		stopCh:      make(chan struct{}),
	}

	c.handlers = map[protocol.Type]handlerFunc{
		protocol.TypeRegister:      c.handleRegister,
		protocol.TypeCreateRoom:    c.handleCreateRoom,
		protocol.TypeAddUserToRoom: c.handleAddUserToRoom,
		protocol.TypeAddShips:      c.handleAddShips,
		protocol.TypeAttack:        c.handleAttack,
		protocol.TypeRandomAttack:  c.handleRandomAttack,
		protocol.TypeSinglePlay:    c.handleSinglePlay,
		protocol.TypeBotClose:      c.handleBotClose,
	}

	c.wg.Add(1)
	go c.loop()

	if cfg.SweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}

	return c
}

// Connect 新連線加入，返回連線 ID；協調器已停止時返回 ErrConnClosed
func (c *Coordinator) Connect(conn Conn) (int, error) {
	reply := make(chan int, 1)
	if !c.post(event{kind: eventConnect, conn: conn, reply: reply}) {
		return 0, apperrors.ErrConnClosed
	}
	select {
	case id := <-reply:
		return id, nil
	case <-c.stopCh:
		return 0, apperrors.ErrConnClosed
	}
}

// Deliver 投遞一則入站訊息，處理完成後返回
func (c *Coordinator) Deliver(sessionID int, raw []byte) {
	c.postAndWait(event{kind: eventMessage, sessionID: sessionID, raw: raw})
}

// Disconnect 連線斷開
func (c *Coordinator) Disconnect(sessionID int) {
	c.postAndWait(event{kind: eventDisconnect, sessionID: sessionID})
}

func (c *Coordinator) postAndWait(ev event) {
	ev.reply = make(chan int, 1)
	if !c.post(ev) {
		return
	}
	select {
	case <-ev.reply:
	case <-c.stopCh:
	}
}

func (c *Coordinator) post(ev event) bool {
	select {
	case <-c.stopCh:
		return false
	default:
	}

	select {
	case c.inbox <- ev:
		return true
	case <-c.stopCh:
		return false
	}
}

// Stop 停止協調器並關閉所有機器人
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()

	for _, id := range c.registry.Registered() {
		if s, ok := c.registry.Get(id); ok && s.IsBot {
			if conn, ok := c.registry.Remove(id); ok {
				_ = conn.Close()
			}
		}
	}

	if err := c.publisher.Close(); err != nil {
		c.logger.Warn("關閉事件發布器失敗", "error", err)
	}
	c.logger.Info("協調器已停止")
}

// Leaderboard 排行榜快照
func (c *Coordinator) Leaderboard() []protocol.Winner {
	return c.leaderboard.Snapshot()
}

// Wins 單一玩家的勝場
func (c *Coordinator) Wins(name string) int {
	return c.leaderboard.Wins(name)
}

// Stats 統計資訊
func (c *Coordinator) Stats() Stats {
	total, registered := c.registry.Counts()
	return Stats{
		Sessions:   total,
		Registered: registered,
		Rooms:      c.rooms.Count(),
		Matches:    c.matches.Stats(),
		Winners:    len(c.leaderboard.Snapshot()),
	}
}

// loop 單一寫入迴圈
func (c *Coordinator) loop() {
	defer c.wg.Done()

	for {
		select {
		case ev := <-c.inbox:
			c.handle(ev)
		case <-c.stopCh:
			return
		}
	}
}

// sweepLoop 定期清理已結束的對局
func (c *Coordinator) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.post(event{kind: eventSweep})
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) handle(ev event) {
	switch ev.kind {
	case eventConnect:
		id := c.registry.Add(ev.conn)
		c.logger.Info("新連線", "session_id", id)
		ev.reply <- id
		return
	case eventMessage:
		c.dispatch(ev.sessionID, ev.raw)
	case eventDisconnect:
		c.disconnect(ev.sessionID)
	case eventSweep:
		if n := c.matches.Sweep(time.Now(), c.cfg.FinishedMatchRetention); n > 0 {
			c.logger.Info("已清理結束的對局", "count", n)
		}
	}

	if ev.reply != nil {
		ev.reply <- ev.sessionID
	}
}

// dispatch 解析並分派一則入站訊息
//
// 錯誤處理策略：
//   - 格式錯誤：記錄後丟棄，不回應
//   - 當前狀態不允許的動作：靜默忽略（只記 debug）
//   - 重名註冊：由 handleRegister 回傳錯誤 payload
func (c *Coordinator) dispatch(sessionID int, raw []byte) {
	ctx := logger.WithSessionID(context.Background(), sessionID)

	if _, ok := c.registry.Get(sessionID); !ok {
		c.logger.DebugContext(ctx, "連線不存在，丟棄訊息")
		return
	}

	env, err := protocol.Decode(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "無法解析訊息", "error", err)
		return
	}
	c.logger.DebugContext(ctx, "收到訊息", "type", env.Type)

	handler, ok := c.handlers[env.Type]
	if !ok {
		c.logger.DebugContext(ctx, "未知的訊息類型", "type", env.Type)
		return
	}

	if err := handler(sessionID, env); err != nil {
		if apperrors.IsInvalidInput(err) {
			c.logger.WarnContext(ctx, "無效的訊息內容", "type", env.Type, "error", err)
			return
		}
		c.logger.DebugContext(ctx, "忽略訊息", "type", env.Type, "error", err)
	}
}

// requireRegistered 返回已註冊的連線
func (c *Coordinator) requireRegistered(sessionID int) (Session, error) {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		return Session{}, apperrors.ErrSessionNotFound
	}
	if !s.Registered {
		return Session{}, apperrors.ErrNotRegistered
	}
	return s, nil
}

func (c *Coordinator) handleRegister(sessionID int, env protocol.Envelope) error {
	var req protocol.RegisterRequest
	if err := env.Unmarshal(&req); err != nil {
		return err
	}

	if err := c.registry.Register(sessionID, req.Name, req.Password); err != nil {
		if !errors.Is(err, apperrors.ErrAlreadyLoggedIn) {
			return err
		}
		existing, _ := c.registry.FindByName(req.Name)
		c.send(sessionID, protocol.TypeRegister, protocol.RegisterResponse{
			Name:      req.Name,
			Index:     existing,
			Error:     true,
			ErrorText: apperrors.ErrAlreadyLoggedIn.Message,
		})
		return nil
	}

	c.send(sessionID, protocol.TypeRegister, protocol.RegisterResponse{
		Name:  req.Name,
		Index: sessionID,
	})
	c.broadcastRooms()
	c.broadcastWinners()
	return nil
}

func (c *Coordinator) handleCreateRoom(sessionID int, env protocol.Envelope) error {
	if err := env.Unmarshal(&protocol.EmptyRequest{}); err != nil {
		return err
	}
	s, err := c.requireRegistered(sessionID)
	if err != nil {
		return err
	}

	if _, err := c.rooms.CreateRoom(Participant{SessionID: s.ID, Name: s.Name}); err != nil {
		return err
	}
	c.broadcastRooms()
	c.broadcastWinners()
	return nil
}

func (c *Coordinator) handleAddUserToRoom(sessionID int, env protocol.Envelope) error {
	var req protocol.AddUserToRoomRequest
	if err := env.Unmarshal(&req); err != nil {
		return err
	}
	s, err := c.requireRegistered(sessionID)
	if err != nil {
		return err
	}

	pairing, err := c.rooms.JoinRoom(req.IndexRoom, Participant{SessionID: s.ID, Name: s.Name})
	if err != nil {
		return err
	}

	c.startMatch(pairing.Host, pairing.Guest)
	c.broadcastRooms()
	return nil
}

func (c *Coordinator) handleSinglePlay(sessionID int, env protocol.Envelope) error {
	if err := env.Unmarshal(&protocol.EmptyRequest{}); err != nil {
		return err
	}
	s, err := c.requireRegistered(sessionID)
	if err != nil {
		return err
	}

	bot := NewBot(c.cfg.BotTurnDelay,
		rand.New(rand.NewPCG(c.rng.Uint64(), c.rng.Uint64())),
		c.Deliver,
		c.logger.With("component", "bot"))
	botID := c.registry.AddBot(bot, c.cfg.BotName)
	bot.bind(botID)

	c.logger.Info("單人對局", "session_id", s.ID, "bot_id", botID)

	roomRemoved := c.rooms.Leave(s.ID)
	c.startMatch(Participant{SessionID: s.ID, Name: s.Name}, Participant{SessionID: botID, Name: c.cfg.BotName})
	if roomRemoved {
		c.broadcastRooms()
	}
	return nil
}

// startMatch 建立對局並通知雙方，各自的 idPlayer 是自己的連線 ID
func (c *Coordinator) startMatch(a, b Participant) {
	view := c.matches.Create(a, b)

	for _, p := range []Participant{a, b} {
		c.send(p.SessionID, protocol.TypeCreateGame, protocol.CreateGame{
			IDGame:   view.ID,
			IDPlayer: p.SessionID,
		})
	}

	c.publish(events.MatchCreated, events.MatchPayload{
		MatchID: view.ID,
		Players: c.eventPlayers(view),
	})
}

func (c *Coordinator) handleAddShips(sessionID int, env protocol.Envelope) error {
	var req protocol.AddShipsRequest
	if err := env.Unmarshal(&req); err != nil {
		return err
	}

	view, started, err := c.matches.SubmitFleet(req.GameID, sessionID, req.Ships)
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	for _, p := range view.Players {
		c.send(p.SessionID, protocol.TypeStartGame, protocol.StartGame{
			Ships:              p.Fleet,
			CurrentPlayerIndex: p.SessionID,
		})
	}
	turn := protocol.Turn{CurrentPlayer: view.TurnHolder}
	for _, p := range view.Players {
		c.send(p.SessionID, protocol.TypeTurn, turn)
	}

	c.publish(events.MatchStarted, events.MatchPayload{
		MatchID:   view.ID,
		Players:   c.eventPlayers(view),
		FirstTurn: view.TurnHolder,
	})
	return nil
}

func (c *Coordinator) handleAttack(sessionID int, env protocol.Envelope) error {
	var req protocol.AttackRequest
	if err := env.Unmarshal(&req); err != nil {
		return err
	}

	report, err := c.matches.Attack(req.GameID, sessionID, battle.Position{X: req.X, Y: req.Y})
	if err != nil {
		return err
	}
	c.applyReport(report)
	return nil
}

func (c *Coordinator) handleRandomAttack(sessionID int, env protocol.Envelope) error {
	var req protocol.RandomAttackRequest
	if err := env.Unmarshal(&req); err != nil {
		return err
	}

	report, err := c.matches.RandomAttack(req.GameID, sessionID)
	if err != nil {
		return err
	}
	c.applyReport(report)
	return nil
}

// applyReport 廣播攻擊結果，並通知下一回合或結束對局
func (c *Coordinator) applyReport(report AttackReport) {
	if len(report.Outcomes) == 0 {
		return
	}

	both := [2]int{report.Attacker.SessionID, report.Defender.SessionID}
	for _, o := range report.Outcomes {
		frame, err := protocol.Encode(protocol.TypeAttack, protocol.AttackResult{
			Position:      o.Position,
			CurrentPlayer: report.Attacker.SessionID,
			Status:        o.Status,
		})
		if err != nil {
			c.logger.Error("編碼攻擊結果失敗", "error", err)
			return
		}
		for _, id := range both {
			c.registry.Send(id, frame)
		}
	}

	if report.Finished {
		c.finishMatch(report)
		return
	}

	turn := protocol.Turn{CurrentPlayer: report.TurnHolder}
	for _, id := range both {
		c.send(id, protocol.TypeTurn, turn)
	}
}

// finishMatch 記錄勝場，通知所有已註冊連線
func (c *Coordinator) finishMatch(report AttackReport) {
	winners := c.leaderboard.RecordWin(report.Attacker.Name)

	c.broadcast(protocol.TypeFinish, protocol.Finish{WinPlayer: report.Attacker.SessionID})
	c.broadcast(protocol.TypeUpdateWinners, winners)

	c.publish(events.MatchFinished, events.FinishedPayload{
		MatchID:    report.MatchID,
		WinnerID:   report.Attacker.SessionID,
		WinnerName: report.Attacker.Name,
		LoserID:    report.Defender.SessionID,
	})
	c.publish(events.WinnersUpdated, winners)
}

// handleBotClose 機器人在收到 finish 後要求關閉
//
// finish 會廣播給所有已註冊連線，機器人可能收到別人的對局結果；
// 只有在自己沒有未結束的對局時才移除。
func (c *Coordinator) handleBotClose(sessionID int, env protocol.Envelope) error {
	s, ok := c.registry.Get(sessionID)
	if !ok || !s.IsBot {
		return apperrors.ErrInvalidPayload.WithDetails("bot_close from a non-bot session")
	}
	if len(c.matches.UnfinishedFor(sessionID)) > 0 {
		return nil
	}
	c.removeSession(sessionID)
	return nil
}

// disconnect 連線斷開
//
// 移除等待中的房間與註冊資訊；進行中的對局保留，不判負。
// 對手若是機器人，一併移除，讓它排定的攻擊失效。
func (c *Coordinator) disconnect(sessionID int) {
	if _, ok := c.registry.Get(sessionID); !ok {
		return
	}

	for _, m := range c.matches.UnfinishedFor(sessionID) {
		for _, p := range m.Players {
			if p.SessionID == sessionID {
				continue
			}
			if opp, ok := c.registry.Get(p.SessionID); ok && opp.IsBot {
				c.removeSession(opp.ID)
			}
		}
	}

	roomRemoved := c.rooms.Leave(sessionID)
	c.removeSession(sessionID)

	if roomRemoved {
		c.broadcastRooms()
	}
}

func (c *Coordinator) removeSession(sessionID int) {
	conn, ok := c.registry.Remove(sessionID)
	if !ok {
		return
	}
	if err := conn.Close(); err != nil {
		c.logger.Debug("關閉連線失敗", "session_id", sessionID, "error", err)
	}
	c.logger.Info("連線已移除", "session_id", sessionID)
}

func (c *Coordinator) broadcastRooms() {
	c.broadcast(protocol.TypeUpdateRoom, c.rooms.Available())
}

func (c *Coordinator) broadcastWinners() {
	c.broadcast(protocol.TypeUpdateWinners, c.leaderboard.Snapshot())
}

func (c *Coordinator) send(sessionID int, t protocol.Type, payload any) {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		c.logger.Error("編碼訊息失敗", "type", t, "error", err)
		return
	}
	c.logger.Debug("發送訊息", "type", t, "session_id", sessionID)
	c.registry.Send(sessionID, frame)
}

func (c *Coordinator) broadcast(t protocol.Type, payload any) {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		c.logger.Error("編碼訊息失敗", "type", t, "error", err)
		return
	}
	c.logger.Debug("廣播訊息", "type", t)
	c.registry.Broadcast(frame)
}

func (c *Coordinator) publish(eventType string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.publisher.Publish(ctx, eventType, data); err != nil {
		c.logger.Warn("發布事件失敗", "event", eventType, "error", err)
	}
}

func (c *Coordinator) eventPlayers(view MatchView) []events.Player {
	players := make([]events.Player, 0, len(view.Players))
	for _, p := range view.Players {
		s, _ := c.registry.Get(p.SessionID)
		players = append(players, events.Player{SessionID: p.SessionID, Name: p.Name, Bot: s.IsBot})
	}
	return players
}
