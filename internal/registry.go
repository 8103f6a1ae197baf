package internal

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// Conn 連線能力介面
//
// 只有兩種實作：WebSocket 連線（*Connection）與機器人（*Bot）。
// 核心邏輯只透過 Send 推送訊息，不區分是哪一種。
type Conn interface {
	// Send 推送一則已編碼的訊息；連線已關閉時返回 ErrConnClosed
	Send(frame []byte) error
	// Close 關閉連線，可重複呼叫
	Close() error
}

// Session 一條連線在伺服器上的身分
type Session struct {
	ID         int
	Name       string
	Registered bool
	IsBot      bool

	password string
	conn     Conn
}

// Registry 連線註冊表
//
// 以整數 ID 作為唯一引用；其他元件只保存 ID，查詢時才解析，
// 斷線移除後不會留下懸空引用。
type Registry struct {
	sessions map[int]*Session
	reserved map[string]bool // 保留給機器人的名稱
	nextID   int
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry 創建連線註冊表，reserved 中的名稱真人玩家不能使用
func NewRegistry(logger *slog.Logger, reserved ...string) *Registry {
	r := &Registry{
		sessions: make(map[int]*Session),
		reserved: make(map[string]bool, len(reserved)),
		logger:   logger,
	}
	for _, name := range reserved {
		r.reserved[name] = true
	}
	return r
}

// Add 新連線加入，返回分配的 ID
func (r *Registry) Add(conn Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.sessions[r.nextID] = &Session{ID: r.nextID, conn: conn}
	return r.nextID
}

// AddBot 機器人加入並直接視為已註冊
//
// 機器人共用同一個名稱，不做重名檢查。
func (r *Registry) AddBot(conn Conn, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.sessions[r.nextID] = &Session{
		ID:         r.nextID,
		Name:       name,
		Registered: true,
		IsBot:      true,
		conn:       conn,
	}
	return r.nextID
}

// Register 為連線綁定名稱
//
// 名稱已被其他在線且已註冊的連線（包括機器人）使用，或是保留名稱時，
// 返回 ErrAlreadyLoggedIn，請求方維持未註冊狀態。
func (r *Registry) Register(id int, name, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}

	if r.reserved[name] {
		return apperrors.ErrAlreadyLoggedIn
	}
	for _, other := range r.sessions {
		if other.ID != id && other.Registered && other.Name == name {
			return apperrors.ErrAlreadyLoggedIn
		}
	}

	s.Name = name
	s.password = password
	s.Registered = true

	r.logger.Info("玩家已註冊", "session_id", id, "name", name)
	return nil
}

// FindByName 查找使用該名稱的已註冊連線，有多個時返回 ID 最小者
func (r *Registry) FindByName(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := 0
	for _, s := range r.sessions {
		if s.Registered && s.Name == name && (found == 0 || s.ID < found) {
			found = s.ID
		}
	}
	return found, found != 0
}

// Get 返回連線資訊的副本
func (r *Registry) Get(id int) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Remove 移除連線，返回被移除的 Conn
func (r *Registry) Remove(id int) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return s.conn, true
}

// Registered 所有已註冊連線的 ID（遞增排序）
func (r *Registry) Registered() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.Registered {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

// Send 盡力投遞
//
// 連線不存在或已關閉時直接丟棄，不排隊也不重試；
// 其他失敗只記錄，不影響同一次廣播中的其他連線。
func (r *Registry) Send(id int, frame []byte) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	var conn Conn
	if ok {
		conn = s.conn
	}
	r.mu.RUnlock()

	if conn == nil {
		return
	}

	if err := conn.Send(frame); err != nil {
		if errors.Is(err, apperrors.ErrConnClosed) {
			r.logger.Debug("連線已關閉，丟棄訊息", "session_id", id)
			return
		}
		r.logger.Warn("發送訊息失敗", "session_id", id, "error", err)
	}
}

// Broadcast 發送給所有已註冊連線
func (r *Registry) Broadcast(frame []byte) {
	for _, id := range r.Registered() {
		r.Send(id, frame)
	}
}

// Counts 連線總數與已註冊數
func (r *Registry) Counts() (total, registered int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.Registered {
			registered++
		}
	}
	return len(r.sessions), registered
}
