package internal

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// Participant 房間或對局中的一位玩家
type Participant struct {
	SessionID int
	Name      string
}

// Room 等待配對的房間
//
// 房間在第二位玩家加入的同時被移除，因此 Waiting 永遠只有一位。
type Room struct {
	ID      int
	Waiting []Participant
}

// Pairing 配對結果：房主與加入者
type Pairing struct {
	RoomID int
	Host   Participant
	Guest  Participant
}

// RoomManager 房間管理器
//
// 不變量：一個連線同一時間最多在一個房間等待。
type RoomManager struct {
	rooms     map[int]*Room // roomID -> Room
	bySession map[int]int   // sessionID -> roomID
	nextID    int
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRoomManager 創建房間管理器
func NewRoomManager(logger *slog.Logger) *RoomManager {
	return &RoomManager{
		rooms:     make(map[int]*Room),
		bySession: make(map[int]int),
		logger:    logger,
	}
}

// CreateRoom 創建房間，玩家成為唯一的等待者
func (m *RoomManager) CreateRoom(p Participant) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roomID, waiting := m.bySession[p.SessionID]; waiting {
		return Room{}, apperrors.ErrAlreadyWaiting.WithDetails(roomIDDetail(roomID))
	}

	m.nextID++
	room := &Room{ID: m.nextID, Waiting: []Participant{p}}
	m.rooms[room.ID] = room
	m.bySession[p.SessionID] = room.ID

	m.logger.Info("房間已創建",
		"room_id", room.ID,
		"session_id", p.SessionID,
		"name", p.Name)

	return Room{ID: room.ID, Waiting: append([]Participant(nil), room.Waiting...)}, nil
}

// JoinRoom 加入房間並完成配對
//
// 房間被移除；加入者自己若也有等待中的房間，一併移除。
func (m *RoomManager) JoinRoom(roomID int, p Participant) (Pairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return Pairing{}, apperrors.ErrRoomNotFound.WithDetails(roomIDDetail(roomID))
	}

	host := room.Waiting[0]
	if host.SessionID == p.SessionID {
		return Pairing{}, apperrors.ErrOwnRoom
	}

	m.removeLocked(room.ID)
	if own, waiting := m.bySession[p.SessionID]; waiting {
		m.removeLocked(own)
	}

	m.logger.Info("房間配對完成",
		"room_id", roomID,
		"host", host.SessionID,
		"guest", p.SessionID)

	return Pairing{RoomID: roomID, Host: host, Guest: p}, nil
}

// Leave 移除該連線等待中的房間，返回是否有房間被移除
func (m *RoomManager) Leave(sessionID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, waiting := m.bySession[sessionID]
	if !waiting {
		return false
	}
	m.removeLocked(roomID)

	m.logger.Info("房間已移除", "room_id", roomID, "session_id", sessionID)
	return true
}

func (m *RoomManager) removeLocked(roomID int) {
	room, ok := m.rooms[roomID]
	if !ok {
		return
	}
	for _, p := range room.Waiting {
		delete(m.bySession, p.SessionID)
	}
	delete(m.rooms, roomID)
}

// Available 可加入的房間（恰好一位等待者），依房間 ID 排序
func (m *RoomManager) Available() []protocol.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]protocol.RoomInfo, 0, len(m.rooms))
	for _, room := range m.rooms {
		if len(room.Waiting) != 1 {
			continue
		}
		users := make([]protocol.RoomUser, 0, 1)
		for _, p := range room.Waiting {
			users = append(users, protocol.RoomUser{Name: p.Name, Index: p.SessionID})
		}
		list = append(list, protocol.RoomInfo{RoomID: room.ID, RoomUsers: users})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].RoomID < list[j].RoomID })
	return list
}

// Count 房間數量
func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func roomIDDetail(roomID int) string {
	return fmt.Sprintf("room_id=%d", roomID)
}
