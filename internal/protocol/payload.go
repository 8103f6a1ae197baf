package protocol

import "github.com/koopa0/system-design/14-sea-battle/internal/battle"

// 請求結構

// RegisterRequest 註冊
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Password string `json:"password" validate:"max=128"`
}

// EmptyRequest create_room、single_play、bot_close 沒有內容
type EmptyRequest struct{}

// AddUserToRoomRequest 加入房間
type AddUserToRoomRequest struct {
	IndexRoom int `json:"indexRoom"`
}

// AddShipsRequest 提交艦隊
type AddShipsRequest struct {
	GameID      int           `json:"gameId"`
	IndexPlayer int           `json:"indexPlayer"`
	Ships       []battle.Ship `json:"ships" validate:"len=10,dive"`
}

// AttackRequest 指定格攻擊
type AttackRequest struct {
	GameID      int `json:"gameId"`
	X           int `json:"x" validate:"min=0,max=9"`
	Y           int `json:"y" validate:"min=0,max=9"`
	IndexPlayer int `json:"indexPlayer"`
}

// RandomAttackRequest 隨機攻擊
type RandomAttackRequest struct {
	GameID      int `json:"gameId"`
	IndexPlayer int `json:"indexPlayer"`
}

// 回應結構

// RegisterResponse 註冊結果
type RegisterResponse struct {
	Name      string `json:"name"`
	Index     int    `json:"index"`
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
}

// RoomUser 房間內等待的玩家
type RoomUser struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// RoomInfo 可加入的房間
type RoomInfo struct {
	RoomID    int        `json:"roomId"`
	RoomUsers []RoomUser `json:"roomUsers"`
}

// CreateGame 對局建立，IDPlayer 為收件人自己的連線 ID
type CreateGame struct {
	IDGame   int `json:"idGame"`
	IDPlayer int `json:"idPlayer"`
}

// StartGame 對局開始，只包含收件人自己的艦隊
type StartGame struct {
	Ships              []battle.Ship `json:"ships"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
}

// Turn 回合通知
type Turn struct {
	CurrentPlayer int `json:"currentPlayer"`
}

// AttackResult 單格攻擊結果，CurrentPlayer 為攻擊方
type AttackResult struct {
	Position      battle.Position `json:"position"`
	CurrentPlayer int             `json:"currentPlayer"`
	Status        battle.Status   `json:"status"`
}

// Finish 對局結束
type Finish struct {
	WinPlayer int `json:"winPlayer"`
}

// Winner 排行榜條目
type Winner struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}
