package events

// MatchPayload match.created / match.started
type MatchPayload struct {
	MatchID int      `json:"match_id"`
	Players []Player `json:"players"`
	// FirstTurn 只在 match.started 時有值
	FirstTurn int `json:"first_turn,omitempty"`
}

// Player 事件中的玩家
type Player struct {
	SessionID int    `json:"session_id"`
	Name      string `json:"name"`
	Bot       bool   `json:"bot,omitempty"`
}

// FinishedPayload match.finished
type FinishedPayload struct {
	MatchID    int    `json:"match_id"`
	WinnerID   int    `json:"winner_id"`
	WinnerName string `json:"winner_name"`
	LoserID    int    `json:"loser_id"`
}
