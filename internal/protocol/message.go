// Package protocol 定義客戶端與服務器之間的訊息格式。
//
// 線上格式（雙向相同）：
//
//	{"id": 0, "type": "<訊息類型>", "data": "<JSON 字串>"}
//
// data 欄位是「字串化」的 JSON：外層解析後得到字串，需再解析一次才是物件。
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/koopa0/system-design/14-sea-battle/internal/battle"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// Type 訊息類型
type Type string

// 客戶端發送
const (
	TypeRegister      Type = "reg"
	TypeCreateRoom    Type = "create_room"
	TypeAddUserToRoom Type = "add_user_to_room"
	TypeAddShips      Type = "add_ships"
	TypeAttack        Type = "attack"
	TypeRandomAttack  Type = "randomAttack"
	TypeSinglePlay    Type = "single_play"
	TypeBotClose      Type = "bot_close"
)

// 服務器發送（reg 與 attack 雙向共用）
const (
	TypeUpdateRoom    Type = "update_room"
	TypeCreateGame    Type = "create_game"
	TypeStartGame     Type = "start_game"
	TypeTurn          Type = "turn"
	TypeFinish        Type = "finish"
	TypeUpdateWinners Type = "update_winners"
)

// Envelope 訊息外層
type Envelope struct {
	ID   int    `json:"id"`
	Type Type   `json:"type"`
	Data string `json:"data"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(shipInBounds, battle.Ship{})
	return v
}

// shipInBounds 船艦長度須與級別一致，且每一格都在棋盤內
func shipInBounds(sl validator.StructLevel) {
	s := sl.Current().Interface().(battle.Ship)
	if s.Type.Length() != s.Length {
		sl.ReportError(s.Length, "Length", "length", "classlen", string(s.Type))
		return
	}
	for _, c := range s.Cells() {
		if !c.InBounds() {
			sl.ReportError(s.Position, "Position", "position", "inboard", "")
			return
		}
	}
}

// Decode 解析訊息外層
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed envelope")
	}
	if env.Type == "" {
		return Envelope{}, apperrors.ErrInvalidPayload.WithDetails("missing type")
	}
	return env, nil
}

// Unmarshal 解析 data 並做結構驗證
//
// data 為空字串時視為空物件（create_room、single_play 即是如此）。
func (e Envelope) Unmarshal(v any) error {
	if e.Data != "" {
		if err := json.Unmarshal([]byte(e.Data), v); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, fmt.Sprintf("malformed %s data", e.Type))
		}
	}
	if err := validate.Struct(v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, fmt.Sprintf("invalid %s data", e.Type))
	}
	return nil
}

// Encode 將 payload 編碼為完整訊息（data 雙重編碼）
func Encode(t Type, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{ID: 0, Type: t, Data: string(data)})
}
