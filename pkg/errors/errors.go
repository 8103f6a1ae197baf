// Package errors 提供應用程式錯誤處理
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 資源未找到
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadyExists 資源已存在
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeConflict 當前狀態不允許此操作
	ErrCodeConflict = "CONFLICT"
	// ErrCodeUnavailable 服務不可用
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is，同錯誤碼且同訊息視為相同
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 返回帶詳細資訊的副本，不修改預定義錯誤本身
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrAlreadyLoggedIn 同名使用者已在線
	ErrAlreadyLoggedIn = New(ErrCodeAlreadyExists, "This user is already logged in")

	// ErrNotRegistered 連線尚未註冊身分
	ErrNotRegistered = New(ErrCodeConflict, "session is not registered")

	// ErrSessionNotFound 連線不存在
	ErrSessionNotFound = New(ErrCodeNotFound, "session not found")

	// ErrRoomNotFound 房間不存在
	ErrRoomNotFound = New(ErrCodeNotFound, "room not found")

	// ErrAlreadyWaiting 玩家已在其他房間等待
	ErrAlreadyWaiting = New(ErrCodeConflict, "session is already waiting in a room")

	// ErrOwnRoom 不能加入自己的房間
	ErrOwnRoom = New(ErrCodeConflict, "cannot join own room")

	// ErrMatchNotFound 對局不存在
	ErrMatchNotFound = New(ErrCodeNotFound, "match not found")

	// ErrMatchFinished 對局已結束
	ErrMatchFinished = New(ErrCodeConflict, "match is finished")

	// ErrMatchNotStarted 對局尚未開始
	ErrMatchNotStarted = New(ErrCodeConflict, "match is not in progress")

	// ErrFleetPlaced 對局已開始，不能再更換艦隊
	ErrFleetPlaced = New(ErrCodeConflict, "fleet already placed")

	// ErrNotYourTurn 非當前回合玩家
	ErrNotYourTurn = New(ErrCodeConflict, "not the turn holder")

	// ErrNotParticipant 不是對局參與者
	ErrNotParticipant = New(ErrCodeInvalidInput, "session is not a participant")

	// ErrInvalidPayload 無效的訊息內容
	ErrInvalidPayload = New(ErrCodeInvalidInput, "invalid payload")

	// ErrConnClosed 連線已關閉
	ErrConnClosed = New(ErrCodeUnavailable, "connection closed")
)

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsAlreadyExists 檢查是否為已存在錯誤
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrCodeAlreadyExists)
}

// IsInvalidInput 檢查是否為無效輸入錯誤
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsConflict 檢查是否為狀態衝突錯誤
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
