package internal_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-sea-battle/internal"
	"github.com/koopa0/system-design/14-sea-battle/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// recorder 記錄收到的訊息，實作 internal.Conn
type recorder struct {
	frames []protocol.Envelope
	closed bool
	mu     sync.Mutex
}

func (r *recorder) Send(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrConnClosed
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	r.frames = append(r.frames, env)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) all() []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Envelope(nil), r.frames...)
}

func (r *recorder) ofType(t protocol.Type) []protocol.Envelope {
	var out []protocol.Envelope
	for _, env := range r.all() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (r *recorder) last(t protocol.Type) (protocol.Envelope, bool) {
	list := r.ofType(t)
	if len(list) == 0 {
		return protocol.Envelope{}, false
	}
	return list[len(list)-1], true
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

func payload[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(env.Data), &v))
	return v
}

// publisherSpy 記錄發布的事件類型
type publisherSpy struct {
	types []string
	mu    sync.Mutex
}

func (p *publisherSpy) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *publisherSpy) Close() error { return nil }

func (p *publisherSpy) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

func testGameConfig() internal.GameConfig {
	return internal.GameConfig{
		BotName:      "bot",
		BotTurnDelay: time.Millisecond,
		InboxSize:    64,
	}
}

// harness 直接驅動協調器，不經過 WebSocket
type harness struct {
	t         *testing.T
	c         *internal.Coordinator
	publisher *publisherSpy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	spy := &publisherSpy{}
	c := internal.NewCoordinator(testGameConfig(), spy, rand.New(rand.NewPCG(1, 2)), testLogger())
	t.Cleanup(c.Stop)
	return &harness{t: t, c: c, publisher: spy}
}

func (h *harness) send(sessionID int, typ protocol.Type, v any) {
	h.t.Helper()
	frame, err := protocol.Encode(typ, v)
	require.NoError(h.t, err)
	h.c.Deliver(sessionID, frame)
}

// connect 建立連線；name 不為空時一併註冊
func (h *harness) connect(name string) (int, *recorder) {
	h.t.Helper()
	rec := &recorder{}
	id, err := h.c.Connect(rec)
	require.NoError(h.t, err)
	if name != "" {
		h.send(id, protocol.TypeRegister, protocol.RegisterRequest{Name: name, Password: "secret"})
	}
	return id, rec
}

// pair a 建房、b 加入，返回對局 ID
func (h *harness) pair(a int, recA *recorder, b int) int {
	h.t.Helper()
	h.send(a, protocol.TypeCreateRoom, protocol.EmptyRequest{})

	env, ok := recA.last(protocol.TypeUpdateRoom)
	require.True(h.t, ok)
	rooms := payload[[]protocol.RoomInfo](h.t, env)
	var roomID int
	for _, room := range rooms {
		if room.RoomUsers[0].Index == a {
			roomID = room.RoomID
		}
	}
	require.NotZero(h.t, roomID)

	h.send(b, protocol.TypeAddUserToRoom, protocol.AddUserToRoomRequest{IndexRoom: roomID})

	env, ok = recA.last(protocol.TypeCreateGame)
	require.True(h.t, ok)
	return payload[protocol.CreateGame](h.t, env).IDGame
}
