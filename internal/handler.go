package internal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Handler HTTP 請求處理器
type Handler struct {
	coordinator *Coordinator
	hub         *WebSocketHub
	connLimit   func(http.Handler) http.Handler
	logger      *slog.Logger
}

// NewHandler 創建 HTTP 處理器
//
// connLimit 只套用在 WebSocket 升級路由；為 nil 時不限流。
func NewHandler(coordinator *Coordinator, hub *WebSocketHub, connLimit func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		hub:         hub,
		connLimit:   connLimit,
		logger:      logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(h.recoverer, h.loggerMiddleware)

	var ws http.Handler = http.HandlerFunc(h.hub.ServeWS)
	if h.connLimit != nil {
		ws = h.connLimit(ws)
	}
	r.Handle("/ws", ws).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/winners", h.winners).Methods(http.MethodGet)
	api.HandleFunc("/winners/{name}", h.winsOf).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.stats).Methods(http.MethodGet)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	return r
}

// winners 排行榜
func (h *Handler) winners(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"winners": h.coordinator.Leaderboard(),
	}, http.StatusOK)
}

// winsOf 單一玩家的勝場，未上榜為 0
func (h *Handler) winsOf(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.jsonResponse(w, map[string]any{
		"name": name,
		"wins": h.coordinator.Wins(name),
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"game":             h.coordinator.Stats(),
		"connections":      h.hub.ConnectionCount(),
		"max_idle_seconds": h.hub.MaxIdle().Seconds(),
	}, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	})
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack WebSocket 升級需要接管底層連線
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("底層 ResponseWriter 不支援 Hijack")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
