package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecoverer panic 轉為 500 JSON
func TestRecoverer(t *testing.T) {
	h := &Handler{logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))}
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	h.recoverer(h.loggerMiddleware(panicking)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

// TestResponseWriter_StatusCode 記錄寫出的狀態碼
func TestResponseWriter_StatusCode(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	ww.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, ww.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Same(t, rec, ww.Unwrap())

	// httptest.ResponseRecorder 不支援 Hijack
	_, _, err := ww.Hijack()
	assert.Error(t, err)
}
