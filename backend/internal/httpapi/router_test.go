package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasServer/backend/internal/canvas"
	"canvasServer/backend/internal/collab"
	"canvasServer/backend/internal/ws"
)

type brokenPresence struct{}

func (brokenPresence) AddParticipant(context.Context, string, string, string, time.Duration) error {
	return nil
}
func (brokenPresence) RemoveParticipant(context.Context, string, string) error { return nil }
func (brokenPresence) GetAliveParticipants(context.Context, string) ([]canvas.Participant, error) {
	return nil, errors.New("redis down")
}

func newTestRouter(t *testing.T, opt collab.Options, d Deps) (*gin.Engine, *collab.InMemoryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ids := []string{"p2", "p1"}
	opt.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	svc := collab.NewInMemoryService(opt)
	hub := ws.NewHub(svc)
	d.Svc = svc
	d.Hub = hub
	d.Manager = ws.NewManager(hub, svc, ws.ManagerOptions{})
	return NewRouter(d), svc
}

func get(t *testing.T, r http.Handler, path string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, collab.Options{}, Deps{})
	w, body := get(t, r, "/canvas/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["message"])
}

func TestStateAndHistory(t *testing.T) {
	r, svc := newTestRouter(t, collab.Options{CanvasID: "board"}, Deps{})

	boot := svc.Connect()
	svc.BeginStroke(boot.Self.ID, collab.StrokeMeta{ID: "s1", Points: []canvas.Point{{X: 1, Y: 1}}})
	svc.BeginStroke(boot.Self.ID, collab.StrokeMeta{ID: "s2"})
	svc.Undo(boot.Self.ID)

	w, body := get(t, r, "/canvas/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "board", body["canvas"])
	assert.Equal(t, 1.0, body["historyLength"])
	assert.Equal(t, 1.0, body["redoLength"])
	assert.Equal(t, 0.0, body["connections"])
	assert.Contains(t, body["participants"], boot.Self.ID)

	w, body = get(t, r, "/canvas/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history, ok := body["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, "s1", history[0].(map[string]any)["id"])
}

func TestPresence_SortedFromMemory(t *testing.T) {
	r, svc := newTestRouter(t, collab.Options{}, Deps{})
	svc.Connect()
	svc.Connect()

	w, body := get(t, r, "/canvas/presence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, body["count"])
	members := body["participants"].([]any)
	assert.Equal(t, "p1", members[0].(map[string]any)["id"])
	assert.Equal(t, "p2", members[1].(map[string]any)["id"])
}

func TestPresence_StoreErrorIsBadGateway(t *testing.T) {
	r, _ := newTestRouter(t, collab.Options{Presence: brokenPresence{}}, Deps{})
	w, body := get(t, r, "/canvas/presence", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["error"], "redis down")
}

func TestCanvases_FallsBackToOwnCanvas(t *testing.T) {
	r, _ := newTestRouter(t, collab.Options{CanvasID: "board"}, Deps{})
	w, body := get(t, r, "/canvas/canvases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"board"}, body["canvases"])
}

func TestCORS(t *testing.T) {
	r, _ := newTestRouter(t, collab.Options{}, Deps{AllowOrigins: []string{"http://localhost"}})

	w, _ := get(t, r, "/canvas/healthz", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = get(t, r, "/canvas/healthz", map[string]string{"Origin": "https://other.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// file:// 页面发送 Origin: null，CORS 与握手校验都放行
	w, _ = get(t, r, "/canvas/healthz", map[string]string{"Origin": "null"})
	assert.Equal(t, http.StatusOK, w.Code)
	for _, path := range []string{"/ws", "/canvas/ws"} {
		w, _ = get(t, r, path, map[string]string{"Origin": "null"})
		// 到达了升级逻辑（缺少 Upgrade 头），而不是被 CORS 拦下
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		w, _ = get(t, r, path, map[string]string{"Origin": "https://other.example"})
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<canvas></canvas>"), 0o644))

	r, _ := newTestRouter(t, collab.Options{}, Deps{StaticDir: dir})
	w, _ := get(t, r, "/index.html", nil)
	// FileServer 会把 /index.html 重定向到 /
	if w.Code == http.StatusMovedPermanently {
		w, _ = get(t, r, "/", nil)
	}
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<canvas>")

	r, _ = newTestRouter(t, collab.Options{}, Deps{})
	w, _ = get(t, r, "/index.html", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	r, _ := newTestRouter(t, collab.Options{}, Deps{})
	for _, path := range []string{"/ws", "/canvas/ws"} {
		w, _ := get(t, r, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
