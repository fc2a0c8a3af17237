package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"canvasServer/backend/internal/collab"
)

const (
	// 等待连接名额的最长时间
	admitTimeout = 200 * time.Millisecond
	// Redis / MySQL 等旁路写入的超时
	sideEffectTimeout = 2 * time.Second
)

type ManagerOptions struct {
	// 允许的 Origin 前缀；为空时不限制
	AllowedOrigins []string
	QueueSize      int
	// 连接数上限，为 nil 时不限制
	Sem *collab.SemaphoreControl
}

type Manager struct {
	h         *Hub
	svc       collab.Service
	sem       *collab.SemaphoreControl
	upgrader  websocket.Upgrader
	queueSize int

	// 仍在运行的连接处理（含 Leave 和离开时的旁路写入）
	active sync.WaitGroup
}

func NewManager(h *Hub, svc collab.Service, opt ManagerOptions) *Manager {
	return &Manager{
		h:         h,
		svc:       svc,
		sem:       opt.Sem,
		queueSize: opt.QueueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(opt.AllowedOrigins),
		},
	}
}

// OriginAllowed 按前缀匹配 Origin；列表为空时不限制。
// 一些环境不发送 Origin，或为 "null"（file:// 页面），同样放行
func OriginAllowed(allowedPrefixes []string, origin string) bool {
	if len(allowedPrefixes) == 0 || origin == "" || origin == "null" {
		return true
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}

func checkOrigin(allowedPrefixes []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return OriginAllowed(allowedPrefixes, r.Header.Get("Origin"))
	}
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	m.active.Add(1)
	defer m.active.Done()

	if m.sem != nil {
		admitCtx, cancel := context.WithTimeout(c.Request.Context(), admitTimeout)
		err := m.sem.Acquire(admitCtx)
		cancel()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
			return
		}
		defer m.sem.Release()
	}

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}

	wsConn := NewConn(conn, m.h, m.queueSize)
	// 旁路写入不跟随请求取消
	baseCtx := context.WithoutCancel(c.Request.Context())

	self, ok := m.h.Join(wsConn)
	if !ok {
		// 正在关闭
		wsConn.close()
		return
	}
	// Join 之后再启动写循环，participantID 已经确定
	go wsConn.writeLoop()
	m.record(baseCtx, func(ctx context.Context) { m.svc.RecordJoin(ctx, self) })

	// 阻塞至连接关闭
	wsConn.readLoop(baseCtx)

	m.h.Leave(wsConn)
	// Leave 之后不会再有人写 send，可以安全关闭
	close(wsConn.send)
	m.record(baseCtx, func(ctx context.Context) { m.svc.RecordLeave(ctx, self.ID) })
}

// Wait 等待所有连接处理结束；通常在 Hub.CloseAll 之后、关闭 Redis/MySQL 之前调用。
// 调用前必须已经停止接收新连接
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) record(parent context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(parent, sideEffectTimeout)
	defer cancel()
	fn(ctx)
}
