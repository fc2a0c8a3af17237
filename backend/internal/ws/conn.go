package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 单次写超时
	writeWait = 10 * time.Second
	// 读超时；收到 pong 或任意消息都会顺延
	pongWait = 60 * time.Second
	// 必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10
	// beginPath 可能带一批初始点
	maxMessageSize = 512 * 1024
	// 至少能放下 init + participants，writeLoop 启动前不会溢出
	minQueueSize = 16
)

type Conn struct {
	ws  *websocket.Conn
	hub *Hub
	// 由 Hub.Join 分配，连接存活期间不变
	participantID string
	// 有序发送队列，由 writeLoop 独占消费
	send chan OutboundMessage

	dead      atomic.Bool
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn, hub *Hub, queueSize int) *Conn {
	if queueSize < minQueueSize {
		queueSize = minQueueSize
	}
	return &Conn{ws: ws, hub: hub, send: make(chan OutboundMessage, queueSize)}
}

// enqueue 只在 Hub 的分发锁内调用。
// 队列满说明对端读得太慢：直接断开，而不是跳过消息（跳过会让客户端状态错乱）。
func (c *Conn) enqueue(msg OutboundMessage) bool {
	if c.dead.Load() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		log.Printf("send queue full, closing connection (participant=%s, type=%s)", c.participantID, msg.MessageType())
		c.dead.Store(true)
		c.close()
		return false
	}
}

// close 关闭底层连接，readLoop 随之退出
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read error (participant=%s): %v", c.participantID, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// 格式错误的帧直接丢弃，不回错误
			continue
		}
		c.hub.Dispatch(ctx, c, msg)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 已移除该连接
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Printf("write error (participant=%s): %v", c.participantID, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
