package ws

import (
	"context"
	"sync"

	"canvasServer/backend/internal/canvas"
	"canvasServer/backend/internal/collab"
)

type Hub struct {
	svc collab.Service

	// 分发锁：一条入站事件（含 连接/断开）从修改状态到把所有出站消息放进各连接队列，
	// 整个过程不与其他事件交错。服务端的变更顺序因此就是每个接收方看到的顺序。
	dispatchMu sync.Mutex
	// 置位后拒绝新的 Join；由 dispatchMu 保护
	closed bool

	// 保护 conns；HTTP 读连接数时不必抢分发锁
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

func NewHub(svc collab.Service) *Hub {
	return &Hub{svc: svc, conns: make(map[*Conn]struct{})}
}

// Join 分配参与者，只给新连接发 init 快照，然后把完整成员表广播给所有人（包括新连接）。
// Hub 已关闭时返回 false
func (h *Hub) Join(c *Conn) (canvas.Participant, bool) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	if h.closed {
		return canvas.Participant{}, false
	}

	boot := h.svc.Connect()
	c.participantID = boot.Self.ID

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	c.enqueue(InitMessage{
		Type:         TypeInit,
		History:      boot.History,
		Participants: boot.Participants,
		YourID:       boot.Self.ID,
	})
	h.broadcastLocked(ParticipantsMessage{Type: TypeParticipants, Participants: boot.Participants}, nil)
	return boot.Self, true
}

// Leave 移除连接并向剩余连接广播成员表；笔画不动。返回后不会再有消息进入 c.send
func (h *Hub) Leave(c *Conn) bool {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if !ok {
		return false
	}

	remaining, _ := h.svc.Disconnect(c.participantID)
	h.broadcastLocked(ParticipantsMessage{Type: TypeParticipants, Participants: remaining}, nil)
	return true
}

// Dispatch 处理一条入站消息。非法或未知的消息静默丢弃，不回错误
func (h *Hub) Dispatch(ctx context.Context, c *Conn, msg ClientMessage) {
	if msg.Type == TypeHeartbeat {
		// 会访问 Redis，不进分发锁
		hbCtx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
		defer cancel()
		h.svc.RecordHeartbeat(hbCtx, c.participantID)
		return
	}

	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	switch msg.Type {
	case TypeBeginPath:
		if msg.ID == "" {
			return
		}
		st := h.svc.BeginStroke(c.participantID, collab.StrokeMeta{
			ID:     msg.ID,
			Tool:   msg.Tool,
			Color:  msg.Color,
			Width:  msg.Width,
			Fill:   msg.Fill,
			Points: msg.Points,
		})
		// 包括发送者自己
		h.broadcastLocked(StrokeMessage{Type: TypeBeginPath, Stroke: st}, nil)

	case TypeDrawPoint:
		if msg.StrokeID == "" || msg.Point == nil {
			return
		}
		if !h.svc.AppendPoint(msg.StrokeID, *msg.Point) {
			return
		}
		// 发送者已在本地画过，不回显
		h.broadcastLocked(DrawPointMessage{Type: TypeDrawPoint, StrokeID: msg.StrokeID, Point: *msg.Point}, c)

	case TypeEndPath:
		if msg.StrokeID == "" {
			return
		}
		h.svc.EndStroke(c.participantID, msg.StrokeID)
		h.broadcastLocked(EndPathMessage{Type: TypeEndPath, StrokeID: msg.StrokeID}, nil)

	case TypeUndo:
		if history, ok := h.svc.Undo(c.participantID); ok {
			h.broadcastLocked(HistoryMessage{Type: TypeHistory, History: history}, nil)
		}

	case TypeRedo:
		if history, ok := h.svc.Redo(c.participantID); ok {
			h.broadcastLocked(HistoryMessage{Type: TypeHistory, History: history}, nil)
		}

	case TypeClearAll:
		history := h.svc.Clear(c.participantID)
		h.broadcastLocked(HistoryMessage{Type: TypeHistory, History: history}, nil)

	case TypeCursor:
		if msg.X == nil || msg.Y == nil {
			return
		}
		mv, ok := h.svc.MoveCursor(c.participantID, *msg.X, *msg.Y)
		if !ok {
			return
		}
		h.broadcastLocked(CursorMessage{Type: TypeCursor, ID: mv.ParticipantID, X: mv.X, Y: mv.Y, Color: mv.Color}, c)
	}
}

// broadcastLocked 调用方必须持有 dispatchMu；except 为 nil 时发给所有连接
func (h *Hub) broadcastLocked(msg OutboundMessage, except *Conn) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if c == except {
			continue
		}
		c.enqueue(msg)
	}
}

func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll 关闭所有底层连接并拒绝之后的 Join；各自的读循环退出后走正常的 Leave 流程
func (h *Hub) CloseAll() {
	h.dispatchMu.Lock()
	h.closed = true
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	h.dispatchMu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
