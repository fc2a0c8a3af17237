package collab

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"canvasServer/backend/internal/canvas"
)

// 画布协作服务接口。
// 除 Record*/Presence 外的方法都只动内存，由 ws.Hub 在同一把分发锁内调用，
// 保证“变更顺序 == 每个接收方看到的消息顺序”。
type Service interface {
	Connect() Bootstrap
	Disconnect(participantID string) (map[string]canvas.Participant, bool)

	BeginStroke(authorID string, meta StrokeMeta) canvas.Stroke
	AppendPoint(strokeID string, p canvas.Point) bool
	EndStroke(participantID, strokeID string)

	Undo(participantID string) ([]canvas.Stroke, bool)
	Redo(participantID string) ([]canvas.Stroke, bool)
	Clear(participantID string) []canvas.Stroke

	MoveCursor(participantID string, x, y float64) (CursorMove, bool)

	Participants() map[string]canvas.Participant
	History() []canvas.Stroke
	Stats() Stats

	// 以下可能访问外部存储，不要在分发锁内调用
	RecordJoin(ctx context.Context, p canvas.Participant)
	RecordLeave(ctx context.Context, participantID string)
	RecordHeartbeat(ctx context.Context, participantID string)
	Presence(ctx context.Context) ([]canvas.Participant, error)
	Canvases(ctx context.Context) ([]string, error)
}

// 在线状态镜像（Redis 实现在 cache 包）
type PresenceStore interface {
	AddParticipant(ctx context.Context, canvasID, participantID, color string, ttl time.Duration) error
	RemoveParticipant(ctx context.Context, canvasID, participantID string) error
	GetAliveParticipants(ctx context.Context, canvasID string) ([]canvas.Participant, error)
}

// CanvasLister 在线状态镜像可选实现：列出登记过的画布
type CanvasLister interface {
	GetCanvases(ctx context.Context) ([]string, error)
}

// 连接会话日志（MySQL 实现在 store 包）
type SessionStore interface {
	SessionStarted(ctx context.Context, canvasID, participantID, color string, at time.Time) error
	SessionEnded(ctx context.Context, participantID string, at time.Time) error
}

// 事件发布（KafkaDispatcher 实现），必须不阻塞
type EventPublisher interface {
	TryEnqueue(evt CanvasEvent) bool
}

// StrokeMeta beginPath 携带的客户端字段；authorId 不在其中
type StrokeMeta struct {
	ID     string
	Tool   string
	Color  string
	Width  float64
	Fill   bool
	Points []canvas.Point
}

// Bootstrap 新连接的一次性全量快照
type Bootstrap struct {
	Self         canvas.Participant
	History      []canvas.Stroke
	Participants map[string]canvas.Participant
}

type CursorMove struct {
	ParticipantID string
	X             float64
	Y             float64
	Color         string
}

type Stats struct {
	CanvasID     string
	HistoryLen   int
	RedoLen      int
	Participants int
}

type Options struct {
	CanvasID    string
	PresenceTTL time.Duration

	Presence PresenceStore
	Sessions SessionStore
	Events   EventPublisher

	// 测试注入
	Intn  func(n int) int
	NewID func() string
	Now   func() time.Time
}

// 内存实现：一块画布的历史 + 参与者表
type InMemoryService struct {
	history *canvas.History

	mu           sync.RWMutex
	participants map[string]*canvas.Participant

	canvasID    string
	presenceTTL time.Duration

	presence PresenceStore
	sessions SessionStore
	events   EventPublisher

	intn  func(n int) int
	newID func() string
	now   func() time.Time
}

var _ Service = (*InMemoryService)(nil)

func NewInMemoryService(opt Options) *InMemoryService {
	s := &InMemoryService{
		history:      canvas.NewHistory(),
		participants: make(map[string]*canvas.Participant),
		canvasID:     opt.CanvasID,
		presenceTTL:  opt.PresenceTTL,
		presence:     opt.Presence,
		sessions:     opt.Sessions,
		events:       opt.Events,
		intn:         opt.Intn,
		newID:        opt.NewID,
		now:          opt.Now,
	}
	if s.canvasID == "" {
		s.canvasID = "default"
	}
	if s.presenceTTL <= 0 {
		s.presenceTTL = 600 * time.Second
	}
	if s.newID == nil {
		s.newID = func() string { return ulid.Make().String() }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *InMemoryService) Connect() Bootstrap {
	p := &canvas.Participant{ID: s.newID(), Color: canvas.PickColor(s.intn)}

	s.mu.Lock()
	s.participants[p.ID] = p
	s.mu.Unlock()

	s.publish(EventParticipantJoined, p.ID, "")
	return Bootstrap{
		Self:         *p,
		History:      s.history.Snapshot(),
		Participants: s.Participants(),
	}
}

// Disconnect 只更新成员表；该参与者画的笔画保留在历史里
func (s *InMemoryService) Disconnect(participantID string) (map[string]canvas.Participant, bool) {
	s.mu.Lock()
	_, ok := s.participants[participantID]
	delete(s.participants, participantID)
	s.mu.Unlock()

	if ok {
		s.publish(EventParticipantLeft, participantID, "")
	}
	return s.Participants(), ok
}

func (s *InMemoryService) BeginStroke(authorID string, meta StrokeMeta) canvas.Stroke {
	st := canvas.Stroke{
		ID:       meta.ID,
		AuthorID: authorID,
		Tool:     meta.Tool,
		Color:    meta.Color,
		Width:    meta.Width,
		Fill:     meta.Fill,
		Points:   make([]canvas.Point, len(meta.Points)),
	}
	copy(st.Points, meta.Points)

	s.history.Append(st)
	s.publish(EventStrokeBegun, authorID, st.ID)
	return st
}

// AppendPoint 找不到笔画（乱序、已撤销）时返回 false，调用方直接丢弃
func (s *InMemoryService) AppendPoint(strokeID string, p canvas.Point) bool {
	return s.history.AppendPoint(strokeID, p)
}

// EndStroke 纯通知，不改历史
func (s *InMemoryService) EndStroke(participantID, strokeID string) {
	s.publish(EventStrokeEnded, participantID, strokeID)
}

func (s *InMemoryService) Undo(participantID string) ([]canvas.Stroke, bool) {
	if !s.history.Undo() {
		return nil, false
	}
	s.publish(EventUndo, participantID, "")
	return s.history.Snapshot(), true
}

func (s *InMemoryService) Redo(participantID string) ([]canvas.Stroke, bool) {
	if !s.history.Redo() {
		return nil, false
	}
	s.publish(EventRedo, participantID, "")
	return s.history.Snapshot(), true
}

func (s *InMemoryService) Clear(participantID string) []canvas.Stroke {
	s.history.Clear()
	s.publish(EventClear, participantID, "")
	return []canvas.Stroke{}
}

// MoveCursor 记下最后位置（只在内存）；未知参与者返回 false
func (s *InMemoryService) MoveCursor(participantID string, x, y float64) (CursorMove, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return CursorMove{}, false
	}
	p.Cursor = &canvas.Cursor{X: x, Y: y}
	return CursorMove{ParticipantID: p.ID, X: x, Y: y, Color: p.Color}, true
}

func (s *InMemoryService) Participants() map[string]canvas.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]canvas.Participant, len(s.participants))
	for id, p := range s.participants {
		out[id] = p.Clone()
	}
	return out
}

func (s *InMemoryService) History() []canvas.Stroke {
	return s.history.Snapshot()
}

func (s *InMemoryService) Stats() Stats {
	s.mu.RLock()
	n := len(s.participants)
	s.mu.RUnlock()
	return Stats{
		CanvasID:     s.canvasID,
		HistoryLen:   s.history.Len(),
		RedoLen:      s.history.RedoLen(),
		Participants: n,
	}
}

func (s *InMemoryService) RecordJoin(ctx context.Context, p canvas.Participant) {
	if s.presence != nil {
		if err := s.presence.AddParticipant(ctx, s.canvasID, p.ID, p.Color, s.presenceTTL); err != nil {
			log.Printf("presence add error (participant=%s): %v", p.ID, err)
		}
	}
	if s.sessions != nil {
		if err := s.sessions.SessionStarted(ctx, s.canvasID, p.ID, p.Color, s.now()); err != nil {
			log.Printf("session start error (participant=%s): %v", p.ID, err)
		}
	}
}

func (s *InMemoryService) RecordLeave(ctx context.Context, participantID string) {
	if s.presence != nil {
		if err := s.presence.RemoveParticipant(ctx, s.canvasID, participantID); err != nil {
			log.Printf("presence remove error (participant=%s): %v", participantID, err)
		}
	}
	if s.sessions != nil {
		if err := s.sessions.SessionEnded(ctx, participantID, s.now()); err != nil {
			log.Printf("session end error (participant=%s): %v", participantID, err)
		}
	}
}

// RecordHeartbeat 刷新在线 TTL
func (s *InMemoryService) RecordHeartbeat(ctx context.Context, participantID string) {
	if s.presence == nil {
		return
	}
	s.mu.RLock()
	p, ok := s.participants[participantID]
	var color string
	if ok {
		color = p.Color
	}
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.presence.AddParticipant(ctx, s.canvasID, participantID, color, s.presenceTTL); err != nil {
		log.Printf("presence refresh error (participant=%s): %v", participantID, err)
	}
}

// Presence 优先读 Redis 镜像（多实例时能看到全部在线者），没配置时退回内存表
func (s *InMemoryService) Presence(ctx context.Context) ([]canvas.Participant, error) {
	if s.presence == nil {
		ps := s.Participants()
		out := make([]canvas.Participant, 0, len(ps))
		for _, p := range ps {
			out = append(out, p)
		}
		return out, nil
	}
	members, err := s.presence.GetAliveParticipants(ctx, s.canvasID)
	if err != nil {
		return nil, fmt.Errorf("get alive participants: %w", err)
	}
	return members, nil
}

// Canvases 没有镜像（或镜像不支持列举）时只返回本画布
func (s *InMemoryService) Canvases(ctx context.Context) ([]string, error) {
	lister, ok := s.presence.(CanvasLister)
	if !ok {
		return []string{s.canvasID}, nil
	}
	canvases, err := lister.GetCanvases(ctx)
	if err != nil {
		return nil, fmt.Errorf("get canvases: %w", err)
	}
	return canvases, nil
}

func (s *InMemoryService) publish(eventType, participantID, strokeID string) {
	if s.events == nil {
		return
	}
	s.events.TryEnqueue(CanvasEvent{
		EventType:     eventType,
		EventID:       ulid.Make().String(),
		CanvasID:      s.canvasID,
		ParticipantID: participantID,
		StrokeID:      strokeID,
		HistoryLen:    s.history.Len(),
		RedoLen:       s.history.RedoLen(),
		OccurredAt:    s.now(),
	})
}
