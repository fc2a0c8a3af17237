package ws

import "canvasServer/backend/internal/canvas"

// 消息类型
const (
	TypeBeginPath    = "beginPath"
	TypeDrawPoint    = "drawPoint"
	TypeEndPath      = "endPath"
	TypeUndo         = "undo"
	TypeRedo         = "redo"
	TypeClearAll     = "clearAll"
	TypeCursor       = "cursor"
	TypeHeartbeat    = "heartbeat"
	TypeInit         = "init"
	TypeHistory      = "history"
	TypeParticipants = "participants"
)

// ClientMessage 客户端上行消息，扁平结构，按 type 取用字段
type ClientMessage struct {
	Type string `json:"type"`

	// beginPath
	ID     string         `json:"id"`
	Tool   string         `json:"tool"`
	Color  string         `json:"color"`
	Width  float64        `json:"width"`
	Fill   bool           `json:"fill"`
	Points []canvas.Point `json:"points"`

	// drawPoint / endPath
	StrokeID string        `json:"strokeId"`
	Point    *canvas.Point `json:"point"`

	// cursor；用指针区分“缺失”和 0
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

// InitMessage 只发给新连接的一次性快照
type InitMessage struct {
	Type         string                        `json:"type"`
	History      []canvas.Stroke               `json:"history"`
	Participants map[string]canvas.Participant `json:"participants"`
	YourID       string                        `json:"yourId"`
}

// StrokeMessage beginPath 广播，字段与 Stroke 平铺在同一层
type StrokeMessage struct {
	Type string `json:"type"`
	canvas.Stroke
}

type DrawPointMessage struct {
	Type     string       `json:"type"`
	StrokeID string       `json:"strokeId"`
	Point    canvas.Point `json:"point"`
}

type EndPathMessage struct {
	Type     string `json:"type"`
	StrokeID string `json:"strokeId"`
}

// HistoryMessage 撤销/重做/清空后的全量历史；客户端收到后丢弃本地渲染并重放
type HistoryMessage struct {
	Type    string          `json:"type"`
	History []canvas.Stroke `json:"history"`
}

// ParticipantsMessage 完整成员表（不是增量）
type ParticipantsMessage struct {
	Type         string                        `json:"type"`
	Participants map[string]canvas.Participant `json:"participants"`
}

type CursorMessage struct {
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

func (m InitMessage) MessageType() string         { return m.Type }
func (m StrokeMessage) MessageType() string       { return m.Type }
func (m DrawPointMessage) MessageType() string    { return m.Type }
func (m EndPathMessage) MessageType() string      { return m.Type }
func (m HistoryMessage) MessageType() string      { return m.Type }
func (m ParticipantsMessage) MessageType() string { return m.Type }
func (m CursorMessage) MessageType() string       { return m.Type }
