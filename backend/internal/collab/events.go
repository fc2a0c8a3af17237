package collab

import "time"

// 事件类型（写入 Kafka 的 eventType 字段）
const (
	EventParticipantJoined = "PARTICIPANT_JOINED"
	EventParticipantLeft   = "PARTICIPANT_LEFT"
	EventStrokeBegun       = "STROKE_BEGUN"
	EventStrokeEnded       = "STROKE_ENDED"
	EventUndo              = "UNDO"
	EventRedo              = "REDO"
	EventClear             = "CLEAR"
)

// CanvasEvent 画布事件流，供下游审计/统计消费；drawPoint 量太大不发
type CanvasEvent struct {
	EventType     string    `json:"eventType"`
	EventID       string    `json:"eventId"`
	CanvasID      string    `json:"canvasId"`
	ParticipantID string    `json:"participantId"`
	StrokeID      string    `json:"strokeId,omitempty"`
	HistoryLen    int       `json:"historyLen"`
	RedoLen       int       `json:"redoLen"`
	OccurredAt    time.Time `json:"occurredAt"`
}
