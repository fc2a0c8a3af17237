package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ParticipantSession 一次连接的审计记录，不包含任何笔画数据
type ParticipantSession struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	CanvasID       string    `gorm:"type:varchar(64);index"`
	ParticipantID  string    `gorm:"type:varchar(32);uniqueIndex"`
	Color          string    `gorm:"type:varchar(16)"`
	ConnectedAt    time.Time `gorm:"not null"`
	DisconnectedAt *time.Time
}

type SessionStore struct{ db *gorm.DB }

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) SessionStarted(ctx context.Context, canvasID, participantID, color string, at time.Time) error {
	rec := ParticipantSession{
		CanvasID:      canvasID,
		ParticipantID: participantID,
		Color:         color,
		ConnectedAt:   at,
	}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if err != nil {
		if isDuplicateKey(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *SessionStore) SessionEnded(ctx context.Context, participantID string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&ParticipantSession{}).
		Where("participant_id = ? AND disconnected_at IS NULL", participantID).
		Update("disconnected_at", at).Error
}

// 1062: Duplicate entry
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
