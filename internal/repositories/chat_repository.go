package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	model "campus-errands.com/campus-errands/internal/models"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, msg *model.ChatMessage) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *ChatRepository) ListByErrand(ctx context.Context, errandID string) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("errand_id = ?", errandID).
		Order("created_at asc").
		Find(&msgs).Error
	return msgs, err
}

// MarkDelivered flags every undelivered message from the counterpart.
func (r *ChatRepository) MarkDelivered(ctx context.Context, errandID, readerID string) error {
	return r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("errand_id = ? AND sender_id <> ? AND delivered = ?", errandID, readerID, false).
		Update("delivered", true).Error
}

// MarkRead flags every unread message from the counterpart; read implies
// delivered.
func (r *ChatRepository) MarkRead(ctx context.Context, errandID, readerID string) error {
	return r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("errand_id = ? AND sender_id <> ? AND read = ?", errandID, readerID, false).
		Updates(map[string]interface{}{
			"read":      true,
			"delivered": true,
		}).Error
}

// UnreadCount counts the counterpart's messages the reader has not read yet.
func (r *ChatRepository) UnreadCount(ctx context.Context, errandID, readerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("errand_id = ? AND sender_id <> ? AND read = ?", errandID, readerID, false).
		Count(&count).Error
	return count, err
}
