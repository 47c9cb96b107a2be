package chat

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sara-platform/sara-hub/pkg/db/models"
)

// Repository persists chat traffic. Every routed message lands here before
// anything is published.
type Repository interface {
	Create(ctx context.Context, message *models.ChatMessage) error
	ListConversation(ctx context.Context, userID, peerID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a chat repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

// ListConversation returns the most recent messages exchanged between two
// users, oldest first so clients can render top-down.
func (r *repositoryImpl) ListConversation(ctx context.Context, userID, peerID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, peerID, peerID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
