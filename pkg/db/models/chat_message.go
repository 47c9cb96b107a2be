package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is immutable once written. IsBot is true when either party is
// the automated responder. Conversation order is CreatedAt ascending.
type ChatMessage struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SenderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index"`
	Text        string    `gorm:"type:text;not null"`
	IsBot       bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"type:timestamptz;default:now();index"`
}
