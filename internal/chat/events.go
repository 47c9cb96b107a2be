package chat

import (
	"github.com/google/uuid"

	"github.com/sara-platform/sara-hub/pkg/db/models"
)

// Message is the wire shape delivered on chat topics.
type Message struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Text        string    `json:"text"`
	IsBot       bool      `json:"is_bot"`
}

func messageFromModel(m models.ChatMessage) Message {
	return Message{
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		IsBot:       m.IsBot,
	}
}
