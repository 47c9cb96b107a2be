package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sara-platform/sara-hub/pkg/db/models"
)

func setupChatTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS chat_messages (
  id TEXT PRIMARY KEY,
  sender_id TEXT NOT NULL,
  recipient_id TEXT NOT NULL,
  text TEXT NOT NULL,
  is_bot INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestCreateAssignsID(t *testing.T) {
	db := setupChatTestDB(t)
	repo := NewRepository(db)

	msg := models.ChatMessage{SenderID: uuid.New(), RecipientID: uuid.New(), Text: "hola"}
	require.NoError(t, repo.Create(context.Background(), &msg))
	assert.NotEqual(t, uuid.Nil, msg.ID)
}

func TestListConversationBothDirectionsOldestFirst(t *testing.T) {
	db := setupChatTestDB(t)
	repo := NewRepository(db)

	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := func(sender, recipient uuid.UUID, text string, offset time.Duration) {
		msg := models.ChatMessage{
			ID: uuid.New(), SenderID: sender, RecipientID: recipient,
			Text: text, CreatedAt: base.Add(offset),
		}
		require.NoError(t, db.Create(&msg).Error)
	}
	seed(alice, bob, "hola bob", 0)
	seed(bob, alice, "hola alice", time.Minute)
	seed(alice, carol, "hola carol", 2*time.Minute)
	seed(alice, bob, "¿todo bien?", 3*time.Minute)

	rows, err := repo.ListConversation(context.Background(), alice, bob, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "hola bob", rows[0].Text)
	assert.Equal(t, "hola alice", rows[1].Text)
	assert.Equal(t, "¿todo bien?", rows[2].Text)
}

func TestListConversationLimitKeepsNewest(t *testing.T) {
	db := setupChatTestDB(t)
	repo := NewRepository(db)

	alice := uuid.New()
	bob := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := models.ChatMessage{
			ID: uuid.New(), SenderID: alice, RecipientID: bob,
			Text: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&msg).Error)
	}

	rows, err := repo.ListConversation(context.Background(), alice, bob, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "d", rows[0].Text)
	assert.Equal(t, "e", rows[1].Text)
}
