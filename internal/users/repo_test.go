package users

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sara-platform/sara-hub/pkg/db/models"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'operador',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestGetOrCreateBotIsIdempotent(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	first, err := repo.GetOrCreateBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BotUsername, first.Username)
	assert.NotEqual(t, uuid.Nil, first.ID)

	second, err := repo.GetOrCreateBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", BotUsername).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateBotConcurrentCallsConverge(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]struct{}{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot, err := repo.GetOrCreateBot(context.Background())
			if err != nil {
				// sqlite serializes writers; a busy error here would fail
				// the row-count assertion below anyway.
				return
			}
			mu.Lock()
			ids[bot.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, len(ids), 1)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", BotUsername).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetByIDAndExists(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	user := models.User{ID: uuid.New(), Username: "maria", Role: "operador", IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	got, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", got.Username)

	ok, err := repo.Exists(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
