package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sara-platform/sara-hub/pkg/db/models"
)

// BotUsername identifies the singleton automated responder record.
const BotUsername = "sara_bot"

// Repository resolves user identities for the hub. The bot singleton is the
// only row the hub ever writes.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetOrCreateBot(ctx context.Context) (*models.User, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a users repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repositoryImpl) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetOrCreateBot lazily creates the bot identity. Concurrent first calls
// converge on one row through the unique username constraint: insert with
// on-conflict-do-nothing, then fetch whichever row won.
func (r *repositoryImpl) GetOrCreateBot(ctx context.Context) (*models.User, error) {
	bot := models.User{
		ID:        uuid.New(),
		Username:  BotUsername,
		FirstName: "SARA",
		LastName:  "Bot",
		Email:     "sara-bot@localhost",
		Role:      "operador",
		IsActive:  true,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).
		Create(&bot).Error
	if err != nil {
		return nil, err
	}

	var winner models.User
	if err := r.db.WithContext(ctx).First(&winner, "username = ?", BotUsername).Error; err != nil {
		return nil, err
	}
	return &winner, nil
}
