package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the platform identity record. The hub reads users to resolve
// senders and recipients; the only row it ever creates is the bot singleton.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username  string    `gorm:"type:text;not null;uniqueIndex"`
	FirstName string    `gorm:"type:text"`
	LastName  string    `gorm:"type:text"`
	Email     string    `gorm:"type:text"`
	Role      string    `gorm:"type:text;not null;default:'operador'"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;default:now()"`
}
