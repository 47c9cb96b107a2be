package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind enumerates the fixed notification categories.
type NotificationKind string

const (
	NotificationInfo        NotificationKind = "info"
	NotificationSuccess     NotificationKind = "success"
	NotificationWarning     NotificationKind = "warning"
	NotificationError       NotificationKind = "error"
	NotificationAchievement NotificationKind = "achievement"
	NotificationSystem      NotificationKind = "system"
)

// IsValid reports whether the kind is one of the fixed enumeration values.
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationInfo, NotificationSuccess, NotificationWarning,
		NotificationError, NotificationAchievement, NotificationSystem:
		return true
	}
	return false
}

// Notification is created by collaborators (badge engine, schedulers) and
// only ever mutated by mark-read. The hub never deletes rows.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Kind        NotificationKind `gorm:"type:text;not null;default:'info'"`
	Title       string           `gorm:"type:text;not null"`
	Message     string           `gorm:"type:text;not null"`
	Read        bool             `gorm:"not null;default:false"`
	ReadAt      *time.Time       `gorm:"type:timestamptz"`
	ActionURL   *string          `gorm:"type:text"`
	ActionLabel *string          `gorm:"type:text"`
	CreatedBy   *uuid.UUID       `gorm:"type:uuid"`
	Priority    int              `gorm:"not null;default:1"`
	CreatedAt   time.Time        `gorm:"type:timestamptz;default:now();index"`
}
