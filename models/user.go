// Package models contains domain entities and business models for the tag identity system
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a local identity auto-provisioned from identity-service token
// claims. The platform-wide key is the email address; this service never
// stores credentials.
type User struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Email    string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	Username string    `gorm:"size:255;not null;index:idx_users_username" json:"username"`
	IsActive *bool     `gorm:"default:true;index:idx_users_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Tags []NFCTag `gorm:"foreignKey:OwnerID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	Username      *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
