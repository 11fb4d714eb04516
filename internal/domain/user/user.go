package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Name         string    `gorm:"not null;column:name" json:"name"`
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	IsSystem     bool      `gorm:"not null;default:false;column:is_system" json:"is_system"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "user" }
