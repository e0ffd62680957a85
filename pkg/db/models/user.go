package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the billing view of an account; identity lives with the auth front end.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UUID      uuid.UUID `gorm:"column:uuid;type:uuid;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Nickname  *string   `gorm:"column:nickname"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
