package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User owns invitations and carries the reminder-credit wallet.
type User struct {
	UserID          uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname        string         `gorm:"column:fullname;not null" json:"fullname"`
	Email           string         `gorm:"column:email;uniqueIndex;not null" json:"email"`
	APIKey          string         `gorm:"column:api_key;uniqueIndex;not null" json:"-"`
	ReminderCredits int            `gorm:"column:reminder_credits;not null;default:0" json:"reminder_credits"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
