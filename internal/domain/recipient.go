package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RSVP statuses.
const (
	RSVPPending = "pending"
	RSVPYes     = "yes"
	RSVPMaybe   = "maybe"
	RSVPNo      = "no"
)

// ValidRSVPStatus reports whether s is one of the four accepted statuses.
func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPPending, RSVPYes, RSVPMaybe, RSVPNo:
		return true
	}
	return false
}

// Recipient is an addressable person. PhoneNumber is stored raw and
// normalized only at dispatch time.
type Recipient struct {
	RecipientID uuid.UUID      `gorm:"column:recipient_id;type:uuid;primaryKey" json:"recipient_id"`
	OwnerID     uuid.UUID      `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Email       string         `gorm:"column:email" json:"email"`
	PhoneNumber string         `gorm:"column:phone_number" json:"phone_number"`
	Address     string         `gorm:"column:address" json:"address"`
	RSVPStatus  string         `gorm:"column:rsvp_status;not null;default:'pending'" json:"rsvp_status"`
	Invitations []Invitation   `gorm:"many2many:invitation_recipients;" json:"-"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Recipient) TableName() string {
	return "recipients"
}

func (r *Recipient) BeforeCreate(tx *gorm.DB) error {
	if r.RecipientID == uuid.Nil {
		r.RecipientID = uuid.New()
	}
	if r.RSVPStatus == "" {
		r.RSVPStatus = RSVPPending
	}
	return nil
}
