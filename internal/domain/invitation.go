package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChannelContent holds per-channel content overrides written by schedule-send.
type ChannelContent struct {
	General      string `json:"general"`
	Email        string `json:"email"`
	SMS          string `json:"sms"`
	EmailSubject string `json:"email_subject"`
}

// ScheduleRequest is the last schedule selection ("now" or "later").
type ScheduleRequest struct {
	Mode        string     `json:"mode"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// DeliverySettings stores channel toggles plus the last-used content and
// schedule request, persisted as one JSON column.
type DeliverySettings struct {
	Email    bool            `json:"email"`
	SMS      bool            `json:"sms"`
	WhatsApp bool            `json:"whatsapp"`
	Content  ChannelContent  `json:"content"`
	Schedule ScheduleRequest `json:"schedule"`
}

// Invitation is an event announcement, the unit of publish/dispatch.
// Slug is assigned once and never changes.
type Invitation struct {
	InvitationID      uuid.UUID                               `gorm:"column:invitation_id;type:uuid;primaryKey" json:"invitation_id"`
	OwnerID           uuid.UUID                               `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Slug              string                                  `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Name              string                                  `gorm:"column:name;not null" json:"name"`
	Message           string                                  `gorm:"column:message" json:"message"`
	Location          string                                  `gorm:"column:location" json:"location"`
	Template          string                                  `gorm:"column:template;not null;default:'classic'" json:"template"`
	InvitationDate    time.Time                               `gorm:"column:invitation_date;not null" json:"invitation_date"`
	IsDraft           bool                                    `gorm:"column:is_draft;not null" json:"is_draft"`
	PublishedAt       *time.Time                              `gorm:"column:published_at" json:"published_at"`
	Reminders         bool                                    `gorm:"column:reminders;not null;default:false" json:"reminders"`
	ReminderConfig    datatypes.JSONSlice[int]                `gorm:"column:reminder_config" json:"reminder_config"`
	RemindersSent     int                                     `gorm:"column:reminders_sent;not null;default:0" json:"reminders_sent"`
	MaxReminders      int                                     `gorm:"column:max_reminders;not null;default:3" json:"max_reminders"`
	LastReminderSent  *time.Time                              `gorm:"column:last_reminder_sent" json:"last_reminder_sent"`
	Automation        bool                                    `gorm:"column:automation;not null;default:false" json:"automation"`
	DeliverySettings  datatypes.JSONType[DeliverySettings]    `gorm:"column:delivery_settings" json:"delivery_settings"`
	PasswordProtected bool                                    `gorm:"column:password_protected;not null;default:false" json:"password_protected"`
	PasswordHash      string                                  `gorm:"column:password_hash" json:"-"`
	Recipients        []Recipient                             `gorm:"many2many:invitation_recipients;" json:"recipients,omitempty"`
	CreatedAt         time.Time                               `json:"createdAt"`
	UpdatedAt         time.Time                               `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt                          `gorm:"index" json:"-"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.InvitationID == uuid.Nil {
		i.InvitationID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the event timestamp has passed.
func (i *Invitation) IsExpired(now time.Time) bool {
	return !i.InvitationDate.IsZero() && i.InvitationDate.Before(now)
}

// CanSend is the single dispatch gate: published, dated, not expired.
func (i *Invitation) CanSend(now time.Time) bool {
	return !i.IsDraft && !i.InvitationDate.IsZero() && !i.IsExpired(now)
}

// ReminderOffsets returns the configured minute offsets deduplicated,
// positive-only and sorted descending (longest lead time first). The
// descending order is load-bearing: when quota or max_reminders truncates
// the list, near-event offsets are the ones dropped.
func (i *Invitation) ReminderOffsets() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, m := range i.ReminderConfig {
		if m <= 0 {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if len(out) == 0 {
		out = []int{1440, 60, 30}
	}
	for a := 0; a < len(out); a++ {
		for b := a + 1; b < len(out); b++ {
			if out[b] > out[a] {
				out[a], out[b] = out[b], out[a]
			}
		}
	}
	return out
}
