package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"davetjet-backend/internal/dispatch"
	"davetjet-backend/internal/domain"
	"davetjet-backend/internal/securelink"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("Invitation not found")
	ErrAlreadyPublished = errors.New("Invitation is already published")
	ErrExpired          = errors.New("Invitation date has passed")
	ErrAccessDenied     = errors.New("Access denied")
)

type Service struct {
	DB    *gorm.DB
	Orch  *dispatch.Orchestrator
	Links *securelink.Builder
}

type CreateInput struct {
	OwnerID        uuid.UUID
	Name           string
	Message        string
	Location       string
	Template       string
	InvitationDate time.Time
	Reminders      bool
	ReminderConfig []int
	MaxReminders   int
	Password       string
}

func (s *Service) CreateInvitation(ctx context.Context, in CreateInput) (*domain.Invitation, error) {
	template := in.Template
	if template == "" {
		template = "classic"
	}
	maxReminders := in.MaxReminders
	if maxReminders <= 0 {
		maxReminders = 3
	}

	inv := &domain.Invitation{
		OwnerID:        in.OwnerID,
		Slug:           s.uniqueSlug(ctx, in.Name),
		Name:           in.Name,
		Message:        in.Message,
		Location:       in.Location,
		Template:       template,
		InvitationDate: in.InvitationDate,
		IsDraft:        true,
		Reminders:      in.Reminders,
		ReminderConfig: datatypes.NewJSONSlice(in.ReminderConfig),
		MaxReminders:   maxReminders,
		DeliverySettings: datatypes.NewJSONType(domain.DeliverySettings{
			Email: true,
		}),
	}
	if in.Password != "" {
		hash, err := securelink.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		inv.PasswordProtected = true
		inv.PasswordHash = hash
	}
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetInvitation(ctx context.Context, ownerID, id uuid.UUID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := s.DB.WithContext(ctx).Preload("Recipients").
		Where("invitation_id = ? AND owner_id = ?", id, ownerID).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Service) ListInvitations(ctx context.Context, ownerID uuid.UUID) ([]domain.Invitation, error) {
	var out []domain.Invitation
	err := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&out).Error
	return out, err
}

type UpdateInput struct {
	Name           *string
	Message        *string
	Location       *string
	Template       *string
	InvitationDate *time.Time
	Reminders      *bool
	ReminderConfig []int
	Password       *string
}

// UpdateInvitation edits mutable fields. The slug never changes and the
// event timestamp is locked once published.
func (s *Service) UpdateInvitation(ctx context.Context, ownerID, id uuid.UUID, in UpdateInput) (*domain.Invitation, error) {
	inv, err := s.GetInvitation(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Message != nil {
		updates["message"] = *in.Message
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if in.Template != nil {
		updates["template"] = *in.Template
	}
	if in.InvitationDate != nil && inv.IsDraft {
		updates["invitation_date"] = *in.InvitationDate
	}
	if in.Reminders != nil {
		updates["reminders"] = *in.Reminders
	}
	if in.ReminderConfig != nil {
		updates["reminder_config"] = datatypes.NewJSONSlice(in.ReminderConfig)
	}
	if in.Password != nil {
		if *in.Password == "" {
			updates["password_protected"] = false
			updates["password_hash"] = ""
		} else {
			hash, err := securelink.HashPassword(*in.Password)
			if err != nil {
				return nil, err
			}
			updates["password_protected"] = true
			updates["password_hash"] = hash
		}
	}
	if len(updates) == 0 {
		return inv, nil
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).
		Where("invitation_id = ?", inv.InvitationID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetInvitation(ctx, ownerID, id)
}

func (s *Service) DeleteInvitation(ctx context.Context, ownerID, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("invitation_id = ? AND owner_id = ?", id, ownerID).Delete(&domain.Invitation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Publish performs the one-time draft to published transition and hands
// off to the dispatch orchestrator. Owner-visible dispatch warnings
// travel back on the report.
func (s *Service) Publish(ctx context.Context, ownerID, id uuid.UUID) (*dispatch.Report, error) {
	inv, err := s.GetInvitation(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !inv.IsDraft {
		return nil, ErrAlreadyPublished
	}
	if inv.IsExpired(time.Now()) {
		return nil, ErrExpired
	}

	if err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).
		Where("invitation_id = ?", inv.InvitationID).
		Updates(map[string]interface{}{"is_draft": false, "published_at": time.Now()}).Error; err != nil {
		return nil, err
	}

	return s.Orch.OnPublish(ctx, inv.InvitationID)
}

// ScheduleSend is the owner-initiated "send now / send later" entry point.
func (s *Service) ScheduleSend(ctx context.Context, ownerID, id uuid.UUID, req dispatch.ScheduleSendRequest) (*dispatch.Report, error) {
	if _, err := s.GetInvitation(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.Orch.OnManualScheduleSend(ctx, id, req)
}

// GetBySlug loads a published invitation for the public page.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := s.DB.WithContext(ctx).Preload("Recipients").
		Where("slug = ? AND is_draft = ?", slug, false).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// CheckAccess gates a protected invitation page: a valid access token or
// the correct password grants entry.
func (s *Service) CheckAccess(ctx context.Context, slug, token, password string) (*domain.Invitation, error) {
	inv, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !inv.PasswordProtected {
		return inv, nil
	}
	if token != "" && s.Links.Validate(inv, token) {
		return inv, nil
	}
	if password != "" && securelink.CheckPassword(inv, password) {
		return inv, nil
	}
	return nil, ErrAccessDenied
}

// SubmitRSVP records a recipient's response on a published invitation.
// The recipient must already be attached to the invitation.
func (s *Service) SubmitRSVP(ctx context.Context, slug string, recipientID uuid.UUID, status string) error {
	if !domain.ValidRSVPStatus(status) || status == domain.RSVPPending {
		return fmt.Errorf("invalid RSVP status %q", status)
	}
	inv, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}

	linked := false
	for _, r := range inv.Recipients {
		if r.RecipientID == recipientID {
			linked = true
			break
		}
	}
	if !linked {
		return ErrNotFound
	}

	return s.DB.WithContext(ctx).Model(&domain.Recipient{}).
		Where("recipient_id = ?", recipientID).
		UpdateColumn("rsvp_status", status).Error
}

// uniqueSlug derives a URL slug from the event name, suffixing on
// collision. Slugs are assigned once at creation and never rewritten.
func (s *Service) uniqueSlug(ctx context.Context, name string) string {
	base := slugify(name)
	if base == "" {
		base = "davet"
	}
	slug := base
	for i := 0; i < 4; i++ {
		var count int64
		s.DB.WithContext(ctx).Model(&domain.Invitation{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	}
	return slug
}

var turkishReplacer = strings.NewReplacer(
	"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
	"Ç", "c", "Ğ", "g", "İ", "i", "Ö", "o", "Ş", "s", "Ü", "u",
)

func slugify(name string) string {
	name = strings.ToLower(turkishReplacer.Replace(strings.TrimSpace(name)))
	var b strings.Builder
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
