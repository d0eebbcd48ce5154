package recipients

import (
	"context"
	"errors"

	"davetjet-backend/internal/dispatch"
	"davetjet-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("Recipient not found")
	ErrInvitationNotFound = errors.New("Invitation not found")
)

type Service struct {
	DB   *gorm.DB
	Orch *dispatch.Orchestrator
}

type CreateInput struct {
	OwnerID     uuid.UUID
	Name        string
	Email       string
	PhoneNumber string
	Address     string
}

func (s *Service) CreateRecipient(ctx context.Context, in CreateInput) (*domain.Recipient, error) {
	rec := &domain.Recipient{
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Address:     in.Address,
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetRecipient(ctx context.Context, ownerID, id uuid.UUID) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := s.DB.WithContext(ctx).Where("recipient_id = ? AND owner_id = ?", id, ownerID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Service) ListRecipients(ctx context.Context, ownerID uuid.UUID) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&out).Error
	return out, err
}

type UpdateInput struct {
	Name        *string
	Email       *string
	PhoneNumber *string
	Address     *string
}

// UpdateRecipient saves contact edits and, when the reachable address
// changed, re-sends the invitation across the recipient's published
// invitations through the throttled resend path.
func (s *Service) UpdateRecipient(ctx context.Context, ownerID, id uuid.UUID, in UpdateInput) (*domain.Recipient, *dispatch.Report, error) {
	rec, err := s.GetRecipient(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	contactChanged := false
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Email != nil && *in.Email != rec.Email {
		updates["email"] = *in.Email
		contactChanged = true
	}
	if in.PhoneNumber != nil && *in.PhoneNumber != rec.PhoneNumber {
		updates["phone_number"] = *in.PhoneNumber
		contactChanged = true
	}
	if in.Address != nil {
		updates["address"] = *in.Address
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&domain.Recipient{}).
			Where("recipient_id = ?", rec.RecipientID).Updates(updates).Error; err != nil {
			return nil, nil, err
		}
	}

	report := &dispatch.Report{}
	if contactChanged {
		report, err = s.Orch.OnRecipientUpdated(ctx, rec.RecipientID)
		if err != nil {
			return nil, nil, err
		}
	}
	rec, err = s.GetRecipient(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, report, nil
}

func (s *Service) DeleteRecipient(ctx context.Context, ownerID, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("recipient_id = ? AND owner_id = ?", id, ownerID).Delete(&domain.Recipient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachRecipients links recipients to an invitation and triggers the
// batch-guarded send to the newly attached set only.
func (s *Service) AttachRecipients(ctx context.Context, ownerID, invitationID uuid.UUID, recipientIDs []uuid.UUID) (*dispatch.Report, error) {
	var inv domain.Invitation
	err := s.DB.WithContext(ctx).Preload("Recipients").
		Where("invitation_id = ? AND owner_id = ?", invitationID, ownerID).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}

	existing := make(map[uuid.UUID]bool, len(inv.Recipients))
	for _, r := range inv.Recipients {
		existing[r.RecipientID] = true
	}

	var fresh []uuid.UUID
	for _, id := range recipientIDs {
		if !existing[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return &dispatch.Report{}, nil
	}

	var recs []domain.Recipient
	if err := s.DB.WithContext(ctx).
		Where("recipient_id IN ? AND owner_id = ?", fresh, ownerID).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) != len(fresh) {
		return nil, ErrNotFound
	}

	if err := s.DB.WithContext(ctx).Model(&inv).Association("Recipients").Append(&recs); err != nil {
		return nil, err
	}

	return s.Orch.OnRecipientsAdded(ctx, inv.InvitationID, fresh)
}

// DetachRecipient unlinks a recipient from an invitation. Pending jobs
// still carry the old batch; the fire-time revalidation path does not
// re-read attachments, so removal only affects future triggers.
func (s *Service) DetachRecipient(ctx context.Context, ownerID, invitationID, recipientID uuid.UUID) error {
	var inv domain.Invitation
	err := s.DB.WithContext(ctx).Where("invitation_id = ? AND owner_id = ?", invitationID, ownerID).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		return err
	}
	rec, err := s.GetRecipient(ctx, ownerID, recipientID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Model(&inv).Association("Recipients").Delete(rec)
}
