// Package quota tracks the per-user reminder-credit wallet.
package quota

import (
	"context"
	"errors"

	"davetjet-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrInsufficientQuota means the wallet does not cover the requested
// amount. The caller must skip the affected reminder batch entirely.
var ErrInsufficientQuota = errors.New("quota: insufficient reminder credits")

type Ledger struct {
	DB *gorm.DB
}

// Balance returns the remaining reminder credits for a user.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var user domain.User
	if err := l.DB.WithContext(ctx).Select("reminder_credits").Where("user_id = ?", userID).First(&user).Error; err != nil {
		return 0, err
	}
	return user.ReminderCredits, nil
}

// Consume atomically decrements the wallet by amount. The guard lives in
// the WHERE clause so two concurrent consumers can never both succeed when
// only one fits; the balance never goes negative.
func (l *Ledger) Consume(ctx context.Context, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}
	res := l.DB.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ? AND reminder_credits >= ?", userID, amount).
		UpdateColumn("reminder_credits", gorm.Expr("reminder_credits - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Warn().Str("user_id", userID.String()).Int("requested", amount).Msg("Insufficient reminder quota")
		return ErrInsufficientQuota
	}
	log.Info().Str("user_id", userID.String()).Int("consumed", amount).Msg("Reminder quota consumed")
	return nil
}
