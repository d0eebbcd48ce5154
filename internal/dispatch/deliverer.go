package dispatch

import (
	"context"
	"errors"
	"time"

	"davetjet-backend/internal/domain"
	"davetjet-backend/internal/scheduler"
	"davetjet-backend/internal/senders"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deliverer executes fired jobs: it re-validates the invitation right
// before invoking the channel sender, so jobs for invitations that
// expired or disappeared after scheduling complete as no-ops.
type Deliverer struct {
	DB       *gorm.DB
	Email    senders.EmailSender
	SMS      senders.SMSSender
	WhatsApp senders.WhatsAppSender
	Now      func() time.Time
}

func (d *Deliverer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run is the scheduler runner. A sender failure marks the job Failed;
// there is no retry.
func (d *Deliverer) Run(ctx context.Context, job scheduler.Job) error {
	var inv domain.Invitation
	err := d.DB.WithContext(ctx).Where("invitation_id = ?", job.InvitationID).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debug().Str("job_id", job.ID).Msg("Invitation gone, job aborted")
			return nil
		}
		return err
	}
	if !inv.CanSend(d.now()) {
		log.Debug().Str("job_id", job.ID).Str("invitation", inv.Slug).Str("kind", string(job.Kind)).Msg("Invitation no longer sendable, job aborted")
		return nil
	}

	switch job.Channel {
	case scheduler.ChannelEmail:
		return d.Email.SendEmail(ctx, job.Recipients, job.Payload.Subject, job.Payload.Text, job.Payload.HTML)
	case scheduler.ChannelSMS:
		result, err := d.SMS.SendSMS(ctx, job.Recipients, job.Payload.Text, job.Payload.Header)
		if err != nil {
			if result != nil {
				log.Error().Str("job_id", job.ID).Str("code", result.Code).Str("description", result.Description).Msg("SMS gateway rejected batch")
			}
			return err
		}
		if result != nil {
			log.Info().Str("job_id", job.ID).Str("gateway_job", result.JobID).Msg("SMS batch accepted")
		}
		return nil
	case scheduler.ChannelWhatsApp:
		for _, to := range job.Recipients {
			if err := d.WhatsApp.SendWhatsApp(ctx, to, job.Payload.Text); err != nil {
				return err
			}
		}
		return nil
	}
	log.Error().Str("job_id", job.ID).Str("channel", string(job.Channel)).Msg("Unknown channel")
	return nil
}

// OnDone is the typed job-completion event: successful reminder jobs
// stamp last_reminder_sent on their invitation.
func (d *Deliverer) OnDone(job scheduler.Job, err error) {
	if err != nil || job.Kind != scheduler.KindReminder {
		return
	}
	now := d.now()
	res := d.DB.Model(&domain.Invitation{}).
		Where("invitation_id = ?", job.InvitationID).
		UpdateColumn("last_reminder_sent", now)
	if res.Error != nil {
		log.Error().Err(res.Error).Str("job_id", job.ID).Msg("last_reminder_sent update failed")
	}
}
