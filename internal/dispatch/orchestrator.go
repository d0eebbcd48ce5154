// Package dispatch is the state machine between invitation lifecycle
// events and scheduled channel deliveries. The former save-signal hooks
// are reframed as the explicit entry points OnPublish, OnRecipientsAdded,
// OnRecipientUpdated and OnManualScheduleSend, invoked by the service
// layer at the exact points those events occur.
//
// Failures inside the dispatch path are logged and reported, never
// propagated: notification delivery must not abort the business
// transaction that triggered it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"davetjet-backend/internal/dedup"
	"davetjet-backend/internal/domain"
	"davetjet-backend/internal/phone"
	"davetjet-backend/internal/quota"
	"davetjet-backend/internal/render"
	"davetjet-backend/internal/scheduler"
	"davetjet-backend/internal/securelink"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultDebounce delays immediate sends slightly so rapid consecutive
// saves collapse into one delivery window.
const defaultDebounce = 10 * time.Second

// SkippedRecipient records one recipient excluded from a channel batch.
type SkippedRecipient struct {
	RecipientID uuid.UUID         `json:"recipient_id"`
	Channel     scheduler.Channel `json:"channel"`
	Reason      string            `json:"reason"`
}

// Report is the owner-facing outcome of one trigger: what was scheduled
// and which recoverable conditions occurred.
type Report struct {
	Deduplicated       bool               `json:"deduplicated"`
	JobsScheduled      int                `json:"jobs_scheduled"`
	RemindersScheduled int                `json:"reminders_scheduled"`
	Skipped            []SkippedRecipient `json:"skipped,omitempty"`
	Warnings           []string           `json:"warnings,omitempty"`
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ChannelToggles carries optional per-channel enablement from a manual
// schedule-send request; nil fields keep the stored setting.
type ChannelToggles struct {
	Email    *bool `json:"email"`
	SMS      *bool `json:"sms"`
	WhatsApp *bool `json:"whatsapp"`
}

// ScheduleSendRequest is the owner-initiated "send now / send later" input.
type ScheduleSendRequest struct {
	Channels     *ChannelToggles `json:"channels"`
	Message      string          `json:"message"`
	EmailMessage string          `json:"email_message"`
	SMSMessage   string          `json:"sms_message"`
	EmailSubject string          `json:"email_subject"`
	Mode         string          `json:"mode"` // "now" | "later"
	ScheduledAt  *time.Time      `json:"scheduled_at"`
}

type Orchestrator struct {
	DB       *gorm.DB
	Guard    *dedup.Guard
	Quota    *quota.Ledger
	Sched    scheduler.Queue
	Renderer *render.Renderer
	Links    *securelink.Builder
	Debounce time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) debounce() time.Duration {
	if o.Debounce > 0 {
		return o.Debounce
	}
	return defaultDebounce
}

func (o *Orchestrator) loadInvitation(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := o.DB.WithContext(ctx).Preload("Recipients").Where("invitation_id = ?", id).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// OnPublish handles the draft->published transition: immediate sends to
// every current recipient on each enabled channel, then lazy reminder
// planning. Concurrent duplicate triggers lose the dedup race silently.
func (o *Orchestrator) OnPublish(ctx context.Context, invitationID uuid.UUID) (*Report, error) {
	report := &Report{}
	inv, err := o.loadInvitation(ctx, invitationID)
	if err != nil {
		return report, err
	}
	if !inv.CanSend(o.now()) {
		log.Debug().Str("invitation", inv.Slug).Bool("is_draft", inv.IsDraft).Msg("Publish dispatch skipped: cannot send")
		return report, nil
	}

	ok, err := o.Guard.TryAcquire(ctx, dedup.PublishKey(inv.InvitationID), dedup.PublishTTL)
	if err != nil {
		return report, err
	}
	if !ok {
		report.Deduplicated = true
		log.Debug().Str("invitation", inv.Slug).Msg("Publish dispatch skipped: locked")
		return report, nil
	}

	dueAt := o.now().Add(o.debounce())
	o.scheduleImmediate(inv, inv.Recipients, dueAt, report)
	o.scheduleReminders(ctx, inv, report)
	return report, nil
}

// OnRecipientsAdded sends the invitation to newly attached recipients
// only, guarded by a lock keyed on the exact recipient-id set.
func (o *Orchestrator) OnRecipientsAdded(ctx context.Context, invitationID uuid.UUID, recipientIDs []uuid.UUID) (*Report, error) {
	report := &Report{}
	if len(recipientIDs) == 0 {
		return report, nil
	}
	inv, err := o.loadInvitation(ctx, invitationID)
	if err != nil {
		return report, err
	}
	if !inv.CanSend(o.now()) {
		log.Debug().Str("invitation", inv.Slug).Msg("Recipient-add dispatch skipped: cannot send")
		return report, nil
	}

	ok, err := o.Guard.TryAcquire(ctx, dedup.BatchKey(inv.InvitationID, recipientIDs), dedup.BatchTTL)
	if err != nil {
		return report, err
	}
	if !ok {
		report.Deduplicated = true
		log.Debug().Str("invitation", inv.Slug).Msg("Recipient-add dispatch skipped: locked")
		return report, nil
	}

	var added []domain.Recipient
	if err := o.DB.WithContext(ctx).Where("recipient_id IN ?", recipientIDs).Find(&added).Error; err != nil {
		return report, err
	}

	o.scheduleImmediate(inv, added, o.now().Add(o.debounce()), report)
	return report, nil
}

// OnRecipientUpdated re-sends to one recipient across every published
// invitation they are linked to, throttled per (invitation, recipient).
func (o *Orchestrator) OnRecipientUpdated(ctx context.Context, recipientID uuid.UUID) (*Report, error) {
	report := &Report{}

	var rec domain.Recipient
	err := o.DB.WithContext(ctx).
		Preload("Invitations", "is_draft = ?", false).
		Where("recipient_id = ?", recipientID).
		First(&rec).Error
	if err != nil {
		return report, err
	}

	for i := range rec.Invitations {
		inv := rec.Invitations[i]
		if !inv.CanSend(o.now()) {
			log.Debug().Str("invitation", inv.Slug).Msg("Recipient-update resend skipped: cannot send")
			continue
		}
		ok, err := o.Guard.TryAcquire(ctx, dedup.ResendKey(inv.InvitationID, rec.RecipientID), dedup.ResendTTL)
		if err != nil {
			log.Error().Err(err).Str("invitation", inv.Slug).Msg("Resend lock failed")
			continue
		}
		if !ok {
			report.Deduplicated = true
			log.Debug().Str("invitation", inv.Slug).Str("recipient", rec.RecipientID.String()).Msg("Resend throttled")
			continue
		}
		o.scheduleImmediate(&inv, []domain.Recipient{rec}, o.now().Add(o.debounce()), report)
	}
	return report, nil
}

// OnManualScheduleSend persists the owner's channel/content/schedule
// selection onto the invitation, publishes it if still a draft, and runs
// the same dedup-guarded dispatch path — so re-POSTing the identical
// request does not double-queue.
func (o *Orchestrator) OnManualScheduleSend(ctx context.Context, invitationID uuid.UUID, req ScheduleSendRequest) (*Report, error) {
	report := &Report{}
	inv, err := o.loadInvitation(ctx, invitationID)
	if err != nil {
		return report, err
	}

	ds := inv.DeliverySettings.Data()
	if req.Channels != nil {
		if req.Channels.Email != nil {
			ds.Email = *req.Channels.Email
		}
		if req.Channels.SMS != nil {
			ds.SMS = *req.Channels.SMS
		}
		if req.Channels.WhatsApp != nil {
			ds.WhatsApp = *req.Channels.WhatsApp
		}
	}

	general := firstNonEmpty(req.Message, inv.Message)
	ds.Content = domain.ChannelContent{
		General:      general,
		EmailSubject: req.EmailSubject,
	}
	// Content only travels on channels that are actually enabled.
	if ds.Email {
		ds.Content.Email = firstNonEmpty(req.EmailMessage, general)
	}
	if ds.SMS {
		ds.Content.SMS = firstNonEmpty(req.SMSMessage, general)
	}

	mode := req.Mode
	if mode != "later" {
		mode = "now"
	}
	ds.Schedule = domain.ScheduleRequest{Mode: mode, ScheduledAt: req.ScheduledAt}

	now := o.now()
	inv.DeliverySettings = datatypes.NewJSONType(ds)
	updates := map[string]interface{}{
		"delivery_settings": inv.DeliverySettings,
	}
	if inv.IsDraft {
		inv.IsDraft = false
		inv.PublishedAt = &now
		updates["is_draft"] = false
		updates["published_at"] = now
	}
	if err := o.DB.WithContext(ctx).Model(&domain.Invitation{}).
		Where("invitation_id = ?", inv.InvitationID).
		Updates(updates).Error; err != nil {
		return report, err
	}

	if !inv.CanSend(now) {
		log.Debug().Str("invitation", inv.Slug).Msg("Manual schedule-send skipped: cannot send")
		return report, nil
	}

	ok, err := o.Guard.TryAcquire(ctx, dedup.PublishKey(inv.InvitationID), dedup.PublishTTL)
	if err != nil {
		return report, err
	}
	if !ok {
		report.Deduplicated = true
		log.Debug().Str("invitation", inv.Slug).Msg("Manual schedule-send skipped: locked")
		return report, nil
	}

	dueAt := now.Add(o.debounce())
	if mode == "later" && req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		dueAt = *req.ScheduledAt
	}
	o.scheduleImmediate(inv, inv.Recipients, dueAt, report)
	o.scheduleReminders(ctx, inv, report)
	return report, nil
}

// scheduleImmediate renders and enqueues one job per enabled channel for
// the recipients that have a usable address on that channel.
func (o *Orchestrator) scheduleImmediate(inv *domain.Invitation, recipients []domain.Recipient, dueAt time.Time, report *Report) {
	if len(recipients) == 0 {
		log.Debug().Str("invitation", inv.Slug).Msg("Immediate send skipped: no recipients")
		return
	}
	ds := inv.DeliverySettings.Data()
	link := o.Links.EntryURL(inv)

	if ds.Email {
		emails := make([]string, 0, len(recipients))
		for _, r := range recipients {
			if r.Email != "" {
				emails = append(emails, r.Email)
			}
		}
		if len(emails) > 0 {
			body := o.renderEmailBody(inv, ds, link)
			o.enqueue(inv, scheduler.ChannelEmail, scheduler.KindInvite, emails, dueAt, scheduler.Payload{
				Subject: o.emailSubject(inv, ds),
				HTML:    body,
			}, report)
		} else {
			log.Debug().Str("invitation", inv.Slug).Msg("Email batch empty")
		}
	}

	phones := o.normalizePhones(inv, recipients, report, ds.SMS || ds.WhatsApp)

	if ds.SMS && len(phones) > 0 {
		o.enqueue(inv, scheduler.ChannelSMS, scheduler.KindInvite, phones, dueAt, scheduler.Payload{
			Text: o.renderSMSBody(inv, ds, link),
		}, report)
	}
	if ds.WhatsApp && len(phones) > 0 {
		o.enqueue(inv, scheduler.ChannelWhatsApp, scheduler.KindInvite, phones, dueAt, scheduler.Payload{
			Text: o.renderSMSBody(inv, ds, link),
		}, report)
	}
}

// scheduleReminders plans the forward-dated reminder jobs once per
// publish: future offsets only, capped by the remaining allowance, the
// whole batch skipped when quota does not cover it.
func (o *Orchestrator) scheduleReminders(ctx context.Context, inv *domain.Invitation, report *Report) {
	if !inv.Reminders {
		log.Debug().Str("invitation", inv.Slug).Msg("Reminders off")
		return
	}
	// Once planning has run the automation flag stays set, so later
	// triggers (re-saves, repeat schedule-send) never consume quota again.
	if inv.Automation {
		log.Debug().Str("invitation", inv.Slug).Msg("Reminder automation already established")
		return
	}
	now := o.now()
	if !inv.CanSend(now) {
		return
	}

	ok, err := o.Guard.TryAcquire(ctx, dedup.ReminderKey(inv.InvitationID), dedup.PublishTTL)
	if err != nil {
		log.Error().Err(err).Str("invitation", inv.Slug).Msg("Reminder lock failed")
		return
	}
	if !ok {
		log.Debug().Str("invitation", inv.Slug).Msg("Reminder planning skipped: locked")
		return
	}

	// Offsets stay sorted descending; when the allowance truncates the
	// list the near-event reminders are the ones dropped.
	var future []int
	for _, m := range inv.ReminderOffsets() {
		if inv.InvitationDate.Add(-time.Duration(m) * time.Minute).After(now) {
			future = append(future, m)
		}
	}
	if len(future) == 0 {
		log.Info().Str("invitation", inv.Slug).Msg("No future reminder offsets to schedule")
		return
	}

	allowance := inv.MaxReminders - inv.RemindersSent
	if allowance <= 0 {
		log.Debug().Str("invitation", inv.Slug).Msg("Reminder allowance exhausted")
		return
	}
	if len(future) > allowance {
		future = future[:allowance]
	}

	slots := len(future)
	if err := o.Quota.Consume(ctx, inv.OwnerID, slots); err != nil {
		if errors.Is(err, quota.ErrInsufficientQuota) {
			report.warn("reminder scheduling skipped: insufficient reminder credits (need %d)", slots)
		} else {
			log.Error().Err(err).Str("invitation", inv.Slug).Msg("Quota consume failed")
			report.warn("reminder scheduling skipped: quota check failed")
		}
		return
	}

	ds := inv.DeliverySettings.Data()
	link := o.Links.EntryURL(inv)

	emails := make([]string, 0, len(inv.Recipients))
	for _, r := range inv.Recipients {
		if r.Email != "" {
			emails = append(emails, r.Email)
		}
	}
	phones := o.normalizePhones(inv, inv.Recipients, nil, ds.SMS || ds.WhatsApp)

	for _, m := range future {
		runAt := inv.InvitationDate.Add(-time.Duration(m) * time.Minute)
		if ds.Email && len(emails) > 0 {
			o.enqueue(inv, scheduler.ChannelEmail, scheduler.KindReminder, emails, runAt, scheduler.Payload{
				Subject: o.Renderer.ReminderSubject(inv),
				HTML:    o.Renderer.ReminderEmail(inv, link),
			}, report)
		}
		if ds.SMS && len(phones) > 0 {
			o.enqueue(inv, scheduler.ChannelSMS, scheduler.KindReminder, phones, runAt, scheduler.Payload{
				Text: o.Renderer.SMS(inv, link),
			}, report)
		}
		if ds.WhatsApp && len(phones) > 0 {
			o.enqueue(inv, scheduler.ChannelWhatsApp, scheduler.KindReminder, phones, runAt, scheduler.Payload{
				Text: o.Renderer.SMS(inv, link),
			}, report)
		}
		log.Info().Str("invitation", inv.Slug).Int("offset_min", m).Time("run_at", runAt).Msg("Reminder scheduled")
	}

	res := o.DB.WithContext(ctx).Model(&domain.Invitation{}).
		Where("invitation_id = ?", inv.InvitationID).
		Updates(map[string]interface{}{
			"reminders_sent": gorm.Expr("reminders_sent + ?", slots),
			"automation":     true,
		})
	if res.Error != nil {
		log.Error().Err(res.Error).Str("invitation", inv.Slug).Msg("Reminder counters update failed")
	}
	report.RemindersScheduled = slots
}

func (o *Orchestrator) enqueue(inv *domain.Invitation, channel scheduler.Channel, kind scheduler.Kind, recipients []string, dueAt time.Time, payload scheduler.Payload, report *Report) {
	job := scheduler.Job{
		ID:           scheduler.JobID(inv.InvitationID, channel, recipients, dueAt),
		InvitationID: inv.InvitationID,
		Channel:      channel,
		Kind:         kind,
		Recipients:   recipients,
		Payload:      payload,
		DueAt:        dueAt,
	}
	if err := o.Sched.Schedule(job); err != nil {
		log.Error().Err(err).Str("invitation", inv.Slug).Str("channel", string(channel)).Msg("Job enqueue failed")
		if report != nil {
			report.warn("%s delivery could not be scheduled", channel)
		}
		return
	}
	if report != nil {
		report.JobsScheduled++
	}
}

// normalizePhones canonicalizes recipient phones, recording failures on
// the report without aborting the batch. When no phone channel is
// enabled it does no work.
func (o *Orchestrator) normalizePhones(inv *domain.Invitation, recipients []domain.Recipient, report *Report, needed bool) []string {
	if !needed {
		return nil
	}
	phones := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.PhoneNumber == "" {
			continue
		}
		p, err := phone.Normalize(r.PhoneNumber)
		if err != nil {
			log.Debug().Str("invitation", inv.Slug).Str("recipient", r.RecipientID.String()).Msg("Phone normalization failed")
			if report != nil {
				report.Skipped = append(report.Skipped, SkippedRecipient{
					RecipientID: r.RecipientID,
					Channel:     scheduler.ChannelSMS,
					Reason:      "phone normalization failed",
				})
				report.warn("recipient %s excluded from SMS batch: unusable phone number", r.Name)
			}
			continue
		}
		phones = append(phones, p)
	}
	return phones
}

func (o *Orchestrator) emailSubject(inv *domain.Invitation, ds domain.DeliverySettings) string {
	if ds.Content.EmailSubject != "" {
		return ds.Content.EmailSubject
	}
	return o.Renderer.EmailSubject(inv)
}

// renderEmailBody applies the per-channel content override by swapping
// the invitation message before rendering.
func (o *Orchestrator) renderEmailBody(inv *domain.Invitation, ds domain.DeliverySettings, link string) string {
	if ds.Content.Email != "" {
		override := *inv
		override.Message = ds.Content.Email
		return o.Renderer.Email(&override, link)
	}
	return o.Renderer.Email(inv, link)
}

func (o *Orchestrator) renderSMSBody(inv *domain.Invitation, ds domain.DeliverySettings, link string) string {
	if ds.Content.SMS != "" {
		override := *inv
		override.Message = ds.Content.SMS
		return o.Renderer.SMS(&override, link)
	}
	return o.Renderer.SMS(inv, link)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
