package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"davetjet-backend/internal/domain"
	"davetjet-backend/internal/scheduler"
	"davetjet-backend/internal/senders"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSenders struct {
	mu        sync.Mutex
	emails    int
	sms       int
	whatsapps []string
	fail      error
}

func (s *fakeSenders) SendEmail(ctx context.Context, recipients []string, subject, text, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails++
	return s.fail
}

func (s *fakeSenders) SendSMS(ctx context.Context, numbers []string, message, header string) (*senders.SMSResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sms++
	if s.fail != nil {
		return &senders.SMSResult{Code: "30", Description: "rejected"}, s.fail
	}
	return &senders.SMSResult{Code: "00", JobID: "gw-1"}, nil
}

func (s *fakeSenders) SendWhatsApp(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whatsapps = append(s.whatsapps, to)
	return s.fail
}

func setupDelivererTest(t *testing.T) (*Deliverer, *fakeSenders, *gorm.DB, time.Time) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Invitation{}, &domain.Recipient{}))

	now := time.Now().Truncate(time.Second)
	fs := &fakeSenders{}
	d := &Deliverer{DB: db, Email: fs, SMS: fs, WhatsApp: fs, Now: func() time.Time { return now }}
	return d, fs, db, now
}

func deliverInvitation(t *testing.T, db *gorm.DB, eventIn time.Duration, draft bool) *domain.Invitation {
	t.Helper()
	inv := &domain.Invitation{
		OwnerID:        uuid.New(),
		Slug:           "inv-" + uuid.NewString()[:8],
		Name:           "Etkinlik",
		InvitationDate: time.Now().Add(eventIn),
		IsDraft:        draft,
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

func TestRun_SendsEmail(t *testing.T) {
	d, fs, db, _ := setupDelivererTest(t)
	inv := deliverInvitation(t, db, time.Hour, false)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j1", InvitationID: inv.InvitationID, Channel: scheduler.ChannelEmail,
		Kind: scheduler.KindInvite, Recipients: []string{"a@test.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fs.emails)
}

func TestRun_WhatsAppFansOutPerRecipient(t *testing.T) {
	d, fs, db, _ := setupDelivererTest(t)
	inv := deliverInvitation(t, db, time.Hour, false)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j2", InvitationID: inv.InvitationID, Channel: scheduler.ChannelWhatsApp,
		Kind: scheduler.KindInvite, Recipients: []string{"5461234567", "5321234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"5461234567", "5321234567"}, fs.whatsapps)
}

func TestRun_ExpiredReminderAbortsAsNoop(t *testing.T) {
	d, fs, db, _ := setupDelivererTest(t)
	inv := deliverInvitation(t, db, -time.Hour, false)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j3", InvitationID: inv.InvitationID, Channel: scheduler.ChannelEmail,
		Kind: scheduler.KindReminder, Recipients: []string{"a@test.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fs.emails)
}

func TestRun_ExpiredInviteAbortsAsNoop(t *testing.T) {
	d, fs, db, _ := setupDelivererTest(t)
	inv := deliverInvitation(t, db, -time.Hour, false)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j8", InvitationID: inv.InvitationID, Channel: scheduler.ChannelEmail,
		Kind: scheduler.KindInvite, Recipients: []string{"a@test.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fs.emails)
}

func TestRun_DraftAborts(t *testing.T) {
	d, fs, db, _ := setupDelivererTest(t)
	inv := deliverInvitation(t, db, time.Hour, true)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j4", InvitationID: inv.InvitationID, Channel: scheduler.ChannelSMS,
		Kind: scheduler.KindInvite, Recipients: []string{"5461234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fs.sms)
}

func TestRun_MissingInvitationCompletesQuietly(t *testing.T) {
	d, fs, _, _ := setupDelivererTest(t)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j5", InvitationID: uuid.New(), Channel: scheduler.ChannelEmail,
		Kind: scheduler.KindInvite, Recipients: []string{"a@test.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fs.emails)
}

func TestRun_SenderFailureIsTerminal(t *testing.T) {
	d, fs, db, _ := setupDelivererTest(t)
	fs.fail = errors.New("gateway down")
	inv := deliverInvitation(t, db, time.Hour, false)

	err := d.Run(context.Background(), scheduler.Job{
		ID: "j6", InvitationID: inv.InvitationID, Channel: scheduler.ChannelSMS,
		Kind: scheduler.KindInvite, Recipients: []string{"5461234567"},
	})
	assert.Error(t, err)
}

func TestOnDone_StampsLastReminderSent(t *testing.T) {
	d, _, db, now := setupDelivererTest(t)
	inv := deliverInvitation(t, db, time.Hour, false)

	d.OnDone(scheduler.Job{
		ID: "j7", InvitationID: inv.InvitationID, Kind: scheduler.KindReminder,
	}, nil)

	var reloaded domain.Invitation
	require.NoError(t, db.Where("invitation_id = ?", inv.InvitationID).First(&reloaded).Error)
	require.NotNil(t, reloaded.LastReminderSent)
	assert.WithinDuration(t, now, *reloaded.LastReminderSent, time.Second)
}

func TestOnDone_IgnoresInvitesAndFailures(t *testing.T) {
	d, _, db, _ := setupDelivererTest(t)
	inv := deliverInvitation(t, db, time.Hour, false)

	d.OnDone(scheduler.Job{InvitationID: inv.InvitationID, Kind: scheduler.KindInvite}, nil)
	d.OnDone(scheduler.Job{InvitationID: inv.InvitationID, Kind: scheduler.KindReminder}, errors.New("x"))

	var reloaded domain.Invitation
	require.NoError(t, db.Where("invitation_id = ?", inv.InvitationID).First(&reloaded).Error)
	assert.Nil(t, reloaded.LastReminderSent)
}
