// Package dedup is the short-TTL mutual-exclusion guard in front of the
// dispatch orchestrator. A failed acquire is not an error: it means a
// concurrent trigger already handled the same logical event.
package dedup

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Lock TTLs per trigger site.
const (
	PublishTTL = 30 * time.Second
	BatchTTL   = 15 * time.Second
	ResendTTL  = 5 * time.Minute
)

type Guard struct {
	Rdb *redis.Client
}

// TryAcquire performs an atomic set-if-absent with expiry. True means the
// caller won the window and may proceed.
func (g *Guard) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.Rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	log.Debug().Str("key", key).Bool("acquired", ok).Msg("dedup lock")
	return ok, nil
}

// PublishKey guards the draft->published dispatch of one invitation.
func PublishKey(invitationID uuid.UUID) string {
	return fmt.Sprintf("inv:%s:dispatch", invitationID)
}

// BatchKey guards one recipient-add batch. The recipient-id set is hashed
// order-independently so the same batch always maps to the same key while
// different batches never share one.
func BatchKey(invitationID uuid.UUID, recipientIDs []uuid.UUID) string {
	ids := make([]string, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("inv:%s:batch:%x", invitationID, h.Sum64())
}

// ResendKey throttles per-recipient re-sends after a contact-info update.
func ResendKey(invitationID, recipientID uuid.UUID) string {
	return fmt.Sprintf("inv:%s:resend:%s", invitationID, recipientID)
}

// ReminderKey guards the lazy one-shot reminder planning of an invitation.
func ReminderKey(invitationID uuid.UUID) string {
	return fmt.Sprintf("inv:%s:rem_sched", invitationID)
}
