package quota

import (
	"context"
	"testing"

	"davetjet-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedgerTest(t *testing.T, credits int) (*Ledger, uuid.UUID) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}))

	user := &domain.User{Fullname: "Owner", Email: "owner@test.com", APIKey: "key", ReminderCredits: credits}
	require.NoError(t, db.Create(user).Error)
	return &Ledger{DB: db}, user.UserID
}

func TestBalance(t *testing.T) {
	ledger, userID := setupLedgerTest(t, 7)
	bal, err := ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 7, bal)
}

func TestConsume_Decrements(t *testing.T) {
	ledger, userID := setupLedgerTest(t, 5)
	require.NoError(t, ledger.Consume(context.Background(), userID, 3))

	bal, err := ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, bal)
}

func TestConsume_InsufficientLeavesBalance(t *testing.T) {
	ledger, userID := setupLedgerTest(t, 2)
	err := ledger.Consume(context.Background(), userID, 3)
	assert.ErrorIs(t, err, ErrInsufficientQuota)

	bal, err := ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, bal)
}

func TestConsume_ZeroIsNoop(t *testing.T) {
	ledger, userID := setupLedgerTest(t, 2)
	require.NoError(t, ledger.Consume(context.Background(), userID, 0))

	bal, err := ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, bal)
}

func TestConsume_NeverNegative(t *testing.T) {
	ledger, userID := setupLedgerTest(t, 3)
	ctx := context.Background()

	// Only one of these two can succeed with 3 credits left.
	err1 := ledger.Consume(ctx, userID, 2)
	err2 := ledger.Consume(ctx, userID, 2)
	if err1 == nil {
		assert.ErrorIs(t, err2, ErrInsufficientQuota)
	} else {
		assert.NoError(t, err2)
	}

	bal, err := ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, bal)
	assert.GreaterOrEqual(t, bal, 0)
}

func TestConsume_UnknownUser(t *testing.T) {
	ledger, _ := setupLedgerTest(t, 3)
	err := ledger.Consume(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrInsufficientQuota)
}
