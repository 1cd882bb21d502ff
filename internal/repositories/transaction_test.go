package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
)

func TestLockTimeoutStatement(t *testing.T) {
	assert.Equal(t, "SET LOCAL lock_timeout = '5000ms'", lockTimeoutStatement(5*time.Second))
	assert.Equal(t, "SET LOCAL lock_timeout = '1ms'", lockTimeoutStatement(time.Microsecond))
	assert.Empty(t, lockTimeoutStatement(0))
}

func TestIsLockTimeout(t *testing.T) {
	locked := &pgconn.PgError{Code: pgLockNotAvailable}
	assert.True(t, isLockTimeout(locked))
	assert.True(t, isLockTimeout(fmt.Errorf("ошибка удаления заказа: %w", locked)))
	assert.False(t, isLockTimeout(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isLockTimeout(errors.New("timeout")))
	assert.False(t, isLockTimeout(nil))
}

func TestTxManager_Integration_RowLockWaitIsBounded(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool, changefeed.NopPublisher{}, zap.NewNop())
	order, err := repo.CreateOrder(ctx, newTestOrder(constants.StatusPending))
	require.NoError(t, err)

	holder, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()
	_, err = holder.Exec(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, order.ID)
	require.NoError(t, err)

	m := &TxManager{pool: pool, lockTimeout: 50 * time.Millisecond}
	err = m.RunInTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, order.ID)
		return err
	})
	assert.ErrorIs(t, err, ErrRowLocked)
}
