package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lock_not_available: строку заказа или панели держит другая транзакция дольше lock_timeout.
const pgLockNotAvailable = "55P03"

const defaultLockTimeout = 5 * time.Second

// ErrRowLocked - запись не дождалась блокировки строки.
var ErrRowLocked = errors.New("строка занята другой транзакцией")

// TxManagerInterface - транзакции для записей с блокировкой строки:
// удаление заказа вместе с аудитом и upsert настроек панели.
type TxManagerInterface interface {
	RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type TxManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewTxManager(pool *pgxpool.Pool) TxManagerInterface {
	return &TxManager{pool: pool, lockTimeout: defaultLockTimeout}
}

// RunInTransaction выполняет fn в READ COMMITTED с ограниченным ожиданием блокировок.
// Оптимистичная мутация панели ждёт ответа, поэтому зависшая блокировка должна
// вернуться ошибкой, а не держать запрос.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if stmt := lockTimeoutStatement(m.lockTimeout); stmt != "" {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("не удалось выставить lock_timeout: %w", err)
			}
		}
		return fn(tx)
	})
	if isLockTimeout(err) {
		return fmt.Errorf("%w: %v", ErrRowLocked, err)
	}
	return err
}

func lockTimeoutStatement(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}
