package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransport - LISTEN/NOTIFY на выделенном соединении из пула.
type PostgresTransport struct {
	pool *pgxpool.Pool
}

func NewPostgresTransport(pool *pgxpool.Pool) *PostgresTransport {
	return &PostgresTransport{pool: pool}
}

func (t *PostgresTransport) Listen(ctx context.Context, entity string, ready func(), notify func(Notice)) error {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("не удалось получить соединение для LISTEN: %w", err)
	}
	defer conn.Release()

	channel := pgx.Identifier{Channel(entity)}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	defer func() {
		if conn.Conn().IsClosed() {
			return
		}
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+channel)
	}()

	ready()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrDropped, err)
		}
		notify(decode(entity, []byte(n.Payload)))
	}
}

// PostgresPublisher - pg_notify через пул.
type PostgresPublisher struct {
	pool *pgxpool.Pool
}

func NewPostgresPublisher(pool *pgxpool.Pool) *PostgresPublisher {
	return &PostgresPublisher{pool: pool}
}

func (p *PostgresPublisher) Publish(ctx context.Context, n Notice) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel(n.Entity), string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", Channel(n.Entity), err)
	}
	return nil
}
