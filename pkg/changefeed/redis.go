package changefeed

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisTransport - Redis pub/sub.
type RedisTransport struct {
	client *redis.Client
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Listen(ctx context.Context, entity string, ready func(), notify func(Notice)) error {
	sub := t.client.Subscribe(ctx, Channel(entity))
	defer sub.Close()

	// Первое сообщение - подтверждение подписки.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("подписка на %s: %w", Channel(entity), err)
	}
	ready()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrDropped, err)
		}
		notify(decode(entity, []byte(msg.Payload)))
	}
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notice) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(n.Entity), payload).Err()
}
