package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareFanout(ch *amqp.Channel, entity string) error {
	return ch.ExchangeDeclare(
		Channel(entity),
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// AMQPTransport - fanout exchange на сущность и эксклюзивная очередь на каждого слушателя.
type AMQPTransport struct {
	url string
}

func NewAMQPTransport(url string) *AMQPTransport {
	return &AMQPTransport{url: url}
}

func (t *AMQPTransport) Listen(ctx context.Context, entity string, ready func(), notify func(Notice)) error {
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return fmt.Errorf("подключение к RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("открытие канала RabbitMQ: %w", err)
	}
	defer ch.Close()

	if err := declareFanout(ch, entity); err != nil {
		return fmt.Errorf("объявление exchange %s: %w", Channel(entity), err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("объявление очереди: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", Channel(entity), false, nil); err != nil {
		return fmt.Errorf("привязка очереди: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("подписка на очередь: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	ready()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			return fmt.Errorf("%w: %v", ErrDropped, amqpErr)
		case d, ok := <-msgs:
			if !ok {
				return ErrDropped
			}
			notify(decode(entity, d.Body))
		}
	}
}

// AMQPPublisher держит одно соединение и переподключается при обрыве.
type AMQPPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, declared: make(map[string]bool)}
}

func (p *AMQPPublisher) Publish(ctx context.Context, n Notice) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLocked(); err != nil {
		return err
	}
	if !p.declared[n.Entity] {
		if err := declareFanout(p.ch, n.Entity); err != nil {
			p.resetLocked()
			return fmt.Errorf("объявление exchange %s: %w", Channel(n.Entity), err)
		}
		p.declared[n.Entity] = true
	}

	err = p.ch.PublishWithContext(ctx, Channel(n.Entity), "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("публикация в %s: %w", Channel(n.Entity), err)
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *AMQPPublisher) ensureLocked() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("подключение к RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("открытие канала RabbitMQ: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	p.declared = make(map[string]bool)
}
