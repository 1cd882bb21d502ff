package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"order-dispatch/pkg/changefeed"
	apperrors "order-dispatch/pkg/errors"
)

// SubscriptionHandle идентифицирует подписку.
type SubscriptionHandle string

// RefetchFunc перечитывает сущность целиком. Вызывается после каждого (пере)подключения и уведомления.
type RefetchFunc func(ctx context.Context) error

type FeedOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

type ChangeFeedSubscriberInterface interface {
	Subscribe(entity string, onChange RefetchFunc) (SubscriptionHandle, error)
	Unsubscribe(h SubscriptionHandle)
	Close()
	Monitor() *ConnectionMonitor
}

type subscription struct {
	entity   string
	onChange RefetchFunc
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// ChangeFeedSubscriber держит по горутине на подписку и переподключается с линейной паузой.
type ChangeFeedSubscriber struct {
	transport changefeed.Transport
	monitor   *ConnectionMonitor
	opts      FeedOptions
	logger    *zap.Logger

	mu     sync.Mutex
	subs   map[SubscriptionHandle]*subscription
	closed bool
}

func NewChangeFeedSubscriber(transport changefeed.Transport, opts FeedOptions, logger *zap.Logger) *ChangeFeedSubscriber {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &ChangeFeedSubscriber{
		transport: transport,
		monitor:   NewConnectionMonitor(),
		opts:      opts,
		logger:    logger,
		subs:      make(map[SubscriptionHandle]*subscription),
	}
}

func (s *ChangeFeedSubscriber) Monitor() *ConnectionMonitor {
	return s.monitor
}

func (s *ChangeFeedSubscriber) Subscribe(entity string, onChange RefetchFunc) (SubscriptionHandle, error) {
	if entity == "" || onChange == nil {
		return "", apperrors.ErrBadRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", apperrors.ErrFeedClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := SubscriptionHandle(uuid.NewString())
	sub := &subscription{entity: entity, onChange: onChange, cancel: cancel}
	s.subs[h] = sub
	s.monitor.set(h, entity, StateConnecting)

	pending := make(chan struct{}, 1)
	sub.wg.Add(2)
	go func() {
		defer sub.wg.Done()
		s.refetchLoop(ctx, h, sub, pending)
	}()
	go func() {
		defer sub.wg.Done()
		s.listenLoop(ctx, h, sub, pending)
	}()
	return h, nil
}

func (s *ChangeFeedSubscriber) Unsubscribe(h SubscriptionHandle) {
	s.mu.Lock()
	sub, ok := s.subs[h]
	delete(s.subs, h)
	s.mu.Unlock()
	if !ok {
		return
	}
	sub.cancel()
	sub.wg.Wait()
	s.monitor.remove(h)
}

// Close снимает все подписки; новые после этого не принимаются.
func (s *ChangeFeedSubscriber) Close() {
	s.mu.Lock()
	s.closed = true
	handles := make([]SubscriptionHandle, 0, len(s.subs))
	for h := range s.subs {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.Unsubscribe(h)
	}
}

// listenLoop: connecting → connected; обрыв → reconnecting; бюджет попыток исчерпан → disconnected.
func (s *ChangeFeedSubscriber) listenLoop(ctx context.Context, h SubscriptionHandle, sub *subscription, pending chan struct{}) {
	trigger := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	attempt := 0
	for {
		err := s.transport.Listen(ctx, sub.entity,
			func() {
				attempt = 0
				s.monitor.set(h, sub.entity, StateConnected)
				trigger()
			},
			func(changefeed.Notice) { trigger() },
		)
		if ctx.Err() != nil {
			return
		}

		attempt++
		subErr := &apperrors.SubscriptionError{Entity: sub.entity, Err: err}
		if attempt > s.opts.MaxRetries {
			s.monitor.set(h, sub.entity, StateDisconnected)
			s.logger.Error("лента изменений отключена, попытки исчерпаны",
				zap.String("entity", sub.entity), zap.Int("attempts", attempt), zap.Error(subErr))
			return
		}

		s.monitor.set(h, sub.entity, StateReconnecting)
		delay := s.opts.RetryDelay * time.Duration(attempt)
		s.logger.Warn("лента изменений оборвалась, переподключаюсь",
			zap.String("entity", sub.entity), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(subErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// refetchLoop выполняет не больше одного перечитывания за раз; уведомления во время перечитывания схлопываются в одно.
func (s *ChangeFeedSubscriber) refetchLoop(ctx context.Context, h SubscriptionHandle, sub *subscription, pending chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-pending:
			if err := sub.onChange(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("ошибка перечитывания после уведомления",
					zap.String("entity", sub.entity), zap.String("handle", string(h)), zap.Error(err))
			}
		}
	}
}
