package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type pingEvent struct{}

func (pingEvent) Name() string { return "ping" }

func TestBus_PublishInOrderAndSurvivesErrors(t *testing.T) {
	bus := New(zap.NewNop())
	var calls []int

	bus.Subscribe("ping", func(ctx context.Context, e Event) error {
		calls = append(calls, 1)
		return errors.New("boom")
	})
	bus.Subscribe("ping", func(ctx context.Context, e Event) error {
		calls = append(calls, 2)
		return nil
	})
	bus.Subscribe("other", func(ctx context.Context, e Event) error {
		calls = append(calls, 3)
		return nil
	})

	bus.Publish(context.Background(), pingEvent{})
	assert.Equal(t, []int{1, 2}, calls)
}
