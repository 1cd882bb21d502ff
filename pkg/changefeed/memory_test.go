package changefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_DeliversToAllListeners(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Notice, 4)
	for i := 0; i < 2; i++ {
		readyCh := make(chan struct{})
		go func() {
			_ = b.Listen(ctx, "orders", func() { close(readyCh) }, func(n Notice) { got <- n })
		}()
		<-readyCh
	}

	require.NoError(t, b.Publish(ctx, Notice{Entity: "orders", Op: OpUpdate, ID: "1"}))
	require.NoError(t, b.Publish(ctx, Notice{Entity: "alert_settings"}))

	for i := 0; i < 2; i++ {
		select {
		case n := <-got:
			assert.Equal(t, "1", n.ID)
		case <-time.After(time.Second):
			t.Fatal("уведомление не дошло")
		}
	}
}

func TestMemoryBroker_SetDownDropsListeners(t *testing.T) {
	b := NewMemoryBroker()
	readyCh := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Listen(context.Background(), "orders", func() { close(readyCh) }, func(Notice) {})
	}()
	<-readyCh

	b.SetDown(true)
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrDropped))
	case <-time.After(time.Second):
		t.Fatal("слушатель не оборвался")
	}

	err := b.Listen(context.Background(), "orders", func() {}, func(Notice) {})
	assert.ErrorIs(t, err, ErrBrokerDown)
	assert.Equal(t, 0, b.Listeners("orders"))
}

func TestDecode_GarbageStillMeansRefetch(t *testing.T) {
	n := decode("orders", []byte("not json"))
	assert.Equal(t, Notice{Entity: "orders"}, n)

	payload, err := encode(Notice{Entity: "orders", Op: OpDelete, ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", decode("orders", payload).ID)
	assert.Equal(t, "orders_changes", Channel("orders"))
}
