package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	kitchen := NewClient(hub, nil, "kitchen", zap.NewNop())
	hub.Register(kitchen)
	require.Eventually(t, func() bool { return hub.Count("kitchen") == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, hub.Count("admin"))

	require.NoError(t, kitchen.Send("toast", map[string]string{"message": "hi"}))
	raw := <-kitchen.send
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "toast", env.Type)
	assert.NotEmpty(t, env.EventID)

	hub.Unregister(kitchen)
	require.Eventually(t, func() bool { return hub.Count("kitchen") == 0 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, kitchen.Send("toast", nil), ErrClientClosed)
}

func TestClient_SendNeverBlocks(t *testing.T) {
	c := NewClient(NewHub(zap.NewNop()), nil, "admin", zap.NewNop())
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, c.Send("orders", i))
	}
	assert.ErrorIs(t, c.Send("orders", "лишнее"), ErrSendOverflow)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	c := NewClient(hub, nil, "courier", zap.NewNop())
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.Count("courier") == 1 }, time.Second, time.Millisecond)

	hub.Stop()
	require.Eventually(t, func() bool { return c.Send("toast", nil) == ErrClientClosed }, time.Second, time.Millisecond)

	late := NewClient(hub, nil, "courier", zap.NewNop())
	hub.Register(late)
	assert.Eventually(t, func() bool { return late.Send("toast", nil) == ErrClientClosed }, time.Second, time.Millisecond)
}
