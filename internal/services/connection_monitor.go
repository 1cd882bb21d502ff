package services

import (
	"sync"
)

// ConnectionState - состояние одной подписки на ленту изменений.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateDisconnected ConnectionState = "disconnected"
)

func (s ConnectionState) severity() int {
	switch s {
	case StateConnected:
		return 0
	case StateConnecting:
		return 1
	case StateReconnecting:
		return 2
	default:
		return 3
	}
}

// StateListener получает каждое изменение: сущность, её новое состояние и худшее по всем лентам.
type StateListener func(entity string, state ConnectionState, overall ConnectionState)

type feedState struct {
	entity string
	state  ConnectionState
}

// ConnectionMonitor сводит состояния подписок. На мутации заказов не влияет.
type ConnectionMonitor struct {
	mu        sync.Mutex
	feeds     map[SubscriptionHandle]feedState
	listeners []StateListener
}

func NewConnectionMonitor() *ConnectionMonitor {
	return &ConnectionMonitor{feeds: make(map[SubscriptionHandle]feedState)}
}

func (m *ConnectionMonitor) OnChange(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *ConnectionMonitor) set(h SubscriptionHandle, entity string, state ConnectionState) {
	m.mu.Lock()
	prev, ok := m.feeds[h]
	if ok && prev.state == state {
		m.mu.Unlock()
		return
	}
	m.feeds[h] = feedState{entity: entity, state: state}
	overall := m.overallLocked()
	listeners := append([]StateListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(entity, state, overall)
	}
}

func (m *ConnectionMonitor) remove(h SubscriptionHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.feeds, h)
}

// State возвращает состояние подписки; ok=false, если подписки нет.
func (m *ConnectionMonitor) State(h SubscriptionHandle) (ConnectionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feeds[h]
	return f.state, ok
}

// Overall - худшее состояние по всем лентам. Без подписок - disconnected.
func (m *ConnectionMonitor) Overall() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overallLocked()
}

func (m *ConnectionMonitor) overallLocked() ConnectionState {
	if len(m.feeds) == 0 {
		return StateDisconnected
	}
	worst := StateConnected
	for _, f := range m.feeds {
		if f.state.severity() > worst.severity() {
			worst = f.state
		}
	}
	return worst
}

// ByEntity - худшее состояние по каждой сущности.
func (m *ConnectionMonitor) ByEntity() map[string]ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]ConnectionState, len(m.feeds))
	for _, f := range m.feeds {
		if cur, ok := out[f.entity]; !ok || f.state.severity() > cur.severity() {
			out[f.entity] = f.state
		}
	}
	return out
}
