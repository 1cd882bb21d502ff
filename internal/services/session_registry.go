package services

import (
	"sync"

	"go.uber.org/zap"

	"order-dispatch/pkg/constants"
)

// SessionRegistry - открытые панели процесса.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*PanelSession
	deps     SessionDeps
	logger   *zap.Logger
}

func NewSessionRegistry(deps SessionDeps, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*PanelSession),
		deps:     deps,
		logger:   logger,
	}
}

// Open создаёт и запускает сессию панели.
func (r *SessionRegistry) Open(opts SessionOptions, out Outbound) (*PanelSession, error) {
	s, err := NewPanelSession(r.deps, opts, out)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

func (r *SessionRegistry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (r *SessionRegistry) Get(id string) (*PanelSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *SessionRegistry) snapshot() []*PanelSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PanelSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count - число открытых сессий по панелям.
func (r *SessionRegistry) Count() map[constants.Panel]int {
	out := make(map[constants.Panel]int)
	for _, s := range r.snapshot() {
		out[s.Panel()]++
	}
	return out
}

// SystemAlert раздаёт ручной сигнал всем панелям из таблицы события.
// Возвращает, сколько сессий его действительно проиграли.
func (r *SessionRegistry) SystemAlert(orderID, message string) int {
	played := 0
	for _, s := range r.snapshot() {
		if !EventSystemAlert.targets(s.Panel()) {
			continue
		}
		if s.SystemAlert(orderID, message) {
			played++
		}
	}
	r.logger.Info("системный сигнал", zap.String("order_id", orderID), zap.Int("played", played))
	return played
}

func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*PanelSession)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
