package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub хранит подключенных клиентов по панелям.
type Hub struct {
	clients      map[*Client]bool
	panelClients map[string][]*Client
	register     chan *Client
	unregister   chan *Client
	done         chan struct{}
	stopOnce     sync.Once
	mu           sync.RWMutex
	logger       *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		panelClients: make(map[string][]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.panelClients[client.Panel] = append(h.panelClients[client.Panel], client)
			h.mu.Unlock()
			h.logger.Info("Клиент зарегистрирован", zap.String("panel", client.Panel), zap.String("session_id", client.SessionID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				clients := h.panelClients[client.Panel]
				for i, c := range clients {
					if c == client {
						h.panelClients[client.Panel] = append(clients[:i], clients[i+1:]...)
						break
					}
				}
				if len(h.panelClients[client.Panel]) == 0 {
					delete(h.panelClients, client.Panel)
				}
				h.logger.Info("Клиент отсоединен", zap.String("panel", client.Panel), zap.String("session_id", client.SessionID))
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
			}
			h.clients = make(map[*Client]bool)
			h.panelClients = make(map[string][]*Client)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Count - число подключенных клиентов панели.
func (h *Hub) Count(panel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.panelClients[panel])
}

// Stop закрывает все соединения и останавливает Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
