package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

var (
	ErrClientClosed = errors.New("соединение панели закрыто")
	ErrSendOverflow = errors.New("буфер отправки панели переполнен")
)

// Client - одна панель, подключенная через WebSocket.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Panel     string
	SessionID string

	send   chan []byte
	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, panel string, logger *zap.Logger) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Panel:  panel,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
	}
}

// Send упаковывает сообщение в конверт и ставит в очередь. Не блокируется.
func (c *Client) Send(messageType string, payload interface{}) error {
	data, err := NewEnvelope(messageType, payload).Encode()
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendOverflow
	}
}

// close закрывает очередь отправки; WritePump после этого шлёт CloseMessage.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump читает команды панели и отдаёт их handler. Возвращается, когда соединение закрыто.
func (c *Client) ReadPump(handler func(message []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket: соединение оборвано", zap.String("panel", c.Panel), zap.Error(err))
			}
			break
		}
		handler(message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
