package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope - «конверт» сообщения панели: тип подсказывает фронтенду, что делать с payload.
type Envelope struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEnvelope(messageType string, payload interface{}) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
