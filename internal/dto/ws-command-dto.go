package dto

import "encoding/json"

// PanelCommandDTO - команда от панели по WebSocket.
type PanelCommandDTO struct {
	Type      string          `json:"type" validate:"required"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type VisibilityPayload struct {
	Visible bool `json:"visible"`
}

type UpdateStatusPayload struct {
	OrderID string `json:"order_id" validate:"required"`
	Status  string `json:"status" validate:"required,order_status"`
}

type AssignCourierPayload struct {
	OrderID   string `json:"order_id" validate:"required"`
	CourierID string `json:"courier_id" validate:"required,max=64"`
}

type OrderRefPayload struct {
	OrderID string `json:"order_id" validate:"required"`
}

type MarkAlertedPayload struct {
	OrderID string   `json:"order_id" validate:"required"`
	Panels  []string `json:"panels,omitempty" validate:"omitempty,dive,panel"`
}

type PreviewSoundPayload struct {
	SoundID string  `json:"sound_id" validate:"required"`
	Volume  float64 `json:"volume" validate:"gte=0,lte=1"`
}

type SystemAlertPayload struct {
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message,omitempty" validate:"omitempty,max=255"`
}

// CommandResultDTO - ответ панели на её команду.
type CommandResultDTO struct {
	RequestID string      `json:"request_id,omitempty"`
	Command   string      `json:"command"`
	OK        bool        `json:"ok"`
	NoOp      bool        `json:"no_op,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      int         `json:"code,omitempty"`
	Body      interface{} `json:"body,omitempty"`
}

// Сообщения сервера панели.

type OrdersSnapshotDTO struct {
	Orders       []OrderResponseDTO `json:"orders"`
	PendingCount int                `json:"pending_count"`
}

type PlaySoundDTO struct {
	Panel   string  `json:"panel"`
	SoundID string  `json:"sound_id"`
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Volume  float64 `json:"volume"`
}

type ToastDTO struct {
	Panel   string `json:"panel"`
	Message string `json:"message"`
}
