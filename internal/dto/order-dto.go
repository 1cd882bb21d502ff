package dto

import (
	"time"

	"order-dispatch/internal/entities"
)

type OrderItemDTO struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,gt=0,lte=100"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Note      string  `json:"note,omitempty" validate:"omitempty,max=255"`
}

// CreateOrderDTO - оформление заказа на витрине.
type CreateOrderDTO struct {
	CustomerID      string         `json:"customer_id" validate:"required,max=64"`
	Items           []OrderItemDTO `json:"items" validate:"required,min=1,dive"`
	DeliveryFee     float64        `json:"delivery_fee" validate:"gte=0"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=cash card online"`
	Notes           string         `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ChangeRequested bool           `json:"change_requested"`
	CashTendered    *float64       `json:"cash_tendered,omitempty" validate:"omitempty,gt=0"`
}

type UpdateOrderStatusDTO struct {
	Status string `json:"status" validate:"required,order_status"`
}

type AssignCourierDTO struct {
	CourierID string `json:"courier_id" validate:"required,max=64"`
}

type OrderResponseDTO struct {
	ID              string         `json:"id"`
	Number          int64          `json:"number"`
	CustomerID      string         `json:"customer_id"`
	Items           []OrderItemDTO `json:"items"`
	Status          string         `json:"status"`
	Subtotal        float64        `json:"subtotal"`
	DeliveryFee     float64        `json:"delivery_fee"`
	Total           float64        `json:"total"`
	PaymentMethod   string         `json:"payment_method"`
	Notes           string         `json:"notes,omitempty"`
	ChangeRequested bool           `json:"change_requested"`
	CashTendered    *float64       `json:"cash_tendered"`
	ChangeDue       *float64       `json:"change_due"`
	CourierID       *string        `json:"courier_id"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

type OrderListResponseDTO struct {
	List       []OrderResponseDTO `json:"list"`
	TotalCount uint64             `json:"total_count"`
}

type PendingCountDTO struct {
	Count int `json:"count"`
}

func NewOrderResponseDTO(o entities.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Note:      it.Note,
		})
	}
	return OrderResponseDTO{
		ID:              o.ID,
		Number:          o.Number,
		CustomerID:      o.CustomerID,
		Items:           items,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Total:           o.Total,
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		ChangeRequested: o.ChangeRequested,
		CashTendered:    o.CashTendered.Ptr(),
		ChangeDue:       o.ChangeDue.Ptr(),
		CourierID:       o.CourierID.Ptr(),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
}

func NewOrderListResponseDTO(orders []entities.Order) OrderListResponseDTO {
	list := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		list = append(list, NewOrderResponseDTO(o))
	}
	return OrderListResponseDTO{List: list, TotalCount: uint64(len(list))}
}
