package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"order-dispatch/pkg/constants"
)

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Note      string  `json:"note,omitempty"`
}

type Order struct {
	ID              string                `json:"id"`
	Number          int64                 `json:"number"`
	CustomerID      string                `json:"customer_id"`
	Items           []OrderItem           `json:"items"`
	Status          constants.OrderStatus `json:"status"`
	Subtotal        float64               `json:"subtotal"`
	DeliveryFee     float64               `json:"delivery_fee"`
	Total           float64               `json:"total"`
	PaymentMethod   string                `json:"payment_method"`
	Notes           string                `json:"notes,omitempty"`
	ChangeRequested bool                  `json:"change_requested"`
	CashTendered    null.Float64          `json:"cash_tendered"`
	ChangeDue       null.Float64          `json:"change_due"`
	CourierID       null.String           `json:"courier_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// Clone возвращает копию без общих срезов, чтобы снимки не менялись вместе с оригиналом.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

func (o Order) IsFinal() bool {
	return constants.IsFinalStatus(o.Status)
}

// OrderFilter - фильтр выборки заказов из хранилища.
type OrderFilter struct {
	Statuses   []constants.OrderStatus
	CourierID  string
	CustomerID string
	Limit      uint64
}

// Matches применяет фильтр к заказу в памяти.
func (f OrderFilter) Matches(o Order) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if s == o.Status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.CourierID != "" && (!o.CourierID.Valid || o.CourierID.String != f.CourierID) {
		return false
	}
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	return true
}
