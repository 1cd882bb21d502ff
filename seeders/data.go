package seeders

import (
	"order-dispatch/internal/entities"
	"order-dispatch/pkg/constants"
)

const demoDeliveryFee = 5.0

type demoOrder struct {
	CustomerID    string
	Status        constants.OrderStatus
	PaymentMethod string
	CourierID     string
	Items         []entities.OrderItem
}

var demoOrdersData = []demoOrder{
	{
		CustomerID: "demo-customer-1", Status: constants.StatusPending, PaymentMethod: constants.PaymentCash,
		Items: []entities.OrderItem{{ProductID: "margherita", Note: "Маргарита", Quantity: 2, UnitPrice: 9.5}},
	},
	{
		CustomerID: "demo-customer-2", Status: constants.StatusConfirmed, PaymentMethod: constants.PaymentCard,
		Items: []entities.OrderItem{{ProductID: "pepperoni", Note: "Пепперони", Quantity: 1, UnitPrice: 11}},
	},
	{
		CustomerID: "demo-customer-1", Status: constants.StatusPreparing, PaymentMethod: constants.PaymentOnline,
		Items: []entities.OrderItem{{ProductID: "lemonade", Note: "Лимонад", Quantity: 3, UnitPrice: 2.5}},
	},
	{
		CustomerID: "demo-customer-3", Status: constants.StatusReady, PaymentMethod: constants.PaymentCard,
		Items: []entities.OrderItem{{ProductID: "quattro", Note: "Четыре сыра", Quantity: 1, UnitPrice: 12}},
	},
	{
		CustomerID: "demo-customer-2", Status: constants.StatusOutForDelivery, PaymentMethod: constants.PaymentCash,
		CourierID: "demo-courier-1",
		Items:     []entities.OrderItem{{ProductID: "margherita", Note: "Маргарита", Quantity: 1, UnitPrice: 9.5}},
	},
}
