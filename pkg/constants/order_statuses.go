package constants

// OrderStatus - статус заказа в конвейере (совпадает со значением в БД).
type OrderStatus string

// --- СТАТУСЫ ЗАКАЗОВ ---
const (
	StatusWaitingPayment OrderStatus = "waiting_payment"
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// AllStatuses в порядке движения заказа по конвейеру.
var AllStatuses = []OrderStatus{
	StatusWaitingPayment,
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Финальные статусы
var FinalStatuses = []OrderStatus{
	StatusDelivered,
	StatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }

// Valid сообщает, входит ли значение в перечисление.
func (s OrderStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Функция-проверка
func IsFinalStatus(s OrderStatus) bool {
	for _, f := range FinalStatuses {
		if f == s {
			return true
		}
	}
	return false
}

// ActiveStatuses - всё, что ещё движется по конвейеру.
func ActiveStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(AllStatuses))
	for _, s := range AllStatuses {
		if !IsFinalStatus(s) {
			out = append(out, s)
		}
	}
	return out
}
