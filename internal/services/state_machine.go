package services

import (
	"fmt"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
)

// DecisionKind - итог проверки перехода.
type DecisionKind int

const (
	DecisionRejected DecisionKind = iota
	DecisionAccepted
	DecisionNoOp
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAccepted:
		return "accepted"
	case DecisionNoOp:
		return "noop"
	default:
		return "rejected"
	}
}

// Decision - ровно один из Accepted(next), NoOp(current), Rejected(reason).
type Decision struct {
	Kind   DecisionKind
	Status constants.OrderStatus
	Reason string

	orderID string
	from    constants.OrderStatus
	to      constants.OrderStatus
	role    constants.Role
}

func (d Decision) Accepted() bool { return d.Kind == DecisionAccepted }
func (d Decision) NoOp() bool     { return d.Kind == DecisionNoOp }
func (d Decision) Rejected() bool { return d.Kind == DecisionRejected }

// Err возвращает ValidationError для отказа и nil в остальных случаях.
func (d Decision) Err() error {
	if d.Kind != DecisionRejected {
		return nil
	}
	return apperrors.NewValidationError(d.orderID, d.from.String(), d.to.String(), d.role.String(), d.Reason)
}

// roleEdges - разрешённые переходы по ролям. Админ сюда не входит: ему доступен любой статус.
var roleEdges = map[constants.Role]map[constants.OrderStatus][]constants.OrderStatus{
	constants.RoleKitchen: {
		constants.StatusPending:   {constants.StatusPreparing},
		constants.StatusConfirmed: {constants.StatusPreparing},
		constants.StatusPreparing: {constants.StatusReady},
	},
	constants.RoleCourier: {
		constants.StatusReady:          {constants.StatusOutForDelivery},
		constants.StatusOutForDelivery: {constants.StatusDelivered},
	},
	constants.RoleSystem: {
		constants.StatusWaitingPayment: {constants.StatusPending, constants.StatusCancelled},
	},
	constants.RoleStorefront: {},
}

type StateMachineInterface interface {
	Transition(order entities.Order, target constants.OrderStatus, role constants.Role) Decision
	CanDelete(order entities.Order, role constants.Role) error
	CanCreate(order entities.Order, role constants.Role) error
	Allowed(from constants.OrderStatus, role constants.Role) []constants.OrderStatus
}

type StateMachine struct{}

func NewStateMachine() StateMachineInterface {
	return StateMachine{}
}

// Transition - чистая функция, ничего не пишет.
func (StateMachine) Transition(order entities.Order, target constants.OrderStatus, role constants.Role) Decision {
	d := Decision{orderID: order.ID, from: order.Status, to: target, role: role}
	reject := func(format string, args ...interface{}) Decision {
		d.Kind = DecisionRejected
		d.Reason = fmt.Sprintf(format, args...)
		return d
	}

	if !order.Status.Valid() {
		return reject("текущий статус %q вне перечисления", order.Status)
	}
	if constants.IsFinalStatus(order.Status) {
		return reject("заказ в финальном статусе %s", order.Status)
	}
	if !role.Valid() {
		return reject("неизвестная роль %q", role)
	}
	if !target.Valid() {
		return reject("неизвестный статус %q", target)
	}
	if target == order.Status {
		d.Kind = DecisionNoOp
		d.Status = order.Status
		return d
	}
	if role == constants.RoleAdmin || edgeAllowed(order.Status, target, role) {
		d.Kind = DecisionAccepted
		d.Status = target
		return d
	}
	return reject("роль %s не может перевести заказ из %s в %s", role, order.Status, target)
}

// CanDelete - жёсткое удаление только админом и только незавершённых заказов.
func (StateMachine) CanDelete(order entities.Order, role constants.Role) error {
	if role != constants.RoleAdmin {
		return apperrors.NewValidationError(order.ID, order.Status.String(), "", role.String(), "удалять заказы может только администратор")
	}
	if constants.IsFinalStatus(order.Status) {
		return apperrors.NewValidationError(order.ID, order.Status.String(), "", role.String(), "завершённый заказ удалить нельзя")
	}
	return nil
}

// CanCreate - новый заказ оформляет витрина (или админ вручную) и только в начальном статусе.
func (StateMachine) CanCreate(order entities.Order, role constants.Role) error {
	if role != constants.RoleStorefront && role != constants.RoleAdmin {
		return apperrors.NewValidationError(order.ID, "", order.Status.String(), role.String(), "создавать заказы может только витрина или администратор")
	}
	if order.Status != constants.StatusPending && order.Status != constants.StatusWaitingPayment {
		return apperrors.NewValidationError(order.ID, "", order.Status.String(), role.String(), "новый заказ должен быть в статусе pending или waiting_payment")
	}
	return nil
}

// InitialStatus - онлайн-оплата сначала ждёт подтверждения провайдера.
func InitialStatus(paymentMethod string) constants.OrderStatus {
	if paymentMethod == constants.PaymentOnline {
		return constants.StatusWaitingPayment
	}
	return constants.StatusPending
}

// Allowed перечисляет статусы, в которые роль может перевести заказ из from.
func (StateMachine) Allowed(from constants.OrderStatus, role constants.Role) []constants.OrderStatus {
	if constants.IsFinalStatus(from) || !from.Valid() {
		return nil
	}
	if role == constants.RoleAdmin {
		out := make([]constants.OrderStatus, 0, len(constants.AllStatuses))
		for _, s := range constants.AllStatuses {
			if s != from {
				out = append(out, s)
			}
		}
		return out
	}
	return append([]constants.OrderStatus(nil), roleEdges[role][from]...)
}

func edgeAllowed(from, to constants.OrderStatus, role constants.Role) bool {
	for _, s := range roleEdges[role][from] {
		if s == to {
			return true
		}
	}
	return false
}
