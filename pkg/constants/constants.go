// pkg/constants/constants.go
package constants

//============== ROLES ==============

// Role - кто выполняет действие над заказом.
type Role string

const (
	RoleStorefront Role = "storefront"
	RoleAdmin      Role = "admin"
	RoleKitchen    Role = "kitchen"
	RoleCourier    Role = "courier"
	// RoleSystem - колбэк платёжного провайдера.
	RoleSystem Role = "system"
)

func (r Role) String() string { return string(r) }

func (r Role) Valid() bool {
	switch r {
	case RoleStorefront, RoleAdmin, RoleKitchen, RoleCourier, RoleSystem:
		return true
	}
	return false
}

//============== PANELS ==============

// Panel - интерфейс одного из участников конвейера.
type Panel string

const (
	PanelStorefront Panel = "storefront"
	PanelAdmin      Panel = "admin"
	PanelKitchen    Panel = "kitchen"
	PanelCourier    Panel = "courier"
)

// AlertPanels - панели со звуковыми оповещениями.
var AlertPanels = []Panel{PanelAdmin, PanelKitchen, PanelCourier}

func (p Panel) String() string { return string(p) }

func (p Panel) Valid() bool {
	switch p {
	case PanelStorefront, PanelAdmin, PanelKitchen, PanelCourier:
		return true
	}
	return false
}

// HasAlerts сообщает, есть ли у панели настройки звука.
func (p Panel) HasAlerts() bool {
	return p == PanelAdmin || p == PanelKitchen || p == PanelCourier
}

// Role - роль, от имени которой действует панель.
func (p Panel) Role() Role {
	switch p {
	case PanelAdmin:
		return RoleAdmin
	case PanelKitchen:
		return RoleKitchen
	case PanelCourier:
		return RoleCourier
	default:
		return RoleStorefront
	}
}

//============== PAYMENT METHODS ==============

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentOnline = "online"
)

//============== FEED ENTITIES ==============

const (
	EntityOrders        = "orders"
	EntityAlertSettings = "alert_settings"
)
