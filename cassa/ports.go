package cassa

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type MenuStore interface {
	// FetchMenuItems returns the snapshots that exist among ids. Unknown ids
	// are simply absent from the result.
	FetchMenuItems(ctx context.Context, ids []int64) ([]MenuItemSnapshot, error)
	ListAvailable(ctx context.Context) ([]MenuItemSnapshot, error)
}

type OrderLedger interface {
	CreateOrder(ctx context.Context, order PersistedOrder) (PersistedOrder, error)
	CountOrders(ctx context.Context, filter OrderFilter) (int, error)
	// FindRecentOrders returns orders newest first. phone is a PhoneKey.
	FindRecentOrders(ctx context.Context, phone string, createdAfter time.Time, limit int) ([]PersistedOrder, error)
}

type UserDirectory interface {
	LookupUser(ctx context.Context, id int64) (User, bool, error)
}

type PosCustomer struct {
	Name  string
	Phone string
	Email string
	Notes string
}

type PosResult struct {
	Success    bool
	ExternalID string
	Message    string
	Error      string
}

// PointOfSale forwards accepted orders to the till. Implementations report
// failures in the result and never return them.
type PointOfSale interface {
	SubmitOrder(ctx context.Context, items []LineItem, customer PosCustomer, totalCents int64) PosResult
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to, customerName string, order PersistedOrder) bool
	SendAdminNotification(ctx context.Context, order PersistedOrder) bool
}

// OrderPublisher announces placed orders to the rest of the restaurant.
type OrderPublisher interface {
	PublishPlaced(ctx context.Context, event OrderPlaced) error
}

type OrderPlaced struct {
	OrderID       int64           `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Notes         string          `json:"notes,omitempty"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewOrderPlaced(o PersistedOrder) OrderPlaced {
	return OrderPlaced{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Notes:         o.Notes,
		Items:         o.Items,
		Total:         o.Total,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
	}
}
