package cassa

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// ActiveStatuses are the statuses that still occupy kitchen capacity.
var ActiveStatuses = []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing}

// OrderLineRequest is a cart line as submitted by the client. Price is advisory
// and is always checked against the menu before the order is accepted.
type OrderLineRequest struct {
	MenuItemID int64           `json:"menu_item_id"`
	Name       string          `json:"name,omitempty"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type OrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	CustomerEmail string             `json:"customer_email,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	Items         []OrderLineRequest `json:"items"`
	// UserID is set by the transport when the request carries a valid session.
	UserID *int64 `json:"-"`
}

type MenuItemSnapshot struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// LineItem is what gets persisted for an accepted line: the authoritative
// name and price, never the client's.
type LineItem struct {
	MenuItemID int64           `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type PersistedOrder struct {
	ID            int64           `json:"id"`
	UserID        *int64          `json:"user_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderFilter narrows CountOrders. Zero-valued fields are not applied, except
// CreatedAfter which is always applied.
type OrderFilter struct {
	// Phone is matched as a PhoneKey.
	Phone        string
	StatusIn     []OrderStatus
	CreatedAfter time.Time
}

type User struct {
	ID            int64
	Email         string
	Name          string
	EmailVerified bool
}

type PosSyncStatus string

const (
	PosSynced  PosSyncStatus = "synced"
	PosFailed  PosSyncStatus = "failed"
	PosSkipped PosSyncStatus = "skipped"
)

type PosSync struct {
	Status     PosSyncStatus `json:"status"`
	ExternalID string        `json:"external_id,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// OrderResult is the outcome of SubmitOrder. Exactly one of Order and
// Rejection is set.
type OrderResult struct {
	Accepted  bool
	Order     *PersistedOrder
	PosSync   PosSync
	Rejection *Rejection
}

func totalOf(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
