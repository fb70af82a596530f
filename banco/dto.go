package main

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/taldoflemis/trattoria/cassa"
)

type OrderItemRequest struct {
	ID       int64           `json:"id" validate:"gt=0"`
	Name     string          `json:"name,omitempty" validate:"max=200"`
	Price    decimal.Decimal `json:"price" swaggertype:"number"`
	Quantity int             `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerName  string             `json:"customerName" validate:"required"`
	CustomerPhone string             `json:"customerPhone" validate:"required"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
	Notes         string             `json:"notes,omitempty" validate:"max=500"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r CreateOrderRequest) toCassa(userID *int64) cassa.OrderRequest {
	items := make([]cassa.OrderLineRequest, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, cassa.OrderLineRequest{
			MenuItemID: it.ID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}
	return cassa.OrderRequest{
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		CustomerEmail: r.CustomerEmail,
		Notes:         r.Notes,
		Items:         items,
		UserID:        userID,
	}
}

type LineItemResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type OrderResponse struct {
	ID            int64              `json:"id"`
	UserID        *int64             `json:"userId,omitempty"`
	CustomerName  string             `json:"customerName"`
	CustomerPhone string             `json:"customerPhone"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	Items         []LineItemResponse `json:"items"`
	Total         string             `json:"total"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type CloverSyncResponse struct {
	Success       bool   `json:"success"`
	CloverOrderID string `json:"cloverOrderId,omitempty"`
	Error         string `json:"error,omitempty"`
}

type CreateOrderResponse struct {
	Accepted      bool               `json:"accepted"`
	OrderID       int64              `json:"orderId"`
	PosSyncStatus string             `json:"posSyncStatus"`
	Order         OrderResponse      `json:"order"`
	Clover        CloverSyncResponse `json:"clover"`
}

type StoreHoursResponse struct {
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}

type RejectionResponse struct {
	Accepted          bool                `json:"accepted"`
	Reason            string              `json:"reason"`
	Category          string              `json:"category"`
	InvalidItems      []string            `json:"invalidItems,omitempty"`
	UnavailableItems  []string            `json:"unavailableItems,omitempty"`
	StoreHours        *StoreHoursResponse `json:"storeHours,omitempty"`
	NeedsVerification bool                `json:"needsVerification,omitempty"`
}

type StoreStatusResponse struct {
	IsOpen    bool   `json:"isOpen"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}

type MenuItemResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newOrderResponse(o cassa.PersistedOrder) OrderResponse {
	items := make([]LineItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItemResponse{
			ID:       it.MenuItemID,
			Name:     it.Name,
			Price:    it.Price.StringFixed(2),
			Quantity: it.Quantity,
		})
	}
	return OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		CustomerEmail: o.CustomerEmail,
		Notes:         o.Notes,
		Items:         items,
		Total:         o.Total.StringFixed(2),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
	}
}

func newCreateOrderResponse(res cassa.OrderResult) CreateOrderResponse {
	return CreateOrderResponse{
		Accepted:      true,
		OrderID:       res.Order.ID,
		PosSyncStatus: string(res.PosSync.Status),
		Order:         newOrderResponse(*res.Order),
		Clover: CloverSyncResponse{
			Success:       res.PosSync.Status == cassa.PosSynced,
			CloverOrderID: res.PosSync.ExternalID,
			Error:         res.PosSync.Error,
		},
	}
}

func newRejectionResponse(rej *cassa.Rejection) RejectionResponse {
	resp := RejectionResponse{
		Reason:            rej.Reason,
		Category:          string(rej.Category),
		InvalidItems:      rej.InvalidItems,
		UnavailableItems:  rej.UnavailableItems,
		NeedsVerification: rej.Category == cassa.CategoryEmailUnverified,
	}
	if rej.StoreStatus != nil {
		resp.StoreHours = &StoreHoursResponse{
			OpenTime:  rej.StoreStatus.OpenTime,
			CloseTime: rej.StoreStatus.CloseTime,
		}
	}
	return resp
}

func newStoreStatusResponse(s cassa.StoreStatus) StoreStatusResponse {
	return StoreStatusResponse{
		IsOpen:    s.IsOpen,
		Status:    string(s.Verdict),
		Message:   s.Message,
		OpenTime:  s.OpenTime,
		CloseTime: s.CloseTime,
	}
}
