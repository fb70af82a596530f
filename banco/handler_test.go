package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	healthgo "github.com/hellofresh/health-go/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taldoflemis/trattoria/cassa"
	"github.com/taldoflemis/trattoria/pacchetto"
)

type stubIntake struct {
	result cassa.OrderResult
	err    error
	status cassa.StoreStatus
	menu   []cassa.MenuItemSnapshot

	got   cassa.OrderRequest
	calls int
}

func (s *stubIntake) SubmitOrder(_ context.Context, req cassa.OrderRequest) (cassa.OrderResult, error) {
	s.calls++
	s.got = req
	return s.result, s.err
}

func (s *stubIntake) StoreStatus() cassa.StoreStatus { return s.status }

func (s *stubIntake) Menu(context.Context) ([]cassa.MenuItemSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.menu, nil
}

var testSessionSettings = SessionSettings{CookieName: "session", Secret: "test-secret"}

func newTestServer(t *testing.T, intake OrderIntake, feed *LiveFeed) *echo.Echo {
	t.Helper()

	health, err := healthgo.New(healthgo.WithComponent(healthgo.Component{Name: "banco", Version: "test"}))
	require.NoError(t, err)

	settings := &Settings{
		App: pacchetto.AppSettings{Name: "banco"},
		HTTP: pacchetto.HTTPSettings{
			Prefix: "/v1",
			CORS: pacchetto.CORSSettings{
				Origins: []string{"http://localhost:3000"},
				Methods: []string{"GET", "POST"},
				Headers: []string{"Content-Type"},
			},
		},
	}

	e := echo.New()
	NewMainHandler(e, settings, intake, feed, NewSessionReader(testSessionSettings), health)
	return e
}

const validOrderBody = `{
	"customerName": "Giulia Rossi",
	"customerPhone": "416-555-0100",
	"customerEmail": "giulia@example.com",
	"notes": "extra basil",
	"items": [
		{"id": 1, "name": "Margherita", "price": 8.00, "quantity": 2},
		{"id": 2, "name": "Caesar", "price": "5.00", "quantity": 1}
	]
}`

func postOrder(e *echo.Echo, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderAccepted(t *testing.T) {
	// Arrange
	order := testOrder()
	intake := &stubIntake{result: cassa.OrderResult{
		Accepted: true,
		Order:    &order,
		PosSync:  cassa.PosSync{Status: cassa.PosSynced, ExternalID: "CLV-9"},
	}}
	e := newTestServer(t, intake, NewLiveFeed(1))

	// Act
	rec := postOrder(e, validOrderBody)

	// Assert
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, int64(17), resp.OrderID)
	assert.Equal(t, "synced", resp.PosSyncStatus)
	assert.Equal(t, "21.00", resp.Order.Total)
	assert.Equal(t, "8.00", resp.Order.Items[0].Price)
	assert.True(t, resp.Clover.Success)
	assert.Equal(t, "CLV-9", resp.Clover.CloverOrderID)

	require.Len(t, intake.got.Items, 2)
	assert.Equal(t, int64(1), intake.got.Items[0].MenuItemID)
	assert.True(t, decimal.RequireFromString("5.00").Equal(intake.got.Items[1].Price))
	assert.Equal(t, "extra basil", intake.got.Notes)
	assert.Nil(t, intake.got.UserID)
}

func TestCreateOrderCarriesSessionUser(t *testing.T) {
	order := testOrder()
	intake := &stubIntake{result: cassa.OrderResult{Accepted: true, Order: &order}}
	e := newTestServer(t, intake, NewLiveFeed(1))

	token, err := NewSessionReader(testSessionSettings).Sign(42, time.Hour)
	require.NoError(t, err)

	rec := postOrder(e, validOrderBody, &http.Cookie{Name: "session", Value: token})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, intake.got.UserID)
	assert.Equal(t, int64(42), *intake.got.UserID)
}

func TestCreateOrderRejectionStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		category cassa.Category
		want     int
	}{
		{name: "validation", category: cassa.CategoryValidation, want: http.StatusBadRequest},
		{name: "store closed", category: cassa.CategoryStoreClosed, want: http.StatusBadRequest},
		{name: "duplicate", category: cassa.CategoryDuplicate, want: http.StatusTooManyRequests},
		{name: "rate limited", category: cassa.CategoryRateLimited, want: http.StatusTooManyRequests},
		{name: "capacity", category: cassa.CategoryCapacity, want: http.StatusServiceUnavailable},
		{name: "unverified email", category: cassa.CategoryEmailUnverified, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intake := &stubIntake{result: cassa.OrderResult{
				Rejection: &cassa.Rejection{Category: tt.category, Reason: "nope"},
			}}
			e := newTestServer(t, intake, NewLiveFeed(1))

			rec := postOrder(e, validOrderBody)

			assert.Equal(t, tt.want, rec.Code)
			var resp RejectionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Accepted)
			assert.Equal(t, string(tt.category), resp.Category)
			assert.Equal(t, "nope", resp.Reason)
			assert.Equal(t, tt.category == cassa.CategoryEmailUnverified, resp.NeedsVerification)
		})
	}
}

func TestCreateOrderStoreClosedIncludesHours(t *testing.T) {
	intake := &stubIntake{result: cassa.OrderResult{Rejection: &cassa.Rejection{
		Category:    cassa.CategoryStoreClosed,
		Reason:      "We are currently closed.",
		StoreStatus: &cassa.StoreStatus{Verdict: cassa.VerdictClosed, OpenTime: "10:00", CloseTime: "22:00"},
	}}}
	e := newTestServer(t, intake, NewLiveFeed(1))

	rec := postOrder(e, validOrderBody)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp RejectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.StoreHours)
	assert.Equal(t, "10:00", resp.StoreHours.OpenTime)
	assert.Equal(t, "22:00", resp.StoreHours.CloseTime)
}

func TestCreateOrderShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "no items",
			body:   `{"customerName": "Ada", "customerPhone": "4165550100", "items": []}`,
			reason: "No items in order",
		},
		{
			name:   "missing items",
			body:   `{"customerName": "Ada", "customerPhone": "4165550100"}`,
			reason: "No items in order",
		},
		{
			name:   "missing phone",
			body:   `{"customerName": "Ada", "items": [{"id": 1, "price": 8, "quantity": 2}]}`,
			reason: "Customer name and phone are required",
		},
		{
			name:   "notes too long",
			body:   `{"customerName": "Ada", "customerPhone": "4165550100", "notes": "` + strings.Repeat("n", 501) + `", "items": [{"id": 1, "price": 8, "quantity": 2}]}`,
			reason: "Notes must be at most 500 characters.",
		},
		{
			name:   "item without id",
			body:   `{"customerName": "Ada", "customerPhone": "4165550100", "items": [{"price": 8, "quantity": 2}]}`,
			reason: "Every item must reference a menu item.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intake := &stubIntake{}
			e := newTestServer(t, intake, NewLiveFeed(1))

			rec := postOrder(e, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp RejectionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "validation", resp.Category)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.Zero(t, intake.calls)
		})
	}
}

func TestCreateOrderUnreadableBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "truncated json", body: `{"customerName": `},
		{name: "quantity overflows", body: `{"customerName": "Ada", "customerPhone": "4165550100", "items": [{"id": 1, "price": 8, "quantity": 99999999999999999999}]}`},
		{name: "items not a list", body: `{"customerName": "Ada", "customerPhone": "4165550100", "items": "pizza"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intake := &stubIntake{}
			e := newTestServer(t, intake, NewLiveFeed(1))

			rec := postOrder(e, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp RejectionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Accepted)
			assert.Equal(t, "validation", resp.Category)
			assert.Equal(t, "Invalid order request", resp.Reason)
			assert.Zero(t, intake.calls)
		})
	}
}

func TestCreateOrderInternalError(t *testing.T) {
	intake := &stubIntake{err: errors.New("ledger write failed")}
	e := newTestServer(t, intake, NewLiveFeed(1))

	rec := postOrder(e, validOrderBody)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to create order", resp.Error)
	assert.NotContains(t, rec.Body.String(), "ledger")
}

func TestGetStoreStatus(t *testing.T) {
	intake := &stubIntake{status: cassa.StoreStatus{
		IsOpen:    true,
		Verdict:   cassa.VerdictClosingSoon,
		Message:   "We close soon.",
		OpenTime:  "10:00",
		CloseTime: "22:00",
	}}
	e := newTestServer(t, intake, NewLiveFeed(1))

	req := httptest.NewRequest(http.MethodGet, "/v1/store-status", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StoreStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsOpen)
	assert.Equal(t, "closing_soon", resp.Status)
	assert.Equal(t, "22:00", resp.CloseTime)
}

func TestGetMenu(t *testing.T) {
	intake := &stubIntake{menu: []cassa.MenuItemSnapshot{
		{ID: 1, Name: "Margherita", Price: decimal.RequireFromString("8"), Available: true},
	}}
	e := newTestServer(t, intake, NewLiveFeed(1))

	req := httptest.NewRequest(http.MethodGet, "/v1/menu", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []MenuItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []MenuItemResponse{{ID: 1, Name: "Margherita", Price: "8.00"}}, resp)

	intake.err = errors.New("db down")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/menu", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	e := newTestServer(t, &stubIntake{}, NewLiveFeed(1))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
}

func TestLiveOrdersSSE(t *testing.T) {
	// Arrange
	feed := NewLiveFeed(4)
	srv := httptest.NewServer(newTestServer(t, &stubIntake{}, feed))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/orders/sse", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	require.Eventually(t, func() bool { return feed.subscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	// Act
	require.NoError(t, feed.PublishPlaced(context.Background(), cassa.NewOrderPlaced(testOrder())))

	// Assert
	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: order.placed\n", eventLine)

	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataLine, "data: "))

	var event cassa.OrderPlaced
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &event))
	assert.Equal(t, int64(17), event.OrderID)
	assert.Equal(t, "Giulia Rossi", event.CustomerName)

	cancel()
	assert.Eventually(t, func() bool { return feed.subscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}
