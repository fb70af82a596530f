package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taldoflemis/trattoria/cassa"
)

func testLines() []cassa.LineItem {
	return []cassa.LineItem{
		{MenuItemID: 1, Name: "Margherita", Quantity: 2, Price: decimal.RequireFromString("8.00")},
		{MenuItemID: 2, Name: "Caesar", Quantity: 1, Price: decimal.RequireFromString("5.00")},
	}
}

func TestCloverPOSNotConfiguredSkips(t *testing.T) {
	pos := NewCloverPOS(CloverSettings{Enabled: true})

	res := pos.SubmitOrder(context.Background(), testLines(), cassa.PosCustomer{Name: "Ada"}, 2100)

	assert.False(t, res.Success)
	assert.Equal(t, cloverNotConfigured, res.Message)
	assert.Empty(t, res.Error)
}

func TestCloverPOSSubmitsOpenOrder(t *testing.T) {
	// Arrange
	var got cloverOrderPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/merchants/M123/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "app", r.Header.Get("X-Clover-App-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"CLV42","state":"open"}`))
	}))
	defer srv.Close()

	pos := NewCloverPOS(CloverSettings{
		Enabled:     true,
		BaseURL:     srv.URL,
		MerchantID:  "M123",
		AccessToken: "tok",
		AppID:       "app",
	})

	// Act
	res := pos.SubmitOrder(context.Background(), testLines(), cassa.PosCustomer{
		Name:  "Giulia",
		Phone: "416-555-0100",
		Notes: "extra basil",
	}, 2100)

	// Assert
	assert.True(t, res.Success)
	assert.Equal(t, "CLV42", res.ExternalID)
	assert.Equal(t, "open", got.State)
	assert.Equal(t, "CAD", got.Currency)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, int64(800), got.LineItems[0].Item.Price)
	assert.Equal(t, 2, got.LineItems[0].UnitQty)
	assert.Equal(t, "Customer: Giulia\nPhone: 416-555-0100\n\nOrder Notes: extra basil\n\nTotal: $21.00", got.Note)
}

func TestCloverPOSReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "merchant suspended", http.StatusForbidden)
	}))
	defer srv.Close()

	pos := NewCloverPOS(CloverSettings{Enabled: true, BaseURL: srv.URL, MerchantID: "M", AccessToken: "t"})
	res := pos.SubmitOrder(context.Background(), testLines(), cassa.PosCustomer{Name: "Ada"}, 2100)

	assert.False(t, res.Success)
	assert.Equal(t, "clover api error: 403 - merchant suspended", res.Error)
}

func TestBuildCloverNoteWithEmail(t *testing.T) {
	note := buildCloverNote(cassa.PosCustomer{Name: "Ada", Phone: "4165550100", Email: "ada@example.com"}, 1550)
	assert.Equal(t, "Customer: Ada\nPhone: 4165550100\nEmail: ada@example.com\n\n\nTotal: $15.50", note)
}
