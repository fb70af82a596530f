package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taldoflemis/trattoria/cassa"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const cloverNotConfigured = "Clover not configured"

type cloverLineItem struct {
	Item struct {
		Name  string `json:"name"`
		Price int64  `json:"price"`
	} `json:"item"`
	UnitQty int `json:"unitQty"`
}

type cloverOrderPayload struct {
	State     string           `json:"state"`
	Note      string           `json:"note,omitempty"`
	LineItems []cloverLineItem `json:"lineItems"`
	Currency  string           `json:"currency"`
}

// CloverPOS forwards accepted orders to a Clover merchant as open orders.
type CloverPOS struct {
	settings CloverSettings
	client   *http.Client
}

var _ cassa.PointOfSale = (*CloverPOS)(nil)

func NewCloverPOS(settings CloverSettings) *CloverPOS {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CloverPOS{
		settings: settings,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *CloverPOS) configured() bool {
	return c.settings.Enabled && c.settings.MerchantID != "" && c.settings.AccessToken != ""
}

func (c *CloverPOS) SubmitOrder(ctx context.Context, items []cassa.LineItem, customer cassa.PosCustomer, totalCents int64) cassa.PosResult {
	if !c.configured() {
		slog.DebugContext(ctx, "clover not configured, skipping order sync")
		return cassa.PosResult{Message: cloverNotConfigured}
	}

	ctx, span := tracer.Start(ctx, "CloverPOS.SubmitOrder", trace.WithAttributes(
		attribute.Int64("clover.total_cents", totalCents),
	))
	defer span.End()

	id, err := c.createOrder(ctx, items, customer, totalCents)
	if err != nil {
		slog.ErrorContext(ctx, "failed to send order to clover", slog.Any("err", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send order to clover")
		return cassa.PosResult{Error: err.Error()}
	}

	slog.InfoContext(ctx, "order sent to clover", slog.String("clover-order-id", id))
	return cassa.PosResult{Success: true, ExternalID: id}
}

func (c *CloverPOS) createOrder(ctx context.Context, items []cassa.LineItem, customer cassa.PosCustomer, totalCents int64) (string, error) {
	payload := cloverOrderPayload{
		State:     "open",
		Note:      buildCloverNote(customer, totalCents),
		LineItems: make([]cloverLineItem, 0, len(items)),
		Currency:  c.currency(),
	}
	for _, it := range items {
		var li cloverLineItem
		li.Item.Name = it.Name
		if li.Item.Name == "" {
			li.Item.Name = fmt.Sprintf("Item %d", it.MenuItemID)
		}
		li.Item.Price = toCents(it.Price)
		li.UnitQty = it.Quantity
		payload.LineItems = append(payload.LineItems, li)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode clover order: %w", err)
	}

	url := strings.TrimRight(c.settings.BaseURL, "/") + "/v3/merchants/" + c.settings.MerchantID + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.settings.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	if c.settings.AppID != "" {
		req.Header.Set("X-Clover-App-Id", c.settings.AppID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read clover response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("clover api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode clover response: %w", err)
	}
	return created.ID, nil
}

func (c *CloverPOS) currency() string {
	if c.settings.Currency == "" {
		return "CAD"
	}
	return c.settings.Currency
}

func buildCloverNote(customer cassa.PosCustomer, totalCents int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer: %s\n", customer.Name)
	fmt.Fprintf(&b, "Phone: %s\n", customer.Phone)
	if customer.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", customer.Email)
	}
	if customer.Notes != "" {
		fmt.Fprintf(&b, "\nOrder Notes: %s", customer.Notes)
	}
	fmt.Fprintf(&b, "\n\nTotal: $%s", decimal.New(totalCents, -2).StringFixed(2))
	return b.String()
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
