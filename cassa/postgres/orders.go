package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/taldoflemis/trattoria/cassa"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type OrderLedger struct {
	pool *pgxpool.Pool
}

var _ cassa.OrderLedger = (*OrderLedger)(nil)

func NewOrderLedger(pool *pgxpool.Pool) *OrderLedger {
	return &OrderLedger{pool: pool}
}

func (l *OrderLedger) CreateOrder(ctx context.Context, order cassa.PersistedOrder) (cassa.PersistedOrder, error) {
	ctx, span := tracer.Start(ctx, "OrderLedger.CreateOrder")
	defer span.End()

	items, err := json.Marshal(order.Items)
	if err != nil {
		return cassa.PersistedOrder{}, fmt.Errorf("encode items: %w", err)
	}

	err = l.pool.QueryRow(ctx, `
		INSERT INTO orders (user_id, customer_name, customer_phone, phone_key, customer_email, notes, items, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		order.UserID, order.CustomerName, order.CustomerPhone, cassa.PhoneKey(order.CustomerPhone),
		order.CustomerEmail, order.Notes, items, order.Total, string(order.Status), order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert order")
		return cassa.PersistedOrder{}, fmt.Errorf("insert order: %w", err)
	}

	span.SetAttributes(attribute.Int64("cassa.order.id", order.ID))
	return order, nil
}

func (l *OrderLedger) CountOrders(ctx context.Context, filter cassa.OrderFilter) (int, error) {
	ctx, span := tracer.Start(ctx, "OrderLedger.CountOrders")
	defer span.End()

	query, args := countQuery(filter)

	var count int
	if err := l.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count orders")
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

// countQuery renders filter as a COUNT over orders. CreatedAfter is always
// applied, the other fields only when set.
func countQuery(filter cassa.OrderFilter) (string, []any) {
	var (
		clauses = []string{"created_at >= $1"}
		args    = []any{filter.CreatedAfter}
	)
	if filter.Phone != "" {
		args = append(args, filter.Phone)
		clauses = append(clauses, "phone_key = $"+strconv.Itoa(len(args)))
	}
	if len(filter.StatusIn) > 0 {
		statuses := make([]string, 0, len(filter.StatusIn))
		for _, s := range filter.StatusIn {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		clauses = append(clauses, "status = ANY($"+strconv.Itoa(len(args))+")")
	}
	return "SELECT COUNT(*) FROM orders WHERE " + strings.Join(clauses, " AND "), args
}

func (l *OrderLedger) FindRecentOrders(ctx context.Context, phone string, createdAfter time.Time, limit int) ([]cassa.PersistedOrder, error) {
	ctx, span := tracer.Start(ctx, "OrderLedger.FindRecentOrders", trace.WithAttributes(
		attribute.Int("cassa.lookback", limit),
	))
	defer span.End()

	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, customer_name, customer_phone, customer_email, notes, items, total, status, created_at
		FROM orders
		WHERE phone_key = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`,
		phone, createdAfter, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query recent orders")
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	defer rows.Close()

	var orders []cassa.PersistedOrder
	for rows.Next() {
		var (
			o      cassa.PersistedOrder
			items  []byte
			total  decimal.Decimal
			status string
		)
		err := rows.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
			&o.Notes, &items, &total, &status, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan recent order: %w", err)
		}

		o.Items, err = decodeItems(items)
		if err != nil {
			slog.WarnContext(ctx, "skipping order with unreadable items",
				slog.Int64("order-id", o.ID),
				slog.Any("err", err),
			)
			continue
		}
		o.Total = total
		o.Status = cassa.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent orders: %w", err)
	}
	return orders, nil
}

// decodeItems reads the stored items column. Rows written by older clients
// used "menuItemId" for the item reference.
func decodeItems(raw []byte) ([]cassa.LineItem, error) {
	var stored []struct {
		MenuItemID       *int64          `json:"menu_item_id"`
		LegacyMenuItemID *int64          `json:"menuItemId"`
		Name             string          `json:"name"`
		Quantity         int             `json:"quantity"`
		Price            decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}

	items := make([]cassa.LineItem, 0, len(stored))
	for i, s := range stored {
		id := s.MenuItemID
		if id == nil {
			id = s.LegacyMenuItemID
		}
		if id == nil {
			return nil, fmt.Errorf("item %d has no menu item id", i)
		}
		items = append(items, cassa.LineItem{
			MenuItemID: *id,
			Name:       s.Name,
			Quantity:   s.Quantity,
			Price:      s.Price,
		})
	}
	return items, nil
}
