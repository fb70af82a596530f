package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taldoflemis/trattoria/cassa"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("cassa/postgres")

type MenuStore struct {
	pool *pgxpool.Pool
}

var _ cassa.MenuStore = (*MenuStore)(nil)

func NewMenuStore(pool *pgxpool.Pool) *MenuStore {
	return &MenuStore{pool: pool}
}

func (m *MenuStore) FetchMenuItems(ctx context.Context, ids []int64) ([]cassa.MenuItemSnapshot, error) {
	ctx, span := tracer.Start(ctx, "MenuStore.FetchMenuItems", trace.WithAttributes(
		attribute.Int("cassa.menu.ids", len(ids)),
	))
	defer span.End()

	rows, err := m.pool.Query(ctx,
		"SELECT id, name, price, available FROM menu_items WHERE id = ANY($1)", ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query menu items")
		return nil, fmt.Errorf("query menu items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[cassa.MenuItemSnapshot])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan menu items")
		return nil, fmt.Errorf("scan menu items: %w", err)
	}
	return items, nil
}

func (m *MenuStore) ListAvailable(ctx context.Context) ([]cassa.MenuItemSnapshot, error) {
	ctx, span := tracer.Start(ctx, "MenuStore.ListAvailable")
	defer span.End()

	rows, err := m.pool.Query(ctx,
		"SELECT id, name, price, available FROM menu_items WHERE available ORDER BY category, name")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query menu")
		return nil, fmt.Errorf("query menu: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[cassa.MenuItemSnapshot])
	if err != nil {
		return nil, fmt.Errorf("scan menu: %w", err)
	}
	return items, nil
}
